package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"

	"etatcivil/internal/docgen/models"
	requestmodels "etatcivil/internal/request/models"
	id "etatcivil/pkg/domain"
	dErrors "etatcivil/pkg/domain-errors"
	"etatcivil/pkg/requestcontext"
)

// Generator renders the deliverable for an approved request. The rendering
// itself (PDF layout, templates) lives behind this port.
type Generator interface {
	Render(ctx context.Context, req *requestmodels.Request) (models.Rendered, error)
}

// DocumentStore persists generated-document metadata, one record per
// request. Upsert semantics keep regeneration and racing delivery
// attempts from accumulating rows.
type DocumentStore interface {
	Upsert(ctx context.Context, doc *models.Document) error
	FindByRequestID(ctx context.Context, requestID id.RequestID) (*models.Document, error)
}

// Service renders, signs, and records deliverables.
type Service struct {
	generator Generator
	documents DocumentStore
}

// New constructs a docgen Service.
func New(generator Generator, documents DocumentStore) *Service {
	return &Service{generator: generator, documents: documents}
}

// GenerateAndStore renders the document for a request, signs the content,
// and persists the metadata. Any failure here must block delivery, so
// errors are returned rather than swallowed.
func (s *Service) GenerateAndStore(ctx context.Context, req *requestmodels.Request) (*models.Document, error) {
	rendered, err := s.generator.Render(ctx, req)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "document generation failed")
	}
	if len(rendered.Content) == 0 {
		return nil, dErrors.New(dErrors.CodeInternal, "document generation produced no content")
	}

	doc := &models.Document{
		ID:          uuid.New(),
		RequestID:   req.ID,
		FileName:    rendered.FileName,
		ContentType: rendered.ContentType,
		Signature:   Sign(rendered.Content),
		CreatedAt:   requestcontext.Now(ctx),
	}
	if err := s.documents.Upsert(ctx, doc); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store document metadata")
	}
	return doc, nil
}

// Sign computes the hex sha256 digest recorded as the document signature.
func Sign(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// TextGenerator is a minimal generator producing a plain-text attestation.
// Production deployments plug a PDF renderer behind the Generator port.
type TextGenerator struct{}

func (TextGenerator) Render(_ context.Context, req *requestmodels.Request) (models.Rendered, error) {
	body := fmt.Sprintf("Demande %s\nActe %s\nType %s\nVariante %s\nCopies %d\n",
		req.RequestNumber, req.ActID.String(), req.ActType, req.Variant, req.CopyCount)
	return models.Rendered{
		FileName:    req.RequestNumber + ".txt",
		ContentType: "text/plain; charset=utf-8",
		Content:     []byte(body),
	}, nil
}
