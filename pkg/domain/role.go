package domain

import dErrors "etatcivil/pkg/domain-errors"

// Role is the closed set of user roles. Authorization decisions switch
// exhaustively over this type; there is no string comparison against
// free-form role values anywhere else.
type Role string

const (
	RoleCitizen            Role = "CITOYEN"
	RoleCommuneAgent       Role = "AGENT_COMMUNE"
	RoleSubprefectureAgent Role = "AGENT_SOUS_PREFECTURE"
	RoleMayor              Role = "MAIRE"
	RoleSubprefect         Role = "SOUS_PREFET"
	RoleAdministrator      Role = "ADMINISTRATEUR"
)

var validRoles = map[Role]bool{
	RoleCitizen:            true,
	RoleCommuneAgent:       true,
	RoleSubprefectureAgent: true,
	RoleMayor:              true,
	RoleSubprefect:         true,
	RoleAdministrator:      true,
}

// ParseRole constructs a Role from external input (JWT claims).
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !validRoles[r] {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid role")
	}
	return r, nil
}

func (r Role) IsValid() bool  { return validRoles[r] }
func (r Role) String() string { return string(r) }

// CanProcessRequests reports whether the role may drive workflow
// transitions (validate, process, approve, reject, deliver).
func (r Role) CanProcessRequests() bool {
	switch r {
	case RoleCommuneAgent, RoleSubprefectureAgent, RoleMayor, RoleSubprefect, RoleAdministrator:
		return true
	case RoleCitizen:
		return false
	}
	return false
}

// CanRegisterActs reports whether the role may register new civil-status
// acts (births, marriages, deaths).
func (r Role) CanRegisterActs() bool {
	switch r {
	case RoleCommuneAgent, RoleMayor, RoleSubprefect, RoleAdministrator:
		return true
	case RoleSubprefectureAgent, RoleCitizen:
		return false
	}
	return false
}
