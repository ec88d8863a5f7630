package domain

import (
	"fmt"
	"strings"
)

// Role is the closed set of access scopes a caller can hold.
type Role string

const (
	RoleAdmin             Role = "admin"
	RoleDepartmentManager Role = "department_manager"
	RoleWorker            Role = "worker"
)

// IsValid reports whether r is one of the known roles.
func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleDepartmentManager, RoleWorker:
		return true
	}
	return false
}

func (r Role) String() string {
	return string(r)
}

// ParseRole validates a raw role string. "manager" is accepted as an alias
// for department_manager. Unknown values are rejected.
func ParseRole(raw string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "admin":
		return RoleAdmin, nil
	case "department_manager", "manager":
		return RoleDepartmentManager, nil
	case "worker":
		return RoleWorker, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, raw)
	}
}

// UserContext identifies the caller of a retrieval request. It is built once
// at the API boundary and passed by value.
type UserContext struct {
	UserID       string `json:"user_id"`
	Role         Role   `json:"role"`
	DepartmentID string `json:"department_id,omitempty"`
}

// NewUserContext validates raw identity fields and builds a UserContext.
// A department manager without a department is accepted here; the tenant
// filter turns it into an unsatisfiable predicate.
func NewUserContext(userID, role, departmentID string) (UserContext, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return UserContext{}, ErrMissingUserID
	}

	parsed, err := ParseRole(role)
	if err != nil {
		return UserContext{}, err
	}

	return UserContext{
		UserID:       userID,
		Role:         parsed,
		DepartmentID: strings.TrimSpace(departmentID),
	}, nil
}

// HasDepartment reports whether a department assignment is present.
func (u UserContext) HasDepartment() bool {
	return u.DepartmentID != ""
}
