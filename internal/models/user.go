package models

// UserRole represents the roles recognised by the clearance workflow.
type UserRole string

const (
	RoleSuperAdmin UserRole = "SUPERADMIN"
	RoleAdmin      UserRole = "ADMIN"
	RoleLibrary    UserRole = "LIBRARY"
	RoleBursar     UserRole = "BURSAR"
	RoleAcademic   UserRole = "ACADEMIC"
	RoleVerifier   UserRole = "VERIFIER"
	RoleProcessor  UserRole = "PROCESSOR"
	RoleStudent    UserRole = "STUDENT"
)

// IsAdmin reports whether the role carries the administrative override.
func (r UserRole) IsAdmin() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// RoleFieldAllowList maps each non-admin role to the fields it may set.
var RoleFieldAllowList = map[UserRole]map[Field]struct{}{
	RoleLibrary:   fieldSet(FieldLibraryStatus, FieldLibraryNote),
	RoleBursar:    fieldSet(FieldBursarStatus, FieldBursarNote),
	RoleAcademic:  fieldSet(FieldAcademicStatus, FieldAcademicNote),
	RoleVerifier:  fieldSet(FieldStatus, FieldVerifierNotes),
	RoleProcessor: fieldSet(FieldStatus, FieldProcessorNotes),
}

func fieldSet(fields ...Field) map[Field]struct{} {
	set := make(map[Field]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

// CanSet reports whether role may mutate field. Admin roles may set every known field.
func CanSet(role UserRole, field Field) bool {
	if role.IsAdmin() {
		return field.Known()
	}
	allowed, ok := RoleFieldAllowList[role]
	if !ok {
		return false
	}
	_, ok = allowed[field]
	return ok
}

// Actor identifies the caller of a workflow operation.
type Actor struct {
	UserID string
	Role   UserRole
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
