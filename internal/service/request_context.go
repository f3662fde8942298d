package service

import (
	"fmt"

	"github.com/noah-isme/halqat/internal/listquery"
	"github.com/noah-isme/halqat/internal/models"
)

// RequestContext carries the authenticated user and granted permissions into every service call.
type RequestContext struct {
	User        models.User
	Permissions map[models.Permission]struct{}
}

// NewRequestContext resolves the permission set for user.
func NewRequestContext(user models.User) RequestContext {
	return RequestContext{User: user, Permissions: models.PermissionsFor(user.Role)}
}

// Has reports whether the permission was granted.
func (rc RequestContext) Has(permission models.Permission) bool {
	_, ok := rc.Permissions[permission]
	return ok
}

// IsTeacher reports whether list and write scopes must be narrowed to the user's own halaqat.
func (rc RequestContext) IsTeacher() bool {
	return rc.User.Role == models.RoleTeacher
}

// Actor identifies the user for audit entries.
func (rc RequestContext) Actor() ActivityActor {
	return ActivityActor{ID: rc.User.ID, Role: string(rc.User.Role)}
}

// ScopeKey distinguishes cached aggregates computed under different visibility rules.
func (rc RequestContext) ScopeKey() string {
	if rc.IsTeacher() {
		return fmt.Sprintf("teacher:%d", rc.User.ID)
	}
	return "all"
}

const ownedHalaqat = "SELECT id FROM halaqat WHERE teacher_id = ?"

// scopeFor returns the mandatory conditions for kind. Teachers only see halaqat they lead and
// the students, attendance and grades inside them; grades follow their halqa snapshot.
func scopeFor(kind ListKind, rc RequestContext) []listquery.Condition {
	if !rc.IsTeacher() {
		return nil
	}
	switch kind {
	case KindHalaqat:
		return []listquery.Condition{{Expr: "halaqat.teacher_id = ?", Args: []interface{}{rc.User.ID}}}
	case KindStudents:
		return []listquery.Condition{{Expr: "students.halqa_id IN (" + ownedHalaqat + ")", Args: []interface{}{rc.User.ID}}}
	case KindAttendance:
		return []listquery.Condition{{Expr: "attendance.halqa_id IN (" + ownedHalaqat + ")", Args: []interface{}{rc.User.ID}}}
	case KindGrades:
		return []listquery.Condition{{Expr: "grades.halqa_id IN (" + ownedHalaqat + ")", Args: []interface{}{rc.User.ID}}}
	default:
		return nil
	}
}
