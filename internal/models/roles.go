package models

// Role identifies the kind of account operating the system.
type Role string

const (
	RoleProgrammer Role = "programmer"
	RoleSupervisor Role = "supervisor"
	RoleTeacher    Role = "teacher"
)

// Valid reports whether the role is one of the known account roles.
func (r Role) Valid() bool {
	switch r {
	case RoleProgrammer, RoleSupervisor, RoleTeacher:
		return true
	default:
		return false
	}
}

// UsesPersonalCode reports whether accounts of this role sign in with a personal code instead of a username.
func (r Role) UsesPersonalCode() bool {
	return r == RoleTeacher
}

// Permission names an action family guarded by the session layer.
type Permission string

const (
	PermViewHalaqat      Permission = "view_halaqat"
	PermManageHalaqat    Permission = "manage_halaqat"
	PermViewCourses      Permission = "view_courses"
	PermManageCourses    Permission = "manage_courses"
	PermViewStudents     Permission = "view_students"
	PermManageStudents   Permission = "manage_students"
	PermViewAttendance   Permission = "view_attendance"
	PermManageAttendance Permission = "manage_attendance"
	PermViewGrades       Permission = "view_grades"
	PermManageGrades     Permission = "manage_grades"
	PermViewReports      Permission = "view_reports"
	PermManageUsers      Permission = "manage_users"
	PermViewActivity     Permission = "view_activity"
)

var rolePermissions = map[Role][]Permission{
	RoleProgrammer: {
		PermViewHalaqat, PermManageHalaqat,
		PermViewCourses, PermManageCourses,
		PermViewStudents, PermManageStudents,
		PermViewAttendance, PermManageAttendance,
		PermViewGrades, PermManageGrades,
		PermViewReports, PermManageUsers, PermViewActivity,
	},
	RoleSupervisor: {
		PermViewHalaqat, PermManageHalaqat,
		PermViewCourses, PermManageCourses,
		PermViewStudents, PermManageStudents,
		PermViewAttendance, PermManageAttendance,
		PermViewGrades, PermManageGrades,
		PermViewReports, PermManageUsers,
	},
	RoleTeacher: {
		PermViewHalaqat, PermViewCourses, PermViewStudents,
		PermViewAttendance, PermManageAttendance,
		PermViewGrades, PermManageGrades,
		PermViewReports,
	},
}

// PermissionsFor returns the permission set granted to a role.
func PermissionsFor(role Role) map[Permission]struct{} {
	granted := make(map[Permission]struct{}, len(rolePermissions[role]))
	for _, permission := range rolePermissions[role] {
		granted[permission] = struct{}{}
	}
	return granted
}
