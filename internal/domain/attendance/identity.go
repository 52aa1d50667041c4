package attendance

// Role distinguishes administrators from students.
type Role string

const (
	// RoleAdmin manages the roster and reviews attendance.
	RoleAdmin Role = "admin"
	// RoleStudent records their own attendance.
	RoleStudent Role = "student"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleStudent
}

// Identity is the authenticated principal of the current session.
type Identity struct {
	// ID is the server-side identifier of the admin or student.
	ID int
	// Role is admin or student.
	Role Role
	// Username is the admin login or the student number for students.
	Username string
	// DisplayName is the person's name.
	DisplayName string
	// StudentNumber (NIM) is set for students only.
	StudentNumber string
	// Department (jurusan) is set for students only.
	Department string
}

// IsAdmin reports whether the identity belongs to an administrator.
func (i *Identity) IsAdmin() bool {
	return i != nil && i.Role == RoleAdmin
}

// IsStudent reports whether the identity belongs to a student.
func (i *Identity) IsStudent() bool {
	return i != nil && i.Role == RoleStudent
}

// Clone returns a copy of the identity.
func (i *Identity) Clone() *Identity {
	if i == nil {
		return nil
	}

	cloned := *i

	return &cloned
}
