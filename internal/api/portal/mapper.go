package portal

import (
	"fmt"

	domain "github.com/oshokin/face-attendance/internal/domain/attendance"
)

const (
	// wireAdmin and wireStudent are the portal's user_type values.
	wireAdmin   = "admin"
	wireStudent = "mahasiswa"

	// Portal status values.
	wirePresent = "hadir"
	wireExcused = "izin"
	wireAbsent  = "alpa"
)

// toWireRole converts a domain role into the portal user_type.
func toWireRole(role domain.Role) (string, error) {
	switch role {
	case domain.RoleAdmin:
		return wireAdmin, nil
	case domain.RoleStudent:
		return wireStudent, nil
	default:
		return "", fmt.Errorf("%w: role %q", ErrInvalidRequest, role)
	}
}

// toDomainRole converts the portal user type into a domain role.
func toDomainRole(userType string) domain.Role {
	if userType == wireStudent {
		return domain.RoleStudent
	}

	return domain.Role(userType)
}

// toWireStatus converts a domain status into the portal value.
func toWireStatus(status domain.Status) (string, error) {
	switch status {
	case domain.StatusPresent:
		return wirePresent, nil
	case domain.StatusExcused:
		return wireExcused, nil
	case domain.StatusAbsent:
		return wireAbsent, nil
	default:
		return "", fmt.Errorf("%w: status %q", ErrInvalidRequest, status)
	}
}

// toDomainStatus converts a portal status. Unknown values are kept as sent.
func toDomainStatus(status string) domain.Status {
	switch status {
	case wirePresent, "":
		return domain.StatusPresent
	case wireExcused:
		return domain.StatusExcused
	case wireAbsent:
		return domain.StatusAbsent
	default:
		return domain.Status(status)
	}
}

// toDomainIdentity converts the /login and /profile user object.
func toDomainIdentity(u *userDTO) *domain.Identity {
	identity := &domain.Identity{
		ID:          u.ID,
		Role:        toDomainRole(u.Type),
		Username:    u.Username,
		DisplayName: u.Name,
	}

	if identity.Role == domain.RoleStudent {
		identity.StudentNumber = u.NIM
		identity.Department = u.Department

		if identity.Username == "" {
			identity.Username = u.NIM
		}
	}

	return identity
}

// toDomainRecord converts an attendance record. The submit endpoint sends
// the student's name as "nama", the list endpoint as "nama_mahasiswa".
func toDomainRecord(r *recordDTO) *domain.Record {
	name := r.StudentName
	if name == "" {
		name = r.Name
	}

	record := &domain.Record{
		ID:            r.ID,
		StudentID:     r.StudentID,
		StudentName:   name,
		StudentNumber: r.NIM,
		Date:          r.Date,
		Time:          r.Time,
		Status:        toDomainStatus(r.Status),
	}

	if r.Confidence != nil {
		c := *r.Confidence
		record.Confidence = &c
	}

	return record
}

// toDomainStudent converts a roster entry.
func toDomainStudent(s *studentDTO) *domain.Student {
	return &domain.Student{
		ID:            s.ID,
		StudentNumber: s.NIM,
		Name:          s.Name,
		Department:    s.Department,
		PhotoPath:     s.Photo,
		CreatedAt:     s.CreatedAt,
	}
}

// toDomainStatistics converts the statistics payload.
func toDomainStatistics(s *statisticsDTO) *domain.Statistics {
	return &domain.Statistics{
		Total:             s.Total,
		Present:           s.Present,
		Excused:           s.Excused,
		Absent:            s.Absent,
		PresentPercentage: s.PresentPercentage,
		ExcusedPercentage: s.ExcusedPercentage,
		AbsentPercentage:  s.AbsentPercentage,
	}
}
