package admin

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"text/tabwriter"

	domain "github.com/oshokin/face-attendance/internal/domain/attendance"
	"github.com/oshokin/face-attendance/internal/logger"
	"github.com/oshokin/face-attendance/internal/service/common"
)

// errUnsupportedPhoto is returned for face photos the portal does not accept.
var errUnsupportedPhoto = errors.New("face photo must be a png, jpg, jpeg or gif file")

// allowedPhotoExtensions are the face photo formats the portal accepts.
//
//nolint:gochecknoglobals // Read-only lookup table.
var allowedPhotoExtensions = []string{".png", ".jpg", ".jpeg", ".gif"}

// AddStudentOptions configures students add.
type AddStudentOptions struct {
	common.Options

	// Student is the roster entry to create.
	Student domain.NewStudent

	// PhotoPath is the enrolment face photo.
	PhotoPath string
}

// ListStudents prints the roster.
func ListStudents(ctx context.Context, opts *common.Options) error {
	ctx = logger.WithName(ctx, "students-list")

	rt, err := adminRuntime(ctx, opts)
	if err != nil {
		return err
	}

	students, err := rt.Portal.ListStudents(ctx)
	if err != nil {
		return fmt.Errorf("list students: %w", err)
	}

	w := tabwriter.NewWriter(opts.Output(), 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNIM\tNAME\tDEPARTMENT\tREGISTERED")

	for _, s := range students {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", s.ID, s.StudentNumber, s.Name, s.Department, s.CreatedAt)
	}

	return w.Flush()
}

// ShowStudent prints one roster entry.
func ShowStudent(ctx context.Context, opts *common.Options, id int) error {
	ctx = logger.WithName(ctx, "students-show")

	rt, err := adminRuntime(ctx, opts)
	if err != nil {
		return err
	}

	student, err := rt.Portal.GetStudent(ctx, id)
	if err != nil {
		return fmt.Errorf("get student %d: %w", id, err)
	}

	return printStudent(opts, student)
}

// AddStudent enrols a student with a face photo.
func AddStudent(ctx context.Context, opts *AddStudentOptions) error {
	ctx = logger.WithName(ctx, "students-add")

	if !slices.Contains(allowedPhotoExtensions, strings.ToLower(filepath.Ext(opts.PhotoPath))) {
		return fmt.Errorf("%w: %q", errUnsupportedPhoto, opts.PhotoPath)
	}

	rt, err := adminRuntime(ctx, &opts.Options)
	if err != nil {
		return err
	}

	photo, err := os.Open(filepath.Clean(opts.PhotoPath))
	if err != nil {
		return fmt.Errorf("open face photo: %w", err)
	}

	defer func() {
		_ = photo.Close()
	}()

	student, err := rt.Portal.CreateStudent(ctx, opts.Student, filepath.Base(opts.PhotoPath), photo)
	if err != nil {
		return fmt.Errorf("add student: %w", err)
	}

	logger.InfoKV(ctx, "Student enrolled", "id", student.ID, "nim", student.StudentNumber)

	return printStudent(&opts.Options, student)
}

// DeleteStudent removes a roster entry.
func DeleteStudent(ctx context.Context, opts *common.Options, id int) error {
	ctx = logger.WithName(ctx, "students-delete")

	rt, err := adminRuntime(ctx, opts)
	if err != nil {
		return err
	}

	if err = rt.Portal.DeleteStudent(ctx, id); err != nil {
		return fmt.Errorf("delete student %d: %w", id, err)
	}

	_, err = fmt.Fprintf(opts.Output(), "Student %d deleted.\n", id)

	return err
}

// SetRecordStatus corrects the status of an attendance record.
func SetRecordStatus(ctx context.Context, opts *common.Options, id int, status domain.Status) error {
	ctx = logger.WithName(ctx, "records-set-status")

	rt, err := adminRuntime(ctx, opts)
	if err != nil {
		return err
	}

	record, err := rt.Portal.UpdateAttendanceStatus(ctx, id, status)
	if err != nil {
		return fmt.Errorf("update record %d: %w", id, err)
	}

	_, err = fmt.Fprintf(opts.Output(), "Record %d of %s on %s is now %s.\n", record.ID, record.StudentName, record.Date, record.Status)

	return err
}

// DeleteRecord removes an attendance record.
func DeleteRecord(ctx context.Context, opts *common.Options, id int) error {
	ctx = logger.WithName(ctx, "records-delete")

	rt, err := adminRuntime(ctx, opts)
	if err != nil {
		return err
	}

	if err = rt.Portal.DeleteAttendance(ctx, id); err != nil {
		return fmt.Errorf("delete record %d: %w", id, err)
	}

	_, err = fmt.Fprintf(opts.Output(), "Record %d deleted.\n", id)

	return err
}

// adminRuntime bootstraps and requires an admin session.
func adminRuntime(ctx context.Context, opts *common.Options) (*common.Runtime, error) {
	rt, err := common.Bootstrap(ctx, opts)
	if err != nil {
		return nil, err
	}

	if _, err = rt.RequireRole(ctx, domain.RoleAdmin); err != nil {
		return nil, err
	}

	return rt, nil
}

// printStudent writes one roster entry as aligned fields.
func printStudent(opts *common.Options, s *domain.Student) error {
	w := tabwriter.NewWriter(opts.Output(), 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintf(w, "ID:\t%d\n", s.ID)
	_, _ = fmt.Fprintf(w, "NIM:\t%s\n", s.StudentNumber)
	_, _ = fmt.Fprintf(w, "Name:\t%s\n", s.Name)
	_, _ = fmt.Fprintf(w, "Department:\t%s\n", s.Department)
	_, _ = fmt.Fprintf(w, "Photo:\t%s\n", s.PhotoPath)
	_, _ = fmt.Fprintf(w, "Registered:\t%s\n", s.CreatedAt)

	return w.Flush()
}
