package course

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
)

var (
	// errors
	ErrNotFound           = errors.New("course not found")
	ErrNotEnrolled        = errors.New("not enrolled in this course")
	ErrAlreadyEnrolled    = errors.New("already enrolled in this course")
	ErrInstructorNotFound = errors.New("instructor not found")
)

type (
	Repository interface {
		CreateCourse(ctx context.Context, crs Course, exec ...core.DBExecutor) (Course, error)
		GetCourse(ctx context.Context, id string, exec ...core.DBExecutor) (Course, error)
		QueryCourses(ctx context.Context, filter QueryFilter, exec ...core.DBExecutor) ([]Course, error)
		// CreateEnrollment returns ErrAlreadyEnrolled if the user is already enrolled.
		CreateEnrollment(ctx context.Context, enr Enrollment, exec ...core.DBExecutor) (Enrollment, error)
		GetEnrollment(ctx context.Context, userID, courseID string, exec ...core.DBExecutor) (Enrollment, error)
		// LockEnrollment fetches the enrollment and locks it until the end of the transaction.
		// Returns ErrNotEnrolled if the user is not enrolled.
		LockEnrollment(ctx context.Context, userID, courseID string, exec core.DBExecutor) (Enrollment, error)
	}

	Service interface {
		Create(ctx context.Context, creatorID string, nc NewCourse) (Course, error)
		Get(ctx context.Context, id string) (Course, error)
		Query(ctx context.Context, filter QueryFilter) ([]Course, error)
		Enroll(ctx context.Context, userID, courseID string) (Enrollment, error)
		IsEnrolled(ctx context.Context, userID, courseID string) (bool, error)
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (svc *service) Create(ctx context.Context, creatorID string, nc NewCourse) (Course, error) {
	now := time.Now().UTC()
	crs := Course{
		Title:        nc.Title,
		Description:  nc.Description,
		InstructorID: nc.InstructorID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if crs.InstructorID == "" {
		crs.InstructorID = creatorID
	}
	crs, err := svc.repo.CreateCourse(ctx, crs)
	if err != nil {
		if errors.Cause(err) == ErrInstructorNotFound {
			return Course{}, core.NewValidationError(err, core.FieldError{Field: "instructorId", Error: err.Error()})
		}
		return Course{}, errors.Wrap(err, "creating course")
	}
	return crs, nil
}

func (svc *service) Get(ctx context.Context, id string) (Course, error) {
	return svc.repo.GetCourse(ctx, id)
}

func (svc *service) Query(ctx context.Context, filter QueryFilter) ([]Course, error) {
	return svc.repo.QueryCourses(ctx, filter)
}

func (svc *service) Enroll(ctx context.Context, userID, courseID string) (Enrollment, error) {
	if _, err := svc.repo.GetCourse(ctx, courseID); err != nil {
		return Enrollment{}, err
	}
	enr, err := svc.repo.CreateEnrollment(ctx, Enrollment{
		UserID:    userID,
		CourseID:  courseID,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		if errors.Cause(err) == ErrAlreadyEnrolled {
			return Enrollment{}, core.NewValidationError(ErrAlreadyEnrolled)
		}
		return Enrollment{}, errors.Wrap(err, "creating enrollment")
	}
	return enr, nil
}

func (svc *service) IsEnrolled(ctx context.Context, userID, courseID string) (bool, error) {
	if _, err := svc.repo.GetEnrollment(ctx, userID, courseID); err != nil {
		if errors.Cause(err) == ErrNotEnrolled {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
