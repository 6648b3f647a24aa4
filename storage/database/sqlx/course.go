package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/course"
)

type courseRow struct {
	ID           string    `db:"id"`
	Title        string    `db:"title"`
	Description  string    `db:"description"`
	InstructorID string    `db:"instructor_id"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (r courseRow) course() course.Course {
	return course.Course{
		ID:           r.ID,
		Title:        r.Title,
		Description:  r.Description,
		InstructorID: r.InstructorID,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
}

type enrollmentRow struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	CourseID  string    `db:"course_id"`
	CreatedAt time.Time `db:"created_at"`
}

func (r enrollmentRow) enrollment() course.Enrollment {
	return course.Enrollment{ID: r.ID, UserID: r.UserID, CourseID: r.CourseID, CreatedAt: r.CreatedAt.UTC()}
}

type courseRepository struct {
	base
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(exec core.DBExecutor) course.Repository {
	return &courseRepository{base{exec: exec}}
}

func (repo *courseRepository) CreateCourse(ctx context.Context, crs course.Course, exec ...core.DBExecutor) (course.Course, error) {
	crs.ID = uuid.New().String()
	row := courseRow{
		ID:           crs.ID,
		Title:        crs.Title,
		Description:  crs.Description,
		InstructorID: crs.InstructorID,
		CreatedAt:    crs.CreatedAt.UTC(),
		UpdatedAt:    crs.UpdatedAt.UTC(),
	}
	_, err := namedExec(ctx, repo.getExec(exec), `
		INSERT INTO course (id, title, description, instructor_id, created_at, updated_at)
		VALUES (:id, :title, :description, :instructor_id, :created_at, :updated_at)`, row)
	if err != nil {
		if code := pgCode(err); code == pgForeignKeyViolation || code == pgInvalidText {
			return course.Course{}, course.ErrInstructorNotFound
		}
		return course.Course{}, errors.Wrap(err, "inserting course")
	}
	return row.course(), nil
}

func (repo *courseRepository) GetCourse(ctx context.Context, id string, exec ...core.DBExecutor) (course.Course, error) {
	var rows []courseRow
	err := selectAll(ctx, repo.getExec(exec), &rows, `SELECT * FROM course WHERE id = $1`, id)
	if err != nil {
		return course.Course{}, trapNotFound(err, course.ErrNotFound, "getting course")
	}
	if len(rows) == 0 {
		return course.Course{}, course.ErrNotFound
	}
	return rows[0].course(), nil
}

func (repo *courseRepository) QueryCourses(ctx context.Context, filter course.QueryFilter, exec ...core.DBExecutor) ([]course.Course, error) {
	var rows []courseRow
	var err error
	if filter.UserID == "" {
		err = selectAll(ctx, repo.getExec(exec), &rows, `SELECT * FROM course ORDER BY created_at DESC`)
	} else {
		err = selectAll(ctx, repo.getExec(exec), &rows, `
			SELECT * FROM course
			WHERE instructor_id = $1 OR id IN (SELECT course_id FROM enrollment WHERE user_id = $1)
			ORDER BY created_at DESC`, filter.UserID)
	}
	if err != nil {
		if pgCode(err) == pgInvalidText {
			return []course.Course{}, nil
		}
		return nil, errors.Wrap(err, "querying courses")
	}

	courses := make([]course.Course, 0, len(rows))
	for _, r := range rows {
		courses = append(courses, r.course())
	}
	return courses, nil
}

func (repo *courseRepository) CreateEnrollment(ctx context.Context, enr course.Enrollment, exec ...core.DBExecutor) (course.Enrollment, error) {
	enr.ID = uuid.New().String()
	row := enrollmentRow{ID: enr.ID, UserID: enr.UserID, CourseID: enr.CourseID, CreatedAt: enr.CreatedAt.UTC()}
	_, err := namedExec(ctx, repo.getExec(exec), `
		INSERT INTO enrollment (id, user_id, course_id, created_at)
		VALUES (:id, :user_id, :course_id, :created_at)`, row)
	if err != nil {
		switch pgCode(err) {
		case pgUniqueViolation:
			return course.Enrollment{}, course.ErrAlreadyEnrolled
		case pgForeignKeyViolation, pgInvalidText:
			return course.Enrollment{}, course.ErrNotFound
		}
		return course.Enrollment{}, errors.Wrap(err, "inserting enrollment")
	}
	return row.enrollment(), nil
}

func (repo *courseRepository) getEnrollment(ctx context.Context, exec core.DBExecutor, q, userID, courseID string) (course.Enrollment, error) {
	var rows []enrollmentRow
	if err := selectAll(ctx, exec, &rows, q, userID, courseID); err != nil {
		return course.Enrollment{}, trapNotFound(err, course.ErrNotEnrolled, "getting enrollment")
	}
	if len(rows) == 0 {
		return course.Enrollment{}, course.ErrNotEnrolled
	}
	return rows[0].enrollment(), nil
}

func (repo *courseRepository) GetEnrollment(ctx context.Context, userID, courseID string, exec ...core.DBExecutor) (course.Enrollment, error) {
	return repo.getEnrollment(ctx, repo.getExec(exec),
		`SELECT * FROM enrollment WHERE user_id = $1 AND course_id = $2`, userID, courseID)
}

func (repo *courseRepository) LockEnrollment(ctx context.Context, userID, courseID string, exec core.DBExecutor) (course.Enrollment, error) {
	return repo.getEnrollment(ctx, repo.getExec([]core.DBExecutor{exec}),
		`SELECT * FROM enrollment WHERE user_id = $1 AND course_id = $2 FOR UPDATE`, userID, courseID)
}
