package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/course"
)

type courseRepository struct {
	db *DB
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *DB) course.Repository {
	return &courseRepository{db: db}
}

func (repo *courseRepository) CreateCourse(_ context.Context, crs course.Course, _ ...core.DBExecutor) (course.Course, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.data.users[crs.InstructorID]; !ok {
		return course.Course{}, course.ErrInstructorNotFound
	}
	crs.ID = newID()
	repo.db.data.courses[crs.ID] = crs
	return crs, nil
}

func (repo *courseRepository) GetCourse(_ context.Context, id string, _ ...core.DBExecutor) (course.Course, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if crs, ok := repo.db.data.courses[id]; ok {
		return crs, nil
	}
	return course.Course{}, course.ErrNotFound
}

func (repo *courseRepository) QueryCourses(_ context.Context, filter course.QueryFilter, _ ...core.DBExecutor) ([]course.Course, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	enrolled := make(map[string]struct{})
	if filter.UserID != "" {
		for _, enr := range repo.db.data.enrollments {
			if enr.UserID == filter.UserID {
				enrolled[enr.CourseID] = struct{}{}
			}
		}
	}

	courses := make([]course.Course, 0, len(repo.db.data.courses))
	for _, crs := range repo.db.data.courses {
		if filter.UserID != "" {
			if _, ok := enrolled[crs.ID]; !ok && crs.InstructorID != filter.UserID {
				continue
			}
		}
		courses = append(courses, crs)
	}
	sort.Slice(courses, func(i, j int) bool { return courses[i].CreatedAt.After(courses[j].CreatedAt) })
	return courses, nil
}

func (repo *courseRepository) findEnrollment(userID, courseID string) (course.Enrollment, bool) {
	for _, enr := range repo.db.data.enrollments {
		if enr.UserID == userID && enr.CourseID == courseID {
			return enr, true
		}
	}
	return course.Enrollment{}, false
}

func (repo *courseRepository) CreateEnrollment(_ context.Context, enr course.Enrollment, _ ...core.DBExecutor) (course.Enrollment, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.findEnrollment(enr.UserID, enr.CourseID); ok {
		return course.Enrollment{}, course.ErrAlreadyEnrolled
	}
	enr.ID = newID()
	repo.db.data.enrollments[enr.ID] = enr
	return enr, nil
}

func (repo *courseRepository) GetEnrollment(_ context.Context, userID, courseID string, _ ...core.DBExecutor) (course.Enrollment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if enr, ok := repo.findEnrollment(userID, courseID); ok {
		return enr, nil
	}
	return course.Enrollment{}, course.ErrNotEnrolled
}

// LockEnrollment relies on DB.RunInTx serializing transactions.
func (repo *courseRepository) LockEnrollment(ctx context.Context, userID, courseID string, _ core.DBExecutor) (course.Enrollment, error) {
	return repo.GetEnrollment(ctx, userID, courseID)
}
