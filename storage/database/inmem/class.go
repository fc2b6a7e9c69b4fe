package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/darasa/core/access"
	"github.com/trezcool/darasa/core/class"
)

type classRepository struct {
	db *DB
}

var _ class.Repository = (*classRepository)(nil) // interface compliance check

func NewClassRepository(db *DB) *classRepository {
	return &classRepository{db: db}
}

// fill sets the joined fields of `c`. Must be called with the lock held.
func (repo *classRepository) fill(c class.Class) class.Class {
	if sub, ok := repo.db.subjects[c.SubjectID]; ok {
		c.SubjectName = sub.Name
	}
	c.TeacherName = repo.db.userName(c.TeacherID)
	c.StudentCount = 0
	for _, e := range repo.db.enrollments {
		if e.ClassID == c.ID {
			c.StudentCount++
		}
	}
	return c
}

func (repo *classRepository) isEnrolled(classID, studentID int) bool {
	for _, e := range repo.db.enrollments {
		if e.ClassID == classID && e.StudentID == studentID {
			return true
		}
	}
	return false
}

func (repo *classRepository) QueryClasses(ctx context.Context, scope access.ClassScope, filter class.QueryFilter) ([]class.Class, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	classes := make([]class.Class, 0)
	for _, c := range repo.db.classes {
		switch scope.Kind {
		case access.ScopeTeacher:
			if c.TeacherID != scope.UserID {
				continue
			}
		case access.ScopeStudent:
			if !repo.isEnrolled(c.ID, scope.UserID) {
				continue
			}
		case access.ScopeOrganization:
			if c.OrganizationID == 0 || c.OrganizationID != scope.OrganizationID {
				continue
			}
		default:
			continue
		}
		if (filter.SubjectID != 0 && c.SubjectID != filter.SubjectID) ||
			(filter.GradeLevel != 0 && c.GradeLevel != filter.GradeLevel) {
			continue
		}
		classes = append(classes, repo.fill(*c))
	}

	sort.Slice(classes, func(i, j int) bool {
		a, b := classes[i], classes[j]
		if a.GradeLevel != b.GradeLevel {
			return a.GradeLevel < b.GradeLevel
		}
		if a.SubjectName != b.SubjectName {
			return a.SubjectName < b.SubjectName
		}
		return a.ID < b.ID
	})
	return classes, nil
}

func (repo *classRepository) GetClass(ctx context.Context, id int) (class.Class, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if c, ok := repo.db.classes[id]; ok {
		return repo.fill(*c), nil
	}
	return class.Class{}, class.ErrNotFound
}

func (repo *classRepository) CreateClass(ctx context.Context, c class.Class) (class.Class, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	c.ID = repo.db.nextPK("class")
	repo.db.classes[c.ID] = &c
	return repo.fill(c), nil
}

func (repo *classRepository) DeleteClass(ctx context.Context, id int) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.classes[id]; !ok {
		return class.ErrNotFound
	}
	delete(repo.db.classes, id)
	for eid, e := range repo.db.enrollments {
		if e.ClassID == id {
			delete(repo.db.enrollments, eid)
		}
	}
	for rid, res := range repo.db.resources {
		if res.ClassID == id {
			delete(repo.db.resources, rid)
		}
	}
	for evtID, evt := range repo.db.events {
		if evt.ClassID == id {
			delete(repo.db.events, evtID)
		}
	}
	return nil
}

func (repo *classRepository) CreateEnrollment(ctx context.Context, e class.Enrollment) (class.Enrollment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if repo.isEnrolled(e.ClassID, e.StudentID) {
		return class.Enrollment{}, class.ErrAlreadyEnrolled
	}
	e.ID = repo.db.nextPK("enrollment")
	repo.db.enrollments[e.ID] = &e
	return e, nil
}

func (repo *classRepository) DeleteEnrollment(ctx context.Context, classID, studentID int) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for id, e := range repo.db.enrollments {
		if e.ClassID == classID && e.StudentID == studentID {
			delete(repo.db.enrollments, id)
			return nil
		}
	}
	return class.ErrEnrollmentNotFound
}

func (repo *classRepository) IsEnrolled(ctx context.Context, classID, studentID int) (bool, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.isEnrolled(classID, studentID), nil
}

func (repo *classRepository) QueryStudents(ctx context.Context, classID int) ([]class.Student, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	students := make([]class.Student, 0)
	for _, e := range repo.db.enrollments {
		if e.ClassID != classID {
			continue
		}
		usr, ok := repo.db.users[e.StudentID]
		if !ok {
			continue
		}
		students = append(students, class.Student{
			ID:         usr.ID,
			Username:   usr.Username,
			Email:      usr.Email,
			FirstName:  usr.FirstName,
			LastName:   usr.LastName,
			EnrolledAt: e.EnrolledAt,
		})
	}
	sort.Slice(students, func(i, j int) bool { return students[i].Username < students[j].Username })
	return students, nil
}

func (repo *classRepository) CountStudents(ctx context.Context, classIDs []int) (int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	seen := make(map[int]bool)
	for _, e := range repo.db.enrollments {
		if containsInt(classIDs, e.ClassID) {
			seen[e.StudentID] = true
		}
	}
	return len(seen), nil
}
