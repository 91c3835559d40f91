package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/evolvere-edu/evolvere/core"
	"github.com/evolvere-edu/evolvere/core/class"
)

type classRepository struct {
	db *DB
}

var _ class.Repository = (*classRepository)(nil)

func NewClassRepository(db *DB) *classRepository {
	return &classRepository{db: db}
}

func (repo *classRepository) CreateClass(ctx context.Context, c class.Class) (class.Class, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	repo.db.classPK++
	c.ID = repo.db.classPK
	repo.db.classes[c.ID] = &c
	return c, nil
}

func (repo *classRepository) GetClassByID(ctx context.Context, id int) (class.Class, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if c, ok := repo.db.classes[id]; ok {
		return *c, nil
	}
	return class.Class{}, class.ErrNotFound
}

func (repo *classRepository) FilterClasses(ctx context.Context, filter class.QueryFilter, ordering ...core.DBOrdering) ([]class.Class, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	classes := make([]class.Class, 0)
	for _, c := range repo.db.classes {
		if filter.SubjectID != 0 && c.SubjectID != filter.SubjectID {
			continue
		}
		if filter.CourseID != 0 && c.CourseID != filter.CourseID {
			continue
		}
		if filter.StudentID != 0 {
			if _, ok := repo.db.enrollments[enrollmentKey{c.ID, filter.StudentID}]; !ok {
				continue
			}
		}
		classes = append(classes, *c)
	}
	sort.Slice(classes, func(i, j int) bool { return classes[i].Name < classes[j].Name })
	return classes, nil
}

func (repo *classRepository) DeleteClass(ctx context.Context, id int) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.classes[id]; !ok {
		return class.ErrNotFound
	}
	delete(repo.db.classes, id)
	for key := range repo.db.enrollments {
		if key.classID == id {
			delete(repo.db.enrollments, key)
		}
	}
	for invID, inv := range repo.db.invites {
		if inv.ClassID == id {
			delete(repo.db.invites, invID)
		}
	}
	return nil
}

func (repo *classRepository) CreateInvite(ctx context.Context, inv class.Invite) (class.Invite, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, existing := range repo.db.invites {
		if existing.Code == inv.Code {
			return class.Invite{}, class.ErrInviteCodeTaken
		}
	}

	repo.db.invitePK++
	inv.ID = repo.db.invitePK
	repo.db.invites[inv.ID] = &inv
	return inv, nil
}

func (repo *classRepository) GetInviteByCode(ctx context.Context, code string) (class.Invite, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, inv := range repo.db.invites {
		if inv.Code == code {
			return *inv, nil
		}
	}
	return class.Invite{}, class.ErrInviteNotFound
}

// RedeemInvite performs all checks and writes under the write lock so
// concurrent redemptions serialize.
func (repo *classRepository) RedeemInvite(ctx context.Context, code string, studentID int) (class.EnrollmentResult, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	var res class.EnrollmentResult

	var inv *class.Invite
	for _, i := range repo.db.invites {
		if i.Code == code {
			inv = i
			break
		}
	}
	if inv == nil {
		return res, class.ErrInviteNotFound
	}

	switch inv.Status(time.Now().UTC()) {
	case class.InviteExpired:
		return res, class.ErrInviteExpired
	case class.InviteExhausted:
		return res, class.ErrUseLimitReached
	}

	cls, ok := repo.db.classes[inv.ClassID]
	if !ok {
		return res, class.ErrNotFound
	}

	if _, enrolled := repo.db.enrollments[enrollmentKey{cls.ID, studentID}]; enrolled {
		return res, class.ErrAlreadyEnrolled
	}

	if cls.Capacity > 0 {
		var count int
		for key := range repo.db.enrollments {
			if key.classID == cls.ID {
				count++
			}
		}
		if count >= cls.Capacity {
			return res, class.ErrClassFull
		}
	}

	repo.db.enrollments[enrollmentKey{cls.ID, studentID}] = &class.Enrollment{
		ClassID:   cls.ID,
		StudentID: studentID,
		JoinedAt:  time.Now().UTC(),
	}
	inv.UseCount++

	res.ClassID = cls.ID
	res.ClassName = cls.Name
	if course, ok := repo.db.courses[cls.CourseID]; ok {
		res.CourseName = course.Name
	}
	return res, nil
}

func (repo *classRepository) QueryEnrollments(ctx context.Context, classID int) ([]class.Enrollment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	enrollments := make([]class.Enrollment, 0)
	for key, e := range repo.db.enrollments {
		if key.classID == classID {
			enrollments = append(enrollments, *e)
		}
	}
	sort.Slice(enrollments, func(i, j int) bool { return enrollments[i].JoinedAt.Before(enrollments[j].JoinedAt) })
	return enrollments, nil
}

func (repo *classRepository) QueryStudentClassIDs(ctx context.Context, studentID int) ([]int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	ids := make([]int, 0)
	for key := range repo.db.enrollments {
		if key.studentID == studentID {
			ids = append(ids, key.classID)
		}
	}
	sort.Ints(ids)
	return ids, nil
}
