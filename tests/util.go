package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/evolvere-edu/evolvere/core/class"
	"github.com/evolvere-edu/evolvere/core/course"
	"github.com/evolvere-edu/evolvere/core/form"
	"github.com/evolvere-edu/evolvere/core/subject"
	"github.com/evolvere-edu/evolvere/core/user"
)

var registrationSeq int

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	role int,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	registrationSeq++
	usr := user.User{
		Name:         name,
		Username:     uname,
		Email:        email,
		Registration: fmt.Sprintf("%08d", registrationSeq),
		Role:         role,
		IsActive:     isActive,
		CreatedAt:    tstamp,
		UpdatedAt:    tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateCourse(t *testing.T, repo course.Repository, code, name string) course.Course {
	t.Helper()

	c, err := repo.CreateCourse(context.Background(), course.Course{
		Code:        code,
		Name:        name,
		Institution: "Test University",
		City:        "Testville",
		State:       "TS",
	})
	if err != nil {
		t.Fatalf("CreateCourse() failed: %v", err)
	}
	return c
}

func CreateSubject(t *testing.T, repo subject.Repository, name string, professionalID, courseID int) subject.Subject {
	t.Helper()

	s, err := repo.CreateSubject(context.Background(), subject.Subject{
		Name:           name,
		ProfessionalID: professionalID,
		CourseID:       courseID,
	})
	if err != nil {
		t.Fatalf("CreateSubject() failed: %v", err)
	}
	return s
}

func CreateClass(t *testing.T, repo class.Repository, name string, capacity, subjectID, courseID int) class.Class {
	t.Helper()

	c, err := repo.CreateClass(context.Background(), class.Class{
		Name:      name,
		Period:    "2026.2",
		Capacity:  capacity,
		SubjectID: subjectID,
		CourseID:  courseID,
	})
	if err != nil {
		t.Fatalf("CreateClass() failed: %v", err)
	}
	return c
}

func CreateInvite(
	t *testing.T,
	repo class.Repository,
	code string,
	classID int,
	expiresAt null.Time,
	maxUses null.Int,
) class.Invite {
	t.Helper()

	inv, err := repo.CreateInvite(context.Background(), class.Invite{
		Code:      code,
		ClassID:   classID,
		ExpiresAt: expiresAt,
		MaxUses:   maxUses,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateInvite() failed: %v", err)
	}
	return inv
}

// CreateForm persists a form with one choice question (two options, the
// first correct) and one open question.
func CreateForm(
	t *testing.T,
	repo form.Repository,
	title string,
	createdBy, subjectID int,
	classID null.Int,
	deadline time.Time,
) form.Form {
	t.Helper()

	f, err := repo.CreateForm(context.Background(), form.Form{
		Title:     title,
		CreatedBy: createdBy,
		SubjectID: subjectID,
		ClassID:   classID,
		Deadline:  deadline.UTC(),
		Status:    form.StatusPublished,
		Questions: []form.Question{
			{
				Text:     "Pick the right answer",
				Points:   6,
				Type:     form.QuestionChoice,
				Position: 1,
				Options: []form.Option{
					{Text: "Right", Correct: true, Position: 1},
					{Text: "Wrong", Position: 2},
				},
			},
			{
				Text:     "Explain your reasoning",
				Points:   4,
				Type:     form.QuestionOpen,
				Position: 2,
			},
		},
	})
	if err != nil {
		t.Fatalf("CreateForm() failed: %v", err)
	}
	return f
}

func Enroll(t *testing.T, repo class.Repository, code string, studentID int) class.EnrollmentResult {
	t.Helper()

	res, err := repo.RedeemInvite(context.Background(), code, studentID)
	if err != nil {
		t.Fatalf("Enroll() failed: %v", err)
	}
	return res
}
