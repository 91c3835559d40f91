// Package inmemdb provides map-backed repositories for tests and local
// development without PostgreSQL.
package inmemdb

import (
	"sync"

	"github.com/evolvere-edu/evolvere/core/account"
	"github.com/evolvere-edu/evolvere/core/class"
	"github.com/evolvere-edu/evolvere/core/course"
	"github.com/evolvere-edu/evolvere/core/form"
	"github.com/evolvere-edu/evolvere/core/material"
	"github.com/evolvere-edu/evolvere/core/session"
	"github.com/evolvere-edu/evolvere/core/subject"
	"github.com/evolvere-edu/evolvere/core/user"
)

type enrollmentKey struct {
	classID   int
	studentID int
}

type resultKey struct {
	formID int
	userID int
}

// DB holds all tables behind one mutex so multi-table operations
// (invite redemption, correction grading) stay atomic.
type DB struct {
	mu sync.RWMutex

	users       map[int]*user.User
	sessions    map[string]*session.Session
	courses     map[int]*course.Course
	requests    map[int]*account.Request
	subjects    map[int]*subject.Subject
	classes     map[int]*class.Class
	invites     map[int]*class.Invite
	enrollments map[enrollmentKey]*class.Enrollment
	forms       map[int]*form.Form
	answers     map[int]*form.Answer
	corrections map[int]*form.Correction // keyed by answer ID
	results     map[resultKey]*form.Result
	materials   map[int]*material.Material

	userPK     int
	coursePK   int
	requestPK  int
	subjectPK  int
	classPK    int
	invitePK   int
	formPK     int
	questionPK int
	optionPK   int
	answerPK   int
	materialPK int
}

func NewDB() *DB {
	return &DB{
		users:       make(map[int]*user.User),
		sessions:    make(map[string]*session.Session),
		courses:     make(map[int]*course.Course),
		requests:    make(map[int]*account.Request),
		subjects:    make(map[int]*subject.Subject),
		classes:     make(map[int]*class.Class),
		invites:     make(map[int]*class.Invite),
		enrollments: make(map[enrollmentKey]*class.Enrollment),
		forms:       make(map[int]*form.Form),
		answers:     make(map[int]*form.Answer),
		corrections: make(map[int]*form.Correction),
		results:     make(map[resultKey]*form.Result),
		materials:   make(map[int]*material.Material),
	}
}
