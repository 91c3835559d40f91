package tests

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/evolvere-edu/evolvere/core/class"
	"github.com/evolvere-edu/evolvere/core/user"
	testutil "github.com/evolvere-edu/evolvere/tests"
)

var inviteCodeRx = regexp.MustCompile(`^[0-9A-F]{3}-[0-9A-F]{3}$`)

func redeemBody(t *testing.T, code string) []byte {
	return marchallObj(t, map[string]string{"code": code})
}

func Test_classApi_createInvite(t *testing.T) {
	e := setup(t)

	teacher := testutil.CreateUser(t, e.usrRepo, "Teacher", "teach1", "teach@test.cd", "mdr123", user.RoleTeacher, true)
	student := testutil.CreateUser(t, e.usrRepo, "Hero", "hero12", "hero@test.cd", "mdr123", user.RoleStudent, true)
	c := testutil.CreateCourse(t, e.courseRepo, "cs101", "Computer Science")
	subj := testutil.CreateSubject(t, e.subjectRepo, "Algorithms", teacher.ID, c.ID)
	cls := testutil.CreateClass(t, e.classRepo, "Algorithms A", 30, subj.ID, c.ID)

	// students cannot mint invites
	body := marchallObj(t, map[string]int{"max_uses": 5})
	req, rec := newAuthRequest(http.MethodPost, fmt.Sprintf("/v1/classes/%d/invites", cls.ID), e.logIn(t, student), body)
	e.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("student invite code = %v; want %v", rec.Code, http.StatusForbidden)
	}

	req, rec = newAuthRequest(http.MethodPost, fmt.Sprintf("/v1/classes/%d/invites", cls.ID), e.logIn(t, teacher), body)
	e.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("invite code = %v, body = %s", rec.Code, rec.Body.String())
	}

	var inv class.Invite
	if err := json.Unmarshal(rec.Body.Bytes(), &inv); err != nil {
		t.Fatalf("unmarshalling response: %v", err)
	}
	if !inviteCodeRx.MatchString(inv.Code) {
		t.Errorf("Code = %q; want XXX-XXX hex", inv.Code)
	}
	if !inv.MaxUses.Valid || inv.MaxUses.Int != 5 {
		t.Errorf("MaxUses = %+v; want 5", inv.MaxUses)
	}
	if inv.ExpiresAt.Valid {
		t.Error("ExpiresAt should be null when expires_in_minutes is omitted")
	}

	// unknown class
	req, rec = newAuthRequest(http.MethodPost, "/v1/classes/999/invites", e.logIn(t, teacher), body)
	e.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown class code = %v; want %v", rec.Code, http.StatusNotFound)
	}
}

func Test_classApi_redeem(t *testing.T) {
	e := setup(t)

	teacher := testutil.CreateUser(t, e.usrRepo, "Teacher", "teach1", "teach@test.cd", "mdr123", user.RoleTeacher, true)
	c := testutil.CreateCourse(t, e.courseRepo, "cs101", "Computer Science")
	subj := testutil.CreateSubject(t, e.subjectRepo, "Algorithms", teacher.ID, c.ID)
	cls := testutil.CreateClass(t, e.classRepo, "Algorithms A", 30, subj.ID, c.ID)

	inv := testutil.CreateInvite(t, e.classRepo, "ABC-123", cls.ID, null.Time{}, null.IntFrom(2))
	expired := testutil.CreateInvite(t, e.classRepo, "DEF-456", cls.ID,
		null.TimeFrom(time.Now().UTC().Add(-time.Hour)), null.Int{})

	student1 := testutil.CreateUser(t, e.usrRepo, "Hero", "hero12", "hero@test.cd", "mdr123", user.RoleStudent, true)
	student2 := testutil.CreateUser(t, e.usrRepo, "King", "king12", "king@test.cd", "mdr123", user.RoleStudent, true)
	student3 := testutil.CreateUser(t, e.usrRepo, "Late", "late12", "late@test.cd", "mdr123", user.RoleStudent, true)

	tests := []httpTest{
		{
			name:     "teacher cannot join",
			token:    e.logIn(t, teacher),
			body:     redeemBody(t, inv.Code),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errForbidden),
		},
		{
			name:     "unknown code",
			token:    e.logIn(t, student1),
			body:     redeemBody(t, "FFF-FFF"),
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: class.ErrInviteNotFound.Error()}),
		},
		{
			name:     "malformed code",
			token:    e.logIn(t, student1),
			body:     redeemBody(t, "not-a-code"),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"code": "must be a code in the form XXX-XXX"}),
		},
		{
			name:     "expired code",
			token:    e.logIn(t, student1),
			body:     redeemBody(t, expired.Code),
			wantCode: http.StatusGone,
			wantData: marchallObj(t, httpErr{Error: class.ErrInviteExpired.Error()}),
		},
		{
			name:     "first use",
			token:    e.logIn(t, student1),
			body:     redeemBody(t, inv.Code),
			wantCode: http.StatusOK,
			wantData: marchallObj(t, class.EnrollmentResult{
				ClassID:    cls.ID,
				ClassName:  cls.Name,
				CourseName: c.Name,
			}),
		},
		{
			name:     "double redeem",
			token:    e.logIn(t, student1),
			body:     redeemBody(t, inv.Code),
			wantCode: http.StatusConflict,
			wantData: marchallObj(t, httpErr{Error: class.ErrAlreadyEnrolled.Error()}),
		},
		{
			name:     "second use",
			token:    e.logIn(t, student2),
			body:     redeemBody(t, inv.Code),
			wantCode: http.StatusOK,
			wantData: marchallObj(t, class.EnrollmentResult{
				ClassID:    cls.ID,
				ClassName:  cls.Name,
				CourseName: c.Name,
			}),
		},
		{
			name:     "use limit reached",
			token:    e.logIn(t, student3),
			body:     redeemBody(t, inv.Code),
			wantCode: http.StatusConflict,
			wantData: marchallObj(t, httpErr{Error: class.ErrUseLimitReached.Error()}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, "/v1/enrollments/join-with-code", tt.token, tt.body)
			e.app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_classApi_redeem_classFull(t *testing.T) {
	e := setup(t)

	teacher := testutil.CreateUser(t, e.usrRepo, "Teacher", "teach1", "teach@test.cd", "mdr123", user.RoleTeacher, true)
	c := testutil.CreateCourse(t, e.courseRepo, "cs101", "Computer Science")
	subj := testutil.CreateSubject(t, e.subjectRepo, "Algorithms", teacher.ID, c.ID)
	cls := testutil.CreateClass(t, e.classRepo, "Tiny", 1, subj.ID, c.ID)
	inv := testutil.CreateInvite(t, e.classRepo, "ABC-123", cls.ID, null.Time{}, null.Int{})

	student1 := testutil.CreateUser(t, e.usrRepo, "Hero", "hero12", "hero@test.cd", "mdr123", user.RoleStudent, true)
	student2 := testutil.CreateUser(t, e.usrRepo, "King", "king12", "king@test.cd", "mdr123", user.RoleStudent, true)

	req, rec := newAuthRequest(http.MethodPost, "/v1/enrollments/join-with-code", e.logIn(t, student1), redeemBody(t, inv.Code))
	e.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("first join code = %v, body = %s", rec.Code, rec.Body.String())
	}

	req, rec = newAuthRequest(http.MethodPost, "/v1/enrollments/join-with-code", e.logIn(t, student2), redeemBody(t, inv.Code))
	e.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusConflict {
		t.Errorf("full class code = %v; want %v", rec.Code, http.StatusConflict)
	}

	// the enrolled student rejoining a full class reports the enrollment,
	// not the capacity
	req, rec = newAuthRequest(http.MethodPost, "/v1/enrollments/join-with-code", e.logIn(t, student1), redeemBody(t, inv.Code))
	e.app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusConflict,
		wantData: marchallObj(t, httpErr{Error: class.ErrAlreadyEnrolled.Error()}),
	}, rec)
}

// A nearly exhausted invite must admit exactly one of several concurrent
// redemptions.
func Test_classApi_redeem_concurrent(t *testing.T) {
	e := setup(t)

	teacher := testutil.CreateUser(t, e.usrRepo, "Teacher", "teach1", "teach@test.cd", "mdr123", user.RoleTeacher, true)
	c := testutil.CreateCourse(t, e.courseRepo, "cs101", "Computer Science")
	subj := testutil.CreateSubject(t, e.subjectRepo, "Algorithms", teacher.ID, c.ID)
	cls := testutil.CreateClass(t, e.classRepo, "Algorithms A", 30, subj.ID, c.ID)
	inv := testutil.CreateInvite(t, e.classRepo, "ABC-123", cls.ID, null.Time{}, null.IntFrom(1))

	const n = 10
	students := make([]user.User, n)
	for i := range students {
		students[i] = testutil.CreateUser(
			t, e.usrRepo, "Student", fmt.Sprintf("stud%02d", i), fmt.Sprintf("stud%02d@test.cd", i),
			"mdr123", user.RoleStudent, true,
		)
	}

	var succeeded int64
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(studentID int) {
			defer wg.Done()
			if _, err := e.classRepo.RedeemInvite(context.Background(), inv.Code, studentID); err == nil {
				atomic.AddInt64(&succeeded, 1)
			}
		}(students[i].ID)
	}
	wg.Wait()

	if succeeded != 1 {
		t.Errorf("succeeded = %d; want exactly 1", succeeded)
	}
}
