package tests

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/evolvere-edu/evolvere/core/form"
	"github.com/evolvere-edu/evolvere/core/user"
	testutil "github.com/evolvere-edu/evolvere/tests"
)

type formFixture struct {
	teacher user.User
	student user.User
	subject int
	class   int
}

func setupFormFixture(t *testing.T, e *env) formFixture {
	t.Helper()

	teacher := testutil.CreateUser(t, e.usrRepo, "Teacher", "teach1", "teach@test.cd", "mdr123", user.RoleTeacher, true)
	student := testutil.CreateUser(t, e.usrRepo, "Hero", "hero12", "hero@test.cd", "mdr123", user.RoleStudent, true)
	c := testutil.CreateCourse(t, e.courseRepo, "cs101", "Computer Science")
	subj := testutil.CreateSubject(t, e.subjectRepo, "Algorithms", teacher.ID, c.ID)
	cls := testutil.CreateClass(t, e.classRepo, "Algorithms A", 30, subj.ID, c.ID)
	inv := testutil.CreateInvite(t, e.classRepo, "ABC-123", cls.ID, null.Time{}, null.Int{})
	testutil.Enroll(t, e.classRepo, inv.Code, student.ID)

	return formFixture{teacher: teacher, student: student, subject: subj.ID, class: cls.ID}
}

func publishBody(t *testing.T, title string, subjectID, classID int, deadline time.Time) []byte {
	return marchallObj(t, map[string]interface{}{
		"title":      title,
		"subject_id": subjectID,
		"class_id":   classID,
		"deadline":   deadline.Format(time.RFC3339),
		"questions": []map[string]interface{}{
			{
				"text":   "Pick the right answer",
				"points": 6,
				"type":   "choice",
				"options": []map[string]interface{}{
					{"text": "Right", "correct": true},
					{"text": "Wrong"},
				},
			},
			{
				"text":   "Explain your reasoning",
				"points": 4,
				"type":   "open",
			},
		},
	})
}

func Test_formApi_publish(t *testing.T) {
	e := setup(t)
	fx := setupFormFixture(t, e)

	deadline := time.Now().UTC().Add(72 * time.Hour)
	body := publishBody(t, "Quiz 1", fx.subject, fx.class, deadline)

	// students cannot publish
	req, rec := newAuthRequest(http.MethodPost, "/v1/forms", e.logIn(t, fx.student), body)
	e.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("student publish code = %v; want %v", rec.Code, http.StatusForbidden)
	}

	token := e.logIn(t, fx.teacher)
	req, rec = newAuthRequest(http.MethodPost, "/v1/forms", token, body)
	e.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("publish code = %v, body = %s", rec.Code, rec.Body.String())
	}

	var f form.Form
	if err := json.Unmarshal(rec.Body.Bytes(), &f); err != nil {
		t.Fatalf("unmarshalling response: %v", err)
	}
	if f.Status != form.StatusPublished {
		t.Errorf("Status = %d; want %d", f.Status, form.StatusPublished)
	}
	if len(f.Questions) != 2 {
		t.Fatalf("len(Questions) = %d; want 2", len(f.Questions))
	}
	if len(f.Questions[0].Options) != 2 {
		t.Errorf("len(Options) = %d; want 2", len(f.Questions[0].Options))
	}

	// same title, subject and class is a conflict
	req, rec = newAuthRequest(http.MethodPost, "/v1/forms", token, body)
	e.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate publish code = %v; want %v", rec.Code, http.StatusConflict)
	}

	// a choice question without a correct option is invalid
	bad := marchallObj(t, map[string]interface{}{
		"title":      "Quiz 2",
		"subject_id": fx.subject,
		"deadline":   deadline.Format(time.RFC3339),
		"questions": []map[string]interface{}{
			{
				"text":   "Impossible",
				"points": 2,
				"type":   "choice",
				"options": []map[string]interface{}{
					{"text": "Wrong"},
					{"text": "Also wrong"},
				},
			},
		},
	})
	req, rec = newAuthRequest(http.MethodPost, "/v1/forms", token, bad)
	e.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid publish code = %v; want %v", rec.Code, http.StatusBadRequest)
	}

	// round-trip
	req, rec = newAuthRequest(http.MethodGet, fmt.Sprintf("/v1/forms/%d", f.ID), token)
	e.app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallObj(t, f)}, rec)
}

func Test_formApi_pending(t *testing.T) {
	e := setup(t)
	fx := setupFormFixture(t, e)

	now := time.Now().UTC()
	urgent := testutil.CreateForm(t, e.formRepo, "Urgent Quiz", fx.teacher.ID, fx.subject,
		null.IntFrom(fx.class), now.Add(48*time.Hour))
	testutil.CreateForm(t, e.formRepo, "Later Quiz", fx.teacher.ID, fx.subject,
		null.Int{}, now.Add(30*24*time.Hour))
	testutil.CreateForm(t, e.formRepo, "Past Quiz", fx.teacher.ID, fx.subject,
		null.IntFrom(fx.class), now.Add(-time.Hour))

	// a form for a class the student is not in does not show up
	other := testutil.CreateClass(t, e.classRepo, "Algorithms B", 30, fx.subject, 0)
	testutil.CreateForm(t, e.formRepo, "Other Quiz", fx.teacher.ID, fx.subject,
		null.IntFrom(other.ID), now.Add(48*time.Hour))

	token := e.logIn(t, fx.student)
	req, rec := newAuthRequest(http.MethodGet, "/v1/forms/student/pending", token)
	e.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("pending code = %v, body = %s", rec.Code, rec.Body.String())
	}

	var overview form.PendingOverview
	if err := json.Unmarshal(rec.Body.Bytes(), &overview); err != nil {
		t.Fatalf("unmarshalling response: %v", err)
	}
	if overview.PendingCount != 2 {
		t.Errorf("PendingCount = %d; want 2", overview.PendingCount)
	}
	if len(overview.UpcomingActivities) != 2 {
		t.Fatalf("len(UpcomingActivities) = %d; want 2", len(overview.UpcomingActivities))
	}
	first := overview.UpcomingActivities[0]
	if first.ID != urgent.ID {
		t.Errorf("first pending = %d; want the nearest deadline (%d)", first.ID, urgent.ID)
	}
	if first.UrgencyLabel != "Urgente" {
		t.Errorf("UrgencyLabel = %q; want %q", first.UrgencyLabel, "Urgente")
	}

	// answering removes the form from the pending list
	answers := marchallObj(t, map[string]interface{}{
		"form_id": urgent.ID,
		"answers": []map[string]interface{}{
			{"question_id": urgent.Questions[0].ID, "option_id": urgent.Questions[0].Options[0].ID},
			{"question_id": urgent.Questions[1].ID, "open_answer": "Because it is right."},
		},
	})
	req, rec = newAuthRequest(http.MethodPost, "/v1/forms/answers", token, answers)
	e.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("answers code = %v, body = %s", rec.Code, rec.Body.String())
	}

	req, rec = newAuthRequest(http.MethodGet, "/v1/forms/student/pending", token)
	e.app.ServeHTTP(rec, req)
	if err := json.Unmarshal(rec.Body.Bytes(), &overview); err != nil {
		t.Fatalf("unmarshalling response: %v", err)
	}
	if overview.PendingCount != 1 {
		t.Errorf("PendingCount after answering = %d; want 1", overview.PendingCount)
	}
}

func Test_formApi_answers(t *testing.T) {
	e := setup(t)
	fx := setupFormFixture(t, e)

	now := time.Now().UTC()
	f := testutil.CreateForm(t, e.formRepo, "Quiz 1", fx.teacher.ID, fx.subject,
		null.IntFrom(fx.class), now.Add(48*time.Hour))
	past := testutil.CreateForm(t, e.formRepo, "Past Quiz", fx.teacher.ID, fx.subject,
		null.IntFrom(fx.class), now.Add(-time.Hour))

	answersFor := func(f form.Form) []byte {
		return marchallObj(t, map[string]interface{}{
			"form_id": f.ID,
			"answers": []map[string]interface{}{
				{"question_id": f.Questions[0].ID, "option_id": f.Questions[0].Options[0].ID},
				{"question_id": f.Questions[1].ID, "open_answer": "Because it is right."},
			},
		})
	}

	token := e.logIn(t, fx.student)

	tests := []httpTest{
		{
			name:     "deadline passed",
			body:     answersFor(past),
			wantCode: http.StatusUnprocessableEntity,
			wantData: marchallObj(t, httpErr{Error: form.ErrDeadlinePassed.Error()}),
		},
		{
			name: "neither option nor text",
			body: marchallObj(t, map[string]interface{}{
				"form_id": f.ID,
				"answers": []map[string]interface{}{{"question_id": f.Questions[0].ID}},
			}),
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "submit",
			body:     answersFor(f),
			wantCode: http.StatusCreated,
		},
		{
			name:     "resubmit",
			body:     answersFor(f),
			wantCode: http.StatusConflict,
			wantData: marchallObj(t, httpErr{Error: form.ErrAlreadyAnswered.Error()}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, "/v1/forms/answers", token, tt.body)
			e.app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_formApi_correctionAndReport(t *testing.T) {
	e := setup(t)
	fx := setupFormFixture(t, e)

	f := testutil.CreateForm(t, e.formRepo, "Quiz 1", fx.teacher.ID, fx.subject,
		null.IntFrom(fx.class), time.Now().UTC().Add(48*time.Hour))

	studentToken := e.logIn(t, fx.student)
	answers := marchallObj(t, map[string]interface{}{
		"form_id": f.ID,
		"answers": []map[string]interface{}{
			{"question_id": f.Questions[0].ID, "option_id": f.Questions[0].Options[0].ID}, // correct, 6 pts
			{"question_id": f.Questions[1].ID, "open_answer": "Because it is right."},
		},
	})
	req, rec := newAuthRequest(http.MethodPost, "/v1/forms/answers", studentToken, answers)
	e.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("answers code = %v, body = %s", rec.Code, rec.Body.String())
	}

	// before correction, the report is empty
	req, rec = newAuthRequest(http.MethodGet, "/v1/performance/me", studentToken)
	e.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("report code = %v, body = %s", rec.Code, rec.Body.String())
	}
	var report form.Report
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatalf("unmarshalling response: %v", err)
	}
	if report.OverallAverage != 0 || len(report.Disciplines) != 0 {
		t.Errorf("report = %+v; want an empty report before correction", report)
	}

	// the open answer awaits correction
	teacherToken := e.logIn(t, fx.teacher)
	req, rec = newAuthRequest(http.MethodGet, fmt.Sprintf("/v1/forms/correction/%d", fx.subject), teacherToken)
	e.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("correction list code = %v, body = %s", rec.Code, rec.Body.String())
	}
	var items []form.OpenAnswerItem
	if err := json.Unmarshal(rec.Body.Bytes(), &items); err != nil {
		t.Fatalf("unmarshalling response: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("len(items) = %d; want 1", len(items))
	}
	item := items[0]
	if item.StudentID != fx.student.ID || item.FormID != f.ID || item.MaxPoints != 4 {
		t.Errorf("unexpected item: %+v", item)
	}

	// grade it
	correction := marchallObj(t, map[string]interface{}{
		"answer_id": item.AnswerID,
		"comment":   "Close, but incomplete.",
		"points":    3,
	})
	req, rec = newAuthRequest(http.MethodPost, "/v1/forms/correction", teacherToken, correction)
	e.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("correction code = %v, body = %s", rec.Code, rec.Body.String())
	}

	// the queue is now empty and the form is graded
	req, rec = newAuthRequest(http.MethodGet, fmt.Sprintf("/v1/forms/correction/%d", fx.subject), teacherToken)
	e.app.ServeHTTP(rec, req)
	if err := json.Unmarshal(rec.Body.Bytes(), &items); err != nil {
		t.Fatalf("unmarshalling response: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("len(items) = %d; want 0", len(items))
	}
	req, rec = newAuthRequest(http.MethodGet, fmt.Sprintf("/v1/forms/%d", f.ID), teacherToken)
	e.app.ServeHTTP(rec, req)
	var graded form.Form
	if err := json.Unmarshal(rec.Body.Bytes(), &graded); err != nil {
		t.Fatalf("unmarshalling response: %v", err)
	}
	if graded.Status != form.StatusGraded {
		t.Errorf("Status = %d; want %d", graded.Status, form.StatusGraded)
	}

	// choice (6) + graded open (3) = 9
	req, rec = newAuthRequest(http.MethodGet, "/v1/performance/me", studentToken)
	e.app.ServeHTTP(rec, req)
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatalf("unmarshalling response: %v", err)
	}
	if report.OverallAverage != 9 {
		t.Errorf("OverallAverage = %v; want 9", report.OverallAverage)
	}
	want := []form.SubjectGrade{{Name: "Algorithms", Grade: 9}}
	if len(report.Disciplines) != 1 || report.Disciplines[0] != want[0] {
		t.Errorf("Disciplines = %+v; want %+v", report.Disciplines, want)
	}
	if report.BestGrade != (form.BestGrade{Name: "Algorithms", Grade: 9}) {
		t.Errorf("BestGrade = %+v; want Algorithms/9", report.BestGrade)
	}

	// students cannot grade
	req, rec = newAuthRequest(http.MethodPost, "/v1/forms/correction", studentToken, correction)
	e.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("student correction code = %v; want %v", rec.Code, http.StatusForbidden)
	}
}

func Test_formApi_concurrentCorrection(t *testing.T) {
	e := setup(t)
	fx := setupFormFixture(t, e)

	other := testutil.CreateUser(t, e.usrRepo, "Other Student", "student2", "st2@test.cd", "mdr123", user.RoleStudent, true)
	testutil.Enroll(t, e.classRepo, "ABC-123", other.ID)

	f := testutil.CreateForm(t, e.formRepo, "Quiz 1", fx.teacher.ID, fx.subject,
		null.IntFrom(fx.class), time.Now().UTC().Add(48*time.Hour))
	openQ := f.Questions[1]

	for _, studentID := range []int{fx.student.ID, other.ID} {
		err := e.formRepo.SaveAnswers(context.Background(), []form.Answer{{
			FormID:     f.ID,
			QuestionID: openQ.ID,
			UserID:     studentID,
			OpenAnswer: null.StringFrom("because"),
		}})
		if err != nil {
			t.Fatalf("SaveAnswers() failed: %v", err)
		}
	}

	items, err := e.formRepo.QueryUngradedOpenAnswers(context.Background(), fx.subject)
	if err != nil {
		t.Fatalf("QueryUngradedOpenAnswers() failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("ungraded answers = %d; want 2", len(items))
	}

	// grading the two last open answers in parallel must still end with
	// exactly one results computation and a graded form
	var wg sync.WaitGroup
	for _, item := range items {
		wg.Add(1)
		go func(answerID int) {
			defer wg.Done()
			c := form.Correction{AnswerID: answerID, Comment: "ok", Points: 3}
			if err := e.formRepo.SaveCorrection(context.Background(), c, fx.teacher.ID); err != nil {
				t.Errorf("SaveCorrection() failed: %v", err)
			}
		}(item.AnswerID)
	}
	wg.Wait()

	got, err := e.formRepo.GetFormByID(context.Background(), f.ID)
	if err != nil {
		t.Fatalf("GetFormByID() failed: %v", err)
	}
	if got.Status != form.StatusGraded {
		t.Errorf("Status = %d; want %d", got.Status, form.StatusGraded)
	}

	items, err = e.formRepo.QueryUngradedOpenAnswers(context.Background(), fx.subject)
	if err != nil {
		t.Fatalf("QueryUngradedOpenAnswers() failed: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("ungraded answers = %d; want 0", len(items))
	}
}
