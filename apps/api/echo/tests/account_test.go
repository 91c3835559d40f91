package tests

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/evolvere-edu/evolvere/core/account"
	"github.com/evolvere-edu/evolvere/core/user"
	emailsvc "github.com/evolvere-edu/evolvere/services/email"
	testutil "github.com/evolvere-edu/evolvere/tests"
)

func Test_accountApi_flow(t *testing.T) {
	e := setup(t)

	applicant := testutil.CreateUser(t, e.usrRepo, "Applicant", "appli1", "appli@test.cd", "mdr123", user.RoleStudent, true)
	admin := testutil.CreateUser(t, e.usrRepo, "Admin", "admin1", "admin@test.cd", "mdr123", user.RoleAdmin, true)
	c := testutil.CreateCourse(t, e.courseRepo, "cs101", "Computer Science")

	applicantToken := e.logIn(t, applicant)
	adminToken := e.logIn(t, admin)

	body := marchallObj(t, map[string]interface{}{
		"institution":  "Test University",
		"access_code":  c.Code,
		"diploma_path": "diplomas/appli.pdf",
		"role":         user.RoleTeacher,
	})

	// an unknown access code is rejected
	bad := marchallObj(t, map[string]interface{}{
		"institution":  "Test University",
		"access_code":  "nope",
		"diploma_path": "diplomas/appli.pdf",
		"role":         user.RoleTeacher,
	})
	req, rec := newAuthRequest(http.MethodPost, "/v1/accounts", applicantToken, bad)
	e.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown access code = %v; want %v", rec.Code, http.StatusBadRequest)
	}

	req, rec = newAuthRequest(http.MethodPost, "/v1/accounts", applicantToken, body)
	e.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("submit code = %v, body = %s", rec.Code, rec.Body.String())
	}
	var request account.Request
	if err := json.Unmarshal(rec.Body.Bytes(), &request); err != nil {
		t.Fatalf("unmarshalling response: %v", err)
	}

	// only one pending request per user
	req, rec = newAuthRequest(http.MethodPost, "/v1/accounts", applicantToken, body)
	e.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusConflict {
		t.Errorf("resubmit code = %v; want %v", rec.Code, http.StatusConflict)
	}

	// students cannot see the queue
	req, rec = newAuthRequest(http.MethodGet, "/v1/accounts/pending", applicantToken)
	e.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("student pending code = %v; want %v", rec.Code, http.StatusForbidden)
	}

	req, rec = newAuthRequest(http.MethodGet, "/v1/accounts/pending", adminToken)
	e.app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallList(t, request)}, rec)

	// approval promotes the user and sends a decision email
	sentBefore := len(emailsvc.SentMessages)
	req, rec = newAuthRequest(http.MethodPost, fmt.Sprintf("/v1/accounts/%d/approve", request.ID), adminToken)
	e.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("approve code = %v, body = %s", rec.Code, rec.Body.String())
	}
	if len(emailsvc.SentMessages) != sentBefore+1 {
		t.Error("expected a decision email")
	}

	promoted, err := e.usrRepo.GetUserByID(req.Context(), applicant.ID)
	if err != nil {
		t.Fatalf("GetUserByID() failed: %v", err)
	}
	if promoted.Role != user.RoleTeacher {
		t.Errorf("Role = %d; want %d", promoted.Role, user.RoleTeacher)
	}

	// the queue is empty again
	req, rec = newAuthRequest(http.MethodGet, "/v1/accounts/pending", adminToken)
	e.app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallObj(t, []account.Request{})}, rec)
}

func Test_accountApi_reject(t *testing.T) {
	e := setup(t)

	applicant := testutil.CreateUser(t, e.usrRepo, "Applicant", "appli1", "appli@test.cd", "mdr123", user.RoleStudent, true)
	admin := testutil.CreateUser(t, e.usrRepo, "Admin", "admin1", "admin@test.cd", "mdr123", user.RoleAdmin, true)
	c := testutil.CreateCourse(t, e.courseRepo, "cs101", "Computer Science")

	body := marchallObj(t, map[string]interface{}{
		"institution":  "Test University",
		"access_code":  c.Code,
		"diploma_path": "diplomas/appli.pdf",
		"role":         user.RoleCoordinator,
	})
	req, rec := newAuthRequest(http.MethodPost, "/v1/accounts", e.logIn(t, applicant), body)
	e.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("submit code = %v, body = %s", rec.Code, rec.Body.String())
	}
	var request account.Request
	if err := json.Unmarshal(rec.Body.Bytes(), &request); err != nil {
		t.Fatalf("unmarshalling response: %v", err)
	}

	req, rec = newAuthRequest(http.MethodPost, fmt.Sprintf("/v1/accounts/%d/reject", request.ID), e.logIn(t, admin))
	e.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("reject code = %v, body = %s", rec.Code, rec.Body.String())
	}

	// the user keeps their student role
	still, err := e.usrRepo.GetUserByID(req.Context(), applicant.ID)
	if err != nil {
		t.Fatalf("GetUserByID() failed: %v", err)
	}
	if still.Role != user.RoleStudent {
		t.Errorf("Role = %d; want %d", still.Role, user.RoleStudent)
	}
}
