package tests

import (
	"context"
	"encoding/json"
	"net/http"
	"regexp"
	"testing"
	"time"

	"github.com/evolvere-edu/evolvere/core/session"
	"github.com/evolvere-edu/evolvere/core/user"
	emailsvc "github.com/evolvere-edu/evolvere/services/email"
	testutil "github.com/evolvere-edu/evolvere/tests"
)

var registrationRx = regexp.MustCompile(`^\d{8}$`)

func Test_userApi_register(t *testing.T) {
	e := setup(t)

	body := marchallObj(t, map[string]interface{}{
		"name":             "Jane Doe",
		"username":         "janedoe",
		"email":            "jane@test.cd",
		"password":         "s3cr3t-pwd",
		"password_confirm": "s3cr3t-pwd",
	})

	sentBefore := len(emailsvc.SentMessages)

	req, rec := newRequest(http.MethodPost, "/v1/users/register", body)
	e.app.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("register failed! code = %v, body = %s", rec.Code, rec.Body.String())
	}

	var usr user.User
	if err := json.Unmarshal(rec.Body.Bytes(), &usr); err != nil {
		t.Fatalf("unmarshalling response: %v", err)
	}
	if usr.Role != user.RoleStudent {
		t.Errorf("Role = %d; want %d", usr.Role, user.RoleStudent)
	}
	if !usr.IsActive {
		t.Error("expected an active user")
	}
	if !registrationRx.MatchString(usr.Registration) {
		t.Errorf("Registration = %q; want an 8-digit code", usr.Registration)
	}
	if len(emailsvc.SentMessages) != sentBefore+1 {
		t.Error("expected a welcome email")
	}

	// duplicate username is rejected
	req, rec = newRequest(http.MethodPost, "/v1/users/register", body)
	e.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("duplicate register code = %v; want %v", rec.Code, http.StatusBadRequest)
	}
}

func Test_userApi_login(t *testing.T) {
	e := setup(t)

	usr := testutil.CreateUser(t, e.usrRepo, "User", "awe123", "awe@test.cd", "mdr123", user.RoleStudent, true)
	inactive := testutil.CreateUser(t, e.usrRepo, "Naughty", "ndog12", "ndog@test.cd", "mdr123", user.RoleStudent, false)

	tests := []httpTest{
		{
			name:     "empty credentials",
			body:     marchallObj(t, map[string]string{}),
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "unknown user",
			body:     marchallObj(t, map[string]string{"username": "lol", "password": "lol"}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name:     "wrong password",
			body:     marchallObj(t, map[string]string{"username": usr.Username, "password": "lol"}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name:     "deactivated account",
			body:     marchallObj(t, map[string]string{"username": inactive.Username, "password": "mdr123"}),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
		{
			name:     "login with username",
			body:     marchallObj(t, map[string]string{"username": usr.Username, "password": "mdr123"}),
			wantCode: http.StatusOK,
		},
		{
			name:     "login with email",
			body:     marchallObj(t, map[string]string{"username": usr.Email, "password": "mdr123"}),
			wantCode: http.StatusOK,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, "/v1/users/login", tt.body)
			e.app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)

			if tt.wantCode == http.StatusOK {
				var found bool
				for _, cookie := range rec.Result().Cookies() {
					if cookie.Name == sessionCookieName && cookie.Value != "" {
						found = true
					}
				}
				if !found {
					t.Error("expected a session cookie")
				}
			}
		})
	}
}

func Test_userApi_me(t *testing.T) {
	e := setup(t)

	usr := testutil.CreateUser(t, e.usrRepo, "User", "awe123", "awe@test.cd", "mdr123", user.RoleStudent, true)
	token := e.logIn(t, usr)

	tests := []httpTest{
		{
			name:     "anonymous",
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errUnauthorized),
		},
		{
			name:     "bogus session",
			token:    "deadbeef",
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errUnauthorized),
		},
		{
			name:     "me",
			token:    token,
			wantCode: http.StatusOK,
			wantData: marchallObj(t, usr),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, "/v1/users/me", tt.token)
			e.app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_logout(t *testing.T) {
	e := setup(t)

	usr := testutil.CreateUser(t, e.usrRepo, "User", "awe123", "awe@test.cd", "mdr123", user.RoleStudent, true)
	token := e.logIn(t, usr)

	req, rec := newAuthRequest(http.MethodPost, "/v1/users/logout", token)
	e.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("logout code = %v; want %v", rec.Code, http.StatusOK)
	}

	// the session is gone
	req, rec = newAuthRequest(http.MethodGet, "/v1/users/me", token)
	e.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("me after logout code = %v; want %v", rec.Code, http.StatusUnauthorized)
	}
}

func Test_userApi_query_permissions(t *testing.T) {
	e := setup(t)

	student := testutil.CreateUser(t, e.usrRepo, "Hero", "hero12", "hero@test.cd", "mdr123", user.RoleStudent, true)
	admin := testutil.CreateUser(t, e.usrRepo, "Admin", "admin1", "admin@test.cd", "mdr123", user.RoleAdmin, true)

	tests := []httpTest{
		{
			name:     "student cannot list users",
			token:    e.logIn(t, student),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errForbidden),
		},
		{
			name:     "admin lists users",
			token:    e.logIn(t, admin),
			wantCode: http.StatusOK,
			wantData: marchallList(t, student, admin),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, "/v1/users", tt.token)
			e.app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_passwordReset(t *testing.T) {
	e := setup(t)

	testutil.CreateUser(t, e.usrRepo, "User", "awe123", "awe@test.cd", "mdr123", user.RoleStudent, true)

	sentBefore := len(emailsvc.SentMessages)

	// unknown emails are not revealed
	body := marchallObj(t, map[string]string{"email": "ghost@test.cd"})
	req, rec := newRequest(http.MethodPost, "/v1/users/password-reset", body)
	e.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("password-reset code = %v; want %v", rec.Code, http.StatusOK)
	}
	if len(emailsvc.SentMessages) != sentBefore {
		t.Error("no email expected for an unknown address")
	}

	body = marchallObj(t, map[string]string{"email": "awe@test.cd"})
	req, rec = newRequest(http.MethodPost, "/v1/users/password-reset", body)
	e.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("password-reset code = %v; want %v", rec.Code, http.StatusOK)
	}
	if len(emailsvc.SentMessages) != sentBefore+1 {
		t.Error("expected a password reset email")
	}
}

func Test_userApi_expiredSession(t *testing.T) {
	e := setup(t)

	usr := testutil.CreateUser(t, e.usrRepo, "Awe", "awesome", "awe@test.cd", "passwd", user.RoleStudent, true)

	s, err := e.sessionRepo.CreateSession(context.Background(), session.Session{
		Token:     "11111111-2222-3333-4444-555555555555",
		UserID:    usr.ID,
		CreatedAt: time.Now().UTC().Add(-2 * time.Hour),
		ExpiresAt: time.Now().UTC().Add(-time.Hour),
	})
	if err != nil {
		t.Fatalf("CreateSession() failed: %v", err)
	}

	req, rec := newAuthRequest(http.MethodGet, "/v1/users/me", s.Token)
	e.app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusUnauthorized,
		wantData: marchallObj(t, errUnauthorized),
	}, rec)

	// the expired session is deleted on first use
	if _, err = e.sessionRepo.GetSession(context.Background(), s.Token); err != session.ErrNotFound {
		t.Errorf("GetSession() error = %v; want %v", err, session.ErrNotFound)
	}
}
