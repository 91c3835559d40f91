package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync"
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	. "github.com/evolvere-edu/evolvere/apps/api/echo"
	"github.com/evolvere-edu/evolvere/core"
	"github.com/evolvere-edu/evolvere/core/account"
	"github.com/evolvere-edu/evolvere/core/class"
	"github.com/evolvere-edu/evolvere/core/course"
	"github.com/evolvere-edu/evolvere/core/form"
	"github.com/evolvere-edu/evolvere/core/material"
	"github.com/evolvere-edu/evolvere/core/session"
	"github.com/evolvere-edu/evolvere/core/subject"
	"github.com/evolvere-edu/evolvere/core/user"
	appfs "github.com/evolvere-edu/evolvere/fs"
	emailsvc "github.com/evolvere-edu/evolvere/services/email"
	logsvc "github.com/evolvere-edu/evolvere/services/logger"
	inmemdb "github.com/evolvere-edu/evolvere/storage/database/inmem"
	"github.com/evolvere-edu/evolvere/storage/files"
)

const sessionCookieName = "evolvere_session"

var (
	errUnauthorized = httpErr{Error: "user not authenticated"}
	errForbidden    = httpErr{Error: "permission denied"}

	initOnce sync.Once
)

type env struct {
	app Server

	usrRepo      user.Repository
	sessionRepo  session.Repository
	courseRepo   course.Repository
	accountRepo  account.Repository
	subjectRepo  subject.Repository
	classRepo    class.Repository
	formRepo     form.Repository
	materialRepo material.Repository

	sessionSvc *session.Service
}

func setup(t *testing.T) *env {
	t.Helper()

	conf := core.NewConfig()
	conf.Debug = false
	conf.TestMode = true

	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)
	logger.Enable(false)

	initOnce.Do(func() {
		core.ParseEmailTemplates(appfs.FS, conf, logger)
		user.InitTokens(conf)
	})

	// set up DB & repos
	db := inmemdb.NewDB()
	e := &env{
		usrRepo:      inmemdb.NewUserRepository(db),
		sessionRepo:  inmemdb.NewSessionRepository(db),
		courseRepo:   inmemdb.NewCourseRepository(db),
		accountRepo:  inmemdb.NewAccountRepository(db),
		subjectRepo:  inmemdb.NewSubjectRepository(db),
		classRepo:    inmemdb.NewClassRepository(db),
		formRepo:     inmemdb.NewFormRepository(db),
		materialRepo: inmemdb.NewMaterialRepository(db),
	}

	// set up services
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	store, err := files.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore() failed: %v", err)
	}

	usrSvc := user.NewService(e.usrRepo, mailSvc, conf)
	e.sessionSvc = session.NewService(e.sessionRepo, conf)
	courseSvc := course.NewService(e.courseRepo)
	accountSvc := account.NewService(e.accountRepo, e.usrRepo, courseSvc, mailSvc, conf)
	subjectSvc := subject.NewService(e.subjectRepo)
	classSvc := class.NewService(e.classRepo)
	formSvc := form.NewService(e.formRepo)
	materialSvc := material.NewService(e.materialRepo, store, conf)

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	// set up server
	e.app = NewServer(
		ServerDeps{
			Conf:           conf,
			Logger:         logger,
			UserSvc:        usrSvc,
			SessionSvc:     e.sessionSvc,
			AccountSvc:     accountSvc,
			CourseSvc:      courseSvc,
			SubjectSvc:     subjectSvc,
			ClassSvc:       classSvc,
			FormSvc:        formSvc,
			MaterialSvc:    materialSvc,
			Validate:       validate,
			Translator:     translator,
			DisableReqLogs: true,
		},
	)
	return e
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

// logIn opens a session for usr and returns its token.
func (e *env) logIn(t *testing.T, usr user.User) string {
	t.Helper()

	s, err := e.sessionSvc.Open(context.Background(), usr.ID)
	if err != nil {
		t.Fatalf("logIn() failed: %v", err)
	}
	return s.Token
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
	extra    interface{}
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: token})
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

// nolint
func marchallList(t *testing.T, objs ...interface{}) []byte {
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	if l1, ok := j1.([]interface{}); ok {
		if l2, ok := j2.([]interface{}); ok {
			return assert.ElementsMatch(t, l1, l2), nil
		}
	}
	return false, nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()

	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
