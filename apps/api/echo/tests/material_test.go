package tests

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strconv"
	"testing"

	"github.com/evolvere-edu/evolvere/core/material"
	"github.com/evolvere-edu/evolvere/core/user"
	testutil "github.com/evolvere-edu/evolvere/tests"
)

func newUploadRequest(
	t *testing.T,
	path, token, title string,
	subjectID, classID int,
	filename, contentType string,
	content []byte,
) (*http.Request, *httptest.ResponseRecorder) {
	t.Helper()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	_ = w.WriteField("title", title)
	_ = w.WriteField("subject_id", strconv.Itoa(subjectID))
	if classID > 0 {
		_ = w.WriteField("class_id", strconv.Itoa(classID))
	}

	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name="archive"; filename=%q`, filename))
	hdr.Set("Content-Type", contentType)
	part, err := w.CreatePart(hdr)
	if err != nil {
		t.Fatalf("CreatePart() failed: %v", err)
	}
	if _, err = part.Write(content); err != nil {
		t.Fatalf("part.Write() failed: %v", err)
	}
	if err = w.Close(); err != nil {
		t.Fatalf("multipart.Close() failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	if token != "" {
		req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: token})
	}
	return req, httptest.NewRecorder()
}

func Test_materialApi_upload(t *testing.T) {
	e := setup(t)
	fx := setupFormFixture(t, e)

	token := e.logIn(t, fx.teacher)
	pdf := []byte("%PDF-1.4 fake")

	// students cannot upload
	req, rec := newUploadRequest(t, "/v1/materials", e.logIn(t, fx.student),
		"Lecture notes", fx.subject, 0, "notes.pdf", "application/pdf", pdf)
	e.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("student upload code = %v; want %v", rec.Code, http.StatusForbidden)
	}

	// unsupported content type
	req, rec = newUploadRequest(t, "/v1/materials", token,
		"Script", fx.subject, 0, "notes.sh", "application/x-sh", pdf)
	e.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnsupportedMediaType {
		t.Errorf("unsupported type code = %v; want %v", rec.Code, http.StatusUnsupportedMediaType)
	}

	// subject-wide upload
	req, rec = newUploadRequest(t, "/v1/materials", token,
		"Lecture notes", fx.subject, 0, "notes.pdf", "application/pdf", pdf)
	e.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload code = %v, body = %s", rec.Code, rec.Body.String())
	}
	var m material.Material
	if err := json.Unmarshal(rec.Body.Bytes(), &m); err != nil {
		t.Fatalf("unmarshalling response: %v", err)
	}
	if m.Origin != material.OriginSubject {
		t.Errorf("Origin = %d; want %d", m.Origin, material.OriginSubject)
	}
	if m.Type != "application/pdf" {
		t.Errorf("Type = %q; want application/pdf", m.Type)
	}

	// class-specific upload
	req, rec = newUploadRequest(t, "/v1/materials", token,
		"Class slides", fx.subject, fx.class, "slides.pdf", "application/pdf", pdf)
	e.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("class upload code = %v, body = %s", rec.Code, rec.Body.String())
	}

	// subject-only query sees just the subject-wide material
	req2, rec2 := newAuthRequest(http.MethodGet, fmt.Sprintf("/v1/materials?subject=%d", fx.subject), token)
	e.app.ServeHTTP(rec2, req2)
	var materials []material.Material
	if err := json.Unmarshal(rec2.Body.Bytes(), &materials); err != nil {
		t.Fatalf("unmarshalling response: %v", err)
	}
	if len(materials) != 1 {
		t.Errorf("len(materials) = %d; want 1", len(materials))
	}

	// class query sees both
	req2, rec2 = newAuthRequest(http.MethodGet, fmt.Sprintf("/v1/materials?subject=%d&class=%d", fx.subject, fx.class), token)
	e.app.ServeHTTP(rec2, req2)
	if err := json.Unmarshal(rec2.Body.Bytes(), &materials); err != nil {
		t.Fatalf("unmarshalling response: %v", err)
	}
	if len(materials) != 2 {
		t.Errorf("len(materials) = %d; want 2", len(materials))
	}
}

func Test_materialApi_delete(t *testing.T) {
	e := setup(t)
	fx := setupFormFixture(t, e)

	other := testutil.CreateUser(t, e.usrRepo, "Other", "other1", "other@test.cd", "mdr123", user.RoleTeacher, true)

	token := e.logIn(t, fx.teacher)
	req, rec := newUploadRequest(t, "/v1/materials", token,
		"Lecture notes", fx.subject, 0, "notes.pdf", "application/pdf", []byte("%PDF-1.4 fake"))
	e.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload code = %v, body = %s", rec.Code, rec.Body.String())
	}
	var m material.Material
	if err := json.Unmarshal(rec.Body.Bytes(), &m); err != nil {
		t.Fatalf("unmarshalling response: %v", err)
	}

	// only the uploader may delete
	req2, rec2 := newAuthRequest(http.MethodDelete, fmt.Sprintf("/v1/materials/%d", m.ID), e.logIn(t, other))
	e.app.ServeHTTP(rec2, req2)
	if rec2.Code != http.StatusForbidden {
		t.Errorf("foreign delete code = %v; want %v", rec2.Code, http.StatusForbidden)
	}

	req2, rec2 = newAuthRequest(http.MethodDelete, fmt.Sprintf("/v1/materials/%d", m.ID), token)
	e.app.ServeHTTP(rec2, req2)
	if rec2.Code != http.StatusNoContent {
		t.Errorf("delete code = %v; want %v", rec2.Code, http.StatusNoContent)
	}

	req2, rec2 = newAuthRequest(http.MethodDelete, fmt.Sprintf("/v1/materials/%d", m.ID), token)
	e.app.ServeHTTP(rec2, req2)
	if rec2.Code != http.StatusNotFound {
		t.Errorf("delete again code = %v; want %v", rec2.Code, http.StatusNotFound)
	}
}
