package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/docbook/docbook/internal/platform/auth"
)

func newTestHandler() (*Handler, *Service) {
	users := newMockUserRepo()
	doctors := newMockDoctorRepo(users)
	issuer := auth.NewTokenIssuer([]byte("0123456789abcdef0123456789abcdef"), time.Hour)
	svc := NewService(users, doctors, issuer, passthroughTx)
	return NewHandler(svc), svc
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func TestHandlerRegister(t *testing.T) {
	h, _ := newTestHandler()
	e := echo.New()

	body := `{"email":"alice@example.com","password":"password123","full_name":"Alice","role":"patient"}`
	req := jsonRequest(http.MethodPost, "/api/v1/auth/register", body)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Register(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	var session Session
	if err := json.Unmarshal(rec.Body.Bytes(), &session); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if session.Token == "" {
		t.Error("expected a token in the response")
	}
	if session.User.Email != "alice@example.com" {
		t.Errorf("unexpected email %s", session.User.Email)
	}
}

func TestHandlerRegister_InvalidPayload(t *testing.T) {
	h, _ := newTestHandler()
	e := echo.New()

	req := jsonRequest(http.MethodPost, "/api/v1/auth/register", `{"email":"not-an-email","password":"pw"}`)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.Register(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}

func TestHandlerLogin_BadCredentials(t *testing.T) {
	h, _ := newTestHandler()
	e := echo.New()

	req := jsonRequest(http.MethodPost, "/api/v1/auth/login", `{"email":"ghost@example.com","password":"password123"}`)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.Login(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %v", err)
	}
}

func TestHandlerMe(t *testing.T) {
	h, svc := newTestHandler()
	e := echo.New()

	session, err := svc.Register(context.Background(), RegisterInput{
		Email:    "alice@example.com",
		Password: "password123",
		FullName: "Alice",
		Role:     "patient",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	ctx := auth.WithActor(req.Context(), auth.Actor{ID: session.User.ID, Role: session.User.Role})
	req = req.WithContext(ctx)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Me(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "alice@example.com") {
		t.Error("expected user in response")
	}
}

func TestHandlerMe_Unauthenticated(t *testing.T) {
	h, _ := newTestHandler()
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.Me(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %v", err)
	}
}

func TestHandlerGetDoctor_InvalidID(t *testing.T) {
	h, _ := newTestHandler()
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/doctors/abc", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("not-a-uuid")

	err := h.GetDoctor(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}

func TestHandlerApproveDoctor(t *testing.T) {
	h, svc := newTestHandler()
	e := echo.New()

	id := registerDoctor(t, svc, "doc@example.com", "cardiology")

	req := jsonRequest(http.MethodPost, "/api/v1/admin/doctors/"+id.String()+"/approve", "")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(id.String())

	if err := h.ApproveDoctor(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	doctor, err := svc.GetDoctor(context.Background(), id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doctor.ApprovalStatus != ApprovalApproved {
		t.Errorf("expected approved, got %s", doctor.ApprovalStatus)
	}
}

func TestHandlerApproveDoctor_Twice(t *testing.T) {
	h, svc := newTestHandler()
	e := echo.New()

	id := registerDoctor(t, svc, "doc@example.com", "cardiology")
	if err := svc.ApproveDoctor(context.Background(), id); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req := jsonRequest(http.MethodPost, "/api/v1/admin/doctors/"+id.String()+"/reject", "")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(id.String())

	err := h.RejectDoctor(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422 for a second decision, got %v", err)
	}
}

func TestHandlerDeleteUser(t *testing.T) {
	h, svc := newTestHandler()
	e := echo.New()

	session, err := svc.Register(context.Background(), RegisterInput{
		Email:    "target@example.com",
		Password: "password123",
		FullName: "Target",
		Role:     "patient",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/admin/users/"+session.User.ID.String(), nil)
	ctx := auth.WithActor(req.Context(), auth.Actor{ID: uuid.New(), Role: auth.RoleAdmin})
	req = req.WithContext(ctx)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(session.User.ID.String())

	if err := h.DeleteUser(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
}
