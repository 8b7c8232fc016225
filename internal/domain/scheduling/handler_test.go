package scheduling

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/docbook/docbook/internal/platform/auth"
)

func newTestHandler() (*Handler, *Service, *mockDirectory) {
	svc, _, _, dir := newTestService()
	return NewHandler(svc), svc, dir
}

func actorRequest(method, target, body string, actor auth.Actor) *http.Request {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	return req.WithContext(auth.WithActor(req.Context(), actor))
}

func TestHandlerCreateSlot(t *testing.T) {
	h, _, dir := newTestHandler()
	doctor := approvedDoctor(dir)
	e := echo.New()

	body := `{"slot_date":"2026-03-02","start_time":"09:00","end_time":"09:30"}`
	req := actorRequest(http.MethodPost, "/api/v1/slots", body, doctor)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.CreateSlot(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	var slot Slot
	if err := json.Unmarshal(rec.Body.Bytes(), &slot); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if slot.DoctorID != doctor.ID {
		t.Error("slot must belong to the requesting doctor")
	}
}

func TestHandlerCreateSlot_BadWindow(t *testing.T) {
	h, _, dir := newTestHandler()
	doctor := approvedDoctor(dir)
	e := echo.New()

	body := `{"slot_date":"2026-03-02","start_time":"10:00","end_time":"09:00"}`
	req := actorRequest(http.MethodPost, "/api/v1/slots", body, doctor)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.CreateSlot(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}

func TestHandlerBook(t *testing.T) {
	h, svc, dir := newTestHandler()
	doctor := approvedDoctor(dir)
	pat := patient()
	e := echo.New()

	slot := mustCreateSlot(t, svc, doctor, "2026-03-02", "09:00", "09:30")

	body := `{"slot_id":"` + slot.ID.String() + `","reason":"checkup"}`
	req := actorRequest(http.MethodPost, "/api/v1/appointments", body, pat)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Book(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
}

func TestHandlerBook_Conflict(t *testing.T) {
	h, svc, dir := newTestHandler()
	doctor := approvedDoctor(dir)
	e := echo.New()

	slot := mustCreateSlot(t, svc, doctor, "2026-03-02", "09:00", "09:30")
	if _, err := svc.Book(context.Background(), patient(), BookInput{SlotID: slot.ID}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	body := `{"slot_id":"` + slot.ID.String() + `"}`
	req := actorRequest(http.MethodPost, "/api/v1/appointments", body, patient())
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.Book(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusConflict {
		t.Errorf("expected 409, got %v", err)
	}
}

func TestHandlerCancel(t *testing.T) {
	h, svc, dir := newTestHandler()
	doctor := approvedDoctor(dir)
	pat := patient()
	e := echo.New()

	slot := mustCreateSlot(t, svc, doctor, "2026-03-02", "09:00", "09:30")
	appt, err := svc.Book(context.Background(), pat, BookInput{SlotID: slot.ID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req := actorRequest(http.MethodPost, "/api/v1/appointments/"+appt.ID.String()+"/cancel", "", pat)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(appt.ID.String())

	if err := h.Cancel(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"cancelled"`) {
		t.Error("expected cancelled status in response")
	}
}

func TestHandlerCancel_WithReason(t *testing.T) {
	h, svc, dir := newTestHandler()
	doctor := approvedDoctor(dir)
	pat := patient()
	e := echo.New()

	slot := mustCreateSlot(t, svc, doctor, "2026-03-02", "09:00", "09:30")
	appt, err := svc.Book(context.Background(), pat, BookInput{SlotID: slot.ID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	body := `{"reason":"conflict with work"}`
	req := actorRequest(http.MethodPost, "/api/v1/appointments/"+appt.ID.String()+"/cancel", body, pat)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(appt.ID.String())

	if err := h.Cancel(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"cancellation_reason":"conflict with work"`) {
		t.Errorf("expected cancellation reason in response, got %s", rec.Body.String())
	}
}

func TestHandlerComplete_TerminalConflict(t *testing.T) {
	h, svc, dir := newTestHandler()
	doctor := approvedDoctor(dir)
	pat := patient()
	e := echo.New()

	slot := mustCreateSlot(t, svc, doctor, "2026-03-02", "09:00", "09:30")
	appt, _ := svc.Book(context.Background(), pat, BookInput{SlotID: slot.ID})
	svc.Cancel(context.Background(), pat, appt.ID, CancelInput{})

	req := actorRequest(http.MethodPost, "/api/v1/appointments/"+appt.ID.String()+"/complete", "", doctor)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(appt.ID.String())

	err := h.Complete(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422 for terminal appointment, got %v", err)
	}
}

func TestHandlerListFreeSlots(t *testing.T) {
	h, svc, dir := newTestHandler()
	doctor := approvedDoctor(dir)
	e := echo.New()

	mustCreateSlot(t, svc, doctor, "2026-03-02", "09:00", "09:30")

	req := actorRequest(http.MethodGet, "/api/v1/doctors/"+doctor.ID.String()+"/slots", "", patient())
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(doctor.ID.String())

	if err := h.ListFreeSlots(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"total":1`) {
		t.Errorf("expected 1 slot in response, got %s", rec.Body.String())
	}
}

func TestHandlerDeleteSlot(t *testing.T) {
	h, svc, dir := newTestHandler()
	doctor := approvedDoctor(dir)
	e := echo.New()

	slot := mustCreateSlot(t, svc, doctor, "2026-03-02", "09:00", "09:30")

	req := actorRequest(http.MethodDelete, "/api/v1/slots/"+slot.ID.String(), "", doctor)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(slot.ID.String())

	if err := h.DeleteSlot(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
}

func TestHandlerGetAppointment_Unauthenticated(t *testing.T) {
	h, _, _ := newTestHandler()
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/appointments/"+uuid.NewString(), nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.GetAppointment(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %v", err)
	}
}
