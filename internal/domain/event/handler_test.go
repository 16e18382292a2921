package event

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/carewatch/carewatch/internal/platform/auth"
)

func newTestHandler(repo *memRepo) *Handler {
	svc := newTestService(repo, &mockDispatcher{})
	return NewHandler(svc, NewSweeper(svc, nil, zerolog.Nop()))
}

func jsonRequest(method, target, body string, userID uuid.UUID) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	ctx := context.WithValue(req.Context(), auth.UserIDKey, userID.String())
	return req.WithContext(ctx)
}

func callWithID(h echo.HandlerFunc, req *http.Request, id string) (*httptest.ResponseRecorder, error) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(id)
	return rec, h(c)
}

func TestHandler_GetEvent_NotFound(t *testing.T) {
	h := newTestHandler(newMemRepo())
	req := jsonRequest(http.MethodGet, "/events/x", "", uuid.New())
	_, err := callWithID(h.GetEvent, req, uuid.New().String())
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %v", err)
	}
}

func TestHandler_GetEvent_BadID(t *testing.T) {
	h := newTestHandler(newMemRepo())
	req := jsonRequest(http.MethodGet, "/events/x", "", uuid.New())
	_, err := callWithID(h.GetEvent, req, "not-a-uuid")
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestHandler_ProposeChange(t *testing.T) {
	repo := newMemRepo()
	h := newTestHandler(repo)
	ev := seedEvent(t, repo)

	req := jsonRequest(http.MethodPost, "/events/x/propose",
		`{"proposed_status":"resolved","note":"patient back in bed"}`, uuid.New())
	rec, err := callWithID(h.ProposeChange, req, ev.ID.String())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var got Event
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if got.ConfirmationState != StateCaregiverUpdated {
		t.Errorf("state = %s", got.ConfirmationState)
	}
	if got.Status != "resolved" {
		t.Errorf("status = %s", got.Status)
	}
}

func TestHandler_ProposeChange_MissingStatus(t *testing.T) {
	repo := newMemRepo()
	h := newTestHandler(repo)
	ev := seedEvent(t, repo)

	req := jsonRequest(http.MethodPost, "/events/x/propose", `{}`, uuid.New())
	_, err := callWithID(h.ProposeChange, req, ev.ID.String())
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestHandler_ProposeChange_NonUUIDUser(t *testing.T) {
	repo := newMemRepo()
	h := newTestHandler(repo)
	ev := seedEvent(t, repo)

	req := httptest.NewRequest(http.MethodPost, "/events/x/propose",
		strings.NewReader(`{"proposed_status":"resolved"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req = req.WithContext(context.WithValue(req.Context(), auth.UserIDKey, "dev-user"))

	_, err := callWithID(h.ProposeChange, req, ev.ID.String())
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", err)
	}
}

func TestHandler_ConfirmChange(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, &mockDispatcher{})
	h := NewHandler(svc, NewSweeper(svc, nil, zerolog.Nop()))

	pending, _ := seedPending(t, repo, svc)
	customerID := uuid.New()

	req := jsonRequest(http.MethodPost, "/events/x/confirm", `{}`, customerID)
	rec, err := callWithID(h.ConfirmChange, req, pending.ID.String())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var got Event
	_ = json.Unmarshal(rec.Body.Bytes(), &got)
	if got.ConfirmationState != StateConfirmedByCustomer {
		t.Errorf("state = %s", got.ConfirmationState)
	}
}

func TestHandler_ConfirmChange_Conflict(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, &mockDispatcher{})
	h := NewHandler(svc, NewSweeper(svc, nil, zerolog.Nop()))

	ev := seedEvent(t, repo)
	req := jsonRequest(http.MethodPost, "/events/x/confirm", `{}`, uuid.New())
	rec, err := callWithID(h.ConfirmChange, req, ev.ID.String())
	if err != nil {
		t.Fatalf("conflicts are written as JSON, not returned: %v", err)
	}
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d", rec.Code)
	}

	var body map[string]interface{}
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if body["confirmation_state"] != string(StateDetected) {
		t.Errorf("conflict body = %v", body)
	}
}

func TestHandler_RejectChange(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, &mockDispatcher{})
	h := NewHandler(svc, NewSweeper(svc, nil, zerolog.Nop()))

	pending, _ := seedPending(t, repo, svc)

	req := jsonRequest(http.MethodPost, "/events/x/reject", `{"note":"looks fine on the feed"}`, uuid.New())
	rec, err := callWithID(h.RejectChange, req, pending.ID.String())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got Event
	_ = json.Unmarshal(rec.Body.Bytes(), &got)
	if got.ConfirmationState != StateRejectedByCustomer {
		t.Errorf("state = %s", got.ConfirmationState)
	}
	if got.Status != "open" {
		t.Errorf("status = %s, want rollback to open", got.Status)
	}
}

func TestHandler_RunSweep(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, &mockDispatcher{})
	h := NewHandler(svc, NewSweeper(svc, nil, zerolog.Nop()))

	pending, _ := seedPending(t, repo, svc)
	expireProposal(t, repo, pending.ID)

	e := echo.New()
	req := jsonRequest(http.MethodPost, "/events/sweep", "", uuid.New())
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if err := h.RunSweep(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var res SweepResult
	_ = json.Unmarshal(rec.Body.Bytes(), &res)
	if res.Approved != 1 {
		t.Errorf("result = %+v", res)
	}
	if len(res.Events) != 1 || res.Events[0].ID != pending.ID {
		t.Errorf("approved events = %+v", res.Events)
	}
}

func TestHandler_ListEvents(t *testing.T) {
	repo := newMemRepo()
	h := newTestHandler(repo)
	seedEvent(t, repo)
	seedEvent(t, repo)

	e := echo.New()
	req := jsonRequest(http.MethodGet, "/events", "", uuid.New())
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if err := h.ListEvents(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var body struct {
		Total int `json:"total"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if body.Total != 2 {
		t.Errorf("total = %d", body.Total)
	}
}
