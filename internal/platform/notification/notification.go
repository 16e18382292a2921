// Package notification provides the push/in-app alerting system used by the
// event confirmation workflow: template rendering, in-memory storage, retry
// logic, and Echo HTTP handlers for the in-app feed.
package notification

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Channel represents how a notification is delivered to a user.
type Channel string

const (
	ChannelPush  Channel = "push"
	ChannelInApp Channel = "in_app"
)

// Notification represents a single outbound alert addressed to a user ID.
type Notification struct {
	ID           string            `json:"id"`
	Channel      Channel           `json:"channel"`
	UserID       string            `json:"user_id"`
	Title        string            `json:"title"`
	Body         string            `json:"body"`
	TemplateID   string            `json:"template_id,omitempty"`
	TemplateData map[string]string `json:"template_data,omitempty"`
	Data         map[string]string `json:"data,omitempty"`
	Status       string            `json:"status"`
	CreatedAt    time.Time         `json:"created_at"`
	SentAt       *time.Time        `json:"sent_at,omitempty"`
	ReadAt       *time.Time        `json:"read_at,omitempty"`
	Error        string            `json:"error,omitempty"`
}

// PushSender delivers push notifications to a user's registered devices.
// The real transport (FCM) lives outside this service.
type PushSender interface {
	SendPush(ctx context.Context, userID, title, body string, data map[string]string) error
}

// Template defines a reusable notification template.
type Template struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Title   string  `json:"title"`
	Body    string  `json:"body"`
	Channel Channel `json:"channel"`
}

// TemplateEngine manages notification templates and renders them with data.
type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

// Built-in template IDs for the confirmation workflow.
const (
	TemplateProposalSubmitted    = "proposal-submitted"
	TemplateProposalConfirmed    = "proposal-confirmed"
	TemplateProposalRejected     = "proposal-rejected"
	TemplateProposalAutoApproved = "proposal-auto-approved"
)

// NewTemplateEngine creates a TemplateEngine with the built-in templates
// pre-registered.
func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{
		templates: make(map[string]*Template),
	}
	e.registerBuiltIn()
	return e
}

func (e *TemplateEngine) registerBuiltIn() {
	builtIn := []Template{
		{
			ID:      TemplateProposalSubmitted,
			Name:    "Proposal Submitted",
			Title:   "Event update proposed for {{patient_name}}",
			Body:    "{{caregiver_name}} proposed changing the {{event_type}} event at {{camera_name}} ({{room_name}}) to \"{{new_status}}\". Please confirm or reject before {{pending_until}}.",
			Channel: ChannelPush,
		},
		{
			ID:      TemplateProposalConfirmed,
			Name:    "Proposal Confirmed",
			Title:   "Event update confirmed",
			Body:    "The {{event_type}} event for {{patient_name}} is now \"{{new_status}}\", confirmed by the customer.",
			Channel: ChannelPush,
		},
		{
			ID:      TemplateProposalRejected,
			Name:    "Proposal Rejected",
			Title:   "Event update rejected",
			Body:    "The proposed change to the {{event_type}} event for {{patient_name}} was rejected; its status stays \"{{new_status}}\".",
			Channel: ChannelPush,
		},
		{
			ID:      TemplateProposalAutoApproved,
			Name:    "Proposal Auto-Approved",
			Title:   "Event update applied automatically",
			Body:    "No action was taken on the proposed change to the {{event_type}} event for {{patient_name}} before the deadline, so it was applied automatically. The event is now \"{{new_status}}\".",
			Channel: ChannelPush,
		},
	}
	for i := range builtIn {
		t := builtIn[i]
		e.templates[t.ID] = &t
	}
}

// RegisterTemplate adds or replaces a template in the engine.
func (e *TemplateEngine) RegisterTemplate(t Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[t.ID] = &t
}

// Render looks up a template by ID and performs {{key}} replacement using the
// supplied data map. Keys present in the template but absent from data are
// left as-is.
func (e *TemplateEngine) Render(templateID string, data map[string]string) (title, body string, err error) {
	e.mu.RLock()
	t, ok := e.templates[templateID]
	e.mu.RUnlock()
	if !ok {
		return "", "", fmt.Errorf("template %q not found", templateID)
	}

	title = t.Title
	body = t.Body
	for k, v := range data {
		placeholder := "{{" + k + "}}"
		title = strings.ReplaceAll(title, placeholder, v)
		body = strings.ReplaceAll(body, placeholder, v)
	}
	return title, body, nil
}

func (e *TemplateEngine) channelFor(templateID string) Channel {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if t, ok := e.templates[templateID]; ok {
		return t.Channel
	}
	return ChannelInApp
}

// LogPushSender writes pushes to the log instead of a device. Used until a
// real FCM transport is wired in, and in development.
type LogPushSender struct {
	Logger zerolog.Logger
}

// SendPush logs the push and succeeds.
func (s *LogPushSender) SendPush(_ context.Context, userID, title, body string, data map[string]string) error {
	s.Logger.Info().
		Str("user_id", userID).
		Str("title", title).
		Str("body", body).
		Interface("data", data).
		Msg("push notification")
	return nil
}

// PushCall records a single call to SendPush.
type PushCall struct {
	UserID string
	Title  string
	Body   string
	Data   map[string]string
}

// MockPushSender is a test double for PushSender.
type MockPushSender struct {
	mu         sync.Mutex
	calls      []PushCall
	ShouldFail bool
	FailError  string
}

// SendPush records the call and optionally returns an error.
func (m *MockPushSender) SendPush(_ context.Context, userID, title, body string, data map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, PushCall{UserID: userID, Title: title, Body: body, Data: data})
	if m.ShouldFail {
		return errors.New(m.FailError)
	}
	return nil
}

// Calls returns a copy of recorded push calls.
func (m *MockPushSender) Calls() []PushCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]PushCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// Manager orchestrates sending, storage, and retrieval of notifications.
// Every push is mirrored as a stored in-app notification so users see their
// alert history regardless of delivery outcome.
type Manager struct {
	pushSender    PushSender
	templates     *TemplateEngine
	mu            sync.RWMutex
	notifications map[string]*Notification
}

// NewManager constructs a Manager.
func NewManager(push PushSender, tpl *TemplateEngine) *Manager {
	return &Manager{
		pushSender:    push,
		templates:     tpl,
		notifications: make(map[string]*Notification),
	}
}

// Send dispatches a notification through the appropriate channel, assigns an
// ID and timestamps, and persists the result in-memory.
func (m *Manager) Send(ctx context.Context, n *Notification) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	n.CreatedAt = now
	n.Status = "pending"

	var sendErr error
	switch n.Channel {
	case ChannelPush:
		sendErr = m.pushSender.SendPush(ctx, n.UserID, n.Title, n.Body, n.Data)
	case ChannelInApp:
		// stored only, nothing to deliver
	default:
		sendErr = fmt.Errorf("unsupported notification channel: %s", n.Channel)
	}

	if sendErr != nil {
		n.Status = "failed"
		n.Error = sendErr.Error()
	} else {
		n.Status = "sent"
		sentAt := time.Now().UTC()
		n.SentAt = &sentAt
	}

	m.mu.Lock()
	m.notifications[n.ID] = n
	m.mu.Unlock()

	return sendErr
}

// SendFromTemplate renders a template and sends the resulting notification.
func (m *Manager) SendFromTemplate(ctx context.Context, templateID string, data map[string]string, userID string) (*Notification, error) {
	title, body, err := m.templates.Render(templateID, data)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	n := &Notification{
		Channel:      m.templates.channelFor(templateID),
		UserID:       userID,
		Title:        title,
		Body:         body,
		TemplateID:   templateID,
		TemplateData: data,
	}

	if err := m.Send(ctx, n); err != nil {
		return n, err
	}
	return n, nil
}

// Get retrieves a notification by ID.
func (m *Manager) Get(_ context.Context, id string) (*Notification, error) {
	m.mu.RLock()
	n, ok := m.notifications[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("notification %q not found", id)
	}
	return n, nil
}

// ListByUser returns notifications for a given user, up to limit.
func (m *Manager) ListByUser(_ context.Context, userID string, limit int) ([]*Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*Notification
	for _, n := range m.notifications {
		if n.UserID == userID {
			result = append(result, n)
			if len(result) >= limit {
				break
			}
		}
	}
	return result, nil
}

// MarkRead stamps a notification as read by its recipient.
func (m *Manager) MarkRead(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notifications[id]
	if !ok {
		return fmt.Errorf("notification %q not found", id)
	}
	now := time.Now().UTC()
	n.ReadAt = &now
	return nil
}

// Retry re-sends a failed notification. Returns an error if the notification
// is not in "failed" status.
func (m *Manager) Retry(ctx context.Context, id string) error {
	m.mu.RLock()
	n, ok := m.notifications[id]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("notification %q not found", id)
	}
	if n.Status != "failed" {
		return fmt.Errorf("notification %q is not in failed status (current: %s)", id, n.Status)
	}

	var sendErr error
	switch n.Channel {
	case ChannelPush:
		sendErr = m.pushSender.SendPush(ctx, n.UserID, n.Title, n.Body, n.Data)
	case ChannelInApp:
		// stored only
	default:
		sendErr = fmt.Errorf("unsupported notification channel: %s", n.Channel)
	}

	m.mu.Lock()
	if sendErr != nil {
		n.Status = "failed"
		n.Error = sendErr.Error()
	} else {
		n.Status = "sent"
		sentAt := time.Now().UTC()
		n.SentAt = &sentAt
		n.Error = ""
	}
	m.mu.Unlock()

	return sendErr
}

// Stats returns counts of notifications grouped by status.
func (m *Manager) Stats(_ context.Context) map[string]int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := make(map[string]int)
	for _, n := range m.notifications {
		stats[n.Status]++
	}
	return stats
}

// Handler exposes notification operations over HTTP via Echo.
type Handler struct {
	manager *Manager
}

// NewHandler creates a new Handler.
func NewHandler(mgr *Manager) *Handler {
	return &Handler{manager: mgr}
}

// RegisterRoutes registers all notification routes on the given Echo group.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/notifications", h.HandleList)
	g.GET("/notifications/stats", h.HandleStats)
	g.GET("/notifications/:id", h.HandleGet)
	g.POST("/notifications/:id/read", h.HandleMarkRead)
	g.POST("/notifications/:id/retry", h.HandleRetry)
}

// HandleGet handles GET /notifications/:id.
func (h *Handler) HandleGet(c echo.Context) error {
	id := c.Param("id")
	n, err := h.manager.Get(c.Request().Context(), id)
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, n)
}

// HandleList handles GET /notifications?user_id=...
func (h *Handler) HandleList(c echo.Context) error {
	userID := c.QueryParam("user_id")
	if userID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "user_id query parameter is required"})
	}

	list, err := h.manager.ListByUser(c.Request().Context(), userID, 100)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, list)
}

// HandleMarkRead handles POST /notifications/:id/read.
func (h *Handler) HandleMarkRead(c echo.Context) error {
	id := c.Param("id")
	if err := h.manager.MarkRead(c.Request().Context(), id); err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	}
	n, _ := h.manager.Get(c.Request().Context(), id)
	return c.JSON(http.StatusOK, n)
}

// HandleRetry handles POST /notifications/:id/retry.
func (h *Handler) HandleRetry(c echo.Context) error {
	id := c.Param("id")
	if err := h.manager.Retry(c.Request().Context(), id); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	n, _ := h.manager.Get(c.Request().Context(), id)
	return c.JSON(http.StatusOK, n)
}

// HandleStats handles GET /notifications/stats.
func (h *Handler) HandleStats(c echo.Context) error {
	stats := h.manager.Stats(c.Request().Context())
	return c.JSON(http.StatusOK, stats)
}
