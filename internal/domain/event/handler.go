package event

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/carewatch/carewatch/internal/platform/auth"
	"github.com/carewatch/carewatch/pkg/pagination"
)

type Handler struct {
	svc     *Service
	sweeper *Sweeper
}

func NewHandler(svc *Service, sweeper *Sweeper) *Handler {
	return &Handler{svc: svc, sweeper: sweeper}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireRole("caregiver", "customer"))
	read.GET("/events", h.ListEvents)
	read.GET("/events/:id", h.GetEvent)

	api.POST("/events", h.CreateEvent, auth.RequireRole("admin"))
	api.POST("/events/:id/propose", h.ProposeChange, auth.RequireRole("caregiver"))
	api.POST("/events/:id/confirm", h.ConfirmChange, auth.RequireRole("customer"))
	api.POST("/events/:id/reject", h.RejectChange, auth.RequireRole("customer"))
	api.POST("/events/sweep", h.RunSweep, auth.RequireRole("admin"))
}

type proposeRequest struct {
	ProposedStatus    string  `json:"proposed_status"`
	ProposedEventType *string `json:"proposed_event_type,omitempty"`
	Note              *string `json:"note,omitempty"`
}

type decisionRequest struct {
	Note *string `json:"note,omitempty"`
}

func (h *Handler) CreateEvent(c echo.Context) error {
	var ev Event
	if err := c.Bind(&ev); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateEvent(c.Request().Context(), &ev); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, ev)
}

func (h *Handler) GetEvent(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ev, err := h.svc.GetEvent(c.Request().Context(), id)
	if err != nil {
		return workflowError(c, err)
	}
	return c.JSON(http.StatusOK, ev)
}

func (h *Handler) ListEvents(c echo.Context) error {
	pg := pagination.FromContext(c)

	params := map[string]string{}
	for _, key := range []string{"patient_id", "camera_id", "event_type", "status", "confirmation_state"} {
		if v := c.QueryParam(key); v != "" {
			params[key] = v
		}
	}

	items, total, err := h.svc.ListEvents(c.Request().Context(), params, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) ProposeChange(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	caregiverID, err := requestUserID(c)
	if err != nil {
		return err
	}

	var req proposeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.ProposedStatus == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "proposed_status is required")
	}

	ev, err := h.svc.ProposeChange(c.Request().Context(), id, req.ProposedStatus, req.ProposedEventType, caregiverID, req.Note)
	if err != nil {
		return workflowError(c, err)
	}
	return c.JSON(http.StatusOK, ev)
}

func (h *Handler) ConfirmChange(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	customerID, err := requestUserID(c)
	if err != nil {
		return err
	}

	var req decisionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ev, err := h.svc.ConfirmChange(c.Request().Context(), id, customerID, req.Note)
	if err != nil {
		return workflowError(c, err)
	}
	return c.JSON(http.StatusOK, ev)
}

func (h *Handler) RejectChange(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	customerID, err := requestUserID(c)
	if err != nil {
		return err
	}

	var req decisionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ev, err := h.svc.RejectChange(c.Request().Context(), id, customerID, req.Note)
	if err != nil {
		return workflowError(c, err)
	}
	return c.JSON(http.StatusOK, ev)
}

// RunSweep triggers one auto-approval pass outside the timer, for operators.
func (h *Handler) RunSweep(c echo.Context) error {
	res, err := h.sweeper.RunOnce(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, res)
}

func requestUserID(c echo.Context) (uuid.UUID, error) {
	raw := auth.UserIDFromContext(c.Request().Context())
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusUnauthorized, "authenticated user id is not a valid uuid")
	}
	return id, nil
}

func workflowError(c echo.Context, err error) error {
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "event not found")
	}
	if ce := AsConflict(err); ce != nil {
		return c.JSON(http.StatusConflict, map[string]interface{}{
			"error":              ce.Reason,
			"confirmation_state": ce.State,
		})
	}
	return echo.NewHTTPError(http.StatusBadRequest, err.Error())
}
