package api

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	domain "github.com/kenrgriggs/whatskennethdoing/domain/activity"
	"github.com/kenrgriggs/whatskennethdoing/modules/activity"
)

// Handlers contains the HTTP handlers for the activity API.
type Handlers struct {
	service *activity.Service
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(service *activity.Service) *Handlers {
	return &Handlers{service: service}
}

// GetCurrent returns the subject's current activity, redacted per role.
func (h *Handlers) GetCurrent(c *fiber.Ctx) error {
	current, err := h.service.Current(c.UserContext(), identityFrom(c))
	if err != nil {
		return h.handleServiceError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(CurrentResponse{Current: current})
}

// StartCurrent starts a new task or records a closed historical entry.
func (h *Handlers) StartCurrent(c *fiber.Ctx) error {
	var req activity.StartRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "bad_request",
			Message: "Invalid request body",
		})
	}
	active, err := h.service.StartOrUpdate(c.UserContext(), identityFrom(c), req)
	if err != nil {
		return h.handleServiceError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(StartResponse{Active: active})
}

// StopCurrent stops the subject's current task. Idempotent.
func (h *Handlers) StopCurrent(c *fiber.Ctx) error {
	if err := h.service.Stop(c.UserContext(), identityFrom(c)); err != nil {
		return h.handleServiceError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(StopResponse{Stopped: true})
}

// ListEvents returns recent history entries, redacted per role.
func (h *Handlers) ListEvents(c *fiber.Ctx) error {
	limit := c.QueryInt("limit")
	events, err := h.service.Events(c.UserContext(), identityFrom(c), limit)
	if err != nil {
		return h.handleServiceError(c, err)
	}
	if events == nil {
		events = []domain.Event{}
	}
	return c.Status(fiber.StatusOK).JSON(EventsResponse{Events: events})
}

// UpdateEvent applies a presence-based patch to one history entry.
func (h *Handlers) UpdateEvent(c *fiber.Ctx) error {
	var patch activity.EventPatch
	if err := c.BodyParser(&patch); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "bad_request",
			Message: "Invalid request body",
		})
	}
	event, err := h.service.UpdateEvent(c.UserContext(), identityFrom(c), c.Params("id"), patch)
	if err != nil {
		return h.handleServiceError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(EventResponse{Event: event})
}

// GetSuggestions returns entry-form prefill lists. Owner only.
func (h *Handlers) GetSuggestions(c *fiber.Ctx) error {
	suggestions, err := h.service.Suggestions(c.UserContext(), identityFrom(c))
	if err != nil {
		return h.handleServiceError(c, err)
	}
	resp := SuggestionsResponse{
		Titles:     suggestions.Titles,
		Categories: suggestions.Categories,
		TaskNotes:  suggestions.TaskNotes,
	}
	if resp.Titles == nil {
		resp.Titles = []string{}
	}
	if resp.Categories == nil {
		resp.Categories = []string{}
	}
	if resp.TaskNotes == nil {
		resp.TaskNotes = []activity.TaskNotes{}
	}
	return c.Status(fiber.StatusOK).JSON(resp)
}

// GetAnalytics returns today/week per-category minute totals.
func (h *Handlers) GetAnalytics(c *fiber.Ctx) error {
	report, err := h.service.Analytics(c.UserContext(), identityFrom(c))
	if err != nil {
		return h.handleServiceError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(report)
}

// handleServiceError maps the service error taxonomy onto HTTP statuses.
func (h *Handlers) handleServiceError(c *fiber.Ctx, err error) error {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "validation_error",
			Message: ve.Msg,
		})
	case errors.Is(err, domain.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(ErrorResponse{
			Error:   "forbidden",
			Message: "Owner access required",
		})
	case errors.Is(err, domain.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
			Error:   "not_found",
			Message: "Event not found",
		})
	default:
		log.Printf("[api] Internal error: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "internal_error",
			Message: "An internal error occurred",
		})
	}
}
