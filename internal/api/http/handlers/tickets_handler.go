package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/support-relay/relay/internal/api/dto"
	"github.com/support-relay/relay/internal/auth"
	"github.com/support-relay/relay/internal/service"
	apperrors "github.com/support-relay/relay/pkg/util"
)

// TicketsHandler manages ticket endpoints.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// CreateTicket POST /api/tickets/new.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	summary, err := h.service.CreateTicket(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(dto.CreateTicketResponse{TicketID: summary.ID})
}

// ListTickets GET /api/tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	return c.JSON(dto.TicketListResponse{Tickets: h.service.ListOpenTickets(c.UserContext())})
}

// Status GET /api/tickets/status?id=.
func (h *TicketsHandler) Status(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Query("id"))
	if id == "" {
		return apperrors.NewNotFound("ticket", nil)
	}
	view, err := h.service.GetStatus(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(view)
}

// Claim POST /api/tickets/claim.
func (h *TicketsHandler) Claim(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("moderator required")
	}
	ticketID, err := parseTicketAction(c)
	if err != nil {
		return err
	}
	if err := h.service.Claim(c.UserContext(), ticketID, principal.Moderator); err != nil {
		return err
	}
	return c.JSON(dto.OKResponse{OK: true})
}

// Close POST /api/tickets/close.
func (h *TicketsHandler) Close(c *fiber.Ctx) error {
	if _, ok := auth.PrincipalFromContext(c); !ok {
		return apperrors.NewUnauthorized("moderator required")
	}
	ticketID, err := parseTicketAction(c)
	if err != nil {
		return err
	}
	if err := h.service.Close(c.UserContext(), ticketID); err != nil {
		return err
	}
	return c.JSON(dto.OKResponse{OK: true})
}

// parseTicketAction treats a missing ticket id as an unknown ticket.
func parseTicketAction(c *fiber.Ctx) (string, error) {
	var req dto.TicketActionRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return "", apperrors.NewValidationError("invalid payload", nil)
		}
	}
	id := strings.TrimSpace(req.TicketID)
	if id == "" {
		return "", apperrors.NewNotFound("ticket", nil)
	}
	return id, nil
}
