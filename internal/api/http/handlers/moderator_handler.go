package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/support-relay/relay/internal/api/dto"
	"github.com/support-relay/relay/internal/auth"
	"github.com/support-relay/relay/internal/service"
	apperrors "github.com/support-relay/relay/pkg/util"
)

// ModeratorHandler manages moderator registration and logout.
type ModeratorHandler struct {
	auth *service.AuthService
}

// NewModeratorHandler constructs handler.
func NewModeratorHandler(authService *service.AuthService) *ModeratorHandler {
	return &ModeratorHandler{auth: authService}
}

// Register POST /api/moderator/register.
func (h *ModeratorHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterModeratorRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
	}
	reg, err := h.auth.RegisterModerator(c.UserContext(), req.Code, req.DisplayName)
	if err != nil {
		return err
	}
	return c.JSON(dto.RegisterModeratorResponse{Token: reg.Token, DisplayName: reg.Moderator.DisplayName})
}

// Logout POST /api/moderator/logout.
func (h *ModeratorHandler) Logout(c *fiber.Ctx) error {
	principal, _ := auth.PrincipalFromContext(c)
	if err := h.auth.Logout(c.UserContext(), principal); err != nil {
		return err
	}
	return c.JSON(dto.OKResponse{OK: true})
}
