package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-bot/internal/api/dto"
	"github.com/spec-kit/ticket-bot/internal/service"
	apperrors "github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

// SettingsHandler manages per-guild ticket settings.
type SettingsHandler struct {
	service *service.SettingsService
}

// NewSettingsHandler constructs handler.
func NewSettingsHandler(settingsService *service.SettingsService) *SettingsHandler {
	return &SettingsHandler{service: settingsService}
}

// Get GET /guilds/:guildID/settings.
func (h *SettingsHandler) Get(c *fiber.Ctx) error {
	settings, err := h.service.Get(c.UserContext(), c.Params("guildID"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewSettingsResponse(settings)})
}

// Update PATCH /guilds/:guildID/settings.
func (h *SettingsHandler) Update(c *fiber.Ctx) error {
	var req dto.UpdateSettingsRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := h.service.Update(c.UserContext(), c.Params("guildID"), req.LogChannelID, req.SupportRoleID); err != nil {
		return err
	}
	return h.Get(c)
}
