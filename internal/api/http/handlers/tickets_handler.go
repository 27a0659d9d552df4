package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-bot/internal/api/dto"
	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/service"
	"github.com/spec-kit/ticket-bot/internal/ticket"
	apperrors "github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

// TicketsHandler exposes the ticket operations to operators.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// ListTickets GET /guilds/:guildID/tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	tickets, err := h.service.ListTickets(c.UserContext(), c.Params("guildID"))
	if err != nil {
		return apperrors.NewExternalServiceError("discord", err)
	}
	items := make([]dto.TicketSummary, 0, len(tickets))
	for _, t := range tickets {
		items = append(items, dto.NewTicketSummary(t))
	}
	return c.JSON(fiber.Map{"data": items})
}

// FindUserTicket GET /guilds/:guildID/tickets/users/:userID.
func (h *TicketsHandler) FindUserTicket(c *fiber.Ctx) error {
	userID := c.Params("userID")
	ch, ok, err := h.service.FindTicketForUser(c.UserContext(), c.Params("guildID"), userID)
	if err != nil {
		return apperrors.NewExternalServiceError("discord", err)
	}
	if !ok {
		return apperrors.NewNotFound("ticket", map[string]any{"user_id": userID})
	}
	tk, err := ticket.FromChannel(ch)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketSummary(*tk)})
}

// CloseTicket POST /guilds/:guildID/tickets/:channelID/close.
func (h *TicketsHandler) CloseTicket(c *fiber.Ctx) error {
	var req dto.CloseTicketRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
	}
	result, err := h.service.CloseTicketByID(c.UserContext(), c.Params("guildID"), c.Params("channelID"), req.ClosedByUserID, req.Reason)
	if err != nil {
		return err
	}
	return c.Status(closeStatus(result)).JSON(fiber.Map{"data": result})
}

// CloseAll POST /guilds/:guildID/tickets/close-all.
func (h *TicketsHandler) CloseAll(c *fiber.Ctx) error {
	var req dto.CloseAllRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
	}
	ctx := c.UserContext()
	success, failed := h.service.CloseAllTickets(ctx, c.Params("guildID"), h.service.Actor(ctx, req.ClosedByUserID))
	return c.JSON(fiber.Map{"data": domain.BulkCloseResult{Success: success, Failed: failed}})
}

func closeStatus(result domain.CloseResult) int {
	switch result.Message {
	case domain.CloseMessageSuccess:
		return http.StatusOK
	case domain.CloseMessageMissingPermissions:
		return http.StatusForbidden
	case domain.CloseMessageNotATicket:
		return http.StatusUnprocessableEntity
	case domain.CloseMessageAlreadyClosed:
		return http.StatusConflict
	default:
		return http.StatusBadGateway
	}
}
