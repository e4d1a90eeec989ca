package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/deskflow/helpdesk/internal/api/dto"
	"github.com/deskflow/helpdesk/internal/export"
	"github.com/deskflow/helpdesk/internal/service"
	apperrors "github.com/deskflow/helpdesk/pkg/errorutil"
)

// TicketsHandler serves ticket listing, export and import endpoints.
type TicketsHandler struct {
	tickets   *service.TicketService
	exports   *service.ExportService
	imports   *service.ImportService
	maxUpload int64
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(tickets *service.TicketService, exports *service.ExportService, imports *service.ImportService, maxUpload int64) *TicketsHandler {
	return &TicketsHandler{tickets: tickets, exports: exports, imports: imports, maxUpload: maxUpload}
}

// List GET /api/tickets. Without page and limit the response is a flat
// array of every ticket.
func (h *TicketsHandler) List(c *fiber.Ctx) error {
	var q dto.TicketListQuery
	if err := c.QueryParser(&q); err != nil {
		return apperrors.NewValidationError("invalid query", nil)
	}
	if q.Legacy() {
		tickets, err := h.tickets.ListAllTickets(c.UserContext())
		if err != nil {
			return err
		}
		return c.JSON(tickets)
	}
	page, err := h.tickets.ListTickets(c.UserContext(), q.Filter())
	if err != nil {
		return err
	}
	return c.JSON(page)
}

// Export GET /api/tickets/export.
func (h *TicketsHandler) Export(c *fiber.Ctx) error {
	var q dto.TicketListQuery
	if err := c.QueryParser(&q); err != nil {
		return apperrors.NewValidationError("invalid query", nil)
	}
	file, err := h.exports.ExportTickets(c.UserContext(), q.Filter(), export.ParseFormat(q.Format))
	if err != nil {
		return err
	}
	return sendFile(c, file.FileName, file.ContentType, file.Body)
}

// PreviewImport POST /api/tickets/import/preview.
func (h *TicketsHandler) PreviewImport(c *fiber.Ctx) error {
	name, content, err := readUpload(c, h.maxUpload)
	if err != nil {
		return err
	}
	preview, err := h.imports.PreviewTickets(c.UserContext(), name, content)
	if err != nil {
		return err
	}
	return c.JSON(preview)
}

// ConfirmImport POST /api/tickets/import/confirm.
func (h *TicketsHandler) ConfirmImport(c *fiber.Ctx) error {
	var req service.TicketConfirmRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if len(req.Tickets) == 0 {
		return apperrors.NewValidationError("Inga ärenden att importera", nil)
	}
	report, err := h.imports.ConfirmTickets(c.UserContext(), req)
	if err != nil {
		return err
	}
	return c.JSON(report)
}
