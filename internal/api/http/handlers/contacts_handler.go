package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/deskflow/helpdesk/internal/api/dto"
	"github.com/deskflow/helpdesk/internal/export"
	"github.com/deskflow/helpdesk/internal/service"
	apperrors "github.com/deskflow/helpdesk/pkg/errorutil"
)

// ContactsHandler serves contact export and import endpoints.
type ContactsHandler struct {
	exports   *service.ExportService
	imports   *service.ImportService
	maxUpload int64
}

// NewContactsHandler constructs handler.
func NewContactsHandler(exports *service.ExportService, imports *service.ImportService, maxUpload int64) *ContactsHandler {
	return &ContactsHandler{exports: exports, imports: imports, maxUpload: maxUpload}
}

// Export GET /api/contacts/export.
func (h *ContactsHandler) Export(c *fiber.Ctx) error {
	var q dto.ExportQuery
	if err := c.QueryParser(&q); err != nil {
		return apperrors.NewValidationError("invalid query", nil)
	}
	file, err := h.exports.ExportContacts(c.UserContext(), export.ParseFormat(q.Format))
	if err != nil {
		return err
	}
	return sendFile(c, file.FileName, file.ContentType, file.Body)
}

// PreviewImport POST /api/contacts/import/preview.
func (h *ContactsHandler) PreviewImport(c *fiber.Ctx) error {
	name, content, err := readUpload(c, h.maxUpload)
	if err != nil {
		return err
	}
	preview, err := h.imports.PreviewContacts(c.UserContext(), name, content)
	if err != nil {
		return err
	}
	return c.JSON(preview)
}

// ConfirmImport POST /api/contacts/import/confirm.
func (h *ContactsHandler) ConfirmImport(c *fiber.Ctx) error {
	var req service.ContactConfirmRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if len(req.Contacts) == 0 {
		return apperrors.NewValidationError("Inga kontakter att importera", nil)
	}
	report, err := h.imports.ConfirmContacts(c.UserContext(), req)
	if err != nil {
		return err
	}
	return c.JSON(report)
}
