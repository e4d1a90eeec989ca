package handlers

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"

	apperrors "github.com/deskflow/helpdesk/pkg/errorutil"
)

const uploadField = "file"

// readUpload returns the name and content of the multipart CSV in field
// "file", enforcing the .csv extension and maxBytes.
func readUpload(c *fiber.Ctx, maxBytes int64) (string, []byte, error) {
	header, err := c.FormFile(uploadField)
	if err != nil {
		return "", nil, apperrors.NewValidationError("Ingen fil bifogad", map[string]any{"field": uploadField})
	}
	if !strings.EqualFold(filepath.Ext(header.Filename), ".csv") {
		return "", nil, apperrors.NewValidationError("Endast CSV-filer stöds", map[string]any{"fileName": header.Filename})
	}
	if maxBytes > 0 && header.Size > maxBytes {
		return "", nil, apperrors.NewPayloadTooLarge(maxBytes)
	}

	file, err := header.Open()
	if err != nil {
		return "", nil, apperrors.NewInternalError(fmt.Errorf("open upload: %w", err))
	}
	defer file.Close()

	var reader io.Reader = file
	if maxBytes > 0 {
		reader = io.LimitReader(file, maxBytes+1)
	}
	content, err := io.ReadAll(reader)
	if err != nil {
		return "", nil, apperrors.NewInternalError(fmt.Errorf("read upload: %w", err))
	}
	if maxBytes > 0 && int64(len(content)) > maxBytes {
		return "", nil, apperrors.NewPayloadTooLarge(maxBytes)
	}
	return header.Filename, content, nil
}

func sendFile(c *fiber.Ctx, fileName, contentType string, body []byte) error {
	c.Set(fiber.HeaderContentType, contentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, fileName))
	return c.Send(body)
}
