package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/support-relay/relay/internal/upload"
	apperrors "github.com/support-relay/relay/pkg/util"
)

// UploadHandler accepts attachment uploads.
type UploadHandler struct {
	uploads *upload.Service
}

// NewUploadHandler constructs handler.
func NewUploadHandler(uploads *upload.Service) *UploadHandler {
	return &UploadHandler{uploads: uploads}
}

// Upload POST /api/upload (multipart field "file").
func (h *UploadHandler) Upload(c *fiber.Ctx) error {
	header, err := c.FormFile("file")
	if err != nil {
		return apperrors.NewValidationError("no file", nil)
	}
	file, err := header.Open()
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	defer file.Close()

	desc, err := h.uploads.Upload(c.UserContext(), header.Filename, header.Header.Get(fiber.HeaderContentType), header.Size, file)
	if err != nil {
		return err
	}
	return c.JSON(desc)
}
