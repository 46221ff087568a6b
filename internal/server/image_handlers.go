package server

import (
	"io"
	"strings"

	"murmur/internal/models"
	"murmur/internal/service"

	"github.com/gofiber/fiber/v2"
)

// UploadImage handles POST /api/images (multipart form, field "image").
func (s *Server) UploadImage(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	// Kill switch with per-user rollout for incident response.
	if s.flags.Enabled("image_uploads_disabled", userID) {
		return models.RespondWithError(c, fiber.StatusServiceUnavailable,
			models.NewValidationError("Image uploads are temporarily disabled"))
	}

	fileHeader, err := c.FormFile("image")
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("No file uploaded"))
	}

	file, err := fileHeader.Open()
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Could not read uploaded file"))
	}
	defer func() { _ = file.Close() }()

	content, err := io.ReadAll(file)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}

	uploaded, err := s.imageService.Upload(service.UploadImageInput{
		UserID:      userID,
		Filename:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Content:     content,
	})
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(uploaded)
}

// ServeImage handles GET /media/i/:hash/:filename
func (s *Server) ServeImage(c *fiber.Ctx) error {
	hash := c.Params("hash")
	filename := c.Params("filename")

	fullPath, err := s.imageService.ResolveForServing(hash, filename)
	if err != nil {
		return respondServiceError(c, err)
	}

	if strings.HasSuffix(filename, ".webp") {
		c.Set(fiber.HeaderContentType, "image/webp")
	} else {
		c.Set(fiber.HeaderContentType, "image/jpeg")
	}
	c.Set(fiber.HeaderCacheControl, "public, max-age=31536000, immutable")
	return c.SendFile(fullPath)
}
