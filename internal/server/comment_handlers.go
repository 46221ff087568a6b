package server

import (
	"murmur/internal/models"

	"github.com/gofiber/fiber/v2"
)

// GetComments handles GET /api/posts/:id/comments. The response carries both
// the flat ascending-created_at list and the nested reply tree rendered from
// it, so clients can pick either shape.
func (s *Server) GetComments(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	discussion, err := s.discussionService.Load(c.UserContext(), postID)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"comments": discussion.Comments(),
		"tree":     discussion.Forest().Render(),
	})
}

// CreateComment handles POST /api/posts/:id/comments. A nil parent_id creates
// a top-level comment; a set parent_id creates a reply under that comment.
func (s *Server) CreateComment(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		Content  string `json:"content"`
		ParentID *uint  `json:"parent_id,omitempty"`
	}
	if parseErr := c.BodyParser(&req); parseErr != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	discussion, err := s.discussionService.Load(c.UserContext(), postID)
	if err != nil {
		return respondServiceError(c, err)
	}

	var created *models.Comment
	if req.ParentID != nil {
		created, err = discussion.AddReply(c.UserContext(), userID, *req.ParentID, req.Content)
	} else {
		created, err = discussion.AddComment(c.UserContext(), userID, req.Content)
	}
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

// DeleteComment handles DELETE /api/posts/:id/comments/:commentId. The comment
// author and the post author may delete; replies under the deleted comment are
// removed with it.
func (s *Server) DeleteComment(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	commentID, err := s.parseID(c, "commentId")
	if err != nil {
		return nil
	}

	discussion, err := s.discussionService.Load(c.UserContext(), postID)
	if err != nil {
		return respondServiceError(c, err)
	}

	if err := discussion.DeleteComment(c.UserContext(), userID, commentID); err != nil {
		return respondServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusOK)
}
