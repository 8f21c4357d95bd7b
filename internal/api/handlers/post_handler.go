package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/multipost/internal/models"
	"github.com/maheshrc27/multipost/internal/service"
	"github.com/maheshrc27/multipost/internal/transfer"
)

const defaultListLimit = 50

type PostHandler struct {
	s service.PostService
}

func NewPostHandler(service service.PostService) *PostHandler {
	return &PostHandler{s: service}
}

func (h *PostHandler) CreatePost(c *fiber.Ctx) error {
	userID := GetUserID(c)

	var req transfer.PostCreation
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse request body",
		})
	}

	postID, err := h.s.Create(c.Context(), userID, &req)
	if err != nil {
		return respondError(c, err, "Unable to create post")
	}

	message := "Post scheduled successfully"
	if req.Draft {
		message = "Draft saved"
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":      postID,
		"message": message,
	})
}

func (h *PostHandler) ListPosts(c *fiber.Ctx) error {
	userID := GetUserID(c)
	filter := models.PostFilter{
		Status: models.PostStatus(c.Query("status")),
		Limit:  c.QueryInt("limit", defaultListLimit),
		Offset: c.QueryInt("offset", 0),
	}

	posts, err := h.s.List(c.Context(), userID, filter)
	if err != nil {
		return respondError(c, err, "Unable to list posts")
	}
	if posts == nil {
		posts = []*models.Post{}
	}
	return c.Status(fiber.StatusOK).JSON(posts)
}

func (h *PostHandler) GetPost(c *fiber.Ctx) error {
	postID, ok := paramID(c)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": models.ErrPostNotFound.Error(),
		})
	}

	post, err := h.s.Info(c.Context(), GetUserID(c), postID)
	if err != nil {
		return respondError(c, err, "Unable to load post")
	}
	return c.Status(fiber.StatusOK).JSON(post)
}

func (h *PostHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.s.Stats(c.Context(), GetUserID(c))
	if err != nil {
		return respondError(c, err, "Unable to load post stats")
	}
	return c.Status(fiber.StatusOK).JSON(stats)
}

func (h *PostHandler) Upcoming(c *fiber.Ctx) error {
	posts, err := h.s.Upcoming(c.Context(), GetUserID(c))
	if err != nil {
		return respondError(c, err, "Unable to list upcoming posts")
	}
	if posts == nil {
		posts = []*models.Post{}
	}
	return c.Status(fiber.StatusOK).JSON(posts)
}

func (h *PostHandler) UpdateCaption(c *fiber.Ctx) error {
	postID, ok := paramID(c)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": models.ErrPostNotFound.Error(),
		})
	}

	var req transfer.CaptionUpdate
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse request body",
		})
	}

	if err := h.s.UpdateCaption(c.Context(), GetUserID(c), postID, req.Caption); err != nil {
		return respondError(c, err, "Unable to update caption")
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "Caption updated",
	})
}

func (h *PostHandler) Reschedule(c *fiber.Ctx) error {
	postID, ok := paramID(c)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": models.ErrPostNotFound.Error(),
		})
	}

	var req transfer.PostReschedule
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse request body",
		})
	}

	if err := h.s.Reschedule(c.Context(), GetUserID(c), postID, req.ScheduledFor); err != nil {
		return respondError(c, err, "Unable to reschedule post")
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "Post rescheduled",
	})
}

func (h *PostHandler) Retry(c *fiber.Ctx) error {
	return h.action(c, h.s.Retry, "Post queued for retry", "Unable to retry post")
}

func (h *PostHandler) Cancel(c *fiber.Ctx) error {
	return h.action(c, h.s.Cancel, "Post cancelled", "Unable to cancel post")
}

func (h *PostHandler) PublishNow(c *fiber.Ctx) error {
	return h.action(c, h.s.PublishNow, "Post publishing started", "Unable to publish post")
}

func (h *PostHandler) RemovePost(c *fiber.Ctx) error {
	postID, ok := paramID(c)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": models.ErrPostNotFound.Error(),
		})
	}

	unpublish := c.QueryBool("unpublish", false)
	if err := h.s.Remove(c.Context(), GetUserID(c), postID, unpublish); err != nil {
		return respondError(c, err, "Unable to remove post")
	}
	return c.SendStatus(fiber.StatusOK)
}

func (h *PostHandler) action(c *fiber.Ctx, fn func(ctx context.Context, userID, postID int64) error, done, fallback string) error {
	postID, ok := paramID(c)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": models.ErrPostNotFound.Error(),
		})
	}

	if err := fn(c.Context(), GetUserID(c), postID); err != nil {
		return respondError(c, err, fallback)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": done,
	})
}
