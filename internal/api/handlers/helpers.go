package handlers

import (
	"errors"
	"log/slog"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/multipost/internal/models"
	"github.com/maheshrc27/multipost/internal/service"
)

func GetUserID(c *fiber.Ctx) int64 {
	raw, _ := c.Locals("user_id").(string)
	userID, _ := strconv.ParseInt(raw, 10, 64)
	return userID
}

func paramID(c *fiber.Ctx) (int64, bool) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, models.ErrPostNotFound),
		errors.Is(err, models.ErrAccountNotFound),
		errors.Is(err, models.ErrContentNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, models.ErrInvalidTransition),
		errors.Is(err, models.ErrRetryLimitReached):
		return fiber.StatusConflict
	case errors.Is(err, service.ErrValidation),
		errors.Is(err, service.ErrUnsupportedMedia):
		return fiber.StatusBadRequest
	case errors.Is(err, service.ErrStorageDisabled):
		return fiber.StatusServiceUnavailable
	}
	return fiber.StatusInternalServerError
}

// respondError maps service errors onto status codes. Unexpected errors are
// logged and hidden behind a generic message.
func respondError(c *fiber.Ctx, err error, fallback string) error {
	status := errorStatus(err)
	if status == fiber.StatusInternalServerError {
		slog.Error(fallback, "error", err, "path", c.Path())
		return c.Status(status).JSON(fiber.Map{
			"error": fallback,
		})
	}
	return c.Status(status).JSON(fiber.Map{
		"error": err.Error(),
	})
}
