package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sparkmeet/moderation-worker/internal/dto"
	"github.com/sparkmeet/moderation-worker/internal/services"
)

// ReviewHandler exposes the single-user review entry point and the batch
// loop's status to operators.
type ReviewHandler struct {
	service   *services.ReviewService
	scheduler *services.Scheduler
}

func NewReviewHandler(service *services.ReviewService, scheduler *services.Scheduler) *ReviewHandler {
	return &ReviewHandler{service: service, scheduler: scheduler}
}

// TriggerUserReview runs a full review for one user immediately.
func (h *ReviewHandler) TriggerUserReview(c *fiber.Ctx) error {
	userID, err := uuid.Parse(c.Params("userId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "invalid user id",
		})
	}

	outcome, err := h.service.ReviewUser(c.Context(), userID)
	switch {
	case errors.Is(err, services.ErrUserNotFound):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
			Error: true, Message: "user not found",
		})
	case errors.Is(err, services.ErrUserLocked):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{
			Error: true, Message: "a review for this user is already in progress",
		})
	case err != nil:
		return c.Status(fiber.StatusBadGateway).JSON(dto.ErrorResponse{
			Error: true, Message: "review failed: " + err.Error(),
		})
	}

	return c.JSON(dto.ReviewTriggerResponse{
		UserID:  userID.String(),
		Outcome: outcome,
	})
}

// SchedulerStatus reports the most recent batch run.
func (h *ReviewHandler) SchedulerStatus(c *fiber.Ctx) error {
	lastRun, result := h.scheduler.LastResult()

	resp := dto.SchedulerStatusResponse{}
	if !lastRun.IsZero() {
		resp.LastRun = lastRun.UTC().Format(time.RFC3339)
	}
	if result != nil {
		resp.Processed = result.Processed
		resp.Failed = result.Failed
		resp.Skipped = result.Skipped
		resp.Suspended = result.Suspended
		resp.Flagged = result.Flagged
	}
	return c.JSON(resp)
}
