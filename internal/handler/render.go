package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/quizvideo/api/internal/model"
	"github.com/quizvideo/api/internal/queue"
	"github.com/quizvideo/api/pkg/response"
)

type RenderHandler struct {
	queue     *queue.Queue
	validator *validator.Validate
}

func NewRenderHandler(q *queue.Queue, v *validator.Validate) *RenderHandler {
	return &RenderHandler{
		queue:     q,
		validator: v,
	}
}

// Create handles POST /renders
func (h *RenderHandler) Create(c *fiber.Ctx) error {
	var req model.CreateRenderRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Valid quiz data is required", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	jobID := h.queue.CreateJob(queue.Input{
		Quiz:   *req.QuizData,
		ChatID: string(req.ChatID),
	})

	return response.Accepted(c, model.CreateRenderResponse{JobID: jobID})
}

// Get handles GET /renders/:jobId
func (h *RenderHandler) Get(c *fiber.Ctx) error {
	jobID := c.Params("jobId")

	state, ok := h.queue.Job(jobID)
	if !ok {
		return response.NotFound(c, "Job not found")
	}

	return response.OK(c, statusPayload(state))
}

// List handles GET /renders
func (h *RenderHandler) List(c *fiber.Ctx) error {
	entries := h.queue.Jobs()

	summaries := make([]model.JobSummary, 0, len(entries))
	for _, entry := range entries {
		summaries = append(summaries, summarize(entry.ID, entry.State))
	}

	return response.OK(c, model.ListRendersResponse{Jobs: summaries})
}

// Cancel handles DELETE /renders/:jobId
func (h *RenderHandler) Cancel(c *fiber.Ctx) error {
	jobID := c.Params("jobId")

	err := h.queue.Cancel(jobID)
	switch {
	case errors.Is(err, queue.ErrJobNotFound):
		return response.NotFound(c, "Job not found")
	case errors.Is(err, queue.ErrNotCancellable):
		return response.ValidationError(c, "Job is not cancellable", nil)
	case err != nil:
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, model.MessageResponse{Message: "Job cancelled"})
}

// statusPayload projects a job record into its state-shaped response. The
// raw artifact bytes and the original input are never exposed.
func statusPayload(state queue.State) interface{} {
	switch s := state.(type) {
	case queue.Queued:
		return model.PendingJobResponse{Status: string(queue.StatusQueued)}
	case queue.InProgress:
		progress := s.Progress
		return model.PendingJobResponse{Status: string(queue.StatusInProgress), Progress: &progress}
	case queue.Completed:
		return model.CompletedJobResponse{
			Status:        string(queue.StatusCompleted),
			TelegramSent:  s.TelegramSent,
			TelegramError: nullableString(s.TelegramError),
		}
	case queue.Failed:
		return model.FailedJobResponse{
			Status: string(queue.StatusFailed),
			Error: model.JobError{
				Message: s.Err.Error(),
				Kind:    queue.FailureKind(s.Err),
			},
		}
	default:
		return model.PendingJobResponse{Status: string(state.Status())}
	}
}

func summarize(id string, state queue.State) model.JobSummary {
	summary := model.JobSummary{ID: id, Status: string(state.Status())}

	switch s := state.(type) {
	case queue.InProgress:
		progress := s.Progress
		summary.Progress = &progress
	case queue.Completed:
		summary.TelegramSent = s.TelegramSent
		summary.TelegramError = nullableString(s.TelegramError)
	case queue.Failed:
		summary.Error = &model.JobError{
			Message: s.Err.Error(),
			Kind:    queue.FailureKind(s.Err),
		}
	}

	return summary
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func formatValidationErrors(err error) interface{} {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		errors := make(map[string]string)
		for _, e := range validationErrors {
			errors[e.Field()] = e.Tag()
		}
		return errors
	}
	return nil
}
