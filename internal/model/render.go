package model

import "encoding/json"

// QuizQuestion is a single question rendered into the video.
type QuizQuestion struct {
	Question           string   `json:"question" validate:"required"`
	Options            []string `json:"options" validate:"required,min=2,dive,required"`
	CorrectAnswerIndex int      `json:"correctAnswerIndex" validate:"gte=0"`
}

// QuizData is the set of content items to render.
type QuizData struct {
	Questions []QuizQuestion `json:"questions" validate:"required,min=1,dive"`
}

// ChatID is a Telegram destination. Clients may send it as a JSON number
// (a chat id) or a string (a chat id or an @channel username).
type ChatID string

func (c *ChatID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*c = ChatID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*c = ChatID(n.String())
	return nil
}

// CreateRenderRequest is the body of POST /renders.
type CreateRenderRequest struct {
	QuizData *QuizData `json:"quizData" validate:"required"`
	ChatID   ChatID    `json:"chatId" validate:"required"`
}

// CreateRenderResponse is returned when a render job is accepted.
type CreateRenderResponse struct {
	JobID string `json:"jobId"`
}

// JobError describes the failure stored on a failed job.
type JobError struct {
	Message string `json:"message"`
	Kind    string `json:"kind"`
}

// PendingJobResponse is the GET /renders/:jobId projection for queued and
// in-progress jobs.
type PendingJobResponse struct {
	Status   string   `json:"status"`
	Progress *float64 `json:"progress,omitempty"`
}

// CompletedJobResponse is the GET /renders/:jobId projection for completed
// jobs. TelegramSent stays null until the delivery attempt has concluded.
type CompletedJobResponse struct {
	Status        string  `json:"status"`
	TelegramSent  *bool   `json:"telegramSent"`
	TelegramError *string `json:"telegramError"`
}

// FailedJobResponse is the GET /renders/:jobId projection for failed jobs.
// It never exposes the original input or a partial artifact.
type FailedJobResponse struct {
	Status string   `json:"status"`
	Error  JobError `json:"error"`
}

// JobSummary is one entry of the GET /renders listing.
type JobSummary struct {
	ID            string    `json:"id"`
	Status        string    `json:"status"`
	Progress      *float64  `json:"progress,omitempty"`
	Error         *JobError `json:"error,omitempty"`
	TelegramSent  *bool     `json:"telegramSent,omitempty"`
	TelegramError *string   `json:"telegramError,omitempty"`
}

// ListRendersResponse is the body of GET /renders.
type ListRendersResponse struct {
	Jobs []JobSummary `json:"jobs"`
}

// MessageResponse is a plain informational response.
type MessageResponse struct {
	Message string `json:"message"`
}
