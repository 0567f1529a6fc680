package queue

import "github.com/quizvideo/api/internal/model"

// Status identifies which state a job record is in.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Input is the payload supplied at job creation. It is never mutated and is
// carried unchanged through every state.
type Input struct {
	Quiz   model.QuizData
	ChatID string
}

// State is the tagged union over the four job lifecycle states. A record
// only moves forward: Queued -> InProgress -> Completed or Failed. The
// unexported method seals the union to this package.
type State interface {
	Status() Status
	input() Input
}

// Queued is an accepted job waiting for its turn. Cancel removes the record
// from the store so the job's slot becomes a no-op.
type Queued struct {
	Input  Input
	Cancel func()
}

func (Queued) Status() Status { return StatusQueued }
func (s Queued) input() Input { return s.Input }

// InProgress is the single actively rendering job. Cancel aborts the render;
// calling it after the job reached a terminal state has no effect.
type InProgress struct {
	Input    Input
	Cancel   func()
	Progress float64
}

func (InProgress) Status() Status { return StatusInProgress }
func (s InProgress) input() Input { return s.Input }

// Completed holds the rendered artifact. TelegramSent stays nil until the
// delivery attempt has concluded; delivery never changes the completed
// classification.
type Completed struct {
	Input         Input
	Artifact      []byte
	TelegramSent  *bool
	TelegramError string
}

func (Completed) Status() Status { return StatusCompleted }
func (s Completed) input() Input { return s.Input }

// Failed is the terminal state for renders that errored or were cancelled.
type Failed struct {
	Input Input
	Err   error
}

func (Failed) Status() Status { return StatusFailed }
func (s Failed) input() Input { return s.Input }
