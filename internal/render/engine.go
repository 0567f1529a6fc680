package render

import "context"

// Composition describes a renderable composition resolved by the engine.
type Composition struct {
	ID               string  `json:"id"`
	Width            int     `json:"width"`
	Height           int     `json:"height"`
	FPS              float64 `json:"fps"`
	DurationInFrames int     `json:"durationInFrames"`
}

// ProgressFunc receives fractional render progress in [0,1]. Implementations
// of Engine call it from the render path, so it must return quickly.
type ProgressFunc func(progress float64)

// RenderParams are the inputs to a single render attempt.
type RenderParams struct {
	ServeURL    string
	Composition *Composition
	Codec       string
	InputProps  interface{}
	OnProgress  ProgressFunc
}

// Engine is the boundary to the external rendering engine. Cancelling the
// context aborts an in-flight render; RenderMedia then returns an error.
type Engine interface {
	SelectComposition(ctx context.Context, serveURL, compositionID string, inputProps interface{}) (*Composition, error)
	RenderMedia(ctx context.Context, p RenderParams) ([]byte, error)
}
