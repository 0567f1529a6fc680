package queue

import "errors"

var (
	// ErrJobNotFound is returned for lookups and cancels of unknown job ids.
	ErrJobNotFound = errors.New("job not found")

	// ErrNotCancellable is returned when cancelling a terminal job.
	ErrNotCancellable = errors.New("job is not cancellable")

	// ErrRenderOutputMissing marks a render that finished without an artifact.
	ErrRenderOutputMissing = errors.New("render output buffer is empty")
)

// Error kinds exposed on failed job records.
const (
	KindRenderEngineError   = "RENDER_ENGINE_ERROR"
	KindRenderOutputMissing = "RENDER_OUTPUT_MISSING"
)

// FailureKind classifies the error stored on a failed record. Cancellation
// surfaces through the engine and is classified as an engine error, matching
// the persisted-state contract: callers cannot tell cancelled from errored.
func FailureKind(err error) string {
	if errors.Is(err, ErrRenderOutputMissing) {
		return KindRenderOutputMissing
	}
	return KindRenderEngineError
}
