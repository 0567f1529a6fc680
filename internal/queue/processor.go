package queue

import (
	"context"
	"fmt"
	"log"

	"github.com/quizvideo/api/internal/render"
)

// process drives a single job through the render engine and, on success,
// the delivery attempt. Every transition writes a whole record. Render and
// delivery errors are folded into the record; only ErrJobNotFound escapes,
// meaning the queued job was cancelled before its turn.
func (q *Queue) process(ctx context.Context, jobID string) error {
	renderCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	prev, ok := q.store.Replace(jobID, func(prev State) State {
		return InProgress{Input: prev.input(), Cancel: cancel, Progress: 0}
	})
	if !ok {
		return fmt.Errorf("render job %s: %w", jobID, ErrJobNotFound)
	}
	input := prev.input()
	q.broadcastProgress(jobID, 0)
	log.Printf("Job %s render starting", jobID)

	// Terminal transitions go through Replace so they can never recreate a
	// record that was removed.
	artifact, err := q.renderJob(renderCtx, jobID, input)
	if err != nil {
		q.store.Replace(jobID, func(State) State {
			return Failed{Input: input, Err: err}
		})
		q.broadcastError(jobID, FailureKind(err), err.Error())
		log.Printf("Job %s failed: %v", jobID, err)
		return nil
	}
	log.Printf("Job %s rendered successfully (%d bytes)", jobID, len(artifact))

	// Completed with a pending delivery outcome, then fold the result in.
	q.store.Replace(jobID, func(State) State {
		return Completed{Input: input, Artifact: artifact}
	})
	result := q.deliver(ctx, jobID, input, artifact)
	sent := result.Sent
	q.store.Replace(jobID, func(State) State {
		return Completed{
			Input:         input,
			Artifact:      artifact,
			TelegramSent:  &sent,
			TelegramError: result.Err,
		}
	})
	q.broadcastComplete(jobID, &sent, result.Err)
	return nil
}

func (q *Queue) renderJob(ctx context.Context, jobID string, input Input) ([]byte, error) {
	inputProps := map[string]interface{}{"quizData": input.Quiz}

	composition, err := q.engine.SelectComposition(ctx, q.opts.ServeURL, q.opts.CompositionID, inputProps)
	if err != nil {
		return nil, fmt.Errorf("select composition: %w", err)
	}

	artifact, err := q.engine.RenderMedia(ctx, render.RenderParams{
		ServeURL:    q.opts.ServeURL,
		Composition: composition,
		Codec:       q.opts.Codec,
		InputProps:  inputProps,
		OnProgress: func(progress float64) {
			q.reportProgress(jobID, progress)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("render media: %w", err)
	}
	if len(artifact) == 0 {
		return nil, ErrRenderOutputMissing
	}
	return artifact, nil
}

// reportProgress refreshes the in-progress record with an engine-reported
// value. Reports arriving after the job left InProgress, or behind the
// stored value, are dropped so progress never regresses.
func (q *Queue) reportProgress(jobID string, progress float64) {
	updated := false
	q.store.Replace(jobID, func(prev State) State {
		current, ok := prev.(InProgress)
		if !ok || progress < current.Progress {
			return prev
		}
		updated = true
		return InProgress{Input: current.Input, Cancel: current.Cancel, Progress: progress}
	})
	if updated {
		q.broadcastProgress(jobID, progress)
	}
}

func (q *Queue) deliver(ctx context.Context, jobID string, input Input, artifact []byte) DeliveryResult {
	if q.notifier == nil {
		return DeliveryResult{Sent: false, Err: "delivery not configured"}
	}
	result := q.notifier.Deliver(ctx, artifact, input.ChatID, jobID)
	if result.Sent {
		log.Printf("Job %s delivered to chat %s", jobID, input.ChatID)
	} else {
		log.Printf("Job %s delivery skipped or failed: %s", jobID, result.Err)
	}
	return result
}

func (q *Queue) broadcastProgress(jobID string, progress float64) {
	if q.hub != nil {
		q.hub.BroadcastProgress(jobID, progress)
	}
}

func (q *Queue) broadcastComplete(jobID string, sent *bool, deliveryErr string) {
	if q.hub != nil {
		q.hub.BroadcastComplete(jobID, sent, deliveryErr)
	}
}

func (q *Queue) broadcastError(jobID string, kind, message string) {
	if q.hub != nil {
		q.hub.BroadcastError(jobID, kind, message)
	}
}
