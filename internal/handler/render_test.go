package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/quizvideo/api/internal/handler"
	"github.com/quizvideo/api/internal/queue"
	"github.com/quizvideo/api/internal/render"
)

type stubEngine struct {
	renderFn func(ctx context.Context, p render.RenderParams) ([]byte, error)
}

func (e *stubEngine) SelectComposition(ctx context.Context, serveURL, compositionID string, inputProps interface{}) (*render.Composition, error) {
	return &render.Composition{ID: compositionID, Width: 1080, Height: 1920, FPS: 30, DurationInFrames: 300}, nil
}

func (e *stubEngine) RenderMedia(ctx context.Context, p render.RenderParams) ([]byte, error) {
	if e.renderFn != nil {
		return e.renderFn(ctx, p)
	}
	return []byte("video"), nil
}

type stubNotifier struct {
	result queue.DeliveryResult
}

func (n *stubNotifier) Deliver(ctx context.Context, artifact []byte, chatID, jobID string) queue.DeliveryResult {
	return n.result
}

func setupApp(t *testing.T, engine render.Engine, notifier queue.Notifier) *fiber.App {
	t.Helper()

	q := queue.New(engine, notifier, nil, queue.Options{ServeURL: "http://localhost:3001/bundle"})
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go q.Run(ctx)

	h := handler.NewRenderHandler(q, validator.New())

	app := fiber.New()
	app.Post("/renders", h.Create)
	app.Get("/renders", h.List)
	app.Get("/renders/:jobId", h.Get)
	app.Delete("/renders/:jobId", h.Cancel)
	return app
}

func doRequest(t *testing.T, app *fiber.App, method, path, body string) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	resp.Body.Close()
	return resp, raw
}

func parseJSON(t *testing.T, raw []byte) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("parse response %q: %v", raw, err)
	}
	return out
}

func errorCode(t *testing.T, raw []byte) string {
	t.Helper()
	body := parseJSON(t, raw)
	detail, ok := body["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error envelope, got %s", raw)
	}
	code, _ := detail["code"].(string)
	return code
}

func validCreateBody(question string) string {
	return fmt.Sprintf(`{
		"quizData": {
			"questions": [
				{
					"question": %q,
					"options": ["Paris", "Rome", "Berlin"],
					"correctAnswerIndex": 0
				}
			]
		},
		"chatId": 424242
	}`, question)
}

func createJob(t *testing.T, app *fiber.App, question string) string {
	t.Helper()
	resp, raw := doRequest(t, app, "POST", "/renders", validCreateBody(question))
	if resp.StatusCode != fiber.StatusAccepted {
		t.Fatalf("create: expected 202, got %d: %s", resp.StatusCode, raw)
	}
	jobID, _ := parseJSON(t, raw)["jobId"].(string)
	if jobID == "" {
		t.Fatalf("create: missing jobId in %s", raw)
	}
	return jobID
}

func awaitStatus(t *testing.T, app *fiber.App, jobID, want string) map[string]interface{} {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		resp, raw := doRequest(t, app, "GET", "/renders/"+jobID, "")
		if resp.StatusCode == fiber.StatusOK {
			body := parseJSON(t, raw)
			if body["status"] == want {
				return body
			}
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("job %s never reached status %s", jobID, want)
	return nil
}

func TestCreateRenderAccepted(t *testing.T) {
	app := setupApp(t, &stubEngine{}, nil)

	jobID := createJob(t, app, "What is the capital of France?")
	awaitStatus(t, app, jobID, "completed")
}

func TestCreateRenderStringChatID(t *testing.T) {
	app := setupApp(t, &stubEngine{}, nil)

	body := `{
		"quizData": {
			"questions": [
				{"question": "Q?", "options": ["a", "b"], "correctAnswerIndex": 1}
			]
		},
		"chatId": "@quizchannel"
	}`
	resp, raw := doRequest(t, app, "POST", "/renders", body)
	if resp.StatusCode != fiber.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", resp.StatusCode, raw)
	}
}

func TestCreateRenderRejectsInvalidBody(t *testing.T) {
	app := setupApp(t, &stubEngine{}, nil)

	cases := []struct {
		name string
		body string
	}{
		{"malformed json", `{"quizData": `},
		{"missing quiz data", `{"chatId": 1}`},
		{"missing chat id", `{"quizData": {"questions": [{"question": "Q?", "options": ["a", "b"], "correctAnswerIndex": 0}]}}`},
		{"empty questions", `{"quizData": {"questions": []}, "chatId": 1}`},
		{"single option", `{"quizData": {"questions": [{"question": "Q?", "options": ["a"], "correctAnswerIndex": 0}]}, "chatId": 1}`},
		{"missing question text", `{"quizData": {"questions": [{"options": ["a", "b"], "correctAnswerIndex": 0}]}, "chatId": 1}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, raw := doRequest(t, app, "POST", "/renders", tc.body)
			if resp.StatusCode != fiber.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", resp.StatusCode, raw)
			}
			if code := errorCode(t, raw); code != "VALIDATION_ERROR" {
				t.Errorf("expected VALIDATION_ERROR, got %s", code)
			}
		})
	}
}

func TestGetRenderNotFound(t *testing.T) {
	app := setupApp(t, &stubEngine{}, nil)

	resp, raw := doRequest(t, app, "GET", "/renders/does-not-exist", "")
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	if code := errorCode(t, raw); code != "NOT_FOUND" {
		t.Errorf("expected NOT_FOUND, got %s", code)
	}
}

func TestGetRenderCompletedProjection(t *testing.T) {
	notifier := &stubNotifier{result: queue.DeliveryResult{Sent: false, Err: "Bad Request: chat not found"}}
	app := setupApp(t, &stubEngine{}, notifier)

	jobID := createJob(t, app, "projection")
	var body map[string]interface{}
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		body = awaitStatus(t, app, jobID, "completed")
		if body["telegramSent"] != nil {
			break
		}
		time.Sleep(2 * time.Millisecond)
	}

	if sent, ok := body["telegramSent"].(bool); !ok || sent {
		t.Errorf("expected telegramSent false, got %v", body["telegramSent"])
	}
	if body["telegramError"] != "Bad Request: chat not found" {
		t.Errorf("unexpected telegramError: %v", body["telegramError"])
	}
	for _, hidden := range []string{"quizData", "chatId", "artifact", "buffer"} {
		if _, ok := body[hidden]; ok {
			t.Errorf("completed projection must not expose %s", hidden)
		}
	}
}

func TestGetRenderFailedProjection(t *testing.T) {
	engine := &stubEngine{
		renderFn: func(ctx context.Context, p render.RenderParams) ([]byte, error) {
			return nil, fmt.Errorf("chromium exited unexpectedly")
		},
	}
	app := setupApp(t, engine, nil)

	jobID := createJob(t, app, "doomed")
	body := awaitStatus(t, app, jobID, "failed")

	errBody, ok := body["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error object, got %v", body)
	}
	if msg, _ := errBody["message"].(string); !strings.Contains(msg, "chromium exited unexpectedly") {
		t.Errorf("unexpected failure message: %v", errBody["message"])
	}
	if errBody["kind"] != "RENDER_ENGINE_ERROR" {
		t.Errorf("expected RENDER_ENGINE_ERROR, got %v", errBody["kind"])
	}
}

func TestGetRenderTerminalResponsesAreStable(t *testing.T) {
	app := setupApp(t, &stubEngine{}, &stubNotifier{result: queue.DeliveryResult{Sent: true}})

	jobID := createJob(t, app, "stable")
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		body := awaitStatus(t, app, jobID, "completed")
		if body["telegramSent"] != nil {
			break
		}
		time.Sleep(2 * time.Millisecond)
	}

	_, first := doRequest(t, app, "GET", "/renders/"+jobID, "")
	_, second := doRequest(t, app, "GET", "/renders/"+jobID, "")
	if !bytes.Equal(first, second) {
		t.Errorf("terminal responses differ:\n%s\n%s", first, second)
	}
}

func TestListRenders(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	engine := &stubEngine{
		renderFn: func(ctx context.Context, p render.RenderParams) ([]byte, error) {
			started <- struct{}{}
			<-release
			return []byte("video"), nil
		},
	}
	app := setupApp(t, engine, nil)

	first := createJob(t, app, "list-1")
	<-started
	second := createJob(t, app, "list-2")

	resp, raw := doRequest(t, app, "GET", "/renders", "")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body struct {
		Jobs []struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"jobs"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		t.Fatalf("parse list: %v", err)
	}
	if len(body.Jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(body.Jobs))
	}
	if body.Jobs[0].ID != first || body.Jobs[1].ID != second {
		t.Errorf("expected creation order [%s %s], got %+v", first, second, body.Jobs)
	}
	if body.Jobs[0].Status != "in-progress" {
		t.Errorf("expected first job in-progress, got %s", body.Jobs[0].Status)
	}
	if body.Jobs[1].Status != "queued" {
		t.Errorf("expected second job queued, got %s", body.Jobs[1].Status)
	}

	close(release)
	awaitStatus(t, app, second, "completed")
}

func TestCancelQueuedRender(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	engine := &stubEngine{
		renderFn: func(ctx context.Context, p render.RenderParams) ([]byte, error) {
			started <- struct{}{}
			<-release
			return []byte("video"), nil
		},
	}
	app := setupApp(t, engine, nil)

	blocker := createJob(t, app, "blocker")
	<-started
	victim := createJob(t, app, "victim")

	resp, raw := doRequest(t, app, "DELETE", "/renders/"+victim, "")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, raw)
	}
	if parseJSON(t, raw)["message"] != "Job cancelled" {
		t.Errorf("unexpected cancel body: %s", raw)
	}

	resp, _ = doRequest(t, app, "GET", "/renders/"+victim, "")
	if resp.StatusCode != fiber.StatusNotFound {
		t.Errorf("cancelled queued job should be gone, got %d", resp.StatusCode)
	}

	close(release)
	awaitStatus(t, app, blocker, "completed")
}

func TestCancelRenderNotFound(t *testing.T) {
	app := setupApp(t, &stubEngine{}, nil)

	resp, raw := doRequest(t, app, "DELETE", "/renders/nope", "")
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	if code := errorCode(t, raw); code != "NOT_FOUND" {
		t.Errorf("expected NOT_FOUND, got %s", code)
	}
}

func TestCancelTerminalRender(t *testing.T) {
	app := setupApp(t, &stubEngine{}, nil)

	jobID := createJob(t, app, "done")
	awaitStatus(t, app, jobID, "completed")

	resp, raw := doRequest(t, app, "DELETE", "/renders/"+jobID, "")
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", resp.StatusCode, raw)
	}
	if code := errorCode(t, raw); code != "VALIDATION_ERROR" {
		t.Errorf("expected VALIDATION_ERROR, got %s", code)
	}
}
