package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa-be/internal/dto"
	"docqa-be/internal/repository"
	"docqa-be/internal/service"
	"docqa-be/pkg/queue"
)

type fakeRagService struct {
	outcome  *service.AskOutcome
	sync     *dto.SyncAnswerResponse
	snapshot *queue.Snapshot
	stats    *dto.StatsResponse
	err      error
}

func (f *fakeRagService) Ask(ctx context.Context, userId string, req dto.AskRequest) (*service.AskOutcome, error) {
	return f.outcome, f.err
}

func (f *fakeRagService) AskSync(ctx context.Context, userId string, req dto.AskRequest) (*dto.SyncAnswerResponse, error) {
	return f.sync, f.err
}

func (f *fakeRagService) AskFile(ctx context.Context, userId, fileId string, req dto.AskRequest) (*service.AskOutcome, error) {
	return f.outcome, f.err
}

func (f *fakeRagService) Status(ctx context.Context, jobId string) (*queue.Snapshot, error) {
	return f.snapshot, f.err
}

func (f *fakeRagService) Stats(ctx context.Context, userId string) (*dto.StatsResponse, error) {
	return f.stats, f.err
}

func newTestApp(svc service.IRagService) *fiber.App {
	app := fiber.New()
	api := app.Group("/api")
	NewRagController(svc).RegisterRoutes(api)
	return app
}

func bearerToken(t *testing.T) string {
	t.Helper()
	t.Setenv("JWT_SECRET", "test-secret")
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": "u1",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return "Bearer " + signed
}

func doRequest(t *testing.T, app *fiber.App, method, path, auth string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestAskRequiresAuth(t *testing.T) {
	app := newTestApp(&fakeRagService{})
	resp := doRequest(t, app, http.MethodPost, "/api/rag/ask", "", dto.AskRequest{Question: "q"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAskRejectsEmptyQuestion(t *testing.T) {
	auth := bearerToken(t)
	app := newTestApp(&fakeRagService{})

	resp := doRequest(t, app, http.MethodPost, "/api/rag/ask", auth, dto.AskRequest{Question: ""})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, false, body["success"])
}

func TestAskEnqueuedReturns202(t *testing.T) {
	auth := bearerToken(t)
	app := newTestApp(&fakeRagService{
		outcome: &service.AskOutcome{Enqueued: &dto.EnqueueResponse{
			JobId:     "job-1",
			StatusUrl: "/api/rag/status/job-1",
		}},
	})

	resp := doRequest(t, app, http.MethodPost, "/api/rag/ask", auth, dto.AskRequest{Question: "what is the warranty"})
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	body := decodeBody(t, resp)
	data := body["data"].(map[string]any)
	assert.Equal(t, "job-1", data["jobId"])
	assert.Equal(t, "/api/rag/status/job-1", data["statusUrl"])
}

func TestAskFallbackReturns200(t *testing.T) {
	auth := bearerToken(t)
	app := newTestApp(&fakeRagService{
		outcome: &service.AskOutcome{Answer: &dto.SyncAnswerResponse{
			RequestId: "req-1",
			Answer:    "two years",
			Fallback:  true,
		}},
	})

	resp := doRequest(t, app, http.MethodPost, "/api/rag/ask", auth, dto.AskRequest{Question: "warranty?"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	data := body["data"].(map[string]any)
	assert.Equal(t, "two years", data["answer"])
	assert.Equal(t, true, data["fallback"])
}

func TestAskFileNotOwnedReturns404(t *testing.T) {
	auth := bearerToken(t)
	app := newTestApp(&fakeRagService{err: repository.ErrNotOwned})

	resp := doRequest(t, app, http.MethodPost, "/api/rag/ask-file/f1", auth, dto.AskRequest{Question: "q"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "File not found", body["message"])
}

func TestStatusUnknownJobReturns404(t *testing.T) {
	auth := bearerToken(t)
	app := newTestApp(&fakeRagService{err: queue.ErrNotFound})

	resp := doRequest(t, app, http.MethodGet, "/api/rag/status/nope", auth, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStatusQueueDownReturns500(t *testing.T) {
	auth := bearerToken(t)
	app := newTestApp(&fakeRagService{err: queue.ErrUnavailable})

	resp := doRequest(t, app, http.MethodGet, "/api/rag/status/job-1", auth, nil)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "Queue unavailable", body["message"])
}

func TestStatsReturnsStoreAndQueueNumbers(t *testing.T) {
	auth := bearerToken(t)
	app := newTestApp(&fakeRagService{stats: &dto.StatsResponse{
		TotalVectors:   120,
		UserFiles:      4,
		CollectionName: "document_chunks",
		VectorSize:     1024,
		Queues:         map[string]int64{"rag": 3},
	}})

	resp := doRequest(t, app, http.MethodGet, "/api/rag/stats", auth, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	data := body["data"].(map[string]any)
	assert.Equal(t, float64(120), data["totalVectors"])
	assert.Equal(t, float64(4), data["userFiles"])
	assert.Equal(t, "document_chunks", data["collectionName"])
	assert.Equal(t, float64(1024), data["vectorSize"])
	assert.Equal(t, float64(3), data["queues"].(map[string]any)["rag"])
}
