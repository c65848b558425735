package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/syllabusd/internal/extraction"
	"github.com/fyrsmithlabs/syllabusd/internal/logging"
)

const oracleAnswer = `[
	{"kind":"hard_deadline","date_string":"Oct 3","hard_deadlines":[{"title":"Final Paper","type":"paper"}]},
	{"kind":"class_session","date_string":"Oct 1","session_title":"Discussion","prep_tasks":[{"title":"Chapter 4"}]}
]`

type recordingPublisher struct {
	mu      sync.Mutex
	results []*extraction.Result
	err     error
}

func (p *recordingPublisher) Publish(_ context.Context, res *extraction.Result) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.results = append(p.results, res)
	return nil
}

func newTestPipeline(answer string, opts ...extraction.PipelineOption) *extraction.Pipeline {
	oracle := extraction.NewAdapter(extraction.CompleterFunc(func(context.Context, string, string) (string, error) {
		return answer, nil
	}))
	return extraction.NewPipeline(extraction.DefaultPipelineConfig(), oracle, opts...)
}

func setupTestServer(t *testing.T, opts ...Option) (*Server, *logging.TestLogger) {
	t.Helper()
	tl := logging.NewTestLogger()
	server, err := NewServer(newTestPipeline(oracleAnswer, extraction.WithLogger(tl.Logger)), tl.Logger, &Config{Host: "localhost", Port: 9090, Version: "test"}, opts...)
	require.NoError(t, err)
	return server, tl
}

func postJSON(t *testing.T, s *Server, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestNewServer(t *testing.T) {
	t.Run("creates server with valid config", func(t *testing.T) {
		cfg := &Config{Host: "localhost", Port: 9090}
		server, err := NewServer(newTestPipeline("[]"), logging.NewNop(), cfg)
		require.NoError(t, err)
		assert.NotNil(t, server.echo)
		assert.Equal(t, cfg, server.config)
		assert.Equal(t, 1024, server.config.MaxBodyKB)
	})

	t.Run("uses defaults when config is nil", func(t *testing.T) {
		server, err := NewServer(newTestPipeline("[]"), logging.NewNop(), nil)
		require.NoError(t, err)
		assert.Equal(t, "localhost", server.config.Host)
		assert.Equal(t, 9090, server.config.Port)
	})

	t.Run("returns error when logger is nil", func(t *testing.T) {
		_, err := NewServer(newTestPipeline("[]"), nil, nil)
		assert.ErrorContains(t, err, "logger is required")
	})

	t.Run("returns error when extractor is nil", func(t *testing.T) {
		_, err := NewServer(nil, logging.NewNop(), nil)
		assert.ErrorContains(t, err, "extractor cannot be nil")
	})
}

func TestHandleHealth(t *testing.T) {
	t.Run("oracle configured, publish disabled", func(t *testing.T) {
		server, _ := setupTestServer(t)

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		rec := httptest.NewRecorder()
		server.Handler().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		var resp HealthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, HealthResponse{Status: "ok", Version: "test", Oracle: "configured", Publish: "disabled"}, resp)
	})

	t.Run("no oracle, publish enabled", func(t *testing.T) {
		server, err := NewServer(extraction.NewPipeline(extraction.DefaultPipelineConfig(), nil), logging.NewNop(), nil,
			WithPublisher(&recordingPublisher{}))
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		rec := httptest.NewRecorder()
		server.Handler().ServeHTTP(rec, req)

		var resp HealthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "disabled", resp.Oracle)
		assert.Equal(t, "enabled", resp.Publish)
	})
}

func TestHandleExtract(t *testing.T) {
	t.Run("returns assembled items", func(t *testing.T) {
		server, tl := setupTestServer(t)

		rec := postJSON(t, server, "/api/v1/extract", ExtractRequest{
			Text:       "Final Paper due Oct 3. Discussion on Oct 1, read chapter 4.",
			DocumentID: "soc-101",
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp ExtractResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.NotEmpty(t, resp.RunID)
		assert.Equal(t, "soc-101", resp.DocumentID)
		assert.Equal(t, ItemCounts{Deadlines: 1, Sessions: 1, Readings: 1}, resp.Counts)
		assert.Equal(t, 1, resp.Outcomes.OK)
		assert.False(t, resp.UsedFallback)
		assert.False(t, resp.Published)

		require.Len(t, resp.Items, 2)
		assert.Equal(t, "Final Paper", resp.Items[0].Deadline.Title)
		assert.Equal(t, "Discussion", resp.Items[1].Session.Title)

		tl.AssertLogged(t, zapcore.InfoLevel, "http request")
		requestID := rec.Header().Get(echo.HeaderXRequestID)
		require.NotEmpty(t, requestID)
		tl.AssertField(t, "http request", "request.id", requestID)
		tl.AssertField(t, "extraction run complete", "request.id", requestID)
	})

	t.Run("wire format is tagged", func(t *testing.T) {
		server, _ := setupTestServer(t)
		rec := postJSON(t, server, "/api/v1/extract", ExtractRequest{Text: "Final Paper due Oct 3. Discussion on Oct 1."})
		require.Equal(t, http.StatusOK, rec.Code)

		var raw struct {
			Items []map[string]any `json:"items"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
		require.Len(t, raw.Items, 2)
		assert.Equal(t, "hard_deadline", raw.Items[0]["kind"])
		assert.Equal(t, "class_session", raw.Items[1]["kind"])
		assert.Equal(t, []any{}, raw.Items[1]["readings"], "reading gate strips readings without a trigger")
	})

	t.Run("empty text is rejected", func(t *testing.T) {
		server, _ := setupTestServer(t)
		rec := postJSON(t, server, "/api/v1/extract", ExtractRequest{Text: "  \n "})
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		var resp map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Contains(t, resp["message"], "text field is required")
	})

	t.Run("invalid json", func(t *testing.T) {
		server, _ := setupTestServer(t)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/extract", strings.NewReader("invalid json"))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		server.Handler().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("body over limit", func(t *testing.T) {
		server, err := NewServer(newTestPipeline("[]"), logging.NewNop(), &Config{MaxBodyKB: 1})
		require.NoError(t, err)
		rec := postJSON(t, server, "/api/v1/extract", ExtractRequest{Text: strings.Repeat("a", 4096)})
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	})

	t.Run("no deadlines is not an error", func(t *testing.T) {
		server, err := NewServer(extraction.NewPipeline(extraction.DefaultPipelineConfig(), nil), logging.NewNop(), nil)
		require.NoError(t, err)

		rec := postJSON(t, server, "/api/v1/extract", ExtractRequest{Text: "Welcome to the course"})
		require.Equal(t, http.StatusOK, rec.Code)

		var resp ExtractResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.True(t, resp.UsedFallback)
		assert.Equal(t, ItemCounts{Placeholders: 1}, resp.Counts)
	})
}

func TestHandleExtract_Publish(t *testing.T) {
	t.Run("publishes when requested", func(t *testing.T) {
		pub := &recordingPublisher{}
		server, _ := setupTestServer(t, WithPublisher(pub))

		rec := postJSON(t, server, "/api/v1/extract", ExtractRequest{Text: "Final Paper due Oct 3.", Publish: true})
		require.Equal(t, http.StatusOK, rec.Code)

		var resp ExtractResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.True(t, resp.Published)
		require.Len(t, pub.results, 1)
		assert.Equal(t, resp.RunID, pub.results[0].RunID)
	})

	t.Run("publish failure keeps the result", func(t *testing.T) {
		server, tl := setupTestServer(t, WithPublisher(&recordingPublisher{err: errors.New("nats: timeout")}))

		rec := postJSON(t, server, "/api/v1/extract", ExtractRequest{Text: "Final Paper due Oct 3.", Publish: true})
		require.Equal(t, http.StatusOK, rec.Code)

		var resp ExtractResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.False(t, resp.Published)
		assert.Equal(t, "nats: timeout", resp.PublishError)
		assert.NotEmpty(t, resp.Items)
		tl.AssertLogged(t, zapcore.WarnLevel, "publish failed")
	})

	t.Run("publish without publisher", func(t *testing.T) {
		server, _ := setupTestServer(t)
		rec := postJSON(t, server, "/api/v1/extract", ExtractRequest{Text: "Final Paper due Oct 3.", Publish: true})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandleSnippets(t *testing.T) {
	server, _ := setupTestServer(t)

	rec := postJSON(t, server, "/api/v1/snippets", SnippetsRequest{Text: "Intro\nWeek 1 Oct 1\nRead chapter 1\n\n\n\n\nPart 1/2"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp SnippetsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Snippets, 2)

	assert.True(t, resp.Snippets[0].Classifiable)
	assert.Equal(t, []string{"Oct 1"}, resp.Snippets[0].Dates)
	assert.Equal(t, 0, resp.Snippets[0].StartLine)

	assert.False(t, resp.Snippets[1].Classifiable, "1/2 is a raw match but not a valid date")
	assert.Equal(t, []string{}, resp.Snippets[1].Dates)

	rec = postJSON(t, server, "/api/v1/snippets", SnippetsRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_StartShutdown(t *testing.T) {
	server, err := NewServer(newTestPipeline("[]"), logging.NewNop(), &Config{Host: "127.0.0.1", Port: 0})
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()
	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, server.Shutdown(ctx))

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, http.ErrServerClosed)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestCountItems(t *testing.T) {
	items := []extraction.Item{
		{Deadline: &extraction.HardDeadline{Title: "A"}},
		{Deadline: &extraction.HardDeadline{Title: "No deadlines found", Placeholder: true}},
		{Session: &extraction.ClassSession{Readings: []extraction.Reading{{Title: "x"}, {Title: "y"}}}},
		{Session: &extraction.ClassSession{}},
		{},
	}
	assert.Equal(t, ItemCounts{Deadlines: 1, Sessions: 2, Readings: 2, Placeholders: 1}, CountItems(items))
	assert.Equal(t, ItemCounts{}, CountItems(nil))
}
