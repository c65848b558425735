package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/syllabusd/internal/config"
)

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func TestNewLogger(t *testing.T) {
	o := config.Default().Observability
	_, err := newLogger(o)
	require.NoError(t, err)

	o.LogLevel = "loud"
	_, err = newLogger(o)
	assert.Error(t, err)
}

func TestRunIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	t.Setenv("HOME", t.TempDir())
	port := freePort(t)
	t.Setenv("SYLLABUSD_SERVER_HTTP_PORT", fmt.Sprint(port))
	t.Setenv("SYLLABUSD_OBSERVABILITY_LOG_LEVEL", "error")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- run(ctx, "")
	}()

	base := fmt.Sprintf("http://127.0.0.1:%d", port)
	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 50*time.Millisecond)

	resp, err := http.Post(base+"/api/v1/extract", "application/json",
		strings.NewReader(`{"text":"Homework 1 due Oct 3"}`))
	require.NoError(t, err)
	var body struct {
		UsedFallback bool              `json:"used_fallback"`
		Items        []json.RawMessage `json:"items"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	resp.Body.Close()
	assert.True(t, body.UsedFallback)
	assert.Len(t, body.Items, 1)

	resp, err = http.Get(base + "/metrics")
	require.NoError(t, err)
	metrics, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(metrics), "syllabusd_extraction_runs_total")

	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shutdown in time")
	}
}
