package reasoning

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"eventplace/internal/config"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSchema = map[string]any{"type": "object"}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	logger := zerolog.New(io.Discard)
	return NewClient(config.ReasoningConfig{URL: srv.URL + "/", APIKey: "secret", Model: "test-model", Timeout: time.Second}, &logger)
}

func TestGenerate_OutputText(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, responsesPath, r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "test-model", body["model"])
		assert.Equal(t, "make a list", body["input"])
		format := body["text"].(map[string]any)["format"].(map[string]any)
		assert.Equal(t, "json_schema", format["type"])

		_, _ = w.Write([]byte(`{"output_text":"{\"items\":[{\"task\":\"a\"}]}"}`))
	})

	out, err := c.Generate(context.Background(), "make a list", testSchema)
	require.NoError(t, err)
	assert.JSONEq(t, `{"items":[{"task":"a"}]}`, string(out))
}

func TestGenerate_OutputArray(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"output":[{"type":"message","content":[{"type":"output_text","text":"[1,2]"}]}]}`))
	})

	out, err := c.Generate(context.Background(), "p", testSchema)
	require.NoError(t, err)
	assert.JSONEq(t, `[1,2]`, string(out))
}

func TestGenerate_Errors(t *testing.T) {
	t.Run("http error with message", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":{"message":"slow down"}}`))
		})
		_, err := c.Generate(context.Background(), "p", testSchema)
		assert.ErrorContains(t, err, "429")
		assert.ErrorContains(t, err, "slow down")
	})

	t.Run("empty output", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"output":[]}`))
		})
		_, err := c.Generate(context.Background(), "p", testSchema)
		assert.ErrorIs(t, err, ErrEmptyOutput)
	})

	t.Run("non json output", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"output_text":"sorry, I can't"}`))
		})
		_, err := c.Generate(context.Background(), "p", testSchema)
		assert.Error(t, err)
	})

	t.Run("timeout", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			<-r.Context().Done()
		})
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		_, err := c.Generate(ctx, "p", testSchema)
		assert.Error(t, err)
	})

	t.Run("not configured", func(t *testing.T) {
		logger := zerolog.Nop()
		c := NewClient(config.ReasoningConfig{}, &logger)
		_, err := c.Generate(context.Background(), "p", testSchema)
		assert.Error(t, err)
	})
}
