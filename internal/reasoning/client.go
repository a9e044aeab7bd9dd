// Package reasoning talks to the external structured-generation service.
package reasoning

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"eventplace/internal/config"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

const (
	responsesPath  = "/v1/responses"
	maxBodyBytes   = 1 << 20
	defaultModel   = "gpt-4o-mini"
	schemaName     = "structured_output"
	defaultTimeout = 20 * time.Second
)

var ErrEmptyOutput = errors.New("reasoning service returned no output")

type Client struct {
	baseURL string
	apiKey  string
	model   string
	http    *http.Client
	logger  *zerolog.Logger
}

func NewClient(cfg config.ReasoningConfig, logger *zerolog.Logger) *Client {
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		apiKey:  cfg.APIKey,
		model:   model,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type formatSpec struct {
	Type   string         `json:"type"`
	Name   string         `json:"name"`
	Schema map[string]any `json:"schema"`
	Strict bool           `json:"strict"`
}

type request struct {
	Model string `json:"model"`
	Input string `json:"input"`
	Text  struct {
		Format formatSpec `json:"format"`
	} `json:"text"`
}

// Generate asks the service for JSON matching schema and returns it verbatim.
func (c *Client) Generate(ctx context.Context, prompt string, schema map[string]any) (json.RawMessage, error) {
	if c.baseURL == "" {
		return nil, errors.New("reasoning service url is not configured")
	}

	var body request
	body.Model = c.model
	body.Input = prompt
	body.Text.Format = formatSpec{Type: "json_schema", Name: schemaName, Schema: schema, Strict: true}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode reasoning request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+responsesPath, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build reasoning request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call reasoning service: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read reasoning response: %w", err)
	}

	c.logger.Debug().
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("reasoning call finished")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := gjson.GetBytes(raw, "error.message").String()
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, fmt.Errorf("reasoning service returned %d: %s", resp.StatusCode, msg)
	}

	return extractOutput(raw)
}

// extractOutput pulls the generated JSON document out of a responses payload.
func extractOutput(raw []byte) (json.RawMessage, error) {
	if !gjson.ValidBytes(raw) {
		return nil, errors.New("reasoning response is not valid JSON")
	}

	text := gjson.GetBytes(raw, "output_text").String()
	if text == "" {
		gjson.GetBytes(raw, "output").ForEach(func(_, item gjson.Result) bool {
			item.Get("content").ForEach(func(_, part gjson.Result) bool {
				if part.Get("type").String() == "output_text" {
					text = part.Get("text").String()
					return false
				}
				return true
			})
			return text == ""
		})
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyOutput
	}
	if !gjson.Valid(text) {
		return nil, fmt.Errorf("reasoning output is not valid JSON: %.80q", text)
	}
	return json.RawMessage(text), nil
}
