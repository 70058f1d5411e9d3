package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukex/flowcore/pkg/eventbus"
	"github.com/dukex/flowcore/pkg/events"
)

var (
	ErrHTTPURLRequired = errors.New("http handler requires a url")
	ErrHTTPStatus      = errors.New("unexpected HTTP status")
)

// LogHandler writes every dispatch to the logger and succeeds.
type LogHandler struct {
	logger *slog.Logger
}

func NewLogHandler(logger *slog.Logger) *LogHandler {
	return &LogHandler{logger: logger.With("module", "log_handler")}
}

func (h *LogHandler) Handle(ctx context.Context, kind string, config map[string]any) (Result, error) {
	if IsProbe(kind) {
		return Result{"ok": true}, nil
	}

	message, _ := config["message"].(string)
	h.logger.InfoContext(ctx, "Log dispatch", "kind", kind, "message", message, "config", config)

	return Result{"logged": true}, nil
}

// HTTPHandler posts the dispatch as JSON to a configured endpoint. The config
// may override the url, method and headers per call.
type HTTPHandler struct {
	URL     string
	Method  string
	Headers map[string]string
	client  *http.Client
	logger  *slog.Logger
}

func NewHTTPHandler(url string, timeout time.Duration, logger *slog.Logger) *HTTPHandler {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &HTTPHandler{
		URL:    url,
		Method: http.MethodPost,
		client: &http.Client{Timeout: timeout},
		logger: logger.With("module", "http_handler"),
	}
}

func (h *HTTPHandler) Handle(ctx context.Context, kind string, config map[string]any) (Result, error) {
	url := h.URL
	if override, ok := config["url"].(string); ok && override != "" {
		url = override
	}

	if url == "" {
		return nil, ErrHTTPURLRequired
	}

	method := h.Method
	if override, ok := config["method"].(string); ok && override != "" {
		method = strings.ToUpper(override)
	}

	if IsDryRun(kind, config) {
		method = http.MethodHead
	}

	body, err := json.Marshal(map[string]any{"kind": kind, "config": config})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	var reader io.Reader
	if method != http.MethodGet && method != http.MethodHead {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	for k, v := range h.Headers {
		req.Header.Set(k, v)
	}

	if headers, ok := config["headers"].(map[string]any); ok {
		for k, v := range headers {
			if s, ok := v.(string); ok {
				req.Header.Set(k, s)
			}
		}
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}

	defer func() {
		if err := resp.Body.Close(); err != nil {
			h.logger.ErrorContext(ctx, "failed to close response body", "error", err)
		}
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: %d", ErrHTTPStatus, resp.StatusCode)
	}

	result := Result{"status_code": resp.StatusCode}

	var decoded any
	if len(respBody) > 0 && json.Unmarshal(respBody, &decoded) == nil {
		result["body"] = decoded
	} else if len(respBody) > 0 {
		result["body"] = string(respBody)
	}

	return result, nil
}

// PublishHandler hands the dispatch to the event bus for out-of-process consumers.
type PublishHandler struct {
	service   string
	publisher eventbus.EventPublisher
}

func NewPublishHandler(service string, publisher eventbus.EventPublisher) *PublishHandler {
	return &PublishHandler{service: service, publisher: publisher}
}

func (h *PublishHandler) Handle(ctx context.Context, kind string, config map[string]any) (Result, error) {
	if IsDryRun(kind, config) {
		return Result{"ok": true}, nil
	}

	event := events.NewActionDispatched(h.service, kind, config)

	err := h.publisher.Publish(ctx, h.service, event)
	if err != nil {
		return nil, fmt.Errorf("failed to publish dispatch: %w", err)
	}

	return Result{"event_id": event.ID}, nil
}
