package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/creancio/be-rc-validation/internal/faults"
)

// httpx is the shared JSON transport for all facade clients. It classifies
// every failure into the faults taxonomy so no raw transport error escapes
// the client package.
type httpx struct {
	baseURL string
	hc      *http.Client
	log     zerolog.Logger
}

func newHTTPX(baseURL string, timeout time.Duration, log zerolog.Logger) *httpx {
	return &httpx{
		baseURL: strings.TrimRight(baseURL, "/"),
		hc:      &http.Client{Timeout: timeout},
		log:     log,
	}
}

// errorEnvelope matches the shapes the backend uses for error payloads.
type errorEnvelope struct {
	Message string `json:"message"`
	Error   string `json:"error"`
	Detail  string `json:"detail"`
}

// do issues one JSON request. in is marshaled when non-nil; out is decoded
// into when non-nil and the response has a body.
func (c *httpx) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	body, err := c.doRaw(ctx, method, path, query, in)
	if err != nil {
		return err
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return faults.Wrap(err, faults.ClassTransient,
			fmt.Sprintf("backend returned an unreadable response for %s %s", method, path))
	}
	return nil
}

// doRaw issues one request and returns the raw success body. HTTP-level
// failures come back classified, with the backend's own message extracted
// when present.
func (c *httpx) doRaw(ctx context.Context, method, path string, query url.Values, in any) ([]byte, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return nil, faults.Wrap(err, faults.ClassUnknown, "failed to encode request body")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, faults.Wrap(err, faults.ClassUnknown, "failed to build backend request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, faults.Wrap(ctx.Err(), faults.ClassTransient, "backend request cancelled")
		}
		return nil, faults.Wrap(err, faults.ClassTransient, "backend is unreachable")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, faults.Wrap(err, faults.ClassTransient, "failed to read backend response")
	}

	if resp.StatusCode >= 400 {
		msg := extractMessage(body)
		c.log.Debug().
			Str("method", method).
			Str("path", path).
			Int("status", resp.StatusCode).
			Str("backend_message", msg).
			Msg("backend request failed")
		return nil, faults.FromHTTP(resp.StatusCode, msg)
	}

	return body, nil
}

// extractMessage pulls the backend-supplied detail out of an error payload.
// The backend is inconsistent about field names and sometimes returns plain
// text, so every shape is tried before falling back to the raw body.
func extractMessage(body []byte) string {
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err == nil {
		switch {
		case env.Message != "":
			return env.Message
		case env.Error != "":
			return env.Error
		case env.Detail != "":
			return env.Detail
		}
	}
	var s string
	if err := json.Unmarshal(body, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(body))
}
