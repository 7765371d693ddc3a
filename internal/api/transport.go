// Package api talks to the remote ledger. Transport owns authentication and
// failure normalisation; the variant adapters translate the two observed wire
// contracts into the canonical ledger schema.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jask/ledgerview/internal/ledger"
	"github.com/jask/ledgerview/internal/session"
	"github.com/jask/ledgerview/internal/wire"
)

// DefaultTimeout bounds every request.
const DefaultTimeout = 10 * time.Second

// LoginRoute is the route that suppresses the unauthorized redirect.
const LoginRoute = "/auth/login"

const maxBody = 4 << 20

// Router is the navigation side of the unauthorized handling.
type Router interface {
	Route() string
	RedirectToLogin()
}

// Transport issues authenticated JSON requests against BaseURL.
type Transport struct {
	BaseURL string
	Client  *http.Client
	Session *session.State
	Router  Router
	Logger  *slog.Logger
}

// NewTransport builds a transport with a bounded client. rt may be nil for
// the default network round tripper.
func NewTransport(baseURL string, timeout time.Duration, rt http.RoundTripper, state *session.State, logger *slog.Logger) *Transport {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Transport{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: timeout, Transport: rt},
		Session: state,
		Logger:  logger,
	}
}

// Do sends body (if non-nil) as JSON and decodes a 2xx response into out (if non-nil).
func (t *Transport) Do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	op := method + " " + path

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return &ledger.Error{Kind: ledger.KindUnknown, Op: op, Message: "could not encode request", Err: err}
		}
		rdr = bytes.NewReader(b)
	}
	target := t.BaseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, rdr)
	if err != nil {
		return &ledger.Error{Kind: ledger.KindUnknown, Op: op, Message: "could not build request", Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if t.Session != nil {
		if tok := t.Session.Token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	start := time.Now()
	resp, err := t.Client.Do(req)
	if err != nil {
		t.Logger.Warn("request failed", "op", op, "err", err)
		return transportError(op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return transportError(op, err)
	}
	t.Logger.Debug("request", "op", op, "status", resp.StatusCode, "elapsed", time.Since(start))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil || len(bytes.TrimSpace(data)) == 0 {
			return nil
		}
		if err := json.Unmarshal(data, out); err != nil {
			return &ledger.Error{Kind: ledger.KindUnknown, Op: op, Status: resp.StatusCode, Message: "unexpected response from server", Err: err}
		}
		return nil
	}

	detail := errorDetail(data)
	if resp.StatusCode == http.StatusUnauthorized {
		t.unauthorized(ctx)
	}
	return statusError(op, resp.StatusCode, detail)
}

// unauthorized purges the session once and redirects unless already on the login route.
func (t *Transport) unauthorized(ctx context.Context) {
	if t.Session == nil {
		return
	}
	if !t.Session.Purge(ctx) {
		return
	}
	t.Logger.Info("session expired, credential purged")
	if t.Router != nil && t.Router.Route() != LoginRoute {
		t.Router.RedirectToLogin()
	}
}

func errorDetail(data []byte) string {
	var eb wire.ErrorBody
	if err := json.Unmarshal(data, &eb); err != nil {
		return ""
	}
	return strings.TrimSpace(eb.Text())
}

func transportError(op string, err error) error {
	msg := "Network error. Please check your connection."
	var ne interface{ Timeout() bool }
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		msg = "The request timed out. Please try again."
	}
	if errors.Is(err, context.Canceled) {
		msg = "The request was cancelled."
	}
	return &ledger.Error{Kind: ledger.KindTransport, Op: op, Message: msg, Err: err}
}

// statusError classifies a non-2xx response. The server detail, when present,
// replaces the generic message.
func statusError(op string, status int, detail string) error {
	e := &ledger.Error{Op: op, Status: status, Message: detail}
	switch {
	case status == http.StatusUnauthorized:
		e.Kind = ledger.KindAuth
		if e.Message == "" {
			e.Message = "Session expired. Please login again."
		}
	case status == http.StatusForbidden:
		e.Kind = ledger.KindAuth
		if e.Message == "" {
			e.Message = "You do not have permission to perform this action."
		}
	case status == http.StatusNotFound:
		e.Kind = ledger.KindNotFound
		if e.Message == "" {
			e.Message = "Not found"
		}
	case detail != "" && (status == http.StatusBadRequest || status == http.StatusConflict || status == http.StatusUnprocessableEntity):
		e.Kind = ledger.KindConflict
	default:
		e.Kind = ledger.KindTransport
		if e.Message == "" {
			if status >= 500 {
				e.Message = "Server error. Please try again later."
			} else {
				e.Message = fmt.Sprintf("Request failed with status %d", status)
			}
		}
	}
	return e
}
