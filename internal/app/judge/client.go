// Package judge dispatches a single (source, stdin, expected output) triple to a
// Judge0-compatible server and returns its terminal status. The server either
// answers synchronously or hands back a token that is polled until it settles.
package judge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"codeclash/internal/platform/logger"
	"codeclash/internal/platform/metrics"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

const (
	ModeSync  = "sync"
	ModeAsync = "async"

	maxResponseBytes = 1 << 20
)

var (
	// ErrDispatch covers transport failures, non-2xx answers and undecodable bodies.
	ErrDispatch = errors.New("judge dispatch failed")
	// ErrDispatchTimeout means polling ran out of attempts or time before a terminal status.
	ErrDispatchTimeout = errors.New("judge did not finish in time")

	errStillRunning = errors.New("judge submission still running")
)

type Config struct {
	BaseURL   string
	APIKey    string // X-RapidAPI-Key, hosted Judge0
	APIHost   string // X-RapidAPI-Host
	AuthToken string // X-Auth-Token, self-hosted Judge0
	Mode      string

	RequestTimeout  time.Duration
	PollInterval    time.Duration
	MaxPollAttempts int
	PollTimeout     time.Duration
}

type Request struct {
	LanguageID     int
	SourceCode     string
	Stdin          string
	ExpectedOutput string
}

type Result struct {
	StatusID    StatusID
	Description string
	Time        *time.Duration
	Token       string
	Raw         json.RawMessage
}

func (r *Result) Accepted() bool {
	return r.StatusID == StatusAccepted
}

// Dispatcher is what the verdict evaluator needs from a judge.
type Dispatcher interface {
	Evaluate(ctx context.Context, req Request) (*Result, error)
}

type Client struct {
	cfg  Config
	http *http.Client
}

func NewClient(cfg Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeSync
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.MaxPollAttempts <= 0 {
		cfg.MaxPollAttempts = 15
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{cfg: cfg, http: httpClient}
}

type wireRequest struct {
	LanguageID     int    `json:"language_id"`
	SourceCode     string `json:"source_code"`
	Stdin          string `json:"stdin"`
	ExpectedOutput string `json:"expected_output"`
}

type wireStatus struct {
	ID          StatusID `json:"id"`
	Description string   `json:"description"`
}

type wireResponse struct {
	Token  string      `json:"token"`
	Status *wireStatus `json:"status"`
	Time   seconds     `json:"time"`
}

// seconds decodes Judge0's "time" field, which is a decimal string, a number, or null.
type seconds struct {
	d *time.Duration
}

func (s *seconds) UnmarshalJSON(b []byte) error {
	text := strings.Trim(string(b), `"`)
	if text == "" || text == "null" {
		s.d = nil
		return nil
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return fmt.Errorf("invalid time %q: %w", text, err)
	}
	d := time.Duration(math.Round(f*1e6)) * time.Microsecond
	s.d = &d
	return nil
}

func (w *wireResponse) result(raw []byte, token string) *Result {
	desc := w.Status.Description
	if desc == "" {
		desc = w.Status.ID.Description()
	}
	if w.Token != "" {
		token = w.Token
	}
	return &Result{
		StatusID:    w.Status.ID,
		Description: desc,
		Time:        w.Time.d,
		Token:       token,
		Raw:         append(json.RawMessage(nil), raw...),
	}
}

// Evaluate submits req and returns the terminal result. Errors wrap ErrDispatch or
// ErrDispatchTimeout.
func (c *Client) Evaluate(ctx context.Context, req Request) (*Result, error) {
	wait := c.cfg.Mode != ModeAsync
	body := wireRequest{
		LanguageID:     req.LanguageID,
		SourceCode:     req.SourceCode,
		Stdin:          req.Stdin,
		ExpectedOutput: req.ExpectedOutput,
	}
	path := "/submissions?base64_encoded=false&wait=" + strconv.FormatBool(wait)

	resp, raw, err := c.do(ctx, http.MethodPost, path, body, "submit")
	if err != nil {
		return nil, err
	}
	if resp.Status != nil && resp.Status.ID.Terminal() {
		return resp.result(raw, ""), nil
	}
	if resp.Token == "" {
		return nil, fmt.Errorf("%w: response carries neither a terminal status nor a token", ErrDispatch)
	}
	return c.poll(ctx, resp.Token)
}

func (c *Client) poll(parent context.Context, token string) (*Result, error) {
	ctx := parent
	if c.cfg.PollTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parent, c.cfg.PollTimeout)
		defer cancel()
	}

	path := "/submissions/" + url.PathEscape(token) + "?base64_encoded=false"
	attempts := 0
	var result *Result

	op := func() error {
		attempts++
		resp, raw, err := c.do(ctx, http.MethodGet, path, nil, "poll")
		if err != nil {
			return backoff.Permanent(err)
		}
		if resp.Status == nil || resp.Status.ID == 0 {
			return backoff.Permanent(fmt.Errorf("%w: poll response for token %s has no status", ErrDispatch, token))
		}
		if resp.Status.ID.Pending() {
			logger.Debug(ctx, "judge token still running",
				zap.String("token", token), zap.Int("attempt", attempts), zap.String("status", resp.Status.ID.Description()))
			return errStillRunning
		}
		result = resp.result(raw, token)
		return nil
	}

	// MaxPollAttempts counts every poll, the first one included.
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(c.cfg.PollInterval), uint64(c.cfg.MaxPollAttempts-1)),
		ctx,
	)
	err := backoff.Retry(op, policy)
	metrics.JudgePollAttempts.Observe(float64(attempts))

	switch {
	case err == nil:
		return result, nil
	case errors.Is(err, errStillRunning):
		return nil, fmt.Errorf("%w: token %s still running after %d polls", ErrDispatchTimeout, token, attempts)
	case ctx.Err() != nil && parent.Err() == nil:
		return nil, fmt.Errorf("%w: token %s exceeded poll timeout %s", ErrDispatchTimeout, token, c.cfg.PollTimeout)
	case errors.Is(err, ErrDispatch):
		return nil, err
	default:
		return nil, fmt.Errorf("%w: polling token %s: %w", ErrDispatch, token, err)
	}
}

func (c *Client) do(ctx context.Context, method, path string, body any, op string) (*wireResponse, []byte, error) {
	if c.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.RequestTimeout)
		defer cancel()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: encode request: %w", ErrDispatch, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reader)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: build request: %w", ErrDispatch, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cfg.APIKey != "" {
		req.Header.Set("X-RapidAPI-Key", c.cfg.APIKey)
		if c.cfg.APIHost != "" {
			req.Header.Set("X-RapidAPI-Host", c.cfg.APIHost)
		}
	}
	if c.cfg.AuthToken != "" {
		req.Header.Set("X-Auth-Token", c.cfg.AuthToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.JudgeRequests.WithLabelValues(op, "transport_error").Inc()
		return nil, nil, fmt.Errorf("%w: %s %s: %w", ErrDispatch, method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		metrics.JudgeRequests.WithLabelValues(op, "transport_error").Inc()
		return nil, nil, fmt.Errorf("%w: read response: %w", ErrDispatch, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.JudgeRequests.WithLabelValues(op, "http_error").Inc()
		return nil, nil, fmt.Errorf("%w: %s %s returned %d: %s", ErrDispatch, method, path, resp.StatusCode, truncate(raw, 256))
	}

	var wr wireResponse
	if err := json.Unmarshal(raw, &wr); err != nil {
		metrics.JudgeRequests.WithLabelValues(op, "decode_error").Inc()
		return nil, nil, fmt.Errorf("%w: decode response: %w", ErrDispatch, err)
	}
	metrics.JudgeRequests.WithLabelValues(op, "ok").Inc()
	return &wr, raw, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
