// Package iqserver is the HTTP adapter for the IQ server API. It implements
// the apps.Directory and reports.Source ports on top of a single retrying
// transport, so every call site gets the same backoff and error taxonomy.
package iqserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/bryanwahyu/iqexport/internal/domain/apps"
	"github.com/bryanwahyu/iqexport/internal/domain/reports"
	"github.com/bryanwahyu/iqexport/internal/metrics"
)

type Client struct {
	baseURL  string
	username string
	password string
	hc       *http.Client
	retry    RetryConfig
	limiter  *rate.Limiter
	log      *zap.Logger
}

type Options struct {
	Timeout time.Duration
	Retry   RetryConfig
	// RequestsPerSecond caps the client-side request rate. 0 = unlimited.
	RequestsPerSecond int
	Logger            *zap.Logger
}

func New(baseURL, username, password string, opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Retry.MaxAttempts <= 0 {
		opts.Retry = DefaultRetryConfig()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), opts.RequestsPerSecond)
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		username: username,
		password: password,
		hc:       &http.Client{Timeout: opts.Timeout},
		retry:    opts.Retry,
		limiter:  limiter,
		log:      opts.Logger,
	}
}

// ListApplications implements apps.Directory.
func (c *Client) ListApplications(ctx context.Context, organizationID string) ([]apps.Application, error) {
	endpoint := "/api/v2/applications"
	if organizationID != "" {
		endpoint = "/api/v2/applications/organization/" + url.PathEscape(organizationID)
	}
	body, attempts, err := c.do(ctx, http.MethodGet, endpoint)
	if err != nil {
		return nil, err
	}
	var payload struct {
		Applications []apps.Application `json:"applications"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, decodeError(endpoint, attempts, err)
	}
	return payload.Applications, nil
}

// ListOrganizations implements apps.Directory.
func (c *Client) ListOrganizations(ctx context.Context) ([]apps.Organization, error) {
	const endpoint = "/api/v2/organizations"
	body, attempts, err := c.do(ctx, http.MethodGet, endpoint)
	if err != nil {
		return nil, err
	}
	var payload struct {
		Organizations []apps.Organization `json:"organizations"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, decodeError(endpoint, attempts, err)
	}
	return payload.Organizations, nil
}

// reportInfoDTO mirrors one entry of the report listing, newest first.
type reportInfoDTO struct {
	ReportID       string `json:"reportId"`
	ScanID         string `json:"scanId"`
	ReportDataURL  string `json:"reportDataUrl"`
	EvaluationDate string `json:"evaluationDate"`
}

// resolveID prefers the id embedded in reportDataUrl, then falls back to
// scanId and reportId.
func (d reportInfoDTO) resolveID() string {
	if d.ReportDataURL != "" {
		if _, after, ok := strings.Cut(d.ReportDataURL, "/reports/"); ok {
			if id, _, _ := strings.Cut(after, "/"); id != "" {
				return id
			}
		}
	}
	if d.ScanID != "" {
		return d.ScanID
	}
	return d.ReportID
}

var evaluationLayouts = []string{
	"2006-01-02T15:04:05.000Z0700",
	time.RFC3339,
}

func (d reportInfoDTO) evaluatedAt() time.Time {
	for _, layout := range evaluationLayouts {
		if t, err := time.Parse(layout, d.EvaluationDate); err == nil {
			return t
		}
	}
	return time.Time{}
}

// LatestReport implements reports.Source. A nil Info means the application
// has never been scanned; that is a normal outcome, not an error.
func (c *Client) LatestReport(ctx context.Context, app apps.Application) (*reports.Info, int, error) {
	endpoint := "/api/v2/reports/applications/" + url.PathEscape(string(app.ID))
	body, attempts, err := c.do(ctx, http.MethodGet, endpoint)
	if err != nil {
		return nil, attempts, err
	}
	var infos []reportInfoDTO
	if err := json.Unmarshal(body, &infos); err != nil {
		return nil, attempts, decodeError(endpoint, attempts, err)
	}
	if len(infos) == 0 {
		return nil, attempts, nil
	}
	id := infos[0].resolveID()
	if id == "" {
		c.log.Warn("report listing without usable report id",
			zap.String("public_id", app.PublicID))
		return nil, attempts, nil
	}
	return &reports.Info{
		ApplicationID: string(app.ID),
		ReportID:      id,
		EvaluatedAt:   infos[0].evaluatedAt(),
	}, attempts, nil
}

// RawReport implements reports.Source.
func (c *Client) RawReport(ctx context.Context, app apps.Application, info reports.Info) (*reports.RawReport, int, error) {
	endpoint := fmt.Sprintf("/api/v2/applications/%s/reports/%s/raw",
		url.PathEscape(app.PublicID), url.PathEscape(info.ReportID))
	body, attempts, err := c.do(ctx, http.MethodGet, endpoint)
	if err != nil {
		return nil, attempts, err
	}
	var raw reports.RawReport
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, attempts, decodeError(endpoint, attempts, err)
	}
	return &raw, attempts, nil
}

// Ping checks upstream reachability with a single non-retried request.
func (c *Client) Ping(ctx context.Context) error {
	if _, apiErr := c.once(ctx, http.MethodGet, c.baseURL+"/api/v2/organizations"); apiErr != nil {
		return apiErr
	}
	return nil
}

// do executes one API call under the retry policy. It returns the response
// body and the number of attempts consumed. NetworkError (incl. timeout) and
// ServerError back off exponentially; RateLimited waits at least the
// server-advertised delay without advancing the backoff curve; AuthError and
// ClientError fail immediately.
func (c *Client) do(ctx context.Context, method, endpoint string) ([]byte, int, error) {
	fullURL := c.baseURL + endpoint

	step := 0
	var lastErr *reports.Error
	for attempt := 1; attempt <= c.retry.MaxAttempts; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, attempt, &reports.Error{Kind: reports.KindNetwork, Attempts: attempt, Err: err}
			}
		}

		body, apiErr := c.once(ctx, method, fullURL)
		if apiErr == nil {
			metrics.RequestsTotal.WithLabelValues("ok").Inc()
			c.log.Debug("request ok",
				zap.String("method", method),
				zap.String("endpoint", endpoint),
				zap.Int("attempt", attempt))
			return body, attempt, nil
		}

		apiErr.Attempts = attempt
		lastErr = apiErr
		metrics.RequestsTotal.WithLabelValues(string(apiErr.Kind)).Inc()

		if !apiErr.Retryable() || attempt == c.retry.MaxAttempts {
			break
		}

		delay := backoffDelay(c.retry, step)
		if apiErr.Kind == reports.KindRateLimited {
			if ra := retryAfterOf(apiErr); ra > delay {
				delay = ra
			}
		} else {
			step++
		}

		metrics.RetriesTotal.Inc()
		c.log.Warn("retrying request",
			zap.String("method", method),
			zap.String("endpoint", endpoint),
			zap.String("kind", string(apiErr.Kind)),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay))
		if err := sleep(ctx, delay); err != nil {
			return nil, attempt, &reports.Error{Kind: reports.KindNetwork, Attempts: attempt, Err: err}
		}
	}
	return nil, lastErr.Attempts, lastErr
}

// rateLimitedError carries the Retry-After value through the generic error.
type rateLimitedError struct {
	retryAfter time.Duration
	status     string
}

func (e *rateLimitedError) Error() string {
	return fmt.Sprintf("rate limited (%s), retry after %s", e.status, e.retryAfter)
}

func retryAfterOf(err *reports.Error) time.Duration {
	if rl, ok := err.Err.(*rateLimitedError); ok {
		return rl.retryAfter
	}
	return 0
}

// once performs a single HTTP round trip and classifies the result.
// Credentials never appear in returned errors or logs.
func (c *Client) once(ctx context.Context, method, fullURL string) ([]byte, *reports.Error) {
	req, err := http.NewRequestWithContext(ctx, method, fullURL, nil)
	if err != nil {
		return nil, &reports.Error{Kind: reports.KindNetwork, Err: err}
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Accept", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		// Timeouts land here too and follow the same retry policy.
		return nil, &reports.Error{Kind: reports.KindNetwork, Err: err}
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(resp.Body)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if readErr != nil {
			return nil, &reports.Error{Kind: reports.KindNetwork, StatusCode: resp.StatusCode, Err: readErr}
		}
		return body, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &reports.Error{
			Kind:       reports.KindAuth,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%s %s: %s", method, req.URL.Path, resp.Status),
		}
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &reports.Error{
			Kind:       reports.KindRateLimited,
			StatusCode: resp.StatusCode,
			Err:        &rateLimitedError{retryAfter: parseRetryAfter(resp.Header.Get("Retry-After")), status: resp.Status},
		}
	case resp.StatusCode >= 500:
		return nil, &reports.Error{
			Kind:       reports.KindServer,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%s %s: %s", method, req.URL.Path, resp.Status),
		}
	default:
		return nil, &reports.Error{
			Kind:       reports.KindClient,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%s %s: %s", method, req.URL.Path, resp.Status),
		}
	}
}

// parseRetryAfter understands both the seconds and the HTTP-date form.
func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

func decodeError(endpoint string, attempts int, err error) error {
	return &reports.Error{
		Kind:     reports.KindClient,
		Attempts: attempts,
		Err:      fmt.Errorf("decode %s response: %w", endpoint, err),
	}
}
