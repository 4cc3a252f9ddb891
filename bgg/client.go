package bgg

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"

	"bgg-proxy/config"
	"bgg-proxy/metrics"
)

// Attempt outcomes; also the label values on the upstream attempt counter.
const (
	outcomeSuccess   = "success"
	outcomeQueued    = "queued"   // 202: collection still being assembled
	outcomeBusy      = "busy"     // 500/503: upstream overloaded
	outcomeRejected  = "rejected" // any other non-200 status
	outcomeTimeout   = "timeout"
	outcomeTransport = "transport"
)

// Client fetches collections from the BGG XML API, absorbing its queueing
// protocol behind a bounded retry loop. Each FetchCollection call keeps its
// own attempt counter; there is no state shared between requests.
type Client struct {
	token      string
	baseURL    string
	maxRetries int
	retryDelay time.Duration
	httpClient *http.Client

	// sleep is replaceable in tests to avoid real inter-attempt delays.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewClient(cfg *config.Config) *Client {
	return &Client{
		token:      cfg.Token,
		baseURL:    cfg.BaseURL,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		sleep:      sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (c *Client) collectionURL(username string) string {
	q := url.Values{}
	q.Set("username", username)
	q.Set("own", "1")
	q.Set("subtype", "boardgame")
	q.Set("excludesubtype", "boardgameexpansion")
	return c.baseURL + "/collection?" + q.Encode()
}

// FetchCollection retrieves the raw collection XML for username. Per the BGG
// API docs, 202 means the request is queued and 500/503 mean rate limiting;
// both are retried after a fixed delay up to the configured attempt bound.
// Any other non-200 status is terminal immediately. The returned error is
// always a *Error carrying the status to surface, except when the caller's
// context is cancelled during a sleep.
func (c *Client) FetchCollection(ctx context.Context, username string) (string, error) {
	start := time.Now()
	defer func() {
		metrics.FetchDuration.Observe(time.Since(start).Seconds())
	}()

	reqURL := c.collectionURL(username)

	for attempt := 0; attempt < c.maxRetries; attempt++ {
		body, outcome, err := c.attempt(ctx, reqURL)
		metrics.UpstreamAttempts.WithLabelValues(outcome).Inc()

		retryable := false
		var terminal *Error

		switch outcome {
		case outcomeSuccess:
			log.Debug().Str("username", username).Int("attempts", attempt+1).Msg("bgg: collection fetched")
			return body, nil
		case outcomeQueued:
			retryable = true
			terminal = newError(http.StatusAccepted,
				"BGG is processing the collection. Please try again in a few moments.")
		case outcomeBusy:
			retryable = true
			terminal = newError(http.StatusServiceUnavailable,
				"BGG is very busy. Please try again later.")
		case outcomeRejected:
			// attempt already classified this as a *Error
			log.Warn().Str("username", username).Err(err).Msg("bgg: unexpected upstream status")
			return "", err
		case outcomeTimeout:
			retryable = true
			terminal = newError(http.StatusGatewayTimeout,
				"Timeout contacting BGG after %d attempts: %v", c.maxRetries, err)
		case outcomeTransport:
			retryable = true
			terminal = newError(http.StatusBadGateway,
				"Error contacting BGG after %d attempts: %v", c.maxRetries, err)
		}

		if retryable && attempt < c.maxRetries-1 {
			log.Warn().
				Str("username", username).
				Str("outcome", outcome).
				Int("attempt", attempt+1).
				Dur("delay", c.retryDelay).
				Msg("bgg: retrying upstream call")
			if err := c.sleep(ctx, c.retryDelay); err != nil {
				return "", err
			}
			continue
		}

		log.Warn().Str("username", username).Str("outcome", outcome).Int("attempts", attempt+1).Msg("bgg: giving up")
		return "", terminal
	}

	// Unreachable: every branch above returns or continues. Kept so an
	// exhausted loop still yields a classified failure.
	return "", newError(http.StatusServiceUnavailable,
		"Could not retrieve collection after %d attempts", c.maxRetries)
}

// attempt performs one upstream call and classifies its outcome. For
// outcomeRejected the returned error is already a classified *Error; for
// timeout/transport it is the raw cause.
func (c *Client) attempt(ctx context.Context, reqURL string) (string, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", outcomeTransport, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return "", outcomeTimeout, err
		}
		return "", outcomeTransport, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return "", outcomeTransport, err
		}
		return string(b), outcomeSuccess, nil
	case http.StatusAccepted:
		drain(resp.Body)
		return "", outcomeQueued, nil
	case http.StatusInternalServerError, http.StatusServiceUnavailable:
		drain(resp.Body)
		return "", outcomeBusy, nil
	default:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		drain(resp.Body)
		return "", outcomeRejected, newError(http.StatusBadGateway,
			"BGG returned HTTP error %d: %s", resp.StatusCode, string(b))
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// drain consumes leftover body bytes so the connection can be reused.
func drain(r io.Reader) {
	_, _ = io.Copy(io.Discard, r)
}
