package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/go-github/v57/github"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ghsock/internal/logging"
	"github.com/fyrsmithlabs/ghsock/pkg/backoff"
	"github.com/fyrsmithlabs/ghsock/pkg/channel"
	"github.com/fyrsmithlabs/ghsock/pkg/command"
)

// Persist keys written by the GitHub seekers.
const (
	PersistETag  = "etag"
	PersistSince = "since"
)

// ErrHTTPStatus is wrapped by seek errors for statuses the poller cannot
// recover from.
var ErrHTTPStatus = errors.New("unexpected HTTP status")

// poller keeps the last good batch and the rate window for one source.
type poller struct {
	mu      sync.Mutex
	list    command.List
	tracker *backoff.Tracker
	now     func() time.Time
}

func newPoller(now func() time.Time) *poller {
	if now == nil {
		now = time.Now
	}
	return &poller{tracker: backoff.NewTracker(now), now: now}
}

// handle folds one response into the cache.
//
// A 200 replaces the cached batch. 304, 5xx and transport failures keep it
// and pace with the biased delay. A spent quota keeps it and waits out the
// window. Anything else is fatal.
func (p *poller) handle(status int, rate github.Rate, list command.List, reqErr error) (channel.SeekResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	count := rate.Remaining
	minutes := backoff.MinutesUntil(rate.Reset.Time, p.now())

	var abuse *github.AbuseRateLimitError
	switch {
	case status == http.StatusOK && reqErr != nil:
		return channel.SeekResult{}, fmt.Errorf("decode response: %w", reqErr)
	case status == http.StatusOK:
		p.list = list
	case status > http.StatusOK && status < 300:
	case errors.As(reqErr, &abuse):
		delay := abuse.GetRetryAfter()
		if delay <= 0 {
			delay = time.Minute
		}
		return channel.SeekResult{Commands: p.cached(), Delay: delay}, nil
	case (status == http.StatusForbidden || status == http.StatusTooManyRequests) && rate.Limit > 0 && count == 0:
		return channel.SeekResult{
			Commands: p.cached(),
			Delay:    time.Duration(minutes * float64(time.Minute)),
		}, nil
	case status == http.StatusNotModified, status >= 500, status == 0:
	default:
		if reqErr != nil {
			return channel.SeekResult{}, fmt.Errorf("%w %d: %w", ErrHTTPStatus, status, reqErr)
		}
		return channel.SeekResult{}, fmt.Errorf("%w %d", ErrHTTPStatus, status)
	}

	if rate.Limit > 0 {
		p.tracker.Observe(count, minutes)
	}
	return channel.SeekResult{Commands: p.cached(), Delay: p.tracker.Delay()}, nil
}

func (p *poller) cached() command.List {
	return command.Concat(p.list)
}

// conditional returns request headers for a conditional GET from persisted
// validators.
func conditional(persist map[string]string, useSince bool) map[string]string {
	h := map[string]string{}
	if etag := persist[PersistETag]; etag != "" {
		h["If-None-Match"] = etag
	}
	if since := persist[PersistSince]; useSince && since != "" {
		h["If-Modified-Since"] = since
	}
	return h
}

// validators reads the cache validators of a response. Weak etags are
// dropped, and an absent etag clears the stored one.
func validators(resp *github.Response, useSince bool) map[string]string {
	out := map[string]string{PersistETag: ""}
	if resp == nil || resp.Response == nil {
		return out
	}
	if etag := resp.Header.Get("ETag"); etag != "" && !strings.HasPrefix(etag, "W/") {
		out[PersistETag] = etag
	}
	if since := resp.Header.Get("Last-Modified"); useSince && since != "" && resp.StatusCode == http.StatusOK {
		out[PersistSince] = since
	}
	return out
}

// get issues a GET against the REST API with extra headers and decodes the
// body into v.
func get(ctx context.Context, client *github.Client, path string, headers map[string]string, v any) (*github.Response, error) {
	req, err := client.NewRequest(http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	for k, val := range headers {
		req.Header.Set(k, val)
	}
	return client.Do(ctx, req, v)
}

// parseBodies reads a batch from each body. Bodies that do not parse are
// skipped, since issue and release text is not always ours.
func parseBodies(ctx context.Context, logger *logging.Logger, bodies []string) command.List {
	var out command.List
	for i, body := range bodies {
		list, err := command.ParseList(body)
		if err != nil {
			logger.Warn(ctx, "skipping unparseable body", zap.Int("index", i), zap.Error(err))
			continue
		}
		out = append(out, list...)
	}
	return out
}
