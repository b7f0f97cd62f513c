package reporter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"netreport/pkg/model"
)

var (
	ErrNoSnapshot   = errors.New("no snapshot to send")
	ErrNoEndpoint   = errors.New("no endpoint configured")
	ErrTransport    = errors.New("transport failure")
	ErrMockDisabled = errors.New("mock destination disabled in production builds")
)

// ServerError is a non-2xx answer from the endpoint.
type ServerError struct {
	StatusCode int
	Body       string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server returned %d", e.StatusCode)
}

// Destination selects where a report goes. Callers always choose explicitly.
type Destination int

const (
	Real Destination = iota
	Mock
)

func (d Destination) String() string {
	if d == Mock {
		return "mock"
	}
	return "real"
}

// ParseDestination accepts "real" or "mock".
func ParseDestination(s string) (Destination, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "real", "api":
		return Real, nil
	case "mock":
		return Mock, nil
	}
	return Real, fmt.Errorf("unknown destination %q (want real|mock)", s)
}

// DefaultPath is appended to the base URL for real reports.
const DefaultPath = "/network-info"

// Config configures a Reporter.
type Config struct {
	BaseURL   string
	Path      string        // default DefaultPath
	Timeout   time.Duration // HTTP client timeout, default 30s
	MockDelay time.Duration // simulated latency of the mock destination, default 1s
	Client    *http.Client  // overrides the built client
	Logf      func(format string, args ...any)
}

// Reporter sends snapshots and drives the shared Tracker.
type Reporter struct {
	cfg     Config
	client  *http.Client
	tracker *Tracker
}

// New builds a reporter. A nil tracker gets a default one.
func New(cfg Config, tracker *Tracker) *Reporter {
	if cfg.Path == "" {
		cfg.Path = DefaultPath
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MockDelay <= 0 {
		cfg.MockDelay = time.Second
	}
	if cfg.Logf == nil {
		cfg.Logf = log.Printf
	}
	if tracker == nil {
		tracker = NewTracker(DefaultResetDelay, nil)
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &Reporter{cfg: cfg, client: client, tracker: tracker}
}

// Tracker returns the status tracker this reporter updates.
func (r *Reporter) Tracker() *Tracker { return r.tracker }

// Endpoint is the URL real reports are posted to.
func (r *Reporter) Endpoint() string {
	return strings.TrimRight(r.cfg.BaseURL, "/") + r.cfg.Path
}

// Send transmits snap to dest and returns the terminal status of this call.
// Failures never escape as errors: they are carried in Status.Err.
func (r *Reporter) Send(ctx context.Context, snap *model.Snapshot, dest Destination) Status {
	if snap.IsZero() {
		st := Status{State: Failed, Message: ErrNoSnapshot.Error(), Err: ErrNoSnapshot}
		r.tracker.Set(st)
		return st
	}
	cycle := r.tracker.Begin(Sending, "sending to "+dest.String()+" endpoint")

	var st Status
	body, err := json.Marshal(snap)
	if err != nil {
		st = Status{State: Failed, Message: "encode snapshot: " + err.Error(), Err: err}
	} else if dest == Mock {
		st = r.sendMock(ctx, body)
	} else {
		st = r.post(ctx, body)
	}
	if !r.tracker.Finish(cycle, st) {
		r.cfg.Logf("report to %s finished after being superseded: %s", dest, st)
	}
	return st
}

func (r *Reporter) post(ctx context.Context, body []byte) Status {
	if r.cfg.BaseURL == "" {
		return Status{State: Failed, Message: ErrNoEndpoint.Error(), Err: ErrNoEndpoint}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.Endpoint(), bytes.NewReader(body))
	if err != nil {
		return Status{State: Failed, Message: err.Error(), Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := r.client.Do(req)
	if err != nil {
		return Status{State: Failed, Message: err.Error(), Err: fmt.Errorf("%w: %w", ErrTransport, err)}
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	text := strings.TrimSpace(string(b))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Status{
			State:   Failed,
			Message: strconv.Itoa(resp.StatusCode),
			Err:     &ServerError{StatusCode: resp.StatusCode, Body: text},
		}
	}
	if text == "" {
		text = "network info sent"
	}
	return Status{State: Succeeded, Message: text}
}
