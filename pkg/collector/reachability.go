package collector

import (
	"context"
	"io"
	"net"
	"net/http"
	"time"
)

// DefaultReachabilityHost is probed when no host is configured.
const DefaultReachabilityHost = "www.apple.com:443"

// ReachabilityProber checks whether a fixed remote host can be reached and,
// optionally, whether a captive portal intercepts plain HTTP.
type ReachabilityProber struct {
	Host string
	Dial func(ctx context.Context, network, addr string) (net.Conn, error)
	// CaptiveURL must answer 204 with an empty body when no portal is in the way.
	// Empty disables the check.
	CaptiveURL string
	Client     *http.Client
}

// NewReachabilityProber returns a prober dialing host (DefaultReachabilityHost when empty).
func NewReachabilityProber(host, captiveURL string) *ReachabilityProber {
	if host == "" {
		host = DefaultReachabilityHost
	}
	d := &net.Dialer{Timeout: 3 * time.Second}
	return &ReachabilityProber{
		Host:       host,
		Dial:       d.DialContext,
		CaptiveURL: captiveURL,
		Client: &http.Client{
			Timeout: 3 * time.Second,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (r *ReachabilityProber) Name() string { return "reachability" }

func (r *ReachabilityProber) Fields() []Field {
	fields := []Field{FieldReachable}
	if r.CaptiveURL != "" {
		fields = append(fields, FieldUserAction)
	}
	return fields
}

func (r *ReachabilityProber) Lookup(ctx context.Context, f Field) (any, error) {
	switch f {
	case FieldReachable:
		conn, err := r.Dial(ctx, "tcp", r.Host)
		if err != nil {
			return false, nil
		}
		_ = conn.Close()
		return true, nil
	case FieldUserAction:
		return r.captive(ctx)
	}
	return nil, ErrUnavailable
}

func (r *ReachabilityProber) captive(ctx context.Context) (any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.CaptiveURL, nil)
	if err != nil {
		return nil, ErrUnavailable
	}
	client := r.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, ErrUnavailable
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return resp.StatusCode != http.StatusNoContent || len(body) > 0, nil
}
