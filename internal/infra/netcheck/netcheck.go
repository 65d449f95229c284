package netcheck

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"
)

// probeAddr is a well-known public resolver; reaching it is taken as proof
// of outbound connectivity.
const probeAddr = "8.8.8.8:53"

// Checker answers pre-flight reachability questions before a worker process
// is spawned. It implements adapter.Connectivity.
type Checker struct {
	timeout time.Duration
	probe   string
	client  *http.Client
}

func NewChecker(timeout time.Duration) *Checker {
	return &Checker{
		timeout: timeout,
		probe:   probeAddr,
		client:  &http.Client{Timeout: timeout},
	}
}

// CheckNetwork verifies there is an active outbound connection at all.
func (c *Checker) CheckNetwork(ctx context.Context) error {
	d := net.Dialer{Timeout: c.timeout}
	conn, err := d.DialContext(ctx, "tcp", c.probe)
	if err != nil {
		return fmt.Errorf("network connectivity check failed: %w", err)
	}
	_ = conn.Close()
	return nil
}

// CheckURL verifies the target host answers, first with a plain TCP dial and
// then with a HEAD request as fallback.
func (c *Checker) CheckURL(ctx context.Context, rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return fmt.Errorf("unparseable url %q", rawURL)
	}
	host := u.Host
	if u.Port() == "" {
		port := "80"
		if u.Scheme == "https" {
			port = "443"
		}
		host = net.JoinHostPort(u.Hostname(), port)
	}

	d := net.Dialer{Timeout: c.timeout}
	if conn, err := d.DialContext(ctx, "tcp", host); err == nil {
		_ = conn.Close()
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return fmt.Errorf("build probe request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("url %s is not reachable: %w", rawURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("url %s answered with status %d", rawURL, resp.StatusCode)
	}
	return nil
}
