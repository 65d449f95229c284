//go:build !integration

package netcheck

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"
)

// listen opens a loopback listener the checker can probe, closed on cleanup.
func listen(t *testing.T) net.Listener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			_ = conn.Close()
		}
	}()
	return ln
}

// closedAddr returns an address nothing is listening on.
func closedAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()
	return addr
}

func TestCheckNetwork(t *testing.T) {
	ln := listen(t)

	c := NewChecker(time.Second)
	c.probe = ln.Addr().String()
	if err := c.CheckNetwork(context.Background()); err != nil {
		t.Errorf("expected reachable probe, got %v", err)
	}

	c.probe = closedAddr(t)
	if err := c.CheckNetwork(context.Background()); err == nil {
		t.Error("expected failure for closed probe address")
	}
}

func TestCheckURL(t *testing.T) {
	ln := listen(t)

	c := NewChecker(time.Second)
	target := fmt.Sprintf("http://%s/gallery", ln.Addr().String())
	if err := c.CheckURL(context.Background(), target); err != nil {
		t.Errorf("expected reachable url, got %v", err)
	}

	dead := fmt.Sprintf("http://%s/gallery", closedAddr(t))
	if err := c.CheckURL(context.Background(), dead); err == nil {
		t.Error("expected failure for unreachable host")
	}
}

func TestCheckURLRejectsMalformed(t *testing.T) {
	c := NewChecker(time.Second)
	for _, raw := range []string{"", "http://", "%%%"} {
		if err := c.CheckURL(context.Background(), raw); err == nil {
			t.Errorf("CheckURL(%q): expected error", raw)
		}
	}
}
