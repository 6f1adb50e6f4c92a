package retry

import (
	"context"
	"net"
	"time"
)

type Prober interface {
	Available(ctx context.Context) bool
}

// DialProber treats the network as available when a TCP connection to Addr
// can be opened within Timeout.
type DialProber struct {
	Addr    string
	Timeout time.Duration
}

func NewDialProber(addr string) *DialProber {
	return &DialProber{Addr: addr, Timeout: 3 * time.Second}
}

func (p *DialProber) Available(ctx context.Context) bool {
	if p == nil || p.Addr == "" {
		return true
	}
	d := net.Dialer{Timeout: p.Timeout}
	conn, err := d.DialContext(ctx, "tcp", p.Addr)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// ProberFunc adapts a plain function to Prober.
type ProberFunc func(ctx context.Context) bool

func (f ProberFunc) Available(ctx context.Context) bool { return f(ctx) }
