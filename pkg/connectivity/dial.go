package connectivity

import (
	"context"
	"net"
	"sync"
	"time"
)

// AlwaysOnline never reports the network as unreachable.
type AlwaysOnline struct{}

func (AlwaysOnline) Online(context.Context) bool { return true }

// DialCheck reports the network as reachable when a TCP connection to addr
// can be opened. Results are reused for ttl to keep failure bursts cheap.
type DialCheck struct {
	addr    string
	timeout time.Duration
	ttl     time.Duration
	dial    func(ctx context.Context, network, address string) (net.Conn, error)
	now     func() time.Time

	mu        sync.Mutex
	checked   time.Time
	lastState bool
}

// NewDialCheck builds a check against addr (host:port).
func NewDialCheck(addr string, timeout time.Duration) *DialCheck {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	dialer := &net.Dialer{Timeout: timeout}
	return &DialCheck{
		addr:    addr,
		timeout: timeout,
		ttl:     5 * time.Second,
		dial:    dialer.DialContext,
		now:     time.Now,
	}
}

func (p *DialCheck) Online(ctx context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	if !p.checked.IsZero() && now.Sub(p.checked) < p.ttl {
		return p.lastState
	}

	dialCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()
	conn, err := p.dial(dialCtx, "tcp", p.addr)
	if err == nil {
		_ = conn.Close()
	}
	p.checked = now
	p.lastState = err == nil
	return p.lastState
}
