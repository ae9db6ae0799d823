package connectivity

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDialCheckAgainstListener(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			_ = conn.Close()
		}
	}()

	check := NewDialCheck(ln.Addr().String(), time.Second)
	assert.True(t, check.Online(context.Background()))
}

func TestDialCheckCachesResult(t *testing.T) {
	calls := 0
	clock := time.Unix(0, 0)
	check := NewDialCheck("catalog.test:443", time.Second)
	check.now = func() time.Time { return clock }
	check.dial = func(ctx context.Context, network, address string) (net.Conn, error) {
		calls++
		return nil, errors.New("no route to host")
	}

	assert.False(t, check.Online(context.Background()))
	assert.False(t, check.Online(context.Background()))
	assert.Equal(t, 1, calls)

	clock = clock.Add(6 * time.Second)
	assert.False(t, check.Online(context.Background()))
	assert.Equal(t, 2, calls)
}

func TestAlwaysOnline(t *testing.T) {
	assert.True(t, AlwaysOnline{}.Online(context.Background()))
}
