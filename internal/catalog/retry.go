package catalog

import (
	"context"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/productfeed/pkg/errors"
)

var retryKeywords = []string{"fetch", "network", "timeout", "server"}

// isRetryable applies the keyword rule to the user-facing message of err.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	if typed := pkgerrors.As(err); typed != nil {
		msg = typed.Message()
	}
	msg = strings.ToLower(msg)
	for _, keyword := range retryKeywords {
		if strings.Contains(msg, keyword) {
			return true
		}
	}
	return false
}

// Scheduler runs deferred work. Production uses time.AfterFunc.
type Scheduler interface {
	AfterFunc(delay time.Duration, fn func())
}

type timeScheduler struct{}

// NewTimeScheduler returns a Scheduler backed by the runtime timer.
func NewTimeScheduler() Scheduler {
	return timeScheduler{}
}

func (timeScheduler) AfterFunc(delay time.Duration, fn func()) {
	time.AfterFunc(delay, fn)
}

// Connectivity reports whether the network is reachable at all.
type Connectivity interface {
	Online(ctx context.Context) bool
}

type alwaysOnline struct{}

func (alwaysOnline) Online(context.Context) bool { return true }
