package core

import (
	"context"
	stderrors "errors"
	"net"

	"swapper/internal/obs"
	"swapper/pkg/exception"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

type SuperviseOption func(*supervisor)

type supervisor struct {
	metrics *obs.Metrics
}

func WithRestartMetrics(m *obs.Metrics) SuperviseOption {
	return func(s *supervisor) { s.metrics = m }
}

// Supervise re-invokes run while it fails with a transient error.
// It returns nil once ctx is done, and any other error as is.
func Supervise(ctx context.Context, run func(context.Context) error, opts ...SuperviseOption) error {
	s := &supervisor{}
	for _, opt := range opts {
		opt(s)
	}

	for attempt := 1; ; attempt++ {
		if ctx.Err() != nil {
			return nil
		}

		err := run(ctx)
		if ctx.Err() != nil {
			return nil
		}

		if err == nil || !IsTransient(err) {
			return err
		}

		s.metrics.IncRestart()
		logs.Errorf("restart loop, attempt: %d, err: %+v", attempt, err)
	}
}

// IsTransient reports whether err is a timeout class failure worth a restart.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	// sentinels from pkg/exception only match through errors.Is of the same package
	if errors.Is(err, exception.ErrFeedClosed) {
		return true
	}

	if stderrors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	return stderrors.As(err, &netErr) && netErr.Timeout()
}
