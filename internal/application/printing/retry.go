package printing

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/labelprint/internal/domain/printing"
	"go.uber.org/zap"
)

// Registrar exchanges a registration request for a confirmed batch
type Registrar interface {
	Register(ctx context.Context, req *printing.RegistrationRequest) (*printing.ConfirmedBatch, error)
}

// RetryPolicy bounds registration attempts
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// DefaultRetryPolicy is 3 attempts, waiting 1s then 2s
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second}
}

func (p RetryPolicy) normalized() RetryPolicy {
	d := DefaultRetryPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = d.BaseDelay
	}
	return p
}

// Delay returns the wait after the given failed attempt (1-based):
// base * 2^(attempt-1)
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return p.BaseDelay << (attempt - 1)
}

// Sleeper waits for d or until ctx is done
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the real Sleeper
func SleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AttemptFunc observes each finished registration attempt
type AttemptFunc func(attempt int, err error)

// RetryingRegistrar retries transient registration failures with
// exponential backoff. An attempt in flight is never cancelled; a caller that
// goes away only stops further attempts.
type RetryingRegistrar struct {
	next      Registrar
	policy    RetryPolicy
	sleep     Sleeper
	onAttempt AttemptFunc
	logger    *zap.Logger
}

// RetryOption configures a RetryingRegistrar
type RetryOption func(*RetryingRegistrar)

// WithSleeper replaces the backoff sleeper
func WithSleeper(s Sleeper) RetryOption {
	return func(r *RetryingRegistrar) {
		if s != nil {
			r.sleep = s
		}
	}
}

// WithAttemptObserver is called after every attempt
func WithAttemptObserver(f AttemptFunc) RetryOption {
	return func(r *RetryingRegistrar) {
		r.onAttempt = f
	}
}

// WithRetryLogger sets the logger
func WithRetryLogger(l *zap.Logger) RetryOption {
	return func(r *RetryingRegistrar) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRetryingRegistrar wraps next with the retry policy
func NewRetryingRegistrar(next Registrar, policy RetryPolicy, opts ...RetryOption) *RetryingRegistrar {
	r := &RetryingRegistrar{
		next:   next,
		policy: policy.normalized(),
		sleep:  SleepContext,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Policy returns the effective policy
func (r *RetryingRegistrar) Policy() RetryPolicy {
	return r.policy
}

// Register implements Registrar. It returns the last observed error once the
// attempt budget is spent or the failure is not retryable.
func (r *RetryingRegistrar) Register(ctx context.Context, req *printing.RegistrationRequest) (*printing.ConfirmedBatch, error) {
	attemptCtx := context.WithoutCancel(ctx)
	for attempt := 1; ; attempt++ {
		batch, err := r.next.Register(attemptCtx, req)
		if r.onAttempt != nil {
			r.onAttempt(attempt, err)
		}
		if err == nil {
			return batch, nil
		}

		kind := printing.FailureKindOf(err)
		if !kind.IsRetryable() {
			return nil, err
		}
		if attempt >= r.policy.MaxAttempts {
			r.logger.Warn("label registration failed, attempts exhausted",
				zap.Int("attempts", attempt), zap.String("kind", kind.String()), zap.Error(err))
			return nil, err
		}

		delay := r.policy.Delay(attempt)
		r.logger.Warn("label registration failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.String("kind", kind.String()),
			zap.Error(err))
		if serr := r.sleep(ctx, delay); serr != nil {
			return nil, fmt.Errorf("registration abandoned after attempt %d: %w", attempt, serr)
		}
	}
}

var _ Registrar = (*RetryingRegistrar)(nil)
