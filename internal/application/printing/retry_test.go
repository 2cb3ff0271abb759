package printing_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/erp/labelprint/internal/application/printing"
	domain "github.com/erp/labelprint/internal/domain/printing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestRetryPolicy_Delay(t *testing.T) {
	p := printing.DefaultRetryPolicy()

	assert.Equal(t, 3, p.MaxAttempts)
	assert.Equal(t, time.Second, p.Delay(1))
	assert.Equal(t, 2*time.Second, p.Delay(2))
	assert.Equal(t, 4*time.Second, p.Delay(3))
	assert.Equal(t, time.Second, p.Delay(0))
}

func TestRetryingRegistrar_NormalizesPolicy(t *testing.T) {
	r := printing.NewRetryingRegistrar(new(MockRegistrar), printing.RetryPolicy{})
	assert.Equal(t, printing.DefaultRetryPolicy(), r.Policy())
}

func TestFailureKinds_AllClassified(t *testing.T) {
	for _, kind := range domain.AllFailureKinds() {
		assert.NotEqual(t, domain.RetryUnclassified, kind.RetryClass(), "kind %s", kind)
	}
	assert.True(t, domain.FailureNetworkError.IsRetryable())
	assert.False(t, domain.FailureKind("SOMETHING_NEW").IsRetryable())
}

func TestRetryingRegistrar_Attempts(t *testing.T) {
	network := domain.NewRegistrationError(domain.FailureNetworkError, "reset", nil)

	t.Run("success on second attempt", func(t *testing.T) {
		next := new(MockRegistrar)
		next.On("Register", mock.Anything, mock.Anything).Return(nil, network).Once()
		next.On("Register", mock.Anything, mock.Anything).Return(confirmedBatch(1), nil).Once()
		sleeper := &recordingSleeper{}
		var attempts []int
		r := printing.NewRetryingRegistrar(next, printing.DefaultRetryPolicy(),
			printing.WithSleeper(sleeper.Sleep),
			printing.WithAttemptObserver(func(attempt int, err error) { attempts = append(attempts, attempt) }))

		batch, err := r.Register(context.Background(), &domain.RegistrationRequest{})

		require.NoError(t, err)
		assert.Len(t, batch.Labels, 1)
		assert.Equal(t, []int{1, 2}, attempts)
		assert.Equal(t, []time.Duration{time.Second}, sleeper.Delays())
	})

	t.Run("returns last error", func(t *testing.T) {
		next := new(MockRegistrar)
		next.On("Register", mock.Anything, mock.Anything).Return(nil, network).Twice()
		last := domain.NewRegistrationError(domain.FailureBackendError, "still broken", nil)
		next.On("Register", mock.Anything, mock.Anything).Return(nil, last).Once()
		sleeper := &recordingSleeper{}
		r := printing.NewRetryingRegistrar(next, printing.DefaultRetryPolicy(), printing.WithSleeper(sleeper.Sleep))

		_, err := r.Register(context.Background(), &domain.RegistrationRequest{})

		assert.Same(t, last, err)
		next.AssertNumberOfCalls(t, "Register", 3)
	})

	t.Run("custom budget", func(t *testing.T) {
		next := new(MockRegistrar)
		next.On("Register", mock.Anything, mock.Anything).Return(nil, network)
		sleeper := &recordingSleeper{}
		r := printing.NewRetryingRegistrar(next, printing.RetryPolicy{MaxAttempts: 4, BaseDelay: 10 * time.Millisecond},
			printing.WithSleeper(sleeper.Sleep))

		_, err := r.Register(context.Background(), &domain.RegistrationRequest{})

		assert.Equal(t, domain.FailureNetworkError, domain.FailureKindOf(err))
		assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 40 * time.Millisecond}, sleeper.Delays())
	})
}

func TestRetryingRegistrar_StopsWhenCallerLeaves(t *testing.T) {
	next := new(MockRegistrar)
	ctx, cancel := context.WithCancel(context.Background())
	next.On("Register", mock.Anything, mock.Anything).
		Return(nil, domain.NewRegistrationError(domain.FailureNetworkError, "timeout", nil)).
		Run(func(args mock.Arguments) {
			assert.NoError(t, args.Get(0).(context.Context).Err())
			cancel()
		})
	r := printing.NewRetryingRegistrar(next, printing.DefaultRetryPolicy())

	_, err := r.Register(ctx, &domain.RegistrationRequest{})

	assert.True(t, errors.Is(err, context.Canceled))
	next.AssertNumberOfCalls(t, "Register", 1)
}

func TestSleepContext(t *testing.T) {
	assert.NoError(t, printing.SleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	assert.ErrorIs(t, printing.SleepContext(ctx, time.Hour), context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}
