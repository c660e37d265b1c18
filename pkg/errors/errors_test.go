package errors

import (
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingReporter struct {
	reported []error
}

func (r *recordingReporter) Report(err error) {
	r.reported = append(r.reported, err)
}

func TestWrapKeepsCause(t *testing.T) {
	sentinel := stderrors.New("boom")
	err := Wrap(sentinel, "dial bridge")
	assert.True(t, Is(err, sentinel))
	assert.Equal(t, sentinel, Cause(err))
	assert.EqualError(t, err, "dial bridge: boom")
	assert.Nil(t, Wrap(nil, "nothing"))
	assert.Nil(t, WrapAndReport(nil, "nothing"))
}

func TestAndReportHelpersReport(t *testing.T) {
	t.Setenv(debugMode, "")
	Reset()
	defer Reset()
	rec := &recordingReporter{}
	Register(rec)

	_ = NewWithReport("a")
	_ = WrapAndReport(stderrors.New("b"), "wrapped")
	_ = ErrorfAndReport("c %d", 1)
	_ = Wrap(stderrors.New("d"), "not reported")

	require.Len(t, rec.reported, 3)
	assert.EqualError(t, rec.reported[1], "wrapped: b")
}

func TestDebugModeDisablesReporting(t *testing.T) {
	t.Setenv(debugMode, "1")
	Reset()
	defer Reset()
	rec := &recordingReporter{}
	Register(rec)

	Report(stderrors.New("ignored"))
	assert.Empty(t, rec.reported)
}

func TestRateLimiterSilentWindow(t *testing.T) {
	now := time.Date(2022, 7, 1, 0, 0, 0, 0, time.UTC)
	limiter := newRateLimiter(time.Minute)
	limiter.now = func() time.Time { return now }

	limited, stats := limiter.StackBasedRateLimited("site")
	assert.False(t, limited)
	assert.Nil(t, stats.lastReportTime)

	now = now.Add(10 * time.Second)
	limited, _ = limiter.StackBasedRateLimited("site")
	assert.True(t, limited)

	limited, _ = limiter.StackBasedRateLimited("other")
	assert.False(t, limited)

	now = now.Add(time.Minute)
	limited, stats = limiter.StackBasedRateLimited("site")
	assert.False(t, limited)
	assert.Equal(t, 1, stats.occurCountSinceLastReport)
	assert.Equal(t, 2, stats.totalOccurCount)
}
