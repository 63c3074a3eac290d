package xlog

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"github.com/omeyang/logkit/metrics/sample"
)

// recorder 记录收到的日志
type recorder struct {
	*ChannelSet
	mu       sync.Mutex
	msgs     []LogMessage
	logErr   error
	flushErr error
	closeErr error
	flushed  int
	closed   int
}

func newRecorder(id string, channels ...string) *recorder {
	return &recorder{ChannelSet: NewChannelSet(id, channels...)}
}

func (r *recorder) Log(msg LogMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
	return r.logErr
}

func (r *recorder) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flushed++
	return r.flushErr
}

func (r *recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed++
	return r.closeErr
}

func (r *recorder) payloads() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.msgs))
	for _, m := range r.msgs {
		out = append(out, m.Payload)
	}
	return out
}

func (r *recorder) last(t *testing.T) LogMessage {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.NotEmpty(t, r.msgs)
	return r.msgs[len(r.msgs)-1]
}

var fixedTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestRegistry(opts ...RegistryOption) (*Registry, *recorder) {
	reg := NewRegistry(append([]RegistryOption{WithClock(func() time.Time { return fixedTime })}, opts...)...)
	rec := newRecorder("rec")
	reg.Register(rec)
	return reg, rec
}

func TestRegistryDefaults(t *testing.T) {
	reg := NewRegistry()
	assert.Equal(t, Debug, reg.MinSeverity())
	assert.True(t, reg.Enabled())
	assert.Empty(t, reg.Providers())
	assert.NotPanics(t, func() { reg.Error("nobody listens") })
}

func TestSeverityHelpers(t *testing.T) {
	reg, rec := newTestRegistry(WithMinSeverity(Verbose))

	reg.Verbose("v")
	reg.Debug("d")
	reg.Info("i")
	reg.Warning("w")
	reg.Error("e")
	reg.Log(Info, "log")
	reg.Logf(Warning, "%d%%", 50)

	assert.Equal(t, []string{"v", "d", "i", "w", "e", "log", "50%"}, rec.payloads())
	msg := rec.last(t)
	assert.Equal(t, Warning, msg.Severity)
	assert.Equal(t, DefaultChannel, msg.Channel)
	assert.Equal(t, fixedTime, msg.Time)
	assert.Equal(t, processID, msg.PID)
}

func TestCallerLocation(t *testing.T) {
	reg, rec := newTestRegistry()

	_, _, line, _ := runtime.Caller(0)
	reg.Info("from registry")
	msg := rec.last(t)
	assert.Equal(t, "registry_test.go", msg.File)
	assert.Equal(t, line+1, msg.Line)
	assert.Equal(t, "xlog.TestCallerLocation", msg.Function)

	_, _, line, _ = runtime.Caller(0)
	reg.Channel("net").Logf(Error, "from %s", "logger")
	msg = rec.last(t)
	assert.Equal(t, line+1, msg.Line)
	assert.Equal(t, "from logger", msg.Payload)

	helper := func() { reg.Warning("in closure") }
	_, _, line, _ = runtime.Caller(0)
	helper()
	msg = rec.last(t)
	assert.Equal(t, line-1, msg.Line)
	assert.Equal(t, "xlog.TestCallerLocation.func1", msg.Function)
}

func TestMinSeverityAndEnabled(t *testing.T) {
	reg, rec := newTestRegistry(WithMinSeverity(Warning))

	reg.Info("dropped")
	reg.Warning("kept")
	assert.Equal(t, []string{"kept"}, rec.payloads())

	require.NoError(t, reg.SetMinSeverity(Verbose))
	reg.Verbose("verbose")
	assert.Error(t, reg.SetMinSeverity(Severity(0)))
	assert.Equal(t, Verbose, reg.MinSeverity())

	reg.SetEnabled(false)
	assert.False(t, reg.Loggable(Error))
	reg.Error("disabled")
	assert.Equal(t, []string{"kept", "verbose"}, rec.payloads())
}

func TestIfDebug(t *testing.T) {
	reg, rec := newTestRegistry()
	reg.IfDebug(Info, "hidden")
	reg.Channel("x").IfDebug(Info, "hidden")

	reg.SetDebug(true)
	reg.IfDebug(Info, "shown")
	reg.Channel("x").IfDebug(Error, "shown too")
	assert.Equal(t, []string{"shown", "shown too"}, rec.payloads())
}

func TestLazyPayload(t *testing.T) {
	reg, rec := newTestRegistry(WithMinSeverity(Info))
	calls := 0
	expensive := func() string {
		calls++
		return "expensive"
	}

	reg.Debug(expensive)
	assert.Zero(t, calls)

	reg.Info("value:", expensive)
	assert.Equal(t, 1, calls)
	reg.Info(func() any { return 42 })
	assert.Equal(t, []string{"value:expensive", "42"}, rec.payloads())
}

func TestChannelSubscriptions(t *testing.T) {
	reg := NewRegistry()
	all := newRecorder("all")
	net := newRecorder("net", "net")
	reg.Register(all, net)

	reg.Info("default")
	reg.Channel("net").Info("network")
	assert.Equal(t, []string{"default", "network"}, all.payloads())
	assert.Equal(t, []string{"network"}, net.payloads())

	reg.Add("db")
	reg.Channel("db").Info("query")
	assert.Equal(t, []string{"network", "query"}, net.payloads())
	assert.Equal(t, []string{"db"}, all.Channels())

	reg.Silence("db")
	reg.Channel("db").Info("silenced")
	assert.Equal(t, []string{"net"}, net.Channels())
	assert.Equal(t, []string{"network", "query"}, net.payloads())
}

func TestRegisterUnregister(t *testing.T) {
	reg := NewRegistry()
	a := newRecorder("a", "x")
	a2 := newRecorder("a", "y")
	b := newRecorder("b")
	reg.Register(a, a2, b, nil)
	require.Len(t, reg.Providers(), 3)

	// 标识相同但频道不同的不会被误删
	assert.True(t, reg.Unregister(newRecorder("a", "y")))
	assert.False(t, reg.Unregister(newRecorder("a", "z")))
	assert.Equal(t, []Provider{a, b}, reg.Providers())

	assert.Equal(t, 1, reg.UnregisterID("b"))
	assert.Zero(t, reg.UnregisterID("b"))

	reg.Empty()
	assert.Empty(t, reg.Providers())
}

func TestGeneratedProviderIDsAreUnique(t *testing.T) {
	a := NewConsoleProvider(nil)
	b := NewConsoleProvider(nil)
	assert.NotEmpty(t, a.ID())
	assert.NotEqual(t, a.ID(), b.ID())
}

func TestSampling(t *testing.T) {
	reg, rec := newTestRegistry(WithMinSeverity(Verbose), WithSampler(sample.NewRateSampler(0)))
	reg.Verbose("v")
	reg.Debug("d")
	reg.Info("i")
	reg.Error("e")
	assert.Equal(t, []string{"i", "e"}, rec.payloads())
}

func TestProviderErrorsAreReported(t *testing.T) {
	boom := errors.New("disk full")
	var gotID string
	var gotErr error
	reg := NewRegistry(WithErrorHandler(func(id string, err error) {
		gotID, gotErr = id, err
	}))
	bad := newRecorder("bad")
	bad.logErr = boom
	good := newRecorder("good")
	reg.Register(bad, good)

	assert.NotPanics(t, func() { reg.Error("still delivered") })
	assert.Equal(t, "bad", gotID)
	assert.ErrorIs(t, gotErr, boom)
	assert.Equal(t, []string{"still delivered"}, good.payloads())
	assert.EqualValues(t, 1, reg.Failures())
}

func TestFlushAndClose(t *testing.T) {
	reg := NewRegistry()
	a := newRecorder("a")
	b := newRecorder("b")
	boom := errors.New("close failed")
	b.closeErr = boom
	reg.Register(a, b, NewExternalProvider(nil))

	require.NoError(t, reg.Flush())
	assert.Equal(t, 1, a.flushed)

	err := reg.Close()
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "provider b")
	assert.Equal(t, 2, a.flushed)
	assert.Equal(t, 1, a.closed)
	assert.Equal(t, 1, b.closed)
}

func TestContextFields(t *testing.T) {
	reg, rec := newTestRegistry()

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{0x01},
		SpanID:     trace.SpanID{0x02},
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)
	ctx = context.WithValue(ctx, RequestIDKey, "req-1")

	reg.WithContext(ctx).Channel("api").Info("handled")
	msg := rec.last(t)
	assert.Equal(t, "api", msg.Channel)
	assert.Equal(t, map[string]string{
		"trace_id":   "01000000000000000000000000000000",
		"span_id":    "0200000000000000",
		"request_id": "req-1",
	}, msg.Fields)

	reg.Info("no context")
	assert.Nil(t, rec.last(t).Fields)
}

func TestConcurrentLogging(t *testing.T) {
	reg, rec := newTestRegistry()
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				reg.Info("x")
				if i%10 == 0 {
					_ = reg.Providers()
				}
			}
		}()
	}
	wg.Wait()
	assert.Len(t, rec.payloads(), 800)
}
