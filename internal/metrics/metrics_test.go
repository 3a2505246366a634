package metrics

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testReg is shared: collectors are package globals and Register only
// succeeds against the first registry it sees.
var testReg = prometheus.NewRegistry()

func TestMain(m *testing.M) {
	if err := Register(testReg); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func TestRegisterIdempotentAndCountersWork(t *testing.T) {
	reg := testReg
	// idempotent: calling again should be no-op
	require.NoError(t, Register(reg))

	startsBefore := testutil.ToFloat64(helperStarts)
	IncHelperStart()
	IncHelperStart()
	IncHelperStartFailure()
	IncHelperKill("ended")
	IncHelperKill("not_found")
	ObserveMainRuntime(90 * time.Second)
	SetMainUsage(12.5, 4096)
	RecordStateTransition("idle", "helpers_starting")

	assert.Equal(t, startsBefore+2, testutil.ToFloat64(helperStarts))
	assert.Equal(t, 1.0, testutil.ToFloat64(helperKills.WithLabelValues("not_found")))
	assert.Equal(t, 12.5, testutil.ToFloat64(mainCPU))
	assert.Equal(t, 4096.0, testutil.ToFloat64(mainRSS))
	assert.Equal(t, 1.0, testutil.ToFloat64(currentState.WithLabelValues("helpers_starting")))
	assert.Equal(t, 0.0, testutil.ToFloat64(currentState.WithLabelValues("idle")))

	mfs, err := reg.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}
	for _, n := range []string{
		"launchr_helper_starts_total",
		"launchr_helper_start_failures_total",
		"launchr_helper_kills_total",
		"launchr_main_runtime_seconds",
		"launchr_run_state_transitions_total",
	} {
		assert.True(t, names[n], "missing metric %s", n)
	}
}

func TestServe(t *testing.T) {
	IncHelperStart()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	addr, err := Serve(ctx, "127.0.0.1:0", testReg)
	require.NoError(t, err)

	resp, err := http.Get("http://" + addr.String() + "/metrics")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "launchr_helper_starts_total"))
}

func TestServeBadAddr(t *testing.T) {
	_, err := Serve(context.Background(), "not-an-address", prometheus.NewRegistry())
	assert.Error(t, err)
}

func TestSampleUsageSelf(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	SampleUsage(ctx, os.Getpid(), 50*time.Millisecond, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Greater(t, testutil.ToFloat64(mainRSS), 0.0)
}

func TestSampleUsageMissingProcess(t *testing.T) {
	done := make(chan struct{})
	go func() {
		SampleUsage(context.Background(), 1<<30, time.Millisecond, slog.New(slog.NewTextHandler(io.Discard, nil)))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sampler should return for a missing pid")
	}
}
