package app

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"azure-cost-alerts/internal/analysis"
	"azure-cost-alerts/internal/config"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

func TestWatchRunsOnStartAndSurvivesPartialFailure(t *testing.T) {
	be := defaultBackend()
	be.source = splitSource{records: sampleRecords(), fail: "2"}
	h := newHarness(t, be)

	out := &syncBuffer{}
	h.app.Stdout = out
	cfg := testConfig(h.dir)
	cfg.Watch = config.WatchConfig{Schedule: "0 7 * * *", RunOnStart: true, MetricsAddr: "127.0.0.1:0"}
	h.app.SetConfig(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- h.app.Watch(ctx, AnalyzeOptions{Prefix: "corp-", Type: analysis.TypeSubscription, Date: "2000-01-01"})
	}()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "corp-dev")
	}, 5*time.Second, 10*time.Millisecond)

	// Watch resolves "yesterday" from the tick time, never from a fixed date.
	assert.NotContains(t, out.String(), "2000-01-01")

	select {
	case err := <-done:
		t.Fatalf("watch stopped after a partially failed run: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop after cancellation")
	}
}

func TestWatchRejectsMissingGroupingKey(t *testing.T) {
	h := newHarness(t, defaultBackend())

	err := h.app.Watch(context.Background(), AnalyzeOptions{Prefix: "corp-", Type: analysis.TypeTag})
	require.Error(t, err)
	assert.Equal(t, 0, h.built)
}
