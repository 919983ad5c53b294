package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"azure-cost-alerts/internal/alerting"
	"azure-cost-alerts/internal/analysis"
	"azure-cost-alerts/internal/fetcher"
	"azure-cost-alerts/internal/metrics"
	"azure-cost-alerts/internal/subscriptions"
)

type fakeSource struct {
	mu       sync.Mutex
	records  map[string][]analysis.CostRecord
	failures map[string]error
	queries  []fetcher.Query
	inFlight int32
	maxSeen  int32
}

func (f *fakeSource) FetchCosts(_ context.Context, q fetcher.Query) ([]analysis.CostRecord, error) {
	n := atomic.AddInt32(&f.inFlight, 1)
	defer atomic.AddInt32(&f.inFlight, -1)
	for {
		seen := atomic.LoadInt32(&f.maxSeen)
		if n <= seen || atomic.CompareAndSwapInt32(&f.maxSeen, seen, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	if err := f.failures[q.SubscriptionID]; err != nil {
		return nil, err
	}
	return f.records[q.SubscriptionID], nil
}

type recordingNotifier struct {
	mu    sync.Mutex
	notes []alerting.Notification
}

func (r *recordingNotifier) Notify(_ context.Context, note alerting.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, note)
	return nil
}

func day(d int) time.Time {
	return time.Date(2024, 6, d, 0, 0, 0, 0, time.UTC)
}

func rec(group string, d int, cost string) analysis.CostRecord {
	return analysis.CostRecord{GroupKey: group, Date: day(d), Cost: decimal.RequireFromString(cost)}
}

func scenario() []analysis.CostRecord {
	return []analysis.CostRecord{
		rec("python_finops", 7, "0.03"),
		rec("python_finops", 8, "0.04"),
		rec("python_finops", 9, "0.03"),
		rec("python_finops", 10, "0.03"),
		rec("python_finops", 11, "0.04"),
		rec("python_finops", 12, "0.04"),
		rec("python_finops", 14, "0.052"),
		rec("steady", 8, "1"),
		rec("steady", 9, "1"),
		rec("steady", 10, "1"),
		rec("steady", 11, "1"),
		rec("steady", 12, "1"),
		rec("steady", 13, "1"),
		rec("steady", 14, "1"),
	}
}

func baseRequest() Request {
	return Request{
		Type:        analysis.TypeTag,
		GroupingKey: "Project",
		Window:      analysis.NewWindow(day(14)),
		Token:       "tok",
	}
}

func TestAnalyzeSubscription(t *testing.T) {
	source := &fakeSource{records: map[string][]analysis.CostRecord{"1": scenario()}}
	notifier := &recordingNotifier{}
	svc := New(source, notifier, metrics.NewRecorder("test"), zerolog.Nop())

	result := svc.AnalyzeSubscription(context.Background(), subscriptions.Subscription{Name: "corp-dev", ID: "1"}, baseRequest())
	require.NoError(t, result.Err)
	require.Len(t, result.Rows, 2)
	assert.Equal(t, 2, result.Groups)
	assert.Equal(t, 1, result.Alerts)

	assert.Equal(t, "python_finops", result.Rows[0].GroupKey)
	assert.Equal(t, analysis.AlertYes, result.Rows[0].Alert)
	assert.Equal(t, "Project", result.Rows[0].GroupLabel)
	assert.Equal(t, analysis.AlertNo, result.Rows[1].Alert)

	q := source.queries[0]
	assert.Equal(t, "1", q.SubscriptionID)
	assert.Equal(t, "corp-dev", q.SubscriptionName)
	assert.Equal(t, "tok", q.Token)

	require.Len(t, notifier.notes, 1)
	assert.Equal(t, "corp-dev", notifier.notes[0].Subscription)
	require.Len(t, notifier.notes[0].Alerts, 1)
	assert.Equal(t, "python_finops", notifier.notes[0].Alerts[0].GroupKey)
}

func TestAnalyzeSubscriptionAlertOnly(t *testing.T) {
	source := &fakeSource{records: map[string][]analysis.CostRecord{"1": scenario()}}
	svc := New(source, nil, nil, zerolog.Nop())

	req := baseRequest()
	req.AlertOnly = true
	result := svc.AnalyzeSubscription(context.Background(), subscriptions.Subscription{Name: "corp-dev", ID: "1"}, req)
	require.NoError(t, result.Err)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, "python_finops", result.Rows[0].GroupKey)
	assert.Equal(t, 2, result.Groups)
}

func TestAnalyzeSubscriptionNoAlertsSkipsNotifier(t *testing.T) {
	source := &fakeSource{records: map[string][]analysis.CostRecord{"1": {rec("steady", 14, "0")}}}
	notifier := &recordingNotifier{}
	svc := New(source, notifier, nil, zerolog.Nop())

	result := svc.AnalyzeSubscription(context.Background(), subscriptions.Subscription{Name: "corp-dev", ID: "1"}, baseRequest())
	require.NoError(t, result.Err)
	assert.Equal(t, 0, result.Alerts)
	assert.Empty(t, notifier.notes)
}

func TestRunAllSkipsFailingSubscriptions(t *testing.T) {
	source := &fakeSource{
		records: map[string][]analysis.CostRecord{
			"1": scenario(),
			"3": scenario(),
		},
		failures: map[string]error{"2": fmt.Errorf("%w: boom", fetcher.ErrUpstreamRequest)},
	}
	svc := New(source, nil, metrics.NewRecorder("test"), zerolog.Nop())

	subs := []subscriptions.Subscription{
		{Name: "corp-a", ID: "1"},
		{Name: "corp-b", ID: "2"},
		{Name: "corp-c", ID: "3"},
	}
	results := svc.RunAll(context.Background(), subs, baseRequest(), 1)

	require.Len(t, results, 3)
	assert.NoError(t, results[0].Err)
	assert.True(t, errors.Is(results[1].Err, fetcher.ErrUpstreamRequest))
	assert.Contains(t, results[1].Err.Error(), "corp-b")
	assert.NoError(t, results[2].Err)
	assert.Equal(t, "corp-c", results[2].Subscription.Name)
	assert.Equal(t, 1, Failed(results))
	assert.Equal(t, int32(1), source.maxSeen)
}

func TestRunAllBoundsConcurrency(t *testing.T) {
	source := &fakeSource{records: map[string][]analysis.CostRecord{}}
	svc := New(source, nil, nil, zerolog.Nop())

	var subs []subscriptions.Subscription
	for i := 0; i < 8; i++ {
		subs = append(subs, subscriptions.Subscription{Name: "s", ID: string(rune('a' + i))})
	}
	results := svc.RunAll(context.Background(), subs, baseRequest(), 3)

	require.Len(t, results, 8)
	assert.LessOrEqual(t, source.maxSeen, int32(3))
	assert.Equal(t, 0, Failed(results))
}

func TestSubscriptionRequestLabel(t *testing.T) {
	req := Request{Type: analysis.TypeSubscription}
	assert.Equal(t, "Subscription", req.GroupLabel())
}
