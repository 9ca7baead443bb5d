package observer

import (
	"bytes"
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingObserver struct {
	name  string
	count atomic.Int64
}

func (o *countingObserver) OnEvent(context.Context, LeafEvent) { o.count.Add(1) }
func (o *countingObserver) GetObserverName() string             { return o.name }

type panickingObserver struct{}

func (panickingObserver) OnEvent(context.Context, LeafEvent) { panic("boom") }
func (panickingObserver) GetObserverName() string            { return "panicking" }

func TestEventPublisher_SubscribeUnsubscribe(t *testing.T) {
	pub := NewEventPublisher()
	a := &countingObserver{name: "a"}
	b := &countingObserver{name: "b"}
	pub.Subscribe(a)
	pub.Subscribe(b)
	pub.Subscribe(panickingObserver{})

	ctx := context.Background()
	pub.NotifyObservers(ctx, LeafEvent{EventType: AnalysisStarted, Operation: OpAnalyze})
	pub.Flush()
	assert.EqualValues(t, 1, a.count.Load())
	assert.EqualValues(t, 1, b.count.Load())

	pub.Unsubscribe(&countingObserver{name: "a"})
	pub.NotifyObservers(ctx, LeafEvent{EventType: AnalysisStarted, Operation: OpAnalyze})
	pub.Flush()
	assert.EqualValues(t, 1, a.count.Load())
	assert.EqualValues(t, 2, b.count.Load())
}

func TestEventPublisher_SurvivesCancelledContext(t *testing.T) {
	pub := NewEventPublisher()
	metrics := NewMetricsObserver()
	pub.Subscribe(metrics)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	pub.NotifyObservers(ctx, LeafEvent{EventType: AnalysisFailed, Operation: OpEdges})
	pub.Flush()

	assert.EqualValues(t, 1, metrics.GetMetrics().Operations[OpEdges].Failed)
}

func TestMetricsObserver(t *testing.T) {
	m := NewMetricsObserver()
	ctx := context.Background()

	m.OnEvent(ctx, LeafEvent{EventType: AnalysisStarted, Operation: OpAnalyze})
	m.OnEvent(ctx, LeafEvent{EventType: AnalysisStarted, Operation: OpAnalyze})
	m.OnEvent(ctx, LeafEvent{
		EventType:      AnalysisCompleted,
		Operation:      OpAnalyze,
		ProcessingTime: 2 * time.Second,
		Metadata:       map[string]interface{}{MetaAdvisories: []string{"blurry", "too_dark"}},
	})
	m.OnEvent(ctx, LeafEvent{
		EventType:      AnalysisCompleted,
		Operation:      OpAnalyze,
		ProcessingTime: 4 * time.Second,
		Metadata:       map[string]interface{}{MetaAdvisories: []string{"blurry"}},
	})
	m.OnEvent(ctx, LeafEvent{EventType: ImageFetchFailed, Operation: OpAnalyze})
	m.OnEvent(ctx, LeafEvent{
		EventType: DiagnosisMade,
		Operation: OpDiagnose,
		Metadata: map[string]interface{}{
			MetaBackend:       "local",
			MetaUnknown:       true,
			MetaLowConfidence: true,
		},
	})
	m.OnEvent(ctx, LeafEvent{
		EventType: DiagnosisMade,
		Operation: OpDiagnose,
		Metadata:  map[string]interface{}{MetaBackend: "gemini", MetaHealthy: true},
	})

	snap := m.GetMetrics()
	analyze := snap.Operations[OpAnalyze]
	assert.EqualValues(t, 2, analyze.Started)
	assert.EqualValues(t, 2, analyze.Succeeded)
	assert.InDelta(t, 3.0, analyze.AvgProcessingTime, 1e-9)
	assert.EqualValues(t, 1, snap.FetchFailed)
	assert.Equal(t, map[string]int64{"blurry": 2, "too_dark": 1}, snap.Advisories)

	assert.EqualValues(t, 2, snap.Diagnoses.Total)
	assert.EqualValues(t, 1, snap.Diagnoses.Unknown)
	assert.EqualValues(t, 1, snap.Diagnoses.LowConfidence)
	assert.EqualValues(t, 1, snap.Diagnoses.Healthy)
	assert.Equal(t, map[string]int64{"local": 1, "gemini": 1}, snap.Diagnoses.ByBackend)

	// snapshot is a copy
	snap.Advisories["blurry"] = 100
	assert.EqualValues(t, 2, m.GetMetrics().Advisories["blurry"])
}

func TestLoggingObserver(t *testing.T) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetFormatter(&logrus.JSONFormatter{})

	obs := NewLoggingObserver(logger)
	obs.OnEvent(context.Background(), LeafEvent{
		EventType:    AnalysisFailed,
		Operation:    OpDiagnose,
		Source:       "upload",
		ErrorMessage: "decode: could not read image",
		Metadata:     map[string]interface{}{"backend": "local"},
	})

	out := buf.String()
	require.NotEmpty(t, out)
	assert.Contains(t, out, `"level":"error"`)
	assert.Contains(t, out, `"operation":"diagnose"`)
	assert.Contains(t, out, `"backend":"local"`)
	assert.Contains(t, out, "Leaf analysis failed")
	assert.Equal(t, "logging_observer", obs.GetObserverName())
}
