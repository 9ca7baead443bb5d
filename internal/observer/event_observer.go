package observer

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Operation names the pipeline entry point an event belongs to
type Operation string

const (
	OpAnalyze  Operation = "analyze"
	OpEnhance  Operation = "enhance"
	OpEdges    Operation = "edges"
	OpDiagnose Operation = "diagnose"
)

// LeafEvent describes one step of a leaf request
type LeafEvent struct {
	EventType      EventType              `json:"event_type"`
	Operation      Operation              `json:"operation"`
	Timestamp      time.Time              `json:"timestamp"`
	Source         string                 `json:"source"`
	ProcessingTime time.Duration          `json:"processing_time"`
	Success        bool                   `json:"success"`
	ErrorMessage   string                 `json:"error_message,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// EventType represents the type of leaf event
type EventType string

const (
	AnalysisStarted   EventType = "analysis_started"
	AnalysisCompleted EventType = "analysis_completed"
	AnalysisFailed    EventType = "analysis_failed"
	ImageFetched      EventType = "image_fetched"
	ImageFetchFailed  EventType = "image_fetch_failed"
	// DiagnosisMade carries the verdict in Metadata under the Meta* keys
	DiagnosisMade EventType = "diagnosis_made"
)

// Metadata keys read by MetricsObserver
const (
	MetaBackend       = "backend"
	MetaUnknown       = "is_unknown"
	MetaLowConfidence = "low_confidence"
	MetaHealthy       = "is_healthy"
	MetaAdvisories    = "advisories"
)

// Observer defines the interface for event observers
type Observer interface {
	OnEvent(ctx context.Context, event LeafEvent)
	GetObserverName() string
}

// Subject defines the interface for event publishers
type Subject interface {
	Subscribe(observer Observer)
	Unsubscribe(observer Observer)
	NotifyObservers(ctx context.Context, event LeafEvent)
	// Flush blocks until every dispatched event has been handled
	Flush()
}

// LoggingObserver logs leaf events
type LoggingObserver struct {
	logger *logrus.Logger
}

// NewLoggingObserver creates a new logging observer
func NewLoggingObserver(logger *logrus.Logger) Observer {
	return &LoggingObserver{logger: logger}
}

// OnEvent handles leaf events by logging them
func (o *LoggingObserver) OnEvent(ctx context.Context, event LeafEvent) {
	fields := logrus.Fields{
		"event_type":      event.EventType,
		"operation":       event.Operation,
		"source":          event.Source,
		"processing_time": event.ProcessingTime.String(),
		"success":         event.Success,
	}
	if event.ErrorMessage != "" {
		fields["error"] = event.ErrorMessage
	}
	for k, v := range event.Metadata {
		fields[k] = v
	}

	entry := o.logger.WithFields(fields)
	switch event.EventType {
	case AnalysisStarted:
		entry.Info("Leaf analysis started")
	case AnalysisCompleted:
		entry.Info("Leaf analysis completed")
	case AnalysisFailed:
		entry.Error("Leaf analysis failed")
	case ImageFetched:
		entry.Debug("Image fetched successfully")
	case ImageFetchFailed:
		entry.Error("Image fetch failed")
	case DiagnosisMade:
		entry.Info("Diagnosis made")
	default:
		entry.Info("Leaf event occurred")
	}
}

// GetObserverName returns the observer name
func (o *LoggingObserver) GetObserverName() string {
	return "logging_observer"
}

// OperationMetrics are the counters for one operation
type OperationMetrics struct {
	Started           int64   `json:"started"`
	Succeeded         int64   `json:"succeeded"`
	Failed            int64   `json:"failed"`
	AvgProcessingTime float64 `json:"avg_processing_time_sec"`

	totalTime time.Duration
}

// DiagnosisMetrics count verdict outcomes
type DiagnosisMetrics struct {
	Total         int64            `json:"total"`
	Unknown       int64            `json:"unknown"`
	LowConfidence int64            `json:"low_confidence"`
	Healthy       int64            `json:"healthy"`
	ByBackend     map[string]int64 `json:"by_backend"`
}

// MetricsSnapshot is a point-in-time copy of the collected counters
type MetricsSnapshot struct {
	Operations   map[Operation]OperationMetrics `json:"operations"`
	FetchFailed  int64                          `json:"fetch_failed"`
	Advisories   map[string]int64               `json:"advisories"`
	Diagnoses    DiagnosisMetrics               `json:"diagnoses"`
	UptimeSecond float64                        `json:"uptime_sec"`
}

// MetricsObserver aggregates leaf events into counters
type MetricsObserver struct {
	mu          sync.RWMutex
	started     time.Time
	operations  map[Operation]*OperationMetrics
	fetchFailed int64
	advisories  map[string]int64
	diagnoses   DiagnosisMetrics
}

// NewMetricsObserver creates a new metrics observer
func NewMetricsObserver() *MetricsObserver {
	return &MetricsObserver{
		started:    time.Now(),
		operations: make(map[Operation]*OperationMetrics),
		advisories: make(map[string]int64),
		diagnoses:  DiagnosisMetrics{ByBackend: make(map[string]int64)},
	}
}

// OnEvent handles leaf events by updating counters
func (o *MetricsObserver) OnEvent(ctx context.Context, event LeafEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()

	op := o.operations[event.Operation]
	if op == nil {
		op = &OperationMetrics{}
		o.operations[event.Operation] = op
	}

	switch event.EventType {
	case AnalysisStarted:
		op.Started++
	case AnalysisCompleted:
		op.Succeeded++
		op.totalTime += event.ProcessingTime
		if advisories, ok := event.Metadata[MetaAdvisories].([]string); ok {
			for _, a := range advisories {
				o.advisories[a]++
			}
		}
	case AnalysisFailed:
		op.Failed++
	case ImageFetchFailed:
		o.fetchFailed++
	case DiagnosisMade:
		o.diagnoses.Total++
		if flag(event.Metadata, MetaUnknown) {
			o.diagnoses.Unknown++
		}
		if flag(event.Metadata, MetaLowConfidence) {
			o.diagnoses.LowConfidence++
		}
		if flag(event.Metadata, MetaHealthy) {
			o.diagnoses.Healthy++
		}
		if backend, ok := event.Metadata[MetaBackend].(string); ok {
			o.diagnoses.ByBackend[backend]++
		}
	}
}

func flag(meta map[string]interface{}, key string) bool {
	v, _ := meta[key].(bool)
	return v
}

// GetObserverName returns the observer name
func (o *MetricsObserver) GetObserverName() string {
	return "metrics_observer"
}

// GetMetrics returns current metrics
func (o *MetricsObserver) GetMetrics() MetricsSnapshot {
	o.mu.RLock()
	defer o.mu.RUnlock()

	snap := MetricsSnapshot{
		Operations:   make(map[Operation]OperationMetrics, len(o.operations)),
		FetchFailed:  o.fetchFailed,
		Advisories:   make(map[string]int64, len(o.advisories)),
		Diagnoses:    o.diagnoses,
		UptimeSecond: time.Since(o.started).Seconds(),
	}
	for name, op := range o.operations {
		m := *op
		if m.Succeeded > 0 {
			m.AvgProcessingTime = (m.totalTime / time.Duration(m.Succeeded)).Seconds()
		}
		snap.Operations[name] = m
	}
	for k, v := range o.advisories {
		snap.Advisories[k] = v
	}
	snap.Diagnoses.ByBackend = make(map[string]int64, len(o.diagnoses.ByBackend))
	for k, v := range o.diagnoses.ByBackend {
		snap.Diagnoses.ByBackend[k] = v
	}
	return snap
}

// EventPublisher implements the Subject interface
type EventPublisher struct {
	mu        sync.RWMutex
	observers []Observer
	inflight  sync.WaitGroup
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher() Subject {
	return &EventPublisher{
		observers: make([]Observer, 0),
	}
}

// Subscribe adds an observer
func (p *EventPublisher) Subscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, observer)
}

// Unsubscribe removes an observer by name
func (p *EventPublisher) Unsubscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, obs := range p.observers {
		if obs.GetObserverName() == observer.GetObserverName() {
			p.observers = append(p.observers[:i], p.observers[i+1:]...)
			break
		}
	}
}

// NotifyObservers hands the event to every observer on its own goroutine.
// A panicking observer is logged and does not affect the others.
func (p *EventPublisher) NotifyObservers(ctx context.Context, event LeafEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	p.mu.RLock()
	observers := make([]Observer, len(p.observers))
	copy(observers, p.observers)
	p.mu.RUnlock()

	// observers outlive the request
	ctx = context.WithoutCancel(ctx)
	for _, observer := range observers {
		p.inflight.Add(1)
		go func(obs Observer) {
			defer p.inflight.Done()
			defer func() {
				if r := recover(); r != nil {
					logrus.WithField("observer", obs.GetObserverName()).
						WithField("panic", r).
						Error("Observer panicked while handling event")
				}
			}()
			obs.OnEvent(ctx, event)
		}(observer)
	}
}

// Flush waits for in-flight notifications
func (p *EventPublisher) Flush() {
	p.inflight.Wait()
}
