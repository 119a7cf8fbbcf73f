package observer

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// AnalysisEvent represents an analysis event
type AnalysisEvent struct {
	EventType       EventType              `json:"event_type"`
	Timestamp       time.Time              `json:"timestamp"`
	RequestID       string                 `json:"request_id"`
	Source          string                 `json:"source"`
	ImageURL        string                 `json:"image_url,omitempty"`
	ProcessingTime  time.Duration          `json:"processing_time"`
	Success         bool                   `json:"success"`
	ErrorMessage    string                 `json:"error_message,omitempty"`
	Score           float64                `json:"score,omitempty"`
	Recommendation  string                 `json:"recommendation,omitempty"`
	DegradedSignals []string               `json:"degraded_signals,omitempty"`
	Metadata        map[string]interface{} `json:"metadata,omitempty"`
}

// EventType represents the type of analysis event
type EventType string

const (
	// AnalysisStarted when analysis begins
	AnalysisStarted EventType = "analysis_started"
	// AnalysisCompleted when analysis finishes successfully
	AnalysisCompleted EventType = "analysis_completed"
	// AnalysisFailed when analysis fails
	AnalysisFailed EventType = "analysis_failed"
	// ImageFetched when image is successfully fetched
	ImageFetched EventType = "image_fetched"
	// ImageFetchFailed when image fetch fails
	ImageFetchFailed EventType = "image_fetch_failed"
)

// Observer defines the interface for event observers
type Observer interface {
	OnEvent(ctx context.Context, event AnalysisEvent)
	GetObserverName() string
}

// Subject defines the interface for event publishers
type Subject interface {
	Subscribe(observer Observer)
	Unsubscribe(observer Observer)
	NotifyObservers(ctx context.Context, event AnalysisEvent)
	// Wait blocks until every notification sent so far has been handled
	Wait()
}

// LoggingObserver logs analysis events
type LoggingObserver struct {
	logger *logrus.Logger
}

// NewLoggingObserver creates a new logging observer
func NewLoggingObserver(logger *logrus.Logger) Observer {
	return &LoggingObserver{
		logger: logger,
	}
}

// OnEvent handles analysis events by logging them
func (o *LoggingObserver) OnEvent(ctx context.Context, event AnalysisEvent) {
	fields := logrus.Fields{
		"event_type":      event.EventType,
		"request_id":      event.RequestID,
		"source":          event.Source,
		"processing_time": event.ProcessingTime.Seconds(),
		"success":         event.Success,
	}

	if event.ImageURL != "" {
		fields["image_url"] = event.ImageURL
	}
	if event.ErrorMessage != "" {
		fields["error"] = event.ErrorMessage
	}
	if event.Recommendation != "" {
		fields["recommendation"] = event.Recommendation
		fields["tampering_score"] = event.Score
	}
	if len(event.DegradedSignals) > 0 {
		fields["degraded_signals"] = event.DegradedSignals
	}
	for k, v := range event.Metadata {
		fields[k] = v
	}

	entry := o.logger.WithFields(fields)
	switch event.EventType {
	case AnalysisStarted:
		entry.Debug("Image analysis started")
	case AnalysisCompleted:
		if len(event.DegradedSignals) > 0 {
			entry.Warn("Image analysis completed with degraded signals")
			return
		}
		entry.Info("Image analysis completed")
	case AnalysisFailed:
		entry.Error("Image analysis failed")
	case ImageFetched:
		entry.Debug("Image fetched successfully")
	case ImageFetchFailed:
		entry.Error("Image fetch failed")
	default:
		entry.Info("Analysis event occurred")
	}
}

// GetObserverName returns the observer name
func (o *LoggingObserver) GetObserverName() string {
	return "logging_observer"
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

// Unsubscribe removes an observer
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

// NotifyObservers notifies all observers of an event. Observers run
// concurrently and outlive the request, so they receive a detached context.
func (p *EventPublisher) NotifyObservers(ctx context.Context, event AnalysisEvent) {
	p.mu.RLock()
	observers := make([]Observer, len(p.observers))
	copy(observers, p.observers)
	p.mu.RUnlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	detached := context.WithoutCancel(ctx)

	p.inflight.Add(len(observers))
	for _, observer := range observers {
		go func(obs Observer) {
			defer p.inflight.Done()
			defer func() {
				if r := recover(); r != nil {
					logrus.WithField("observer", obs.GetObserverName()).
						WithField("panic", r).
						Error("Observer panicked while handling event")
				}
			}()
			obs.OnEvent(detached, event)
		}(observer)
	}
}

// Wait blocks until all in-flight notifications are handled
func (p *EventPublisher) Wait() {
	p.inflight.Wait()
}
