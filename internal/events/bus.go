// Package events provides an in-process pub/sub bus used to report
// simulation run lifecycle and progress, kept from the project's existing
// event-bus shape (typed events, per-type and catch-all subscribers,
// async non-blocking delivery) and retargeted from trade/order lifecycle
// events to simulation-run lifecycle events.
package events

import (
	"sync"
	"time"
)

// EventType represents the different simulation lifecycle events the bus
// carries.
type EventType string

const (
	EventRunStarted            EventType = "RUN_STARTED"
	EventRunCompleted          EventType = "RUN_COMPLETED"
	EventRunFailed             EventType = "RUN_FAILED"
	EventBatchProgress         EventType = "BATCH_PROGRESS"
	EventBatchCombinationFailed EventType = "BATCH_COMBINATION_FAILED"
	EventBatchCompleted        EventType = "BATCH_COMPLETED"
	EventPortfolioRejection    EventType = "PORTFOLIO_REJECTION"
	EventPortfolioLiquidation  EventType = "PORTFOLIO_LIQUIDATION"
)

// Event represents one occurrence published on the bus.
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// Subscriber is a function that handles events.
type Subscriber func(Event)

// EventBus manages event publishing and subscriptions.
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]Subscriber
	allSubs     []Subscriber
}

// NewEventBus creates a new event bus.
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[EventType][]Subscriber),
		allSubs:     make([]Subscriber, 0),
	}
}

// Subscribe registers a subscriber for a specific event type.
func (eb *EventBus) Subscribe(eventType EventType, subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.subscribers[eventType] = append(eb.subscribers[eventType], subscriber)
}

// SubscribeAll registers a subscriber for every event type.
func (eb *EventBus) SubscribeAll(subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.allSubs = append(eb.allSubs, subscriber)
}

// Publish sends an event to all subscribers. Delivery is async (each
// subscriber runs in its own goroutine) so a slow or absent consumer never
// blocks the publisher -- required by the Batch Runner's no-deadlock rule.
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if subs, ok := eb.subscribers[event.Type]; ok {
		for _, sub := range subs {
			go sub(event)
		}
	}

	for _, sub := range eb.allSubs {
		go sub(event)
	}
}

// PublishRunStarted publishes the start of a single-symbol, batch or
// portfolio run.
func (eb *EventBus) PublishRunStarted(runID, mode string) {
	eb.Publish(Event{
		Type: EventRunStarted,
		Data: map[string]interface{}{
			"run_id": runID,
			"mode":   mode,
		},
	})
}

// PublishRunCompleted publishes a successfully completed run.
func (eb *EventBus) PublishRunCompleted(runID string, totalReturnPercent float64) {
	eb.Publish(Event{
		Type: EventRunCompleted,
		Data: map[string]interface{}{
			"run_id":               runID,
			"total_return_percent": totalReturnPercent,
		},
	})
}

// PublishRunFailed publishes a run that errored before producing a result.
func (eb *EventBus) PublishRunFailed(runID string, err error) {
	data := map[string]interface{}{"run_id": runID}
	if err != nil {
		data["error"] = err.Error()
	}
	eb.Publish(Event{Type: EventRunFailed, Data: data})
}

// PublishBatchProgress publishes a (completed, total) progress tick for a
// batch run, per §4.8's reporting contract.
func (eb *EventBus) PublishBatchProgress(runID string, completed, total int) {
	eb.Publish(Event{
		Type: EventBatchProgress,
		Data: map[string]interface{}{
			"run_id":    runID,
			"completed": completed,
			"total":     total,
		},
	})
}

// PublishBatchCombinationFailed publishes a single combination's failure
// without aborting the batch.
func (eb *EventBus) PublishBatchCombinationFailed(runID string, combination map[string]interface{}, err error) {
	data := map[string]interface{}{
		"run_id":      runID,
		"combination": combination,
	}
	if err != nil {
		data["error"] = err.Error()
	}
	eb.Publish(Event{Type: EventBatchCombinationFailed, Data: data})
}

// PublishBatchCompleted publishes the terminal event of a batch run.
func (eb *EventBus) PublishBatchCompleted(runID string, total, succeeded, failed int) {
	eb.Publish(Event{
		Type: EventBatchCompleted,
		Data: map[string]interface{}{
			"run_id":    runID,
			"total":     total,
			"succeeded": succeeded,
			"failed":    failed,
		},
	})
}

// PublishPortfolioRejection publishes a rejected-orders entry from the
// Portfolio Simulator's cash gate.
func (eb *EventBus) PublishPortfolioRejection(runID, symbol, reason string) {
	eb.Publish(Event{
		Type: EventPortfolioRejection,
		Data: map[string]interface{}{
			"run_id": runID,
			"symbol": symbol,
			"reason": reason,
		},
	})
}

// PublishPortfolioLiquidation publishes a synthetic liquidation at a
// symbol's index-membership removeDate.
func (eb *EventBus) PublishPortfolioLiquidation(runID, symbol string, lotCount int) {
	eb.Publish(Event{
		Type: EventPortfolioLiquidation,
		Data: map[string]interface{}{
			"run_id":    runID,
			"symbol":    symbol,
			"lot_count": lotCount,
		},
	})
}
