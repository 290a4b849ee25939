// Package eventbus implements the in-process, synchronous, singleton event
// bus (§4.5) that carries resource/quality/citation/curation events between
// the search core and its collaborators. Grounded on the original Python
// EventBus (original_source/backend/app/shared/event_bus.py): priority is
// metadata only, delivery is synchronous and order-preserving per event
// name, and handler failures are isolated rather than propagated.
package eventbus

import (
	"container/ring"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ram-tewari/neo-alexandria-sub002/internal/domain"
)

// Handler receives a delivered event. A Handler that returns an error does
// not stop delivery to subsequent handlers (§4.5 error isolation); the
// error is counted and logged.
type Handler func(event domain.Event) error

// handlerEntry pairs a handler with an identity used for idempotent
// Subscribe/Unsubscribe and for log/metric attribution, since Go funcs are
// not comparable.
type handlerEntry struct {
	id      uintptr
	name    string
	handler Handler
}

// Metrics is the snapshot returned by Bus.Metrics (§4.5 GetMetrics).
type Metrics struct {
	EventsEmitted       int64
	EventsDelivered     int64
	HandlerErrors       int64
	TotalHandlerTimeMS  float64
	TotalEmissionTimeMS float64
	EventTypeCounts     map[string]int64
	HandlerLatencyP50   float64
	HandlerLatencyP95   float64
	HandlerLatencyP99   float64
	EmissionLatencyP50  float64
	EmissionLatencyP95  float64
	EmissionLatencyP99  float64
}

// HistoryEntry is one record in the bounded history ring (§4.5 GetHistory).
type HistoryEntry struct {
	Name          string
	Data          map[string]any
	Timestamp     time.Time
	Priority      domain.Priority
	CorrelationID string
}

// Bus is the singleton synchronous event bus. All fields are guarded by mu,
// a single bus-level lock per §5 "Shared mutable state".
type Bus struct {
	mu       sync.Mutex
	handlers map[string][]handlerEntry
	nextID   uintptr

	eventsEmitted   int64
	eventsDelivered int64
	handlerErrors   int64
	totalHandlerMS  float64
	totalEmissionMS float64
	eventTypeCounts map[string]int64

	handlerLatencies  []float64 // last LatencyWindowSize samples
	emissionLatencies []float64

	historySize   int
	history       *ring.Ring
	historyLen    int
	latencyWindow int
	slowHandlerMS int

	log *slog.Logger
}

// New constructs a Bus. historySize and latencyWindow default to 1000 and
// slowHandlerMS to 100 if zero, matching §4.5's defaults.
func New(historySize, latencyWindow, slowHandlerMS int, log *slog.Logger) *Bus {
	if historySize <= 0 {
		historySize = 1000
	}
	if latencyWindow <= 0 {
		latencyWindow = 1000
	}
	if slowHandlerMS <= 0 {
		slowHandlerMS = 100
	}
	if log == nil {
		log = slog.Default()
	}
	return &Bus{
		handlers:        make(map[string][]handlerEntry),
		eventTypeCounts: make(map[string]int64),
		historySize:     historySize,
		history:         ring.New(historySize),
		latencyWindow:   latencyWindow,
		slowHandlerMS:   slowHandlerMS,
		log:             log,
	}
}

// singleton is the process-wide instance, lazily constructed (§9 "global
// singletons", §5 "event bus singleton").
var (
	singletonOnce sync.Once
	singleton     *Bus
)

// Default returns the process-wide singleton Bus with default sizing.
func Default() *Bus {
	singletonOnce.Do(func() {
		singleton = New(1000, 1000, 100, slog.Default())
	})
	return singleton
}

// Subscribe registers h for eventName under handlerName. Go funcs aren't
// comparable, so handler identity is keyed by the registered name;
// re-subscribing the same name to the same event is a no-op, matching the
// Python bus's duplicate-registration guard.
func (b *Bus) Subscribe(eventName, handlerName string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, e := range b.handlers[eventName] {
		if e.name == handlerName {
			return // idempotent per (name, handler)
		}
	}
	b.nextID++
	b.handlers[eventName] = append(b.handlers[eventName], handlerEntry{
		id: b.nextID, name: handlerName, handler: h,
	})
	b.log.Info("subscribed handler", "event", eventName, "handler", handlerName)
}

// Unsubscribe removes handlerName from eventName's subscriber list.
func (b *Bus) Unsubscribe(eventName, handlerName string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	entries := b.handlers[eventName]
	filtered := entries[:0]
	for _, e := range entries {
		if e.name != handlerName {
			filtered = append(filtered, e)
		}
	}
	b.handlers[eventName] = filtered
	b.log.Info("unsubscribed handler", "event", eventName, "handler", handlerName)
}

// ClearSubscribers removes all handlers for eventName, or every handler for
// every event if eventName is "".
func (b *Bus) ClearSubscribers(eventName string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if eventName == "" {
		b.handlers = make(map[string][]handlerEntry)
		return
	}
	delete(b.handlers, eventName)
}

// Emit synchronously delivers an event to every subscriber of name, in
// subscription order, and returns the constructed Event. Handler failures
// are isolated: a failing handler does not stop delivery to the rest, and
// the emitting call never returns an error (§4.5, §7 propagation policy).
//
// A handler that itself calls Emit completes only after the nested
// emission completes, because Go's call stack naturally serializes nested
// invocations; the bus holds no lock across handler execution so nested
// Emit calls do not deadlock.
func (b *Bus) Emit(name string, data map[string]any, priority domain.Priority) domain.Event {
	emissionStart := time.Now()

	if priority == "" {
		priority = domain.PriorityNormal
	}
	event := domain.Event{
		Name:          name,
		Data:          data,
		Priority:      priority,
		CorrelationID: uuid.NewString(),
		Timestamp:     time.Now().UTC(),
	}

	b.mu.Lock()
	b.eventsEmitted++
	b.eventTypeCounts[name]++
	b.pushHistory(event)
	// Snapshot the handler slice under the lock so concurrent
	// Subscribe/Unsubscribe calls never race with iteration, then release
	// the lock before running handler bodies (handlers may call back into
	// the bus, e.g. to Emit a nested event).
	entries := make([]handlerEntry, len(b.handlers[name]))
	copy(entries, b.handlers[name])
	b.mu.Unlock()

	b.log.Debug("emitting event", "event", name, "priority", string(priority), "correlation_id", event.CorrelationID)

	if len(entries) == 0 {
		b.recordEmissionLatency(time.Since(emissionStart))
		return event
	}

	for _, entry := range entries {
		start := time.Now()
		err := safeInvoke(entry.handler, event)
		elapsedMS := float64(time.Since(start).Microseconds()) / 1000.0

		b.mu.Lock()
		b.totalHandlerMS += elapsedMS
		b.handlerLatencies = appendBounded(b.handlerLatencies, elapsedMS, b.latencyWindow)
		if err != nil {
			b.handlerErrors++
			b.mu.Unlock()
			b.log.Error("event handler failed", "event", name, "handler", entry.name,
				"priority", string(priority), "error", err)
		} else {
			b.eventsDelivered++
			b.mu.Unlock()
			if elapsedMS > float64(b.slowHandlerMS) {
				b.log.Warn("slow event handler", "event", name, "handler", entry.name, "duration_ms", elapsedMS)
			}
		}
	}

	b.recordEmissionLatency(time.Since(emissionStart))
	return event
}

// safeInvoke runs h and converts a panic into an error so that one
// misbehaving handler can never take down the emitting goroutine — the Go
// analogue of the Python bus's broad except Exception.
func safeInvoke(h Handler, event domain.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError{r}
		}
	}()
	return h(event)
}

type panicError struct{ v any }

func (p panicError) Error() string { return "handler panicked" }

func (b *Bus) recordEmissionLatency(d time.Duration) {
	ms := float64(d.Microseconds()) / 1000.0
	b.mu.Lock()
	b.totalEmissionMS += ms
	b.emissionLatencies = appendBounded(b.emissionLatencies, ms, b.latencyWindow)
	b.mu.Unlock()
}

func appendBounded(s []float64, v float64, max int) []float64 {
	s = append(s, v)
	if len(s) > max {
		s = s[len(s)-max:]
	}
	return s
}

// pushHistory must be called with mu held.
func (b *Bus) pushHistory(event domain.Event) {
	b.history.Value = HistoryEntry{
		Name:          event.Name,
		Data:          event.Data,
		Timestamp:     event.Timestamp,
		Priority:      event.Priority,
		CorrelationID: event.CorrelationID,
	}
	b.history = b.history.Next()
	if b.historyLen < b.historySize {
		b.historyLen++
	}
}

// History returns up to limit of the most recent events, oldest first.
func (b *Bus) History(limit int) []HistoryEntry {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.historyLen == 0 {
		return nil
	}
	n := b.historyLen
	if limit > 0 && limit < n {
		n = limit
	}

	// b.history always points at the next slot to be written, which is
	// also the oldest retained entry once the ring has fully wrapped; if
	// it hasn't wrapped yet, the oldest entry is historyLen slots back.
	start := b.history
	if b.historyLen < b.historySize {
		start = b.history.Move(-b.historyLen)
	}
	all := make([]HistoryEntry, 0, b.historyLen)
	r := start
	for i := 0; i < b.historyLen; i++ {
		all = append(all, r.Value.(HistoryEntry))
		r = r.Next()
	}
	return all[len(all)-n:]
}

// ClearHistory empties the history ring.
func (b *Bus) ClearHistory() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.history = ring.New(b.historySize)
	b.historyLen = 0
}

// ResetMetrics zeroes all counters and latency windows (test helper).
func (b *Bus) ResetMetrics() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.eventsEmitted = 0
	b.eventsDelivered = 0
	b.handlerErrors = 0
	b.totalHandlerMS = 0
	b.totalEmissionMS = 0
	b.eventTypeCounts = make(map[string]int64)
	b.handlerLatencies = nil
	b.emissionLatencies = nil
}

// Metrics returns a snapshot of bus counters and latency percentiles,
// exact over the retained latencyWindow samples (§4.5 GetMetrics).
func (b *Bus) Metrics() Metrics {
	b.mu.Lock()
	defer b.mu.Unlock()

	types := make(map[string]int64, len(b.eventTypeCounts))
	for k, v := range b.eventTypeCounts {
		types[k] = v
	}

	hp50, hp95, hp99 := percentiles(b.handlerLatencies)
	ep50, ep95, ep99 := percentiles(b.emissionLatencies)

	return Metrics{
		EventsEmitted:       b.eventsEmitted,
		EventsDelivered:     b.eventsDelivered,
		HandlerErrors:       b.handlerErrors,
		TotalHandlerTimeMS:  b.totalHandlerMS,
		TotalEmissionTimeMS: b.totalEmissionMS,
		EventTypeCounts:     types,
		HandlerLatencyP50:   hp50,
		HandlerLatencyP95:   hp95,
		HandlerLatencyP99:   hp99,
		EmissionLatencyP50:  ep50,
		EmissionLatencyP95:  ep95,
		EmissionLatencyP99:  ep99,
	}
}

// percentiles computes p50/p95/p99 over samples using the same
// index = floor(n * pct) convention as the Python original.
func percentiles(samples []float64) (p50, p95, p99 float64) {
	if len(samples) == 0 {
		return 0, 0, 0
	}
	sorted := make([]float64, len(samples))
	copy(sorted, samples)
	sort.Float64s(sorted)
	n := len(sorted)
	idx := func(pct float64) float64 {
		i := int(float64(n) * pct)
		if i >= n {
			i = n - 1
		}
		return sorted[i]
	}
	return idx(0.50), idx(0.95), idx(0.99)
}
