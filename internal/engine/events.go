package engine

// Event represents an engine lifecycle event.
// Minimal and stable: name + variant and optional fields via key/values.
type Event struct {
	Name    string
	Variant Variant
	Fields  map[string]any
}

// Event names emitted by the engine.
const (
	EventLoadStart = "load_start"
	EventLoadDone  = "load_done"
	EventLoadError = "load_error"
	EventEvict     = "evict"
	EventDowngrade = "downgrade"
	EventFallback  = "fallback_retry"
)

// EventPublisher receives events from the engine. Implementations should be
// lightweight and non-blocking; Publish must not panic.
type EventPublisher interface {
	Publish(Event)
}

// noopPublisher is the default; it drops events.
type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}
