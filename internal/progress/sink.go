package progress

import "context"

// Sink consumes progress events. Implementations must be safe for repeated
// calls, honor ctx deadlines, and may be invoked from the hub goroutine only.
type Sink interface {
	Consume(ctx context.Context, evt Event) error
	Close(ctx context.Context) error
}

// Emitter publishes individual events; Hub satisfies this interface so workers
// can remain agnostic about how events are buffered or consumed.
type Emitter interface {
	Emit(evt Event)
}
