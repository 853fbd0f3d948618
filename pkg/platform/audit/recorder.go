package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"academy/pkg/platform/audit/outbox"
	"academy/pkg/requestcontext"
)

// Recorder appends audit events to the outbox. Call it inside the same
// transaction as the change it describes so both commit or neither does.
type Recorder struct {
	store  outbox.Store
	logger *slog.Logger
}

func NewRecorder(store outbox.Store, logger *slog.Logger) *Recorder {
	return &Recorder{store: store, logger: logger}
}

// Record enriches the event with request metadata and appends it.
func (r *Recorder) Record(ctx context.Context, event Event) error {
	if r == nil || r.store == nil {
		return nil
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if event.ActorID == "" {
		event.ActorID = requestcontext.AdminActor(ctx)
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}

	entry := outbox.NewEntry(event.AggregateType(), event.AggregateID(), string(event.Type), payload)
	entry.CreatedAt = event.Timestamp
	if err := r.store.Append(ctx, entry); err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}

	if r.logger != nil {
		r.logger.InfoContext(ctx, string(event.Type),
			"log_type", "audit",
			"aggregate_id", event.AggregateID(),
			"actor_id", event.ActorID,
			"request_id", event.RequestID,
		)
	}
	return nil
}
