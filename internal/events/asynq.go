package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

const (
	// TaskPublish carries one event to the broker.
	TaskPublish = "events:publish"
	// TaskRelay re-schedules events that never reached the broker.
	TaskRelay = "events:relay"
)

// Enqueuer is the subset of *asynq.Client used by AsynqScheduler.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// AsynqScheduler schedules broker delivery through an asynq queue. The event id
// is the task id, so scheduling the same event twice is a no-op.
type AsynqScheduler struct {
	Client   Enqueuer
	Queue    string
	MaxRetry int
}

// Schedule implements DeliveryScheduler.
func (s AsynqScheduler) Schedule(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode task: %w", err)
	}
	opts := []asynq.Option{asynq.TaskID(ev.ID.String())}
	if s.Queue != "" {
		opts = append(opts, asynq.Queue(s.Queue))
	}
	if s.MaxRetry > 0 {
		opts = append(opts, asynq.MaxRetry(s.MaxRetry))
	}
	_, err = s.Client.EnqueueContext(ctx, asynq.NewTask(TaskPublish, body), opts...)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	return err
}

// Publisher delivers an event to the message broker.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Publishers fans one event out to several publishers. It fails when any of
// them fails, so the task is retried; publishers must tolerate repeats.
type Publishers []Publisher

// Publish implements Publisher.
func (ps Publishers) Publish(ctx context.Context, ev Event) error {
	var joined error
	for _, p := range ps {
		if p == nil {
			continue
		}
		joined = errors.Join(joined, p.Publish(ctx, ev))
	}
	return joined
}

// PublishHandler processes TaskPublish tasks.
type PublishHandler struct {
	Publisher Publisher
	Store     EventStore
	Logger    zerolog.Logger
	Now       func() time.Time
}

// ProcessTask implements asynq.Handler.
func (h PublishHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var ev Event
	if err := json.Unmarshal(t.Payload(), &ev); err != nil {
		return fmt.Errorf("decode event: %v: %w", err, asynq.SkipRetry)
	}
	if err := h.Publisher.Publish(ctx, ev); err != nil {
		h.Logger.Warn().Err(err).Str("event_id", ev.ID.String()).Str("topic", ev.Topic).Msg("event publish failed")
		return err
	}
	now := time.Now().UTC()
	if h.Now != nil {
		now = h.Now()
	}
	if h.Store != nil {
		if err := h.Store.MarkPublished(ctx, ev.ID, now); err != nil {
			return err
		}
	}
	h.Logger.Debug().Str("event_id", ev.ID.String()).Str("topic", ev.Topic).Msg("event published")
	return nil
}

// Relay re-schedules events left unpublished, e.g. when the queue was down
// at emit time.
type Relay struct {
	Store     EventStore
	Scheduler DeliveryScheduler
	Grace     time.Duration
	Batch     int
	Logger    zerolog.Logger
}

// ProcessTask implements asynq.Handler for TaskRelay.
func (r Relay) ProcessTask(ctx context.Context, _ *asynq.Task) error {
	_, err := r.Run(ctx)
	return err
}

// Run schedules one batch and returns how many events it handed over.
func (r Relay) Run(ctx context.Context) (int, error) {
	grace := r.Grace
	if grace <= 0 {
		grace = time.Minute
	}
	batch := r.Batch
	if batch <= 0 {
		batch = 100
	}
	pending, err := r.Store.Unpublished(ctx, time.Now().Add(-grace), batch)
	if err != nil {
		return 0, err
	}
	var joined error
	n := 0
	for _, ev := range pending {
		if err := r.Scheduler.Schedule(ctx, ev); err != nil {
			joined = errors.Join(joined, err)
			continue
		}
		n++
	}
	if n > 0 {
		r.Logger.Info().Int("count", n).Msg("relayed unpublished events")
	}
	return n, joined
}

// LogNotifier logs every emitted event.
type LogNotifier struct {
	Logger zerolog.Logger
}

// Notify implements Notifier.
func (n LogNotifier) Notify(_ context.Context, ev Event) error {
	n.Logger.Info().
		Str("event_id", ev.ID.String()).
		Str("topic", ev.Topic).
		Str("aggregate_id", ev.AggregateID.String()).
		Msg("domain event emitted")
	return nil
}
