package events_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/fafa-store/internal/events"
)

type fakeEnqueuer struct {
	tasks []*asynq.Task
	seen  map[string]bool
}

func (f *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.seen == nil {
		f.seen = map[string]bool{}
	}
	for _, opt := range opts {
		if opt.Type() == asynq.TaskIDOpt {
			id := opt.Value().(string)
			if f.seen[id] {
				return nil, asynq.ErrTaskIDConflict
			}
			f.seen[id] = true
		}
	}
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{Type: task.Type()}, nil
}

type fakePublisher struct {
	got []events.Event
	err error
}

func (f *fakePublisher) Publish(_ context.Context, ev events.Event) error {
	if f.err != nil {
		return f.err
	}
	f.got = append(f.got, ev)
	return nil
}

func TestAsynqSchedulerDeduplicates(t *testing.T) {
	enq := &fakeEnqueuer{}
	sched := events.AsynqScheduler{Client: enq, Queue: "events", MaxRetry: 5}
	ev, err := events.New(events.TopicOrderCreated, uuid.New(), map[string]int{"n": 1})
	require.NoError(t, err)

	require.NoError(t, sched.Schedule(context.Background(), ev))
	require.NoError(t, sched.Schedule(context.Background(), ev))
	require.Len(t, enq.tasks, 1)
	require.Equal(t, events.TaskPublish, enq.tasks[0].Type())

	var decoded events.Event
	require.NoError(t, json.Unmarshal(enq.tasks[0].Payload(), &decoded))
	require.Equal(t, ev.ID, decoded.ID)
}

func TestPublishHandlerMarksPublished(t *testing.T) {
	store := &stubStore{}
	pub := &fakePublisher{}
	at := time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC)
	h := events.PublishHandler{Publisher: pub, Store: store, Logger: zerolog.Nop(), Now: func() time.Time { return at }}

	ev, err := events.New(events.TopicOrderDelivered, uuid.New(), nil)
	require.NoError(t, err)
	body, err := json.Marshal(ev)
	require.NoError(t, err)

	require.NoError(t, h.ProcessTask(context.Background(), asynq.NewTask(events.TaskPublish, body)))
	require.Len(t, pub.got, 1)
	require.Equal(t, at, store.published[ev.ID])

	pub.err = errors.New("broker down")
	require.Error(t, h.ProcessTask(context.Background(), asynq.NewTask(events.TaskPublish, body)))

	err = h.ProcessTask(context.Background(), asynq.NewTask(events.TaskPublish, []byte("nope")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestRelayReschedulesPending(t *testing.T) {
	store := &stubStore{}
	bus := events.Bus{Store: store}
	first, err := bus.Emit(context.Background(), events.TopicOrderCreated, uuid.New(), nil)
	require.NoError(t, err)
	second, err := bus.Emit(context.Background(), events.TopicOrderCreated, uuid.New(), nil)
	require.NoError(t, err)
	require.NoError(t, store.MarkPublished(context.Background(), first.ID, time.Now()))

	sched := &captureScheduler{}
	n, err := events.Relay{Store: store, Scheduler: sched, Logger: zerolog.Nop()}.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, second.ID, sched.events[0].ID)
}
