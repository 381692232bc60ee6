package events_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kode4food/swfcatalog/internal/events"
	"github.com/kode4food/swfcatalog/pkg/api"
)

type recordingSubscriber struct {
	topics   []string
	received chan *api.EventParams
	err      error
	panics   bool
	mu       sync.Mutex
	seen     []string
}

const brokerWaitTimeout = time.Second

func TestBrokerDeliversMatchingTopics(t *testing.T) {
	b := events.NewBroker(nil)
	b.Start()
	defer b.Stop()

	sub := newRecordingSubscriber(api.WorkflowTopic)
	b.Subscribe(sub)

	ctx := context.Background()
	assert.NoError(t, b.Publish(ctx, &api.EventParams{Topic: "other"}))
	assert.NoError(t, b.Publish(ctx, &api.EventParams{
		Topic: api.WorkflowTopic, Payload: []byte(`{"id":"swf1"}`),
	}))

	ev := sub.wait(t)
	assert.Equal(t, api.WorkflowTopic, ev.Topic)
	assert.JSONEq(t, `{"id":"swf1"}`, string(ev.Payload))
	assert.Equal(t, []string{api.WorkflowTopic}, sub.topicsSeen())
}

func TestBrokerSubscribeIsIdempotent(t *testing.T) {
	b := events.NewBroker(nil)
	b.Start()
	defer b.Stop()

	sub := newRecordingSubscriber(api.WorkflowTopic)
	b.Subscribe(sub, sub)
	b.Subscribe(sub)

	err := b.Publish(
		context.Background(), &api.EventParams{Topic: api.WorkflowTopic},
	)
	assert.NoError(t, err)
	sub.wait(t)

	err = b.Publish(
		context.Background(), &api.EventParams{Topic: api.WorkflowTopic},
	)
	assert.NoError(t, err)
	sub.wait(t)

	assert.Len(t, sub.topicsSeen(), 2)
}

func TestBrokerUnsubscribe(t *testing.T) {
	b := events.NewBroker(nil)
	b.Start()
	defer b.Stop()

	gone := newRecordingSubscriber(api.WorkflowTopic)
	stays := newRecordingSubscriber(api.WorkflowTopic)
	b.Subscribe(gone, stays)
	b.Unsubscribe(gone)

	err := b.Publish(
		context.Background(), &api.EventParams{Topic: api.WorkflowTopic},
	)
	assert.NoError(t, err)
	stays.wait(t)
	assert.Empty(t, gone.topicsSeen())
}

func TestBrokerSurvivesFailingSubscribers(t *testing.T) {
	b := events.NewBroker(nil)
	b.Start()
	defer b.Stop()

	failing := newRecordingSubscriber(api.WorkflowTopic)
	failing.err = errors.New("refresh failed")
	panicking := newRecordingSubscriber(api.WorkflowTopic)
	panicking.panics = true
	healthy := newRecordingSubscriber(api.WorkflowTopic)
	b.Subscribe(failing, panicking, healthy)

	ctx := context.Background()
	for range 2 {
		err := b.Publish(ctx, &api.EventParams{Topic: api.WorkflowTopic})
		assert.NoError(t, err)
		healthy.wait(t)
	}
	assert.Len(t, failing.topicsSeen(), 2)
}

func TestBrokerPublishValidation(t *testing.T) {
	b := events.NewBroker(nil)
	b.Start()

	ctx := context.Background()
	assert.ErrorIs(t, b.Publish(ctx, nil), events.ErrTopicRequired)
	assert.ErrorIs(t,
		b.Publish(ctx, &api.EventParams{}), events.ErrTopicRequired,
	)

	b.Stop()
	assert.ErrorIs(t,
		b.Publish(ctx, &api.EventParams{Topic: api.WorkflowTopic}),
		events.ErrBrokerStopped,
	)
}

func newRecordingSubscriber(topics ...string) *recordingSubscriber {
	return &recordingSubscriber{
		topics:   topics,
		received: make(chan *api.EventParams, 16),
	}
}

func (s *recordingSubscriber) SupportsEventTopics() []string {
	return s.topics
}

func (s *recordingSubscriber) OnEvent(
	_ context.Context, ev *api.EventParams,
) error {
	s.mu.Lock()
	s.seen = append(s.seen, ev.Topic)
	s.mu.Unlock()
	if s.panics {
		panic("subscriber exploded")
	}
	s.received <- ev
	return s.err
}

func (s *recordingSubscriber) topicsSeen() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.seen...)
}

func (s *recordingSubscriber) wait(t *testing.T) *api.EventParams {
	t.Helper()
	select {
	case ev := <-s.received:
		return ev
	case <-time.After(brokerWaitTimeout):
		t.Fatal("event was not delivered")
		return nil
	}
}
