package eventbus

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func subjectMatches(pattern, subject string) bool {
	return matchTokens(strings.Split(pattern, "."), strings.Split(subject, "."))
}

func TestSubjectMatches(t *testing.T) {
	tests := []struct {
		pattern, subject string
		want             bool
	}{
		{"taskflow.v1.events.workflow.wf-1.changed", "taskflow.v1.events.workflow.wf-1.changed", true},
		{"taskflow.v1.events.*.wf-1.completed", "taskflow.v1.events.transition.wf-1.completed", true},
		{"taskflow.v1.events.*.wf-1.completed", "taskflow.v1.events.transition.wf-2.completed", false},
		{"taskflow.v1.events.transition.>", "taskflow.v1.events.transition.wf-1.rejected", true},
		{"taskflow.v1.events.transition.>", "taskflow.v1.events.transition", false},
		{"taskflow.v1.events.transition.>", "taskflow.v1.events.workflow.wf-1.changed", false},
		{">", "anything.at.all", true},
		{"a.b", "a.b.c", false},
		{"a.b.c", "a.b", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, subjectMatches(tt.pattern, tt.subject), "%s ~ %s", tt.pattern, tt.subject)
	}
}

func TestSubjects(t *testing.T) {
	assert.Equal(t, "taskflow.v1.events.transition.wf_1.completed", Subject(TransitionCompleted, "wf.1"))
	assert.Equal(t, "taskflow.v1.events.validation.unknown.completed", Subject(ValidationCompleted, ""))
	assert.True(t, subjectMatches(DomainWildcardSubject(DomainTransition), Subject(TransitionRejected, "wf-1")))
	assert.True(t, subjectMatches(AllSubjects(), Subject(ActionDispatched, "wf-1")))
}

func TestMemoryBus_Subscribe(t *testing.T) {
	bus := NewMemoryBus()
	for _, bad := range []string{"", "a..b", "a.>.b"} {
		_, err := bus.Subscribe(bad, 1)
		assert.Error(t, err, "pattern %q", bad)
	}

	sub, err := bus.Subscribe("a.*", 0)
	require.NoError(t, err)
	assert.Equal(t, defaultSubscriptionBuffer, cap(sub.ch))
}

func TestMemoryBus_RoutesAndCopies(t *testing.T) {
	bus := NewMemoryBus()
	transitions, err := bus.Subscribe(DomainWildcardSubject(DomainTransition), 4)
	require.NoError(t, err)
	workflows, err := bus.Subscribe(DomainWildcardSubject(DomainWorkflow), 4)
	require.NoError(t, err)

	payload := []byte(`{"n":1}`)
	require.NoError(t, bus.Publish(context.Background(), Subject(TransitionCompleted, "wf-1"), payload))
	payload[5] = '2'

	msg := receive(t, transitions)
	assert.Equal(t, `{"n":1}`, string(msg.Payload), "the bus keeps its own copy")
	assert.False(t, msg.Timestamp.IsZero())
	assert.Empty(t, workflows.C())
}

func TestMemoryBus_SlowSubscriberDrops(t *testing.T) {
	bus := NewMemoryBus()
	slow, err := bus.Subscribe(AllSubjects(), 1)
	require.NoError(t, err)
	fast, err := bus.Subscribe(AllSubjects(), 8)
	require.NoError(t, err)

	ctx := context.Background()
	subject := Subject(WorkflowChanged, "wf-1")
	for i := 0; i < 3; i++ {
		require.NoError(t, bus.Publish(ctx, subject, []byte("{}")))
	}

	assert.EqualValues(t, 2, slow.Dropped())
	assert.EqualValues(t, 0, fast.Dropped())
	assert.Len(t, fast.C(), 3)
}

func TestMemoryBus_PublishErrors(t *testing.T) {
	bus := NewMemoryBus()
	assert.Error(t, bus.Publish(context.Background(), "", nil))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, bus.Publish(ctx, "a.b", nil), context.Canceled)
}

func TestMemoryBus_Close(t *testing.T) {
	bus := NewMemoryBus()
	sub, err := bus.Subscribe(AllSubjects(), 1)
	require.NoError(t, err)

	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close(), "close is idempotent")
	_, open := <-sub.C()
	assert.False(t, open)
	require.NoError(t, bus.Publish(context.Background(), "taskflow.v1.events.x", nil))

	other, err := bus.Subscribe(AllSubjects(), 1)
	require.NoError(t, err)
	require.NoError(t, bus.Close())
	_, open = <-other.C()
	assert.False(t, open)

	assert.ErrorIs(t, bus.Publish(context.Background(), "a.b", nil), ErrBusClosed)
	_, err = bus.Subscribe(AllSubjects(), 1)
	assert.ErrorIs(t, err, ErrBusClosed)
}
