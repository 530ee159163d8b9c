package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	events []Event
	err    error
}

func (r *recorder) Publish(_ context.Context, ev Event) error {
	r.events = append(r.events, ev)
	return r.err
}

func TestStreamValues(t *testing.T) {
	ts := time.Date(2022, 3, 4, 12, 0, 0, 0, time.UTC)
	values, err := streamValues(Event{Type: EventJobProgress, JobID: "abc", Current: 3, Total: 10, Timestamp: ts})
	require.NoError(t, err)

	assert.Equal(t, EventJobProgress, values["type"])
	assert.Equal(t, ts.Unix(), values["timestamp"])

	var decoded Event
	require.NoError(t, json.Unmarshal([]byte(values["data"].(string)), &decoded))
	assert.Equal(t, "abc", decoded.JobID)
	assert.Equal(t, 3, decoded.Current)
	assert.Equal(t, 10, decoded.Total)
}

func TestMultiPublishesToAll(t *testing.T) {
	a := &recorder{}
	b := &recorder{err: errors.New("down")}
	c := &recorder{}

	err := Multi{a, nil, b, c}.Publish(context.Background(), Event{Type: EventTableReady})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "down")

	for _, r := range []*recorder{a, b, c} {
		require.Len(t, r.events, 1)
		assert.False(t, r.events[0].Timestamp.IsZero())
	}
}

func TestNewRedisPublisherRejectsBadURL(t *testing.T) {
	_, err := NewRedisPublisher("::nope", "collegebaseball.events")
	assert.Error(t, err)
}

func TestNopPublisher(t *testing.T) {
	assert.NoError(t, Nop{}.Publish(context.Background(), Event{}))
}
