package notify

import (
	"context"
	"errors"
	"testing"

	"cleanproof/backend/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	messages []interface{}
	err      error
}

func (f *fakePublisher) Publish(ctx context.Context, message interface{}) error {
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, message)
	return nil
}

func event() *model.ConsensusEvent {
	return &model.ConsensusEvent{
		ID:         42,
		LocationID: 7,
		Reporters:  []string{"a", "b", "c"},
		Guardians: []model.GuardianSubscription{
			{UserID: "g1", LocationID: 7, DeviceToken: "tok-1"},
			{UserID: "g2", LocationID: 7, DeviceToken: ""},
			{UserID: "g3", LocationID: 7, DeviceToken: "tok-3"},
		},
	}
}

func TestBuildDirtyAlert(t *testing.T) {
	title, body := DirtyAlert(7, 3)
	req := BuildDirtyAlert(event(), title, body)

	require.Len(t, req.Entries, 2, "guardians without a device token are skipped")
	assert.Equal(t, "tok-1", req.Entries[0].Token)
	assert.Equal(t, "tok-3", req.Entries[1].Token)
	assert.Equal(t, title, req.Entries[0].Title)
	assert.Contains(t, req.Entries[0].Body, "location #7")
	assert.Equal(t, map[string]string{
		"type":               "dirty_confirmed",
		"location_id":        "7",
		"consensus_event_id": "42",
	}, req.Entries[1].Metadata)
}

func TestNotifyDirty(t *testing.T) {
	ctx := context.Background()

	pub := &fakePublisher{}
	require.NoError(t, NewFanout(pub).NotifyDirty(ctx, event(), "t", "b"))
	require.Len(t, pub.messages, 1, "one request per event")
	assert.Len(t, pub.messages[0].(Request).Entries, 2)

	pub = &fakePublisher{}
	require.NoError(t, NewFanout(pub).NotifyDirty(ctx, &model.ConsensusEvent{ID: 1, LocationID: 2}, "t", "b"))
	assert.Empty(t, pub.messages, "nothing to publish without guardians")

	pub = &fakePublisher{err: errors.New("channel closed")}
	err := NewFanout(pub).NotifyDirty(ctx, event(), "t", "b")
	assert.ErrorContains(t, err, "channel closed")

	assert.NoError(t, NewFanout(nil).NotifyDirty(ctx, event(), "t", "b"))
}
