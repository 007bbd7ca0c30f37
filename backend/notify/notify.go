// Package notify builds guardian fan-out requests and hands them to the
// push transport.
package notify

import (
	"context"
	"fmt"
	"strconv"

	"cleanproof/backend/metrics"
	"cleanproof/backend/model"

	"github.com/apex/log"
)

// Entry is one push message for one device.
type Entry struct {
	Token    string            `json:"token"`
	Title    string            `json:"title"`
	Body     string            `json:"body"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Request is the single message published per consensus event.
type Request struct {
	Entries []Entry `json:"entries"`
}

type Publisher interface {
	Publish(ctx context.Context, message interface{}) error
}

// DirtyAlert returns the title and body shown to guardians of a location
// that has just been confirmed dirty.
func DirtyAlert(locationID int64, reporters int) (string, string) {
	return "Location needs cleaning",
		fmt.Sprintf("%d people reported that location #%d is dirty again.", reporters, locationID)
}

// BuildDirtyAlert has one entry per guardian of the event's location.
func BuildDirtyAlert(ev *model.ConsensusEvent, title, body string) Request {
	req := Request{Entries: make([]Entry, 0, len(ev.Guardians))}
	for _, g := range ev.Guardians {
		if g.DeviceToken == "" {
			continue
		}
		req.Entries = append(req.Entries, Entry{
			Token: g.DeviceToken,
			Title: title,
			Body:  body,
			Metadata: map[string]string{
				"type":               "dirty_confirmed",
				"location_id":        strconv.FormatInt(ev.LocationID, 10),
				"consensus_event_id": strconv.FormatInt(ev.ID, 10),
			},
		})
	}
	return req
}

// Fanout sends consensus alerts. A nil publisher drops them.
type Fanout struct {
	publisher Publisher
}

func NewFanout(p Publisher) *Fanout {
	return &Fanout{publisher: p}
}

// NotifyDirty publishes one fan-out request for the event. Delivery is the
// transport's concern, so the only failure is not being able to publish.
func (f *Fanout) NotifyDirty(ctx context.Context, ev *model.ConsensusEvent, title, body string) error {
	req := BuildDirtyAlert(ev, title, body)
	if len(req.Entries) == 0 {
		return nil
	}
	n := float64(len(req.Entries))

	if f.publisher == nil {
		log.Warnf("Fan-out transport not configured, dropping %d entries for location %d", len(req.Entries), ev.LocationID)
		metrics.FanoutEntries.WithLabelValues("dropped").Add(n)
		return nil
	}

	if err := f.publisher.Publish(ctx, req); err != nil {
		metrics.FanoutEntries.WithLabelValues("failed").Add(n)
		return fmt.Errorf("failed to publish fan-out for location %d: %w", ev.LocationID, err)
	}
	metrics.FanoutEntries.WithLabelValues("published").Add(n)
	log.Infof("Published %d guardian notifications for location %d", len(req.Entries), ev.LocationID)
	return nil
}
