package amqp

import (
	"slices"
	"time"

	"github.com/goccy/go-json"
)

// SeriesRefreshMessage asks the refresh worker to re-download series.
// An empty SeriesIDs means "refresh everything the worker knows about".
type SeriesRefreshMessage struct {
	SeriesIDs []string  `json:"seriesIds"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewSeriesRefreshMessage creates a refresh request stamped with the current time.
func NewSeriesRefreshMessage(seriesIDs []string, reason string) *SeriesRefreshMessage {
	return &SeriesRefreshMessage{
		SeriesIDs: slices.Clone(seriesIDs),
		Reason:    reason,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *SeriesRefreshMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// SeriesRefreshMessageFromJSON creates a message from JSON bytes
func SeriesRefreshMessageFromJSON(data []byte) (*SeriesRefreshMessage, error) {
	var msg SeriesRefreshMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
