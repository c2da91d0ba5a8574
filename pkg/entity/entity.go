package entity

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"time"
)

// StateChange represents a single observed state transition of an entity.
// Timestamp is the instant the state became effective.
type StateChange struct {
	EntityID   string            `json:"entity_id"`
	State      string            `json:"state"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
}

var (
	ErrMissingEntityID  = errors.New("state change has no entity id")
	ErrMissingTimestamp = errors.New("state change has no timestamp")
)

// Validate checks that a state change can be stored.
// The state string itself is not validated here: non-numeric states are
// legal to store and only get filtered when building chart samples.
func (s StateChange) Validate() error {
	if strings.TrimSpace(s.EntityID) == "" {
		return ErrMissingEntityID
	}
	if s.Timestamp.IsZero() {
		return ErrMissingTimestamp
	}
	return nil
}

// Binary states reported by switches, binary sensors, presence trackers.
// Mapped to 1/0 so they can be charted alongside numeric sensors.
var binaryStates = map[string]float64{
	"on":     1,
	"true":   1,
	"open":   1,
	"home":   1,
	"off":    0,
	"false":  0,
	"closed": 0,
	"away":   0,
}

// ParseState coerces a raw state string to a chartable number.
// "on"-like states map to 1, "off"-like states to 0, everything else is
// parsed as a float. Returns ok=false for unparseable or non-finite states
// ("unavailable", "unknown", free text); those are dropped, not charted as 0.
func ParseState(state string) (float64, bool) {
	s := strings.ToLower(strings.TrimSpace(state))
	if v, ok := binaryStates[s]; ok {
		return v, true
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
