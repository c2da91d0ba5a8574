package entity

import (
	"testing"
	"time"
)

func TestParseState(t *testing.T) {
	tests := []struct {
		state    string
		expected float64
		ok       bool
	}{
		{"on", 1, true},
		{"off", 0, true},
		{"ON", 1, true},
		{" Off ", 0, true},
		{"open", 1, true},
		{"closed", 0, true},
		{"home", 1, true},
		{"away", 0, true},
		{"21.5", 21.5, true},
		{"-3", -3, true},
		{"0", 0, true},
		{"1e3", 1000, true},
		{"unavailable", 0, false},
		{"unknown", 0, false},
		{"", 0, false},
		{"cloudy", 0, false},
		{"NaN", 0, false},
		{"+Inf", 0, false},
	}

	for _, test := range tests {
		value, ok := ParseState(test.state)
		if ok != test.ok {
			t.Errorf("ParseState(%q): expected ok=%v, got %v", test.state, test.ok, ok)
			continue
		}
		if ok && value != test.expected {
			t.Errorf("ParseState(%q) = %v, expected %v", test.state, value, test.expected)
		}
	}
}

func TestStateChangeValidate(t *testing.T) {
	valid := StateChange{
		EntityID:  "sensor.living_room_temp",
		State:     "21.5",
		Timestamp: time.Now(),
	}
	if err := valid.Validate(); err != nil {
		t.Errorf("valid state change rejected: %v", err)
	}

	missingID := valid
	missingID.EntityID = "  "
	if err := missingID.Validate(); err != ErrMissingEntityID {
		t.Errorf("expected ErrMissingEntityID, got %v", err)
	}

	missingTS := valid
	missingTS.Timestamp = time.Time{}
	if err := missingTS.Validate(); err != ErrMissingTimestamp {
		t.Errorf("expected ErrMissingTimestamp, got %v", err)
	}
}
