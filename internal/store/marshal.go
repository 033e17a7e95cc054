package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/intents/internal/canon"
	"github.com/roach88/intents/internal/intent"
	"github.com/roach88/intents/internal/settlement"
	"github.com/roach88/intents/internal/world"
)

// marshalIntent converts an intent to canonical JSON TEXT for storage.
func marshalIntent(in intent.Intent) (string, error) {
	data, err := canon.Marshal(in)
	if err != nil {
		return "", fmt.Errorf("marshal intent: %w", err)
	}
	return string(data), nil
}

// marshalOutcome converts an outcome to canonical JSON TEXT for storage.
func marshalOutcome(out settlement.Outcome) (string, error) {
	data, err := canon.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("marshal outcome: %w", err)
	}
	return string(data), nil
}

// marshalState converts a state to canonical JSON TEXT for storage.
func marshalState(st *world.State) (string, error) {
	data, err := canon.Marshal(st)
	if err != nil {
		return "", fmt.Errorf("marshal state: %w", err)
	}
	return string(data), nil
}

func unmarshalIntent(data string) (intent.Intent, error) {
	var in intent.Intent
	if err := json.Unmarshal([]byte(data), &in); err != nil {
		return intent.Intent{}, fmt.Errorf("unmarshal intent: %w", err)
	}
	return in, nil
}

func unmarshalOutcome(data string) (settlement.Outcome, error) {
	var out settlement.Outcome
	if err := json.Unmarshal([]byte(data), &out); err != nil {
		return settlement.Outcome{}, fmt.Errorf("unmarshal outcome: %w", err)
	}
	return out, nil
}

// unmarshalState parses a stored state. world.State rebuilds its indexes
// while decoding.
func unmarshalState(data string) (*world.State, error) {
	var st world.State
	if err := json.Unmarshal([]byte(data), &st); err != nil {
		return nil, fmt.Errorf("unmarshal state: %w", err)
	}
	return &st, nil
}
