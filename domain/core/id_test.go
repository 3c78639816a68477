package core

import (
	"errors"
	"testing"
)

// TestNewIDUniqueness tests that NewID generates unique identifiers
func TestNewIDUniqueness(t *testing.T) {
	const numIDs = 10000

	ids := make(map[ID]bool, numIDs)
	for i := 0; i < numIDs; i++ {
		id := NewID()
		if id.IsEmpty() {
			t.Errorf("Generated empty ID at iteration %d", i)
		}
		if ids[id] {
			t.Errorf("Generated duplicate ID: %s", id)
		}
		ids[id] = true
	}

	if len(ids) != numIDs {
		t.Errorf("Expected %d unique IDs, got %d", numIDs, len(ids))
	}
}

// TestIDIsEmpty tests ID emptiness check
func TestIDIsEmpty(t *testing.T) {
	if !ID("").IsEmpty() {
		t.Error("Expected empty ID to be empty")
	}
	if ID("not-empty").IsEmpty() {
		t.Error("Expected non-empty ID to not be empty")
	}
}

// TestParseRunID tests run ID parsing
func TestParseRunID(t *testing.T) {
	valid := NewRunID().String()

	tests := []struct {
		input    string
		expected RunID
		hasError bool
	}{
		{valid, RunID(valid), false},
		{"  " + valid + " ", RunID(valid), false},
		{"run-123", "", true},
		{"", "", true},
	}

	for _, test := range tests {
		result, err := ParseRunID(test.input)
		if test.hasError && err == nil {
			t.Errorf("Expected error for input '%s', but got none", test.input)
		}
		if !test.hasError && err != nil {
			t.Errorf("Unexpected error for input '%s': %v", test.input, err)
		}
		if result != test.expected {
			t.Errorf("Expected %s, got %s", test.expected, result)
		}
	}
}

func TestPreconditionErrors(t *testing.T) {
	tests := []struct {
		err      error
		sentinel error
	}{
		{&InvalidIntensityError{Intensity: 1.5}, ErrInvalidIntensity},
		{NewDimensionMismatch("gl", "missing column %s", "A/E1"), ErrDimensionMismatch},
		{&InconsistentMappingError{Environment: "E1", Regions: []string{"R1", "R2"}}, ErrInconsistentMapping},
		{&EmptyDesignError{}, ErrEmptyDesign},
	}

	for _, test := range tests {
		if !errors.Is(test.err, test.sentinel) {
			t.Errorf("Expected %q to match sentinel %q", test.err, test.sentinel)
		}
		if !IsPreconditionError(test.err) {
			t.Errorf("Expected %q to be a precondition error", test.err)
		}
	}

	if IsPreconditionError(ErrRunNotFound) {
		t.Error("Expected not-found error to not be a precondition error")
	}
}

func TestComputeInputHashIsOrderInsensitive(t *testing.T) {
	params := map[string]interface{}{"intensity": 0.2, "increase": true}
	a := ComputeInputHash([][]string{{"A", "B", "C"}, {"E1", "E2"}}, params)
	b := ComputeInputHash([][]string{{"C", "A", "B"}, {"E2", "E1"}}, params)
	if a != b {
		t.Errorf("Expected identical hashes, got %s and %s", a, b)
	}

	c := ComputeInputHash([][]string{{"A", "B", "C"}, {"E1", "E2"}}, map[string]interface{}{"intensity": 0.3, "increase": true})
	if a == c {
		t.Error("Expected different params to change the hash")
	}
}
