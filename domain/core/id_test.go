package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestNewIDUniqueness tests that NewID generates unique identifiers
func TestNewIDUniqueness(t *testing.T) {
	const numIDs = 5000

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
}

func TestIDIsEmpty(t *testing.T) {
	assert.True(t, ID("").IsEmpty())
	assert.True(t, ID("   ").IsEmpty())
	assert.False(t, ID("x").IsEmpty())
	assert.False(t, NewRunID().IsEmpty())
}

// TestParseRunID tests run ID parsing
func TestParseRunID(t *testing.T) {
	tests := []struct {
		input    string
		expected RunID
		hasError bool
	}{
		{"run-123", RunID("run-123"), false},
		{"", "", true},
		{"   ", "", true},
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

func TestComputeParamsHashIsOrderIndependent(t *testing.T) {
	a := map[string]interface{}{"n_estimators": 100, "max_depth": 5}
	b := map[string]interface{}{"max_depth": 5, "n_estimators": 100}
	assert.Equal(t, ComputeParamsHash(a), ComputeParamsHash(b))
	assert.NotEqual(t, ComputeParamsHash(a), ComputeParamsHash(map[string]interface{}{"max_depth": 6}))
	assert.Len(t, ComputeParamsHash(a).Short(), 12)
}

func TestErrorTaxonomy(t *testing.T) {
	err := NewUnknownArchitectureError("svm")
	assert.True(t, IsUnknownArchitectureError(err))
	assert.True(t, IsConfigurationError(err))
	assert.Contains(t, err.Error(), `"svm"`)

	cause := errors.New("boom")
	trialErr := NewTrialEvaluationError("xgboost", 3, cause)
	assert.True(t, IsTrialEvaluationError(trialErr))
	assert.ErrorIs(t, trialErr, cause)

	assert.True(t, IsNotFoundError(NewNotFoundError("run", "abc")))
	assert.True(t, IsNotFoundError(ErrRunNotFound))
	assert.True(t, IsDataError(NewDataError("dataset is empty")))
	assert.False(t, IsDataError(NewConfigurationError("x")))
}
