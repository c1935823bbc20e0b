package core

import (
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

func TestRunIDNotEmpty(t *testing.T) {
	if NewRunID().String() == "" {
		t.Error("Expected non-empty run ID")
	}
}

func TestParseSubjectID(t *testing.T) {
	id, err := ParseSubjectID("sub-001")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if id.String() != "sub-001" {
		t.Errorf("Expected 'sub-001', got '%s'", id)
	}

	id, err = ParseSubjectID("  sub-002\n")
	if err != nil || id != "sub-002" {
		t.Errorf("Expected trimmed 'sub-002', got '%s' (%v)", id, err)
	}

	if _, err := ParseSubjectID("   "); err == nil {
		t.Error("Expected error for blank subject ID")
	}
}
