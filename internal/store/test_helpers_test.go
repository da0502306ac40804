package store

import (
	"context"
	"path/filepath"
	"testing"
)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestUnit writes a unit with the given hash and returns it.
func createTestUnit(t *testing.T, s *Store, hash string, seq int64) Unit {
	t.Helper()
	u := Unit{
		Hash:     hash,
		Protocol: "Counter",
		Version:  "1.0",
		Document: `{"protocol":"Counter"}`,
		Seq:      seq,
	}
	if err := s.WriteUnit(context.Background(), u); err != nil {
		t.Fatalf("WriteUnit() failed: %v", err)
	}
	return u
}

// createTestInvocation creates a successful invocation with minimal required fields.
func createTestInvocation(id, unitHash, method string, seq int64) Invocation {
	return Invocation{
		ID:            id,
		Seq:           seq,
		UnitHash:      unitHash,
		Method:        method,
		Args:          []string{},
		Ctx:           map[string]string{},
		Status:        StatusOK,
		Result:        "ok",
		EngineVersion: "0.1.0",
		IRVersion:     "1",
	}
}
