package memory

import (
	"testing"

	"utbk-exam-service/internal/app"
)

func TestSessionStoreLifecycle(t *testing.T) {
	store := NewSessionStore()

	session := &app.Session{}
	store.Put("UTBK-X1", session)
	if got, ok := store.Get("UTBK-X1"); !ok || got != session {
		t.Fatalf("expected stored session back, got %v ok=%v", got, ok)
	}

	store.Delete("UTBK-X1")
	if _, ok := store.Get("UTBK-X1"); ok {
		t.Fatalf("expected session removed")
	}
}
