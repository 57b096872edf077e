package session

import (
	"testing"
	"time"
)

func TestCreateAndGet(t *testing.T) {
	m := NewManager(time.Minute)
	created := m.Create("cust-1", "rachel")
	if created.ID == "" {
		t.Fatal("session ID is empty")
	}
	if created.Status != StatusActive {
		t.Fatalf("Status = %v, want %v", created.Status, StatusActive)
	}

	got, ok := m.Get(created.ID)
	if !ok {
		t.Fatal("Get returned false for known session")
	}
	if got.CustomerID != "cust-1" || got.VoiceKey != "rachel" {
		t.Fatalf("got = %+v", got)
	}
}

func TestEndIsIdempotent(t *testing.T) {
	m := NewManager(time.Minute)
	s := m.Create("cust-1", "rachel")

	ended, ok := m.End(s.ID)
	if !ok || ended.Status != StatusEnded {
		t.Fatalf("End = %+v, %v", ended, ok)
	}
	firstEnd := ended.EndedAt

	again, _ := m.End(s.ID)
	if !again.EndedAt.Equal(firstEnd) {
		t.Fatalf("EndedAt changed on second End: %v vs %v", again.EndedAt, firstEnd)
	}
	if m.ActiveCount() != 0 {
		t.Fatalf("ActiveCount = %d, want 0", m.ActiveCount())
	}
}

func TestJanitorExpiresIdleSessions(t *testing.T) {
	m := NewManager(time.Minute)
	var expired []Session
	m.SetExpireHook(func(s Session) { expired = append(expired, s) })

	s := m.Create("cust-1", "rachel")
	fresh := m.Create("cust-2", "adam")

	base := time.Now()
	m.now = func() time.Time { return base.Add(2 * time.Minute) }
	m.Touch(fresh.ID)
	m.expireIdle()

	got, _ := m.Get(s.ID)
	if got.Status != StatusEnded {
		t.Fatalf("idle session status = %v, want ended", got.Status)
	}
	live, _ := m.Get(fresh.ID)
	if live.Status != StatusActive {
		t.Fatalf("touched session status = %v, want active", live.Status)
	}
	if len(expired) != 1 || expired[0].ID != s.ID {
		t.Fatalf("expire hook calls = %+v", expired)
	}
}

func TestSetVoice(t *testing.T) {
	m := NewManager(time.Minute)
	s := m.Create("cust-1", "rachel")
	m.SetVoice(s.ID, "josh")
	got, _ := m.Get(s.ID)
	if got.VoiceKey != "josh" {
		t.Fatalf("VoiceKey = %q, want josh", got.VoiceKey)
	}
}
