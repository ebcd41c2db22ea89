package cache

import (
	"testing"
	"time"
)

func newTestStore(cfg Config) *Store {
	s := NewStore(cfg)
	return s
}

func TestStorePutGetRoundTrip(t *testing.T) {
	s := newTestStore(DefaultConfig())
	content := []byte(`{"hello":"world"}`)

	handle, err := s.Put("agent_1", content, "fs_read_file", `{"path":"/x"}`)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	entry, err := s.Get(handle)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(entry.Content) != string(content) {
		t.Fatalf("content mismatch: got %q", entry.Content)
	}
	if entry.SizeBytes != int64(len(content)) {
		t.Fatalf("SizeBytes = %d, want %d", entry.SizeBytes, len(content))
	}
	if entry.AccessCount != 1 {
		t.Fatalf("AccessCount = %d, want 1", entry.AccessCount)
	}
}

func TestStoreGetMiss(t *testing.T) {
	s := newTestStore(DefaultConfig())
	if _, err := s.Get("agent_1:doesnotexist"); err != ErrMiss {
		t.Fatalf("Get() error = %v, want ErrMiss", err)
	}
}

func TestStoreExpiry(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TTL = 10 * time.Millisecond
	s := newTestStore(cfg)

	handle, err := s.Put("agent_1", []byte("x"), "t", "{}")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	fakeNow := time.Now().Add(50 * time.Millisecond)
	s.now = func() time.Time { return fakeNow }

	if _, err := s.Get(handle); err != ErrExpired {
		t.Fatalf("Get() error = %v, want ErrExpired", err)
	}
	// Second lookup after removal-on-expiry should be a miss.
	if _, err := s.Get(handle); err != ErrMiss {
		t.Fatalf("Get() after expiry error = %v, want ErrMiss", err)
	}
}

func TestStoreEvictionRespectsEntryCap(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxEntriesPerAgent = 3
	cfg.MaxBytesPerAgent = 1 << 30
	s := newTestStore(cfg)

	// Advance the clock between puts so each entry's idle time is distinct
	// and the size-aware-LRU victim order is deterministic.
	base := time.Now()
	var handles []string
	for i := 0; i < 10; i++ {
		tick := base.Add(time.Duration(i) * time.Second)
		s.now = func() time.Time { return tick }
		h, err := s.Put("agent_1", []byte("payload"), "t", "{}")
		if err != nil {
			t.Fatalf("Put %d: %v", i, err)
		}
		handles = append(handles, h)
	}

	stats := s.Stats()
	if stats.EntryCount > cfg.MaxEntriesPerAgent {
		t.Fatalf("EntryCount = %d, want <= %d", stats.EntryCount, cfg.MaxEntriesPerAgent)
	}

	// The earliest-inserted handles should have been evicted.
	if _, err := s.Get(handles[0]); err != ErrMiss {
		t.Fatalf("expected oldest entry evicted, got err=%v", err)
	}
	// The most recent should still be present.
	if _, err := s.Get(handles[len(handles)-1]); err != nil {
		t.Fatalf("expected newest entry present, got err=%v", err)
	}
}

func TestStoreEvictionRespectsByteCap(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxEntriesPerAgent = 1000
	cfg.MaxBytesPerAgent = 30
	s := newTestStore(cfg)

	for i := 0; i < 10; i++ {
		if _, err := s.Put("agent_1", []byte("0123456789"), "t", "{}"); err != nil {
			t.Fatalf("Put %d: %v", i, err)
		}
	}

	stats := s.Stats()
	if stats.TotalBytes > cfg.MaxBytesPerAgent {
		t.Fatalf("TotalBytes = %d, want <= %d", stats.TotalBytes, cfg.MaxBytesPerAgent)
	}
}

func TestStoreTooManyAgents(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxAgents = 1
	s := newTestStore(cfg)

	if _, err := s.Put("agent_1", []byte("x"), "t", "{}"); err != nil {
		t.Fatalf("Put agent_1: %v", err)
	}
	if _, err := s.Put("agent_2", []byte("x"), "t", "{}"); err != ErrTooManyAgents {
		t.Fatalf("Put agent_2 error = %v, want ErrTooManyAgents", err)
	}
}

func TestStoreClearAgentIsolatesOtherAgents(t *testing.T) {
	s := newTestStore(DefaultConfig())
	h1, _ := s.Put("agent_1", []byte("a"), "t", "{}")
	h2, _ := s.Put("agent_2", []byte("b"), "t", "{}")

	s.ClearAgent("agent_1")

	if _, err := s.Get(h1); err != ErrMiss {
		t.Fatalf("agent_1 entry should be gone, err=%v", err)
	}
	if _, err := s.Get(h2); err != nil {
		t.Fatalf("agent_2 entry should survive, err=%v", err)
	}
}

func TestStoreRemoveDeletesEntry(t *testing.T) {
	s := newTestStore(DefaultConfig())
	h, _ := s.Put("agent_1", []byte("x"), "t", "{}")

	if err := s.Remove(h); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := s.Get(h); err != ErrMiss {
		t.Fatalf("Get() after Remove error = %v, want ErrMiss", err)
	}
	// Removing an absent handle is not an error.
	if err := s.Remove(h); err != nil {
		t.Fatalf("second Remove: %v", err)
	}
}

func TestStoreClearAllEmptiesEveryAgent(t *testing.T) {
	s := newTestStore(DefaultConfig())
	_, _ = s.Put("agent_1", []byte("a"), "t", "{}")
	_, _ = s.Put("agent_2", []byte("b"), "t", "{}")

	s.ClearAll()

	stats := s.Stats()
	if stats.AgentCount != 0 || stats.EntryCount != 0 || stats.TotalBytes != 0 {
		t.Fatalf("Stats() after ClearAll = %+v, want everything zero", stats)
	}
}

func TestPickVictimPrefersIdleLargeEntry(t *testing.T) {
	now := int64(100_000)
	entries := map[string]*Entry{
		"small-cold": {ID: "small-cold", SizeBytes: 10, LastAccessedMs: now - 1000},
		"big-hot":    {ID: "big-hot", SizeBytes: 1000, LastAccessedMs: now - 10},
		"big-cold":   {ID: "big-cold", SizeBytes: 1000, LastAccessedMs: now - 1000},
	}
	victim, ok := pickVictim(entries, now)
	if !ok {
		t.Fatalf("expected a victim")
	}
	if victim.ID != "big-cold" {
		t.Fatalf("victim = %q, want big-cold", victim.ID)
	}
}
