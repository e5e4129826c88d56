package ratelimit

import (
	"sync"
	"testing"
)

func TestCheck_RoomSizeGateBlocksSilentlyWithoutCounting(t *testing.T) {
	l := New(0, 5)
	if got := l.Check(6, "@alice:example.org"); got != BlockSilent {
		t.Fatalf("unexpected decision: %v", got)
	}
	if count := l.Count("@alice:example.org"); count != 0 {
		t.Fatalf("expected counter untouched, got %d", count)
	}
	// At the limit is still fine; only over the limit blocks.
	if got := l.Check(5, "@alice:example.org"); got != Allow {
		t.Fatalf("unexpected decision at limit: %v", got)
	}
}

func TestCheck_MessageLimitNotifiesEachBreach(t *testing.T) {
	l := New(2, 0)
	for i := 0; i < 2; i++ {
		if got := l.Check(2, "@alice:example.org"); got != Allow {
			t.Fatalf("unexpected decision on message %d: %v", i+1, got)
		}
	}
	if got := l.Check(2, "@alice:example.org"); got != BlockNotify {
		t.Fatalf("unexpected decision on 3rd message: %v", got)
	}
	if got := l.Check(2, "@alice:example.org"); got != BlockNotify {
		t.Fatalf("unexpected decision on 4th message: %v", got)
	}
	if count := l.Count("@alice:example.org"); count != 2 {
		t.Fatalf("expected count pinned at the limit, got %d", count)
	}

	// Other senders are unaffected.
	if got := l.Check(2, "@bob:example.org"); got != Allow {
		t.Fatalf("unexpected decision for other sender: %v", got)
	}
}

func TestCheck_SizeGateRunsBeforeCounter(t *testing.T) {
	l := New(2, 5)
	l.Check(2, "@alice:example.org")
	l.Check(2, "@alice:example.org")
	// Over the room size limit: silent, even though the sender is also
	// over the message limit.
	if got := l.Check(6, "@alice:example.org"); got != BlockSilent {
		t.Fatalf("unexpected decision: %v", got)
	}
}

func TestCheck_UnboundedDefaults(t *testing.T) {
	l := New(0, 0)
	for i := 0; i < 100; i++ {
		if got := l.Check(1000, "@alice:example.org"); got != Allow {
			t.Fatalf("unexpected decision on message %d: %v", i+1, got)
		}
	}
}

func TestCheck_ConcurrentSenders(t *testing.T) {
	l := New(0, 0)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				l.Check(2, "@alice:example.org")
			}
		}()
	}
	wg.Wait()
	if count := l.Count("@alice:example.org"); count != 800 {
		t.Fatalf("unexpected count: %d", count)
	}
}
