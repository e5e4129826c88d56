package matrix

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/id"
)

var _ mautrix.SyncStore = (*sessionStore)(nil)

func TestSessionRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "session.json")

	s, err := loadSession(path)
	if err != nil || s != nil {
		t.Fatalf("missing file must yield no session: %+v err=%v", s, err)
	}

	want := &Session{
		Homeserver:  "https://matrix.example.org",
		UserID:      "@chaz:example.org",
		DeviceID:    "DEVICE",
		AccessToken: "syt_token",
	}
	if err := saveSession(path, want); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	got, err := loadSession(path)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if got == nil || *got != *want {
		t.Fatalf("unexpected session: %+v", got)
	}
}

func TestSessionWithoutCredentialsIgnored(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	if err := os.WriteFile(path, []byte(`{"homeserver":"https://m.example.org"}`), 0o600); err != nil {
		t.Fatal(err)
	}
	s, err := loadSession(path)
	if err != nil || s != nil {
		t.Fatalf("credential-less file must yield no session: %+v err=%v", s, err)
	}
}

func TestSessionStore_PersistsSyncToken(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.json")
	user := id.UserID("@chaz:example.org")
	store := &sessionStore{
		path:    path,
		session: &Session{UserID: user, AccessToken: "syt_token"},
	}

	if err := store.SaveNextBatch(ctx, user, "s123"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if token, err := store.LoadNextBatch(ctx, user); err != nil || token != "s123" {
		t.Fatalf("unexpected token: %q err=%v", token, err)
	}

	// A fresh load sees the persisted position.
	reloaded, err := loadSession(path)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if reloaded == nil || reloaded.SyncToken != "s123" {
		t.Fatalf("unexpected reloaded session: %+v", reloaded)
	}

	if err := store.SaveFilterID(ctx, user, "f1"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if filterID, err := store.LoadFilterID(ctx, user); err != nil || filterID != "f1" {
		t.Fatalf("unexpected filter id: %q err=%v", filterID, err)
	}
}
