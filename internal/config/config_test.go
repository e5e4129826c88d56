package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazbot/chaz/internal/role"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
homeserver_url: https://matrix.example.org
username: chaz
allow_list: "@.*:example\\.org"
message_limit: 100
room_size_limit: 5
role: cave-chaz
roles:
  - name: pirate
    prompt: "You are a pirate."
backends:
  - type: openaicompatible
    name: local
    api_base: http://localhost:8080/v1
    api_key: secret
    models:
      - name: llama3
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if cfg.HomeserverURL != "https://matrix.example.org" || cfg.Username != "chaz" {
		t.Fatalf("unexpected identity: %+v", cfg)
	}
	if cfg.MessageLimit != 100 || cfg.RoomSizeLimit != 5 {
		t.Fatalf("unexpected limits: %+v", cfg)
	}
	if len(cfg.Roles) != 1 || cfg.Roles[0].Name != "pirate" {
		t.Fatalf("unexpected roles: %+v", cfg.Roles)
	}
	if len(cfg.Backends) != 1 || cfg.Backends[0].Name != "local" {
		t.Fatalf("unexpected backends: %+v", cfg.Backends)
	}
	if len(cfg.Backends[0].Models) != 1 || cfg.Backends[0].Models[0].Name != "llama3" {
		t.Fatalf("unexpected models: %+v", cfg.Backends[0].Models)
	}
}

func TestLoad_RequiresIdentity(t *testing.T) {
	_, err := Load(writeConfig(t, "username: chaz\n"))
	if err == nil || !strings.Contains(err.Error(), "homeserver_url") {
		t.Fatalf("unexpected err: %v", err)
	}
	_, err = Load(writeConfig(t, "homeserver_url: https://m.example.org\n"))
	if err == nil || !strings.Contains(err.Error(), "username") {
		t.Fatalf("unexpected err: %v", err)
	}
}

func TestLoad_RejectsUnknownBackendType(t *testing.T) {
	path := writeConfig(t, `
homeserver_url: https://matrix.example.org
username: chaz
backends:
  - type: carrier-pigeon
    name: slow
`)
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "carrier-pigeon") {
		t.Fatalf("unexpected err: %v", err)
	}
}

func TestAllowListRegexp(t *testing.T) {
	cfg := &Config{}
	re, err := cfg.AllowListRegexp()
	if err != nil || re != nil {
		t.Fatalf("empty allow list: re=%v err=%v", re, err)
	}

	cfg.AllowList = `@.*:example\.org`
	re, err = cfg.AllowListRegexp()
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !re.MatchString("@alice:example.org") {
		t.Fatal("expected pattern to match")
	}

	cfg.AllowList = "("
	if _, err := cfg.AllowListRegexp(); err == nil {
		t.Fatal("expected compile error")
	}
}

func TestResolveStateDir(t *testing.T) {
	cfg := &Config{StateDir: "/var/lib/chaz"}
	dir, err := cfg.ResolveStateDir()
	if err != nil || dir != "/var/lib/chaz" {
		t.Fatalf("unexpected dir: %s err=%v", dir, err)
	}

	xdg := t.TempDir()
	t.Setenv("XDG_STATE_HOME", xdg)
	cfg.StateDir = ""
	dir, err = cfg.ResolveStateDir()
	if err != nil || dir != filepath.Join(xdg, "chaz") {
		t.Fatalf("unexpected xdg dir: %s err=%v", dir, err)
	}

	t.Setenv("XDG_STATE_HOME", "")
	home := t.TempDir()
	t.Setenv("HOME", home)
	dir, err = cfg.ResolveStateDir()
	if err != nil || dir != filepath.Join(home, ".local", "state", "chaz") {
		t.Fatalf("unexpected home dir: %s err=%v", dir, err)
	}

	cfg.StateDir = "~/chaz-state"
	dir, err = cfg.ResolveStateDir()
	if err != nil || dir != filepath.Join(home, "chaz-state") {
		t.Fatalf("unexpected expanded dir: %s err=%v", dir, err)
	}
}

func TestStatePaths(t *testing.T) {
	cfg := &Config{StateDir: "/var/lib/chaz"}
	db, err := cfg.DBPath()
	if err != nil || db != "/var/lib/chaz/tags.db" {
		t.Fatalf("unexpected db path: %s err=%v", db, err)
	}
	session, err := cfg.SessionFile()
	if err != nil || session != "/var/lib/chaz/session.json" {
		t.Fatalf("unexpected session path: %s err=%v", session, err)
	}

	cfg.DBPathOverride = "/data/chaz.db"
	db, err = cfg.DBPath()
	if err != nil || db != "/data/chaz.db" {
		t.Fatalf("unexpected overridden db path: %s err=%v", db, err)
	}
}

func TestDefaultRoles(t *testing.T) {
	roles := DefaultRoles()
	if len(roles) != 8 {
		t.Fatalf("unexpected role count: %d", len(roles))
	}
	d := role.Lookup("cave-chaz", nil, roles)
	if d == nil || !strings.Contains(d.Prompt, "cave man") {
		t.Fatalf("unexpected cave-chaz role: %+v", d)
	}
	if len(d.Example) != 2 || d.Example[1].Speaker != role.SpeakerAssistant {
		t.Fatalf("unexpected example: %+v", d.Example)
	}
	if role.Lookup("nope", nil, roles) != nil {
		t.Fatal("expected unknown role to be nil")
	}
}
