package catalog

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"luminakraft-launcher/model"
)

const sampleYAML = `
modpacks:
  - id: cobblemon
    name: Cobblemon Adventures
    version: 1.2.0
    minecraftVersion: 1.20.1
    modloader: fabric
    modloaderVersion: 0.15.11
    archiveUrl: https://cdn.example.net/cobblemon-1.2.0.zip
  - id: survival
    name: Vanilla Survival
    version: 1.21
    minecraftVersion: 1.21
    modloader: paper
    ip: play.example.net
`

func TestParseYAML(t *testing.T) {
	c, err := Parse([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	d, err := c.Get("cobblemon")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !d.HasArchive() || d.Version != "1.2.0" || d.Modloader != "fabric" {
		t.Errorf("unexpected descriptor %+v", d)
	}

	s, _ := c.Get("survival")
	if s.HasArchive() || s.ServerIP != "play.example.net" {
		t.Errorf("connect-only entry parsed as %+v", s)
	}

	if got := c.List(); len(got) != 2 || got[0].ID != "cobblemon" {
		t.Errorf("List() = %+v", got)
	}
}

func TestParseJSON(t *testing.T) {
	c, err := Parse([]byte(`{"modpacks":[{"id":"a","version":"1.0.0","archiveUrl":"https://x/a.zip"}]}`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if _, err := c.Get("a"); err != nil {
		t.Errorf("Get() error = %v", err)
	}
}

func TestGetUnknown(t *testing.T) {
	c, _ := New(nil)
	if _, err := c.Get("nope"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("Get() error = %v, want NotFound", err)
	}
}

func TestNewRejectsDuplicates(t *testing.T) {
	_, err := New([]model.ModpackDescriptor{{ID: "a"}, {ID: "a"}})
	if err == nil {
		t.Error("expected duplicate id error")
	}
}

func TestLoadFromFileAndURL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(context.Background(), path); err != nil {
		t.Errorf("Load(file) error = %v", err)
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleYAML))
	}))
	defer server.Close()
	c, err := Load(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Load(url) error = %v", err)
	}
	if len(c.List()) != 2 {
		t.Errorf("List() = %d entries, want 2", len(c.List()))
	}

	if _, err := Load(context.Background(), ""); err == nil {
		t.Error("Load(\"\") should fail")
	}
}
