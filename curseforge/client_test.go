package curseforge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"luminakraft-launcher/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(config.Config{UserAgent: "test-agent", CurseForgeAPIKey: "key", CurseForgeAPIURL: server.URL})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return client
}

func TestNewClientRequiresUserAgent(t *testing.T) {
	if _, err := NewClient(config.Config{}); err == nil {
		t.Error("expected error without user agent")
	}
}

func TestResolveFiles(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/mods/files" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "key" {
			t.Errorf("missing api key header")
		}
		var body struct {
			FileIDs []int `json:"fileIds"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if len(body.FileIDs) != 2 {
			t.Errorf("fileIds = %v", body.FileIDs)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[
			{"id":11,"modId":1,"fileName":"a.jar","downloadUrl":"https://cdn/a.jar"},
			{"id":12,"modId":2,"fileName":"b.jar","downloadUrl":null}
		]}`))
	})

	files, err := client.ResolveFiles(context.Background(), []int{11, 12})
	if err != nil {
		t.Fatalf("ResolveFiles() error = %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("got %d files, want 2", len(files))
	}
	if files[0].URL() != "https://cdn/a.jar" {
		t.Errorf("files[0].URL() = %q", files[0].URL())
	}
	if files[1].URL() != "" {
		t.Errorf("files[1].URL() = %q, want empty for null downloadUrl", files[1].URL())
	}
}

func TestResolveModsRejectsOversizedBatch(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})

	ids := make([]int, MaxBatchSize+1)
	if _, err := client.ResolveMods(context.Background(), ids); err == nil {
		t.Error("expected error for oversized batch")
	}
}

func TestResolveModsHTTPError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	})

	if _, err := client.ResolveMods(context.Background(), []int{1}); err == nil {
		t.Error("expected error for 429 response")
	}
}

func TestBatches(t *testing.T) {
	ids := make([]int, 120)
	for i := range ids {
		ids[i] = i
	}

	batches := Batches(ids, MaxBatchSize)
	if len(batches) != 3 {
		t.Fatalf("got %d batches, want 3", len(batches))
	}
	sizes := []int{50, 50, 20}
	for i, b := range batches {
		if len(b) != sizes[i] {
			t.Errorf("batch %d size = %d, want %d", i, len(b), sizes[i])
		}
	}
	if batches[2][0] != 100 {
		t.Errorf("batch order broken, batches[2][0] = %d", batches[2][0])
	}

	if got := Batches(nil, MaxBatchSize); len(got) != 0 {
		t.Errorf("Batches(nil) = %v, want empty", got)
	}
}
