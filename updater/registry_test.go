package updater

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestListReleases(t *testing.T) {
	var gotPath, gotAgent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAgent = r.Header.Get("User-Agent")
		w.Write([]byte(`[
			{"tag_name":"v2.2.0-alpha.1","draft":true},
			{"tag_name":"v2.1.0-beta.3","prerelease":true,"html_url":"https://github.com/o/r/releases/tag/v2.1.0-beta.3"},
			{"tag_name":"v2.0.0","prerelease":false}
		]`))
	}))
	defer server.Close()

	c := NewRegistryClient("LuminaKraft/LuminaKraftLauncher", "luminakraft-launcher/test", nil)
	c.BaseURL = server.URL

	releases, err := c.ListReleases(context.Background())
	if err != nil {
		t.Fatalf("ListReleases() error = %v", err)
	}
	if gotPath != "/repos/LuminaKraft/LuminaKraftLauncher/releases" || gotAgent != "luminakraft-launcher/test" {
		t.Errorf("request path=%s agent=%s", gotPath, gotAgent)
	}
	if len(releases) != 2 || releases[0].TagName != "v2.1.0-beta.3" || !releases[0].Prerelease {
		t.Errorf("releases = %+v", releases)
	}
}

func TestListReleasesHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	c := NewRegistryClient("o/r", "ua", nil)
	c.BaseURL = server.URL
	if _, err := c.ListReleases(context.Background()); err == nil {
		t.Error("expected error on HTTP 403")
	}
}
