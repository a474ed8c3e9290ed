package catalog

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"luminakraft-launcher/model"

	"gopkg.in/yaml.v3"
)

const fetchTimeout = 15 * time.Second

// Catalog is an immutable set of modpack descriptors keyed by id.
type Catalog struct {
	entries map[string]model.ModpackDescriptor
}

type document struct {
	Modpacks []model.ModpackDescriptor `yaml:"modpacks"`
}

// New builds a catalog from descriptors; duplicate or empty ids are rejected.
func New(entries []model.ModpackDescriptor) (*Catalog, error) {
	c := &Catalog{entries: make(map[string]model.ModpackDescriptor, len(entries))}
	for _, e := range entries {
		if e.ID == "" {
			return nil, fmt.Errorf("catalog entry %q has no id", e.Name)
		}
		if _, dup := c.entries[e.ID]; dup {
			return nil, fmt.Errorf("duplicate catalog id %q", e.ID)
		}
		c.entries[e.ID] = e
	}
	return c, nil
}

// Parse decodes a YAML catalog. JSON input works as well since it is valid YAML.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	return New(doc.Modpacks)
}

// Load reads the catalog from a file path or an http(s) URL.
func Load(ctx context.Context, source string) (*Catalog, error) {
	if source == "" {
		return nil, fmt.Errorf("CATALOG_SOURCE is not configured")
	}

	var (
		data []byte
		err  error
	)
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		data, err = fetch(ctx, source)
	} else {
		data, err = os.ReadFile(source)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog from %s: %w", source, err)
	}
	return Parse(data)
}

func fetch(ctx context.Context, url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// Get returns the descriptor for id.
func (c *Catalog) Get(id string) (model.ModpackDescriptor, error) {
	d, ok := c.entries[id]
	if !ok {
		return model.ModpackDescriptor{}, model.NewError(model.KindNotFound, nil, "modpack %q is not in the catalog", id)
	}
	return d, nil
}

// List returns all descriptors sorted by id.
func (c *Catalog) List() []model.ModpackDescriptor {
	out := make([]model.ModpackDescriptor, 0, len(c.entries))
	for _, d := range c.entries {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
