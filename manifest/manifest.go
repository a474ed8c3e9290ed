package manifest

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/zip"
)

const (
	manifestEntry    = "manifest.json"
	defaultOverrides = "overrides"
)

// Manifest is the declarative part of a modpack archive.
type Manifest struct {
	Minecraft struct {
		Version    string      `json:"version"`
		ModLoaders []ModLoader `json:"modLoaders"`
	} `json:"minecraft"`
	ManifestType    string    `json:"manifestType"`
	ManifestVersion int       `json:"manifestVersion"`
	Name            string    `json:"name"`
	Version         string    `json:"version"`
	Author          string    `json:"author"`
	Files           []FileRef `json:"files"`
	Overrides       string    `json:"overrides"`
}

// ModLoader is e.g. {"id": "forge-47.2.0", "primary": true}.
type ModLoader struct {
	ID      string `json:"id"`
	Primary bool   `json:"primary"`
}

// FileRef is one declared mod file.
type FileRef struct {
	ProjectID int  `json:"projectID"`
	FileID    int  `json:"fileID"`
	Required  bool `json:"required"`
}

// PrimaryLoader returns the primary modloader id, or the first one.
func (m *Manifest) PrimaryLoader() string {
	for _, l := range m.Minecraft.ModLoaders {
		if l.Primary {
			return l.ID
		}
	}
	if len(m.Minecraft.ModLoaders) > 0 {
		return m.Minecraft.ModLoaders[0].ID
	}
	return ""
}

// OverridesDir returns the archive directory that holds bundled files.
func (m *Manifest) OverridesDir() string {
	dir := strings.Trim(m.Overrides, "/")
	if dir == "" {
		return defaultOverrides
	}
	return dir
}

// FileIDs returns the declared file ids without duplicates, in manifest order.
func (m *Manifest) FileIDs() []int {
	seen := make(map[int]struct{}, len(m.Files))
	ids := make([]int, 0, len(m.Files))
	for _, f := range m.Files {
		if _, ok := seen[f.FileID]; ok {
			continue
		}
		seen[f.FileID] = struct{}{}
		ids = append(ids, f.FileID)
	}
	return ids
}

// Parse decodes a manifest document.
func Parse(r io.Reader) (*Manifest, error) {
	var m Manifest
	if err := json.NewDecoder(r).Decode(&m); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", manifestEntry, err)
	}
	if m.Minecraft.Version == "" {
		return nil, fmt.Errorf("%s declares no minecraft version", manifestEntry)
	}
	return &m, nil
}

// ReadFromArchive finds and parses the manifest at the archive root.
func ReadFromArchive(zr *zip.Reader) (*Manifest, error) {
	for _, f := range zr.File {
		if normalizeName(f.Name) != manifestEntry {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", manifestEntry, err)
		}
		defer rc.Close()
		return Parse(rc)
	}
	return nil, fmt.Errorf("%s not found in archive", manifestEntry)
}

func normalizeName(name string) string {
	return strings.TrimPrefix(strings.ReplaceAll(name, "\\", "/"), "./")
}
