package gameruntime

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
)

// safeJoin resolves rel under base and rejects paths that escape it.
func safeJoin(base, rel string) (string, error) {
	absBase, err := filepath.Abs(base)
	if err != nil {
		return "", fmt.Errorf("failed to resolve base path: %w", err)
	}
	target := filepath.Join(absBase, filepath.FromSlash(rel))
	if target != absBase && !strings.HasPrefix(target, absBase+string(os.PathSeparator)) {
		return "", fmt.Errorf("path traversal attempt detected: %s", rel)
	}
	return target, nil
}

// extractOverrides copies every entry below prefix/ into dir and returns the
// number of files written. Entries under mods/ go to modsDir instead. Folder
// names are matched case-insensitively; files keep the entry's own spelling.
func extractOverrides(zr *zip.Reader, prefix, dir, modsDir string) (int, error) {
	prefix = strings.Trim(prefix, "/") + "/"
	written := 0
	for _, f := range zr.File {
		name := strings.TrimPrefix(strings.ReplaceAll(f.Name, "\\", "/"), "./")
		rel, ok := trimPrefixFold(name, prefix)
		if !ok || rel == "" {
			continue
		}

		base := dir
		if modRel, ok := trimPrefixFold(rel, "mods/"); ok {
			base, rel = modsDir, modRel
			if rel == "" {
				continue
			}
		}

		target, err := safeJoin(base, rel)
		if err != nil {
			return written, err
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return written, err
			}
			continue
		}
		if err := writeEntry(f, target); err != nil {
			return written, fmt.Errorf("failed to extract %s: %w", name, err)
		}
		written++
	}
	return written, nil
}

func trimPrefixFold(s, prefix string) (string, bool) {
	if len(s) < len(prefix) || !strings.EqualFold(s[:len(prefix)], prefix) {
		return s, false
	}
	return s[len(prefix):], true
}

func writeEntry(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
