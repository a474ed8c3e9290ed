package manifest

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"luminakraft-launcher/curseforge"
	"luminakraft-launcher/model"

	"github.com/klauspost/compress/zip"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultTimeout bounds a whole validation, archive scan and metadata lookups included.
	DefaultTimeout = 60 * time.Second

	batchConcurrency = 4
)

// MetadataService resolves file and project metadata in batches of at most
// curseforge.MaxBatchSize ids.
type MetadataService interface {
	ResolveFiles(ctx context.Context, fileIDs []int) ([]curseforge.File, error)
	ResolveMods(ctx context.Context, modIDs []int) ([]curseforge.Mod, error)
}

// ModFileInfo is one declared mod file after metadata resolution.
type ModFileInfo struct {
	ID          int
	ModID       int
	FileName    string
	DownloadURL string // empty when the author disallows third-party downloads
	FileStatus  int
	Size        int64
	SHA1        string
	Slug        string
	WebsiteURL  string
	Resolved    bool // false when the metadata batch holding this file failed
}

// IsAvailable reports whether the file can be downloaded automatically.
func (m ModFileInfo) IsAvailable() bool {
	return m.DownloadURL != ""
}

// ValidationResult is the outcome of Validate.
type ValidationResult struct {
	Manifest *Manifest
	// Files holds every declared file in manifest order.
	Files []ModFileInfo
	// ModsWithoutURL are declared files that cannot be downloaded automatically, sorted by id.
	ModsWithoutURL []ModFileInfo
	// ModsInOverrides are lowercased file names bundled in the archive's override folders, sorted.
	ModsInOverrides []string
	// PartialFailure is set when some metadata batches failed; affected files count as unavailable.
	PartialFailure error
}

// TrulyMissing returns the files without URL that are not bundled as overrides either.
func (r *ValidationResult) TrulyMissing() []ModFileInfo {
	bundled := make(map[string]struct{}, len(r.ModsInOverrides))
	for _, name := range r.ModsInOverrides {
		bundled[name] = struct{}{}
	}

	var missing []ModFileInfo
	for _, m := range r.ModsWithoutURL {
		if _, ok := bundled[strings.ToLower(m.FileName)]; ok && m.FileName != "" {
			continue
		}
		missing = append(missing, m)
	}
	return missing
}

// CanContinue reports whether installation may proceed.
func (r *ValidationResult) CanContinue() bool {
	return len(r.TrulyMissing()) == 0
}

// Validator checks modpack archives against the metadata service.
type Validator struct {
	meta    MetadataService
	log     *zap.SugaredLogger
	timeout time.Duration
}

func NewValidator(meta MetadataService, log *zap.SugaredLogger, timeout time.Duration) *Validator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Validator{meta: meta, log: log, timeout: timeout}
}

type outcome struct {
	result *ValidationResult
	err    error
}

// Validate runs the validation on a dedicated worker goroutine. When the
// timeout elapses the worker's context is cancelled and a ValidationTimeout
// error is returned.
func (v *Validator) Validate(ctx context.Context, archivePath string) (*ValidationResult, error) {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	done := make(chan outcome, 1)
	go func() {
		res, err := v.validate(ctx, archivePath)
		done <- outcome{result: res, err: err}
	}()

	select {
	case o := <-done:
		return o.result, o.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, model.NewError(model.KindValidationTimeout, ctx.Err(), "validation of %s exceeded %s", path.Base(archivePath), v.timeout)
		}
		return nil, ctx.Err()
	}
}

func (v *Validator) validate(ctx context.Context, archivePath string) (*ValidationResult, error) {
	log := v.log.With(zap.String("archive", archivePath))

	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, model.NewError(model.KindInvalidArchive, err, "cannot open archive")
	}
	defer zr.Close()

	m, err := ReadFromArchive(&zr.Reader)
	if err != nil {
		return nil, model.NewError(model.KindInvalidArchive, err, "")
	}

	// Overrides are scanned first so the bundled set is complete before any
	// missing-mod decision is derived from the result.
	bundled, err := scanOverrides(ctx, &zr.Reader, m.OverridesDir())
	if err != nil {
		return nil, err
	}
	log.Infow("Scanned overrides", zap.Int("bundled_files", len(bundled)), zap.Int("declared_files", len(m.Files)))

	files, partial := v.resolveFiles(ctx, log, m.FileIDs())
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v.enrichMods(ctx, log, files)

	res := &ValidationResult{
		Manifest:        m,
		ModsInOverrides: bundled,
		PartialFailure:  partial,
	}
	for _, ref := range m.Files {
		info, ok := files[ref.FileID]
		if !ok {
			info = ModFileInfo{ID: ref.FileID, ModID: ref.ProjectID}
		}
		res.Files = append(res.Files, info)
		if !info.IsAvailable() {
			res.ModsWithoutURL = append(res.ModsWithoutURL, info)
		}
	}
	sort.Slice(res.ModsWithoutURL, func(i, j int) bool {
		return res.ModsWithoutURL[i].ID < res.ModsWithoutURL[j].ID
	})

	log.Infow("Validation finished",
		zap.Int("without_url", len(res.ModsWithoutURL)),
		zap.Int("truly_missing", len(res.TrulyMissing())),
	)
	return res, nil
}

// resolveFiles queries file metadata in independent batches. A failing batch
// is logged and skipped; its files stay unresolved.
func (v *Validator) resolveFiles(ctx context.Context, log *zap.SugaredLogger, ids []int) (map[int]ModFileInfo, error) {
	var (
		mu       sync.Mutex
		resolved = make(map[int]ModFileInfo, len(ids))
		failures []error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batchConcurrency)
	for i, batch := range curseforge.Batches(ids, curseforge.MaxBatchSize) {
		g.Go(func() error {
			records, err := v.meta.ResolveFiles(gctx, batch)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Warnw("File metadata batch failed, treating its files as unavailable",
					zap.Int("batch", i), zap.Int("size", len(batch)), zap.Error(err))
				failures = append(failures, err)
				return nil
			}
			for _, f := range records {
				resolved[f.ID] = fileInfo(f)
			}
			return nil
		})
	}
	_ = g.Wait()

	if len(failures) == 0 {
		return resolved, nil
	}
	return resolved, model.NewError(model.KindMetadataFetchPartialFailure, errors.Join(failures...), "%d metadata batches failed", len(failures))
}

// enrichMods adds slug and website of the owning projects. Best effort only.
func (v *Validator) enrichMods(ctx context.Context, log *zap.SugaredLogger, files map[int]ModFileInfo) {
	unique := make(map[int]struct{})
	for _, f := range files {
		unique[f.ModID] = struct{}{}
	}
	modIDs := make([]int, 0, len(unique))
	for id := range unique {
		modIDs = append(modIDs, id)
	}
	sort.Ints(modIDs)

	var (
		mu   sync.Mutex
		mods = make(map[int]curseforge.Mod, len(modIDs))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batchConcurrency)
	for _, batch := range curseforge.Batches(modIDs, curseforge.MaxBatchSize) {
		g.Go(func() error {
			records, err := v.meta.ResolveMods(gctx, batch)
			if err != nil {
				log.Warnw("Mod metadata batch failed, continuing without enrichment", zap.Error(err))
				return nil
			}
			mu.Lock()
			defer mu.Unlock()
			for _, m := range records {
				mods[m.ID] = m
			}
			return nil
		})
	}
	_ = g.Wait()

	for id, f := range files {
		if m, ok := mods[f.ModID]; ok {
			f.Slug = m.Slug
			f.WebsiteURL = m.Links.WebsiteURL
			files[id] = f
		}
	}
}

// scanOverrides collects lowercased file names from <overrides>/mods (jars)
// and <overrides>/resourcepacks (zips).
func scanOverrides(ctx context.Context, zr *zip.Reader, overridesDir string) ([]string, error) {
	root := strings.ToLower(overridesDir) + "/"
	areas := map[string]string{
		root + "mods/":          ".jar",
		root + "resourcepacks/": ".zip",
	}

	seen := make(map[string]struct{})
	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if f.FileInfo().IsDir() {
			continue
		}
		name := strings.ToLower(normalizeName(f.Name))
		for prefix, ext := range areas {
			if strings.HasPrefix(name, prefix) && path.Ext(name) == ext {
				seen[path.Base(name)] = struct{}{}
			}
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func fileInfo(f curseforge.File) ModFileInfo {
	info := ModFileInfo{
		ID:          f.ID,
		ModID:       f.ModID,
		FileName:    f.FileName,
		DownloadURL: f.URL(),
		FileStatus:  f.FileStatus,
		Size:        f.FileLength,
		Resolved:    true,
	}
	for _, h := range f.Hashes {
		if h.Algo == 1 {
			info.SHA1 = h.Value
		}
	}
	return info
}

func (m ModFileInfo) String() string {
	if m.FileName != "" {
		return m.FileName
	}
	return fmt.Sprintf("file %d (project %d)", m.ID, m.ModID)
}
