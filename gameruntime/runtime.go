package gameruntime

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cavaliergopher/grab/v3"
	"github.com/klauspost/compress/zip"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"luminakraft-launcher/config"
	"luminakraft-launcher/curseforge"
	"luminakraft-launcher/manifest"
	"luminakraft-launcher/model"
)

const (
	downloadConcurrency = 4
	instanceFile        = "instance.yaml"
)

// FileResolver looks up download locations for declared mod files.
type FileResolver interface {
	ResolveFiles(ctx context.Context, ids []int) ([]curseforge.File, error)
}

// Runtime installs modpacks under the instances directory and starts the game.
type Runtime struct {
	instancesDir  string
	archiveDir    string
	launchCommand string
	files         FileResolver
	client        *grab.Client
	log           *zap.SugaredLogger
	trashSeq      atomic.Int64
}

func New(cfg config.Config, files FileResolver, log *zap.SugaredLogger) *Runtime {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	client := grab.NewClient()
	client.UserAgent = cfg.UserAgent
	return &Runtime{
		instancesDir:  cfg.InstancesDir,
		archiveDir:    filepath.Join(cfg.CachePath, "archives"),
		launchCommand: cfg.LaunchCommand,
		files:         files,
		client:        client,
		log:           log,
	}
}

// InstanceDir returns where id is (or would be) installed.
func (r *Runtime) InstanceDir(id string) string {
	return filepath.Join(r.instancesDir, id)
}

func (r *Runtime) archivePath(d model.ModpackDescriptor) string {
	name := fmt.Sprintf("%s-%s.zip", d.ID, d.Version)
	return filepath.Join(r.archiveDir, strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(name))
}

// FetchArchive downloads the modpack archive into the cache, reusing a
// previously completed download.
func (r *Runtime) FetchArchive(ctx context.Context, d model.ModpackDescriptor, samples chan<- model.Sample) (string, error) {
	target := r.archivePath(d)
	if info, err := os.Stat(target); err == nil && info.Size() > 0 {
		r.log.Debugw("Reusing cached archive", "modpack", d.ID, "path", target)
		samples <- model.Sample{Done: info.Size(), Total: info.Size()}
		return target, nil
	}

	if err := os.MkdirAll(r.archiveDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create archive cache: %w", err)
	}

	r.log.Infow("Downloading modpack archive", "modpack", d.ID, "url", d.ArchiveURL)
	err := r.download(ctx, d.ArchiveURL, target, func(done, total int64) {
		samples <- model.Sample{Done: done, Total: total}
	})
	if err != nil {
		return "", err
	}
	return target, nil
}

// InstallArchive extracts the archive overrides and downloads every declared
// mod file that has a download URL. The mods folder is assembled next to the
// instance and swapped in only once complete, so an update never leaves jars
// from the previous version behind. Everything outside mods/ is kept.
func (r *Runtime) InstallArchive(ctx context.Context, d model.ModpackDescriptor, archivePath string, samples chan<- model.Sample) error {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer zr.Close()

	m, err := manifest.ReadFromArchive(&zr.Reader)
	if err != nil {
		return err
	}

	dir := r.InstanceDir(d.ID)
	staging := filepath.Join(dir, fmt.Sprintf(".mods-staging-%d", r.trashSeq.Add(1)))
	if err := os.MkdirAll(staging, 0755); err != nil {
		return fmt.Errorf("failed to create instance directory: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			os.RemoveAll(staging)
		}
	}()

	n, err := extractOverrides(&zr.Reader, m.OverridesDir(), dir, staging)
	if err != nil {
		return err
	}
	r.log.Debugw("Extracted overrides", "modpack", d.ID, "files", n)

	files, err := r.resolve(ctx, m.FileIDs())
	if err != nil {
		return err
	}
	if err := r.downloadMods(ctx, d.ID, staging, filepath.Join(dir, "mods"), files, samples); err != nil {
		return err
	}

	if err := r.swapMods(dir, staging); err != nil {
		return err
	}
	committed = true

	return writeInstanceFile(dir, d, m)
}

// swapMods replaces dir/mods with staging using renames only.
func (r *Runtime) swapMods(dir, staging string) error {
	mods := filepath.Join(dir, "mods")
	old := filepath.Join(dir, fmt.Sprintf(".mods-old-%d", r.trashSeq.Add(1)))

	hadMods := true
	if err := os.Rename(mods, old); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to replace mods folder: %w", err)
		}
		hadMods = false
	}
	if err := os.Rename(staging, mods); err != nil {
		if hadMods {
			if rerr := os.Rename(old, mods); rerr != nil {
				r.log.Errorw("Failed to restore previous mods folder", "path", old, "error", rerr)
			}
		}
		return fmt.Errorf("failed to replace mods folder: %w", err)
	}
	if hadMods {
		if err := os.RemoveAll(old); err != nil {
			r.log.Warnw("Failed to clean up previous mods folder", "path", old, "error", err)
		}
	}
	return nil
}

// DiscardArchive removes the cached archive for d, if any.
func (r *Runtime) DiscardArchive(d model.ModpackDescriptor) error {
	if err := os.Remove(r.archivePath(d)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to discard cached archive: %w", err)
	}
	return nil
}

func (r *Runtime) resolve(ctx context.Context, ids []int) ([]curseforge.File, error) {
	var files []curseforge.File
	for _, batch := range curseforge.Batches(ids, curseforge.MaxBatchSize) {
		resolved, err := r.files.ResolveFiles(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve mod files: %w", err)
		}
		files = append(files, resolved...)
	}
	return files, nil
}

// downloadMods fills modsDir with every declared file that has a URL. Files
// already present in prevDir with the expected size are linked or copied
// instead of downloaded again.
func (r *Runtime) downloadMods(ctx context.Context, id, modsDir, prevDir string, files []curseforge.File, samples chan<- model.Sample) error {
	var pending []curseforge.File
	var total int64
	for _, f := range files {
		if f.URL() == "" {
			if _, err := os.Stat(filepath.Join(modsDir, f.FileName)); err != nil && !r.reuse(prevDir, modsDir, f) {
				r.log.Warnw("Mod has no download URL and is not bundled", "modpack", id, "file", f.FileName)
			}
			continue
		}
		if info, err := os.Stat(filepath.Join(modsDir, f.FileName)); err == nil && info.Size() == f.FileLength {
			continue
		}
		if r.reuse(prevDir, modsDir, f) {
			continue
		}
		pending = append(pending, f)
		total += f.FileLength
	}
	if len(pending) == 0 {
		samples <- model.Sample{Done: 1, Total: 1}
		return nil
	}

	// Workers add finished byte deltas; one reporter turns them into samples
	// so done never goes backwards.
	var done atomic.Int64
	stop := make(chan struct{})
	var reporter sync.WaitGroup
	reporter.Add(1)
	go func() {
		defer reporter.Done()
		ticker := time.NewTicker(progressTick)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				samples <- model.Sample{Done: done.Load(), Total: total}
			case <-stop:
				return
			}
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(downloadConcurrency)
	for _, f := range pending {
		g.Go(func() error {
			target, err := safeJoin(modsDir, f.FileName)
			if err != nil {
				return err
			}
			var last int64
			return r.download(gctx, f.URL(), target, func(n, _ int64) {
				done.Add(n - last)
				last = n
			})
		})
	}
	err := g.Wait()

	close(stop)
	reporter.Wait()
	if err != nil {
		return err
	}
	samples <- model.Sample{Done: done.Load(), Total: total}
	r.log.Infow("Downloaded mods", "modpack", id, "count", len(pending))
	return nil
}

// reuse carries f over from the previous mods folder when it is already there.
func (r *Runtime) reuse(prevDir, modsDir string, f curseforge.File) bool {
	src, err := safeJoin(prevDir, f.FileName)
	if err != nil {
		return false
	}
	info, err := os.Stat(src)
	if err != nil || info.Size() != f.FileLength {
		return false
	}
	dst, err := safeJoin(modsDir, f.FileName)
	if err != nil {
		return false
	}
	if err := os.Link(src, dst); err == nil {
		return true
	}
	if err := copyFile(src, dst); err != nil {
		r.log.Debugw("Could not reuse installed mod", "file", f.FileName, "error", err)
		os.Remove(dst)
		return false
	}
	return true
}

type instanceInfo struct {
	ModpackID        string    `yaml:"modpackId"`
	Version          string    `yaml:"version"`
	MinecraftVersion string    `yaml:"minecraftVersion"`
	Modloader        string    `yaml:"modloader"`
	InstalledAt      time.Time `yaml:"installedAt"`
}

func writeInstanceFile(dir string, d model.ModpackDescriptor, m *manifest.Manifest) error {
	loader := m.PrimaryLoader()
	if loader == "" {
		loader = d.Modloader
	}
	data, err := yaml.Marshal(instanceInfo{
		ModpackID:        d.ID,
		Version:          d.Version,
		MinecraftVersion: m.Minecraft.Version,
		Modloader:        loader,
		InstalledAt:      time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, instanceFile), data, 0644)
}

func readInstanceFile(dir string) (instanceInfo, error) {
	var info instanceInfo
	data, err := os.ReadFile(filepath.Join(dir, instanceFile))
	if err != nil {
		return info, err
	}
	err = yaml.Unmarshal(data, &info)
	return info, err
}

// Launch starts LAUNCH_COMMAND in the instance directory and returns once the
// process is running. Placeholders {instance}, {minecraft}, {modloader} and
// {memory} are substituted.
func (r *Runtime) Launch(ctx context.Context, d model.ModpackDescriptor, settings model.LaunchSettings) error {
	if r.launchCommand == "" {
		return fmt.Errorf("LAUNCH_COMMAND is not configured")
	}
	dir := r.InstanceDir(d.ID)
	info, err := readInstanceFile(dir)
	if err != nil {
		return fmt.Errorf("instance %s is not installed: %w", d.ID, err)
	}

	args := launchArgs(r.launchCommand, dir, info, settings)
	if len(args) == 0 {
		return fmt.Errorf("LAUNCH_COMMAND is empty")
	}
	cmd := exec.Command(args[0], args[1:]...)
	cmd.Dir = dir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start game: %w", err)
	}
	r.log.Infow("Game started", "modpack", d.ID, "pid", cmd.Process.Pid)

	go func() {
		if err := cmd.Wait(); err != nil {
			r.log.Warnw("Game exited with error", "modpack", d.ID, "error", err)
			return
		}
		r.log.Infow("Game exited", "modpack", d.ID)
	}()
	return nil
}

func launchArgs(command, dir string, info instanceInfo, settings model.LaunchSettings) []string {
	memory := ""
	if settings.MemoryMB > 0 {
		memory = strconv.Itoa(settings.MemoryMB)
	}
	replacer := strings.NewReplacer(
		"{instance}", dir,
		"{minecraft}", info.MinecraftVersion,
		"{modloader}", info.Modloader,
		"{memory}", memory,
	)
	var args []string
	for _, field := range strings.Fields(command) {
		args = append(args, replacer.Replace(field))
	}
	return append(args, settings.ExtraArgs...)
}

// DeleteInstance moves the instance aside with a single rename and then
// removes it, so a failure leaves either the full instance or nothing.
func (r *Runtime) DeleteInstance(id string) error {
	dir := r.InstanceDir(id)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil
	}

	trash := filepath.Join(r.instancesDir, fmt.Sprintf(".trash-%s-%d", id, r.trashSeq.Add(1)))
	if err := os.Rename(dir, trash); err != nil {
		return fmt.Errorf("failed to remove instance %s: %w", id, err)
	}
	if err := os.RemoveAll(trash); err != nil {
		r.log.Warnw("Failed to clean up removed instance", "path", trash, "error", err)
	}
	return nil
}
