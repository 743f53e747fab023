package archive

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/c360studio/llmanspec/workflow"
)

// FreezeFile is the single file archived changes are frozen into. It lives
// in the archive directory.
const FreezeFile = "frozen_changes.tar.zst"

// ThawDir is the default thaw destination inside the archive directory.
const ThawDir = ".thawed"

var (
	// ErrArchiveDirMissing is returned when there is no archive directory.
	ErrArchiveDirMissing = errors.New("archive directory not found")

	// ErrFreezeFileMissing is returned when thawing without a freeze file.
	ErrFreezeFileMissing = errors.New("freeze archive not found")

	// ErrNotFrozen is returned when a requested change is not in the
	// freeze archive.
	ErrNotFrozen = errors.New("archived change not found in freeze archive")
)

var datedDirPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}-.+$`)

// FreezeOptions select the archived changes to freeze.
type FreezeOptions struct {
	// Before keeps only changes archived strictly before this date. Zero
	// means no limit.
	Before time.Time
	// KeepRecent leaves the newest N selected changes in place.
	KeepRecent int
	DryRun     bool
}

// FreezeReport lists the frozen (or to-be-frozen) archive directories.
type FreezeReport struct {
	Target  string   `json:"target"`
	Changes []string `json:"changes"`
	DryRun  bool     `json:"dryRun"`
}

// ThawOptions select what to restore from the freeze archive.
type ThawOptions struct {
	// Changes are dated archive directory names. Empty restores all.
	Changes []string
	// Dest defaults to the archive's .thawed directory.
	Dest string
}

// ThawReport lists the restored archive directories.
type ThawReport struct {
	Dest    string   `json:"dest"`
	Changes []string `json:"changes"`
}

// Freezer packs dated archived changes into FreezeFile and restores them.
type Freezer struct {
	manager *workflow.Manager
	logger  *slog.Logger
}

// NewFreezer creates a freezer for the project managed by m.
func NewFreezer(m *workflow.Manager, logger *slog.Logger) *Freezer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Freezer{manager: m, logger: logger}
}

// FreezePath returns the path of the freeze archive.
func (f *Freezer) FreezePath() string {
	return filepath.Join(f.manager.ArchivePath(), FreezeFile)
}

type datedDir struct {
	name string
	date time.Time
}

// Candidates returns the archive directories Freeze would pack, oldest
// first.
func (f *Freezer) Candidates(opts FreezeOptions) ([]string, error) {
	if info, err := os.Stat(f.manager.ArchivePath()); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrArchiveDirMissing, f.manager.Rel(f.manager.ArchivePath()))
	}
	names, err := f.manager.ArchivedChangeIDs()
	if err != nil {
		return nil, err
	}

	var dirs []datedDir
	for _, name := range names {
		if !datedDirPattern.MatchString(name) {
			continue
		}
		date, err := time.Parse(time.DateOnly, name[:10])
		if err != nil {
			return nil, fmt.Errorf("invalid archive directory date prefix %q", name)
		}
		if !opts.Before.IsZero() && !date.Before(opts.Before) {
			continue
		}
		dirs = append(dirs, datedDir{name: name, date: date})
	}
	sort.Slice(dirs, func(i, j int) bool {
		if !dirs[i].date.Equal(dirs[j].date) {
			return dirs[i].date.Before(dirs[j].date)
		}
		return dirs[i].name < dirs[j].name
	})

	if opts.KeepRecent >= len(dirs) {
		return []string{}, nil
	}
	selected := make([]string, 0, len(dirs)-opts.KeepRecent)
	for _, d := range dirs[:len(dirs)-opts.KeepRecent] {
		selected = append(selected, d.name)
	}
	return selected, nil
}

// Freeze packs the selected archive directories into the freeze archive,
// merging with any existing one, and removes the packed directories.
func (f *Freezer) Freeze(ctx context.Context, opts FreezeOptions) (*FreezeReport, error) {
	if opts.KeepRecent < 0 {
		return nil, fmt.Errorf("keep-recent must not be negative, got %d", opts.KeepRecent)
	}
	selected, err := f.Candidates(opts)
	if err != nil {
		return nil, err
	}
	report := &FreezeReport{Target: f.FreezePath(), Changes: selected, DryRun: opts.DryRun}
	if opts.DryRun || len(selected) == 0 {
		return report, nil
	}

	replaced := make(map[string]bool, len(selected))
	for _, name := range selected {
		replaced[name] = true
	}

	tmp := filepath.Join(f.manager.ArchivePath(), "."+FreezeFile+".tmp")
	if err := f.writeArchive(ctx, tmp, replaced, selected); err != nil {
		_ = os.Remove(tmp)
		return nil, err
	}
	if err := os.Rename(tmp, report.Target); err != nil {
		_ = os.Remove(tmp)
		return nil, fmt.Errorf("replace freeze archive: %w", err)
	}

	for _, name := range selected {
		if err := os.RemoveAll(filepath.Join(f.manager.ArchivePath(), name)); err != nil {
			return report, fmt.Errorf("remove frozen directory %s: %w", name, err)
		}
	}
	f.logger.Info("Froze archived changes", "count", len(selected), "target", f.manager.Rel(report.Target))
	return report, nil
}

// writeArchive writes a new freeze archive to dst: entries of the current
// archive not being replaced, then the selected directories.
func (f *Freezer) writeArchive(ctx context.Context, dst string, replaced map[string]bool, selected []string) error {
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create freeze archive: %w", err)
	}
	defer out.Close()

	zw, err := zstd.NewWriter(out)
	if err != nil {
		return err
	}
	tw := tar.NewWriter(zw)

	if err := f.copyExisting(tw, replaced); err != nil {
		return err
	}
	for _, name := range selected {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := addDir(tw, f.manager.ArchivePath(), name); err != nil {
			return err
		}
	}

	if err := tw.Close(); err != nil {
		return err
	}
	if err := zw.Close(); err != nil {
		return err
	}
	return out.Close()
}

func (f *Freezer) copyExisting(tw *tar.Writer, replaced map[string]bool) error {
	return f.readArchive(func(hdr *tar.Header, r io.Reader) error {
		if replaced[topLevel(hdr.Name)] {
			return nil
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		_, err := io.Copy(tw, r)
		return err
	}, true)
}

func addDir(tw *tar.Writer, base, name string) error {
	root := filepath.Join(base, name)
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(base, p)
		if err != nil {
			return err
		}
		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)
		if d.IsDir() {
			hdr.Name += "/"
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		file, err := os.Open(p)
		if err != nil {
			return err
		}
		defer file.Close()
		_, err = io.Copy(tw, file)
		return err
	})
}

// readArchive calls fn for every entry of the freeze archive. With
// allowMissing, a missing archive yields no entries.
func (f *Freezer) readArchive(fn func(*tar.Header, io.Reader) error, allowMissing bool) error {
	in, err := os.Open(f.FreezePath())
	if err != nil {
		if allowMissing && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrFreezeFileMissing, f.manager.Rel(f.FreezePath()))
		}
		return err
	}
	defer in.Close()

	zr, err := zstd.NewReader(in)
	if err != nil {
		return fmt.Errorf("read freeze archive: %w", err)
	}
	defer zr.Close()

	tr := tar.NewReader(zr)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read freeze archive: %w", err)
		}
		name := strings.TrimSuffix(hdr.Name, "/")
		if !filepath.IsLocal(filepath.FromSlash(name)) {
			return fmt.Errorf("freeze archive entry %q escapes the archive", hdr.Name)
		}
		if err := fn(hdr, tr); err != nil {
			return err
		}
	}
}

// Thaw restores frozen changes. Selected changes replace any existing
// directory of the same name in the destination.
func (f *Freezer) Thaw(ctx context.Context, opts ThawOptions) (*ThawReport, error) {
	for _, name := range opts.Changes {
		if err := workflow.ValidateID(name, "change"); err != nil {
			return nil, err
		}
	}
	if _, err := os.Stat(f.FreezePath()); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrFreezeFileMissing, f.manager.Rel(f.FreezePath()))
	}

	dest := opts.Dest
	if dest == "" {
		dest = filepath.Join(f.manager.ArchivePath(), ThawDir)
	}
	wanted := make(map[string]bool, len(opts.Changes))
	for _, name := range opts.Changes {
		wanted[name] = true
		if err := os.RemoveAll(filepath.Join(dest, name)); err != nil {
			return nil, fmt.Errorf("remove thaw target %s: %w", name, err)
		}
	}

	restored := map[string]bool{}
	err := f.readArchive(func(hdr *tar.Header, r io.Reader) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		top := topLevel(hdr.Name)
		if len(wanted) > 0 && !wanted[top] {
			return nil
		}
		restored[top] = true
		return extractEntry(dest, hdr, r)
	}, false)
	if err != nil {
		return nil, err
	}

	for _, name := range opts.Changes {
		if !restored[name] {
			return nil, fmt.Errorf("%w: %s", ErrNotFrozen, name)
		}
	}

	report := &ThawReport{Dest: dest, Changes: make([]string, 0, len(restored))}
	for name := range restored {
		report.Changes = append(report.Changes, name)
	}
	sort.Strings(report.Changes)
	f.logger.Info("Thawed archived changes", "count", len(report.Changes), "dest", f.manager.Rel(dest))
	return report, nil
}

func extractEntry(dest string, hdr *tar.Header, r io.Reader) error {
	target := filepath.Join(dest, filepath.FromSlash(strings.TrimSuffix(hdr.Name, "/")))
	switch hdr.Typeflag {
	case tar.TypeDir:
		return os.MkdirAll(target, 0755)
	case tar.TypeReg:
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return err
		}
		out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
		if err != nil {
			return err
		}
		if _, err := io.Copy(out, r); err != nil {
			out.Close()
			return err
		}
		return out.Close()
	default:
		return nil
	}
}

func topLevel(name string) string {
	name = strings.TrimPrefix(path.Clean(strings.TrimSuffix(name, "/")), "./")
	top, _, _ := strings.Cut(name, "/")
	return top
}
