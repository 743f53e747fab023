package workflow

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/c360studio/llmanspec/document"
)

// Directory constants for the llmanspec structure.
const (
	RootDir        = "llmanspec"
	ConfigFile     = "config.yaml"
	SpecsDir       = "specs"
	ChangesDir     = "changes"
	ArchiveDir     = "archive"
	ProposalFile   = "proposal.md"
	SpecFile       = "spec.md"
	TasksFile      = "tasks.md"
	ChangeSpecsDir = "specs" // Delta documents within a change directory
)

// archiveDateLayout prefixes archived change directories.
const archiveDateLayout = "2006-01-02"

// Manager provides file operations for the llmanspec tree.
type Manager struct {
	repoRoot string
	rootDir  string
}

// NewManager creates a new workflow manager for the given repository root.
func NewManager(repoRoot string) *Manager {
	return &Manager{repoRoot: repoRoot, rootDir: RootDir}
}

// NewManagerWithDir creates a manager whose tree lives in rootDir instead
// of the default "llmanspec".
func NewManagerWithDir(repoRoot, rootDir string) *Manager {
	if rootDir == "" {
		rootDir = RootDir
	}
	return &Manager{repoRoot: repoRoot, rootDir: rootDir}
}

// RepoRoot returns the repository root the manager was created with.
func (m *Manager) RepoRoot() string {
	return m.repoRoot
}

// RootPath returns the full path to the llmanspec directory.
func (m *Manager) RootPath() string {
	return filepath.Join(m.repoRoot, m.rootDir)
}

// ConfigPath returns the path to the project config file.
func (m *Manager) ConfigPath() string {
	return filepath.Join(m.RootPath(), ConfigFile)
}

// SpecsPath returns the path to the specs directory.
func (m *Manager) SpecsPath() string {
	return filepath.Join(m.RootPath(), SpecsDir)
}

// SpecPath returns the path to a spec file.
func (m *Manager) SpecPath(specID string) string {
	return filepath.Join(m.SpecsPath(), specID, SpecFile)
}

// ChangesPath returns the path to the changes directory.
func (m *Manager) ChangesPath() string {
	return filepath.Join(m.RootPath(), ChangesDir)
}

// ArchivePath returns the path to the archive directory.
func (m *Manager) ArchivePath() string {
	return filepath.Join(m.ChangesPath(), ArchiveDir)
}

// ChangePath returns the path to a specific change directory.
func (m *Manager) ChangePath(changeID string) string {
	return filepath.Join(m.ChangesPath(), changeID)
}

// ChangeSpecPath returns the path to a change's delta for specID.
func (m *Manager) ChangeSpecPath(changeID, specID string) string {
	return filepath.Join(m.ChangePath(changeID), ChangeSpecsDir, specID, SpecFile)
}

// ArchiveTarget returns where ArchiveChange would move changeID on day now.
func (m *Manager) ArchiveTarget(changeID string, now time.Time) string {
	return filepath.Join(m.ArchivePath(), now.Format(archiveDateLayout)+"-"+changeID)
}

// Rel returns path relative to the repository root with forward slashes,
// or path unchanged when it lies outside the root.
func (m *Manager) Rel(path string) string {
	rel, err := filepath.Rel(m.repoRoot, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return filepath.ToSlash(rel)
}

// EnsureDirectories creates the llmanspec directory structure if it doesn't exist.
func (m *Manager) EnsureDirectories() error {
	dirs := []string{
		m.RootPath(),
		m.SpecsPath(),
		m.ChangesPath(),
		m.ArchivePath(),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

// SpecIDs returns the ids of every directory under specs/ holding a
// spec.md, sorted.
func (m *Manager) SpecIDs() ([]string, error) {
	return listDirs(m.SpecsPath(), func(dir string) bool {
		return fileExists(filepath.Join(dir, SpecFile))
	})
}

// ChangeIDs returns the ids of active changes, sorted. The archive and
// hidden directories are skipped.
func (m *Manager) ChangeIDs() ([]string, error) {
	return listDirs(m.ChangesPath(), func(dir string) bool {
		return filepath.Base(dir) != ArchiveDir
	})
}

// ArchivedChangeIDs returns the directory names under the archive,
// sorted. Names carry their date prefix.
func (m *Manager) ArchivedChangeIDs() ([]string, error) {
	return listDirs(m.ArchivePath(), func(string) bool { return true })
}

func listDirs(parent string, keep func(dir string) bool) ([]string, error) {
	entries, err := os.ReadDir(parent)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to read directory %s: %w", parent, err)
	}

	ids := []string{}
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if keep(filepath.Join(parent, entry.Name())) {
			ids = append(ids, entry.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// ListSpecs returns all specs in the specs directory, sorted by id.
func (m *Manager) ListSpecs() ([]*SpecSummary, error) {
	ids, err := m.SpecIDs()
	if err != nil {
		return nil, err
	}

	specs := make([]*SpecSummary, 0, len(ids))
	for _, id := range ids {
		path := m.SpecPath(id)
		summary := &SpecSummary{ID: id, Title: id, Path: m.Rel(path)}
		if info, err := os.Stat(path); err == nil {
			summary.LastModified = info.ModTime()
		}

		content, err := m.ReadFile(path)
		if err != nil {
			summary.ParseError = err.Error()
			specs = append(specs, summary)
			continue
		}
		_, body, _ := document.SplitFrontmatter(content)
		spec, err := document.ParseSpecBody(body, id)
		if err != nil {
			summary.ParseError = err.Error()
		} else {
			summary.RequirementCount = len(spec.Requirements)
			if spec.Meta.Name != "" {
				summary.Title = spec.Meta.Name
			}
		}
		specs = append(specs, summary)
	}

	return specs, nil
}

// ListChanges returns all active changes, sorted by id.
func (m *Manager) ListChanges() ([]*ChangeSummary, error) {
	ids, err := m.ChangeIDs()
	if err != nil {
		return nil, err
	}

	changes := make([]*ChangeSummary, 0, len(ids))
	for _, id := range ids {
		dir := m.ChangePath(id)
		summary := &ChangeSummary{
			ID:          id,
			HasProposal: fileExists(filepath.Join(dir, ProposalFile)),
		}

		if content, err := m.ReadFile(filepath.Join(dir, TasksFile)); err == nil {
			summary.TotalTasks, summary.CompletedTasks = GetTaskStats(ParseTasks(content))
		}
		summary.Status = TaskStatusFor(summary.CompletedTasks, summary.TotalTasks)

		deltas, err := m.ChangeDeltas(id)
		if err != nil {
			return nil, err
		}
		summary.DeltaCount = len(deltas)

		modified, err := lastModified(dir)
		if err != nil {
			return nil, err
		}
		summary.LastModified = modified

		changes = append(changes, summary)
	}

	return changes, nil
}

// ChangeDeltas returns the delta documents of a change. Each spec
// directory under the change's specs/ contributes its spec.md first and
// then any other .md files in name order; the order is the order in
// which their operations are combined.
func (m *Manager) ChangeDeltas(changeID string) ([]DeltaFile, error) {
	return DeltaFilesIn(filepath.Join(m.ChangePath(changeID), ChangeSpecsDir))
}

// DeltaFilesIn lists the delta documents under a change's specs/
// directory. A missing directory yields no deltas.
func DeltaFilesIn(specsDir string) ([]DeltaFile, error) {
	specIDs, err := listDirs(specsDir, func(string) bool { return true })
	if err != nil {
		return nil, err
	}

	var deltas []DeltaFile
	for _, specID := range specIDs {
		dir := filepath.Join(specsDir, specID)
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("failed to read delta directory %s: %w", dir, err)
		}
		var extra []string
		hasMain := false
		for _, entry := range entries {
			name := entry.Name()
			if entry.IsDir() || !strings.HasSuffix(name, ".md") {
				continue
			}
			if name == SpecFile {
				hasMain = true
				continue
			}
			extra = append(extra, name)
		}
		sort.Strings(extra)
		if hasMain {
			deltas = append(deltas, DeltaFile{SpecID: specID, Path: filepath.Join(dir, SpecFile)})
		}
		for _, name := range extra {
			deltas = append(deltas, DeltaFile{SpecID: specID, Path: filepath.Join(dir, name)})
		}
	}
	return deltas, nil
}

// ChangeExists reports whether the change directory exists.
func (m *Manager) ChangeExists(changeID string) bool {
	info, err := os.Stat(m.ChangePath(changeID))
	return err == nil && info.IsDir()
}

// ArchiveChange moves a change to changes/archive/YYYY-MM-DD-<id> and
// returns the new path. Spec files are not touched.
func (m *Manager) ArchiveChange(changeID string, now time.Time) (string, error) {
	if err := ValidateID(changeID, "change"); err != nil {
		return "", err
	}
	if !m.ChangeExists(changeID) {
		return "", fmt.Errorf("%w: %s", ErrChangeNotFound, changeID)
	}

	dst := m.ArchiveTarget(changeID, now)
	if _, err := os.Stat(dst); err == nil {
		return "", fmt.Errorf("%w: %s", ErrArchiveExists, m.Rel(dst))
	}

	if err := os.MkdirAll(m.ArchivePath(), 0755); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}
	if err := os.Rename(m.ChangePath(changeID), dst); err != nil {
		return "", fmt.Errorf("failed to archive change: %w", err)
	}
	return dst, nil
}

// ReadSpec reads a spec file.
func (m *Manager) ReadSpec(specID string) (string, error) {
	if err := ValidateID(specID, "spec"); err != nil {
		return "", err
	}
	content, err := m.ReadFile(m.SpecPath(specID))
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", ErrSpecNotFound, specID)
	}
	return content, err
}

// WriteSpec writes a spec file, creating its directory.
func (m *Manager) WriteSpec(specID, content string) error {
	if err := ValidateID(specID, "spec"); err != nil {
		return err
	}
	return m.WriteFile(m.SpecPath(specID), content)
}

// WriteFile writes content to a file, creating parent directories if needed.
func (m *Manager) WriteFile(path, content string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	return nil
}

// ReadFile reads content from a file.
func (m *Manager) ReadFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// lastModified returns the newest file modification time under dir.
func lastModified(dir string) (time.Time, error) {
	var latest time.Time
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.ModTime().After(latest) {
			latest = info.ModTime()
		}
		return nil
	})
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to scan %s: %w", dir, err)
	}
	if latest.IsZero() {
		latest = time.Now()
	}
	return latest, nil
}

// fileExists returns true if a file exists.
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
