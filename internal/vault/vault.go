// Package vault models the markdown task vault and its three stages.
package vault

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Stage is one of the three vault directories a task can live in.
type Stage string

const (
	StageInbox       Stage = "Inbox"
	StageNeedsAction Stage = "Needs_Action"
	StageDone        Stage = "Done"
)

// Stages lists all stages in pipeline order.
var Stages = []Stage{StageInbox, StageNeedsAction, StageDone}

// Vault is the root directory containing the stage directories. A task
// filename is unique across the union of all three stages; moves are
// rename-based and atomic from the orchestrator's perspective.
type Vault struct {
	Root string
}

// New creates a Vault rooted at root.
func New(root string) *Vault {
	return &Vault{Root: root}
}

// Dir returns the directory for a stage.
func (v *Vault) Dir(stage Stage) string {
	return filepath.Join(v.Root, string(stage))
}

// DashboardPath is where ralph writes its live status view.
func (v *Vault) DashboardPath() string {
	return filepath.Join(v.Root, "Dashboard.md")
}

// EnsureDirs creates all stage directories.
func (v *Vault) EnsureDirs() error {
	for _, stage := range Stages {
		if err := os.MkdirAll(v.Dir(stage), 0o755); err != nil {
			return fmt.Errorf("create %s: %w", stage, err)
		}
	}
	return nil
}

// List returns the sorted paths of all .md files in a stage.
func (v *Vault) List(stage Stage) ([]string, error) {
	entries, err := os.ReadDir(v.Dir(stage))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list %s: %w", stage, err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		paths = append(paths, filepath.Join(v.Dir(stage), e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// Count returns the number of .md files in a stage.
func (v *Vault) Count(stage Stage) int {
	paths, err := v.List(stage)
	if err != nil {
		return 0
	}
	return len(paths)
}

// MoveToDone moves a task file into Done, suffixing the filename with
// _2, _3, ... on collision. Returns the destination path.
func (v *Vault) MoveToDone(path string) (string, error) {
	doneDir := v.Dir(StageDone)
	if err := os.MkdirAll(doneDir, 0o755); err != nil {
		return "", fmt.Errorf("create Done: %w", err)
	}
	dest := UniquePath(doneDir, filepath.Base(path))
	if err := os.Rename(path, dest); err != nil {
		return "", fmt.Errorf("move to Done: %w", err)
	}
	return dest, nil
}

// UniquePath returns dir/filename, or the first dir/stem_N.ext that does
// not already exist.
func UniquePath(dir, filename string) string {
	candidate := filepath.Join(dir, filename)
	if _, err := os.Stat(candidate); os.IsNotExist(err) {
		return candidate
	}
	ext := filepath.Ext(filename)
	stem := strings.TrimSuffix(filename, ext)
	for counter := 2; ; counter++ {
		candidate = filepath.Join(dir, fmt.Sprintf("%s_%d%s", stem, counter, ext))
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
}
