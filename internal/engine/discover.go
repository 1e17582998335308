package engine

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"

	"github.com/xab-mack/contractscan/internal/logging"
)

type sourceFile struct {
	path    string
	display string
}

var skipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
}

// discoverFiles returns the .sol files under root sorted by display path.
// With deltaOnly it narrows to files git reports as changed or untracked,
// and falls back to a full walk when root is not inside a repository.
func discoverFiles(root string, deltaOnly bool, log logging.Logger) ([]sourceFile, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("scan path: %w", err)
	}
	if !info.IsDir() {
		return []sourceFile{{path: root, display: filepath.ToSlash(filepath.Base(root))}}, nil
	}

	var changed map[string]bool
	if deltaOnly {
		changed, err = changedFiles(root)
		if err != nil {
			log.Warn("delta scan unavailable, scanning everything", logging.F("error", err.Error()))
			changed = nil
		}
	}

	realRoot := resolve(root)
	var out []sourceFile
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != root && skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(d.Name()) != ".sol" {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			rel = path
		}
		if changed != nil && !changed[filepath.Join(realRoot, rel)] {
			return nil
		}
		out = append(out, sourceFile{path: path, display: filepath.ToSlash(rel)})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortFiles(out)
	return out, nil
}

// changedFiles returns absolute paths of worktree entries that differ from
// HEAD, including untracked files.
func changedFiles(root string) (map[string]bool, error) {
	repo, err := git.PlainOpenWithOptions(root, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("opening git repo: %w", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("getting worktree: %w", err)
	}
	status, err := wt.Status()
	if err != nil {
		return nil, fmt.Errorf("reading status: %w", err)
	}
	if wt.Filesystem == nil {
		return nil, errors.New("worktree has no filesystem")
	}
	base := resolve(wt.Filesystem.Root())
	out := map[string]bool{}
	for name, st := range status {
		if st.Worktree == git.Deleted || (st.Staging == git.Deleted && st.Worktree == git.Unmodified) {
			continue
		}
		if st.Staging == git.Unmodified && st.Worktree == git.Unmodified {
			continue
		}
		if !strings.HasSuffix(name, ".sol") {
			continue
		}
		p := filepath.Join(base, filepath.FromSlash(name))
		out[p] = true
	}
	return out, nil
}

// resolve returns the absolute, symlink-free form of path, or its
// absolute form when resolution fails.
func resolve(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	if real, err := filepath.EvalSymlinks(abs); err == nil {
		return real
	}
	return abs
}
