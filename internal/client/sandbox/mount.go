package sandbox

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/coderoom/internal/filetree"
	"github.com/dmitrijs2005/coderoom/internal/filex"
)

// preserved top-level entries survive a Mount even when the tree lacks
// them; they are produced by the install step.
var preserved = map[string]bool{"node_modules": true}

// Mount makes the working directory mirror tree: missing directories and
// files are created, contents overwritten, and anything the tree does not
// name is removed.
func (r *Runner) Mount(tree filetree.Tree) error {
	if err := tree.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	want := map[string]bool{}
	_ = tree.Walk(func(p string, n filetree.Node) error {
		want[filepath.FromSlash(p)] = n.IsDir()
		return nil
	})

	if err := r.prune(want); err != nil {
		return fmt.Errorf("mount: %w", err)
	}

	err := tree.Walk(func(p string, n filetree.Node) error {
		target := filepath.Join(r.dir, filepath.FromSlash(p))
		if n.IsDir() {
			_, err := filex.EnsureDir(target)
			return err
		}
		return filex.WriteFile(target, []byte(n.File.Contents), 0o644)
	})
	if err != nil {
		return fmt.Errorf("mount: %w", err)
	}
	return nil
}

// prune removes entries absent from want, or present with the other kind.
func (r *Runner) prune(want map[string]bool) error {
	return filepath.WalkDir(r.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if path == r.dir {
			return nil
		}
		rel, err := filepath.Rel(r.dir, path)
		if err != nil {
			return err
		}

		isDir, ok := want[rel]
		if !ok && preserved[rel] {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if ok && isDir == d.IsDir() {
			return nil
		}

		if err := os.RemoveAll(path); err != nil {
			return err
		}
		if d.IsDir() {
			return filepath.SkipDir
		}
		return nil
	})
}
