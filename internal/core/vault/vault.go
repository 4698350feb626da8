// Package vault is the engine's view of the note directory: scanning,
// reading and writing note files, and the id→path mapping.
package vault

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"

	"treeline/internal/core/errors"
	"treeline/internal/shared/util"
)

type Vault struct {
	root         string
	extension    string
	excludeDirs  []glob.Glob
	excludeFiles []glob.Glob
}

func New(root, extension string, excludeDirs, excludeFiles []string) (*Vault, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	compiledDirs := make([]glob.Glob, 0, len(excludeDirs))
	for _, pattern := range excludeDirs {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, err
		}
		compiledDirs = append(compiledDirs, g)
	}

	compiledFiles := make([]glob.Glob, 0, len(excludeFiles))
	for _, pattern := range excludeFiles {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, err
		}
		compiledFiles = append(compiledFiles, g)
	}

	return &Vault{
		root:         abs,
		extension:    extension,
		excludeDirs:  compiledDirs,
		excludeFiles: compiledFiles,
	}, nil
}

func (v *Vault) Root() string { return v.root }

func (v *Vault) Extension() string { return v.extension }

// PathFor returns the absolute file path backing a node id.
func (v *Vault) PathFor(id string) string {
	return filepath.Join(v.root, filepath.FromSlash(id)+v.extension)
}

// NodeID derives the node id for an absolute path under the vault root.
func (v *Vault) NodeID(absPath string) string {
	return util.RelNodeID(v.root, absPath)
}

// Contains reports whether the path is a note file inside the vault that
// passes the exclusion filters.
func (v *Vault) Contains(absPath string) bool {
	if !util.HasPathPrefix(absPath, v.root) {
		return false
	}
	rel, err := filepath.Rel(v.root, absPath)
	if err != nil {
		return false
	}
	if !strings.EqualFold(filepath.Ext(absPath), v.extension) {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(filepath.Dir(rel)), "/") {
		if v.matchesDir(part) {
			return false
		}
	}
	return !v.matchesFile(filepath.Base(absPath))
}

// Scan walks the vault and returns the absolute paths of all note files,
// sorted. Excluded directories are skipped whole.
func (v *Vault) Scan() ([]string, error) {
	var paths []string
	err := filepath.Walk(v.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if path != v.root && v.matchesDir(info.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.EqualFold(filepath.Ext(path), v.extension) {
			return nil
		}
		if v.matchesFile(info.Name()) {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, errors.AddContext(
			errors.Wrap(err, errors.CodeInternal, "vault scan failed"),
			errors.CtxPath, v.root)
	}
	// Walk already yields lexical order but keep the guarantee explicit.
	return paths, nil
}

func (v *Vault) Read(id string) ([]byte, error) {
	path := v.PathFor(id)
	data, err := os.ReadFile(path)
	if err != nil {
		code := errors.CodeInternal
		msg := "note read failed"
		if os.IsNotExist(err) {
			code = errors.CodeNotFound
			msg = "note file missing"
		}
		wrapped := errors.Wrap(err, code, msg)
		wrapped = errors.AddContext(wrapped, errors.CtxNodeID, id)
		return nil, errors.AddContext(wrapped, errors.CtxPath, path)
	}
	return data, nil
}

func (v *Vault) Write(id string, data []byte) error {
	path := v.PathFor(id)
	if err := util.WriteFileWithDirs(path, data, 0o644); err != nil {
		wrapped := errors.Wrap(err, errors.CodeWriteFailed, "note write failed")
		wrapped = errors.AddContext(wrapped, errors.CtxNodeID, id)
		return errors.AddContext(wrapped, errors.CtxPath, path)
	}
	return nil
}

func (v *Vault) Remove(id string) error {
	path := v.PathFor(id)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		wrapped := errors.Wrap(err, errors.CodeWriteFailed, "note remove failed")
		wrapped = errors.AddContext(wrapped, errors.CtxNodeID, id)
		return errors.AddContext(wrapped, errors.CtxPath, path)
	}
	return nil
}

// Exists reports whether the note file for id is present on disk.
func (v *Vault) Exists(id string) bool {
	info, err := os.Stat(v.PathFor(id))
	return err == nil && !info.IsDir()
}

// UniqueID returns id unchanged when free, otherwise the first id with a
// numeric stem suffix (_2, _3, ...) the exists check rejects. The folder
// prefix is preserved.
func UniqueID(id string, exists func(string) bool) string {
	if !exists(id) {
		return id
	}
	dir, stem := "", id
	if idx := strings.LastIndex(id, "/"); idx >= 0 {
		dir, stem = id[:idx+1], id[idx+1:]
	}
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s%s_%d", dir, stem, n)
		if !exists(candidate) {
			return candidate
		}
	}
}

func (v *Vault) matchesDir(name string) bool {
	for _, g := range v.excludeDirs {
		if g.Match(name) {
			return true
		}
	}
	return false
}

func (v *Vault) matchesFile(name string) bool {
	for _, g := range v.excludeFiles {
		if g.Match(name) {
			return true
		}
	}
	return false
}
