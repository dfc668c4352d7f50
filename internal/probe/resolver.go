package probe

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
)

// Resolver locates tool binaries: PATH first, then a list of fallback
// directories for environments (cron, systemd units) that run with a
// minimal PATH. Successful lookups are cached per tool name.
//
// Safe for concurrent use.
type Resolver struct {
	searchPaths []string

	mu    sync.Mutex
	cache map[string]string
}

// NewResolver returns a Resolver that falls back to searchPaths.
func NewResolver(searchPaths []string) *Resolver {
	return &Resolver{
		searchPaths: searchPaths,
		cache:       make(map[string]string),
	}
}

// Lookup returns the absolute path of the named tool, or ErrNotFound.
func (r *Resolver) Lookup(name string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.cache[name]; ok {
		return p, nil
	}

	if p, err := exec.LookPath(name); err == nil {
		r.cache[name] = p
		return p, nil
	}

	for _, dir := range r.searchPaths {
		p := filepath.Join(dir, name)
		if isExecutable(p) {
			r.cache[name] = p
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, name)
}

// Available reports whether the named tool can be found.
func (r *Resolver) Available(name string) bool {
	_, err := r.Lookup(name)
	return err == nil
}

func isExecutable(path string) bool {
	fi, err := os.Stat(path)
	if err != nil || fi.IsDir() {
		return false
	}
	return fi.Mode().Perm()&0o111 != 0
}
