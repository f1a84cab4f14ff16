package fileserver

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Resolver maps client-supplied relative paths onto the filesystem while
// keeping every result inside a fixed root directory.
//
// The root is canonicalized once at construction (absolute, symlinks
// evaluated) and never changes afterwards, so a Resolver is safe for
// concurrent use.
type Resolver struct {
	root string
}

// NewResolver returns a Resolver confined to root. The root must exist and
// be a directory.
func NewResolver(root string) (*Resolver, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root %q: %w", root, err)
	}

	canon, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root %q: %w", root, err)
	}

	info, err := os.Stat(canon)
	if err != nil {
		return nil, fmt.Errorf("failed to stat root %q: %w", canon, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root %q is not a directory", canon)
	}

	return &Resolver{root: canon}, nil
}

// Root returns the canonical root directory.
func (r *Resolver) Root() string {
	return r.root
}

// Resolve joins rawPath onto the root and returns the canonical absolute
// path. rawPath is expected to be percent-decoded already; leading slashes
// are ignored. The only error returned is ErrForbidden.
//
// Targets that do not exist resolve to their deepest existing ancestor's
// canonical form with the missing components appended, so callers can still
// stat them and answer 404. Symlinks anywhere along the path are followed
// and the final location must still be inside the root.
func (r *Resolver) Resolve(rawPath string) (string, error) {
	rel := filepath.FromSlash(strings.TrimLeft(rawPath, "/"))

	// Join cleans the result, collapsing any ".." lexically. A lexical
	// escape is rejected before touching the filesystem.
	joined := filepath.Join(r.root, rel)
	if !r.contains(joined) {
		return "", ErrForbidden
	}

	canon := canonicalize(joined)
	if !r.contains(canon) {
		return "", ErrForbidden
	}
	return canon, nil
}

// Rel returns target relative to the root using forward slashes, or "" for
// the root itself. target must be a path previously returned by Resolve.
func (r *Resolver) Rel(target string) string {
	rel, err := filepath.Rel(r.root, target)
	if err != nil || rel == "." {
		return ""
	}
	return filepath.ToSlash(rel)
}

// contains reports whether p equals the root or lies beneath it. The
// separator check keeps "/srv/www2" from matching root "/srv/www".
func (r *Resolver) contains(p string) bool {
	if p == r.root {
		return true
	}
	prefix := r.root
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	return strings.HasPrefix(p, prefix)
}

// canonicalize evaluates symlinks in p. When p does not exist (or cannot be
// evaluated) it walks up to the deepest ancestor that can, and re-appends
// the remaining components to that ancestor's canonical form.
func canonicalize(p string) string {
	if canon, err := filepath.EvalSymlinks(p); err == nil {
		return canon
	}

	dir, rest := p, ""
	for {
		parent := filepath.Dir(dir)
		if parent == dir {
			return p
		}
		rest = filepath.Join(filepath.Base(dir), rest)
		dir = parent

		if canon, err := filepath.EvalSymlinks(dir); err == nil {
			return filepath.Join(canon, rest)
		}
	}
}
