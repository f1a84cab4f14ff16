package fileserver

import (
	"fmt"
	"html"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// EntryKind classifies a directory entry.
type EntryKind int

const (
	KindFile EntryKind = iota
	KindDir
)

func (k EntryKind) String() string {
	if k == KindDir {
		return "dir"
	}
	return "file"
}

// MarshalText renders the kind as "dir" or "file" in JSON and YAML output.
func (k EntryKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Entry is one immediate child of a listed directory.
type Entry struct {
	Name string    `json:"name" yaml:"name"`
	Kind EntryKind `json:"kind" yaml:"kind"`
}

// IsDir reports whether the entry is a directory.
func (e Entry) IsDir() bool {
	return e.Kind == KindDir
}

// Href returns the percent-encoded link target for the entry, relative to
// the listed directory. Directories carry a trailing slash.
func (e Entry) Href() string {
	href := escapeName(e.Name)
	if e.IsDir() {
		href += "/"
	}
	return href
}

// Listing is the data behind a rendered directory page.
type Listing struct {
	// Path is the directory relative to the root, slash separated, "" for
	// the root itself.
	Path    string  `json:"path" yaml:"path"`
	Root    bool    `json:"root" yaml:"root"`
	Entries []Entry `json:"entries" yaml:"entries"`
}

// ReadListing lists the immediate children of dir sorted by name.
// Each child is classified with a stat that follows symlinks; children that
// cannot be stated (dangling links) are reported as files. File contents are
// never read.
func ReadListing(dir string) ([]Entry, error) {
	// os.ReadDir returns entries sorted by filename, byte-wise.
	dirents, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %q: %w", dir, err)
	}

	entries := make([]Entry, 0, len(dirents))
	for _, d := range dirents {
		kind := KindFile
		if info, err := os.Stat(filepath.Join(dir, d.Name())); err == nil && info.IsDir() {
			kind = KindDir
		}
		entries = append(entries, Entry{Name: d.Name(), Kind: kind})
	}
	return entries, nil
}

// BuildListing resolves rawPath against r and reads the directory it names.
// The listing is labelled with the path as requested, so a directory reached
// through a symlink keeps the client's location.
func BuildListing(r *Resolver, rawPath string) (Listing, error) {
	target, err := r.Resolve(rawPath)
	if err != nil {
		return Listing{}, err
	}
	return listingFor(target, requestedRel(rawPath))
}

func listingFor(dir, rel string) (Listing, error) {
	entries, err := ReadListing(dir)
	if err != nil {
		return Listing{}, err
	}
	return Listing{
		Path:    rel,
		Root:    rel == "",
		Entries: entries,
	}, nil
}

// requestedRel cleans a decoded request path into the slash separated form
// used for Listing.Path, "" for the root. Callers resolve rawPath first, so
// the cleaned path never climbs above the root.
func requestedRel(rawPath string) string {
	return strings.TrimPrefix(path.Clean("/"+rawPath), "/")
}

// RenderListing writes l as a self-contained HTML document.
func RenderListing(w io.Writer, l Listing) error {
	var b strings.Builder

	b.WriteString("<!DOCTYPE html>\n<html>\n<head><meta charset=\"utf-8\"><title>Simple File Server</title></head>\n<body>\n")
	fmt.Fprintf(&b, "<h2>Index of /%s</h2>\n<ul>\n", html.EscapeString(l.Path))

	if !l.Root {
		b.WriteString("<li><a href=\"../\">[..] Parent Directory</a></li>\n")
	}

	for _, e := range l.Entries {
		name := html.EscapeString(e.Name)
		href := html.EscapeString(e.Href())
		if e.IsDir() {
			fmt.Fprintf(&b, "<li>[DIR] <a href=\"%s\">%s/</a></li>\n", href, name)
		} else {
			fmt.Fprintf(&b, "<li>[FILE] <a href=\"%s\">%s</a></li>\n", href, name)
		}
	}

	if len(l.Entries) == 0 {
		b.WriteString("<li>No files available</li>\n")
	}

	b.WriteString("</ul>\n</body>\n</html>\n")

	_, err := io.WriteString(w, b.String())
	return err
}

// escapeName percent-encodes everything outside the unreserved set so a
// name can never be read as a scheme, query or path separator.
func escapeName(name string) string {
	return strings.ReplaceAll(url.QueryEscape(name), "+", "%20")
}
