// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package report writes rendered Markdown fragments to the output
// directory. Each run replaces the previous report; an advisory lock keeps
// two runs from writing the same directory at once.
package report

import (
	"bytes"
	"errors"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

const (
	// FullReportName is the file written by the full document report.
	FullReportName = "full_document_report.md"
	// PicturesReportName is the file written by the picture-only report.
	PicturesReportName = "picture_description.md"

	lockName = ".docling-report.lock"

	// separator joins fragments with one blank line.
	separator = "\n\n"
)

// ErrLocked is returned when another run holds the output directory.
var ErrLocked = errors.New("output directory is locked by another run")

// Dir is an output directory held for the duration of a run.
type Dir struct {
	path string
	lock *flock.Flock
}

// Open creates dir (and parents) if needed and takes its lock. Callers must
// Close the returned Dir.
func Open(dir string) (*Dir, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory %s: %w", dir, err)
	}
	lock := flock.New(filepath.Join(dir, lockName))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("locking %s: %w", dir, err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrLocked, dir)
	}
	return &Dir{path: dir, lock: lock}, nil
}

// Path returns the directory path.
func (d *Dir) Path() string { return d.path }

// Close releases the lock and removes the lock file.
func (d *Dir) Close() error {
	if err := d.lock.Unlock(); err != nil {
		return fmt.Errorf("unlocking %s: %w", d.path, err)
	}
	if err := os.Remove(d.lock.Path()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing lock file: %w", err)
	}
	return nil
}

// Join concatenates fragments with a blank line between them.
func Join(fragments []string) string {
	return strings.Join(fragments, separator)
}

// Write joins fragments and writes them to name inside the directory,
// truncating any previous report. It returns the written path.
func (d *Dir) Write(name string, fragments []string) (string, error) {
	path := filepath.Join(d.path, name)
	if err := os.WriteFile(path, []byte(Join(fragments)), 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	return path, nil
}

// WriteHTML renders fragments as Markdown to HTML and writes the result
// next to the Markdown report, swapping the extension to .html.
func (d *Dir) WriteHTML(name string, fragments []string) (string, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))

	var body bytes.Buffer
	if err := md.Convert([]byte(Join(fragments)), &body); err != nil {
		return "", fmt.Errorf("rendering HTML: %w", err)
	}

	title := strings.TrimSuffix(name, filepath.Ext(name))
	var page bytes.Buffer
	fmt.Fprintf(&page, "<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>%s</title>\n</head>\n<body>\n", html.EscapeString(title))
	page.Write(body.Bytes())
	page.WriteString("</body>\n</html>\n")

	path := filepath.Join(d.path, title+".html")
	if err := os.WriteFile(path, page.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	return path, nil
}
