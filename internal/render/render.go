// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package render walks a converted document in reading order and turns it
// into Markdown fragments, saving picture bitmaps next to the report.
// Failures on a single table or picture are logged and skipped so the rest
// of the document still renders.
package render

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/pdiddy/docling-report/pkg/doctree"
)

// maxHeadingLevel is the deepest Markdown heading.
const maxHeadingLevel = 6

// PicturesTitle heads the picture-only report.
const PicturesTitle = "Picture Description"

// Result is the output of a rendering walk.
type Result struct {
	// Fragments are joined with a blank line by the output writer.
	Fragments []string

	// Images lists the files written to the output directory, in order.
	Images []string

	// TablesSkipped and ImagesFailed count per-item failures.
	TablesSkipped int
	ImagesFailed  int
}

// Renderer renders documents into one output directory.
type Renderer struct {
	outputDir string
	log       logrus.FieldLogger
}

// New returns a renderer that saves pictures into outputDir.
func New(outputDir string, log logrus.FieldLogger) *Renderer {
	return &Renderer{outputDir: outputDir, log: log}
}

// Report renders the whole document. The first fragment is a title made
// from the source file name, followed by every body item in order.
func (r *Renderer) Report(doc *doctree.Document, source string) (Result, error) {
	res := Result{Fragments: []string{fmt.Sprintf("# %s\n", SourceName(source))}}

	err := doc.Iterate(func(item doctree.Item, level int) bool {
		switch it := item.(type) {
		case *doctree.TextItem:
			res.Fragments = append(res.Fragments, textFragment(it, level))
		case *doctree.TableItem:
			md, err := r.table(it)
			if err != nil {
				r.log.WithError(err).WithField("table", it.SelfRef).Error("could not convert table")
				res.TablesSkipped++
				return true
			}
			res.Fragments = append(res.Fragments, "\n"+md+"\n")
		case *doctree.PictureItem:
			r.picture(doc, it, &res)
		}
		return true
	})
	if err != nil {
		return res, fmt.Errorf("walking document: %w", err)
	}
	return res, nil
}

// Pictures renders only the pictures, in document picture order, under a
// fixed title.
func (r *Renderer) Pictures(doc *doctree.Document) Result {
	res := Result{Fragments: []string{fmt.Sprintf("# %s\n", PicturesTitle)}}
	for _, pic := range doc.Pictures {
		r.picture(doc, pic, &res)
	}
	return res
}

func textFragment(t *doctree.TextItem, level int) string {
	if !t.IsSectionHeader() {
		return t.Text
	}
	return fmt.Sprintf("\n%s %s\n", strings.Repeat("#", HeadingLevel(level)), t.Text)
}

// HeadingLevel maps a walk depth to a Markdown heading level.
func HeadingLevel(level int) int {
	return min(max(level+1, 1), maxHeadingLevel)
}

func (r *Renderer) table(t *doctree.TableItem) (string, error) {
	cols, rows, err := t.ExportGrid()
	if err != nil {
		return "", err
	}
	return PipeTable(cols, rows)
}

// ImageName is the file name of the index-th picture (1-based).
func ImageName(index int) string {
	return fmt.Sprintf("image_%d.png", index)
}

func (r *Renderer) picture(doc *doctree.Document, pic *doctree.PictureItem, res *Result) {
	index := doc.PictureIndex(pic)
	name := ImageName(index)
	log := r.log.WithFields(logrus.Fields{"picture": index, "ref": pic.SelfRef})

	img, err := pic.Bitmap(doc)
	switch {
	case errors.Is(err, doctree.ErrNoBitmap):
		log.Debug("picture has no bitmap")
	case err != nil:
		log.WithError(err).Error("could not save image")
		res.ImagesFailed++
	default:
		if err := savePNG(filepath.Join(r.outputDir, name), img); err != nil {
			log.WithError(err).Error("could not save image")
			res.ImagesFailed++
			break
		}
		res.Images = append(res.Images, name)
		res.Fragments = append(res.Fragments, fmt.Sprintf("\n![Image %d](%s)", index, name))
	}

	if caption := strings.TrimSpace(pic.CaptionText(doc)); caption != "" {
		res.Fragments = append(res.Fragments, fmt.Sprintf("\n*Original Caption: %s*\n", caption))
	}
	for _, a := range pic.Descriptions() {
		res.Fragments = append(res.Fragments,
			fmt.Sprintf("**VLM Description (%s):** %s\n", a.Provenance, strings.TrimSpace(a.Text)))
	}
}

// savePNG writes img to path, replacing any existing file.
func savePNG(dst string, img image.Image) error {
	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encoding %s: %w", dst, err)
	}
	return f.Close()
}

// SourceName returns the file name part of a local path or URL.
func SourceName(source string) string {
	if u, err := url.Parse(source); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		if name := path.Base(u.Path); name != "." && name != "/" {
			return name
		}
		return u.Host
	}
	return filepath.Base(source)
}
