// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	pdflib "github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/sirupsen/logrus"

	"github.com/pdiddy/docling-report/pkg/doctree"
	"github.com/pdiddy/docling-report/pkg/types"
)

// ErrUnsupportedSource is returned when the native backend is given
// anything other than a local PDF.
var ErrUnsupportedSource = errors.New("native backend reads local PDF files only")

// pageText is the plain text and media box of one PDF page.
type pageText struct {
	Number int
	Size   doctree.Size
	Text   string
}

// pdfReader abstracts the two PDF libraries for testing.
type pdfReader interface {
	Pages(path string) ([]pageText, error)
	ExtractImages(path string, page int, dir string) error
}

type libReader struct{}

func (libReader) Pages(path string) ([]pageText, error) {
	f, r, err := pdflib.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer f.Close()

	pages := make([]pageText, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		pt := pageText{Number: i, Size: mediaBox(p.V.Key("MediaBox"))}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("reading text of page %d: %w", i, err)
		}
		pt.Text = text
		pages = append(pages, pt)
	}
	return pages, nil
}

func (libReader) ExtractImages(path string, page int, dir string) error {
	conf := model.NewDefaultConfiguration()
	return api.ExtractImagesFile(path, dir, []string{strconv.Itoa(page)}, conf)
}

func mediaBox(v pdflib.Value) doctree.Size {
	if v.Len() != 4 {
		return doctree.Size{}
	}
	return doctree.Size{
		Width:  v.Index(2).Float64() - v.Index(0).Float64(),
		Height: v.Index(3).Float64() - v.Index(1).Float64(),
	}
}

// NativeConverter builds a document in-process: one text item per
// paragraph and one picture per embedded image. It has no layout model, so
// OCR and table structure are not available.
type NativeConverter struct {
	pdf pdfReader
	log logrus.FieldLogger
}

// NewNativeConverter creates an in-process converter.
func NewNativeConverter(log logrus.FieldLogger) *NativeConverter {
	return &NativeConverter{pdf: libReader{}, log: log}
}

// Name implements Converter.
func (n *NativeConverter) Name() string { return string(types.BackendNative) }

// Convert implements Converter.
func (n *NativeConverter) Convert(ctx context.Context, source string, opts types.PipelineOptions) (*doctree.Document, error) {
	if IsURL(source) || !strings.EqualFold(filepath.Ext(source), ".pdf") {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSource, source)
	}
	if opts.DoOCR {
		n.log.Warn("OCR is not available in the native backend, continuing without it")
	}
	if opts.DoTableStructure {
		n.log.Warn("table structure is not available in the native backend, tables stay plain text")
	}

	pages, err := n.pdf.Pages(source)
	if err != nil {
		return nil, err
	}

	var work string
	if opts.GeneratePictureImages {
		work, err = os.MkdirTemp("", "docling-report-images-*")
		if err != nil {
			return nil, fmt.Errorf("creating image directory: %w", err)
		}
		defer os.RemoveAll(work)
	}

	doc := doctree.New(stem(source))
	for _, p := range pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		doc.Pages[strconv.Itoa(p.Number)] = &doctree.Page{PageNo: p.Number, Size: p.Size}
		prov := []doctree.ProvenanceItem{{PageNo: p.Number}}

		for _, para := range splitParagraphs(p.Text) {
			t := doc.AddText(doctree.LabelText, para, nil)
			t.Prov = prov
		}

		if !opts.GeneratePictureImages {
			continue
		}
		images, err := n.pageImages(source, p.Number, work)
		if err != nil {
			n.log.WithError(err).WithField("page", p.Number).Warn("could not extract images")
			continue
		}
		for _, img := range images {
			pic := doc.AddPicture(img, nil)
			pic.Prov = prov
		}
	}

	n.log.WithFields(logrus.Fields{
		"pages":    len(pages),
		"texts":    len(doc.Texts),
		"pictures": len(doc.Pictures),
	}).Info("native conversion complete")
	return doc, nil
}

// pageImages extracts the images of one page into their own directory so
// the extractor's file naming does not matter. Files that no registered
// decoder understands are skipped.
func (n *NativeConverter) pageImages(source string, page int, work string) ([]*doctree.ImageRef, error) {
	dir := filepath.Join(work, strconv.Itoa(page))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	if err := n.pdf.ExtractImages(source, page, dir); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var refs []*doctree.ImageRef
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			n.log.WithFields(logrus.Fields{"page": page, "file": name}).Debug("skipping undecodable image")
			continue
		}
		mime := "image/" + format
		refs = append(refs, &doctree.ImageRef{
			Mimetype: mime,
			DPI:      72,
			Size:     doctree.Size{Width: float64(cfg.Width), Height: float64(cfg.Height)},
			URI:      doctree.DataURI(mime, data),
		})
	}
	return refs, nil
}

// splitParagraphs breaks page text on blank lines and trims each block.
func splitParagraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var out []string
	for _, block := range strings.Split(text, "\n\n") {
		words := strings.Fields(block)
		if len(words) == 0 {
			continue
		}
		out = append(out, strings.Join(words, " "))
	}
	return out
}
