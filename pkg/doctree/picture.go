// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package doctree

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/url"
	"os"
	"strconv"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// AnnotationDescription marks a free-text picture description.
const AnnotationDescription = "description"

// ErrNoBitmap is returned when a picture has neither an embedded image nor
// a page image it can be cropped from.
var ErrNoBitmap = errors.New("picture has no bitmap")

// Annotation is an enrichment attached to a picture. Description records
// carry a caption text and the provenance of the model that produced it;
// other kinds (classification, molecule, ...) are kept but not rendered.
type Annotation struct {
	Kind       string `json:"kind" yaml:"kind"`
	Text       string `json:"text,omitempty" yaml:"text,omitempty"`
	Provenance string `json:"provenance,omitempty" yaml:"provenance,omitempty"`
}

// IsDescription reports whether the annotation is a picture description.
func (a Annotation) IsDescription() bool { return a.Kind == AnnotationDescription }

// PictureItem is a figure, chart or photo found in the document.
type PictureItem struct {
	NodeItem
	Prov        []ProvenanceItem `json:"prov,omitempty" yaml:"prov,omitempty"`
	Captions    []RefItem        `json:"captions,omitempty" yaml:"captions,omitempty"`
	Annotations []Annotation     `json:"annotations" yaml:"annotations"`
	Image       *ImageRef        `json:"image,omitempty" yaml:"image,omitempty"`
}

func (*PictureItem) Kind() Kind { return KindPicture }

// CaptionText concatenates the texts of the picture's caption items.
// Captions that cannot be resolved or are not text are ignored.
func (p *PictureItem) CaptionText(d *Document) string {
	var b strings.Builder
	for _, c := range p.Captions {
		item, err := d.Resolve(c.Ref)
		if err != nil {
			continue
		}
		if t, ok := item.(*TextItem); ok {
			b.WriteString(t.Text)
		}
	}
	return b.String()
}

// Descriptions returns the description annotations in order.
func (p *PictureItem) Descriptions() []Annotation {
	var out []Annotation
	for _, a := range p.Annotations {
		if a.IsDescription() {
			out = append(out, a)
		}
	}
	return out
}

// Bitmap returns the picture as a decoded image. The embedded image wins;
// otherwise the picture's region is cropped from its page image. It returns
// ErrNoBitmap when neither source exists.
func (p *PictureItem) Bitmap(d *Document) (image.Image, error) {
	if p.Image != nil && p.Image.URI != "" {
		return decodeImageURI(p.Image.URI)
	}
	if len(p.Prov) == 0 || d.Pages == nil {
		return nil, ErrNoBitmap
	}

	prov := p.Prov[0]
	page, ok := d.Pages[strconv.Itoa(prov.PageNo)]
	if !ok || page.Image == nil || page.Image.URI == "" {
		return nil, ErrNoBitmap
	}
	pageImg, err := decodeImageURI(page.Image.URI)
	if err != nil {
		return nil, fmt.Errorf("page %d image: %w", prov.PageNo, err)
	}
	return cropToBox(pageImg, page.Size, prov.BBox)
}

// ImageBytes returns the raw encoded bytes of an image URI together with its
// media type.
func ImageBytes(uri string) ([]byte, string, error) {
	if rest, ok := strings.CutPrefix(uri, "data:"); ok {
		meta, payload, ok := strings.Cut(rest, ",")
		if !ok {
			return nil, "", fmt.Errorf("malformed data URI")
		}
		mimetype, isBase64 := strings.CutSuffix(meta, ";base64")
		if !isBase64 {
			data, err := url.PathUnescape(payload)
			return []byte(data), mimetype, err
		}
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, "", fmt.Errorf("decoding base64 image: %w", err)
		}
		return data, mimetype, nil
	}

	path := uri
	if u, err := url.Parse(uri); err == nil && u.Scheme == "file" {
		path = u.Path
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("reading image %s: %w", path, err)
	}
	return data, "", nil
}

// DataURI encodes data as a base64 data URI.
func DataURI(mimetype string, data []byte) string {
	return "data:" + mimetype + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func decodeImageURI(uri string) (image.Image, error) {
	data, _, err := ImageBytes(uri)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	return img, nil
}

type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

// cropToBox cuts bbox (page coordinates) out of a rendered page image.
func cropToBox(pageImg image.Image, pageSize Size, bbox BoundingBox) (image.Image, error) {
	if pageSize.Width <= 0 || pageSize.Height <= 0 {
		return nil, fmt.Errorf("page has no size")
	}
	bounds := pageImg.Bounds()
	sx := float64(bounds.Dx()) / pageSize.Width
	sy := float64(bounds.Dy()) / pageSize.Height

	top, bottom := bbox.T, bbox.B
	if bbox.CoordOrigin == "" || strings.EqualFold(bbox.CoordOrigin, "BOTTOMLEFT") {
		top, bottom = pageSize.Height-bbox.T, pageSize.Height-bbox.B
	}
	if top > bottom {
		top, bottom = bottom, top
	}

	r := image.Rect(
		bounds.Min.X+int(bbox.L*sx), bounds.Min.Y+int(top*sy),
		bounds.Min.X+int(bbox.R*sx), bounds.Min.Y+int(bottom*sy),
	).Intersect(bounds)
	if r.Empty() {
		return nil, fmt.Errorf("bounding box outside page image")
	}

	si, ok := pageImg.(subImager)
	if !ok {
		return nil, fmt.Errorf("page image type %T cannot be cropped", pageImg)
	}
	return si.SubImage(r), nil
}
