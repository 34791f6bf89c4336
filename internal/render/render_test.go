// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package render

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/docling-report/pkg/doctree"
)

func pngRef(t *testing.T) *doctree.ImageRef {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 3, 2))
	img.Set(1, 1, color.RGBA{R: 0xff, A: 0xff})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return &doctree.ImageRef{Mimetype: "image/png", URI: doctree.DataURI("image/png", buf.Bytes())}
}

func newRenderer(t *testing.T) (*Renderer, *logtest.Hook, string) {
	t.Helper()
	log, hook := logtest.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	dir := t.TempDir()
	return New(dir, log), hook, dir
}

func errorEntries(hook *logtest.Hook) []*logrus.Entry {
	var out []*logrus.Entry
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.ErrorLevel {
			out = append(out, e)
		}
	}
	return out
}

func TestReport_PlainText(t *testing.T) {
	r, hook, _ := newRenderer(t)
	doc := doctree.New("doc")
	doc.AddText(doctree.LabelParagraph, "First paragraph.", nil)
	doc.AddText(doctree.LabelText, "Second paragraph.", nil)
	doc.AddText(doctree.LabelTitle, "A title stays plain text", nil)

	res, err := r.Report(doc, "/data/in/paper.pdf")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"# paper.pdf\n",
		"First paragraph.",
		"Second paragraph.",
		"A title stays plain text",
	}, res.Fragments)
	assert.Empty(t, errorEntries(hook))
}

func TestReport_SectionHeaders(t *testing.T) {
	r, _, _ := newRenderer(t)
	doc := doctree.New("doc")
	doc.AddHeading("Introduction", 1, nil)
	g := doc.AddGroup(doctree.LabelUnspecified, "section", nil)
	doc.AddHeading("Nested", 2, g)

	res, err := r.Report(doc, "doc.pdf")
	require.NoError(t, err)

	require.Len(t, res.Fragments, 3)
	assert.Equal(t, "\n## Introduction\n", res.Fragments[1])
	assert.Equal(t, "\n### Nested\n", res.Fragments[2])
}

func TestHeadingLevel(t *testing.T) {
	tests := []struct {
		level, want int
	}{
		{0, 1},
		{1, 2},
		{4, 5},
		{5, 6},
		{9, 6},
		{-3, 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HeadingLevel(tt.level), "level %d", tt.level)
	}
}

func TestReport_Table(t *testing.T) {
	r, _, _ := newRenderer(t)
	doc := doctree.New("doc")
	doc.AddText(doctree.LabelText, "before", nil)
	doc.AddTable(doctree.TableFromRows([][]string{
		{"Name", "Qty"},
		{"apple", "3"},
		{"pear", "5"},
	}, true), nil)

	res, err := r.Report(doc, "doc.pdf")
	require.NoError(t, err)

	want := "\n" +
		"| Name  | Qty |\n" +
		"|:------|----:|\n" +
		"| apple |   3 |\n" +
		"| pear  |   5 |" +
		"\n"
	require.Len(t, res.Fragments, 3)
	assert.Equal(t, want, res.Fragments[2])
	assert.Zero(t, res.TablesSkipped)
}

func TestReport_BrokenTableIsOmitted(t *testing.T) {
	r, hook, _ := newRenderer(t)
	doc := doctree.New("doc")
	doc.AddText(doctree.LabelText, "before", nil)
	doc.AddTable(doctree.TableData{}, nil)
	doc.AddText(doctree.LabelText, "after", nil)

	res, err := r.Report(doc, "doc.pdf")
	require.NoError(t, err)

	assert.Equal(t, []string{"# doc.pdf\n", "before", "after"}, res.Fragments)
	assert.Equal(t, 1, res.TablesSkipped)
	entries := errorEntries(hook)
	require.Len(t, entries, 1)
	assert.Equal(t, "could not convert table", entries[0].Message)
}

func TestReport_PictureIndexing(t *testing.T) {
	r, _, dir := newRenderer(t)
	doc := doctree.New("doc")
	doc.AddText(doctree.LabelText, "intro", nil)
	doc.AddPicture(pngRef(t), nil)
	doc.AddTable(doctree.TableFromRows([][]string{{"a"}}, false), nil)
	second := doc.AddPicture(nil, nil)
	doc.AddCaption(second, "  Figure 2: no bitmap  ")
	second.Annotations = append(second.Annotations,
		doctree.Annotation{Kind: doctree.AnnotationDescription, Text: " a diagram \n", Provenance: "Ollama (llava)"},
		doctree.Annotation{Kind: "classification", Provenance: "ignored"},
	)
	doc.AddText(doctree.LabelText, "middle", nil)
	doc.AddPicture(pngRef(t), nil)

	res, err := r.Report(doc, "doc.pdf")
	require.NoError(t, err)

	assert.Equal(t, []string{"image_1.png", "image_3.png"}, res.Images)
	assert.FileExists(t, filepath.Join(dir, "image_1.png"))
	assert.NoFileExists(t, filepath.Join(dir, "image_2.png"))
	assert.FileExists(t, filepath.Join(dir, "image_3.png"))

	assert.Equal(t, []string{
		"# doc.pdf\n",
		"intro",
		"\n![Image 1](image_1.png)",
		"\n| 0 |\n|:--|\n| a |\n",
		"\n*Original Caption: Figure 2: no bitmap*\n",
		"**VLM Description (Ollama (llava)):** a diagram\n",
		"middle",
		"\n![Image 3](image_3.png)",
	}, res.Fragments)
}

func TestReport_UnreadableBitmapKeepsCaption(t *testing.T) {
	r, hook, dir := newRenderer(t)
	doc := doctree.New("doc")
	pic := doc.AddPicture(&doctree.ImageRef{Mimetype: "image/png", URI: doctree.DataURI("image/png", []byte("garbage"))}, nil)
	doc.AddCaption(pic, "Broken figure")

	res, err := r.Report(doc, "doc.pdf")
	require.NoError(t, err)

	assert.Equal(t, 1, res.ImagesFailed)
	assert.Equal(t, []string{"# doc.pdf\n", "\n*Original Caption: Broken figure*\n"}, res.Fragments)
	assert.NoFileExists(t, filepath.Join(dir, "image_1.png"))
	assert.Len(t, errorEntries(hook), 1)
}

func TestReport_SaveFailureKeepsAnnotations(t *testing.T) {
	log, hook := logtest.NewNullLogger()
	r := New(filepath.Join(t.TempDir(), "missing"), log)
	doc := doctree.New("doc")
	pic := doc.AddPicture(pngRef(t), nil)
	pic.Annotations = append(pic.Annotations, doctree.Annotation{Kind: doctree.AnnotationDescription, Text: "cat", Provenance: "p"})

	res, err := r.Report(doc, "doc.pdf")
	require.NoError(t, err)

	assert.Equal(t, []string{"# doc.pdf\n", "**VLM Description (p):** cat\n"}, res.Fragments)
	assert.Empty(t, res.Images)
	assert.Len(t, errorEntries(hook), 1)
}

func TestReport_OverwritesImages(t *testing.T) {
	r, _, dir := newRenderer(t)
	stale := filepath.Join(dir, "image_1.png")
	require.NoError(t, os.WriteFile(stale, []byte("stale content that is not a png"), 0o644))

	doc := doctree.New("doc")
	doc.AddPicture(pngRef(t), nil)

	for i := 0; i < 2; i++ {
		_, err := r.Report(doc, "doc.pdf")
		require.NoError(t, err)
	}

	f, err := os.Open(stale)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 3, 2), img.Bounds())
}

func TestReport_WalkError(t *testing.T) {
	r, _, _ := newRenderer(t)
	doc := doctree.New("doc")
	doc.Body.Children = append(doc.Body.Children, doctree.RefItem{Ref: "#/texts/7"})

	_, err := r.Report(doc, "doc.pdf")
	require.ErrorIs(t, err, doctree.ErrUnresolvedRef)
}

func TestPictures(t *testing.T) {
	r, _, dir := newRenderer(t)
	doc := doctree.New("doc")
	doc.AddText(doctree.LabelText, "ignored in picture mode", nil)
	first := doc.AddPicture(pngRef(t), nil)
	doc.AddCaption(first, "Cover")
	first.Annotations = append(first.Annotations, doctree.Annotation{
		Kind: doctree.AnnotationDescription, Text: "A red dot.", Provenance: "ibm-granite/granite-vision-3.3-2b",
	})
	doc.AddPicture(nil, nil)

	res := r.Pictures(doc)

	assert.Equal(t, []string{
		"# Picture Description\n",
		"\n![Image 1](image_1.png)",
		"\n*Original Caption: Cover*\n",
		"**VLM Description (ibm-granite/granite-vision-3.3-2b):** A red dot.\n",
	}, res.Fragments)
	assert.FileExists(t, filepath.Join(dir, "image_1.png"))
}

func TestSourceName(t *testing.T) {
	tests := []struct {
		source, want string
	}{
		{"paper.pdf", "paper.pdf"},
		{"/tmp/in/report 2024.pdf", "report 2024.pdf"},
		{"https://arxiv.org/pdf/2408.09869", "2408.09869"},
		{"https://example.com/files/a.pdf?dl=1", "a.pdf"},
		{"https://example.com/", "example.com"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SourceName(tt.source), tt.source)
	}
}

func TestPipeTable(t *testing.T) {
	got, err := PipeTable([]string{"Item", "Note", "n"}, [][]string{
		{"a|b", "x\ny", "1.5"},
		{"c", "", "-2"},
	})
	require.NoError(t, err)
	assert.Equal(t, "| Item | Note |   n |\n"+
		"|:-----|:-----|----:|\n"+
		"| a\\|b | x y  | 1.5 |\n"+
		"| c    |      |  -2 |", got)
}

func TestPictures_BlankDescriptionStillRendered(t *testing.T) {
	r, _, _ := newRenderer(t)
	doc := doctree.New("doc")
	pic := doc.AddPicture(nil, nil)
	doc.AddCaption(pic, "   ")
	pic.Annotations = append(pic.Annotations, doctree.Annotation{Kind: doctree.AnnotationDescription, Text: "   ", Provenance: "x"})

	res := r.Pictures(doc)
	assert.Equal(t, []string{"# Picture Description\n", "**VLM Description (x):** \n"}, res.Fragments)
}
