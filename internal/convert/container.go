// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/pdiddy/docling-report/internal/container"
	"github.com/pdiddy/docling-report/pkg/doctree"
	"github.com/pdiddy/docling-report/pkg/types"
)

const (
	doclingEntrypoint = "docling"
	workMount         = "/work"

	// maxStderrTail bounds the container output quoted in errors.
	maxStderrTail = 2 << 10
)

// ContainerConverter runs the docling CLI inside a docker or podman
// container and decodes the JSON document it writes.
type ContainerConverter struct {
	runtime container.Runtime
	image   string
	log     logrus.FieldLogger
}

// NewContainerConverter creates a converter that uses rt to run image. It
// verifies that the image exists locally before returning.
func NewContainerConverter(rt container.Runtime, image string, log logrus.FieldLogger) (*ContainerConverter, error) {
	if image == "" {
		image = types.DefaultContainerImage
	}
	if err := rt.ImageExists(image); err != nil {
		return nil, fmt.Errorf("docling image not available in %s: %w", rt.Name(), err)
	}
	return &ContainerConverter{runtime: rt, image: image, log: log}, nil
}

// Name implements Converter.
func (c *ContainerConverter) Name() string { return string(types.BackendContainer) }

// cliArgs builds the docling CLI arguments for one source. input is the
// path or URL as seen from inside the container.
func cliArgs(input string, opts types.PipelineOptions) []string {
	args := []string{
		"--from", "pdf",
		"--to", "json",
		"--image-export-mode", "embedded",
		"--images-scale", strconv.FormatFloat(opts.ImagesScale, 'f', -1, 64),
	}
	if opts.DoOCR {
		args = append(args, "--ocr")
	} else {
		args = append(args, "--no-ocr")
	}
	if opts.DoTableStructure {
		args = append(args, "--tables")
	} else {
		args = append(args, "--no-tables")
	}
	if opts.EnableRemoteServices {
		args = append(args, "--enable-remote-services")
	}
	return append(args, "--output", workMount+"/out", input)
}

// Convert implements Converter. Pictures come back without descriptions;
// the caller annotates them afterwards.
func (c *ContainerConverter) Convert(ctx context.Context, source string, opts types.PipelineOptions) (*doctree.Document, error) {
	work, err := os.MkdirTemp("", "docling-report-*")
	if err != nil {
		return nil, fmt.Errorf("creating work directory: %w", err)
	}
	defer os.RemoveAll(work)

	outDir := filepath.Join(work, "out")
	if err := os.MkdirAll(outDir, 0o777); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	// The container user may differ from ours.
	if err := os.Chmod(outDir, 0o777); err != nil {
		return nil, fmt.Errorf("opening output directory: %w", err)
	}

	input := source
	if !IsURL(source) {
		name := filepath.Base(source)
		if err := copyFile(source, filepath.Join(work, name)); err != nil {
			return nil, err
		}
		input = workMount + "/" + name
	}

	spec := container.RunSpec{
		Image:      c.image,
		Entrypoint: doclingEntrypoint,
		Args:       cliArgs(input, opts),
		Mounts:     []container.Mount{{Source: work, Target: workMount}},
	}

	c.log.WithFields(logrus.Fields{
		"runtime": c.runtime.Name(),
		"image":   c.image,
	}).Debug("running docling container")

	var stderr bytes.Buffer
	if err := c.runtime.Run(ctx, spec, io.Discard, &stderr); err != nil {
		if tail := tailOf(stderr.String(), maxStderrTail); tail != "" {
			return nil, fmt.Errorf("%w: %s", err, tail)
		}
		return nil, err
	}

	matches, err := filepath.Glob(filepath.Join(outDir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("listing docling output: %w", err)
	}
	if len(matches) != 1 {
		return nil, fmt.Errorf("expected one JSON document from docling, found %d", len(matches))
	}
	return doctree.Load(matches[0])
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening source: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("staging source: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("staging source: %w", err)
	}
	return out.Close()
}

func tailOf(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
