// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package convert turns a source document into a doctree.Document through
// one of several docling backends: a docling-serve endpoint, the docling
// CLI in a container, or an in-process PDF extractor.
package convert

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/pdiddy/docling-report/internal/container"
	"github.com/pdiddy/docling-report/pkg/doctree"
	"github.com/pdiddy/docling-report/pkg/types"
)

// ErrRemoteServicesDisabled is returned when a captioning backend reached
// over the network is configured but remote services are not enabled.
var ErrRemoteServicesDisabled = errors.New("remote services are disabled: enable them to use an API picture-description backend")

// ErrInvalidOptions wraps every other pipeline option problem.
var ErrInvalidOptions = errors.New("invalid pipeline options")

// Converter transforms a source document into a document tree.
type Converter interface {
	// Name identifies the backend in logs.
	Name() string

	// Convert reads source (a local path or an http(s) URL) and returns the
	// converted document.
	Convert(ctx context.Context, source string, opts types.PipelineOptions) (*doctree.Document, error)
}

// PictureDescriber is implemented by converters that attach picture
// descriptions themselves when opts.DoPictureDescription is set.
type PictureDescriber interface {
	DescribesPictures() bool
}

// DescribesPictures reports whether c annotates pictures on its own.
func DescribesPictures(c Converter) bool {
	pd, ok := c.(PictureDescriber)
	return ok && pd.DescribesPictures()
}

// Validate checks opts before any conversion starts.
func Validate(opts types.PipelineOptions) error {
	if opts.ImagesScale <= 0 {
		return fmt.Errorf("%w: images scale must be positive, got %g", ErrInvalidOptions, opts.ImagesScale)
	}
	if !opts.DoPictureDescription {
		return nil
	}

	pd := opts.PictureDescription
	switch pd.Backend {
	case types.DescriptionAPI:
		if !opts.EnableRemoteServices {
			return ErrRemoteServicesDisabled
		}
		if pd.API.URL == "" {
			return fmt.Errorf("%w: picture description URL is empty", ErrInvalidOptions)
		}
		if !IsURL(pd.API.URL) {
			return fmt.Errorf("%w: picture description URL %q is not an absolute http(s) URL", ErrInvalidOptions, pd.API.URL)
		}
		if pd.API.Model == "" {
			return fmt.Errorf("%w: picture description model is empty", ErrInvalidOptions)
		}
		if pd.API.Timeout < 0 {
			return fmt.Errorf("%w: picture description timeout is negative", ErrInvalidOptions)
		}
	case types.DescriptionVLM:
		if pd.VLM.RepoID == "" {
			return fmt.Errorf("%w: local VLM repo id is empty", ErrInvalidOptions)
		}
	default:
		return fmt.Errorf("%w: unknown picture description backend %q", ErrInvalidOptions, pd.Backend)
	}
	return nil
}

// ForBackend builds the converter selected by cfg.Backend.
func ForBackend(cfg types.ConverterConfig, log logrus.FieldLogger) (Converter, error) {
	switch cfg.Backend {
	case types.BackendServe, "":
		return NewServeConverter(cfg, log), nil
	case types.BackendContainer:
		rt, err := container.DetectRuntime()
		if err != nil {
			return nil, err
		}
		return NewContainerConverter(rt, cfg.Image, log)
	case types.BackendNative:
		return NewNativeConverter(log), nil
	default:
		return nil, fmt.Errorf("unknown conversion backend %q", cfg.Backend)
	}
}

// IsURL reports whether source is an http(s) URL rather than a local path.
func IsURL(source string) bool {
	u, err := url.Parse(source)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// stem returns the file name of a local source without its .pdf extension,
// the way docling names converted documents.
func stem(source string) string {
	base := filepath.Base(source)
	if base == "." || base == "/" {
		return "document"
	}
	if ext := filepath.Ext(base); strings.EqualFold(ext, ".pdf") {
		return strings.TrimSuffix(base, ext)
	}
	return base
}

// fillProvenance sets the provenance of description annotations that came
// back without one.
func fillProvenance(doc *doctree.Document, provenance string) {
	for _, p := range doc.Pictures {
		for i := range p.Annotations {
			a := &p.Annotations[i]
			if a.IsDescription() && a.Provenance == "" {
				a.Provenance = provenance
			}
		}
	}
}
