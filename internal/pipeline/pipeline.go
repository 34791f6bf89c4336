// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline runs one report end to end: convert the source, caption
// its pictures when the converter does not, render Markdown and write the
// report into the output directory.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pdiddy/docling-report/internal/captioncache"
	"github.com/pdiddy/docling-report/internal/convert"
	"github.com/pdiddy/docling-report/internal/describe"
	"github.com/pdiddy/docling-report/internal/render"
	"github.com/pdiddy/docling-report/internal/report"
	"github.com/pdiddy/docling-report/pkg/doctree"
	"github.com/pdiddy/docling-report/pkg/types"
)

// Mode selects which report is produced.
type Mode string

const (
	// ModeReport renders the whole document.
	ModeReport Mode = "report"
	// ModePictures renders only the pictures with their descriptions.
	ModePictures Mode = "pictures"
)

// ErrLocalVLMUnsupported is returned when a local vision-language model is
// requested from a converter that cannot run one.
var ErrLocalVLMUnsupported = errors.New("local VLM picture description is only available with the serve backend")

// Request describes one run.
type Request struct {
	Mode    Mode
	Source  string
	Options types.PipelineOptions
	Output  types.OutputConfig
}

// Deps holds the collaborators of a run.
type Deps struct {
	Converter convert.Converter
	Log       logrus.FieldLogger

	// NewDescriber builds the API describer. Nil means describe.NewAPIDescriber.
	NewDescriber func(types.PictureDescriptionAPIOptions) describe.Describer
}

// Result summarizes a finished run.
type Result struct {
	ReportPath    string
	HTMLPath      string
	Images        int
	Described     int
	TablesSkipped int
	ImagesFailed  int
}

// Run executes req. It is the error boundary of the program: every failure,
// including a panic, comes back as an error with context.
func Run(ctx context.Context, deps Deps, req Request) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			deps.Log.WithField("stack", string(debug.Stack())).Debug("recovered panic")
			err = fmt.Errorf("pipeline panic: %v", r)
		}
	}()

	if err := convert.Validate(req.Options); err != nil {
		return res, err
	}
	describeLocally := req.Options.DoPictureDescription && !convert.DescribesPictures(deps.Converter)
	if describeLocally && req.Options.PictureDescription.Backend == types.DescriptionVLM {
		return res, fmt.Errorf("%w (backend %s)", ErrLocalVLMUnsupported, deps.Converter.Name())
	}

	dir, err := report.Open(req.Output.Dir)
	if err != nil {
		return res, err
	}
	defer func() {
		if cerr := dir.Close(); cerr != nil {
			deps.Log.WithError(cerr).Warn("could not release output directory")
		}
	}()

	log := deps.Log.WithFields(logrus.Fields{
		"source":  req.Source,
		"backend": deps.Converter.Name(),
	})

	start := time.Now()
	log.Info("converting document")
	doc, err := deps.Converter.Convert(ctx, req.Source, req.Options)
	if err != nil {
		return res, fmt.Errorf("converting %s: %w", req.Source, err)
	}
	log.WithFields(logrus.Fields{
		"pictures": len(doc.Pictures),
		"tables":   len(doc.Tables),
		"elapsed":  time.Since(start).Round(time.Millisecond),
	}).Info("document converted")

	if describeLocally {
		n, err := annotate(ctx, deps, req, doc, log)
		if err != nil {
			return res, err
		}
		res.Described = n
	}

	r := render.New(dir.Path(), log)
	var rendered render.Result
	name := report.FullReportName
	switch req.Mode {
	case ModePictures:
		name = report.PicturesReportName
		rendered = r.Pictures(doc)
	default:
		rendered, err = r.Report(doc, req.Source)
		if err != nil {
			return res, err
		}
	}
	res.Images = len(rendered.Images)
	res.TablesSkipped = rendered.TablesSkipped
	res.ImagesFailed = rendered.ImagesFailed

	res.ReportPath, err = dir.Write(name, rendered.Fragments)
	if err != nil {
		return res, err
	}
	if req.Output.HTML {
		res.HTMLPath, err = dir.WriteHTML(name, rendered.Fragments)
		if err != nil {
			return res, err
		}
	}

	log.WithFields(logrus.Fields{
		"report":         res.ReportPath,
		"images":         res.Images,
		"tables_skipped": res.TablesSkipped,
		"images_failed":  res.ImagesFailed,
	}).Info("report written")
	return res, nil
}

func annotate(ctx context.Context, deps Deps, req Request, doc *doctree.Document, log logrus.FieldLogger) (int, error) {
	api := req.Options.PictureDescription.API
	var d describe.Describer
	if deps.NewDescriber != nil {
		d = deps.NewDescriber(api)
	} else {
		d = describe.NewAPIDescriber(api)
	}

	if req.Output.CaptionCache != "" {
		store, err := captioncache.Open(req.Output.CaptionCache)
		if err != nil {
			return 0, err
		}
		defer store.Close()
		d = describe.NewCachedDescriber(d, store, api.Model, api.Prompt, log)
	}

	n, err := describe.Annotate(ctx, doc, d, req.Options.PictureDescription.Provenance(), log)
	if err != nil {
		return n, err
	}
	log.WithField("described", n).Info("pictures described")
	return n, nil
}
