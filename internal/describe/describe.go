// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package describe captions pictures with a vision-language model and
// attaches the results to the document as description annotations.
package describe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/png"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/pdiddy/docling-report/internal/captioncache"
	"github.com/pdiddy/docling-report/pkg/doctree"
)

// Describer produces a free-text description of a PNG image.
type Describer interface {
	Describe(ctx context.Context, png []byte) (string, error)
}

// CachedDescriber serves descriptions from a caption cache and falls back
// to the wrapped describer on a miss.
type CachedDescriber struct {
	next   Describer
	store  *captioncache.Store
	model  string
	prompt string
	log    logrus.FieldLogger
}

// NewCachedDescriber wraps next. model and prompt are part of the cache
// key so changing either invalidates earlier entries.
func NewCachedDescriber(next Describer, store *captioncache.Store, model, prompt string, log logrus.FieldLogger) *CachedDescriber {
	return &CachedDescriber{next: next, store: store, model: model, prompt: prompt, log: log}
}

// Describe implements Describer. Cache read and write failures are logged
// and do not fail the call.
func (c *CachedDescriber) Describe(ctx context.Context, img []byte) (string, error) {
	key := captioncache.KeyFor(img, c.model, c.prompt)
	text, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.log.WithError(err).Warn("caption cache lookup failed")
	}
	if ok {
		c.log.WithField("image_sha", key.ImageSHA[:12]).Debug("caption cache hit")
		return text, nil
	}

	text, err = c.next.Describe(ctx, img)
	if err != nil {
		return "", err
	}
	if err := c.store.Put(ctx, key, text); err != nil {
		c.log.WithError(err).Warn("caption cache write failed")
	}
	return text, nil
}

// Annotate captions every picture of doc that has a bitmap and no
// description yet, appending a description annotation labelled with
// provenance. Pictures without a bitmap are skipped. A describer error
// stops the walk and is returned. It returns the number of pictures
// annotated.
func Annotate(ctx context.Context, doc *doctree.Document, d Describer, provenance string, log logrus.FieldLogger) (int, error) {
	var n int
	for i, pic := range doc.Pictures {
		index := i + 1
		if len(pic.Descriptions()) > 0 {
			continue
		}
		img, err := pic.Bitmap(doc)
		if errors.Is(err, doctree.ErrNoBitmap) {
			log.WithField("picture", index).Debug("picture has no bitmap, not describing")
			continue
		}
		if err != nil {
			log.WithError(err).WithField("picture", index).Warn("could not read picture bitmap, not describing")
			continue
		}

		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return n, fmt.Errorf("encoding picture %d: %w", index, err)
		}

		text, err := d.Describe(ctx, buf.Bytes())
		if err != nil {
			return n, fmt.Errorf("describing picture %d: %w", index, err)
		}
		pic.Annotations = append(pic.Annotations, doctree.Annotation{
			Kind:       doctree.AnnotationDescription,
			Text:       strings.TrimSpace(text),
			Provenance: provenance,
		})
		n++
		log.WithField("picture", index).Debug("picture described")
	}
	return n, nil
}
