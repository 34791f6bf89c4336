// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/pdiddy/docling-report/internal/httputil"
	"github.com/pdiddy/docling-report/pkg/doctree"
	"github.com/pdiddy/docling-report/pkg/types"
)

const (
	convertPath = "/v1/convert/source"

	statusSuccess        = "success"
	statusPartialSuccess = "partial_success"

	// maxErrorBody bounds how much of a failed response ends up in an error.
	maxErrorBody = 4 << 10
)

// ServeConverter posts sources to a docling-serve instance and reads back
// the DoclingDocument JSON.
type ServeConverter struct {
	baseURL   string
	apiKey    string
	userAgent string
	client    *http.Client
	log       logrus.FieldLogger
}

// NewServeConverter creates a converter for the docling-serve endpoint in cfg.
func NewServeConverter(cfg types.ConverterConfig, log logrus.FieldLogger) *ServeConverter {
	base := cfg.ServeURL
	if base == "" {
		base = types.DefaultServeURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = types.DefaultConvertTimeout
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = types.DefaultUserAgent
	}
	return &ServeConverter{
		baseURL:   strings.TrimRight(base, "/"),
		apiKey:    cfg.APIKey,
		userAgent: ua,
		client:    &http.Client{Timeout: timeout},
		log:       log,
	}
}

// Name implements Converter.
func (s *ServeConverter) Name() string { return string(types.BackendServe) }

// DescribesPictures implements PictureDescriber: docling-serve runs the
// picture description stage itself.
func (s *ServeConverter) DescribesPictures() bool { return true }

type serveRequest struct {
	Options serveOptions  `json:"options"`
	Sources []serveSource `json:"sources"`
}

type serveOptions struct {
	ToFormats               []string               `json:"to_formats"`
	DoOCR                   bool                   `json:"do_ocr"`
	DoTableStructure        bool                   `json:"do_table_structure"`
	IncludeImages           bool                   `json:"include_images"`
	ImagesScale             float64                `json:"images_scale"`
	ImageExportMode         string                 `json:"image_export_mode"`
	DoPictureDescription    bool                   `json:"do_picture_description"`
	PictureDescriptionAPI   *serveDescriptionAPI   `json:"picture_description_api,omitempty"`
	PictureDescriptionLocal *serveDescriptionLocal `json:"picture_description_local,omitempty"`
}

type serveDescriptionAPI struct {
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
	Params  map[string]any    `json:"params"`
	Timeout float64           `json:"timeout"`
	Prompt  string            `json:"prompt"`
}

type serveDescriptionLocal struct {
	RepoID string `json:"repo_id"`
	Prompt string `json:"prompt"`
}

type serveSource struct {
	Kind         string `json:"kind"`
	URL          string `json:"url,omitempty"`
	Base64String string `json:"base64_string,omitempty"`
	Filename     string `json:"filename,omitempty"`
}

type serveError struct {
	ComponentType string `json:"component_type"`
	ModuleName    string `json:"module_name"`
	ErrorMessage  string `json:"error_message"`
}

type serveResponse struct {
	Document struct {
		Filename    string          `json:"filename"`
		JSONContent json.RawMessage `json:"json_content"`
	} `json:"document"`
	Status         string       `json:"status"`
	Errors         []serveError `json:"errors"`
	ProcessingTime float64      `json:"processing_time"`
}

// requestOptions maps pipeline options onto the docling-serve request schema.
func requestOptions(opts types.PipelineOptions) serveOptions {
	o := serveOptions{
		ToFormats:            []string{"json"},
		DoOCR:                opts.DoOCR,
		DoTableStructure:     opts.DoTableStructure,
		IncludeImages:        opts.GeneratePictureImages,
		ImagesScale:          opts.ImagesScale,
		ImageExportMode:      "embedded",
		DoPictureDescription: opts.DoPictureDescription,
	}
	if !opts.DoPictureDescription {
		return o
	}
	pd := opts.PictureDescription
	switch pd.Backend {
	case types.DescriptionAPI:
		api := &serveDescriptionAPI{
			URL:     pd.API.URL,
			Params:  pd.API.Params(),
			Timeout: pd.API.Timeout.Seconds(),
			Prompt:  pd.API.Prompt,
		}
		if pd.API.APIKey != "" {
			api.Headers = map[string]string{"Authorization": "Bearer " + pd.API.APIKey}
		}
		o.PictureDescriptionAPI = api
	case types.DescriptionVLM:
		o.PictureDescriptionLocal = &serveDescriptionLocal{RepoID: pd.VLM.RepoID, Prompt: pd.VLM.Prompt}
	}
	return o
}

func sourceFor(source string) (serveSource, error) {
	if IsURL(source) {
		return serveSource{Kind: "http", URL: source}, nil
	}
	data, err := os.ReadFile(source)
	if err != nil {
		return serveSource{}, fmt.Errorf("reading source: %w", err)
	}
	return serveSource{
		Kind:         "file",
		Base64String: base64.StdEncoding.EncodeToString(data),
		Filename:     filepath.Base(source),
	}, nil
}

// Convert implements Converter.
func (s *ServeConverter) Convert(ctx context.Context, source string, opts types.PipelineOptions) (*doctree.Document, error) {
	src, err := sourceFor(source)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(serveRequest{
		Options: requestOptions(opts),
		Sources: []serveSource{src},
	})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+convertPath, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", s.userAgent)
	if s.apiKey != "" {
		req.Header.Set("X-Api-Key", s.apiKey)
	}

	s.log.WithFields(logrus.Fields{"url": s.baseURL + convertPath, "kind": src.Kind}).Debug("posting to docling-serve")

	resp, err := httputil.DoWithRetry(ctx, s.client, req, 0, s.log)
	if err != nil {
		return nil, fmt.Errorf("calling docling-serve: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("docling-serve returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out serveResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding docling-serve response: %w", err)
	}

	switch out.Status {
	case statusSuccess:
	case statusPartialSuccess:
		s.log.WithField("errors", joinErrors(out.Errors)).Warn("docling-serve converted the document partially")
	default:
		return nil, fmt.Errorf("docling-serve conversion %s: %s", out.Status, joinErrors(out.Errors))
	}

	if len(out.Document.JSONContent) == 0 || string(out.Document.JSONContent) == "null" {
		return nil, fmt.Errorf("docling-serve response has no JSON document")
	}
	doc, err := doctree.Decode(bytes.NewReader(out.Document.JSONContent))
	if err != nil {
		return nil, err
	}
	if opts.DoPictureDescription {
		fillProvenance(doc, opts.PictureDescription.Provenance())
	}

	s.log.WithFields(logrus.Fields{
		"pictures":        len(doc.Pictures),
		"tables":          len(doc.Tables),
		"processing_time": out.ProcessingTime,
	}).Info("docling-serve conversion complete")
	return doc, nil
}

func joinErrors(errs []serveError) string {
	if len(errs) == 0 {
		return "no error details"
	}
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.ErrorMessage
		if e.ModuleName != "" {
			msgs[i] = e.ModuleName + ": " + e.ErrorMessage
		}
	}
	return strings.Join(msgs, "; ")
}
