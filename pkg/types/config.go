// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines the configuration structures shared by the
// docling-report pipeline: converter selection, pipeline options handed to
// the converter, picture-description backends and output settings.
package types

import (
	"fmt"
	"time"
)

// Defaults for the Ollama-backed full report.
const (
	DefaultVLMPrompt      = "Describe this image with as much detail as possible."
	DefaultOllamaModel    = "llava"
	DefaultVLMURL         = "http://localhost:11434/v1/chat/completions"
	DefaultVLMTemperature = 0.2
	DefaultVLMTimeout     = 120 * time.Second
	DefaultImagesScale    = 2.0

	// Defaults for the picture-only report captioned by a local model.
	DefaultLocalVLMRepoID = "ibm-granite/granite-vision-3.3-2b"
	DefaultLocalVLMPrompt = "What is shown in this image?"

	DefaultServeURL        = "http://localhost:5001"
	DefaultContainerImage  = "quay.io/docling-project/docling-serve:latest"
	DefaultConvertTimeout  = 10 * time.Minute
	DefaultUserAgent       = "docling-report/0.1"
	DefaultProvenanceLabel = "Ollama"
)

// HTTPConfig holds shared HTTP settings used by components that make network requests.
type HTTPConfig struct {
	// Timeout bounds a whole request, including the response body.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests.
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// ConversionBackend identifies how the document converter is reached.
type ConversionBackend string

const (
	// BackendServe posts the source to a docling-serve HTTP endpoint.
	BackendServe ConversionBackend = "serve"
	// BackendContainer runs the docling CLI inside a docker or podman container.
	BackendContainer ConversionBackend = "container"
	// BackendNative extracts page text and embedded images in-process.
	BackendNative ConversionBackend = "native"
)

// DescriptionBackend selects where picture descriptions come from.
type DescriptionBackend string

const (
	// DescriptionAPI calls an OpenAI-compatible chat completion endpoint.
	DescriptionAPI DescriptionBackend = "api"
	// DescriptionVLM runs a local vision-language model inside the converter.
	DescriptionVLM DescriptionBackend = "vlm"
)

// PictureDescriptionAPIOptions configures captioning through a remote
// chat-completion endpoint such as Ollama.
type PictureDescriptionAPIOptions struct {
	URL         string        `json:"url" yaml:"url"`
	Model       string        `json:"model" yaml:"model"`
	Temperature float64       `json:"temperature" yaml:"temperature"`
	Prompt      string        `json:"prompt" yaml:"prompt"`
	Timeout     time.Duration `json:"timeout" yaml:"timeout"`

	// Provenance labels every description this backend produces.
	Provenance string `json:"provenance" yaml:"provenance"`

	// APIKey is sent as a bearer token. Ollama ignores it.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
}

// Params returns the request parameters forwarded with every call.
func (o PictureDescriptionAPIOptions) Params() map[string]any {
	return map[string]any{
		"model":       o.Model,
		"temperature": o.Temperature,
	}
}

// PictureDescriptionVLMOptions configures a local model identified by its
// Hugging Face repository.
type PictureDescriptionVLMOptions struct {
	RepoID string `json:"repo_id" yaml:"repo_id"`
	Prompt string `json:"prompt" yaml:"prompt"`
}

// PictureDescriptionOptions selects and configures the captioning backend.
type PictureDescriptionOptions struct {
	Backend DescriptionBackend           `json:"backend" yaml:"backend"`
	API     PictureDescriptionAPIOptions `json:"api" yaml:"api"`
	VLM     PictureDescriptionVLMOptions `json:"vlm" yaml:"vlm"`
}

// Provenance returns the label attached to descriptions from the selected backend.
func (o PictureDescriptionOptions) Provenance() string {
	if o.Backend == DescriptionVLM {
		return o.VLM.RepoID
	}
	if o.API.Provenance != "" {
		return o.API.Provenance
	}
	return fmt.Sprintf("%s (%s)", DefaultProvenanceLabel, o.API.Model)
}

// PipelineOptions is the configuration handed to the converter.
type PipelineOptions struct {
	DoTableStructure      bool    `json:"do_table_structure" yaml:"do_table_structure"`
	DoOCR                 bool    `json:"do_ocr" yaml:"do_ocr"`
	DoPictureDescription  bool    `json:"do_picture_description" yaml:"do_picture_description"`
	GeneratePictureImages bool    `json:"generate_picture_images" yaml:"generate_picture_images"`
	ImagesScale           float64 `json:"images_scale" yaml:"images_scale"`

	// EnableRemoteServices must be set for any captioning backend reached
	// over the network, including an Ollama running on localhost.
	EnableRemoteServices bool `json:"enable_remote_services" yaml:"enable_remote_services"`

	PictureDescription PictureDescriptionOptions `json:"picture_description" yaml:"picture_description"`
}

// OllamaPipelineOptions returns the options of the full report: tables on,
// OCR off, pictures rendered at twice the page scale and captioned by an
// Ollama model.
func OllamaPipelineOptions(model, prompt string) PipelineOptions {
	return PipelineOptions{
		DoTableStructure:      true,
		DoOCR:                 false,
		DoPictureDescription:  true,
		GeneratePictureImages: true,
		ImagesScale:           DefaultImagesScale,
		EnableRemoteServices:  true,
		PictureDescription: PictureDescriptionOptions{
			Backend: DescriptionAPI,
			API: PictureDescriptionAPIOptions{
				URL:         DefaultVLMURL,
				Model:       model,
				Temperature: DefaultVLMTemperature,
				Prompt:      prompt,
				Timeout:     DefaultVLMTimeout,
				Provenance:  fmt.Sprintf("%s (%s)", DefaultProvenanceLabel, model),
			},
		},
	}
}

// LocalVLMPipelineOptions returns the options of the picture-only report,
// captioned by a local vision-language model.
func LocalVLMPipelineOptions(repoID, prompt string) PipelineOptions {
	return PipelineOptions{
		DoTableStructure:      true,
		DoPictureDescription:  true,
		GeneratePictureImages: true,
		ImagesScale:           DefaultImagesScale,
		PictureDescription: PictureDescriptionOptions{
			Backend: DescriptionVLM,
			VLM:     PictureDescriptionVLMOptions{RepoID: repoID, Prompt: prompt},
		},
	}
}

// ConverterConfig selects and configures the conversion backend.
type ConverterConfig struct {
	HTTPConfig `yaml:",inline"`

	Backend ConversionBackend `json:"backend" yaml:"backend"`

	// ServeURL is the base URL of docling-serve (serve backend).
	ServeURL string `json:"serve_url" yaml:"serve_url"`

	// APIKey is sent as X-Api-Key to docling-serve when set.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// Image is the container image carrying the docling CLI (container backend).
	Image string `json:"image" yaml:"image"`
}

// OutputConfig controls what the output writer produces.
type OutputConfig struct {
	Dir string `json:"dir" yaml:"dir"`

	// HTML additionally renders the Markdown report to HTML.
	HTML bool `json:"html" yaml:"html"`

	// CaptionCache is the path of a SQLite caption cache; empty disables it.
	CaptionCache string `json:"caption_cache,omitempty" yaml:"caption_cache,omitempty"`
}

// Config groups everything one run needs.
type Config struct {
	Source    string          `json:"source" yaml:"source"`
	Converter ConverterConfig `json:"converter" yaml:"converter"`
	Pipeline  PipelineOptions `json:"pipeline" yaml:"pipeline"`
	Output    OutputConfig    `json:"output" yaml:"output"`
}
