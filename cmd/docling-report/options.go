// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/docling-report/internal/pipeline"
	"github.com/pdiddy/docling-report/internal/secrets"
	"github.com/pdiddy/docling-report/pkg/types"
)

// Configuration keys. Environment variables use the DOCLING_REPORT_ prefix
// with dots replaced by underscores, e.g. DOCLING_REPORT_VLM_MODEL.
const (
	keySource         = "source"
	keyOutputDir      = "output.dir"
	keyHTML           = "output.html"
	keyCaptionCache   = "output.caption_cache"
	keyBackend        = "converter.backend"
	keyServeURL       = "converter.serve_url"
	keyServeAPIKey    = "converter.api_key"
	keyImage          = "converter.image"
	keyConvertTimeout = "converter.timeout"
	keyVLMModel       = "vlm.model"
	keyVLMPrompt      = "vlm.prompt"
	keyVLMURL         = "vlm.url"
	keyVLMTemperature = "vlm.temperature"
	keyVLMTimeout     = "vlm.timeout"
	keyVLMAPIKey      = "vlm.api_key"
	keyVLMRepoID      = "vlm.repo_id"
	keyImagesScale    = "pipeline.images_scale"
	keyOCR            = "pipeline.do_ocr"
	keyTables         = "pipeline.do_table_structure"
	keyRemoteServices = "pipeline.enable_remote_services"
	keyLogLevel       = "log_level"
)

// flagKeys maps command-line flags to configuration keys.
var flagKeys = map[string]string{
	"input":           keySource,
	"output":          keyOutputDir,
	"html":            keyHTML,
	"caption-cache":   keyCaptionCache,
	"backend":         keyBackend,
	"serve-url":       keyServeURL,
	"image":           keyImage,
	"convert-timeout": keyConvertTimeout,
	"ollama-model":    keyVLMModel,
	"vlm-prompt":      keyVLMPrompt,
	"vlm-url":         keyVLMURL,
	"vlm-temperature": keyVLMTemperature,
	"vlm-timeout":     keyVLMTimeout,
	"vlm-repo-id":     keyVLMRepoID,
	"images-scale":    keyImagesScale,
	"ocr":             keyOCR,
	"tables":          keyTables,
	"log-level":       keyLogLevel,
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(keyBackend, string(types.BackendServe))
	v.SetDefault(keyServeURL, types.DefaultServeURL)
	v.SetDefault(keyImage, types.DefaultContainerImage)
	v.SetDefault(keyConvertTimeout, types.DefaultConvertTimeout)
	v.SetDefault(keyVLMURL, types.DefaultVLMURL)
	v.SetDefault(keyVLMTemperature, types.DefaultVLMTemperature)
	v.SetDefault(keyVLMTimeout, types.DefaultVLMTimeout)
	v.SetDefault(keyVLMRepoID, types.DefaultLocalVLMRepoID)
	v.SetDefault(keyImagesScale, types.DefaultImagesScale)
	v.SetDefault(keyOCR, false)
	v.SetDefault(keyTables, true)
	v.SetDefault(keyLogLevel, "info")
}

// addRunFlags registers the flags shared by the report, pictures and config
// commands. The model and prompt default to empty so the mode can pick its
// own defaults.
func addRunFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringP("input", "i", "", "source document: local path or http(s) URL")
	f.StringP("output", "o", "", "output directory for the report and images")
	f.Bool("html", false, "also render the report to HTML")
	f.String("caption-cache", "", "SQLite file caching picture descriptions (disabled when empty)")

	f.String("backend", string(types.BackendServe), "conversion backend: serve, container, or native")
	f.String("serve-url", types.DefaultServeURL, "docling-serve base URL (serve backend)")
	f.String("image", types.DefaultContainerImage, "image carrying the docling CLI (container backend)")
	f.Duration("convert-timeout", types.DefaultConvertTimeout, "timeout for one conversion request")

	f.String("ollama-model", "", fmt.Sprintf("vision model served by Ollama (default %q)", types.DefaultOllamaModel))
	f.String("vlm-prompt", "", "prompt sent with every picture")
	f.String("vlm-url", types.DefaultVLMURL, "OpenAI-compatible chat completion endpoint")
	f.Float64("vlm-temperature", types.DefaultVLMTemperature, "sampling temperature for picture descriptions")
	f.Duration("vlm-timeout", types.DefaultVLMTimeout, "timeout for one picture description")

	f.Float64("images-scale", types.DefaultImagesScale, "scale of rendered page and picture images")
	f.Bool("ocr", false, "run OCR on bitmap content")
	f.Bool("tables", true, "recover table structure")
}

// bindFlags binds the flags of the executing command. Binding at run time
// keeps commands that share flag names from overriding each other.
func bindFlags(v *viper.Viper, cmd *cobra.Command) error {
	for name, key := range flagKeys {
		f := cmd.Flags().Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("binding --%s: %w", name, err)
		}
	}
	return nil
}

// loadConfig resolves the effective configuration of a run in mode.
//
// The report mode captions pictures through an Ollama model. The pictures
// mode uses a local vision-language model unless a model is named, in
// which case it switches to Ollama as well.
func loadConfig(v *viper.Viper, mode pipeline.Mode, sec secrets.Set) types.Config {
	model := v.GetString(keyVLMModel)
	prompt := v.GetString(keyVLMPrompt)

	var opts types.PipelineOptions
	if mode == pipeline.ModePictures && model == "" {
		if prompt == "" {
			prompt = types.DefaultLocalVLMPrompt
		}
		opts = types.LocalVLMPipelineOptions(v.GetString(keyVLMRepoID), prompt)
	} else {
		if model == "" {
			model = types.DefaultOllamaModel
		}
		if prompt == "" {
			prompt = types.DefaultVLMPrompt
		}
		opts = types.OllamaPipelineOptions(model, prompt)
		api := &opts.PictureDescription.API
		api.URL = v.GetString(keyVLMURL)
		api.Temperature = v.GetFloat64(keyVLMTemperature)
		api.Timeout = v.GetDuration(keyVLMTimeout)
		api.APIKey = sec.Get(secrets.VLMAPIKey, v.GetString(keyVLMAPIKey))
	}
	opts.ImagesScale = v.GetFloat64(keyImagesScale)
	opts.DoOCR = v.GetBool(keyOCR)
	opts.DoTableStructure = v.GetBool(keyTables)
	if v.IsSet(keyRemoteServices) {
		opts.EnableRemoteServices = v.GetBool(keyRemoteServices)
	}

	return types.Config{
		Source: v.GetString(keySource),
		Converter: types.ConverterConfig{
			HTTPConfig: types.HTTPConfig{
				Timeout:   v.GetDuration(keyConvertTimeout),
				UserAgent: "docling-report/" + version,
			},
			Backend:  types.ConversionBackend(v.GetString(keyBackend)),
			ServeURL: v.GetString(keyServeURL),
			APIKey:   sec.Get(secrets.DoclingServeAPIKey, v.GetString(keyServeAPIKey)),
			Image:    v.GetString(keyImage),
		},
		Pipeline: opts,
		Output: types.OutputConfig{
			Dir:          v.GetString(keyOutputDir),
			HTML:         v.GetBool(keyHTML),
			CaptionCache: v.GetString(keyCaptionCache),
		},
	}
}
