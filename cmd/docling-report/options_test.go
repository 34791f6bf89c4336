// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/docling-report/internal/pipeline"
	"github.com/pdiddy/docling-report/internal/secrets"
	"github.com/pdiddy/docling-report/pkg/types"
)

func newViper(t *testing.T, set map[string]any) *viper.Viper {
	t.Helper()
	v := viper.New()
	setDefaults(v)
	for k, val := range set {
		v.Set(k, val)
	}
	return v
}

func TestLoadConfig_ReportDefaults(t *testing.T) {
	cfg := loadConfig(newViper(t, map[string]any{
		keySource:    "paper.pdf",
		keyOutputDir: "out",
	}), pipeline.ModeReport, secrets.Set{})

	assert.Equal(t, "paper.pdf", cfg.Source)
	assert.Equal(t, "out", cfg.Output.Dir)
	assert.Equal(t, types.BackendServe, cfg.Converter.Backend)
	assert.Equal(t, types.DefaultServeURL, cfg.Converter.ServeURL)
	assert.Equal(t, types.DefaultConvertTimeout, cfg.Converter.Timeout)
	assert.Equal(t, "docling-report/dev", cfg.Converter.UserAgent)

	want := types.OllamaPipelineOptions(types.DefaultOllamaModel, types.DefaultVLMPrompt)
	assert.Equal(t, want, cfg.Pipeline)
}

func TestLoadConfig_PicturesDefaultsToLocalVLM(t *testing.T) {
	cfg := loadConfig(newViper(t, nil), pipeline.ModePictures, secrets.Set{})

	want := types.LocalVLMPipelineOptions(types.DefaultLocalVLMRepoID, types.DefaultLocalVLMPrompt)
	assert.Equal(t, want, cfg.Pipeline)
	assert.False(t, cfg.Pipeline.EnableRemoteServices)
}

func TestLoadConfig_PicturesWithModelUsesOllama(t *testing.T) {
	cfg := loadConfig(newViper(t, map[string]any{
		keyVLMModel:  "granite3.2-vision",
		keyVLMPrompt: "What is this?",
	}), pipeline.ModePictures, secrets.Set{})

	api := cfg.Pipeline.PictureDescription.API
	assert.Equal(t, types.DescriptionAPI, cfg.Pipeline.PictureDescription.Backend)
	assert.Equal(t, "granite3.2-vision", api.Model)
	assert.Equal(t, "What is this?", api.Prompt)
	assert.Equal(t, "Ollama (granite3.2-vision)", api.Provenance)
	assert.True(t, cfg.Pipeline.EnableRemoteServices)
}

func TestLoadConfig_Overrides(t *testing.T) {
	cfg := loadConfig(newViper(t, map[string]any{
		keyBackend:        "container",
		keyImage:          "docling:dev",
		keyVLMURL:         "http://gpu:11434/v1/chat/completions",
		keyVLMTemperature: 0.7,
		keyVLMTimeout:     "30s",
		keyImagesScale:    1.5,
		keyOCR:            true,
		keyTables:         false,
		keyRemoteServices: false,
		keyHTML:           true,
		keyCaptionCache:   "captions.db",
	}), pipeline.ModeReport, secrets.Set{})

	assert.Equal(t, types.BackendContainer, cfg.Converter.Backend)
	assert.Equal(t, "docling:dev", cfg.Converter.Image)

	api := cfg.Pipeline.PictureDescription.API
	assert.Equal(t, "http://gpu:11434/v1/chat/completions", api.URL)
	assert.Equal(t, 0.7, api.Temperature)
	assert.Equal(t, 30*time.Second, api.Timeout)

	assert.Equal(t, 1.5, cfg.Pipeline.ImagesScale)
	assert.True(t, cfg.Pipeline.DoOCR)
	assert.False(t, cfg.Pipeline.DoTableStructure)
	assert.False(t, cfg.Pipeline.EnableRemoteServices)
	assert.True(t, cfg.Output.HTML)
	assert.Equal(t, "captions.db", cfg.Output.CaptionCache)
}

func TestLoadConfig_Secrets(t *testing.T) {
	sec := secrets.Set{
		secrets.DoclingServeAPIKey: "ds-file",
		secrets.VLMAPIKey:          "vlm-file",
	}

	cfg := loadConfig(newViper(t, nil), pipeline.ModeReport, sec)
	assert.Equal(t, "ds-file", cfg.Converter.APIKey)
	assert.Equal(t, "vlm-file", cfg.Pipeline.PictureDescription.API.APIKey)

	cfg = loadConfig(newViper(t, map[string]any{keyVLMAPIKey: "vlm-env"}), pipeline.ModeReport, sec)
	assert.Equal(t, "vlm-env", cfg.Pipeline.PictureDescription.API.APIKey)
}

func TestBindFlags(t *testing.T) {
	cmd := &cobra.Command{Use: "pictures"}
	addRunFlags(cmd)
	require.NoError(t, cmd.Flags().Parse([]string{"-i", "doc.pdf", "--ollama-model", "llava", "--ocr"}))

	v := viper.New()
	setDefaults(v)
	require.NoError(t, bindFlags(v, cmd))

	assert.Equal(t, "doc.pdf", v.GetString(keySource))
	assert.Equal(t, "llava", v.GetString(keyVLMModel))
	assert.True(t, v.GetBool(keyOCR))
	assert.True(t, v.GetBool(keyTables))
	// --vlm-repo-id is not registered on this command, so the default stays.
	assert.Equal(t, types.DefaultLocalVLMRepoID, v.GetString(keyVLMRepoID))
}

func TestRenderConfig_RedactsKeys(t *testing.T) {
	cfg := loadConfig(newViper(t, nil), pipeline.ModeReport, secrets.Set{
		secrets.DoclingServeAPIKey: "ds-secret",
		secrets.VLMAPIKey:          "vlm-secret",
	})

	out, err := renderConfig(cfg)
	require.NoError(t, err)
	assert.NotContains(t, string(out), "ds-secret")
	assert.NotContains(t, string(out), "vlm-secret")

	var got map[string]any
	require.NoError(t, yaml.Unmarshal(out, &got))
	conv := got["converter"].(map[string]any)
	assert.Equal(t, redacted, conv["api_key"])
	assert.Equal(t, types.DefaultServeURL, conv["serve_url"])
}
