// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/docling-report/internal/pipeline"
	"github.com/pdiddy/docling-report/pkg/types"
)

const redacted = "<redacted>"

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration as YAML",
	Long: `Config resolves flags, environment variables, the config file and secrets
the same way the report and pictures commands do, and prints the result.
API keys are redacted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, _ := cmd.Flags().GetString("mode")
		m := pipeline.Mode(mode)
		if m != pipeline.ModeReport && m != pipeline.ModePictures {
			return fmt.Errorf("unknown mode %q: want report or pictures", mode)
		}
		out, err := renderConfig(loadConfig(viper.GetViper(), m, loadedSecrets))
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}

func init() {
	addRunFlags(configCmd)
	configCmd.Flags().String("vlm-repo-id", types.DefaultLocalVLMRepoID, "Hugging Face repository of the local vision-language model")
	configCmd.Flags().String("mode", string(pipeline.ModeReport), "report or pictures")

	rootCmd.AddCommand(configCmd)
}

func renderConfig(cfg types.Config) ([]byte, error) {
	if cfg.Converter.APIKey != "" {
		cfg.Converter.APIKey = redacted
	}
	if cfg.Pipeline.PictureDescription.API.APIKey != "" {
		cfg.Pipeline.PictureDescription.API.APIKey = redacted
	}
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}
	return out, nil
}
