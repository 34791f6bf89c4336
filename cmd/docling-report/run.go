// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/docling-report/internal/convert"
	"github.com/pdiddy/docling-report/internal/pipeline"
	"github.com/pdiddy/docling-report/pkg/types"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Convert a document and write the full Markdown report",
	Long: `Report converts the input document, captions every picture through an
Ollama vision model and writes full_document_report.md with the extracted
images into the output directory.`,
	Example: `  docling-report report -i paper.pdf -o out/
  docling-report report -i https://arxiv.org/pdf/2408.09869 -o out/ --ollama-model llava`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPipeline(cmd, pipeline.ModeReport)
	},
}

var picturesCmd = &cobra.Command{
	Use:   "pictures",
	Short: "Convert a document and write a report of its pictures",
	Long: `Pictures converts the input document and writes picture_description.md
listing every picture with its caption and description. Pictures are described
by a local vision-language model unless --ollama-model is given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPipeline(cmd, pipeline.ModePictures)
	},
}

func init() {
	addRunFlags(reportCmd)
	addRunFlags(picturesCmd)
	picturesCmd.Flags().String("vlm-repo-id", types.DefaultLocalVLMRepoID, "Hugging Face repository of the local vision-language model")

	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(picturesCmd)
}

func runPipeline(cmd *cobra.Command, mode pipeline.Mode) error {
	cfg := loadConfig(viper.GetViper(), mode, loadedSecrets)
	if cfg.Source == "" {
		return errors.New("--input is required")
	}
	if cfg.Output.Dir == "" {
		return errors.New("--output is required")
	}

	conv, err := convert.ForBackend(cfg.Converter, logger)
	if err != nil {
		return err
	}

	res, err := pipeline.Run(cmd.Context(), pipeline.Deps{Converter: conv, Log: logger}, pipeline.Request{
		Mode:    mode,
		Source:  cfg.Source,
		Options: cfg.Pipeline,
		Output:  cfg.Output,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Report written to %s\n", res.ReportPath)
	if res.HTMLPath != "" {
		fmt.Fprintf(out, "HTML written to %s\n", res.HTMLPath)
	}
	fmt.Fprintf(out, "%d images saved, %d described\n", res.Images, res.Described)
	return nil
}
