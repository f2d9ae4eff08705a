package main

import (
	"github.com/spf13/cobra"

	"shanhu.io/digo"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Run the pipeline once in build mode",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOnce(cmd, digo.ModeBuild)
	},
}

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Delete every file the pipeline would otherwise produce",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOnce(cmd, digo.ModeClean)
	},
}

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Run the pipeline without writing any output",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOnce(cmd, digo.ModePreview)
	},
}
