// Command digotool is a thin command-line front end over the digo
// engine: it reads a TOML project file describing one or more source
// globs and a destination, then drives build/clean/preview/watch/server
// the way a real build-script author would through the library API
// directly. Grounded on vovakirdan-surge's cmd/surge for the cobra root
// command plus persistent-flag shape, and Mschirtzinger-jj-beads's CLI
// for the TOML-config-file convention.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "digotool",
	Short: "Run a digo build project",
	Long:  "digotool drives a digo pipeline described by a digo.toml project file.",
}

func main() {
	rootCmd.PersistentFlags().String("config", "digo.toml", "path to the project's TOML config file")
	rootCmd.PersistentFlags().Bool("silent", false, "suppress all output")
	rootCmd.PersistentFlags().Bool("no-color", false, "disable colored output")

	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(cleanCmd)
	rootCmd.AddCommand(previewCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(serveCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
