package main

import (
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "scrub",
	Short: "Erase answers and highlighter marks from exam PDFs",
	Long: `scrub blanks short answer tokens (V, F, X, ...) drawn as text in exam PDFs,
whitens yellow and red highlighter marks, and writes image-only copies.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.AddCommand(newRunCmd())
}
