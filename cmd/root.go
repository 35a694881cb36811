package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "gallery",
	Short: "Personal image hosting backend",
	Long:  `A personal image hosting backend providing token based authentication and image lifecycle management over HTTP, backed by MySQL and S3 compatible object storage.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
