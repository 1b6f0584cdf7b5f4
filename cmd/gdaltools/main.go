package main

import (
	"fmt"
	"os"

	"github.com/SonwYang/gdaltools"
	"github.com/SonwYang/gdaltools/log"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const version = "0.2.0"

var (
	tmpDir   string
	logLevel string
	toolbox  *gdaltools.GdalToolbox
)

func main() {
	// .env可选，缺失时使用环境变量或默认值
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:           "gdaltools",
		Short:         "Common raster and vector GIS operations on top of GDAL/OGR",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := log.SetLevel(logLevel); err != nil {
				return fmt.Errorf("invalid log level %q: %w", logLevel, err)
			}
			toolbox = gdaltools.NewGdalToolbox(tmpDir)
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&tmpDir, "tmp-dir", getEnv("GDALTOOLS_TMP_DIR", "./temp"), "directory for intermediate files")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", getEnv("GDALTOOLS_LOG_LEVEL", "info"), "log level: debug|info|warn|error")

	rootCmd.AddCommand(rasterCommands()...)
	rootCmd.AddCommand(vectorCommands()...)
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("gdaltools version %s\n", version)
		},
	})

	err := rootCmd.Execute()
	log.Sync()
	if err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func done(format string, a ...any) {
	color.New(color.FgGreen).Printf("✓ "+format+"\n", a...)
}
