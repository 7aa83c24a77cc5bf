// Package cli provides the plagctl command-line interface: offline
// comparisons and checks over local files plus a few operational commands
// for the service's stores.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ABNmmd/PFE-FSA/pkg/config"
	"github.com/ABNmmd/PFE-FSA/pkg/logger"
)

// Version is set at build time.
var Version = "0.1.0"

// options are the global flags and the config they resolve to.
type options struct {
	configPath string
	verbose    bool
	jsonOut    bool
	cfg        *config.Config
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	o := &options{}
	root := &cobra.Command{
		Use:   "plagctl",
		Short: "Plagiarism detection from the command line",
		Long: `plagctl compares documents and runs plagiarism checks without the HTTP
service. Files are read from disk; txt, md, html and docx are extracted,
other formats are compared as a placeholder.

It reads the same YAML config and PFE_* environment variables as the
service, so thresholds, chunking and the embedding provider match.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()
			cfg, err := config.Load(o.configPath)
			if err != nil {
				return err
			}
			o.cfg = cfg
			level := "warn"
			if o.verbose {
				level = "debug"
			}
			slog.SetDefault(logger.New(cmd.ErrOrStderr(), level, "text"))
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&o.configPath, "config", "c", "", "path to config file")
	root.PersistentFlags().BoolVarP(&o.verbose, "verbose", "v", false, "verbose logging")
	root.PersistentFlags().BoolVar(&o.jsonOut, "json", false, "print results as JSON")

	root.AddCommand(
		newCompareCmd(o),
		newCheckCmd(o),
		newCacheCmd(o),
		newMigrateCmd(o),
	)
	return root
}

// Execute runs the CLI with the process arguments.
func Execute() error {
	return NewRootCmd().Execute()
}

// readDocument loads a file and returns its name and contents.
func readDocument(path string) (string, []byte, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return path, content, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func printf(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, format, args...)
}
