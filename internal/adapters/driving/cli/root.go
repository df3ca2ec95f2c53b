// Package cli implements the vulnsync command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/vulnsync/internal/core/ports/driven"
	"github.com/custodia-labs/vulnsync/internal/core/ports/driving"
)

// version is set at build time with -ldflags.
var version = "dev"

// skipBootstrap marks commands that run without services.
const skipBootstrap = "skip-bootstrap"

var (
	cfgFile string
	verbose bool
)

// Services holds what the commands drive.
type Services struct {
	Ingestor    driving.Ingestor
	Transformer driving.Transformer
	Merger      driving.Merger
	History     driven.RunHistory
}

// BootstrapFunc loads configuration from cfgPath and builds the services.
// The returned closer is called once the command finishes.
type BootstrapFunc func(ctx context.Context, cfgPath string, verbose bool) (*Services, io.Closer, error)

var (
	services  *Services
	bootstrap BootstrapFunc
	closer    io.Closer
)

// SetServices installs services directly, bypassing bootstrap.
func SetServices(s *Services) {
	services = s
}

// SetBootstrap sets the function used to build services on demand.
func SetBootstrap(fn BootstrapFunc) {
	bootstrap = fn
}

var rootCmd = &cobra.Command{
	Use:   "vulnsync",
	Short: "Mirror enriched CVE advisories into a tabular store",
	Long: `vulnsync lists the yearly partitions of an advisory repository on GitHub,
downloads every CVE document, flattens it into one record and writes the
records to the configured sink. Sinks that stage batches are reconciled
at the end of each run so the newest copy of every CVE wins.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentPostRunE = func(_ *cobra.Command, _ []string) error {
		return teardown()
	}
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (.toml or .yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print progress and debug output")
}

// ExecuteContext runs the root command with ctx.
func ExecuteContext(ctx context.Context) error {
	err := rootCmd.ExecuteContext(ctx)
	if cerr := teardown(); err == nil {
		err = cerr
	}
	return err
}

func setup(cmd *cobra.Command, _ []string) error {
	if _, ok := cmd.Annotations[skipBootstrap]; ok || services != nil {
		return nil
	}
	if bootstrap == nil {
		return errors.New("services not configured")
	}
	s, c, err := bootstrap(cmd.Context(), cfgFile, verbose)
	if err != nil {
		return err
	}
	services = s
	closer = c
	return nil
}

func teardown() error {
	if closer == nil {
		return nil
	}
	err := closer.Close()
	closer = nil
	services = nil
	return err
}

var yearPattern = regexp.MustCompile(`^\d{4}$`)

// yearArgs accepts any number of four-digit years.
func yearArgs(_ *cobra.Command, args []string) error {
	for _, a := range args {
		if !yearPattern.MatchString(a) {
			return fmt.Errorf("invalid year %q", a)
		}
	}
	return nil
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && termCheck(int(f.Fd()))
}
