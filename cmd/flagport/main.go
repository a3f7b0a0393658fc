// Copyright 2025 SirSeer, LLC
//
// Licensed under the Business Source License 1.1 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://mariadb.com/bsl11
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sirseerhq/flagport/internal/logging"
	"github.com/sirseerhq/flagport/pkg/version"
)

func main() {
	rootCmd := newRootCommand()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(mapErrorToExitCode(err))
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "flagport",
		Short: "Export feature flag projects from a flag management API",
		Long: `flagport copies a feature flag project (the project itself, the segments of
each environment and the full definition of every flag) from a
LaunchDarkly-compatible REST API into a local directory tree, and rewrites the
maintainer of exported flags from a mapping file.`,
		Version:       version.Version,
		SilenceUsage:  true, // Don't show usage on error
		SilenceErrors: true, // We'll handle error printing ourselves
	}

	rootCmd.AddCommand(newExportCommand())
	rootCmd.AddCommand(newMaintainersCommand())

	return rootCmd
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// newLogger builds the command logger on w.
func newLogger(level string, w io.Writer) (*zap.Logger, error) {
	logger, err := logging.NewWithWriter(level, w)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	return logger, nil
}

// getAPIKey returns the API key from the flag or the named environment variable.
func getAPIKey(flagKey, envName string) string {
	if flagKey != "" {
		return flagKey
	}
	if envName == "" {
		return ""
	}
	return os.Getenv(envName)
}

// mapErrorToExitCode converts errors to the process exit code.
func mapErrorToExitCode(err error) int {
	if err == nil {
		return 0
	}

	return 1 // Fatal error
}
