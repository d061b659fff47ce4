/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tomoncle/datakit/database"
	"github.com/tomoncle/datakit/utils"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigFile string
	DBType     string
	DB         string
	Model      string
	Format     string // "json" | "text"
	Verbose    bool
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"json", "text"}

// NewRootCommand creates the root command of the datakit admin CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "datakit",
		Short: "Inspect and maintain a datakit store",
		Long: `Inspect and maintain a datakit store.

Entities are addressed by name, records by durable id
(x-datakit://<store>/<entity>/p<key>).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				out := &OutputFormatter{Format: "text", Writer: cmd.ErrOrStderr()}
				return out.Report(NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats)))
			}
			// Logs go to stderr so they never corrupt command output.
			utils.SetOutput(cmd.ErrOrStderr())
			level := "warn"
			if opts.Verbose {
				level = "debug"
			}
			utils.GetLogger(database.LoggerName).SetLevel(utils.ParseLogLevel(level))
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigFile, "config", "c", "", "config file (yaml)")
	cmd.PersistentFlags().StringVar(&opts.DBType, "type", "", "store type (sqlite|mysql|postgres)")
	cmd.PersistentFlags().StringVar(&opts.DB, "db", "", "database name, or sqlite file path")
	cmd.PersistentFlags().StringVarP(&opts.Model, "model", "m", "", "entity model file (yaml)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "json", "output format (json|text)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(NewEntitiesCommand(opts))
	cmd.AddCommand(NewCountCommand(opts))
	cmd.AddCommand(NewFindCommand(opts))
	cmd.AddCommand(NewGetCommand(opts))
	cmd.AddCommand(NewDeleteCommand(opts))
	cmd.AddCommand(NewTruncateCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
