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
	"context"

	"github.com/spf13/cobra"

	"github.com/tomoncle/datakit/database"
)

// DeleteResult is the output of delete and truncate.
type DeleteResult struct {
	Entity  string `json:"entity"`
	Deleted int    `json:"deleted"`
}

// NewDeleteCommand creates the delete command. The record is removed and
// saved immediately.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete one record by durable id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, rootOpts, true, func(ctx context.Context, c *database.Coordinator, out *OutputFormatter) error {
				ref, err := c.DecodeRef(args[0])
				if err != nil {
					return out.Fail("delete failed", err)
				}
				repo, err := rawRepository(c, ref.Entity(), out)
				if err != nil {
					return err
				}
				if err := repo.DeleteRef(ctx, ref); err != nil {
					return out.Fail("delete failed", err)
				}
				return out.Success(DeleteResult{Entity: ref.Entity(), Deleted: 1})
			})
		},
	}
}

// NewTruncateCommand creates the truncate command.
func NewTruncateCommand(rootOpts *RootOptions) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "truncate <entity>",
		Short: "Delete every record of an entity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			if !yes {
				return out.Report(NewExitError(ExitCommandError, "truncate needs --yes"))
			}
			return withStore(cmd, rootOpts, true, func(ctx context.Context, c *database.Coordinator, out *OutputFormatter) error {
				repo, err := rawRepository(c, args[0], out)
				if err != nil {
					return err
				}
				n, err := repo.Truncate(ctx)
				if err != nil {
					return out.Fail("truncate failed", err)
				}
				return out.Success(DeleteResult{Entity: args[0], Deleted: n})
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "confirm deleting every record")
	return cmd
}
