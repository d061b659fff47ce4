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
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tomoncle/datakit/database"
	"github.com/tomoncle/datakit/repository"
	"github.com/tomoncle/datakit/types"
)

// EntityInfo describes one entity of the model.
type EntityInfo struct {
	Name       string                          `json:"name"`
	Table      string                          `json:"table"`
	Records    int                             `json:"records"`
	Attributes []database.AttributeDescription `json:"attributes"`
}

type entityList []EntityInfo

func (l entityList) String() string {
	var b strings.Builder
	for i, e := range l {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s (%d records)", e.Name, e.Records)
		for _, a := range e.Attributes {
			fmt.Fprintf(&b, "\n  %s %s", a.Name, a.Kind)
			if a.Optional {
				b.WriteString(" optional")
			}
		}
	}
	return b.String()
}

// NewEntitiesCommand creates the entities command.
func NewEntitiesCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "entities",
		Short: "List the entities of the model with their record counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, rootOpts, true, func(ctx context.Context, c *database.Coordinator, out *OutputFormatter) error {
				wc := c.NewContext(types.PrivateQueue)
				list := entityList{}
				for _, e := range c.Model().Entities() {
					repo, err := repository.NewRawRepository(wc, e.Name)
					if err != nil {
						return out.Fail("cannot open entity", err)
					}
					n, err := repo.Count(ctx, nil)
					if err != nil {
						return out.Fail("cannot count "+e.Name, err)
					}
					list = append(list, EntityInfo{Name: e.Name, Table: e.TableName(), Records: n, Attributes: e.Attributes})
				}
				return out.Success(list)
			})
		},
	}
}

// withStore opens the configured store for the duration of fn.
func withStore(cmd *cobra.Command, opts *RootOptions, requireModel bool,
	fn func(ctx context.Context, c *database.Coordinator, out *OutputFormatter) error) error {
	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	coordinator, err := openStore(ctx, opts, requireModel)
	if err != nil {
		return out.Report(err)
	}
	defer func() { _ = coordinator.Close() }()
	return fn(ctx, coordinator, out)
}

// rawRepository opens the repository of the entity named on the command line.
func rawRepository(c *database.Coordinator, entity string, out *OutputFormatter) (repository.RawRepository, error) {
	repo, err := repository.NewRawRepository(c.NewContext(types.PrivateQueue), entity)
	if err != nil {
		return nil, out.Report(WrapExitError(ExitCommandError, "unknown entity", err))
	}
	return repo, nil
}
