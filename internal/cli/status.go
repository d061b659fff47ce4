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

	"github.com/spf13/cobra"

	"github.com/tomoncle/datakit/database"
)

// StatusInfo is the output of status.
type StatusInfo struct {
	Type     string                 `json:"type"`
	Database string                 `json:"database"`
	Entities int                    `json:"entities"`
	Health   *database.HealthStatus `json:"health"`
	Pool     *database.DBStats      `json:"pool,omitempty"`
}

func (s StatusInfo) String() string {
	state := "healthy"
	if !s.Health.Healthy {
		state = "unhealthy: " + s.Health.LastError
	}
	return fmt.Sprintf("%s %s store=%s entities=%d %s (%s)",
		s.Type, s.Database, s.Health.StoreID, s.Entities, state, s.Health.ResponseTime)
}

// NewStatusCommand creates the status command. It works without a model.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check the store connection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, rootOpts, false, func(ctx context.Context, c *database.Coordinator, out *OutputFormatter) error {
				cfg := c.Config()
				info := StatusInfo{
					Type:     cfg.Type,
					Database: cfg.DBName,
					Entities: len(c.Model().Entities()),
					Health:   c.HealthCheck(ctx),
					Pool:     c.Stats(),
				}
				if !info.Health.Healthy {
					_ = out.Success(info)
					return NewExitError(ExitFailure, "store is unhealthy")
				}
				return out.Success(info)
			})
		},
	}
}
