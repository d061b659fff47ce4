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
	"strings"

	"github.com/spf13/cobra"

	"github.com/tomoncle/datakit/database"
	"github.com/tomoncle/datakit/types"
)

// FilterOptions are the record selection flags shared by count and find.
type FilterOptions struct {
	Where    []string
	Contains []string
	Null     []string
}

func (f *FilterOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringArrayVarP(&f.Where, "where", "w", nil, "attribute equals value (key=value, repeatable)")
	cmd.Flags().StringArrayVar(&f.Contains, "contains", nil, "string attribute contains value, ignoring case (key=value, repeatable)")
	cmd.Flags().StringArrayVar(&f.Null, "null", nil, "attribute is null (repeatable)")
}

// predicate combines the filters with AND. Values are converted to the kind
// of their attribute.
func (f *FilterOptions) predicate(e *database.EntityDescription) (types.Predicate, error) {
	var preds []types.Predicate
	for _, w := range f.Where {
		key, value, err := splitPair(w)
		if err != nil {
			return nil, err
		}
		attr, ok := e.Attribute(key)
		if !ok {
			return nil, types.InvalidArgument("entity %s has no attribute %q", e.Name, key)
		}
		v, err := attr.Kind.Normalize(value)
		if err != nil {
			return nil, err
		}
		preds = append(preds, types.Eq(key, v))
	}
	for _, c := range f.Contains {
		key, value, err := splitPair(c)
		if err != nil {
			return nil, err
		}
		preds = append(preds, types.Contains(key, value))
	}
	for _, key := range f.Null {
		preds = append(preds, types.IsNull(key))
	}
	if len(preds) == 0 {
		return nil, nil
	}
	return types.And(preds...), nil
}

func splitPair(s string) (string, string, error) {
	key, value, ok := strings.Cut(s, "=")
	if !ok || key == "" {
		return "", "", types.InvalidArgument("expected key=value, got %q", s)
	}
	return key, value, nil
}

// parseSort reads "key" or "key:asc" / "key:desc".
func parseSort(specs []string) ([]types.SortTerm, error) {
	terms := make([]types.SortTerm, 0, len(specs))
	for _, s := range specs {
		key, dir, _ := strings.Cut(s, ":")
		switch strings.ToLower(dir) {
		case "", "asc":
			terms = append(terms, types.Asc(key))
		case "desc":
			terms = append(terms, types.Desc(key))
		default:
			return nil, types.InvalidArgument("bad sort direction in %q", s)
		}
	}
	return terms, nil
}

// NewCountCommand creates the count command.
func NewCountCommand(rootOpts *RootOptions) *cobra.Command {
	filters := &FilterOptions{}
	cmd := &cobra.Command{
		Use:   "count <entity>",
		Short: "Count the records of an entity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, rootOpts, true, func(ctx context.Context, c *database.Coordinator, out *OutputFormatter) error {
				repo, err := rawRepository(c, args[0], out)
				if err != nil {
					return err
				}
				e, _ := c.Model().Entity(args[0])
				pred, err := filters.predicate(e)
				if err != nil {
					return out.Report(WrapExitError(ExitCommandError, "invalid filter", err))
				}
				n, err := repo.Count(ctx, pred)
				if err != nil {
					return out.Fail("count failed", err)
				}
				return out.Success(n)
			})
		},
	}
	filters.register(cmd)
	return cmd
}

// FindResult is the output of find.
type FindResult struct {
	Total   int        `json:"total"`
	Page    int        `json:"page,omitempty"`
	Records recordList `json:"records"`
}

func (r FindResult) String() string { return r.Records.String() }

// NewFindCommand creates the find command.
func NewFindCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		filters  = &FilterOptions{}
		sorts    []string
		page     int
		pageSize int
	)
	cmd := &cobra.Command{
		Use:   "find <entity>",
		Short: "List the records of an entity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, rootOpts, true, func(ctx context.Context, c *database.Coordinator, out *OutputFormatter) error {
				repo, err := rawRepository(c, args[0], out)
				if err != nil {
					return err
				}
				e, _ := c.Model().Entity(args[0])
				pred, err := filters.predicate(e)
				if err != nil {
					return out.Report(WrapExitError(ExitCommandError, "invalid filter", err))
				}
				terms, err := parseSort(sorts)
				if err != nil {
					return out.Report(WrapExitError(ExitCommandError, "invalid sort", err))
				}
				opts := []types.FetchOption{types.Where(pred), types.OrderBy(terms...)}

				if cmd.Flags().Changed("page") || cmd.Flags().Changed("page-size") {
					p, err := repo.Page(ctx, page, pageSize, opts...)
					if err != nil {
						return out.Fail("find failed", err)
					}
					return out.Success(FindResult{Total: p.Total, Page: p.Page, Records: newRecordList(p.Items)})
				}
				recs, err := repo.Find(ctx, opts...)
				if err != nil {
					return out.Fail("find failed", err)
				}
				return out.Success(FindResult{Total: len(recs), Records: newRecordList(recs)})
			})
		},
	}
	filters.register(cmd)
	cmd.Flags().StringArrayVarP(&sorts, "sort", "s", nil, "sort key, key:asc or key:desc (repeatable)")
	cmd.Flags().IntVar(&page, "page", 0, "page index, starting at 0")
	cmd.Flags().IntVar(&pageSize, "page-size", 20, "records per page")
	return cmd
}

// NewGetCommand creates the get command.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one record by durable id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, rootOpts, true, func(ctx context.Context, c *database.Coordinator, out *OutputFormatter) error {
				ref, err := c.DecodeRef(args[0])
				if err != nil {
					return out.Fail("get failed", err)
				}
				repo, err := rawRepository(c, ref.Entity(), out)
				if err != nil {
					return err
				}
				rec, err := repo.Fetch(ctx, ref)
				if err != nil {
					return out.Fail("get failed", err)
				}
				return out.Success(recordList{rec.ToMap()})
			})
		},
	}
}
