/*
 * Copyright (c) 2025 ivfzhou
 * blob-uploader is licensed under Mulan PSL v2.
 * You can use this software according to the terms and conditions of the Mulan PSL v2.
 * You may obtain a copy of Mulan PSL v2 at:
 *          http://license.coscl.org.cn/MulanPSL2
 * THIS SOFTWARE IS PROVIDED ON AN "AS IS" BASIS, WITHOUT WARRANTIES OF ANY KIND,
 * EITHER EXPRESS OR IMPLIED, INCLUDING BUT NOT LIMITED TO NON-INFRINGEMENT,
 * MERCHANTABILITY OR FIT FOR A PARTICULAR PURPOSE.
 * See the Mulan PSL v2 for more details.
 */

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	blob "gitee.com/ivfzhou/blob-uploader"
)

func (a *app) newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <url>...",
		Short: "Delete objects",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			_, err := run(ctx, a,
				func(c blob.Api) (struct{}, error) {
					return struct{}{}, c.Delete(ctx, args...)
				},
				func(c blob.AsyncApi) *blob.Future[struct{}] {
					return c.Delete(ctx, args...)
				})
			if err != nil {
				return err
			}
			a.log.Info().Int("count", len(args)).Msg("deleted")
			return nil
		},
	}
}

func (a *app) newHeadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "head <url>",
		Short: "Show object metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			// 只判断是否存在。
			if exists, _ := cmd.Flags().GetBool("exists"); exists {
				ok, err := run(ctx, a,
					func(c blob.Api) (bool, error) { return c.Exist(ctx, args[0]) },
					func(c blob.AsyncApi) *blob.Future[bool] { return c.Exist(ctx, args[0]) })
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), ok)
				return err
			}

			info, err := run(ctx, a,
				func(c blob.Api) (*blob.ObjectInfo, error) { return c.Info(ctx, args[0]) },
				func(c blob.AsyncApi) *blob.Future[*blob.ObjectInfo] { return c.Info(ctx, args[0]) })
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), info)
		},
	}
	cmd.Flags().Bool("exists", false, "Only print whether the object exists")
	return cmd
}
