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
	"io"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/cobra"

	blob "gitee.com/ivfzhou/blob-uploader"
)

// 每前进 step 个百分点打印一次进度。
type progressPrinter struct {
	w    io.Writer
	step float64
	last float64
}

func (a *app) newUploadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload <file> [pathname]",
		Short: "Upload a local file",
		Long: `Upload a local file in parts. The pathname defaults to the file name and the content
type is detected from the file content unless --content-type is given.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: a.upload,
	}

	f := cmd.Flags()
	f.String("part-size", humanize.IBytes(uint64(blob.DefaultPartSize)), "Part size, e.g. 8MiB or 100MB")
	f.Int("concurrency", blob.DefaultMaxConcurrency, "Parts uploaded at the same time")
	f.String("content-type", "", "Content type, detected when empty")
	f.Bool("random-suffix", true, "Append a random suffix to the pathname")
	f.Bool("overwrite", false, "Allow overwriting an existing object")
	f.Int("cache-max-age", 0, "Cache-Control max-age in seconds")
	f.Bool("abort-on-failure", true, "Abort the upload session when the upload fails")
	f.Bool("progress", false, "Print upload progress")
	_ = a.v.BindPFlags(f)

	return cmd
}

func (a *app) upload(cmd *cobra.Command, args []string) error {
	file := args[0]
	pathname := filepath.Base(file)
	if len(args) > 1 {
		pathname = args[1]
	}

	opts, err := a.uploadOptions(cmd, file)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	desc, err := run(ctx, a,
		func(c blob.Api) (*blob.ObjectDescriptor, error) {
			return c.AutoUploadFromDisk(ctx, pathname, file, opts...)
		},
		func(c blob.AsyncApi) *blob.Future[*blob.ObjectDescriptor] {
			return c.AutoUploadFromDisk(ctx, pathname, file, opts...)
		})
	if err != nil {
		return err
	}

	a.log.Info().Str("url", desc.URL).Str("size", humanize.IBytes(uint64(desc.Size))).Msg("uploaded")
	return printJSON(cmd.OutOrStdout(), desc)
}

// 由参数生成上传选项。
func (a *app) uploadOptions(cmd *cobra.Command, file string) ([]blob.UploadOption, error) {
	partSize, err := humanize.ParseBytes(a.v.GetString("part-size"))
	if err != nil {
		return nil, fmt.Errorf("invalid part size: %w", err)
	}

	contentType := a.v.GetString("content-type")
	if len(contentType) <= 0 {
		mtype, err := mimetype.DetectFile(file)
		if err != nil {
			return nil, err
		}
		contentType = mtype.String()
		a.log.Debug().Str("contentType", contentType).Msg("detected content type")
	}

	opts := []blob.UploadOption{
		blob.WithPartSize(int64(partSize)),
		blob.WithMaxConcurrency(a.v.GetInt("concurrency")),
		blob.WithContentType(contentType),
		blob.WithRandomSuffix(a.v.GetBool("random-suffix")),
		blob.WithCacheControlMaxAge(a.v.GetInt("cache-max-age")),
	}
	if a.v.GetBool("overwrite") {
		opts = append(opts, blob.WithAllowOverwrite())
	}
	if a.v.GetBool("abort-on-failure") {
		opts = append(opts, blob.WithAbortOnFailure())
	}
	if a.v.GetBool("progress") {
		p := &progressPrinter{w: cmd.ErrOrStderr(), step: 10}
		opts = append(opts, blob.WithProgress(p.print))
	}
	return opts, nil
}

func (p *progressPrinter) print(ev blob.ProgressEvent) {
	pct := ev.Percentage()
	if pct < p.last+p.step && ev.Loaded < ev.Total {
		return
	}
	p.last = pct
	_, _ = fmt.Fprintf(p.w, "%s / %s (%.0f%%)\n", humanize.IBytes(uint64(ev.Loaded)),
		humanize.IBytes(uint64(ev.Total)), pct)
}
