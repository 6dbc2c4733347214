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
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	blob "gitee.com/ivfzhou/blob-uploader"
)

// 命令行的运行环境。参数优先级：命令行 > 环境变量 BLOBUP_* > 配置文件 > 默认值。
type app struct {
	v   *viper.Viper
	log zerolog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}
	cmd := &cobra.Command{
		Use:   "blobup",
		Short: "Multipart uploads to blob storage",
		Long: `blobup uploads local files to a blob store in parts, retrying transient failures.
Objects can also be inspected and deleted. Every flag may be set with a BLOBUP_ environment
variable (e.g. BLOBUP_PART_SIZE) or in the file given by --config.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.init,
	}

	f := cmd.PersistentFlags()
	f.String("config", "", "Config file (yaml, json or toml)")
	f.String("token", "", "Read-write token, defaults to BLOB_READ_WRITE_TOKEN")
	f.String("api-url", "", "Blob API base url")
	f.Int("retries", blob.DefaultRetries, "Retries for transient failures")
	f.Float64("rate-limit", 0, "Max requests per second, 0 for unlimited")
	f.Bool("async", false, "Use the cooperative client")
	f.Bool("verbose", false, "Debug logging")
	_ = a.v.BindPFlags(f)

	cmd.AddCommand(a.newUploadCmd(), a.newDeleteCmd(), a.newHeadCmd())
	return cmd
}

// 加载配置，初始化日志。
func (a *app) init(cmd *cobra.Command, _ []string) error {
	a.v.SetEnvPrefix("BLOBUP")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()
	if file := a.v.GetString("config"); len(file) > 0 {
		a.v.SetConfigFile(file)
		if err := a.v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", file, err)
		}
	}

	level := zerolog.InfoLevel
	if a.v.GetBool("verbose") {
		level = zerolog.DebugLevel
	}
	a.log = zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr(), TimeFormat: time.Kitchen}).
		Level(level).With().Timestamp().Logger()
	return nil
}

func (a *app) clientOptions() []blob.Option {
	opts := []blob.Option{blob.WithLogger(a.log), blob.WithRetries(a.v.GetInt("retries"))}
	if token := a.v.GetString("token"); len(token) > 0 {
		opts = append(opts, blob.WithToken(token))
	}
	if u := a.v.GetString("api-url"); len(u) > 0 {
		opts = append(opts, blob.WithBaseURL(u))
	}
	if r := a.v.GetFloat64("rate-limit"); r > 0 {
		opts = append(opts, blob.WithRateLimit(r, int(r)+1))
	}
	return opts
}

// 按 --async 选择客户端执行操作。两种客户端的结果相同。
func run[T any](ctx context.Context, a *app, blocking func(blob.Api) (T, error),
	async func(blob.AsyncApi) *blob.Future[T]) (T, error) {

	var zero T
	if !a.v.GetBool("async") {
		c, err := blob.NewClient(a.clientOptions()...)
		if err != nil {
			return zero, err
		}
		return blocking(c)
	}

	c, err := blob.NewAsyncClient(a.clientOptions()...)
	if err != nil {
		return zero, err
	}
	return blob.Await(ctx, async(c))
}

func printJSON(w io.Writer, v any) error {
	b, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}
