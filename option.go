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

package blob

import (
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

type options struct {
	client         *http.Client
	baseURL        string
	apiVersion     string
	credentials    CredentialProvider
	retries        int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	limiter        *rate.Limiter
	transport      Transport
	clock          Clock
	newRuntime     func(concurrency int) Runtime
	logger         zerolog.Logger
	metrics        *Metrics
}

// Option 客户端参数。
type Option func(*options)

type uploadOptions struct {
	partSize           int64
	minPartSize        int64
	maxConcurrency     int
	contentType        string
	addRandomSuffix    *bool
	allowOverwrite     bool
	cacheControlMaxAge int
	onProgress         ProgressFunc
	abortOnFailure     bool
}

// UploadOption 上传参数。
type UploadOption func(*uploadOptions)

// WithHttpClient 使用自定义 HTTP 客户端实现。默认使用 http.DefaultClient。
func WithHttpClient(client *http.Client) Option {
	return func(o *options) {
		o.client = client
	}
}

// WithBaseURL 存储服务 API 根地址。默认取环境变量 VERCEL_BLOB_API_URL，否则为 DefaultApiURL。
func WithBaseURL(u string) Option {
	return func(o *options) {
		o.baseURL = u
	}
}

// WithApiVersion 请求头 x-api-version 的值。默认取环境变量 VERCEL_BLOB_API_VERSION_OVERRIDE，否则为 DefaultApiVersion。
func WithApiVersion(v string) Option {
	return func(o *options) {
		o.apiVersion = v
	}
}

// WithToken 使用固定的访问令牌。默认从环境变量读取。
func WithToken(token string) Option {
	return func(o *options) {
		o.credentials = StaticToken(token)
	}
}

// WithCredentialProvider 自定义令牌来源。
func WithCredentialProvider(p CredentialProvider) Option {
	return func(o *options) {
		o.credentials = p
	}
}

// WithRetries 瞬时故障的最大重试次数。默认取环境变量 VERCEL_BLOB_RETRIES，否则为 DefaultRetries。
func WithRetries(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.retries = n
		}
	}
}

// WithRetryBackoff 重试退避的初始间隔和最大间隔。
func WithRetryBackoff(initial, max time.Duration) Option {
	return func(o *options) {
		if initial > 0 {
			o.initialBackoff = initial
		}
		if max > 0 {
			o.maxBackoff = max
		}
	}
}

// WithRateLimit 限制每秒发出的请求数。
func WithRateLimit(perSecond float64, burst int) Option {
	return func(o *options) {
		if perSecond > 0 {
			if burst < 1 {
				burst = 1
			}
			o.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		}
	}
}

// WithTransport 使用自定义传输。阻塞客户端必须配合不会挂起的传输使用，否则返回 BridgeMisuseError。
func WithTransport(t Transport) Option {
	return func(o *options) {
		o.transport = t
	}
}

// WithClock 自定义退避等待。
func WithClock(c Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// WithLogger 使用自定义日志。
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithMetrics 记录请求指标。
func WithMetrics(m *Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithPartSize 分片大小。默认 DefaultPartSize。
func WithPartSize(size int64) UploadOption {
	return func(o *uploadOptions) {
		o.partSize = size
	}
}

// WithMaxConcurrency 同时上传的分片数上限。默认 DefaultMaxConcurrency。
func WithMaxConcurrency(n int) UploadOption {
	return func(o *uploadOptions) {
		o.maxConcurrency = n
	}
}

// WithContentType 对象的内容类型。
func WithContentType(contentType string) UploadOption {
	return func(o *uploadOptions) {
		o.contentType = contentType
	}
}

// WithRandomSuffix 是否在路径后追加随机后缀。AutoUpload 默认追加，CreateUpload 默认不追加。
func WithRandomSuffix(add bool) UploadOption {
	return func(o *uploadOptions) {
		o.addRandomSuffix = &add
	}
}

// WithAllowOverwrite 允许覆盖同名对象。
func WithAllowOverwrite() UploadOption {
	return func(o *uploadOptions) {
		o.allowOverwrite = true
	}
}

// WithCacheControlMaxAge 对象的缓存时长，单位秒。
func WithCacheControlMaxAge(seconds int) UploadOption {
	return func(o *uploadOptions) {
		o.cacheControlMaxAge = seconds
	}
}

// WithProgress 接收上传进度。回调中的 panic 被忽略。
func WithProgress(fn ProgressFunc) UploadOption {
	return func(o *uploadOptions) {
		o.onProgress = fn
	}
}

// WithAbortOnFailure 自动上传失败时尽力放弃远端会话。默认保留会话。
func WithAbortOnFailure() UploadOption {
	return func(o *uploadOptions) {
		o.abortOnFailure = true
	}
}

func newOptions(opts []Option, async bool) *options {
	o := &options{
		baseURL:        envOr("VERCEL_BLOB_API_URL", DefaultApiURL),
		apiVersion:     envOr("VERCEL_BLOB_API_VERSION_OVERRIDE", DefaultApiVersion),
		credentials:    EnvToken{},
		retries:        DefaultRetries,
		initialBackoff: 100 * time.Millisecond,
		maxBackoff:     2 * time.Second,
		logger:         defaultLogger(),
	}
	if v, err := strconv.Atoi(os.Getenv("VERCEL_BLOB_RETRIES")); err == nil && v >= 0 {
		o.retries = v
	}

	// 设置参数。
	for _, v := range opts {
		if v == nil {
			continue
		}
		v(o)
	}

	// 按执行模式补齐依赖。
	if async {
		if o.transport == nil {
			o.transport = NewAsyncTransport(o.baseURL, o.client, o.limiter)
		}
		if o.clock == nil {
			o.clock = TimerClock{}
		}
		o.newRuntime = NewGroupRuntime
	} else {
		if o.transport == nil {
			o.transport = NewBlockingTransport(o.baseURL, o.client, o.limiter)
		}
		if o.clock == nil {
			o.clock = BlockingClock{}
		}
		o.newRuntime = NewPoolRuntime
	}

	return o
}

func newUploadOptions(opts []UploadOption, randomSuffix bool) *uploadOptions {
	o := &uploadOptions{
		partSize:       DefaultPartSize,
		minPartSize:    MinPartSize,
		maxConcurrency: DefaultMaxConcurrency,
	}
	for _, v := range opts {
		if v == nil {
			continue
		}
		v(o)
	}
	if o.addRandomSuffix == nil {
		o.addRandomSuffix = &randomSuffix
	}
	return o
}

// 校验上传参数。
func (o *uploadOptions) validate(pathname string) error {
	if err := validateStruct(&uploadRequest{
		Pathname:           pathname,
		MaxConcurrency:     o.maxConcurrency,
		ContentType:        o.contentType,
		CacheControlMaxAge: o.cacheControlMaxAge,
	}); err != nil {
		return err
	}
	if o.partSize < o.minPartSize || o.partSize > MaxPartSize {
		return &ValidationError{
			Field:  "PartSize",
			Reason: "must be between " + strconv.FormatInt(o.minPartSize, 10) + " and " + strconv.FormatInt(MaxPartSize, 10),
		}
	}
	return nil
}

// 创建会话时携带的请求头。
func (o *uploadOptions) putHeader() http.Header {
	header := http.Header{}
	if len(o.contentType) > 0 {
		header.Set("x-content-type", o.contentType)
	}
	if *o.addRandomSuffix {
		header.Set("x-add-random-suffix", "1")
	} else {
		header.Set("x-add-random-suffix", "0")
	}
	if o.allowOverwrite {
		header.Set("x-allow-overwrite", "1")
	}
	if o.cacheControlMaxAge > 0 {
		header.Set("x-cache-control-max-age", strconv.Itoa(o.cacheControlMaxAge))
	}
	return header
}

func envOr(name, def string) string {
	if v := strings.TrimSpace(os.Getenv(name)); len(v) > 0 {
		return v
	}
	return def
}
