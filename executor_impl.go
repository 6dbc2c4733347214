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
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Retry-After 的上限。
const maxRetryAfter = 30 * time.Second

// 一次逻辑操作。
type operation struct {
	name   string
	method string
	path   string
	query  url.Values
	header http.Header
	body   []byte
	// 每次尝试中已发送的字节数，重试时从零开始。
	onProgress func(sent int64)
}

// 执行请求，处理重试和错误分类。同一份逻辑服务阻塞和协作两种客户端，只有 Transport 和 Clock 不同。
type requestExecutor struct {
	transport      Transport
	clock          Clock
	token          string
	storeId        string
	apiVersion     string
	retries        int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	metrics        *Metrics
	log            zerolog.Logger
}

// 存储服务的错误响应体。
type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func newRequestExecutor(o *options, token string) *requestExecutor {
	return &requestExecutor{
		transport:      o.transport,
		clock:          o.clock,
		token:          token,
		storeId:        storeIdFromToken(token),
		apiVersion:     o.apiVersion,
		retries:        o.retries,
		initialBackoff: o.initialBackoff,
		maxBackoff:     o.maxBackoff,
		metrics:        o.metrics,
		log:            o.logger,
	}
}

// 执行操作，成功时返回 2xx 响应。
func (e *requestExecutor) execute(ctx context.Context, op *operation) (*Response, error) {
	b := e.newBackOff()
	requestId := e.requestId()
	attempts := e.retries + 1

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		// 退避等待。
		if attempt > 0 {
			delay := b.NextBackOff()
			var se *ServerError
			if errors.As(lastErr, &se) && se.retryAfter > 0 {
				delay = se.retryAfter
			}
			e.metrics.observeRetry(op.name)
			e.log.Debug().Str("op", op.name).Int("attempt", attempt).Dur("delay", delay).Err(lastErr).
				Msg("retrying blob request")
			if _, err := Await(ctx, e.clock.Sleep(ctx, delay)); err != nil {
				return nil, err
			}
		}

		start := time.Now()
		rsp, err := Await(ctx, e.transport.Send(ctx, e.genReq(op, requestId, attempt)))
		if err != nil {
			var bridgeErr *BridgeMisuseError
			if errors.As(err, &bridgeErr) {
				return nil, err
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			e.metrics.observeAttempt(op.name, outcomeNetworkError, time.Since(start))
			lastErr = fmt.Errorf("%s: %w", op.name, err)
			continue
		}

		switch status := rsp.StatusCode; {
		case status >= 200 && status < 300:
			e.metrics.observeAttempt(op.name, outcomeSuccess, time.Since(start))
			e.metrics.addBytes(len(op.body))
			return rsp, nil
		case status == http.StatusTooManyRequests || status >= 500:
			e.metrics.observeAttempt(op.name, outcomeServerError, time.Since(start))
			code, message := decodeErrorBody(rsp.Body)
			lastErr = &ServerError{
				Op:         op.name,
				StatusCode: status,
				Code:       code,
				Message:    message,
				retryAfter: parseRetryAfter(rsp.Header.Get("retry-after")),
			}
		default:
			e.metrics.observeAttempt(op.name, outcomeClientError, time.Since(start))
			code, message := decodeErrorBody(rsp.Body)
			return nil, &ClientRequestError{Op: op.name, StatusCode: status, Code: code, Message: message}
		}
	}

	return nil, &TransportExhaustedError{Op: op.name, Attempts: attempts, Err: lastErr}
}

// 执行操作并把响应体解析到 out。
func (e *requestExecutor) executeJSON(ctx context.Context, op *operation, out any) error {
	rsp, err := e.execute(ctx, op)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err = sonic.Unmarshal(rsp.Body, out); err != nil {
		return &UnexpectedResponseError{Op: op.name, Err: err}
	}
	return nil
}

// 生成一次尝试的请求。
func (e *requestExecutor) genReq(op *operation, requestId string, attempt int) *Request {
	header := op.header.Clone()
	if header == nil {
		header = http.Header{}
	}
	header.Set("authorization", "Bearer "+e.token)
	header.Set("x-api-version", e.apiVersion)
	header.Set("x-api-blob-request-id", requestId)
	header.Set("x-api-blob-request-attempt", strconv.Itoa(attempt))

	var body io.Reader
	if len(op.body) > 0 {
		body = bytes.NewReader(op.body)
	}
	if op.onProgress != nil {
		header.Set("x-content-length", strconv.Itoa(len(op.body)))
		if body != nil {
			body = &progressReader{Reader: body, onRead: op.onProgress}
		}
	}

	return &Request{
		Method:        op.method,
		Path:          op.path,
		Query:         op.query,
		Header:        header,
		Body:          body,
		ContentLength: int64(len(op.body)),
	}
}

func (e *requestExecutor) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = e.initialBackoff
	b.MaxInterval = e.maxBackoff
	b.Multiplier = 2
	b.RandomizationFactor = 0.5
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// 请求 ID 形如 <storeId>:<毫秒时间戳>:<随机八位>，同一操作的所有尝试共用。
func (e *requestExecutor) requestId() string {
	return fmt.Sprintf("%s:%d:%s", e.storeId, time.Now().UnixMilli(), uuid.NewString()[:8])
}

func decodeErrorBody(body []byte) (code, message string) {
	if len(body) <= 0 {
		return "", ""
	}
	var eb errorBody
	if err := sonic.Unmarshal(body, &eb); err != nil {
		return "", ""
	}
	return eb.Error.Code, eb.Error.Message
}

// 只支持秒数形式。
func parseRetryAfter(v string) time.Duration {
	if len(v) <= 0 {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs <= 0 {
		return 0
	}
	d := time.Duration(secs) * time.Second
	if d > maxRetryAfter {
		d = maxRetryAfter
	}
	return d
}
