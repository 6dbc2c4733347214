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
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToken = "vercel_blob_rw_store42_secret"

// 按脚本响应的传输，记录每次请求。
type fakeTransport struct {
	mu       sync.Mutex
	requests []*Request
	bodies   [][]byte
	respond  func(attempt int) (*Response, error)
}

// 只记录等待时长的时钟。
type recordingClock struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (t *fakeTransport) Send(_ context.Context, req *Request) *Future[*Response] {
	var body []byte
	if req.Body != nil {
		body, _ = io.ReadAll(req.Body)
	}
	t.mu.Lock()
	attempt := len(t.requests)
	t.requests = append(t.requests, req)
	t.bodies = append(t.bodies, body)
	t.mu.Unlock()
	return Completed(t.respond(attempt))
}

func (t *fakeTransport) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.requests)
}

func (c *recordingClock) Sleep(ctx context.Context, d time.Duration) *Future[struct{}] {
	c.mu.Lock()
	c.delays = append(c.delays, d)
	c.mu.Unlock()
	return Completed(struct{}{}, ctx.Err())
}

func statusResponse(status int, body string) *Response {
	return &Response{StatusCode: status, Header: http.Header{}, Body: []byte(body)}
}

// 依次返回给定的响应，用完后重复最后一个。
func scripted(rsps ...*Response) func(int) (*Response, error) {
	return func(attempt int) (*Response, error) {
		if attempt >= len(rsps) {
			attempt = len(rsps) - 1
		}
		return rsps[attempt], nil
	}
}

func newTestExecutor(transport Transport, clock Clock, retries int) *requestExecutor {
	o := &options{
		apiVersion:     "11",
		retries:        retries,
		initialBackoff: 100 * time.Millisecond,
		maxBackoff:     2 * time.Second,
		transport:      transport,
		clock:          clock,
		logger:         zerolog.Nop(),
	}
	return newRequestExecutor(o, testToken)
}

func uploadOp(body string) *operation {
	return &operation{
		name:   "upload",
		method: http.MethodPost,
		path:   "/mpu",
		header: http.Header{"X-Mpu-Action": []string{"upload"}},
		body:   []byte(body),
	}
}

func TestExecute(t *testing.T) {
	t.Run("重试后成功", func(t *testing.T) {
		transport := &fakeTransport{respond: scripted(
			statusResponse(http.StatusInternalServerError, ""),
			statusResponse(http.StatusServiceUnavailable, ""),
			statusResponse(http.StatusOK, `{"etag":"abc"}`),
		)}
		clock := &recordingClock{}
		e := newTestExecutor(transport, clock, 3)

		rsp, err := e.execute(context.Background(), uploadOp("payload"))
		require.NoError(t, err)
		assert.Equal(t, `{"etag":"abc"}`, string(rsp.Body))
		require.Equal(t, 3, transport.count())
		assert.Len(t, clock.delays, 2)

		requestId := transport.requests[0].Header.Get("x-api-blob-request-id")
		assert.True(t, strings.HasPrefix(requestId, "store42:"), requestId)
		for i, req := range transport.requests {
			assert.Equal(t, requestId, req.Header.Get("x-api-blob-request-id"))
			assert.Equal(t, []string{"0", "1", "2"}[i], req.Header.Get("x-api-blob-request-attempt"))
			assert.Equal(t, "Bearer "+testToken, req.Header.Get("authorization"))
			assert.Equal(t, "11", req.Header.Get("x-api-version"))
			assert.Equal(t, "upload", req.Header.Get("x-mpu-action"))
			assert.Equal(t, int64(len("payload")), req.ContentLength)
			assert.Equal(t, "payload", string(transport.bodies[i]))
		}
	})

	t.Run("客户端错误不重试", func(t *testing.T) {
		transport := &fakeTransport{respond: scripted(
			statusResponse(http.StatusBadRequest, `{"error":{"code":"bad_request","message":"part too small"}}`),
		)}
		e := newTestExecutor(transport, &recordingClock{}, 3)

		_, err := e.execute(context.Background(), uploadOp("payload"))
		var clientErr *ClientRequestError
		require.ErrorAs(t, err, &clientErr)
		assert.Equal(t, http.StatusBadRequest, clientErr.StatusCode)
		assert.Equal(t, "bad_request", clientErr.Code)
		assert.Equal(t, "part too small", clientErr.Message)
		assert.Equal(t, "upload", clientErr.Op)
		assert.Equal(t, 1, transport.count())
		assert.False(t, errors.Is(err, ErrNotExists))
	})

	t.Run("对象不存在", func(t *testing.T) {
		transport := &fakeTransport{respond: scripted(statusResponse(http.StatusNotFound, "not json"))}
		e := newTestExecutor(transport, &recordingClock{}, 3)

		_, err := e.execute(context.Background(), uploadOp(""))
		assert.ErrorIs(t, err, ErrNotExists)
		assert.Equal(t, 1, transport.count())
	})

	t.Run("重试用尽", func(t *testing.T) {
		transport := &fakeTransport{respond: scripted(
			statusResponse(http.StatusServiceUnavailable, `{"error":{"code":"unavailable","message":"later"}}`),
		)}
		clock := &recordingClock{}
		e := newTestExecutor(transport, clock, 3)

		_, err := e.execute(context.Background(), uploadOp("payload"))
		var exhausted *TransportExhaustedError
		require.ErrorAs(t, err, &exhausted)
		assert.Equal(t, 4, exhausted.Attempts)
		assert.Equal(t, "upload", exhausted.Op)
		var serverErr *ServerError
		require.ErrorAs(t, err, &serverErr)
		assert.Equal(t, http.StatusServiceUnavailable, serverErr.StatusCode)
		assert.Equal(t, "unavailable", serverErr.Code)
		assert.Equal(t, 4, transport.count())
		assert.Len(t, clock.delays, 3)
	})

	t.Run("不重试", func(t *testing.T) {
		transport := &fakeTransport{respond: scripted(statusResponse(http.StatusBadGateway, ""))}
		e := newTestExecutor(transport, &recordingClock{}, 0)

		_, err := e.execute(context.Background(), uploadOp(""))
		var exhausted *TransportExhaustedError
		require.ErrorAs(t, err, &exhausted)
		assert.Equal(t, 1, exhausted.Attempts)
		assert.Equal(t, 1, transport.count())
	})

	t.Run("网络错误重试", func(t *testing.T) {
		networkErr := errors.New("connection reset by peer")
		transport := &fakeTransport{respond: func(attempt int) (*Response, error) {
			if attempt == 0 {
				return nil, networkErr
			}
			return statusResponse(http.StatusOK, ""), nil
		}}
		e := newTestExecutor(transport, &recordingClock{}, 3)

		_, err := e.execute(context.Background(), uploadOp(""))
		require.NoError(t, err)
		assert.Equal(t, 2, transport.count())

		transport = &fakeTransport{respond: func(int) (*Response, error) { return nil, networkErr }}
		e = newTestExecutor(transport, &recordingClock{}, 2)
		_, err = e.execute(context.Background(), uploadOp(""))
		var exhausted *TransportExhaustedError
		require.ErrorAs(t, err, &exhausted)
		assert.ErrorIs(t, err, networkErr)
		assert.Equal(t, 3, transport.count())
	})

	t.Run("Retry-After", func(t *testing.T) {
		limited := statusResponse(http.StatusTooManyRequests, "")
		limited.Header.Set("retry-after", "2")
		throttled := statusResponse(http.StatusServiceUnavailable, "")
		throttled.Header.Set("retry-after", "120")
		transport := &fakeTransport{respond: scripted(limited, throttled, statusResponse(http.StatusOK, ""))}
		clock := &recordingClock{}
		e := newTestExecutor(transport, clock, 3)

		_, err := e.execute(context.Background(), uploadOp(""))
		require.NoError(t, err)
		assert.Equal(t, []time.Duration{2 * time.Second, maxRetryAfter}, clock.delays)
	})

	t.Run("退避上限", func(t *testing.T) {
		transport := &fakeTransport{respond: scripted(statusResponse(http.StatusInternalServerError, ""))}
		clock := &recordingClock{}
		e := newTestExecutor(transport, clock, 10)

		_, err := e.execute(context.Background(), uploadOp(""))
		require.Error(t, err)
		require.Len(t, clock.delays, 10)
		assert.GreaterOrEqual(t, clock.delays[0], 50*time.Millisecond)
		assert.LessOrEqual(t, clock.delays[0], 150*time.Millisecond)
		for _, d := range clock.delays {
			assert.Greater(t, d, time.Duration(0))
			assert.LessOrEqual(t, d, 3*time.Second)
		}
	})

	t.Run("上下文取消不重试", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		transport := &fakeTransport{respond: func(int) (*Response, error) {
			cancel()
			return nil, context.Canceled
		}}
		e := newTestExecutor(transport, &recordingClock{}, 3)

		_, err := e.execute(ctx, uploadOp(""))
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, transport.count())
	})

	t.Run("阻塞调用中挂起", func(t *testing.T) {
		var sent int
		transport := transportFunc(func(ctx context.Context, _ *Request) *Future[*Response] {
			sent++
			return Spawn(ctx, func(ctx context.Context) (*Response, error) {
				<-ctx.Done()
				return nil, ctx.Err()
			})
		})
		e := newTestExecutor(transport, &recordingClock{}, 3)

		_, err := RunSync(context.Background(), func(ctx context.Context) (*Response, error) {
			rsp, err := e.execute(ctx, uploadOp(""))
			var bridgeErr *BridgeMisuseError
			assert.ErrorAs(t, err, &bridgeErr)
			return rsp, err
		})
		var bridgeErr *BridgeMisuseError
		require.ErrorAs(t, err, &bridgeErr)
		assert.Equal(t, 1, sent)
	})

	t.Run("上传进度", func(t *testing.T) {
		transport := &fakeTransport{respond: scripted(
			statusResponse(http.StatusInternalServerError, ""),
			statusResponse(http.StatusOK, ""),
		)}
		e := newTestExecutor(transport, &recordingClock{}, 3)
		var sent []int64
		op := uploadOp("0123456789")
		op.onProgress = func(n int64) { sent = append(sent, n) }

		_, err := e.execute(context.Background(), op)
		require.NoError(t, err)
		require.Equal(t, 2, transport.count())
		for _, req := range transport.requests {
			assert.Equal(t, "10", req.Header.Get("x-content-length"))
		}
		require.NotEmpty(t, sent)
		assert.Equal(t, int64(10), sent[len(sent)-1])

		plain := &fakeTransport{respond: scripted(statusResponse(http.StatusOK, ""))}
		e = newTestExecutor(plain, &recordingClock{}, 0)
		_, err = e.execute(context.Background(), uploadOp("0123456789"))
		require.NoError(t, err)
		assert.Empty(t, plain.requests[0].Header.Get("x-content-length"))
	})

	t.Run("指标", func(t *testing.T) {
		transport := &fakeTransport{respond: scripted(
			statusResponse(http.StatusInternalServerError, ""),
			statusResponse(http.StatusOK, ""),
		)}
		e := newTestExecutor(transport, &recordingClock{}, 3)
		e.metrics = NewMetrics(prometheus.NewRegistry())

		_, err := e.execute(context.Background(), uploadOp("0123456789"))
		require.NoError(t, err)
		assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.Attempts.WithLabelValues("upload", outcomeServerError)))
		assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.Attempts.WithLabelValues("upload", outcomeSuccess)))
		assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.Retries.WithLabelValues("upload")))
		assert.Equal(t, 10.0, testutil.ToFloat64(e.metrics.Bytes))
		assert.Equal(t, 1, testutil.CollectAndCount(e.metrics.Latency))
	})
}

func TestExecuteJSON(t *testing.T) {
	t.Run("正常解析", func(t *testing.T) {
		transport := &fakeTransport{respond: scripted(statusResponse(http.StatusOK, `{"etag":"abc"}`))}
		e := newTestExecutor(transport, &recordingClock{}, 0)
		var out struct {
			ETag string `json:"etag"`
		}
		require.NoError(t, e.executeJSON(context.Background(), uploadOp(""), &out))
		assert.Equal(t, "abc", out.ETag)
	})

	t.Run("响应体不合法", func(t *testing.T) {
		transport := &fakeTransport{respond: scripted(statusResponse(http.StatusOK, "<html>"))}
		e := newTestExecutor(transport, &recordingClock{}, 3)
		var out struct{}
		err := e.executeJSON(context.Background(), uploadOp(""), &out)
		var unexpected *UnexpectedResponseError
		require.ErrorAs(t, err, &unexpected)
		assert.Equal(t, "upload", unexpected.Op)
		assert.Equal(t, 1, transport.count())
	})
}

func TestParseRetryAfter(t *testing.T) {
	assert.Equal(t, time.Duration(0), parseRetryAfter(""))
	assert.Equal(t, time.Duration(0), parseRetryAfter("soon"))
	assert.Equal(t, time.Duration(0), parseRetryAfter("-3"))
	assert.Equal(t, 5*time.Second, parseRetryAfter("5"))
	assert.Equal(t, maxRetryAfter, parseRetryAfter("3600"))
}

type transportFunc func(ctx context.Context, req *Request) *Future[*Response]

func (f transportFunc) Send(ctx context.Context, req *Request) *Future[*Response] {
	return f(ctx, req)
}
