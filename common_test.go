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

package blob_test

import (
	"context"
	crand "crypto/rand"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"

	blob "gitee.com/ivfzhou/blob-uploader"
	"gitee.com/ivfzhou/blob-uploader/internal/blobtest"
)

type mockTransport struct {
	fn func(*http.Request) (*http.Response, error)
}

type readCloser struct {
	readErr error
	data    []byte
}

// 把阻塞和协作两种客户端统一成阻塞调用，便于比较结果。
type uploadApi interface {
	AutoUpload(ctx context.Context, pathname string, data []byte, opts ...blob.UploadOption) (*blob.ObjectDescriptor, error)
}

func NewReader(data []byte, readErr error) io.Reader {
	return &readCloser{readErr: readErr, data: data}
}

func MakeBytesWithSize(n int) []byte {
	data := make([]byte, n)
	n, err := crand.Read(data)
	if err != nil || n != len(data) {
		panic("rand.Read fail")
	}
	return data
}

func MockHttpClient(fn func(*http.Request) (*http.Response, error)) *http.Client {
	return &http.Client{
		Transport: &mockTransport{
			fn: fn,
		},
	}
}

// 连接到测试存储服务的客户端参数。
func StoreOptions(store *blobtest.Store, opts ...blob.Option) []blob.Option {
	return append([]blob.Option{
		blob.WithBaseURL(store.URL),
		blob.WithToken(blobtest.Token),
		blob.WithRetries(2),
		blob.WithRetryBackoff(time.Millisecond, 5*time.Millisecond),
		blob.WithLogger(zerolog.Nop()),
	}, opts...)
}

func NewBlockingClient(t *testing.T, store *blobtest.Store, opts ...blob.Option) blob.Api {
	t.Helper()
	c, err := blob.NewClient(StoreOptions(store, opts...)...)
	if err != nil {
		t.Fatalf("unexpected error: want nil, got %v", err)
	}
	return c
}

func NewAsyncClient(t *testing.T, store *blobtest.Store, opts ...blob.Option) blob.AsyncApi {
	t.Helper()
	c, err := blob.NewAsyncClient(StoreOptions(store, opts...)...)
	if err != nil {
		t.Fatalf("unexpected error: want nil, got %v", err)
	}
	return c
}

// 协作式客户端的阻塞包装。
type awaitingClient struct {
	c blob.AsyncApi
}

func (a *awaitingClient) AutoUpload(ctx context.Context, pathname string, data []byte,
	opts ...blob.UploadOption) (*blob.ObjectDescriptor, error) {

	return blob.Await(ctx, a.c.AutoUpload(ctx, pathname, data, opts...))
}

// 对两种客户端各运行一次 fn。
func ForEachClient(t *testing.T, fn func(t *testing.T, store *blobtest.Store, newApi func(opts ...blob.Option) uploadApi)) {
	t.Run("阻塞客户端", func(t *testing.T) {
		store := blobtest.Start(t)
		fn(t, store, func(opts ...blob.Option) uploadApi { return NewBlockingClient(t, store, opts...) })
	})
	t.Run("协作客户端", func(t *testing.T) {
		store := blobtest.Start(t)
		fn(t, store, func(opts ...blob.Option) uploadApi {
			return &awaitingClient{NewAsyncClient(t, store, opts...)}
		})
	})
}

func (m *mockTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return m.fn(req)
}

func (rc *readCloser) Read(p []byte) (int, error) {
	if len(rc.data) <= 0 {
		if rc.readErr != nil {
			return 0, rc.readErr
		}
		return 0, io.EOF
	}
	n := copy(p, rc.data)
	rc.data = rc.data[n:]
	return n, nil
}
