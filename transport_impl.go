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

	"golang.org/x/time/rate"
)

type httpTransport struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

type blockingTransport struct {
	*httpTransport
}

type asyncTransport struct {
	*httpTransport
}

// NewBlockingTransport 创建阻塞式传输。Send 在返回前完成请求。
//
// client 为空时使用 http.DefaultClient，limiter 为空时不限速。
func NewBlockingTransport(baseURL string, client *http.Client, limiter *rate.Limiter) Transport {
	return &blockingTransport{newHttpTransport(baseURL, client, limiter)}
}

// NewAsyncTransport 创建协作式传输。Send 立即返回，请求在后台协程中进行。
func NewAsyncTransport(baseURL string, client *http.Client, limiter *rate.Limiter) Transport {
	return &asyncTransport{newHttpTransport(baseURL, client, limiter)}
}

func newHttpTransport(baseURL string, client *http.Client, limiter *rate.Limiter) *httpTransport {
	if client == nil {
		client = http.DefaultClient
	}
	return &httpTransport{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		limiter: limiter,
	}
}

// Send 发送请求。
func (t *blockingTransport) Send(ctx context.Context, req *Request) *Future[*Response] {
	return Completed(t.send(ctx, req))
}

// Send 发送请求。
func (t *asyncTransport) Send(ctx context.Context, req *Request) *Future[*Response] {
	return Spawn(ctx, func(ctx context.Context) (*Response, error) {
		return t.send(ctx, req)
	})
}

// 发送 HTTP 请求。
func (t *httpTransport) send(ctx context.Context, req *Request) (*Response, error) {
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	hreq, err := t.genReq(ctx, req)
	if err != nil {
		return nil, err
	}
	rsp, err := t.client.Do(hreq)
	if err != nil {
		return nil, err
	}
	if rsp == nil {
		return nil, errors.New("http response object is nil")
	}

	// 读取响应体。读取失败视为网络错误。
	body, err := readAndClose(rsp)
	if err != nil {
		return nil, err
	}

	return &Response{StatusCode: rsp.StatusCode, Header: rsp.Header, Body: body}, nil
}

// 生成 HTTP 请求体。
func (t *httpTransport) genReq(ctx context.Context, req *Request) (*http.Request, error) {
	// 生成 URL。
	u := t.baseURL + "/" + strings.TrimLeft(req.Path, "/")
	if len(req.Query) > 0 {
		u += "?" + req.Query.Encode()
	}

	var body io.Reader = http.NoBody
	if req.Body != nil && req.ContentLength > 0 {
		body = req.Body
	}
	hreq, err := http.NewRequestWithContext(ctx, req.Method, u, body)
	if err != nil {
		return nil, err
	}
	if body != http.NoBody {
		hreq.ContentLength = req.ContentLength
	}

	// 生成请求头。
	if req.Header != nil {
		hreq.Header = req.Header.Clone()
	}

	return hreq, nil
}
