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
	"io"
	"net/http"
	"net/url"
)

// Request 一次 HTTP 交换的请求。
type Request struct {
	// Method HTTP 方法。
	Method string
	// Path 相对 API 根地址的路径，如 /mpu。
	Path string
	// Query 查询参数。
	Query url.Values
	// Header 请求头。
	Header http.Header
	// Body 请求体，可以为空。
	Body io.Reader
	// ContentLength 请求体长度。
	ContentLength int64
}

// Response 一次 HTTP 交换的响应。响应码不做解释，由调用方分类。
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Transport 执行一次 HTTP 交换。
//
// 阻塞实现返回的 Future 总是已完成的；协作实现返回的 Future 在后台协程完成请求后解决。
// 网络错误通过 Future 的错误返回，非 2xx 响应不算错误。
type Transport interface {
	Send(ctx context.Context, req *Request) *Future[*Response]
}
