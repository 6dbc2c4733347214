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
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrNotExists 对象不存在。ClientRequestError 在响应码为 404 时与之匹配。
var ErrNotExists = errors.New("blob not found")

// ValidationError 参数或数据源不合法，不会重试。
//
// 参数错误在任何网络请求之前返回。读取流比声明的大小短、数据源读取失败等问题在读取分片时才能发现，此时会话已经创建。
type ValidationError struct {
	// Field 不合法的参数名。
	Field string
	// Reason 原因。
	Reason string
	// Err 底层错误，可能为空。
	Err error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("blob: invalid %s: %s: %v", e.Field, e.Reason, e.Err)
	}
	return fmt.Sprintf("blob: invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// ClientRequestError 存储服务返回了不可重试的 4xx 响应。
type ClientRequestError struct {
	// Op 操作名，如 create、upload、complete。
	Op string
	// StatusCode HTTP 响应码。
	StatusCode int
	// Code 存储服务返回的错误码。
	Code string
	// Message 存储服务返回的错误信息。
	Message string
}

func (e *ClientRequestError) Error() string {
	return fmt.Sprintf("blob: %s rejected with status %d: %s", e.Op, e.StatusCode, describe(e.Code, e.Message))
}

// Is 404 响应与 ErrNotExists 匹配。
func (e *ClientRequestError) Is(target error) bool {
	return target == ErrNotExists && e.StatusCode == http.StatusNotFound
}

// ServerError 存储服务返回的可重试响应（5xx 或 429）。作为 TransportExhaustedError 的原因出现。
type ServerError struct {
	// Op 操作名。
	Op string
	// StatusCode HTTP 响应码。
	StatusCode int
	// Code 存储服务返回的错误码。
	Code string
	// Message 存储服务返回的错误信息。
	Message string

	retryAfter time.Duration
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("blob: %s failed with status %d: %s", e.Op, e.StatusCode, describe(e.Code, e.Message))
}

// TransportExhaustedError 瞬时故障重试次数用尽。
type TransportExhaustedError struct {
	// Op 操作名。
	Op string
	// Attempts 总尝试次数。
	Attempts int
	// Err 最后一次失败的原因。
	Err error
}

func (e *TransportExhaustedError) Error() string {
	return fmt.Sprintf("blob: %s gave up after %d attempts: %v", e.Op, e.Attempts, e.Err)
}

func (e *TransportExhaustedError) Unwrap() error {
	return e.Err
}

// BridgeMisuseError 在 RunSync 中执行的逻辑企图挂起。属于组合缺陷，通常意味着阻塞客户端被配置了协作式的传输。
type BridgeMisuseError struct{}

func (e *BridgeMisuseError) Error() string {
	return "blob: operation attempted to suspend inside a blocking call"
}

// InvariantViolationError 内部不变量被破坏，如所有分片成功后分片号仍不连续。
type InvariantViolationError struct {
	// Reason 被破坏的不变量。
	Reason string
}

func (e *InvariantViolationError) Error() string {
	return "blob: invariant violated: " + e.Reason
}

// MissingCredentialError 未找到访问令牌。
type MissingCredentialError struct{}

func (e *MissingCredentialError) Error() string {
	return "blob: no read-write token found, set BLOB_READ_WRITE_TOKEN or pass WithToken"
}

// UnexpectedResponseError 存储服务返回了成功响应码，但响应体无法解析。
type UnexpectedResponseError struct {
	// Op 操作名。
	Op string
	// Err 解析失败的原因。
	Err error
}

func (e *UnexpectedResponseError) Error() string {
	return fmt.Sprintf("blob: unexpected %s response: %v", e.Op, e.Err)
}

func (e *UnexpectedResponseError) Unwrap() error {
	return e.Err
}

func describe(code, message string) string {
	switch {
	case code == "" && message == "":
		return "no details"
	case code == "":
		return message
	case message == "":
		return code
	default:
		return code + ": " + message
	}
}
