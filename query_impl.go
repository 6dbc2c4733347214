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
	"net/http"
	"net/url"
	"strings"
)

// Info 获取对象信息。
func (c *client) Info(ctx context.Context, u string) (*ObjectInfo, error) {
	return RunSync(ctx, func(ctx context.Context) (*ObjectInfo, error) {
		return c.info(ctx, u)
	})
}

// Exist 对象是否存在。
func (c *client) Exist(ctx context.Context, u string) (bool, error) {
	return RunSync(ctx, func(ctx context.Context) (bool, error) {
		return c.exist(ctx, u)
	})
}

// Info 获取对象信息。
func (c *asyncClient) Info(ctx context.Context, u string) *Future[*ObjectInfo] {
	return Spawn(ctx, func(ctx context.Context) (*ObjectInfo, error) {
		return c.info(ctx, u)
	})
}

// Exist 对象是否存在。
func (c *asyncClient) Exist(ctx context.Context, u string) *Future[bool] {
	return Spawn(ctx, func(ctx context.Context) (bool, error) {
		return c.exist(ctx, u)
	})
}

// 获取对象信息。
func (c *baseImpl) info(ctx context.Context, u string) (*ObjectInfo, error) {
	u = strings.TrimSpace(u)
	if len(u) <= 0 {
		return nil, &ValidationError{Field: "URL", Reason: "must not be empty"}
	}

	op := &operation{name: "head", method: http.MethodGet, path: "/", query: url.Values{"url": []string{u}}}
	info := &ObjectInfo{}
	if err := c.executor.executeJSON(ctx, op, info); err != nil {
		return nil, err
	}
	return info, nil
}

// 对象是否存在。
func (c *baseImpl) exist(ctx context.Context, u string) (bool, error) {
	_, err := c.info(ctx, u)
	if errors.Is(err, ErrNotExists) {
		return false, nil
	}
	return err == nil, err
}
