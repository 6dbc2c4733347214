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
	"net/http"
	"strings"

	"github.com/bytedance/sonic"
)

// 每次请求最多删除的对象数。
const deleteBatchSize = 1000

type deleteRequest struct {
	URLs []string `json:"urls"`
}

// Delete 删除对象。
func (c *client) Delete(ctx context.Context, urls ...string) error {
	_, err := RunSync(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.deleteObjects(ctx, urls)
	})
	return err
}

// Delete 删除对象。
func (c *asyncClient) Delete(ctx context.Context, urls ...string) *Future[struct{}] {
	return Spawn(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.deleteObjects(ctx, urls)
	})
}

// 分批删除对象。
func (c *baseImpl) deleteObjects(ctx context.Context, urls []string) error {
	// 处理地址。
	cleaned := make([]string, 0, len(urls))
	for _, v := range urls {
		if v = strings.TrimSpace(v); len(v) > 0 {
			cleaned = append(cleaned, v)
		}
	}
	if len(cleaned) <= 0 {
		return &ValidationError{Field: "URLs", Reason: "at least one url is required"}
	}

	// 循环删除对象。
	for len(cleaned) > 0 {
		n := min(deleteBatchSize, len(cleaned))
		batch := cleaned[:n]
		cleaned = cleaned[n:]

		// 组装请求体。
		body, err := sonic.Marshal(&deleteRequest{URLs: batch})
		if err != nil {
			return err
		}
		header := http.Header{}
		header.Set("content-type", "application/json")
		op := &operation{name: "delete", method: http.MethodPost, path: "/delete", header: header, body: body}

		if err = c.executor.executeJSON(ctx, op, nil); err != nil {
			return err
		}
	}

	return nil
}
