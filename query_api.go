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
	"time"
)

// ObjectInfo 对象信息。
type ObjectInfo struct {
	// URL 对象地址。
	URL string `json:"url"`
	// DownloadURL 下载地址。
	DownloadURL string `json:"downloadUrl"`
	// Pathname 路径。
	Pathname string `json:"pathname"`
	// Size 对象大小。
	Size int64 `json:"size"`
	// ContentType 内容类型。
	ContentType string `json:"contentType"`
	// ContentDisposition 下载时的 Content-Disposition。
	ContentDisposition string `json:"contentDisposition"`
	// CacheControl 缓存策略。
	CacheControl string `json:"cacheControl"`
	// UploadedAt 上传时间。
	UploadedAt time.Time `json:"uploadedAt"`
}

type Querier interface {
	// Info 获取对象信息。对象不存在时返回的错误与 ErrNotExists 匹配。
	Info(ctx context.Context, url string) (*ObjectInfo, error)

	// Exist 对象是否存在。
	Exist(ctx context.Context, url string) (bool, error)
}

type AsyncQuerier interface {
	// Info 获取对象信息。
	Info(ctx context.Context, url string) *Future[*ObjectInfo]

	// Exist 对象是否存在。
	Exist(ctx context.Context, url string) *Future[bool]
}
