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

import "context"

// Session 一次分片上传的会话。由创建它的上传独占，不可在并发上传间共享。
type Session struct {
	// Pathname 请求的对象路径。
	Pathname string
	// Key 存储服务分配的对象键。
	Key string
	// UploadId 存储服务签发的会话令牌。
	UploadId string
	// ContentType 声明的内容类型。
	ContentType string
	// PartSize 分片大小。
	PartSize int64
}

// ObjectDescriptor 上传完成后的对象信息。
type ObjectDescriptor struct {
	// URL 对象地址。
	URL string `json:"url"`
	// DownloadURL 下载地址。
	DownloadURL string `json:"downloadUrl"`
	// Pathname 最终路径，可能带有随机后缀。
	Pathname string `json:"pathname"`
	// Size 对象大小。
	Size int64 `json:"size"`
	// ContentType 内容类型。
	ContentType string `json:"contentType"`
	// ContentDisposition 下载时的 Content-Disposition。
	ContentDisposition string `json:"contentDisposition"`
}

type MultiUploader interface {
	// CreateUpload 创建分片上传会话。默认不追加随机后缀。
	CreateUpload(ctx context.Context, pathname string, opts ...UploadOption) (UploadHandle, error)

	// Abort 放弃会话，丢弃已上传的分片。
	Abort(ctx context.Context, session Session) error
}

// UploadHandle 手动分片上传。
type UploadHandle interface {
	// Session 会话信息。
	Session() Session

	// UploadPart 上传一个分片，partNumber 取值 1 到 MaxParts。
	UploadPart(ctx context.Context, partNumber int, data []byte) (PartResult, error)

	// Complete 合并分片，结束上传。parts 可以无序，但分片号必须从 1 开始连续。
	// 存储服务未返回对象大小时，按 parts 中各分片的 Size 求和。
	Complete(ctx context.Context, parts []PartResult) (*ObjectDescriptor, error)

	// Abort 放弃会话。
	Abort(ctx context.Context) error
}

type AsyncMultiUploader interface {
	// CreateUpload 创建分片上传会话。默认不追加随机后缀。
	CreateUpload(ctx context.Context, pathname string, opts ...UploadOption) *Future[AsyncUploadHandle]

	// Abort 放弃会话，丢弃已上传的分片。
	Abort(ctx context.Context, session Session) *Future[struct{}]
}

// AsyncUploadHandle 协作式手动分片上传。
type AsyncUploadHandle interface {
	// Session 会话信息。
	Session() Session

	// UploadPart 上传一个分片，partNumber 取值 1 到 MaxParts。
	UploadPart(ctx context.Context, partNumber int, data []byte) *Future[PartResult]

	// Complete 合并分片，结束上传。存储服务未返回对象大小时，按 parts 中各分片的 Size 求和。
	Complete(ctx context.Context, parts []PartResult) *Future[*ObjectDescriptor]

	// Abort 放弃会话。
	Abort(ctx context.Context) *Future[struct{}]
}
