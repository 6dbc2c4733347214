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
)

// Uploader 一次调用完成整个分片上传。默认追加随机后缀。
//
// 失败时不会提交分片清单，远端会话默认保留，可用 WithAbortOnFailure 改为尽力放弃。
type Uploader interface {
	// AutoUpload 上传内存中的数据。
	AutoUpload(ctx context.Context, pathname string, data []byte, opts ...UploadOption) (*ObjectDescriptor, error)

	// AutoUploadFromReader 上传读取流中的 size 个字节。数据在上传前按分片读入内存。
	AutoUploadFromReader(ctx context.Context, pathname string, r io.Reader, size int64,
		opts ...UploadOption) (*ObjectDescriptor, error)

	// AutoUploadFromReaderAt 上传 r 中的 size 个字节。每个分片在上传时才读取。
	AutoUploadFromReaderAt(ctx context.Context, pathname string, r io.ReaderAt, size int64,
		opts ...UploadOption) (*ObjectDescriptor, error)

	// AutoUploadFromDisk 上传本地文件。
	AutoUploadFromDisk(ctx context.Context, pathname, filePath string, opts ...UploadOption) (*ObjectDescriptor, error)
}

// AsyncUploader 协作式的 Uploader。
type AsyncUploader interface {
	// AutoUpload 上传内存中的数据。
	AutoUpload(ctx context.Context, pathname string, data []byte, opts ...UploadOption) *Future[*ObjectDescriptor]

	// AutoUploadFromReader 上传读取流中的 size 个字节。
	AutoUploadFromReader(ctx context.Context, pathname string, r io.Reader, size int64,
		opts ...UploadOption) *Future[*ObjectDescriptor]

	// AutoUploadFromReaderAt 上传 r 中的 size 个字节。
	AutoUploadFromReaderAt(ctx context.Context, pathname string, r io.ReaderAt, size int64,
		opts ...UploadOption) *Future[*ObjectDescriptor]

	// AutoUploadFromDisk 上传本地文件。
	AutoUploadFromDisk(ctx context.Context, pathname, filePath string, opts ...UploadOption) *Future[*ObjectDescriptor]
}
