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

const (
	// MaxParts 一次分片上传最多的分片数。
	MaxParts = 10000
	// MaxPartSize 分片大小上限 5GiB。
	MaxPartSize int64 = 5 * 1024 * 1024 * 1024
	// DefaultPartSize 默认分片大小 8MiB。
	DefaultPartSize int64 = 8 * 1024 * 1024
	// DefaultMaxConcurrency 默认同时上传的分片数。
	DefaultMaxConcurrency = 6
	// DefaultRetries 瞬时故障默认重试次数。
	DefaultRetries = 3
	// DefaultApiURL 存储服务 API 默认根地址。
	DefaultApiURL = "https://vercel.com/api/blob"
	// DefaultApiVersion 默认 API 版本。
	DefaultApiVersion = "11"
	// MinPartSize 分片大小下限 5MiB，最后一个分片不受限制。
	MinPartSize int64 = 5 * 1024 * 1024
)

// Api 阻塞式客户端，每个方法在返回前完成全部工作。
type Api interface {
	MultiUploader
	Uploader
	Deleter
	Querier
}

// AsyncApi 协作式客户端，每个方法立即返回 Future。
type AsyncApi interface {
	AsyncMultiUploader
	AsyncUploader
	AsyncDeleter
	AsyncQuerier
}

// NewClient 创建阻塞式客户端。找不到访问令牌时返回 MissingCredentialError。
func NewClient(opts ...Option) (Api, error) {
	e, err := newEngine(newOptions(opts, false))
	if err != nil {
		return nil, err
	}
	return &client{e}, nil
}

// NewAsyncClient 创建协作式客户端。找不到访问令牌时返回 MissingCredentialError。
func NewAsyncClient(opts ...Option) (AsyncApi, error) {
	e, err := newEngine(newOptions(opts, true))
	if err != nil {
		return nil, err
	}
	return &asyncClient{e}, nil
}
