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
	"net/http"
	"net/url"

	"github.com/rs/zerolog"
)

// 两种客户端共用的业务逻辑。所有方法都只通过 Await 等待 I/O，不关心自己运行在哪种执行模式下。
type baseImpl struct {
	executor   *requestExecutor
	newRuntime func(concurrency int) Runtime
	log        zerolog.Logger
}

func newEngine(o *options) (*baseImpl, error) {
	// 构造时读取一次令牌。
	token, err := o.credentials.Token()
	if err != nil {
		return nil, err
	}

	return &baseImpl{
		executor:   newRequestExecutor(o, token),
		newRuntime: o.newRuntime,
		log:        o.logger,
	}, nil
}

// 生成分片上传协议的操作。
func (c *baseImpl) mpuOperation(action, pathname string, header http.Header) *operation {
	if header == nil {
		header = http.Header{}
	}
	header.Set("x-mpu-action", action)
	return &operation{
		name:   action,
		method: http.MethodPost,
		path:   "/mpu",
		query:  url.Values{"pathname": []string{pathname}},
		header: header,
	}
}

// 生成某个会话内的分片上传协议操作。
func (c *baseImpl) sessionOperation(action string, s *Session) *operation {
	header := http.Header{}
	header.Set("x-mpu-key", urlEncode(s.Key))
	header.Set("x-mpu-upload-id", s.UploadId)
	return c.mpuOperation(action, s.Pathname, header)
}
