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
	"fmt"
	"io"
)

// Part 载荷中连续的一段。分片号在切分时确定，之后不再改变。
type Part struct {
	// Number 分片号，从 1 开始。
	Number int
	// Offset 在载荷中的偏移。
	Offset int64
	// Size 字节数。
	Size int64

	data   []byte
	src    io.ReaderAt
	stream *partStream
}

// PartResult 分片上传成功后的结果。
type PartResult struct {
	// PartNumber 分片号。
	PartNumber int `json:"partNumber"`
	// ETag 存储服务给出的实体标签。
	ETag string `json:"etag"`
	// Size 分片大小。保存后重新加载的清单仍保留大小，合并请求中不发送。
	Size int64 `json:"size,omitempty"`
}

// PartFunc 上传一个分片。
type PartFunc func(ctx context.Context, part *Part) (PartResult, error)

// Runtime 在并发上限内调度分片上传。
//
// 结果与输入一一对应但顺序不定；出现第一个失败后不再开始新的分片，已开始的分片运行结束，整体返回第一个失败。
// 分片按分片号依次开始，来自读取流的分片在开始前装载数据，结束后释放，同时存活的分片数据不超过并发上限。
type Runtime interface {
	Upload(ctx context.Context, parts []*Part, fn PartFunc) *Future[[]PartResult]
}

// Bytes 读取分片数据。
func (p *Part) Bytes() ([]byte, error) {
	if p.data != nil {
		return p.data, nil
	}
	switch {
	case p.stream != nil:
		if err := p.load(); err != nil {
			return nil, err
		}
		return p.data, nil
	case p.src != nil:
		buf := make([]byte, p.Size)
		n, err := p.src.ReadAt(buf, p.Offset)
		if int64(n) == p.Size {
			return buf, nil
		}
		if err == nil || errors.Is(err, io.EOF) {
			return nil, &ValidationError{
				Field:  "Size",
				Reason: fmt.Sprintf("source ended %d bytes into part %d", n, p.Number),
				Err:    io.ErrUnexpectedEOF,
			}
		}
		return nil, &ValidationError{Field: "Source", Reason: fmt.Sprintf("read part %d", p.Number), Err: err}
	default:
		return p.data, nil
	}
}

// 从读取流装载数据。读取流只能按分片号依次装载。
func (p *Part) load() error {
	if p.stream == nil || p.data != nil {
		return nil
	}
	data, err := p.stream.read(p)
	if err != nil {
		return err
	}
	p.data = data
	return nil
}

// 释放从读取流装载的数据。
func (p *Part) release() {
	if p.stream != nil {
		p.data = nil
	}
}
