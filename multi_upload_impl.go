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
	"sort"
	"strconv"

	"github.com/bytedance/sonic"
)

type uploadHandle struct {
	*baseImpl
	session Session
	opts    *uploadOptions
}

type asyncUploadHandle struct {
	*baseImpl
	session Session
	opts    *uploadOptions
}

type createResponse struct {
	UploadId string `json:"uploadId"`
	Key      string `json:"key"`
}

type partResponse struct {
	ETag       string `json:"etag"`
	PartNumber int    `json:"partNumber"`
}

// CreateUpload 创建分片上传会话。
func (c *client) CreateUpload(ctx context.Context, pathname string, opts ...UploadOption) (UploadHandle, error) {
	o := newUploadOptions(opts, false)
	s, err := RunSync(ctx, func(ctx context.Context) (*Session, error) {
		return c.createUpload(ctx, pathname, o)
	})
	if err != nil {
		return nil, err
	}
	return &uploadHandle{c.baseImpl, *s, o}, nil
}

// Abort 放弃会话。
func (c *client) Abort(ctx context.Context, session Session) error {
	_, err := RunSync(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.abortSession(ctx, &session)
	})
	return err
}

// CreateUpload 创建分片上传会话。
func (c *asyncClient) CreateUpload(ctx context.Context, pathname string,
	opts ...UploadOption) *Future[AsyncUploadHandle] {

	o := newUploadOptions(opts, false)
	return Spawn(ctx, func(ctx context.Context) (AsyncUploadHandle, error) {
		s, err := c.createUpload(ctx, pathname, o)
		if err != nil {
			return nil, err
		}
		return &asyncUploadHandle{c.baseImpl, *s, o}, nil
	})
}

// Abort 放弃会话。
func (c *asyncClient) Abort(ctx context.Context, session Session) *Future[struct{}] {
	return Spawn(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.abortSession(ctx, &session)
	})
}

// Session 会话信息。
func (h *uploadHandle) Session() Session {
	return h.session
}

// UploadPart 上传一个分片。
func (h *uploadHandle) UploadPart(ctx context.Context, partNumber int, data []byte) (PartResult, error) {
	return RunSync(ctx, func(ctx context.Context) (PartResult, error) {
		return h.uploadManualPart(ctx, &h.session, h.opts, partNumber, data)
	})
}

// Complete 合并分片。
func (h *uploadHandle) Complete(ctx context.Context, parts []PartResult) (*ObjectDescriptor, error) {
	return RunSync(ctx, func(ctx context.Context) (*ObjectDescriptor, error) {
		return h.completeManual(ctx, &h.session, parts)
	})
}

// Abort 放弃会话。
func (h *uploadHandle) Abort(ctx context.Context) error {
	_, err := RunSync(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, h.abortSession(ctx, &h.session)
	})
	return err
}

// Session 会话信息。
func (h *asyncUploadHandle) Session() Session {
	return h.session
}

// UploadPart 上传一个分片。
func (h *asyncUploadHandle) UploadPart(ctx context.Context, partNumber int, data []byte) *Future[PartResult] {
	return Spawn(ctx, func(ctx context.Context) (PartResult, error) {
		return h.uploadManualPart(ctx, &h.session, h.opts, partNumber, data)
	})
}

// Complete 合并分片。
func (h *asyncUploadHandle) Complete(ctx context.Context, parts []PartResult) *Future[*ObjectDescriptor] {
	return Spawn(ctx, func(ctx context.Context) (*ObjectDescriptor, error) {
		return h.completeManual(ctx, &h.session, parts)
	})
}

// Abort 放弃会话。
func (h *asyncUploadHandle) Abort(ctx context.Context) *Future[struct{}] {
	return Spawn(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, h.abortSession(ctx, &h.session)
	})
}

// 校验参数后创建会话。
func (c *baseImpl) createUpload(ctx context.Context, pathname string, o *uploadOptions) (*Session, error) {
	if err := o.validate(pathname); err != nil {
		return nil, err
	}
	return c.createSession(ctx, pathname, o)
}

// 上传调用方给定的分片。
func (c *baseImpl) uploadManualPart(ctx context.Context, s *Session, o *uploadOptions, partNumber int,
	data []byte) (PartResult, error) {

	if partNumber < 1 || partNumber > MaxParts {
		return PartResult{}, &ValidationError{
			Field:  "PartNumber",
			Reason: fmt.Sprintf("must be between 1 and %d, got %d", MaxParts, partNumber),
		}
	}
	if len(data) <= 0 {
		return PartResult{}, &ValidationError{Field: "Data", Reason: "part must not be empty"}
	}

	tracker := newProgressTracker(o.onProgress, int64(len(data)), c.log)
	part := &Part{Number: partNumber, Size: int64(len(data)), data: data}
	res, err := c.uploadPart(ctx, s, part, tracker.forPart(partNumber))
	if err != nil {
		return PartResult{}, err
	}
	tracker.finish(partNumber)
	return res, nil
}

// 校验调用方给定的分片清单后合并。
func (c *baseImpl) completeManual(ctx context.Context, s *Session, parts []PartResult) (*ObjectDescriptor, error) {
	manifest, size, err := buildManifest(parts)
	if err != nil {
		return nil, &ValidationError{Field: "Parts", Reason: err.Error()}
	}
	return c.completeSession(ctx, s, manifest, size)
}

// 向存储服务申请会话。
func (c *baseImpl) createSession(ctx context.Context, pathname string, o *uploadOptions) (*Session, error) {
	var rsp createResponse
	if err := c.executor.executeJSON(ctx, c.mpuOperation("create", pathname, o.putHeader()), &rsp); err != nil {
		return nil, err
	}
	if len(rsp.UploadId) <= 0 || len(rsp.Key) <= 0 {
		return nil, &UnexpectedResponseError{Op: "create", Err: errors.New("uploadId or key is empty")}
	}

	return &Session{
		Pathname:    pathname,
		Key:         rsp.Key,
		UploadId:    rsp.UploadId,
		ContentType: o.contentType,
		PartSize:    o.partSize,
	}, nil
}

// 上传分片。
func (c *baseImpl) uploadPart(ctx context.Context, s *Session, part *Part,
	onProgress func(sent int64)) (PartResult, error) {

	data, err := part.Bytes()
	if err != nil {
		return PartResult{}, err
	}

	op := c.sessionOperation("upload", s)
	op.header.Set("x-mpu-part-number", strconv.Itoa(part.Number))
	op.body = data
	op.onProgress = onProgress

	var rsp partResponse
	if err = c.executor.executeJSON(ctx, op, &rsp); err != nil {
		return PartResult{}, err
	}
	if len(rsp.ETag) <= 0 {
		return PartResult{}, &UnexpectedResponseError{Op: "upload", Err: fmt.Errorf("part %d has no etag", part.Number)}
	}
	if rsp.PartNumber != 0 && rsp.PartNumber != part.Number {
		return PartResult{}, &UnexpectedResponseError{
			Op:  "upload",
			Err: fmt.Errorf("sent part %d, store acknowledged part %d", part.Number, rsp.PartNumber),
		}
	}

	return PartResult{PartNumber: part.Number, ETag: rsp.ETag, Size: int64(len(data))}, nil
}

// 提交分片清单，结束上传。
func (c *baseImpl) completeSession(ctx context.Context, s *Session, manifest []PartResult,
	size int64) (*ObjectDescriptor, error) {

	body, err := sonic.Marshal(completeBody(manifest))
	if err != nil {
		return nil, &InvariantViolationError{Reason: "encode manifest: " + err.Error()}
	}
	op := c.sessionOperation("complete", s)
	op.header.Set("content-type", "application/json")
	op.body = body

	var desc ObjectDescriptor
	if err = c.executor.executeJSON(ctx, op, &desc); err != nil {
		return nil, err
	}
	if desc.Size <= 0 {
		desc.Size = size
	}
	if len(desc.ContentType) <= 0 {
		desc.ContentType = s.ContentType
	}
	return &desc, nil
}

// 放弃会话。
func (c *baseImpl) abortSession(ctx context.Context, s *Session) error {
	return c.executor.executeJSON(ctx, c.sessionOperation("abort", s), nil)
}

// 合并请求中的一项。
type completePart struct {
	PartNumber int    `json:"partNumber"`
	ETag       string `json:"etag"`
}

func completeBody(manifest []PartResult) []completePart {
	body := make([]completePart, len(manifest))
	for i, p := range manifest {
		body[i] = completePart{PartNumber: p.PartNumber, ETag: p.ETag}
	}
	return body
}

// 按分片号排序，检查分片号从 1 开始连续且不重复，返回清单和总大小。
func buildManifest(parts []PartResult) ([]PartResult, int64, error) {
	if len(parts) <= 0 {
		return nil, 0, errors.New("no parts")
	}

	manifest := make([]PartResult, len(parts))
	copy(manifest, parts)
	sort.Slice(manifest, func(i, j int) bool { return manifest[i].PartNumber < manifest[j].PartNumber })

	var size int64
	for i, p := range manifest {
		if p.PartNumber != i+1 {
			return nil, 0, fmt.Errorf("expected part %d at position %d, got part %d", i+1, i+1, p.PartNumber)
		}
		if len(p.ETag) <= 0 {
			return nil, 0, fmt.Errorf("part %d has no etag", p.PartNumber)
		}
		size += p.Size
	}
	return manifest, size, nil
}
