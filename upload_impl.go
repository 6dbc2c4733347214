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
	"os"
	"sync"

	"github.com/rs/zerolog"
)

// 分片上传的生命周期。
type uploadState int

const (
	stateCreated uploadState = iota
	statePartsInFlight
	statePartsComplete
	stateFinalized
	stateFailed
)

func (s uploadState) String() string {
	switch s {
	case stateCreated:
		return "created"
	case statePartsInFlight:
		return "parts_in_flight"
	case statePartsComplete:
		return "parts_complete"
	case stateFinalized:
		return "finalized"
	case stateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// AutoUpload 上传内存中的数据。
func (c *client) AutoUpload(ctx context.Context, pathname string, data []byte,
	opts ...UploadOption) (*ObjectDescriptor, error) {

	o := newUploadOptions(opts, true)
	return RunSync(ctx, func(ctx context.Context) (*ObjectDescriptor, error) {
		return c.autoUpload(ctx, pathname, int64(len(data)), attachBytes(data), o)
	})
}

// AutoUploadFromReader 上传读取流中的数据。
func (c *client) AutoUploadFromReader(ctx context.Context, pathname string, r io.Reader, size int64,
	opts ...UploadOption) (*ObjectDescriptor, error) {

	o := newUploadOptions(opts, true)
	return RunSync(ctx, func(ctx context.Context) (*ObjectDescriptor, error) {
		return c.autoUpload(ctx, pathname, size, attachReader(r), o)
	})
}

// AutoUploadFromReaderAt 上传 r 中的数据。
func (c *client) AutoUploadFromReaderAt(ctx context.Context, pathname string, r io.ReaderAt, size int64,
	opts ...UploadOption) (*ObjectDescriptor, error) {

	o := newUploadOptions(opts, true)
	return RunSync(ctx, func(ctx context.Context) (*ObjectDescriptor, error) {
		return c.autoUpload(ctx, pathname, size, attachReaderAt(r), o)
	})
}

// AutoUploadFromDisk 上传本地文件。
func (c *client) AutoUploadFromDisk(ctx context.Context, pathname, filePath string,
	opts ...UploadOption) (*ObjectDescriptor, error) {

	o := newUploadOptions(opts, true)
	return RunSync(ctx, func(ctx context.Context) (*ObjectDescriptor, error) {
		return c.autoUploadFromDisk(ctx, pathname, filePath, o)
	})
}

// AutoUpload 上传内存中的数据。
func (c *asyncClient) AutoUpload(ctx context.Context, pathname string, data []byte,
	opts ...UploadOption) *Future[*ObjectDescriptor] {

	o := newUploadOptions(opts, true)
	return Spawn(ctx, func(ctx context.Context) (*ObjectDescriptor, error) {
		return c.autoUpload(ctx, pathname, int64(len(data)), attachBytes(data), o)
	})
}

// AutoUploadFromReader 上传读取流中的数据。
func (c *asyncClient) AutoUploadFromReader(ctx context.Context, pathname string, r io.Reader, size int64,
	opts ...UploadOption) *Future[*ObjectDescriptor] {

	o := newUploadOptions(opts, true)
	return Spawn(ctx, func(ctx context.Context) (*ObjectDescriptor, error) {
		return c.autoUpload(ctx, pathname, size, attachReader(r), o)
	})
}

// AutoUploadFromReaderAt 上传 r 中的数据。
func (c *asyncClient) AutoUploadFromReaderAt(ctx context.Context, pathname string, r io.ReaderAt, size int64,
	opts ...UploadOption) *Future[*ObjectDescriptor] {

	o := newUploadOptions(opts, true)
	return Spawn(ctx, func(ctx context.Context) (*ObjectDescriptor, error) {
		return c.autoUpload(ctx, pathname, size, attachReaderAt(r), o)
	})
}

// AutoUploadFromDisk 上传本地文件。
func (c *asyncClient) AutoUploadFromDisk(ctx context.Context, pathname, filePath string,
	opts ...UploadOption) *Future[*ObjectDescriptor] {

	o := newUploadOptions(opts, true)
	return Spawn(ctx, func(ctx context.Context) (*ObjectDescriptor, error) {
		return c.autoUploadFromDisk(ctx, pathname, filePath, o)
	})
}

// 上传本地文件，分片在上传时从文件读取。
func (c *baseImpl) autoUploadFromDisk(ctx context.Context, pathname, filePath string,
	o *uploadOptions) (*ObjectDescriptor, error) {

	// 获取文件信息。
	fileInfo, err := os.Stat(filePath)
	if err != nil {
		return nil, &ValidationError{Field: "FilePath", Reason: "cannot be read", Err: err}
	}
	if fileInfo.IsDir() {
		return nil, &ValidationError{Field: "FilePath", Reason: filePath + " is a directory"}
	}

	// 打开文件流。
	fileObj, err := os.Open(filePath)
	if err != nil {
		return nil, &ValidationError{Field: "FilePath", Reason: "cannot be read", Err: err}
	}
	defer closeIO(fileObj, c.log)

	return c.autoUpload(ctx, pathname, fileInfo.Size(), attachReaderAt(fileObj), o)
}

// 完整的分片上传：校验、切分、创建会话、并发上传、排序校验、合并。
func (c *baseImpl) autoUpload(ctx context.Context, pathname string, size int64, attach func([]*Part) error,
	o *uploadOptions) (*ObjectDescriptor, error) {

	// 任何网络请求之前完成校验和切分。
	if err := o.validate(pathname); err != nil {
		return nil, err
	}
	if err := checkPartCount(size, o.partSize); err != nil {
		return nil, err
	}
	parts := splitParts(size, o.partSize)
	if err := attach(parts); err != nil {
		return nil, err
	}

	log := c.log.With().Str("pathname", pathname).Logger()

	// 初始化分片上传。
	s, err := c.createSession(ctx, pathname, o)
	if err != nil {
		return nil, c.failUpload(ctx, log, nil, o, err)
	}
	log = log.With().Str("uploadId", s.UploadId).Logger()
	transition(log, stateCreated).Int64("size", size).Msg("multipart upload state changed")

	// 并发上传分片。
	transition(log, statePartsInFlight).Int("parts", len(parts)).Int("concurrency", o.maxConcurrency).
		Msg("multipart upload state changed")
	tracker := newProgressTracker(o.onProgress, size, c.log)
	results, err := Await(ctx, c.newRuntime(o.maxConcurrency).Upload(ctx, parts,
		func(ctx context.Context, p *Part) (PartResult, error) {
			return c.uploadPart(ctx, s, p, tracker.forPart(p.Number))
		}))
	if err != nil {
		return nil, c.failUpload(ctx, log, s, o, err)
	}

	// 排序并校验分片清单。
	manifest, total, err := buildManifest(results)
	if err == nil && (len(manifest) != len(parts) || total != size) {
		err = fmt.Errorf("planned %d parts of %d bytes, got %d parts of %d bytes",
			len(parts), size, len(manifest), total)
	}
	if err != nil {
		return nil, c.failUpload(ctx, log, s, o, &InvariantViolationError{Reason: err.Error()})
	}
	transition(log, statePartsComplete).Msg("multipart upload state changed")

	// 合并分片，结束上传。
	desc, err := c.completeSession(ctx, s, manifest, total)
	if err != nil {
		return nil, c.failUpload(ctx, log, s, o, err)
	}
	tracker.finish(len(manifest))
	transition(log, stateFinalized).Str("url", desc.URL).Msg("multipart upload state changed")

	return desc, nil
}

// 记录失败。设置了 WithAbortOnFailure 时尽力放弃会话。
func (c *baseImpl) failUpload(ctx context.Context, log zerolog.Logger, s *Session, o *uploadOptions, err error) error {
	transition(log, stateFailed).Err(err).Msg("multipart upload state changed")
	if s == nil || !o.abortOnFailure {
		return err
	}

	var bridgeErr *BridgeMisuseError
	if errors.As(err, &bridgeErr) {
		return err
	}

	// 出错就丢弃已上传的分片。
	if abortErr := c.abortSession(context.WithoutCancel(ctx), s); abortErr != nil {
		log.Warn().Err(abortErr).Msg("abort multipart upload")
	}
	return err
}

func transition(log zerolog.Logger, state uploadState) *zerolog.Event {
	return log.Debug().Stringer("state", state)
}

// 校验载荷大小和分片数。
func checkPartCount(size, partSize int64) error {
	if size <= 0 {
		return &ValidationError{Field: "Size", Reason: "multipart upload requires at least one byte"}
	}
	if n := (size + partSize - 1) / partSize; n > MaxParts {
		return &ValidationError{
			Field:  "PartSize",
			Reason: fmt.Sprintf("%d bytes in parts of %d bytes need %d parts, more than %d", size, partSize, n, MaxParts),
		}
	}
	return nil
}

// 切分载荷，分片号从 1 开始按顺序分配。除最后一个分片外，每个分片都是 partSize 字节。
func splitParts(size, partSize int64) []*Part {
	parts := make([]*Part, 0, (size+partSize-1)/partSize)
	for i, offset := 1, int64(0); offset < size; i, offset = i+1, offset+partSize {
		parts = append(parts, &Part{Number: i, Offset: offset, Size: min(partSize, size-offset)})
	}
	return parts
}

func attachBytes(data []byte) func([]*Part) error {
	return func(parts []*Part) error {
		for _, p := range parts {
			p.data = data[p.Offset : p.Offset+p.Size]
		}
		return nil
	}
}

func attachReaderAt(r io.ReaderAt) func([]*Part) error {
	return func(parts []*Part) error {
		for _, p := range parts {
			p.src = r
		}
		return nil
	}
}

// 分片依次从读取流装载，上传时才读取。
func attachReader(r io.Reader) func([]*Part) error {
	return func(parts []*Part) error {
		stream := &partStream{r: r}
		for _, p := range parts {
			p.stream = stream
		}
		return nil
	}
}

// 顺序读取流，分片必须按偏移依次读取。
type partStream struct {
	mu     sync.Mutex
	r      io.Reader
	offset int64
	err    error
}

func (s *partStream) read(p *Part) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	if p.Offset != s.offset {
		return nil, &InvariantViolationError{
			Reason: fmt.Sprintf("part %d starts at offset %d, reader is at offset %d", p.Number, p.Offset, s.offset),
		}
	}

	buf := make([]byte, p.Size)
	n, err := io.ReadFull(s.r, buf)
	s.offset += int64(n)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			s.err = &ValidationError{Field: "Size", Reason: fmt.Sprintf("reader ended after %d bytes", s.offset)}
		} else {
			s.err = &ValidationError{Field: "Reader", Reason: fmt.Sprintf("read part %d", p.Number), Err: err}
		}
		return nil, s.err
	}
	return buf, nil
}
