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
	"io"
	"math"
	"sync"

	"github.com/rs/zerolog"
)

// ProgressEvent 上传进度。
type ProgressEvent struct {
	// PartNumber 本次有数据发出的分片号。
	PartNumber int
	// Loaded 已发送字节数。
	Loaded int64
	// Total 总字节数。
	Total int64
}

// ProgressFunc 接收上传进度。可能被多个协程调用，但调用是串行的。
type ProgressFunc func(ProgressEvent)

// Percentage 百分比，保留两位小数。
func (e ProgressEvent) Percentage() float64 {
	if e.Total <= 0 {
		return 0
	}
	return math.Round(float64(e.Loaded)/float64(e.Total)*10000) / 100
}

// 每次读取都回调已读字节数。
type progressReader struct {
	io.Reader
	read   int64
	onRead func(read int64)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.Reader.Read(b)
	if n > 0 {
		p.read += int64(n)
		p.onRead(p.read)
	}
	return n, err
}

// 汇总多个分片的进度。每个分片只记最高水位，重试不会重复计数。
type progressTracker struct {
	mu     sync.Mutex
	fn     ProgressFunc
	log    zerolog.Logger
	total  int64
	loaded int64
	parts  map[int]int64
}

func newProgressTracker(fn ProgressFunc, total int64, log zerolog.Logger) *progressTracker {
	if fn == nil {
		return nil
	}
	return &progressTracker{fn: fn, log: log, total: total, parts: make(map[int]int64)}
}

// 返回给某个分片的请求使用的回调。
func (t *progressTracker) forPart(partNumber int) func(sent int64) {
	if t == nil {
		return nil
	}
	return func(sent int64) { t.observe(partNumber, sent) }
}

func (t *progressTracker) observe(partNumber int, sent int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	prev := t.parts[partNumber]
	if sent <= prev {
		return
	}
	t.parts[partNumber] = sent
	t.loaded += sent - prev
	t.emit(ProgressEvent{PartNumber: partNumber, Loaded: t.loaded, Total: t.total})
}

// 上传成功后补发一次完成事件。
func (t *progressTracker) finish(partNumber int) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.loaded >= t.total {
		return
	}
	t.loaded = t.total
	t.emit(ProgressEvent{PartNumber: partNumber, Loaded: t.loaded, Total: t.total})
}

// 回调中的 panic 不影响上传。
func (t *progressTracker) emit(ev ProgressEvent) {
	defer func() {
		if p := recover(); p != nil {
			t.log.Debug().Interface("panic", p).Int("part", ev.PartNumber).Msg("progress observer panicked")
		}
	}()
	t.fn(ev)
}
