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
	"sync"
	"sync/atomic"

	gu "gitee.com/ivfzhou/goroutine-util"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// 固定数量协程的工作池。
type poolRuntime struct {
	concurrency int
}

// 并发任务组。
type groupRuntime struct {
	concurrency int
}

// 收集结果，记录第一个失败。
type partCollector struct {
	mu       sync.Mutex
	results  []PartResult
	failed   atomic.Bool
	firstErr error
}

// NewPoolRuntime 创建阻塞式运行时：concurrency 个工作协程，Upload 在所有分片结束后才返回。
//
// 每个分片在 RunSync 中执行，因此分片逻辑不能真正挂起。
func NewPoolRuntime(concurrency int) Runtime {
	if concurrency < 1 {
		concurrency = DefaultMaxConcurrency
	}
	return &poolRuntime{concurrency}
}

// NewGroupRuntime 创建协作式运行时：分片作为任务组并发调度，信号量限制同时运行的数量，Upload 立即返回 Future。
func NewGroupRuntime(concurrency int) Runtime {
	if concurrency < 1 {
		concurrency = DefaultMaxConcurrency
	}
	return &groupRuntime{concurrency}
}

// Upload 上传所有分片。
func (r *poolRuntime) Upload(ctx context.Context, parts []*Part, fn PartFunc) *Future[[]PartResult] {
	return Completed(r.upload(ctx, parts, fn))
}

func (r *poolRuntime) upload(ctx context.Context, parts []*Part, fn PartFunc) ([]PartResult, error) {
	c := newPartCollector(len(parts))
	// 按顺序发放的名额，保证分片按分片号依次开始。
	slots := make(chan struct{}, r.concurrency)
	run, wait := gu.NewRunner(ctx, r.concurrency, func(runCtx context.Context, p *Part) error {
		defer func() { <-slots }()
		defer p.release()
		// 已失败就不再开始新的分片。
		if c.failed.Load() || runCtx.Err() != nil {
			return nil
		}
		// 已开始的分片使用调用方的上下文，不被其它分片的失败中断。
		res, err := RunSync(ctx, func(ctx context.Context) (PartResult, error) {
			return fn(ctx, p)
		})
		if err != nil {
			c.fail(err)
			return err
		}
		c.add(res)
		return nil
	})

loop:
	for _, p := range parts {
		select {
		case slots <- struct{}{}:
		case <-ctx.Done():
			break loop
		}
		if c.failed.Load() {
			<-slots
			break
		}
		// 拿到名额后才装载数据。
		if err := p.load(); err != nil {
			<-slots
			c.fail(err)
			break
		}
		if err := run(p, false); err != nil {
			p.release()
			<-slots
			c.fail(err)
			break
		}
	}

	// 等待已开始的分片结束。
	if err := wait(false); err != nil {
		c.fail(err)
	}

	return c.result(ctx)
}

// Upload 上传所有分片。
func (r *groupRuntime) Upload(ctx context.Context, parts []*Part, fn PartFunc) *Future[[]PartResult] {
	return Spawn(ctx, func(ctx context.Context) ([]PartResult, error) {
		c := newPartCollector(len(parts))
		g, groupCtx := errgroup.WithContext(ctx)
		sem := semaphore.NewWeighted(int64(r.concurrency))

		for _, p := range parts {
			if err := sem.Acquire(groupCtx, 1); err != nil {
				break
			}
			if c.failed.Load() {
				sem.Release(1)
				break
			}
			// 拿到名额后才装载数据。
			if err := p.load(); err != nil {
				sem.Release(1)
				c.fail(err)
				break
			}
			g.Go(func() error {
				defer sem.Release(1)
				defer p.release()
				// 已失败就不再开始新的分片。
				if c.failed.Load() || groupCtx.Err() != nil {
					return nil
				}
				res, err := fn(ctx, p)
				if err != nil {
					c.fail(err)
					return err
				}
				c.add(res)
				return nil
			})
		}

		if err := g.Wait(); err != nil {
			c.fail(err)
		}

		return c.result(ctx)
	})
}

func newPartCollector(n int) *partCollector {
	return &partCollector{results: make([]PartResult, 0, n)}
}

func (c *partCollector) add(res PartResult) {
	c.mu.Lock()
	c.results = append(c.results, res)
	c.mu.Unlock()
}

func (c *partCollector) fail(err error) {
	c.mu.Lock()
	if c.firstErr == nil {
		c.firstErr = err
	}
	c.mu.Unlock()
	c.failed.Store(true)
}

func (c *partCollector) result(ctx context.Context) ([]PartResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.firstErr != nil {
		return nil, c.firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.results, nil
}
