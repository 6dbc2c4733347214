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
	"fmt"
)

// Future 一次可挂起操作的结果。
//
// 阻塞实现返回的 Future 创建时即已完成；协作实现返回的 Future 由后台协程在完成时解决。
type Future[T any] struct {
	done   chan struct{}
	val    T
	err    error
	cancel context.CancelFunc
}

// Completed 创建一个已完成的 Future。
func Completed[T any](val T, err error) *Future[T] {
	f := &Future[T]{done: make(chan struct{}), val: val, err: err}
	close(f.done)
	return f
}

// Spawn 在新协程中运行 fn，返回代表其结果的 Future。
//
// fn 收到的上下文不处于同步桥模式，可以自由等待其它 Future。fn 中的 panic 被转为错误。
func Spawn[T any](ctx context.Context, fn func(ctx context.Context) (T, error)) *Future[T] {
	ctx, cancel := context.WithCancel(context.WithValue(ctx, bridgeKey{}, (*bridgeState)(nil)))
	f := &Future[T]{done: make(chan struct{}), cancel: cancel}
	go func() {
		defer close(f.done)
		defer cancel()
		defer func() {
			if p := recover(); p != nil {
				f.err = fmt.Errorf("blob: panic in spawned operation: %v", p)
			}
		}()
		f.val, f.err = fn(ctx)
	}()
	return f
}

// Ready 是否已有结果。
func (f *Future[T]) Ready() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Done 结果就绪时关闭的通道。
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Cancel 取消尚未完成的操作。对已完成的 Future 无作用。
func (f *Future[T]) Cancel() {
	if f.cancel != nil {
		f.cancel()
	}
}

// Await 等待 Future 的结果。
//
// 若 ctx 处于同步桥模式（见 RunSync）而 Future 尚未完成，则不会等待：Future 被取消，返回 BridgeMisuseError。
// 上下文结束时取消 Future 并返回上下文错误。
func Await[T any](ctx context.Context, f *Future[T]) (T, error) {
	if f.Ready() {
		return f.val, f.err
	}

	var zero T
	if st := bridgeFrom(ctx); st != nil {
		f.Cancel()
		return zero, st.suspend(f.done)
	}

	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		f.Cancel()
		return zero, ctx.Err()
	}
}
