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
)

type bridgeKey struct{}

// 一次 RunSync 调用的状态。
type bridgeState struct {
	mu      sync.Mutex
	pending []<-chan struct{}
}

// 记录一次挂起企图。
func (s *bridgeState) suspend(done <-chan struct{}) error {
	s.mu.Lock()
	s.pending = append(s.pending, done)
	s.mu.Unlock()
	return &BridgeMisuseError{}
}

func (s *bridgeState) suspended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending) > 0
}

// 等待被取消的操作退出。
func (s *bridgeState) drain() {
	s.mu.Lock()
	pending := s.pending
	s.mu.Unlock()
	for _, done := range pending {
		<-done
	}
}

func bridgeFrom(ctx context.Context) *bridgeState {
	st, _ := ctx.Value(bridgeKey{}).(*bridgeState)
	return st
}

// RunSync 在当前协程中一步执行完 fn。
//
// fn 必须不会真正挂起：它等待的所有 Future 都应已完成。若 fn 等待了未完成的 Future，该 Future 被取消，
// RunSync 等待其退出后返回 BridgeMisuseError，不论 fn 自身返回了什么。无论成功与否，fn 派生的上下文都会被取消。
func RunSync[T any](ctx context.Context, fn func(ctx context.Context) (T, error)) (val T, err error) {
	st := &bridgeState{}
	ctx, cancel := context.WithCancel(context.WithValue(ctx, bridgeKey{}, st))
	defer func() {
		cancel()
		st.drain()
	}()

	val, err = fn(ctx)
	if st.suspended() {
		var zero T
		return zero, &BridgeMisuseError{}
	}
	return val, err
}
