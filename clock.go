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
	"time"
)

// Clock 重试退避时的等待。
type Clock interface {
	Sleep(ctx context.Context, d time.Duration) *Future[struct{}]
}

// BlockingClock 在 Sleep 内就地睡眠，返回已完成的 Future。
type BlockingClock struct{}

// TimerClock 由后台定时器解决 Future。
type TimerClock struct{}

// Sleep 等待 d，上下文结束时提前返回其错误。
func (BlockingClock) Sleep(ctx context.Context, d time.Duration) *Future[struct{}] {
	return Completed(struct{}{}, sleep(ctx, d))
}

// Sleep 等待 d，上下文结束时提前返回其错误。
func (TimerClock) Sleep(ctx context.Context, d time.Duration) *Future[struct{}] {
	return Spawn(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, sleep(ctx, d)
	})
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
