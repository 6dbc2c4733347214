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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestRunSync(t *testing.T) {
	t.Run("正常运行", func(t *testing.T) {
		val, err := RunSync(context.Background(), func(ctx context.Context) (int, error) {
			return Await(ctx, Completed(42, nil))
		})
		require.NoError(t, err)
		assert.Equal(t, 42, val)
	})

	t.Run("返回错误", func(t *testing.T) {
		expectedErr := errors.New("expected error")
		_, err := RunSync(context.Background(), func(ctx context.Context) (int, error) {
			return Await(ctx, Completed(0, expectedErr))
		})
		assert.ErrorIs(t, err, expectedErr)
	})

	t.Run("企图挂起", func(t *testing.T) {
		defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

		exited := make(chan struct{})
		_, err := RunSync(context.Background(), func(ctx context.Context) (int, error) {
			f := Spawn(ctx, func(ctx context.Context) (int, error) {
				defer close(exited)
				<-ctx.Done()
				return 0, ctx.Err()
			})
			return Await(ctx, f)
		})

		var bridgeErr *BridgeMisuseError
		require.ErrorAs(t, err, &bridgeErr)
		select {
		case <-exited:
		default:
			t.Errorf("unexpected pending operation: want exited, got running")
		}
	})

	t.Run("吞掉错误仍然报告", func(t *testing.T) {
		defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

		val, err := RunSync(context.Background(), func(ctx context.Context) (int, error) {
			_, _ = Await(ctx, TimerClock{}.Sleep(ctx, time.Hour))
			return 7, nil
		})
		var bridgeErr *BridgeMisuseError
		require.ErrorAs(t, err, &bridgeErr)
		assert.Equal(t, 0, val)
	})

	t.Run("结束后取消上下文", func(t *testing.T) {
		var inner context.Context
		_, err := RunSync(context.Background(), func(ctx context.Context) (struct{}, error) {
			inner = ctx
			return struct{}{}, nil
		})
		require.NoError(t, err)
		assert.ErrorIs(t, inner.Err(), context.Canceled)
	})

	t.Run("panic 透传", func(t *testing.T) {
		assert.PanicsWithValue(t, "boom", func() {
			_, _ = RunSync(context.Background(), func(ctx context.Context) (int, error) {
				panic("boom")
			})
		})
	})

	t.Run("嵌套", func(t *testing.T) {
		val, err := RunSync(context.Background(), func(ctx context.Context) (string, error) {
			return RunSync(ctx, func(ctx context.Context) (string, error) {
				_, err := Await(ctx, BlockingClock{}.Sleep(ctx, time.Millisecond))
				return "slept", err
			})
		})
		require.NoError(t, err)
		assert.Equal(t, "slept", val)
	})

	t.Run("新协程中可以等待", func(t *testing.T) {
		defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

		val, err := RunSync(context.Background(), func(ctx context.Context) (int, error) {
			inner := Spawn(ctx, func(ctx context.Context) (int, error) {
				_, err := Await(ctx, TimerClock{}.Sleep(ctx, time.Millisecond))
				return 3, err
			})
			<-inner.Done()
			return Await(ctx, inner)
		})
		require.NoError(t, err)
		assert.Equal(t, 3, val)
	})
}

func TestAwait(t *testing.T) {
	t.Run("正常运行", func(t *testing.T) {
		f := Spawn(context.Background(), func(ctx context.Context) (string, error) {
			return "done", nil
		})
		val, err := Await(context.Background(), f)
		require.NoError(t, err)
		assert.Equal(t, "done", val)
		assert.True(t, f.Ready())
	})

	t.Run("上下文取消", func(t *testing.T) {
		defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

		ctx, cancel := context.WithCancel(context.Background())
		f := TimerClock{}.Sleep(context.Background(), time.Hour)
		cancel()
		_, err := Await(ctx, f)
		assert.ErrorIs(t, err, context.Canceled)
		<-f.Done()
	})

	t.Run("panic 转为错误", func(t *testing.T) {
		f := Spawn(context.Background(), func(ctx context.Context) (int, error) {
			panic("boom")
		})
		_, err := Await(context.Background(), f)
		assert.ErrorContains(t, err, "boom")
	})
}
