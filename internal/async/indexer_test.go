package async

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBackgroundRunner(t *testing.T) {
	cfg := RunnerConfig{DataDir: t.TempDir()}

	runner := NewBackgroundRunner(cfg)

	require.NotNil(t, runner)
	assert.NotNil(t, runner.Progress())
	assert.False(t, runner.IsRunning())
}

func TestBackgroundRunner_Start_RunsInGoroutine(t *testing.T) {
	cfg := RunnerConfig{DataDir: t.TempDir()}
	runner := NewBackgroundRunner(cfg)

	var started atomic.Bool
	runner.BatchFunc = func(ctx context.Context, progress *BatchProgress) error {
		started.Store(true)
		return nil
	}

	ctx := context.Background()
	runner.Start(ctx)

	assert.True(t, runner.IsRunning())

	err := runner.Wait()
	require.NoError(t, err)
	assert.True(t, started.Load())
	assert.False(t, runner.IsRunning())
}

func TestBackgroundRunner_Progress_UpdatesDuringRun(t *testing.T) {
	cfg := RunnerConfig{DataDir: t.TempDir()}
	runner := NewBackgroundRunner(cfg)

	runner.BatchFunc = func(ctx context.Context, progress *BatchProgress) error {
		progress.SetStage(StageEmbedding, 100)
		progress.RecordDone()
		time.Sleep(10 * time.Millisecond)
		progress.SetStage(StageIndexing, 100)
		progress.RecordDone()
		return nil
	}

	ctx := context.Background()
	runner.Start(ctx)

	time.Sleep(5 * time.Millisecond)
	assert.True(t, runner.IsRunning())

	err := runner.Wait()
	require.NoError(t, err)

	snap := runner.Progress().Snapshot()
	assert.Equal(t, "done", snap.Status)
}

func TestBackgroundRunner_Stop_GracefulShutdown(t *testing.T) {
	cfg := RunnerConfig{DataDir: t.TempDir()}
	runner := NewBackgroundRunner(cfg)

	var stopped atomic.Bool
	runner.BatchFunc = func(ctx context.Context, progress *BatchProgress) error {
		progress.SetStage(StageEmbedding, 1000)
		for i := 0; i < 1000; i++ {
			select {
			case <-ctx.Done():
				stopped.Store(true)
				return ctx.Err()
			case <-time.After(1 * time.Millisecond):
				progress.RecordDone()
			}
		}
		return nil
	}

	ctx := context.Background()
	runner.Start(ctx)
	time.Sleep(10 * time.Millisecond)
	runner.Stop()

	assert.True(t, stopped.Load())
	assert.False(t, runner.IsRunning())
}

func TestBackgroundRunner_Stop_ContextCancellation(t *testing.T) {
	cfg := RunnerConfig{DataDir: t.TempDir()}
	runner := NewBackgroundRunner(cfg)

	var stopped atomic.Bool
	runner.BatchFunc = func(ctx context.Context, progress *BatchProgress) error {
		<-ctx.Done()
		stopped.Store(true)
		return ctx.Err()
	}

	ctx, cancel := context.WithCancel(context.Background())
	runner.Start(ctx)
	time.Sleep(5 * time.Millisecond)
	cancel()

	_ = runner.Wait()

	assert.True(t, stopped.Load())
	assert.False(t, runner.IsRunning())
}

func TestBackgroundRunner_Wait_BlocksUntilComplete(t *testing.T) {
	cfg := RunnerConfig{DataDir: t.TempDir()}
	runner := NewBackgroundRunner(cfg)

	runner.BatchFunc = func(ctx context.Context, progress *BatchProgress) error {
		time.Sleep(50 * time.Millisecond)
		return nil
	}

	ctx := context.Background()
	runner.Start(ctx)

	start := time.Now()
	err := runner.Wait()
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
}

func TestBackgroundRunner_LockFile_Created(t *testing.T) {
	dataDir := t.TempDir()
	cfg := RunnerConfig{DataDir: dataDir}
	runner := NewBackgroundRunner(cfg)

	var lockExists atomic.Bool
	runner.BatchFunc = func(ctx context.Context, progress *BatchProgress) error {
		lockPath := filepath.Join(dataDir, "ingestion.lock")
		_, err := os.Stat(lockPath)
		lockExists.Store(err == nil)
		return nil
	}

	ctx := context.Background()
	runner.Start(ctx)
	err := runner.Wait()

	require.NoError(t, err)
	assert.True(t, lockExists.Load())

	lockPath := filepath.Join(dataDir, "ingestion.lock")
	_, err = os.Stat(lockPath)
	assert.True(t, os.IsNotExist(err))
}

func TestBackgroundRunner_Error_SetsProgress(t *testing.T) {
	cfg := RunnerConfig{DataDir: t.TempDir()}
	runner := NewBackgroundRunner(cfg)

	expectedErr := "embedding failed"
	runner.BatchFunc = func(ctx context.Context, progress *BatchProgress) error {
		return &testError{message: expectedErr}
	}

	ctx := context.Background()
	runner.Start(ctx)
	err := runner.Wait()

	require.Error(t, err)
	snap := runner.Progress().Snapshot()
	assert.Equal(t, "done", snap.Status)
	assert.Equal(t, 1, snap.ResourcesFailed)
	assert.Contains(t, snap.ErrorMessage, expectedErr)
}

func TestBackgroundRunner_Start_IdempotentWhenRunning(t *testing.T) {
	cfg := RunnerConfig{DataDir: t.TempDir()}
	runner := NewBackgroundRunner(cfg)

	var startCount atomic.Int32
	runner.BatchFunc = func(ctx context.Context, progress *BatchProgress) error {
		startCount.Add(1)
		time.Sleep(50 * time.Millisecond)
		return nil
	}

	ctx := context.Background()
	runner.Start(ctx)
	runner.Start(ctx)
	runner.Start(ctx)
	_ = runner.Wait()

	assert.Equal(t, int32(1), startCount.Load())
}

func TestHasIncompleteLock(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(dir string)
		wantResult bool
	}{
		{
			name:       "no lock file",
			setup:      func(dir string) {},
			wantResult: false,
		},
		{
			name: "lock file exists",
			setup: func(dir string) {
				_ = os.WriteFile(filepath.Join(dir, "ingestion.lock"), []byte("test"), 0644)
			},
			wantResult: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			tt.setup(dir)

			result := HasIncompleteLock(dir)
			assert.Equal(t, tt.wantResult, result)
		})
	}
}

type testError struct {
	message string
}

func (e *testError) Error() string {
	return e.message
}
