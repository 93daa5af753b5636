package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

type Task interface {
	Run(ctx context.Context) error
	Name() string
}

// Run 依次执行任务, 任一任务失败立即返回
func Run(ctx context.Context, tasks ...Task) error {
	for _, t := range tasks {
		start := time.Now()
		slog.Info("task started", "task", t.Name())
		if err := t.Run(ctx); err != nil {
			return fmt.Errorf("task %s: %w", t.Name(), err)
		}
		slog.Info("task finished", "task", t.Name(), "elapsed", time.Since(start))
	}
	return nil
}
