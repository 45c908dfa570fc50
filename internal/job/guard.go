package job

import (
	"context"
	"errors"
	"time"

	"rispay/internal/infrastructure/lock"
	"rispay/internal/model"
)

var (
	// ErrJobAlreadyRunning 同名任务正在执行，本次触发被忽略
	ErrJobAlreadyRunning = errors.New("任务正在执行中")
	// ErrPeriodAlreadyDone 本月已经执行过，本次不做任何修改
	ErrPeriodAlreadyDone = errors.New("本期任务已执行")
)

const (
	InterestJobName  = "interest"
	InflationJobName = "inflation"
)

// acquire 拿到锁返回 release；任务已在执行时返回 ErrJobAlreadyRunning
func acquire(ctx context.Context, guard lock.Guard, name string) (func(), error) {
	release, ok, err := guard.TryAcquire(ctx, name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrJobAlreadyRunning
	}
	return release, nil
}

// period 任务所属的自然月，按 UTC
func period(t time.Time) string {
	return t.UTC().Format(model.JobPeriodLayout)
}
