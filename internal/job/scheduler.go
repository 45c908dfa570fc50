package job

import (
	"context"
	"errors"
	"sync"
	"time"

	"rispay/internal/logger"
)

// Task 每月执行一次的任务
type Task struct {
	Name string
	Hour int
	Run  func(ctx context.Context) error
}

// MonthlyScheduler 在每月 day 号的指定整点触发任务
// 每个任务一个独立的定时器，互不阻塞
type MonthlyScheduler struct {
	day    int
	tasks  []Task
	loc    *time.Location
	stopCh chan struct{}
	once   sync.Once
}

func NewMonthlyScheduler(day int, loc *time.Location, tasks ...Task) *MonthlyScheduler {
	if loc == nil {
		loc = time.Local
	}
	return &MonthlyScheduler{
		day:    day,
		tasks:  tasks,
		loc:    loc,
		stopCh: make(chan struct{}),
	}
}

// NextRun from 之后（不含）第一个 day 号 hour 点
// day 只允许 1-28，不存在月末溢出
func NextRun(from time.Time, day, hour int) time.Time {
	next := time.Date(from.Year(), from.Month(), day, hour, 0, 0, 0, from.Location())
	if !next.After(from) {
		next = time.Date(from.Year(), from.Month()+1, day, hour, 0, 0, 0, from.Location())
	}
	return next
}

// Start 阻塞直到 ctx 取消或 Stop
func (s *MonthlyScheduler) Start(ctx context.Context) {
	logger.Infof("[Scheduler] 定时任务启动: day=%d, tasks=%d", s.day, len(s.tasks))

	var wg sync.WaitGroup
	for _, task := range s.tasks {
		wg.Add(1)
		go func(task Task) {
			defer wg.Done()
			s.loop(ctx, task)
		}(task)
	}
	wg.Wait()

	logger.Infof("[Scheduler] 定时任务退出")
}

func (s *MonthlyScheduler) Stop() {
	s.once.Do(func() { close(s.stopCh) })
}

func (s *MonthlyScheduler) loop(ctx context.Context, task Task) {
	for {
		next := NextRun(time.Now().In(s.loc), s.day, task.Hour)
		logger.Infof("[Scheduler] 下次执行: task=%s, at=%s", task.Name, next.Format(time.RFC3339))

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-s.stopCh:
			timer.Stop()
			return
		case <-timer.C:
			err := task.Run(ctx)
			switch {
			case err == nil:
			case errors.Is(err, ErrPeriodAlreadyDone), errors.Is(err, ErrJobAlreadyRunning):
				logger.Infof("[Scheduler] 任务跳过: task=%s, reason=%v", task.Name, err)
			default:
				logger.Errorf("[Scheduler] 任务执行失败: task=%s, err=%v", task.Name, err)
			}
		}
	}
}
