package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"rispay/internal/config"
	"rispay/internal/infrastructure/lock"
	"rispay/internal/logger"
	"rispay/internal/metrics"
	"rispay/internal/model"
	"rispay/internal/repository"
	"rispay/internal/service"
	"rispay/pkg/idgen"

	"gorm.io/gorm"
)

// ============================================================================
// 月度通胀
// ============================================================================
//
// 所有银行金库按全局通胀率缩减：after = before - before * rate / 100
// 全部银行的修改和一条 InflationLog 在同一个事务中提交，要么全做，要么全不做。
// 通胀未开启或通胀率不为正时什么也不做，也不写日志。
// 每个自然月 (UTC) 只生效一次，重复执行返回 ErrPeriodAlreadyDone。

type InflationJob struct {
	db           *gorm.DB
	cfg          *config.Config
	guard        lock.Guard
	bankRepo     *repository.BankRepository
	settingsRepo *repository.SettingsRepository
	logRepo      *repository.InflationLogRepository
	runRepo      *repository.JobRunRepository
	now          func() time.Time
}

func NewInflationJob(db *gorm.DB, cfg *config.Config, guard lock.Guard) *InflationJob {
	return &InflationJob{
		db:           db,
		cfg:          cfg,
		guard:        guard,
		bankRepo:     repository.NewBankRepository(db),
		settingsRepo: repository.NewSettingsRepository(db),
		logRepo:      repository.NewInflationLogRepository(db),
		runRepo:      repository.NewJobRunRepository(db),
		now:          time.Now,
	}
}

// Run 执行一次通胀，未开启时返回 nil, nil
func (j *InflationJob) Run(ctx context.Context) (*model.InflationLog, error) {
	release, err := acquire(ctx, j.guard, InflationJobName)
	if err != nil {
		if errors.Is(err, ErrJobAlreadyRunning) {
			logger.Warnf("[InflationJob] 上一次通胀任务尚未结束，本次跳过")
			metrics.RecordJobRun(InflationJobName, "overlap")
		}
		return nil, err
	}
	defer release()

	var entry *model.InflationLog
	current := period(j.now())
	err = j.db.Transaction(func(tx *gorm.DB) error {
		settings, err := j.settingsRepo.GetOrCreate(ctx, tx)
		if err != nil {
			return err
		}
		if !settings.InflationEnabled || !settings.InflationRate.IsPositive() {
			return nil
		}
		rate := settings.InflationRate

		claimed, err := j.runRepo.Claim(ctx, tx, InflationJobName, current, model.JobScopeAll)
		if err != nil {
			return err
		}
		if !claimed {
			return ErrPeriodAlreadyDone
		}

		banks, err := j.bankRepo.ListAllForUpdate(ctx, tx)
		if err != nil {
			return err
		}

		changes := make(map[string]model.VaultChange, len(banks))
		for _, bank := range banks {
			before := bank.VaultBalance
			after := before.Sub(service.Percent(before, rate))
			if err := j.bankRepo.SetVault(ctx, tx, bank.ID, after); err != nil {
				return err
			}
			changes[bank.ID] = model.VaultChange{Before: before, After: after}
		}

		data, err := json.Marshal(changes)
		if err != nil {
			return err
		}
		entry = &model.InflationLog{
			ID:           idgen.NewID(idgen.PrefixInflation),
			Rate:         rate,
			VaultChanges: string(data),
		}
		return j.logRepo.Create(ctx, tx, entry)
	})
	if errors.Is(err, ErrPeriodAlreadyDone) {
		metrics.RecordJobRun(InflationJobName, "already_done")
		logger.Infof("[InflationJob] 本期通胀已执行，跳过: period=%s", current)
		return nil, err
	}
	if err != nil {
		metrics.RecordJobRun(InflationJobName, "failed")
		logger.Errorf("[InflationJob] 通胀执行失败，已回滚: %v", err)
		return nil, fmt.Errorf("通胀执行失败: %w", err)
	}

	if entry == nil {
		metrics.RecordJobRun(InflationJobName, "disabled")
		logger.Infof("[InflationJob] 通胀未开启，跳过")
		return nil, nil
	}

	metrics.RecordJobRun(InflationJobName, "success")
	logger.Infof("[InflationJob] 通胀执行完成: period=%s, rate=%s%%, banks=%d, log=%s", current, entry.Rate, bankCount(entry), entry.ID)
	return entry, nil
}

func bankCount(l *model.InflationLog) int {
	changes, err := l.Changes()
	if err != nil {
		return 0
	}
	return len(changes)
}
