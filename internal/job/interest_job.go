package job

import (
	"context"
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

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ============================================================================
// 月度利息发放
// ============================================================================
//
// 对每个利率为正的银行：
//   1. 锁定银行和它名下所有已激活账户
//   2. 利息总额 = Σ 正余额 * 利率 / 100
//   3. 金库不足以支付利息总额时整家银行跳过，不做部分发放
//   4. 否则在同一个事务内扣金库、给每个账户入账
//
// 每家银行一个事务，某家银行失败不影响其它银行。
// 事务内先写入 (interest, 月份, 银行) 标记，同一个月重复执行时已发放的银行直接跳过；
// 金库不足回滚时标记一起回滚，当月补足金库后可以再次执行。

var (
	errVaultShort  = errors.New("金库余额不足以支付利息")
	errNoInterest  = errors.New("银行已不再计息")
	errAlreadyPaid = errors.New("本期利息已发放")
)

// BankPayout 单家银行的发放结果
type BankPayout struct {
	BankID   string          `json:"bank_id"`
	BankCode string          `json:"bank_code"`
	Rate     decimal.Decimal `json:"rate"`
	Vault    decimal.Decimal `json:"vault_before"`
	Total    decimal.Decimal `json:"total"`
	Accounts int             `json:"accounts"`
	Status   string          `json:"status"` // PAID / SKIPPED / ALREADY_PAID / FAILED
	Reason   string          `json:"reason,omitempty"`
}

const (
	PayoutPaid    = "PAID"
	PayoutSkipped = "SKIPPED"
	PayoutAlready = "ALREADY_PAID"
	PayoutFailed  = "FAILED"
)

// InterestRunSummary 一次利息任务的执行汇总
type InterestRunSummary struct {
	Period           string          `json:"period"`
	StartedAt        time.Time       `json:"started_at"`
	FinishedAt       time.Time       `json:"finished_at"`
	TotalDistributed decimal.Decimal `json:"total_distributed"`
	AccountsCredited int             `json:"accounts_credited"`
	BanksPaid        int             `json:"banks_paid"`
	BanksSkipped     int             `json:"banks_skipped"`
	BanksAlreadyPaid int             `json:"banks_already_paid"`
	BanksFailed      int             `json:"banks_failed"`
	Banks            []*BankPayout   `json:"banks"`
}

type InterestJob struct {
	db          *gorm.DB
	cfg         *config.Config
	guard       lock.Guard
	bankRepo    *repository.BankRepository
	accountRepo *repository.AccountRepository
	outboxRepo  *repository.OutboxRepository
	runRepo     *repository.JobRunRepository
	now         func() time.Time
}

func NewInterestJob(db *gorm.DB, cfg *config.Config, guard lock.Guard) *InterestJob {
	return &InterestJob{
		db:          db,
		cfg:         cfg,
		guard:       guard,
		bankRepo:    repository.NewBankRepository(db),
		accountRepo: repository.NewAccountRepository(db),
		outboxRepo:  repository.NewOutboxRepository(db),
		runRepo:     repository.NewJobRunRepository(db),
		now:         time.Now,
	}
}

func (j *InterestJob) Run(ctx context.Context) (*InterestRunSummary, error) {
	release, err := acquire(ctx, j.guard, InterestJobName)
	if err != nil {
		if errors.Is(err, ErrJobAlreadyRunning) {
			logger.Warnf("[InterestJob] 上一次利息任务尚未结束，本次跳过")
			metrics.RecordJobRun(InterestJobName, "overlap")
		}
		return nil, err
	}
	defer release()

	startedAt := j.now()
	summary := &InterestRunSummary{Period: period(startedAt), StartedAt: startedAt, TotalDistributed: decimal.Zero}
	logger.Infof("[InterestJob] 利息任务开始: period=%s", summary.Period)

	banks, err := j.bankRepo.ListPayingInterest(ctx)
	if err != nil {
		metrics.RecordJobRun(InterestJobName, "failed")
		return nil, fmt.Errorf("查询银行失败: %w", err)
	}

	for _, bank := range banks {
		if !bank.PaysInterest() {
			continue
		}

		payout, err := j.payBank(ctx, bank.ID, summary.Period)
		switch {
		case err == nil:
			summary.BanksPaid++
			summary.TotalDistributed = summary.TotalDistributed.Add(payout.Total)
			summary.AccountsCredited += payout.Accounts
			logger.Infof("[InterestJob] 利息发放完成: bank=%s, rate=%s%%, total=%s, accounts=%d",
				payout.BankCode, payout.Rate, payout.Total, payout.Accounts)
		case errors.Is(err, errVaultShort):
			summary.BanksSkipped++
			payout.Status, payout.Reason = PayoutSkipped, err.Error()
			metrics.RecordInterestSkip()
			logger.Warnf("[InterestJob] 金库余额不足，跳过银行: bank=%s, vault=%s, required=%s",
				payout.BankCode, payout.Vault, payout.Total)
		case errors.Is(err, errAlreadyPaid):
			summary.BanksAlreadyPaid++
			payout.Status, payout.Reason = PayoutAlready, err.Error()
			logger.Infof("[InterestJob] 本期利息已发放，跳过银行: bank=%s, period=%s", payout.BankCode, summary.Period)
		case errors.Is(err, errNoInterest):
			summary.BanksSkipped++
			payout.Status, payout.Reason = PayoutSkipped, err.Error()
		default:
			summary.BanksFailed++
			payout = &BankPayout{BankID: bank.ID, BankCode: bank.Code, Status: PayoutFailed, Reason: err.Error()}
			logger.Errorf("[InterestJob] 利息发放失败: bank=%s, err=%v", bank.Code, err)
		}
		summary.Banks = append(summary.Banks, payout)
	}

	summary.FinishedAt = j.now()
	metrics.RecordJobRun(InterestJobName, runResult(summary))
	logger.Infof("[InterestJob] 利息任务结束: paid=%d, skipped=%d, already=%d, failed=%d, total=%s",
		summary.BanksPaid, summary.BanksSkipped, summary.BanksAlreadyPaid, summary.BanksFailed, summary.TotalDistributed)
	return summary, nil
}

// runResult 有银行发放失败时记为 partial
func runResult(s *InterestRunSummary) string {
	if s.BanksFailed > 0 {
		return "partial"
	}
	return "success"
}

// payBank 单家银行的利息发放，金库不足时返回 errVaultShort，不做任何修改
// 本期已发放过时返回 errAlreadyPaid
func (j *InterestJob) payBank(ctx context.Context, bankID, period string) (*BankPayout, error) {
	payout := &BankPayout{BankID: bankID, Total: decimal.Zero, Rate: decimal.Zero}

	err := j.db.Transaction(func(tx *gorm.DB) error {
		bank, err := j.bankRepo.GetByIDForUpdate(ctx, tx, bankID)
		if err != nil {
			return err
		}
		payout.BankCode = bank.Code
		payout.Vault = bank.VaultBalance
		if !bank.PaysInterest() {
			return errNoInterest
		}
		rate := *bank.InterestRate
		payout.Rate = rate

		claimed, err := j.runRepo.Claim(ctx, tx, InterestJobName, period, bank.ID)
		if err != nil {
			return err
		}
		if !claimed {
			return errAlreadyPaid
		}

		accounts, err := j.accountRepo.ListActivatedByBankForUpdate(ctx, tx, bank.ID)
		if err != nil {
			return err
		}

		credits := make(map[string]decimal.Decimal)
		for _, a := range accounts {
			if !a.Balance.IsPositive() {
				continue
			}
			interest := service.Percent(a.Balance, rate)
			if !interest.IsPositive() {
				continue
			}
			credits[a.ID] = interest
			payout.Total = payout.Total.Add(interest)
		}

		if bank.VaultBalance.LessThan(payout.Total) {
			return errVaultShort
		}
		payout.Status = PayoutPaid
		if len(credits) == 0 {
			return nil
		}

		if err := j.bankRepo.DeductVault(ctx, tx, bank.ID, payout.Total); err != nil {
			return err
		}

		events := make([]*model.OutboxMessage, 0, len(credits))
		now := j.now()
		for _, a := range accounts {
			interest, ok := credits[a.ID]
			if !ok {
				continue
			}
			if err := j.accountRepo.Increase(ctx, tx, a.ID, interest); err != nil {
				return err
			}
			msg, err := balanceChangedMessage(j.cfg.Kafka.Topic.BalanceChanged, a.UserID, a.ID, a.Balance.Add(interest), now)
			if err != nil {
				return err
			}
			events = append(events, msg)
		}
		if err := j.outboxRepo.CreateBatch(ctx, tx, events); err != nil {
			return err
		}

		payout.Accounts = len(credits)
		return nil
	})
	return payout, err
}
