package service

import (
	"context"
	"errors"
	"time"

	"rispay/internal/auth"
	"rispay/internal/config"
	"rispay/internal/logger"
	"rispay/internal/metrics"
	"rispay/internal/model"
	"rispay/internal/repository"
	"rispay/pkg/apperr"
	"rispay/pkg/idgen"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// AdminService 管理员操作：加减款、经济重置、全局政策、开设银行
// 每一个会修改数据的管理员操作都写一条审计记录
type AdminService struct {
	db              *gorm.DB
	cfg             *config.Config
	verifier        auth.CredentialVerifier
	accountRepo     *repository.AccountRepository
	bankRepo        *repository.BankRepository
	settingsRepo    *repository.SettingsRepository
	transactionRepo *repository.TransactionRepository
	userRepo        *repository.UserRepository
	auditRepo       *repository.AuditLogRepository
	outboxRepo      *repository.OutboxRepository
}

func NewAdminService(db *gorm.DB, cfg *config.Config, verifier auth.CredentialVerifier) *AdminService {
	return &AdminService{
		db:              db,
		cfg:             cfg,
		verifier:        verifier,
		accountRepo:     repository.NewAccountRepository(db),
		bankRepo:        repository.NewBankRepository(db),
		settingsRepo:    repository.NewSettingsRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
		userRepo:        repository.NewUserRepository(db),
		auditRepo:       repository.NewAuditLogRepository(db),
		outboxRepo:      repository.NewOutboxRepository(db),
	}
}

// ============================================================================
// 加减款
// ============================================================================

type CreditDebitRequest struct {
	AccountID string          `json:"account_id" validate:"required"`
	Amount    decimal.Decimal `json:"amount"` // 正数加款，负数扣款
	Memo      *string         `json:"memo"`
}

type CreditDebitResult struct {
	TransactionID string          `json:"transaction_id"`
	AccountID     string          `json:"account_id"`
	Amount        decimal.Decimal `json:"amount"`
	NewBalance    decimal.Decimal `json:"new_balance"`
}

// CreditDebit 直接调整账户余额，扣款后余额不能为负
func (s *AdminService) CreditDebit(ctx context.Context, id auth.Identity, req *CreditDebitRequest) (*CreditDebitResult, error) {
	if err := auth.Require(id, auth.CapCreditDebit); err != nil {
		return nil, err
	}
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	if req.Amount.IsZero() {
		return nil, apperr.Validation("金额不能为0")
	}
	if err := checkPrecision(req.Amount); err != nil {
		return nil, err
	}
	memo, err := normalizeMemo(req.Memo, s.cfg.Ledger.MemoMaxLength)
	if err != nil {
		return nil, err
	}

	kind, defaultMemo := "credit", model.MemoAdminCredit
	if req.Amount.IsNegative() {
		kind, defaultMemo = "debit", model.MemoAdminDebit
	}
	if memo == nil {
		memo = &defaultMemo
	}

	result := &CreditDebitResult{AccountID: req.AccountID, Amount: req.Amount}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		account, err := s.accountRepo.GetByIDForUpdate(ctx, tx, req.AccountID)
		if err != nil {
			return translate(err)
		}
		newBalance := account.Balance.Add(req.Amount)
		if newBalance.IsNegative() {
			return ErrBalanceNotEnough
		}

		if err := s.accountRepo.Adjust(ctx, tx, account.ID, req.Amount); err != nil {
			return translate(err)
		}

		trans := &model.Transaction{
			ID:                idgen.NewID(idgen.PrefixTransaction),
			SenderAccountID:   account.ID,
			ReceiverAccountID: account.ID,
			Amount:            req.Amount.Abs(),
			BankFee:           decimal.Zero,
			SystemTax:         decimal.Zero,
			Memo:              memo,
			Status:            model.TransactionStatusCompleted,
		}
		if err := s.transactionRepo.Create(ctx, tx, trans); err != nil {
			return translate(err)
		}

		err = writeAudit(ctx, s.auditRepo, tx, id.UserID, model.AuditCreditDebit, auditDetails{
			"account_id": account.ID,
			"amount":     req.Amount,
			"memo":       *memo,
		})
		if err != nil {
			return translate(err)
		}

		direction := model.DirectionReceived
		if req.Amount.IsNegative() {
			direction = model.DirectionSent
		}
		account.Balance = newBalance
		events := newEventWriter(s.cfg.Kafka.Topic, s.outboxRepo)
		events.BalanceChanged(account, time.Now())
		events.TransactionCompleted(account.UserID, account.ID, direction, trans)
		if err := events.Flush(ctx, tx); err != nil {
			return translate(err)
		}

		result.TransactionID = trans.ID
		result.NewBalance = newBalance
		return nil
	})
	if err != nil {
		metrics.RecordRejection(kind, string(apperr.KindOf(err)))
		return nil, apperr.Wrap(err)
	}

	metrics.RecordTransfer(kind)
	logger.Infof("[AdminService] 管理员%s: txn=%s, account=%s, amount=%s, admin=%s",
		kind, result.TransactionID, result.AccountID, result.Amount, id.UserID)
	return result, nil
}

// ============================================================================
// 经济重置
// ============================================================================

type ResetResult struct {
	AccountsReset int64     `json:"accounts_reset"`
	BanksReset    int64     `json:"banks_reset"`
	ResetAt       time.Time `json:"reset_at"`
}

// ResetEconomy 清零所有账户余额、金库余额和管理员钱包，流水保留
//
// 破坏性操作，执行前重新校验管理员密码。审计记录在重置提交之后写入，
// 写入失败只记录日志，重置结果不回滚。
func (s *AdminService) ResetEconomy(ctx context.Context, id auth.Identity, password string) (*ResetResult, error) {
	if err := auth.Require(id, auth.CapResetEconomy); err != nil {
		return nil, err
	}
	if password == "" {
		return nil, apperr.Validation("请输入密码")
	}

	admin, err := s.userRepo.GetByID(ctx, nil, id.UserID)
	if err != nil {
		return nil, translate(err)
	}
	if !s.verifier.Verify(password, admin.PasswordHash) {
		return nil, ErrPasswordMismatch
	}

	result := &ResetResult{}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		// 与转账、利息相同的加锁顺序：先银行，后账户
		banks, err := s.bankRepo.ResetAllVaults(ctx, tx)
		if err != nil {
			return translate(err)
		}
		accounts, err := s.accountRepo.ResetAll(ctx, tx)
		if err != nil {
			return translate(err)
		}
		if err := s.settingsRepo.ResetAdminWallet(ctx, tx); err != nil {
			return translate(err)
		}
		result.AccountsReset = accounts
		result.BanksReset = banks
		return nil
	})
	if err != nil {
		return nil, apperr.Wrap(err)
	}
	result.ResetAt = time.Now()

	logger.Warnf("[AdminService] 经济已重置: accounts=%d, banks=%d, admin=%s", result.AccountsReset, result.BanksReset, id.UserID)

	err = writeAudit(ctx, s.auditRepo, nil, id.UserID, model.AuditEconomyReset, auditDetails{
		"accounts_reset": result.AccountsReset,
		"banks_reset":    result.BanksReset,
	})
	if err != nil {
		logger.Errorf("[AdminService] 写入经济重置审计记录失败: admin=%s, err=%v", id.UserID, err)
	}
	return result, nil
}

// ============================================================================
// 全局政策
// ============================================================================

func (s *AdminService) GetSettings(ctx context.Context, id auth.Identity) (*model.SystemSettings, error) {
	if err := auth.Require(id, auth.CapManageSettings); err != nil {
		return nil, err
	}
	settings, err := s.settingsRepo.GetOrCreate(ctx, nil)
	if err != nil {
		return nil, translate(err)
	}
	return settings, nil
}

// UpdateSettingsRequest 只更新非空字段
type UpdateSettingsRequest struct {
	MaxBankFeeCap       *decimal.Decimal `json:"max_bank_fee_cap"`
	GlobalTaxPercentage *decimal.Decimal `json:"global_tax_percentage"`
	TaxEnabled          *bool            `json:"tax_enabled"`
	InflationRate       *decimal.Decimal `json:"inflation_rate"`
	InflationEnabled    *bool            `json:"inflation_enabled"`
	VaultTransferFee    *decimal.Decimal `json:"vault_transfer_fee"`
}

func (r *UpdateSettingsRequest) changes() (map[string]interface{}, error) {
	updates := make(map[string]interface{})
	pcts := []struct {
		column string
		value  *decimal.Decimal
	}{
		{"max_bank_fee_cap", r.MaxBankFeeCap},
		{"global_tax_percentage", r.GlobalTaxPercentage},
		{"inflation_rate", r.InflationRate},
		{"vault_transfer_fee", r.VaultTransferFee},
	}
	for _, p := range pcts {
		if p.value == nil {
			continue
		}
		if err := checkPercentage(p.column, *p.value); err != nil {
			return nil, err
		}
		updates[p.column] = *p.value
	}
	if r.TaxEnabled != nil {
		updates["tax_enabled"] = *r.TaxEnabled
	}
	if r.InflationEnabled != nil {
		updates["inflation_enabled"] = *r.InflationEnabled
	}
	return updates, nil
}

func (s *AdminService) UpdateSettings(ctx context.Context, id auth.Identity, req *UpdateSettingsRequest) (*model.SystemSettings, error) {
	if err := auth.Require(id, auth.CapManageSettings); err != nil {
		return nil, err
	}
	updates, err := req.changes()
	if err != nil {
		return nil, err
	}
	if len(updates) == 0 {
		return nil, apperr.Validation("没有需要更新的字段")
	}

	var settings *model.SystemSettings
	err = s.db.Transaction(func(tx *gorm.DB) error {
		updated, err := s.settingsRepo.Update(ctx, tx, updates)
		if err != nil {
			return translate(err)
		}
		settings = updated

		details := auditDetails{}
		for k, v := range updates {
			details[k] = v
		}
		return translate(writeAudit(ctx, s.auditRepo, tx, id.UserID, model.AuditSettingsUpdated, auditDetails{"changes": details}))
	})
	if err != nil {
		return nil, apperr.Wrap(err)
	}

	logger.Infof("[AdminService] 全局政策已更新: version=%d, admin=%s", settings.Version, id.UserID)
	return settings, nil
}

// ============================================================================
// 银行
// ============================================================================

type CreateBankRequest struct {
	Name       string `json:"name" validate:"required,max=100"`
	Code       string `json:"code" validate:"required,min=3,max=20,alphanum,uppercase"`
	ProviderID string `json:"provider_id" validate:"required"`
}

// CreateBank 为运营方开设银行，新银行金库为 0、手续费为 0
func (s *AdminService) CreateBank(ctx context.Context, id auth.Identity, req *CreateBankRequest) (*model.Bank, error) {
	if err := auth.Require(id, auth.CapCreateBank); err != nil {
		return nil, err
	}
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	provider, err := s.userRepo.GetByID(ctx, nil, req.ProviderID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidProvider
		}
		return nil, translate(err)
	}
	if provider.Role != model.RoleProvider {
		return nil, ErrInvalidProvider
	}

	bank := &model.Bank{
		ID:                idgen.NewID(idgen.PrefixBank),
		Code:              req.Code,
		Name:              req.Name,
		ProviderID:        provider.ID,
		VaultBalance:      decimal.Zero,
		BaseFeePercentage: decimal.Zero,
	}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		exists, err := s.bankRepo.ExistsByCode(ctx, tx, req.Code)
		if err != nil {
			return translate(err)
		}
		if exists {
			return ErrBankCodeExists
		}
		if err := s.bankRepo.Create(ctx, tx, bank); err != nil {
			return translate(err)
		}
		return translate(writeAudit(ctx, s.auditRepo, tx, id.UserID, model.AuditBankCreated, auditDetails{
			"bank_id":     bank.ID,
			"bank_name":   bank.Name,
			"bank_code":   bank.Code,
			"provider_id": provider.ID,
		}))
	})
	if err != nil {
		return nil, apperr.Wrap(err)
	}

	logger.Infof("[AdminService] 银行已创建: bank=%s, code=%s, provider=%s", bank.ID, bank.Code, provider.ID)
	return bank, nil
}

func (s *AdminService) ListBanks(ctx context.Context, id auth.Identity) ([]*model.Bank, error) {
	if err := auth.Require(id, auth.CapCreateBank); err != nil {
		return nil, err
	}
	banks, err := s.bankRepo.ListAll(ctx)
	if err != nil {
		return nil, translate(err)
	}
	return banks, nil
}

// ListAuditLogs 最近的审计记录，actionType 为空时不过滤
func (s *AdminService) ListAuditLogs(ctx context.Context, id auth.Identity, actionType string, limit int) ([]*model.AuditLog, error) {
	if err := auth.Require(id, auth.CapManageSettings); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	var (
		logs []*model.AuditLog
		err  error
	)
	if actionType != "" {
		logs, err = s.auditRepo.ListByAction(ctx, actionType)
		if len(logs) > limit {
			logs = logs[:limit]
		}
	} else {
		logs, err = s.auditRepo.ListRecent(ctx, limit)
	}
	if err != nil {
		return nil, translate(err)
	}
	return logs, nil
}

// ============================================================================
// 经济概况
// ============================================================================

// EconomyStats 全局统计，TotalMoney = 金库 + 账户余额 + 管理员钱包
type EconomyStats struct {
	TotalUsers          int64                 `json:"total_users"`
	TotalProviders      int64                 `json:"total_providers"`
	TotalBanks          int64                 `json:"total_banks"`
	TotalAccounts       int64                 `json:"total_accounts"`
	TotalTransactions   int64                 `json:"total_transactions"`
	TotalVaultBalance   decimal.Decimal       `json:"total_vault_balance"`
	TotalAccountBalance decimal.Decimal       `json:"total_account_balance"`
	AdminWalletBalance  decimal.Decimal       `json:"admin_wallet_balance"`
	TotalMoney          decimal.Decimal       `json:"total_money"`
	Settings            *model.SystemSettings `json:"system_settings"`
}

func (s *AdminService) Stats(ctx context.Context, id auth.Identity) (*EconomyStats, error) {
	if err := auth.Require(id, auth.CapManageSettings); err != nil {
		return nil, err
	}

	var (
		stats = &EconomyStats{}
		err   error
	)
	if stats.TotalUsers, err = s.userRepo.CountByRole(ctx, model.RoleUser); err != nil {
		return nil, translate(err)
	}
	if stats.TotalProviders, err = s.userRepo.CountByRole(ctx, model.RoleProvider); err != nil {
		return nil, translate(err)
	}
	if stats.TotalBanks, err = s.bankRepo.Count(ctx); err != nil {
		return nil, translate(err)
	}
	if stats.TotalAccounts, err = s.accountRepo.Count(ctx); err != nil {
		return nil, translate(err)
	}
	if stats.TotalTransactions, err = s.transactionRepo.Count(ctx); err != nil {
		return nil, translate(err)
	}

	vault, err := s.bankRepo.SumVault(ctx)
	if err != nil {
		return nil, translate(err)
	}
	balance, err := s.accountRepo.SumBalance(ctx)
	if err != nil {
		return nil, translate(err)
	}
	settings, err := s.settingsRepo.GetOrCreate(ctx, nil)
	if err != nil {
		return nil, translate(err)
	}

	stats.TotalVaultBalance = vault.Round(MoneyScale)
	stats.TotalAccountBalance = balance.Round(MoneyScale)
	stats.AdminWalletBalance = settings.AdminWalletBalance
	stats.TotalMoney = stats.TotalVaultBalance.Add(stats.TotalAccountBalance).Add(stats.AdminWalletBalance)
	stats.Settings = settings
	return stats, nil
}
