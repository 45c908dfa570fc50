package service

import (
	"context"
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

// VaultService 金库转出到账户
//
// 运营方只能操作自己的银行，按 vault_transfer_fee 收取手续费，手续费进入管理员钱包，
// 记录在流水的 system_tax 字段。管理员可以操作任意银行，不收手续费，并写审计记录。
type VaultService struct {
	db              *gorm.DB
	cfg             *config.Config
	accountRepo     *repository.AccountRepository
	bankRepo        *repository.BankRepository
	settingsRepo    *repository.SettingsRepository
	transactionRepo *repository.TransactionRepository
	auditRepo       *repository.AuditLogRepository
	outboxRepo      *repository.OutboxRepository
}

func NewVaultService(db *gorm.DB, cfg *config.Config) *VaultService {
	return &VaultService{
		db:              db,
		cfg:             cfg,
		accountRepo:     repository.NewAccountRepository(db),
		bankRepo:        repository.NewBankRepository(db),
		settingsRepo:    repository.NewSettingsRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
		auditRepo:       repository.NewAuditLogRepository(db),
		outboxRepo:      repository.NewOutboxRepository(db),
	}
}

type VaultTransferRequest struct {
	BankID    string          `json:"bank_id" validate:"required"`
	AccountID string          `json:"account_id" validate:"required"`
	Amount    decimal.Decimal `json:"amount"`
}

type VaultTransferResult struct {
	TransactionID  string          `json:"transaction_id"`
	BankID         string          `json:"bank_id"`
	AccountID      string          `json:"account_id"`
	Amount         decimal.Decimal `json:"amount"`
	Fee            decimal.Decimal `json:"fee"`
	VaultBalance   decimal.Decimal `json:"vault_balance"`
	AccountBalance decimal.Decimal `json:"account_balance"`
}

func (s *VaultService) Transfer(ctx context.Context, id auth.Identity, req *VaultTransferRequest) (*VaultTransferResult, error) {
	if err := auth.RequireAny(id, auth.CapVaultTransferOwnBank, auth.CapVaultTransferAnyBank); err != nil {
		return nil, err
	}
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	if err := checkPositiveAmount(req.Amount); err != nil {
		return nil, err
	}
	asAdmin := id.Has(auth.CapVaultTransferAnyBank)

	kind := "vault"
	memo := model.MemoVaultTransfer
	if asAdmin {
		kind = "admin_vault"
		memo = model.MemoAdminVaultTransfer
	}

	result := &VaultTransferResult{BankID: req.BankID, AccountID: req.AccountID, Amount: req.Amount}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		bank, err := s.bankRepo.GetByIDForUpdate(ctx, tx, req.BankID)
		if err != nil {
			return translate(err)
		}
		if !asAdmin && bank.ProviderID != id.UserID {
			return ErrNotBankOwner
		}

		account, err := s.accountRepo.GetByIDForUpdate(ctx, tx, req.AccountID)
		if err != nil {
			return translate(err)
		}
		if account.BankID != bank.ID {
			return ErrAccountNotInBank
		}

		fee := decimal.Zero
		if !asAdmin {
			settings, err := s.settingsRepo.GetOrCreate(ctx, tx)
			if err != nil {
				return translate(err)
			}
			fee = Percent(req.Amount, settings.VaultTransferFee)
		}
		total := req.Amount.Add(fee)
		if bank.VaultBalance.LessThan(total) {
			return ErrVaultNotEnough
		}

		if err := s.bankRepo.DeductVault(ctx, tx, bank.ID, total); err != nil {
			return translate(err)
		}
		if err := s.accountRepo.Increase(ctx, tx, account.ID, req.Amount); err != nil {
			return translate(err)
		}
		if fee.IsPositive() {
			if err := s.settingsRepo.AddAdminWallet(ctx, tx, fee); err != nil {
				return translate(err)
			}
		}

		trans := &model.Transaction{
			ID:                idgen.NewID(idgen.PrefixTransaction),
			SenderAccountID:   account.ID,
			ReceiverAccountID: account.ID,
			Amount:            req.Amount,
			BankFee:           decimal.Zero,
			SystemTax:         fee,
			Memo:              &memo,
			Status:            model.TransactionStatusCompleted,
		}
		if err := s.transactionRepo.Create(ctx, tx, trans); err != nil {
			return translate(err)
		}

		if asAdmin {
			err := writeAudit(ctx, s.auditRepo, tx, id.UserID, model.AuditVaultTransfer, auditDetails{
				"bank_id":    bank.ID,
				"account_id": account.ID,
				"amount":     req.Amount,
			})
			if err != nil {
				return translate(err)
			}
		}

		updated, err := s.accountRepo.GetByID(ctx, tx, account.ID)
		if err != nil {
			return translate(err)
		}
		events := newEventWriter(s.cfg.Kafka.Topic, s.outboxRepo)
		events.BalanceChanged(updated, time.Now())
		events.TransactionCompleted(updated.UserID, updated.ID, model.DirectionReceived, trans)
		if err := events.Flush(ctx, tx); err != nil {
			return translate(err)
		}

		result.TransactionID = trans.ID
		result.Fee = fee
		result.VaultBalance = bank.VaultBalance.Sub(total)
		result.AccountBalance = updated.Balance
		return nil
	})
	if err != nil {
		metrics.RecordRejection(kind, string(apperr.KindOf(err)))
		return nil, apperr.Wrap(err)
	}

	metrics.RecordTransfer(kind)
	metrics.RecordFee("vault_transfer_fee", result.Fee.InexactFloat64())
	logger.Infof("[VaultService] 金库转出成功: txn=%s, bank=%s, account=%s, amount=%s, fee=%s, operator=%s",
		result.TransactionID, result.BankID, result.AccountID, result.Amount, result.Fee, id.UserID)
	return result, nil
}
