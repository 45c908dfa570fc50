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

// ============================================================================
// 转账服务
// ============================================================================
//
// 【核心流程】
// 1. 校验金额
// 2. 校验转出账户：存在、属于调用方、已激活
// 3. 校验交易 PIN（预览跳过）
// 4. 转出银行不在维护中
// 5. 解析收款方：先按账户 ID 精确匹配，再按用户名找已激活的主账户
// 6. 读取全局税率与银行手续费率，计算费用
// 7. 转出账户余额 >= 总扣款
//
// 任意一步失败立即返回，不做任何修改。
// 通过后在一个事务内：扣款、入账、手续费入金库、税费入管理员钱包、写流水、写通知事件。

type TransferService struct {
	db              *gorm.DB
	cfg             *config.Config
	verifier        auth.CredentialVerifier
	accountRepo     *repository.AccountRepository
	bankRepo        *repository.BankRepository
	settingsRepo    *repository.SettingsRepository
	transactionRepo *repository.TransactionRepository
	userRepo        *repository.UserRepository
	outboxRepo      *repository.OutboxRepository
}

func NewTransferService(db *gorm.DB, cfg *config.Config, verifier auth.CredentialVerifier) *TransferService {
	return &TransferService{
		db:              db,
		cfg:             cfg,
		verifier:        verifier,
		accountRepo:     repository.NewAccountRepository(db),
		bankRepo:        repository.NewBankRepository(db),
		settingsRepo:    repository.NewSettingsRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
		userRepo:        repository.NewUserRepository(db),
		outboxRepo:      repository.NewOutboxRepository(db),
	}
}

// 请求字段的校验都放在前置检查的对应步骤里，保证失败顺序固定
type PreviewRequest struct {
	SenderAccountID string          `json:"sender_account_id"`
	Recipient       string          `json:"recipient"`
	Amount          decimal.Decimal `json:"amount"`
}

type PreviewResult struct {
	TransferCost
	BankFeePercentage decimal.Decimal `json:"bank_fee_percentage"`
	TaxPercentage     decimal.Decimal `json:"tax_percentage"`
	SenderBalance     decimal.Decimal `json:"sender_balance"`
	ReceiverUsername  string          `json:"receiver_username"`
	ReceiverAccountID string          `json:"receiver_account_id"`
}

type SendRequest struct {
	SenderAccountID string          `json:"sender_account_id"`
	Recipient       string          `json:"recipient"`
	Amount          decimal.Decimal `json:"amount"`
	Memo            *string         `json:"memo"`
	Pin             string          `json:"pin"`
}

type TransactionResult struct {
	TransactionID     string          `json:"transaction_id"`
	SenderAccountID   string          `json:"sender_account_id"`
	ReceiverAccountID string          `json:"receiver_account_id"`
	Amount            decimal.Decimal `json:"amount"`
	BankFee           decimal.Decimal `json:"bank_fee"`
	Tax               decimal.Decimal `json:"tax"`
	TotalDeducted     decimal.Decimal `json:"total_deducted"`
	Memo              *string         `json:"memo,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
}

// transferPlan 通过全部前置检查后的转账计划
type transferPlan struct {
	sender   *model.Account
	bank     *model.Bank
	receiver *model.Account
	settings *model.SystemSettings
	cost     TransferCost
}

// Preview 计算费用但不修改任何数据
func (s *TransferService) Preview(ctx context.Context, id auth.Identity, req *PreviewRequest) (*PreviewResult, error) {
	if err := auth.Require(id, auth.CapTransfer); err != nil {
		return nil, err
	}

	plan, err := s.plan(ctx, nil, id, req.SenderAccountID, req.Recipient, req.Amount, nil)
	if err != nil {
		metrics.RecordRejection("preview", string(apperr.KindOf(err)))
		return nil, err
	}

	receiverUser, err := s.userRepo.GetByID(ctx, nil, plan.receiver.UserID)
	if err != nil {
		return nil, translate(err)
	}

	taxPct := decimal.Zero
	if plan.settings.TaxEnabled {
		taxPct = plan.settings.GlobalTaxPercentage
	}

	return &PreviewResult{
		TransferCost:      plan.cost,
		BankFeePercentage: plan.bank.BaseFeePercentage,
		TaxPercentage:     taxPct,
		SenderBalance:     plan.sender.Balance,
		ReceiverUsername:  receiverUser.Username,
		ReceiverAccountID: plan.receiver.ID,
	}, nil
}

// Send 执行转账
func (s *TransferService) Send(ctx context.Context, id auth.Identity, req *SendRequest) (*TransactionResult, error) {
	if err := auth.Require(id, auth.CapTransfer); err != nil {
		return nil, err
	}

	var (
		trans *model.Transaction
		plan  *transferPlan
	)
	err := s.db.Transaction(func(tx *gorm.DB) error {
		p, err := s.plan(ctx, tx, id, req.SenderAccountID, req.Recipient, req.Amount, &req.Pin)
		if err != nil {
			return err
		}
		plan = p

		// 银行行锁已在 plan 中取得，这里再按 ID 顺序锁两个账户
		// 所有写金库的路径都是先银行后账户
		locked, err := s.accountRepo.LockInOrder(ctx, tx, p.sender.ID, p.receiver.ID)
		if err != nil {
			return translate(err)
		}
		if locked[p.sender.ID].Balance.LessThan(p.cost.TotalDeducted) {
			return ErrBalanceNotEnough
		}

		memo, err := normalizeMemo(req.Memo, s.cfg.Ledger.MemoMaxLength)
		if err != nil {
			return err
		}

		if err := s.accountRepo.Deduct(ctx, tx, p.sender.ID, p.cost.TotalDeducted); err != nil {
			return translate(err)
		}
		if err := s.accountRepo.Increase(ctx, tx, p.receiver.ID, p.cost.Amount); err != nil {
			return translate(err)
		}
		if p.cost.BankFee.IsPositive() {
			if err := s.bankRepo.IncreaseVault(ctx, tx, p.bank.ID, p.cost.BankFee); err != nil {
				return translate(err)
			}
		}
		if p.cost.Tax.IsPositive() {
			if err := s.settingsRepo.AddAdminWallet(ctx, tx, p.cost.Tax); err != nil {
				return translate(err)
			}
		}

		trans = &model.Transaction{
			ID:                idgen.NewID(idgen.PrefixTransaction),
			SenderAccountID:   p.sender.ID,
			ReceiverAccountID: p.receiver.ID,
			Amount:            p.cost.Amount,
			BankFee:           p.cost.BankFee,
			SystemTax:         p.cost.Tax,
			Memo:              memo,
			Status:            model.TransactionStatusCompleted,
		}
		if err := s.transactionRepo.Create(ctx, tx, trans); err != nil {
			return translate(err)
		}

		return s.writeEvents(ctx, tx, p, trans)
	})
	if err != nil {
		metrics.RecordRejection("p2p", string(apperr.KindOf(err)))
		return nil, apperr.Wrap(err)
	}

	metrics.RecordTransfer("p2p")
	metrics.RecordFee("bank_fee", plan.cost.BankFee.InexactFloat64())
	metrics.RecordFee("system_tax", plan.cost.Tax.InexactFloat64())
	logger.Infof("[TransferService] 转账成功: txn=%s, from=%s, to=%s, amount=%s, fee=%s, tax=%s",
		trans.ID, trans.SenderAccountID, trans.ReceiverAccountID, trans.Amount, trans.BankFee, trans.SystemTax)

	return &TransactionResult{
		TransactionID:     trans.ID,
		SenderAccountID:   trans.SenderAccountID,
		ReceiverAccountID: trans.ReceiverAccountID,
		Amount:            trans.Amount,
		BankFee:           trans.BankFee,
		Tax:               trans.SystemTax,
		TotalDeducted:     plan.cost.TotalDeducted,
		Memo:              trans.Memo,
		CreatedAt:         trans.CreatedAt,
	}, nil
}

// plan 按顺序执行前置检查 1-6，pin 为 nil 时跳过 PIN 校验
// tx 为 nil 时在事务外只读执行；在事务内时转出银行行被锁定
func (s *TransferService) plan(ctx context.Context, tx *gorm.DB, id auth.Identity, senderAccountID, recipient string, amount decimal.Decimal, pin *string) (*transferPlan, error) {
	// 1. 金额
	if err := s.checkAmount(amount); err != nil {
		return nil, err
	}

	// 2. 转出账户
	sender, err := s.accountRepo.GetByID(ctx, tx, senderAccountID)
	if err != nil {
		return nil, translate(err)
	}
	if sender.UserID != id.UserID {
		return nil, ErrNotAccountOwner
	}
	if !sender.IsActivated() {
		return nil, ErrAccountNotActivated
	}

	// 3. 交易 PIN
	if pin != nil {
		if err := s.checkPin(ctx, tx, id.UserID, *pin); err != nil {
			return nil, err
		}
	}

	// 4. 维护模式
	var bank *model.Bank
	if tx != nil {
		bank, err = s.bankRepo.GetByIDForUpdate(ctx, tx, sender.BankID)
	} else {
		bank, err = s.bankRepo.GetByID(ctx, nil, sender.BankID)
	}
	if err != nil {
		return nil, translate(err)
	}
	if bank.MaintenanceMode {
		return nil, ErrBankMaintenance
	}

	// 5. 收款方
	receiver, err := s.resolveRecipient(ctx, tx, recipient)
	if err != nil {
		return nil, err
	}

	// 6. 费用
	settings, err := s.settingsRepo.GetOrCreate(ctx, tx)
	if err != nil {
		return nil, translate(err)
	}
	cost := ComputeTransferCost(amount, bank.BaseFeePercentage, settings.GlobalTaxPercentage, settings.TaxEnabled)

	return &transferPlan{
		sender:   sender,
		bank:     bank,
		receiver: receiver,
		settings: settings,
		cost:     cost,
	}, nil
}

func (s *TransferService) checkAmount(amount decimal.Decimal) error {
	if err := checkPositiveAmount(amount); err != nil {
		return err
	}
	limit := decimal.NewFromFloat(s.cfg.Ledger.MaxTransferAmount)
	if amount.GreaterThan(limit) {
		return apperr.Validation("单笔转账金额不能超过 %s", limit)
	}
	return nil
}

func (s *TransferService) checkPin(ctx context.Context, tx *gorm.DB, userID, pin string) error {
	settings, err := s.userRepo.GetSettings(ctx, tx, userID)
	if err != nil {
		return translate(err)
	}
	if settings == nil || settings.TransactionPinHash == nil || *settings.TransactionPinHash == "" {
		return ErrPinNotSet
	}
	if err := validate.Var(pin, "required,len=4,numeric"); err != nil {
		return apperr.Validation("交易 PIN 必须是 4 位数字")
	}
	if !s.verifier.Verify(pin, *settings.TransactionPinHash) {
		return ErrPinMismatch
	}
	return nil
}

// resolveRecipient 先按账户 ID 精确匹配，找不到再按用户名查找已激活的主账户
// 用户名恰好等于另一个账户 ID 时，账户 ID 优先
func (s *TransferService) resolveRecipient(ctx context.Context, tx *gorm.DB, recipient string) (*model.Account, error) {
	account, err := s.accountRepo.GetByID(ctx, tx, recipient)
	if err != nil && !errors.Is(err, repository.ErrAccountNotFound) {
		return nil, translate(err)
	}
	if account == nil {
		account, err = s.accountRepo.GetPrimaryActivatedByUsername(ctx, tx, recipient)
		if err != nil {
			if errors.Is(err, repository.ErrAccountNotFound) {
				return nil, ErrRecipientNotFound
			}
			return nil, translate(err)
		}
	}
	if !account.IsActivated() {
		return nil, ErrRecipientNotFound
	}
	return account, nil
}

func (s *TransferService) writeEvents(ctx context.Context, tx *gorm.DB, p *transferPlan, trans *model.Transaction) error {
	events := newEventWriter(s.cfg.Kafka.Topic, s.outboxRepo)
	now := time.Now()

	sender, err := s.accountRepo.GetByID(ctx, tx, p.sender.ID)
	if err != nil {
		return translate(err)
	}
	events.BalanceChanged(sender, now)
	if p.receiver.ID != p.sender.ID {
		receiver, err := s.accountRepo.GetByID(ctx, tx, p.receiver.ID)
		if err != nil {
			return translate(err)
		}
		events.BalanceChanged(receiver, now)
	}

	events.TransactionCompleted(p.sender.UserID, p.sender.ID, model.DirectionSent, trans)
	events.TransactionCompleted(p.receiver.UserID, p.receiver.ID, model.DirectionReceived, trans)

	return translate(events.Flush(ctx, tx))
}
