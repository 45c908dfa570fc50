package service

import (
	"context"

	"rispay/internal/auth"
	"rispay/internal/logger"
	"rispay/internal/model"
	"rispay/internal/repository"
	"rispay/pkg/apperr"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// BankService 运营方管理自己名下的银行
type BankService struct {
	db           *gorm.DB
	bankRepo     *repository.BankRepository
	accountRepo  *repository.AccountRepository
	settingsRepo *repository.SettingsRepository
}

func NewBankService(db *gorm.DB) *BankService {
	return &BankService{
		db:           db,
		bankRepo:     repository.NewBankRepository(db),
		accountRepo:  repository.NewAccountRepository(db),
		settingsRepo: repository.NewSettingsRepository(db),
	}
}

// ownedBank 读取银行并校验调用方是运营方本人
func (s *BankService) ownedBank(ctx context.Context, id auth.Identity, bankID string) (*model.Bank, error) {
	if err := auth.Require(id, auth.CapManageOwnBank); err != nil {
		return nil, err
	}
	bank, err := s.bankRepo.GetByID(ctx, nil, bankID)
	if err != nil {
		return nil, translate(err)
	}
	if bank.ProviderID != id.UserID {
		return nil, ErrNotBankOwner
	}
	return bank, nil
}

// UpdateFee 修改转账手续费率，不能超过管理员设置的上限
func (s *BankService) UpdateFee(ctx context.Context, id auth.Identity, bankID string, feePercentage decimal.Decimal) (*model.Bank, error) {
	bank, err := s.ownedBank(ctx, id, bankID)
	if err != nil {
		return nil, err
	}
	if err := checkPercentage("手续费率", feePercentage); err != nil {
		return nil, err
	}

	settings, err := s.settingsRepo.GetOrCreate(ctx, nil)
	if err != nil {
		return nil, translate(err)
	}
	if feePercentage.GreaterThan(settings.MaxBankFeeCap) {
		return nil, apperr.Validation("手续费率不能超过上限 %s%%", settings.MaxBankFeeCap)
	}

	updated, err := s.bankRepo.UpdateSettings(ctx, bank.ID, map[string]interface{}{
		"base_fee_percentage": feePercentage,
	})
	if err != nil {
		return nil, translate(err)
	}
	logger.Infof("[BankService] 手续费率已更新: bank=%s, fee=%s%%", bank.ID, feePercentage)
	return updated, nil
}

// UpdateInterestRate 修改利率，nil 表示不再发放利息
func (s *BankService) UpdateInterestRate(ctx context.Context, id auth.Identity, bankID string, rate *decimal.Decimal) (*model.Bank, error) {
	bank, err := s.ownedBank(ctx, id, bankID)
	if err != nil {
		return nil, err
	}
	var value interface{}
	if rate != nil {
		if err := checkPercentage("利率", *rate); err != nil {
			return nil, err
		}
		value = *rate
	}

	updated, err := s.bankRepo.UpdateSettings(ctx, bank.ID, map[string]interface{}{
		"interest_rate": value,
	})
	if err != nil {
		return nil, translate(err)
	}
	logger.Infof("[BankService] 利率已更新: bank=%s, rate=%v", bank.ID, rate)
	return updated, nil
}

// SetMaintenanceMode 维护模式下该银行的账户不能转出
func (s *BankService) SetMaintenanceMode(ctx context.Context, id auth.Identity, bankID string, enabled bool) (*model.Bank, error) {
	bank, err := s.ownedBank(ctx, id, bankID)
	if err != nil {
		return nil, err
	}

	updated, err := s.bankRepo.UpdateSettings(ctx, bank.ID, map[string]interface{}{
		"maintenance_mode": enabled,
	})
	if err != nil {
		return nil, translate(err)
	}
	logger.Infof("[BankService] 维护模式: bank=%s, enabled=%v", bank.ID, enabled)
	return updated, nil
}

type BankSummary struct {
	*model.Bank
	AccountCount int64 `json:"account_count"`
}

type ProviderBanks struct {
	Banks             []*BankSummary  `json:"banks"`
	TotalVaultBalance decimal.Decimal `json:"total_vault_balance"`
}

// ListProviderBanks 运营方名下的银行以及金库总额
func (s *BankService) ListProviderBanks(ctx context.Context, id auth.Identity) (*ProviderBanks, error) {
	if err := auth.Require(id, auth.CapManageOwnBank); err != nil {
		return nil, err
	}
	banks, err := s.bankRepo.ListByProvider(ctx, id.UserID)
	if err != nil {
		return nil, translate(err)
	}

	result := &ProviderBanks{Banks: make([]*BankSummary, 0, len(banks)), TotalVaultBalance: decimal.Zero}
	for _, b := range banks {
		count, err := s.accountRepo.CountByBank(ctx, b.ID)
		if err != nil {
			return nil, translate(err)
		}
		result.Banks = append(result.Banks, &BankSummary{Bank: b, AccountCount: count})
		result.TotalVaultBalance = result.TotalVaultBalance.Add(b.VaultBalance)
	}
	return result, nil
}
