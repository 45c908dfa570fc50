package service

import (
	"context"
	"time"
	"unicode/utf8"

	"rispay/internal/auth"
	"rispay/internal/model"
	"rispay/internal/repository"
	"rispay/pkg/apperr"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const maxNicknameLength = 50

// AccountService 用户管理自己的账户
type AccountService struct {
	accountRepo     *repository.AccountRepository
	transactionRepo *repository.TransactionRepository
	userRepo        *repository.UserRepository
	db              *gorm.DB
	now             func() time.Time
}

func NewAccountService(db *gorm.DB) *AccountService {
	return &AccountService{
		accountRepo:     repository.NewAccountRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
		userRepo:        repository.NewUserRepository(db),
		db:              db,
		now:             time.Now,
	}
}

func (s *AccountService) ListAccounts(ctx context.Context, id auth.Identity) ([]*model.Account, error) {
	if err := auth.Require(id, auth.CapManageOwnAccounts); err != nil {
		return nil, err
	}
	accounts, err := s.accountRepo.ListByUserID(ctx, id.UserID)
	if err != nil {
		return nil, translate(err)
	}
	return accounts, nil
}

// SetPrimary 设为主账户，同一银行下原来的主账户自动取消
func (s *AccountService) SetPrimary(ctx context.Context, id auth.Identity, accountID string) error {
	if err := auth.Require(id, auth.CapManageOwnAccounts); err != nil {
		return err
	}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		account, err := s.accountRepo.GetByIDForUpdate(ctx, tx, accountID)
		if err != nil {
			return translate(err)
		}
		if account.UserID != id.UserID {
			return ErrNotAccountOwner
		}
		return translate(s.accountRepo.SetPrimary(ctx, tx, account))
	})
	return apperr.Wrap(err)
}

// UpdateNickname nickname 为空时清除昵称
func (s *AccountService) UpdateNickname(ctx context.Context, id auth.Identity, accountID string, nickname *string) error {
	if err := auth.Require(id, auth.CapManageOwnAccounts); err != nil {
		return err
	}
	if nickname != nil && *nickname == "" {
		nickname = nil
	}
	if nickname != nil && utf8.RuneCountInString(*nickname) > maxNicknameLength {
		return apperr.Validation("昵称不能超过 %d 个字符", maxNicknameLength)
	}

	account, err := s.accountRepo.GetByID(ctx, nil, accountID)
	if err != nil {
		return translate(err)
	}
	if account.UserID != id.UserID {
		return ErrNotAccountOwner
	}
	return translate(s.accountRepo.UpdateNickname(ctx, account.ID, nickname))
}

type SetPinRequest struct {
	Pin string `json:"pin" validate:"required,len=4,numeric"`
}

// SetTransactionPin 设置或修改交易 PIN
func (s *AccountService) SetTransactionPin(ctx context.Context, id auth.Identity, req *SetPinRequest) error {
	if err := auth.Require(id, auth.CapTransfer); err != nil {
		return err
	}
	if err := validateStruct(req); err != nil {
		return err
	}
	hash, err := auth.HashPassword(req.Pin)
	if err != nil {
		return apperr.Store(err)
	}
	return translate(s.userRepo.SetTransactionPin(ctx, id.UserID, hash))
}

type TransactionPage struct {
	Items    []*model.Transaction `json:"items"`
	Total    int64                `json:"total"`
	Page     int                  `json:"page"`
	PageSize int                  `json:"page_size"`
}

// ListTransactions 调用方所有账户相关的流水，按时间倒序
func (s *AccountService) ListTransactions(ctx context.Context, id auth.Identity, page, pageSize int) (*TransactionPage, error) {
	if err := auth.Require(id, auth.CapManageOwnAccounts); err != nil {
		return nil, err
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	accounts, err := s.accountRepo.ListByUserID(ctx, id.UserID)
	if err != nil {
		return nil, translate(err)
	}
	ids := make([]string, 0, len(accounts))
	for _, a := range accounts {
		ids = append(ids, a.ID)
	}

	items, total, err := s.transactionRepo.ListByAccountIDs(ctx, ids, page, pageSize)
	if err != nil {
		return nil, translate(err)
	}
	if items == nil {
		items = []*model.Transaction{}
	}
	return &TransactionPage{Items: items, Total: total, Page: page, PageSize: pageSize}, nil
}

// ============================================================================
// 收支概览
// ============================================================================

const insightsWindow = 30 * 24 * time.Hour

var insightsDays = decimal.NewFromInt(30)

type LargestTransaction struct {
	ID     string          `json:"id"`
	Amount decimal.Decimal `json:"amount"`
	Date   time.Time       `json:"date"`
}

// DailyFlow 某一天 (UTC) 的转出与转入合计
type DailyFlow struct {
	Date     string          `json:"date"`
	Sent     decimal.Decimal `json:"sent"`
	Received decimal.Decimal `json:"received"`
}

// Insights 本月收支与最近 30 天的每日流水
//
// TotalSent / TotalReceived 只统计本月与他人之间的转账，自己账户之间的互转不计入；
// 每日明细则把互转同时计入转出和转入。
type Insights struct {
	TotalSent          decimal.Decimal     `json:"total_sent"`
	TotalReceived      decimal.Decimal     `json:"total_received"`
	LargestTransaction *LargestTransaction `json:"largest_transaction"`
	DailyAverage       decimal.Decimal     `json:"daily_average"`
	Last30Days         []DailyFlow         `json:"transactions_30_days"`
}

func (s *AccountService) Insights(ctx context.Context, id auth.Identity) (*Insights, error) {
	if err := auth.Require(id, auth.CapManageOwnAccounts); err != nil {
		return nil, err
	}

	out := &Insights{
		TotalSent:     decimal.Zero,
		TotalReceived: decimal.Zero,
		DailyAverage:  decimal.Zero,
		Last30Days:    []DailyFlow{},
	}

	accounts, err := s.accountRepo.ListByUserID(ctx, id.UserID)
	if err != nil {
		return nil, translate(err)
	}
	if len(accounts) == 0 {
		return out, nil
	}
	own := make(map[string]bool, len(accounts))
	ids := make([]string, 0, len(accounts))
	for _, a := range accounts {
		own[a.ID] = true
		ids = append(ids, a.ID)
	}

	now := s.now().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	windowStart := now.Add(-insightsWindow)
	since := windowStart
	if monthStart.Before(since) {
		since = monthStart
	}

	items, err := s.transactionRepo.ListCompletedSince(ctx, ids, since)
	if err != nil {
		return nil, translate(err)
	}

	daily := make(map[string]*DailyFlow)
	var days []string
	for _, t := range items {
		sent, received := own[t.SenderAccountID], own[t.ReceiverAccountID]
		at := t.CreatedAt.UTC()

		if !at.Before(monthStart) {
			switch {
			case sent && !received:
				out.TotalSent = out.TotalSent.Add(t.Amount)
			case received && !sent:
				out.TotalReceived = out.TotalReceived.Add(t.Amount)
			}
			if out.LargestTransaction == nil || t.Amount.GreaterThan(out.LargestTransaction.Amount) {
				out.LargestTransaction = &LargestTransaction{ID: t.ID, Amount: t.Amount, Date: t.CreatedAt}
			}
		}

		if at.Before(windowStart) {
			continue
		}
		day := at.Format("2006-01-02")
		flow, ok := daily[day]
		if !ok {
			flow = &DailyFlow{Date: day, Sent: decimal.Zero, Received: decimal.Zero}
			daily[day] = flow
			days = append(days, day)
		}
		if sent {
			flow.Sent = flow.Sent.Add(t.Amount)
		}
		if received {
			flow.Received = flow.Received.Add(t.Amount)
		}
	}

	for _, day := range days {
		f := daily[day]
		f.Sent, f.Received = f.Sent.Round(MoneyScale), f.Received.Round(MoneyScale)
		out.Last30Days = append(out.Last30Days, *f)
	}
	out.TotalSent = out.TotalSent.Round(MoneyScale)
	out.TotalReceived = out.TotalReceived.Round(MoneyScale)
	out.DailyAverage = out.TotalSent.Div(insightsDays).Round(MoneyScale)
	return out, nil
}
