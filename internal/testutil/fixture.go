// Package testutil 提供测试用的内存数据库和数据构造
package testutil

import (
	"context"
	"reflect"
	"sync"
	"testing"
	"time"

	"rispay/internal/auth"
	"rispay/internal/infrastructure/database"
	"rispay/internal/model"
	"rispay/pkg/idgen"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// NewDB 每个测试一个独立的内存库
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func D(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// Fixture 构造测试数据
type Fixture struct {
	T  *testing.T
	DB *gorm.DB
}

func NewFixture(t *testing.T) *Fixture {
	return &Fixture{T: t, DB: NewDB(t)}
}

// User 创建用户，password 为空时不设置可用密码
func (f *Fixture) User(username, role, password string) *model.User {
	f.T.Helper()
	hash := "!"
	if password != "" {
		h, err := auth.HashPassword(password)
		require.NoError(f.T, err)
		hash = h
	}
	u := &model.User{
		ID:           idgen.NewID(idgen.PrefixUser),
		Username:     username,
		PasswordHash: hash,
		Role:         role,
	}
	require.NoError(f.T, f.DB.Create(u).Error)
	return u
}

// SetPin 设置交易 PIN
func (f *Fixture) SetPin(userID, pin string) {
	f.T.Helper()
	h, err := auth.HashPassword(pin)
	require.NoError(f.T, err)
	require.NoError(f.T, f.DB.Create(&model.UserSettings{UserID: userID, TransactionPinHash: &h}).Error)
}

func (f *Fixture) Bank(code, providerID string, vault, feePct string) *model.Bank {
	f.T.Helper()
	b := &model.Bank{
		ID:                idgen.NewID(idgen.PrefixBank),
		Code:              code,
		Name:              code + " Bank",
		ProviderID:        providerID,
		VaultBalance:      D(vault),
		BaseFeePercentage: D(feePct),
	}
	require.NoError(f.T, f.DB.Create(b).Error)
	return b
}

func (f *Fixture) SetInterest(bankID string, rate string) {
	f.T.Helper()
	r := D(rate)
	require.NoError(f.T, f.DB.Model(&model.Bank{}).Where("id = ?", bankID).Update("interest_rate", &r).Error)
}

// Account 创建已激活账户
func (f *Fixture) Account(userID, bankID, balance string, primary bool) *model.Account {
	f.T.Helper()
	now := time.Now()
	a := &model.Account{
		ID:          idgen.NewID(idgen.PrefixAccount),
		UserID:      userID,
		BankID:      bankID,
		Balance:     D(balance),
		IsPrimary:   primary,
		ActivatedAt: &now,
	}
	require.NoError(f.T, f.DB.Create(a).Error)
	return a
}

// InactiveAccount 创建未激活账户
func (f *Fixture) InactiveAccount(userID, bankID, balance string) *model.Account {
	f.T.Helper()
	a := &model.Account{
		ID:      idgen.NewID(idgen.PrefixAccount),
		UserID:  userID,
		BankID:  bankID,
		Balance: D(balance),
	}
	require.NoError(f.T, f.DB.Create(a).Error)
	return a
}

// Settings 写入全局设置，mutate 可以在写入前修改默认值
func (f *Fixture) Settings(mutate func(s *model.SystemSettings)) *model.SystemSettings {
	f.T.Helper()
	s := model.DefaultSystemSettings()
	if mutate != nil {
		mutate(s)
	}
	require.NoError(f.T, f.DB.Save(s).Error)
	return s
}

// Reload 重新读取一行，dest 可以是已经加载过的结构体
// 先清零 dest，否则 gorm 会把旧主键拼进 WHERE 条件
func (f *Fixture) Reload(dest interface{}, id string) {
	f.T.Helper()
	v := reflect.ValueOf(dest).Elem()
	v.Set(reflect.Zero(v.Type()))
	require.NoError(f.T, f.DB.WithContext(context.Background()).Where("id = ?", id).First(dest).Error)
}

func (f *Fixture) AccountBalance(id string) decimal.Decimal {
	var a model.Account
	f.Reload(&a, id)
	return a.Balance
}

func (f *Fixture) Vault(id string) decimal.Decimal {
	var b model.Bank
	f.Reload(&b, id)
	return b.VaultBalance
}

func (f *Fixture) AdminWallet() decimal.Decimal {
	var s model.SystemSettings
	f.Reload(&s, model.SettingsID)
	return s.AdminWalletBalance
}

func (f *Fixture) Count(m interface{}) int64 {
	f.T.Helper()
	var n int64
	require.NoError(f.T, f.DB.Model(m).Count(&n).Error)
	return n
}

// Snapshot 所有余额、金库、钱包和流水条数，用来断言失败操作没有任何副作用
type Snapshot struct {
	Accounts     map[string]string
	Vaults       map[string]string
	AdminWallet  string
	Transactions int64
	Outbox       int64
}

func (f *Fixture) Snapshot() Snapshot {
	f.T.Helper()
	s := Snapshot{Accounts: map[string]string{}, Vaults: map[string]string{}}

	var accounts []model.Account
	require.NoError(f.T, f.DB.Find(&accounts).Error)
	for _, a := range accounts {
		s.Accounts[a.ID] = a.Balance.String()
	}

	var banks []model.Bank
	require.NoError(f.T, f.DB.Find(&banks).Error)
	for _, b := range banks {
		s.Vaults[b.ID] = b.VaultBalance.String()
	}

	var settings []model.SystemSettings
	require.NoError(f.T, f.DB.Find(&settings).Error)
	for _, st := range settings {
		s.AdminWallet = st.AdminWalletBalance.String()
	}

	s.Transactions = f.Count(&model.Transaction{})
	s.Outbox = f.Count(&model.OutboxMessage{})
	return s
}

// LockRecorder 按发生顺序记录加锁的表：SELECT ... FOR UPDATE 和 UPDATE
// sqlite 会忽略 FOR UPDATE，但语句上的 Locking 子句仍然可见
type LockRecorder struct {
	mu     sync.Mutex
	tables []string
}

func (f *Fixture) RecordLocks() *LockRecorder {
	f.T.Helper()
	r := &LockRecorder{}
	record := func(db *gorm.DB) {
		if db.Statement == nil || db.Statement.Table == "" {
			return
		}
		r.mu.Lock()
		r.tables = append(r.tables, db.Statement.Table)
		r.mu.Unlock()
	}

	require.NoError(f.T, f.DB.Callback().Query().Before("gorm:query").Register("testutil:lock_query", func(db *gorm.DB) {
		if _, ok := db.Statement.Clauses[clause.Locking{}.Name()]; ok {
			record(db)
		}
	}))
	require.NoError(f.T, f.DB.Callback().Update().Before("gorm:update").Register("testutil:lock_update", record))
	return r
}

func (r *LockRecorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tables = nil
}

func (r *LockRecorder) Tables() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.tables...)
}

// First 表第一次被加锁的位置，没有时返回 -1
func (r *LockRecorder) First(table string) int {
	for i, t := range r.Tables() {
		if t == table {
			return i
		}
	}
	return -1
}
