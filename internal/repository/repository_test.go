package repository

import (
	"context"
	"sync"
	"testing"

	"rispay/internal/model"
	"rispay/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestAccountAdjust_RejectsNegativeResult(t *testing.T) {
	f := testutil.NewFixture(t)
	u := f.User("alice", model.RoleUser, "")
	p := f.User("prov", model.RoleProvider, "")
	b := f.Bank("AAA", p.ID, "0", "0")
	a := f.Account(u.ID, b.ID, "100", true)

	repo := NewAccountRepository(f.DB)
	ctx := context.Background()

	err := repo.Adjust(ctx, nil, a.ID, testutil.D("-100.01"))
	assert.ErrorIs(t, err, ErrBalanceNotEnough)
	assert.True(t, f.AccountBalance(a.ID).Equal(testutil.D("100")))

	require.NoError(t, repo.Deduct(ctx, nil, a.ID, testutil.D("100")))
	assert.True(t, f.AccountBalance(a.ID).IsZero())

	assert.ErrorIs(t, repo.Adjust(ctx, nil, "ACC-missing", testutil.D("1")), ErrAccountNotFound)
	assert.ErrorIs(t, repo.Increase(ctx, nil, "ACC-missing", testutil.D("1")), ErrAccountNotFound)
}

func TestAccountDeduct_ConcurrentNeverOverdraws(t *testing.T) {
	f := testutil.NewFixture(t)
	u := f.User("alice", model.RoleUser, "")
	p := f.User("prov", model.RoleProvider, "")
	b := f.Bank("AAA", p.ID, "0", "0")
	a := f.Account(u.ID, b.ID, "50", true)

	repo := NewAccountRepository(f.DB)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := f.DB.Transaction(func(tx *gorm.DB) error {
				return repo.Deduct(context.Background(), tx, a.ID, testutil.D("10"))
			})
			if err == nil {
				mu.Lock()
				success++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, success)
	assert.True(t, f.AccountBalance(a.ID).IsZero())
}

func TestAccountLockInOrder(t *testing.T) {
	f := testutil.NewFixture(t)
	u := f.User("alice", model.RoleUser, "")
	p := f.User("prov", model.RoleProvider, "")
	b := f.Bank("AAA", p.ID, "0", "0")
	a1 := f.Account(u.ID, b.ID, "1", true)
	a2 := f.Account(u.ID, b.ID, "2", false)

	repo := NewAccountRepository(f.DB)
	err := f.DB.Transaction(func(tx *gorm.DB) error {
		locked, err := repo.LockInOrder(context.Background(), tx, a2.ID, a1.ID)
		require.NoError(t, err)
		assert.Len(t, locked, 2)

		_, err = repo.LockInOrder(context.Background(), tx, a1.ID, "ACC-missing")
		assert.ErrorIs(t, err, ErrAccountNotFound)
		return nil
	})
	require.NoError(t, err)
}

func TestGetPrimaryActivatedByUsername(t *testing.T) {
	f := testutil.NewFixture(t)
	bob := f.User("bob", model.RoleUser, "")
	carol := f.User("carol", model.RoleUser, "")
	p := f.User("prov", model.RoleProvider, "")
	b := f.Bank("AAA", p.ID, "0", "0")

	f.Account(bob.ID, b.ID, "0", false)
	primary := f.Account(bob.ID, b.ID, "0", true)
	inactive := f.InactiveAccount(carol.ID, b.ID, "0")
	require.NoError(t, f.DB.Model(inactive).Update("is_primary", true).Error)

	repo := NewAccountRepository(f.DB)
	ctx := context.Background()

	got, err := repo.GetPrimaryActivatedByUsername(ctx, nil, "bob")
	require.NoError(t, err)
	assert.Equal(t, primary.ID, got.ID)

	_, err = repo.GetPrimaryActivatedByUsername(ctx, nil, "carol")
	assert.ErrorIs(t, err, ErrAccountNotFound)

	_, err = repo.GetPrimaryActivatedByUsername(ctx, nil, "nobody")
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestAccountSetPrimary_ClearsSiblingsOnly(t *testing.T) {
	f := testutil.NewFixture(t)
	u := f.User("alice", model.RoleUser, "")
	p := f.User("prov", model.RoleProvider, "")
	b1 := f.Bank("AAA", p.ID, "0", "0")
	b2 := f.Bank("BBB", p.ID, "0", "0")
	old := f.Account(u.ID, b1.ID, "0", true)
	next := f.Account(u.ID, b1.ID, "0", false)
	other := f.Account(u.ID, b2.ID, "0", true)

	repo := NewAccountRepository(f.DB)
	require.NoError(t, repo.SetPrimary(context.Background(), nil, next))

	var got model.Account
	f.Reload(&got, old.ID)
	assert.False(t, got.IsPrimary)
	f.Reload(&got, next.ID)
	assert.True(t, got.IsPrimary)
	f.Reload(&got, other.ID)
	assert.True(t, got.IsPrimary)
}

func TestBankDeductVault(t *testing.T) {
	f := testutil.NewFixture(t)
	p := f.User("prov", model.RoleProvider, "")
	b := f.Bank("AAA", p.ID, "10", "0")

	repo := NewBankRepository(f.DB)
	ctx := context.Background()

	assert.ErrorIs(t, repo.DeductVault(ctx, nil, b.ID, testutil.D("10.5")), ErrVaultNotEnough)
	require.NoError(t, repo.DeductVault(ctx, nil, b.ID, testutil.D("10")))
	assert.True(t, f.Vault(b.ID).IsZero())
	assert.ErrorIs(t, repo.DeductVault(ctx, nil, "BNK-missing", testutil.D("1")), ErrBankNotFound)

	require.NoError(t, repo.IncreaseVault(ctx, nil, b.ID, testutil.D("2.5")))
	assert.True(t, f.Vault(b.ID).Equal(testutil.D("2.5")))
}

func TestSettingsGetOrCreate_Defaults(t *testing.T) {
	f := testutil.NewFixture(t)
	repo := NewSettingsRepository(f.DB)
	ctx := context.Background()

	s, err := repo.GetOrCreate(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, model.SettingsID, s.ID)
	assert.True(t, s.MaxBankFeeCap.Equal(testutil.D("5")))
	assert.True(t, s.GlobalTaxPercentage.Equal(testutil.D("1")))
	assert.True(t, s.TaxEnabled)
	assert.False(t, s.InflationEnabled)
	assert.True(t, s.VaultTransferFee.Equal(testutil.D("0.5")))

	_, err = repo.GetOrCreate(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), f.Count(&model.SystemSettings{}))
}

func TestSettingsAddAdminWallet_ConcurrentIncrements(t *testing.T) {
	f := testutil.NewFixture(t)
	repo := NewSettingsRepository(f.DB)

	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, repo.AddAdminWallet(context.Background(), nil, testutil.D("1")))
		}()
	}
	wg.Wait()

	assert.True(t, f.AdminWallet().Equal(testutil.D("25")))
}

func TestSettingsUpdate_BumpsVersion(t *testing.T) {
	f := testutil.NewFixture(t)
	repo := NewSettingsRepository(f.DB)
	ctx := context.Background()

	before, err := repo.GetOrCreate(ctx, nil)
	require.NoError(t, err)

	after, err := repo.Update(ctx, nil, map[string]interface{}{"inflation_enabled": true})
	require.NoError(t, err)
	assert.True(t, after.InflationEnabled)
	assert.Equal(t, before.Version+1, after.Version)
}

func TestJobRunClaim_OncePerPeriodAndScope(t *testing.T) {
	f := testutil.NewFixture(t)
	repo := NewJobRunRepository(f.DB)
	ctx := context.Background()

	ok, err := repo.Claim(ctx, nil, "interest", "2026-03", "BANK-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Claim(ctx, nil, "interest", "2026-03", "BANK-1")
	require.NoError(t, err)
	assert.False(t, ok)

	// 其它银行、其它周期、其它任务互不影响
	for _, k := range [][3]string{
		{"interest", "2026-03", "BANK-2"},
		{"interest", "2026-04", "BANK-1"},
		{"inflation", "2026-03", "BANK-1"},
	} {
		ok, err = repo.Claim(ctx, nil, k[0], k[1], k[2])
		require.NoError(t, err)
		assert.True(t, ok, k)
	}

	// 事务回滚时标记一并撤销
	err = f.DB.Transaction(func(tx *gorm.DB) error {
		ok, err := repo.Claim(ctx, tx, "inflation", "2026-05", model.JobScopeAll)
		require.NoError(t, err)
		require.True(t, ok)
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)
	ok, err = repo.Claim(ctx, nil, "inflation", "2026-05", model.JobScopeAll)
	require.NoError(t, err)
	assert.True(t, ok)

	runs, err := repo.ListByPeriod(ctx, "interest", "2026-03")
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}
