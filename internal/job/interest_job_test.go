package job

import (
	"context"
	"testing"
	"time"

	"rispay/internal/infrastructure/lock"
	"rispay/internal/model"
	"rispay/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInterestJob_PaysActivatedPositiveAccounts(t *testing.T) {
	f, provider := newFixture(t)
	user := f.User("alice", model.RoleUser, "")

	bank := f.Bank("INTBANK", provider.ID, "1000", "0")
	f.SetInterest(bank.ID, "10")
	a1 := f.Account(user.ID, bank.ID, "500", true)
	a2 := f.Account(user.ID, bank.ID, "600", false)
	empty := f.Account(user.ID, bank.ID, "0", false)
	inactive := f.InactiveAccount(user.ID, bank.ID, "1000")

	job := NewInterestJob(f.DB, testConfig(), lock.NewLocalGuard())
	summary, err := job.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "550", f.AccountBalance(a1.ID).String())
	assert.Equal(t, "660", f.AccountBalance(a2.ID).String())
	assert.True(t, f.AccountBalance(empty.ID).IsZero())
	assert.Equal(t, "1000", f.AccountBalance(inactive.ID).String())
	assert.Equal(t, "890", f.Vault(bank.ID).String())

	assert.Equal(t, 1, summary.BanksPaid)
	assert.Equal(t, 2, summary.AccountsCredited)
	assert.Equal(t, "110", summary.TotalDistributed.String())
	require.Len(t, summary.Banks, 1)
	assert.Equal(t, PayoutPaid, summary.Banks[0].Status)
	assert.Equal(t, "INTBANK", summary.Banks[0].BankCode)

	// 每个入账账户一条余额变化通知
	assert.Equal(t, int64(2), f.Count(&model.OutboxMessage{}))
	// 利息不产生流水
	assert.Equal(t, int64(0), f.Count(&model.Transaction{}))
}

func TestInterestJob_SkipsBankWhenVaultShort(t *testing.T) {
	f, provider := newFixture(t)
	user := f.User("alice", model.RoleUser, "")

	poor := f.Bank("POOR", provider.ID, "99", "0")
	f.SetInterest(poor.ID, "10")
	f.Account(user.ID, poor.ID, "500", true)
	f.Account(user.ID, poor.ID, "600", false)

	rich := f.Bank("RICH", provider.ID, "100", "0")
	f.SetInterest(rich.ID, "1")
	paid := f.Account(user.ID, rich.ID, "1000", true)

	before := f.Snapshot()

	job := NewInterestJob(f.DB, testConfig(), lock.NewLocalGuard())
	summary, err := job.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.BanksSkipped)
	assert.Equal(t, 1, summary.BanksPaid)

	after := f.Snapshot()
	// 金库不足的银行没有任何修改
	assert.Equal(t, before.Vaults[poor.ID], after.Vaults[poor.ID])
	for id, bal := range before.Accounts {
		if id == paid.ID {
			continue
		}
		assert.Equal(t, bal, after.Accounts[id])
	}

	// 另一家银行不受影响
	assert.Equal(t, "1010", f.AccountBalance(paid.ID).String())
	assert.Equal(t, "90", f.Vault(rich.ID).String())

	var skipped *BankPayout
	for _, b := range summary.Banks {
		if b.BankID == poor.ID {
			skipped = b
		}
	}
	require.NotNil(t, skipped)
	assert.Equal(t, PayoutSkipped, skipped.Status)
	assert.Equal(t, "110", skipped.Total.String())
	assert.Equal(t, "99", skipped.Vault.String())
}

func TestInterestJob_IgnoresBanksWithoutPositiveRate(t *testing.T) {
	f, provider := newFixture(t)
	user := f.User("alice", model.RoleUser, "")

	noRate := f.Bank("NORATE", provider.ID, "1000", "0")
	zero := f.Bank("ZERORATE", provider.ID, "1000", "0")
	f.SetInterest(zero.ID, "0")
	a1 := f.Account(user.ID, noRate.ID, "500", true)
	a2 := f.Account(user.ID, zero.ID, "500", true)

	job := NewInterestJob(f.DB, testConfig(), lock.NewLocalGuard())
	summary, err := job.Run(context.Background())
	require.NoError(t, err)

	assert.Empty(t, summary.Banks)
	assert.True(t, summary.TotalDistributed.IsZero())
	assert.Equal(t, "500", f.AccountBalance(a1.ID).String())
	assert.Equal(t, "500", f.AccountBalance(a2.ID).String())
	assert.Equal(t, "1000", f.Vault(noRate.ID).String())
	assert.Equal(t, "1000", f.Vault(zero.ID).String())
}

func TestInterestJob_ConservesMoney(t *testing.T) {
	f, provider := newFixture(t)
	user := f.User("alice", model.RoleUser, "")

	bank := f.Bank("CONSV", provider.ID, "50", "0")
	f.SetInterest(bank.ID, "3.5")
	accounts := []*model.Account{
		f.Account(user.ID, bank.ID, "123.4567", true),
		f.Account(user.ID, bank.ID, "0.0001", false),
		f.Account(user.ID, bank.ID, "999.99", false),
	}

	total := func() string {
		sum := f.Vault(bank.ID)
		for _, a := range accounts {
			sum = sum.Add(f.AccountBalance(a.ID))
		}
		return sum.Round(4).String()
	}
	before := total()

	job := NewInterestJob(f.DB, testConfig(), lock.NewLocalGuard())
	summary, err := job.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, summary.BanksPaid)

	assert.Equal(t, before, total())
	// 123.4567 * 3.5% = 4.32098... -> 4.321
	assert.Equal(t, "127.7777", f.AccountBalance(accounts[0].ID).Round(4).String())
}

func TestInterestJob_OverlapGuard(t *testing.T) {
	f, provider := newFixture(t)
	user := f.User("alice", model.RoleUser, "")
	bank := f.Bank("GUARD", provider.ID, "1000", "0")
	f.SetInterest(bank.ID, "10")
	acc := f.Account(user.ID, bank.ID, "500", true)

	guard := lock.NewLocalGuard()
	release, ok, err := guard.TryAcquire(context.Background(), InterestJobName)
	require.NoError(t, err)
	require.True(t, ok)

	job := NewInterestJob(f.DB, testConfig(), guard)
	_, err = job.Run(context.Background())
	assert.ErrorIs(t, err, ErrJobAlreadyRunning)
	assert.Equal(t, "500", f.AccountBalance(acc.ID).String())

	release()
	_, err = job.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, testutil.D("550").String(), f.AccountBalance(acc.ID).String())
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestInterestJob_PaysOncePerMonth(t *testing.T) {
	f, provider := newFixture(t)
	user := f.User("alice", model.RoleUser, "")
	bank := f.Bank("ONCE", provider.ID, "1000", "0")
	f.SetInterest(bank.ID, "10")
	acc := f.Account(user.ID, bank.ID, "500", true)

	job := NewInterestJob(f.DB, testConfig(), lock.NewLocalGuard())
	job.now = fixedClock(time.Date(2026, 3, 1, 1, 0, 0, 0, time.UTC))

	first, err := job.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2026-03", first.Period)
	assert.Equal(t, 1, first.BanksPaid)

	// 同一个月再次执行不会重复发放
	second, err := job.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, second.BanksPaid)
	assert.Equal(t, 1, second.BanksAlreadyPaid)
	assert.True(t, second.TotalDistributed.IsZero())
	require.Len(t, second.Banks, 1)
	assert.Equal(t, PayoutAlready, second.Banks[0].Status)

	assert.Equal(t, "550", f.AccountBalance(acc.ID).String())
	assert.Equal(t, "890", f.Vault(bank.ID).String())
	assert.Equal(t, int64(1), f.Count(&model.OutboxMessage{}))

	// 下个月照常发放
	job.now = fixedClock(time.Date(2026, 4, 1, 1, 0, 0, 0, time.UTC))
	third, err := job.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, third.BanksPaid)
	assert.Equal(t, "605", f.AccountBalance(acc.ID).String())
	assert.Equal(t, "835", f.Vault(bank.ID).String())
	assert.Equal(t, int64(2), f.Count(&model.JobRun{}))
}

func TestInterestJob_VaultShortCanRetryInSameMonth(t *testing.T) {
	f, provider := newFixture(t)
	user := f.User("alice", model.RoleUser, "")
	bank := f.Bank("RETRY", provider.ID, "40", "0")
	f.SetInterest(bank.ID, "10")
	acc := f.Account(user.ID, bank.ID, "500", true)

	job := NewInterestJob(f.DB, testConfig(), lock.NewLocalGuard())
	job.now = fixedClock(time.Date(2026, 3, 1, 1, 0, 0, 0, time.UTC))

	summary, err := job.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.BanksSkipped)
	assert.Equal(t, int64(0), f.Count(&model.JobRun{}))

	require.NoError(t, f.DB.Model(&model.Bank{}).Where("id = ?", bank.ID).
		Update("vault_balance", testutil.D("1000")).Error)

	summary, err = job.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.BanksPaid)
	assert.Equal(t, "550", f.AccountBalance(acc.ID).String())
	assert.Equal(t, "950", f.Vault(bank.ID).String())
}

func TestInterestJob_LocksBankBeforeAccounts(t *testing.T) {
	f, provider := newFixture(t)
	user := f.User("alice", model.RoleUser, "")
	bank := f.Bank("ORDER", provider.ID, "1000", "0")
	f.SetInterest(bank.ID, "10")
	f.Account(user.ID, bank.ID, "500", true)
	f.Account(user.ID, bank.ID, "600", false)

	locks := f.RecordLocks()
	job := NewInterestJob(f.DB, testConfig(), lock.NewLocalGuard())
	_, err := job.Run(context.Background())
	require.NoError(t, err)

	tables := locks.Tables()
	require.NotEmpty(t, tables)
	assert.Equal(t, "bank", tables[0], tables)
	require.GreaterOrEqual(t, locks.First("account"), 0, tables)
	assert.Less(t, locks.First("bank"), locks.First("account"), tables)
}

func TestRunResult(t *testing.T) {
	assert.Equal(t, "success", runResult(&InterestRunSummary{BanksPaid: 2, BanksSkipped: 1}))
	assert.Equal(t, "success", runResult(&InterestRunSummary{BanksAlreadyPaid: 3}))
	assert.Equal(t, "partial", runResult(&InterestRunSummary{BanksPaid: 2, BanksFailed: 1}))
	assert.Equal(t, "partial", runResult(&InterestRunSummary{BanksFailed: 1}))
}
