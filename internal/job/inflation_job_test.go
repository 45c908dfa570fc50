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

func enableInflation(rate string) func(s *model.SystemSettings) {
	return func(s *model.SystemSettings) {
		s.InflationEnabled = true
		s.InflationRate = testutil.D(rate)
	}
}

func TestInflationJob_ShrinksEveryVault(t *testing.T) {
	f, provider := newFixture(t)
	b1 := f.Bank("INFA", provider.ID, "1000", "0")
	b2 := f.Bank("INFB", provider.ID, "333.3333", "0")
	b3 := f.Bank("INFC", provider.ID, "0", "0")
	f.Settings(enableInflation("5"))

	job := NewInflationJob(f.DB, testConfig(), lock.NewLocalGuard())
	entry, err := job.Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, entry)

	assert.Equal(t, "950", f.Vault(b1.ID).String())
	// 333.3333 * 5% = 16.666665 -> 16.6667
	assert.Equal(t, "316.6666", f.Vault(b2.ID).String())
	assert.True(t, f.Vault(b3.ID).IsZero())

	assert.Equal(t, "5", entry.Rate.String())
	changes, err := entry.Changes()
	require.NoError(t, err)
	require.Len(t, changes, 3)
	assert.Equal(t, "1000", changes[b1.ID].Before.String())
	assert.Equal(t, "950", changes[b1.ID].After.String())

	assert.Equal(t, int64(1), f.Count(&model.InflationLog{}))
	// 账户余额和管理员钱包不受通胀影响
	assert.True(t, f.AdminWallet().IsZero())
}

func TestInflationJob_NoopWhenDisabled(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(s *model.SystemSettings)
	}{
		{"关闭", func(s *model.SystemSettings) { s.InflationRate = testutil.D("5") }},
		{"通胀率为0", enableInflation("0")},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f, provider := newFixture(t)
			bank := f.Bank("NOOP", provider.ID, "1000", "0")
			f.Settings(tc.mutate)

			job := NewInflationJob(f.DB, testConfig(), lock.NewLocalGuard())
			entry, err := job.Run(context.Background())
			require.NoError(t, err)
			assert.Nil(t, entry)
			assert.Equal(t, "1000", f.Vault(bank.ID).String())
			assert.Equal(t, int64(0), f.Count(&model.InflationLog{}))
		})
	}
}

func TestInflationJob_OverlapGuard(t *testing.T) {
	f, provider := newFixture(t)
	bank := f.Bank("GUARD", provider.ID, "1000", "0")
	f.Settings(enableInflation("10"))

	guard := lock.NewLocalGuard()
	release, ok, err := guard.TryAcquire(context.Background(), InflationJobName)
	require.NoError(t, err)
	require.True(t, ok)
	defer release()

	job := NewInflationJob(f.DB, testConfig(), guard)
	entry, err := job.Run(context.Background())
	assert.ErrorIs(t, err, ErrJobAlreadyRunning)
	assert.Nil(t, entry)
	assert.Equal(t, "1000", f.Vault(bank.ID).String())
	assert.Equal(t, int64(0), f.Count(&model.InflationLog{}))
}

func TestInflationJob_AppliesOncePerMonth(t *testing.T) {
	f, provider := newFixture(t)
	bank := f.Bank("MONTH", provider.ID, "1000", "0")
	f.Settings(enableInflation("5"))

	job := NewInflationJob(f.DB, testConfig(), lock.NewLocalGuard())
	job.now = fixedClock(time.Date(2026, 3, 1, 2, 0, 0, 0, time.UTC))

	entry, err := job.Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "950", f.Vault(bank.ID).String())

	entry, err = job.Run(context.Background())
	assert.ErrorIs(t, err, ErrPeriodAlreadyDone)
	assert.Nil(t, entry)
	assert.Equal(t, "950", f.Vault(bank.ID).String())
	assert.Equal(t, int64(1), f.Count(&model.InflationLog{}))

	job.now = fixedClock(time.Date(2026, 4, 1, 2, 0, 0, 0, time.UTC))
	entry, err = job.Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "902.5", f.Vault(bank.ID).String())
	assert.Equal(t, int64(2), f.Count(&model.InflationLog{}))
}

func TestInflationJob_DisabledRunDoesNotUseUpMonth(t *testing.T) {
	f, provider := newFixture(t)
	bank := f.Bank("LATER", provider.ID, "1000", "0")
	f.Settings(nil)

	job := NewInflationJob(f.DB, testConfig(), lock.NewLocalGuard())
	job.now = fixedClock(time.Date(2026, 3, 1, 2, 0, 0, 0, time.UTC))

	entry, err := job.Run(context.Background())
	require.NoError(t, err)
	assert.Nil(t, entry)
	assert.Equal(t, int64(0), f.Count(&model.JobRun{}))

	// 同月内开启后仍然可以执行
	f.Settings(enableInflation("10"))
	entry, err = job.Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "900", f.Vault(bank.ID).String())
}
