package service

import (
	"context"
	"testing"

	"rispay/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 所有会写金库的路径都必须先锁银行再锁账户，否则和利息任务并发时会死锁
func assertBankLockedFirst(t *testing.T, locks *testutil.LockRecorder) {
	t.Helper()
	tables := locks.Tables()
	require.NotEmpty(t, tables)
	assert.Equal(t, "bank", tables[0], "locks: %v", tables)
	require.GreaterOrEqual(t, locks.First("account"), 0, "locks: %v", tables)
	assert.Less(t, locks.First("bank"), locks.First("account"), "locks: %v", tables)
}

func TestLockOrder_Send(t *testing.T) {
	w := newWorld(t)
	locks := w.f.RecordLocks()

	_, err := w.transfer.Send(context.Background(), identity(w.alice), w.sendReq("bob", "100"))
	require.NoError(t, err)
	assertBankLockedFirst(t, locks)
}

func TestLockOrder_SendWithoutBankFee(t *testing.T) {
	w := newWorld(t)
	require.NoError(t, w.f.DB.Model(w.bankA).Update("base_fee_percentage", testutil.D("0")).Error)
	locks := w.f.RecordLocks()

	_, err := w.transfer.Send(context.Background(), identity(w.alice), w.sendReq("bob", "100"))
	require.NoError(t, err)
	assertBankLockedFirst(t, locks)
}

func TestLockOrder_VaultTransfer(t *testing.T) {
	w, svc := newVaultWorld(t)
	locks := w.f.RecordLocks()

	_, err := svc.Transfer(context.Background(), identity(w.provider), &VaultTransferRequest{
		BankID:    w.bankA.ID,
		AccountID: w.accA.ID,
		Amount:    testutil.D("100"),
	})
	require.NoError(t, err)
	assertBankLockedFirst(t, locks)
}

func TestLockOrder_ResetEconomy(t *testing.T) {
	w, svc := newAdminWorld(t)
	locks := w.f.RecordLocks()

	_, err := svc.ResetEconomy(context.Background(), identity(w.admin), adminPassword)
	require.NoError(t, err)
	assertBankLockedFirst(t, locks)
}
