package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"rispay/internal/model"
	"rispay/internal/testutil"
	"rispay/pkg/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountService_SetPrimary(t *testing.T) {
	w := newWorld(t)
	svc := NewAccountService(w.f.DB)
	ctx := context.Background()

	second := w.f.Account(w.alice.ID, w.bankA.ID, "0", false)
	require.NoError(t, svc.SetPrimary(ctx, identity(w.alice), second.ID))

	var got model.Account
	w.f.Reload(&got, w.accA.ID)
	assert.False(t, got.IsPrimary)
	w.f.Reload(&got, second.ID)
	assert.True(t, got.IsPrimary)

	// 按用户名转账时落到新的主账户
	bobAcc := w.f.Account(w.bob.ID, w.bankA.ID, "0", false)
	require.NoError(t, svc.SetPrimary(ctx, identity(w.bob), bobAcc.ID))
	assert.ErrorIs(t, svc.SetPrimary(ctx, identity(w.alice), bobAcc.ID), ErrNotAccountOwner)
}

func TestAccountService_UpdateNickname(t *testing.T) {
	w := newWorld(t)
	svc := NewAccountService(w.f.DB)
	ctx := context.Background()

	name := "日常开销"
	require.NoError(t, svc.UpdateNickname(ctx, identity(w.alice), w.accA.ID, &name))
	var got model.Account
	w.f.Reload(&got, w.accA.ID)
	require.NotNil(t, got.Nickname)
	assert.Equal(t, name, *got.Nickname)

	long := strings.Repeat("x", 51)
	assert.ErrorIs(t, svc.UpdateNickname(ctx, identity(w.alice), w.accA.ID, &long), apperr.ErrValidation)
	assert.ErrorIs(t, svc.UpdateNickname(ctx, identity(w.bob), w.accA.ID, &name), ErrNotAccountOwner)

	empty := ""
	require.NoError(t, svc.UpdateNickname(ctx, identity(w.alice), w.accA.ID, &empty))
	w.f.Reload(&got, w.accA.ID)
	assert.Nil(t, got.Nickname)
}

func TestAccountService_SetPinEnablesSend(t *testing.T) {
	w := newWorld(t)
	svc := NewAccountService(w.f.DB)
	ctx := context.Background()

	req := w.sendReq("alice", "10")
	req.SenderAccountID = w.accB.ID
	req.Pin = "4321"
	_, err := w.transfer.Send(ctx, identity(w.bob), req)
	require.ErrorIs(t, err, ErrPinNotSet)

	assert.ErrorIs(t, svc.SetTransactionPin(ctx, identity(w.bob), &SetPinRequest{Pin: "43a1"}), apperr.ErrValidation)
	require.NoError(t, svc.SetTransactionPin(ctx, identity(w.bob), &SetPinRequest{Pin: "4321"}))

	_, err = w.transfer.Send(ctx, identity(w.bob), req)
	require.NoError(t, err)

	// 重新设置会覆盖旧 PIN
	require.NoError(t, svc.SetTransactionPin(ctx, identity(w.bob), &SetPinRequest{Pin: "0000"}))
	_, err = w.transfer.Send(ctx, identity(w.bob), req)
	assert.ErrorIs(t, err, ErrPinMismatch)
}

func TestAccountService_ListTransactions(t *testing.T) {
	w := newWorld(t)
	svc := NewAccountService(w.f.DB)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := w.transfer.Send(ctx, identity(w.alice), w.sendReq("bob", "1"))
		require.NoError(t, err)
	}

	page, err := svc.ListTransactions(ctx, identity(w.bob), 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	assert.Len(t, page.Items, 2)

	page, err = svc.ListTransactions(ctx, identity(w.bob), 2, 2)
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)

	carol := w.f.User("carol", model.RoleUser, "")
	page, err = svc.ListTransactions(ctx, identity(carol), 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(0), page.Total)
	assert.Empty(t, page.Items)

	accounts, err := svc.ListAccounts(ctx, identity(w.alice))
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, w.accA.ID, accounts[0].ID)
}

func insertTransaction(t *testing.T, w *world, id, from, to, amount string, at time.Time) {
	t.Helper()
	require.NoError(t, w.f.DB.Create(&model.Transaction{
		ID:                id,
		SenderAccountID:   from,
		ReceiverAccountID: to,
		Amount:            testutil.D(amount),
		Status:            model.TransactionStatusCompleted,
		CreatedAt:         at,
	}).Error)
}

func TestAccountService_Insights(t *testing.T) {
	w := newWorld(t)
	svc := NewAccountService(w.f.DB)
	svc.now = func() time.Time { return time.Date(2026, 3, 20, 12, 0, 0, 0, time.UTC) }
	savings := w.f.Account(w.alice.ID, w.bankB.ID, "0", true)

	day := func(d, h int, m time.Month) time.Time { return time.Date(2026, m, d, h, 0, 0, 0, time.UTC) }
	insertTransaction(t, w, "TXN-out", w.accA.ID, w.accB.ID, "100", day(19, 10, time.March))
	insertTransaction(t, w, "TXN-in", w.accB.ID, w.accA.ID, "40", day(19, 15, time.March))
	insertTransaction(t, w, "TXN-own", w.accA.ID, savings.ID, "500", day(10, 9, time.March))
	// 上个月但在 30 天之内：只进每日明细
	insertTransaction(t, w, "TXN-feb", w.accA.ID, w.accB.ID, "70", day(25, 9, time.February))
	// 30 天之外
	insertTransaction(t, w, "TXN-old", w.accA.ID, w.accB.ID, "999", day(10, 9, time.February))

	got, err := svc.Insights(context.Background(), identity(w.alice))
	require.NoError(t, err)

	// 自己账户之间的互转不计入本月收支
	assert.Equal(t, "100", got.TotalSent.String())
	assert.Equal(t, "40", got.TotalReceived.String())
	assert.Equal(t, "3.3333", got.DailyAverage.String())

	require.NotNil(t, got.LargestTransaction)
	assert.Equal(t, "TXN-own", got.LargestTransaction.ID)
	assert.Equal(t, "500", got.LargestTransaction.Amount.String())

	require.Len(t, got.Last30Days, 3)
	assert.Equal(t, "2026-02-25", got.Last30Days[0].Date)
	assert.Equal(t, "70", got.Last30Days[0].Sent.String())
	assert.True(t, got.Last30Days[0].Received.IsZero())
	assert.Equal(t, "2026-03-10", got.Last30Days[1].Date)
	assert.Equal(t, "500", got.Last30Days[1].Sent.String())
	assert.Equal(t, "500", got.Last30Days[1].Received.String())
	assert.Equal(t, "2026-03-19", got.Last30Days[2].Date)
	assert.Equal(t, "100", got.Last30Days[2].Sent.String())
	assert.Equal(t, "40", got.Last30Days[2].Received.String())
}

func TestAccountService_InsightsWithoutAccounts(t *testing.T) {
	w := newWorld(t)
	svc := NewAccountService(w.f.DB)
	carol := w.f.User("carol", model.RoleUser, "")

	got, err := svc.Insights(context.Background(), identity(carol))
	require.NoError(t, err)
	assert.True(t, got.TotalSent.IsZero())
	assert.True(t, got.TotalReceived.IsZero())
	assert.True(t, got.DailyAverage.IsZero())
	assert.Nil(t, got.LargestTransaction)
	assert.NotNil(t, got.Last30Days)
	assert.Empty(t, got.Last30Days)

	_, err = svc.Insights(context.Background(), identity(w.provider))
	assert.ErrorIs(t, err, apperr.ErrAuthorization)
}
