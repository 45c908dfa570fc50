package service

import (
	"testing"

	"rispay/internal/auth"
	"rispay/internal/config"
	"rispay/internal/model"
	"rispay/internal/testutil"
)

func testConfig() *config.Config {
	return &config.Config{
		Kafka: config.KafkaConfig{
			Topic: config.KafkaTopicConfig{
				BalanceChanged:       "rispay.balance_changed",
				TransactionCompleted: "rispay.transaction_completed",
			},
		},
		Ledger: config.LedgerConfig{
			MaxTransferAmount: 1000000,
			MemoMaxLength:     200,
		},
	}
}

func identity(u *model.User) auth.Identity {
	return auth.Identity{UserID: u.ID, Username: u.Username, Role: u.Role}
}

// world 两个银行、两个用户的最小经济体
//
//	bankA: 手续费 2%，金库 0，alice 的主账户余额 1000
//	bankB: 手续费 0%，金库 0，bob 的主账户余额 1000
//	全局税率 1%，开启
type world struct {
	f        *testutil.Fixture
	admin    *model.User
	provider *model.User
	alice    *model.User
	bob      *model.User
	bankA    *model.Bank
	bankB    *model.Bank
	accA     *model.Account
	accB     *model.Account
	transfer *TransferService
}

const (
	alicePin      = "1234"
	adminPassword = "admin-secret"
)

func newWorld(t *testing.T) *world {
	f := testutil.NewFixture(t)
	w := &world{f: f}

	w.admin = f.User("root", model.RoleAdmin, adminPassword)
	w.provider = f.User("prov", model.RoleProvider, "")
	w.alice = f.User("alice", model.RoleUser, "")
	w.bob = f.User("bob", model.RoleUser, "")
	f.SetPin(w.alice.ID, alicePin)

	w.bankA = f.Bank("BANKA", w.provider.ID, "0", "2")
	w.bankB = f.Bank("BANKB", w.provider.ID, "0", "0")
	w.accA = f.Account(w.alice.ID, w.bankA.ID, "1000", true)
	w.accB = f.Account(w.bob.ID, w.bankB.ID, "1000", true)
	f.Settings(nil)

	w.transfer = NewTransferService(f.DB, testConfig(), auth.BcryptVerifier{})
	return w
}

func (w *world) sendReq(recipient, amount string) *SendRequest {
	return &SendRequest{
		SenderAccountID: w.accA.ID,
		Recipient:       recipient,
		Amount:          testutil.D(amount),
		Pin:             alicePin,
	}
}

func strPtr(s string) *string {
	return &s
}
