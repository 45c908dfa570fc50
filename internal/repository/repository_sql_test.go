package repository

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func setupMySQLMock(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	return db, mock
}

// 管理员钱包必须是 SQL 层面的原子累加，而不是应用层读改写
func TestAddAdminWallet_IssuesAtomicIncrement(t *testing.T) {
	db, mock := setupMySQLMock(t)
	repo := NewSettingsRepository(db)

	mock.ExpectQuery("SELECT \\* FROM `system_settings` WHERE id = \\?").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("default"))
	mock.ExpectExec("UPDATE `system_settings` SET `admin_wallet_balance`=admin_wallet_balance \\+ \\?.*WHERE id = \\?").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.AddAdminWallet(context.Background(), nil, decimal.NewFromInt(3))
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// 余额检查与扣减在同一条 UPDATE 中完成
func TestDeduct_ConditionalUpdate(t *testing.T) {
	db, mock := setupMySQLMock(t)
	repo := NewAccountRepository(db)

	mock.ExpectExec("UPDATE `account` SET .*`balance`=balance \\+ \\?.*WHERE id = \\? AND balance \\+ \\? >= 0").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT \\* FROM `account` WHERE id = \\?").
		WillReturnRows(sqlmock.NewRows([]string{"id", "balance"}).AddRow("ACC1", "5"))

	err := repo.Deduct(context.Background(), nil, "ACC1", decimal.NewFromInt(10))
	assert.ErrorIs(t, err, ErrBalanceNotEnough)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeductVault_ConditionalUpdate(t *testing.T) {
	db, mock := setupMySQLMock(t)
	repo := NewBankRepository(db)

	mock.ExpectExec("UPDATE `bank` SET `vault_balance`=vault_balance - \\?.*WHERE id = \\? AND vault_balance >= \\?").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.DeductVault(context.Background(), nil, "BNK1", decimal.NewFromInt(10))
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
