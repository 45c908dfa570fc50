package service

import (
	"github.com/shopspring/decimal"
)

// MoneyScale 金额字段的小数位数，与 decimal(20,4) 一致
const MoneyScale = 4

var hundred = decimal.NewFromInt(100)

// TransferCost 一笔转账的费用构成
//
// 手续费和税费都在转账金额之外另行扣除，收款方收到的是完整的 amount。
type TransferCost struct {
	Amount           decimal.Decimal `json:"amount"`
	BankFee          decimal.Decimal `json:"bank_fee"`
	Tax              decimal.Decimal `json:"tax"`
	TotalDeducted    decimal.Decimal `json:"total_deducted"`
	ReceiverReceives decimal.Decimal `json:"receiver_receives"`
}

// ComputeTransferCost 计算转账费用，纯函数
//
// 预览和实际转账必须调用同一个函数，保证报价与实扣一致。
// 手续费和税费按存储精度四舍五入，保证各个余额的增减严格守恒。
func ComputeTransferCost(amount, bankFeePercentage, globalTaxPercentage decimal.Decimal, taxEnabled bool) TransferCost {
	bankFee := Percent(amount, bankFeePercentage)

	tax := decimal.Zero
	if taxEnabled {
		tax = Percent(amount, globalTaxPercentage)
	}

	return TransferCost{
		Amount:           amount,
		BankFee:          bankFee,
		Tax:              tax,
		TotalDeducted:    amount.Add(bankFee).Add(tax),
		ReceiverReceives: amount,
	}
}

// Percent 返回 value * pct / 100，保留 MoneyScale 位小数
func Percent(value, pct decimal.Decimal) decimal.Decimal {
	return value.Mul(pct).Div(hundred).Round(MoneyScale)
}
