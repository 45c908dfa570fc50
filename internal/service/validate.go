package service

import (
	"errors"
	"unicode/utf8"

	"rispay/pkg/apperr"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate = validator.New()

// validateStruct 按 validate 标签校验请求，只报告第一个不合法的字段
func validateStruct(req interface{}) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return apperr.Validation("参数 %s 不合法 (%s)", fe.Field(), fe.Tag())
	}
	return apperr.Validation("参数不合法")
}

// checkPositiveAmount 金额必须为正，且不超过存储精度
func checkPositiveAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	return checkPrecision(amount)
}

func checkPrecision(amount decimal.Decimal) error {
	if !amount.Equal(amount.Round(MoneyScale)) {
		return ErrAmountPrecision
	}
	return nil
}

// checkPercentage 百分比必须在 [0, 100] 之间
func checkPercentage(name string, pct decimal.Decimal) error {
	if pct.IsNegative() || pct.GreaterThan(hundred) {
		return apperr.Validation("%s 必须在 0 到 100 之间", name)
	}
	return nil
}

// normalizeMemo 空备注按未填写处理
func normalizeMemo(memo *string, maxLen int) (*string, error) {
	if memo == nil || *memo == "" {
		return nil, nil
	}
	if maxLen > 0 && utf8.RuneCountInString(*memo) > maxLen {
		return nil, apperr.Validation("备注不能超过 %d 个字符", maxLen)
	}
	m := *memo
	return &m, nil
}
