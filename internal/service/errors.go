package service

import (
	"errors"

	"rispay/internal/repository"
	"rispay/pkg/apperr"
)

// 引擎对外返回的错误，调用方可以用 errors.Is 判断
var (
	ErrInvalidAmount       = apperr.Validation("金额必须大于0")
	ErrAmountPrecision     = apperr.Validation("金额最多保留4位小数")
	ErrAccountNotFound     = apperr.NotFound("账户不存在")
	ErrNotAccountOwner     = apperr.Authorization("无权操作该账户")
	ErrAccountNotActivated = apperr.Conflict("账户未激活")
	ErrPinNotSet           = apperr.Authentication("未设置交易 PIN")
	ErrPinMismatch         = apperr.Authentication("交易 PIN 错误")
	ErrBankMaintenance     = apperr.Conflict("银行维护中，暂停转账")
	ErrRecipientNotFound   = apperr.NotFound("收款账户不存在或未激活")
	ErrBalanceNotEnough    = apperr.InsufficientFunds("余额不足")
	ErrBankNotFound        = apperr.NotFound("银行不存在")
	ErrNotBankOwner        = apperr.Authorization("无权操作该银行")
	ErrAccountNotInBank    = apperr.Validation("账户不属于该银行")
	ErrVaultNotEnough      = apperr.InsufficientFunds("金库余额不足")
	ErrUserNotFound        = apperr.NotFound("用户不存在")
	ErrPasswordMismatch    = apperr.Authentication("密码错误")
	ErrInvalidProvider     = apperr.Validation("指定的用户不是银行运营方")
	ErrBankCodeExists      = apperr.Conflict("银行代码已存在")
)

// translate 把仓储层错误转换成引擎错误，其它错误按存储错误处理
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrAccountNotFound):
		return ErrAccountNotFound
	case errors.Is(err, repository.ErrBalanceNotEnough):
		return ErrBalanceNotEnough
	case errors.Is(err, repository.ErrBankNotFound):
		return ErrBankNotFound
	case errors.Is(err, repository.ErrVaultNotEnough):
		return ErrVaultNotEnough
	case errors.Is(err, repository.ErrUserNotFound):
		return ErrUserNotFound
	case errors.Is(err, repository.ErrBankCodeDuplicate):
		return ErrBankCodeExists
	}
	return apperr.Wrap(err)
}
