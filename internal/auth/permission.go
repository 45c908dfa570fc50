package auth

import (
	"rispay/internal/model"
	"rispay/pkg/apperr"
)

// Identity 已认证的调用方
type Identity struct {
	UserID   string
	Username string
	Role     string
}

// Capability 操作权限位
type Capability uint32

const (
	CapTransfer Capability = 1 << iota
	CapManageOwnAccounts
	CapVaultTransferOwnBank
	CapManageOwnBank
	CapVaultTransferAnyBank
	CapCreditDebit
	CapResetEconomy
	CapManageSettings
	CapCreateBank
	CapRunJobs
)

var roleCapabilities = map[string]Capability{
	model.RoleUser:     CapTransfer | CapManageOwnAccounts,
	model.RoleProvider: CapVaultTransferOwnBank | CapManageOwnBank,
	model.RoleAdmin: CapVaultTransferAnyBank | CapCreditDebit | CapResetEconomy |
		CapManageSettings | CapCreateBank | CapRunJobs,
}

// Capabilities 角色拥有的权限集合，未知角色没有任何权限
func Capabilities(role string) Capability {
	return roleCapabilities[role]
}

// Has 是否拥有全部给定权限
func (id Identity) Has(caps ...Capability) bool {
	granted := Capabilities(id.Role)
	for _, c := range caps {
		if granted&c != c {
			return false
		}
	}
	return true
}

// HasAny 是否拥有任一给定权限
func (id Identity) HasAny(caps ...Capability) bool {
	granted := Capabilities(id.Role)
	for _, c := range caps {
		if granted&c != 0 {
			return true
		}
	}
	return false
}

// Require 缺少任一权限时返回 AuthorizationError
func Require(id Identity, caps ...Capability) error {
	if id.UserID == "" {
		return apperr.Authentication("未登录")
	}
	if !id.Has(caps...) {
		return apperr.Authorization("无权执行该操作")
	}
	return nil
}

// RequireAny 至少拥有一个权限
func RequireAny(id Identity, caps ...Capability) error {
	if id.UserID == "" {
		return apperr.Authentication("未登录")
	}
	if !id.HasAny(caps...) {
		return apperr.Authorization("无权执行该操作")
	}
	return nil
}
