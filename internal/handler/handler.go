package handler

import (
	"context"
	"errors"
	"strconv"

	"rispay/internal/auth"
	"rispay/internal/config"
	"rispay/internal/job"
	"rispay/internal/model"
	"rispay/internal/service"
	"rispay/pkg/apperr"
	"rispay/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// InterestRunner 手动触发利息发放
type InterestRunner interface {
	Run(ctx context.Context) (*job.InterestRunSummary, error)
}

// InflationRunner 手动触发通胀
type InflationRunner interface {
	Run(ctx context.Context) (*model.InflationLog, error)
}

// Handler 统一处理器，只做参数绑定和错误映射，业务规则都在 service 层
type Handler struct {
	transferService *service.TransferService
	vaultService    *service.VaultService
	adminService    *service.AdminService
	bankService     *service.BankService
	accountService  *service.AccountService
	interestJob     InterestRunner
	inflationJob    InflationRunner
}

func NewHandler(db *gorm.DB, cfg *config.Config, interest InterestRunner, inflation InflationRunner) *Handler {
	verifier := auth.BcryptVerifier{}
	return &Handler{
		transferService: service.NewTransferService(db, cfg, verifier),
		vaultService:    service.NewVaultService(db, cfg),
		adminService:    service.NewAdminService(db, cfg, verifier),
		bankService:     service.NewBankService(db),
		accountService:  service.NewAccountService(db),
		interestJob:     interest,
		inflationJob:    inflation,
	}
}

func bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return false
	}
	return true
}

// ============================================================
// 转账
// ============================================================

// PreviewTransfer 转账预览，不修改任何数据
// POST /api/v1/transactions/preview
func (h *Handler) PreviewTransfer(c *gin.Context) {
	var req service.PreviewRequest
	if !bind(c, &req) {
		return
	}

	result, err := h.transferService.Preview(c.Request.Context(), identityFrom(c), &req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, result)
}

// SendTransfer 转账
// POST /api/v1/transactions/send
func (h *Handler) SendTransfer(c *gin.Context) {
	var req service.SendRequest
	if !bind(c, &req) {
		return
	}

	result, err := h.transferService.Send(c.Request.Context(), identityFrom(c), &req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, result)
}

// ListTransactions 当前用户的交易记录
// GET /api/v1/transactions?page=1&page_size=20
func (h *Handler) ListTransactions(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	result, err := h.accountService.ListTransactions(c.Request.Context(), identityFrom(c), page, pageSize)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, result)
}

// Insights 本月收支与最近 30 天的每日流水
// GET /api/v1/transactions/insights
func (h *Handler) Insights(c *gin.Context) {
	result, err := h.accountService.Insights(c.Request.Context(), identityFrom(c))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, result)
}

// ============================================================
// 账户
// ============================================================

// ListAccounts GET /api/v1/accounts
func (h *Handler) ListAccounts(c *gin.Context) {
	accounts, err := h.accountService.ListAccounts(c.Request.Context(), identityFrom(c))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, accounts)
}

// SetPrimary POST /api/v1/accounts/:id/primary
func (h *Handler) SetPrimary(c *gin.Context) {
	if err := h.accountService.SetPrimary(c.Request.Context(), identityFrom(c), c.Param("id")); err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, gin.H{"account_id": c.Param("id"), "is_primary": true})
}

// UpdateNickname PUT /api/v1/accounts/:id/nickname
func (h *Handler) UpdateNickname(c *gin.Context) {
	var req struct {
		Nickname *string `json:"nickname"`
	}
	if !bind(c, &req) {
		return
	}

	if err := h.accountService.UpdateNickname(c.Request.Context(), identityFrom(c), c.Param("id"), req.Nickname); err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, gin.H{"account_id": c.Param("id"), "nickname": req.Nickname})
}

// SetTransactionPin PUT /api/v1/settings/pin
func (h *Handler) SetTransactionPin(c *gin.Context) {
	var req service.SetPinRequest
	if !bind(c, &req) {
		return
	}

	if err := h.accountService.SetTransactionPin(c.Request.Context(), identityFrom(c), &req); err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, gin.H{"message": "交易 PIN 已更新"})
}

// ============================================================
// 运营方
// ============================================================

// ListProviderBanks GET /api/v1/provider/banks
func (h *Handler) ListProviderBanks(c *gin.Context) {
	result, err := h.bankService.ListProviderBanks(c.Request.Context(), identityFrom(c))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, result)
}

// UpdateBankFee PUT /api/v1/provider/banks/:id/fee
func (h *Handler) UpdateBankFee(c *gin.Context) {
	var req struct {
		FeePercentage decimal.Decimal `json:"fee_percentage"`
	}
	if !bind(c, &req) {
		return
	}

	bank, err := h.bankService.UpdateFee(c.Request.Context(), identityFrom(c), c.Param("id"), req.FeePercentage)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, bank)
}

// UpdateInterestRate PUT /api/v1/provider/banks/:id/interest
// interest_rate 为 null 表示停止计息
func (h *Handler) UpdateInterestRate(c *gin.Context) {
	var req struct {
		InterestRate *decimal.Decimal `json:"interest_rate"`
	}
	if !bind(c, &req) {
		return
	}

	bank, err := h.bankService.UpdateInterestRate(c.Request.Context(), identityFrom(c), c.Param("id"), req.InterestRate)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, bank)
}

// SetMaintenanceMode PUT /api/v1/provider/banks/:id/maintenance
func (h *Handler) SetMaintenanceMode(c *gin.Context) {
	var req struct {
		Enabled *bool `json:"enabled"`
	}
	if !bind(c, &req) {
		return
	}
	if req.Enabled == nil {
		response.ParamError(c, "enabled 参数不能为空")
		return
	}

	bank, err := h.bankService.SetMaintenanceMode(c.Request.Context(), identityFrom(c), c.Param("id"), *req.Enabled)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, bank)
}

// VaultTransfer 金库转入账户，运营方和管理员共用，手续费规则由身份决定
// POST /api/v1/provider/vault/transfer
// POST /api/v1/admin/vault/transfer
func (h *Handler) VaultTransfer(c *gin.Context) {
	var req service.VaultTransferRequest
	if !bind(c, &req) {
		return
	}

	result, err := h.vaultService.Transfer(c.Request.Context(), identityFrom(c), &req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, result)
}

// ============================================================
// 管理员
// ============================================================

// CreditDebit POST /api/v1/admin/accounts/credit-debit
func (h *Handler) CreditDebit(c *gin.Context) {
	var req service.CreditDebitRequest
	if !bind(c, &req) {
		return
	}

	result, err := h.adminService.CreditDebit(c.Request.Context(), identityFrom(c), &req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, result)
}

// ResetEconomy 清零全部余额，需要再次输入管理员密码
// POST /api/v1/admin/economy/reset
func (h *Handler) ResetEconomy(c *gin.Context) {
	var req struct {
		Password string `json:"password"`
	}
	if !bind(c, &req) {
		return
	}

	result, err := h.adminService.ResetEconomy(c.Request.Context(), identityFrom(c), req.Password)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, result)
}

// Stats GET /api/v1/admin/stats
func (h *Handler) Stats(c *gin.Context) {
	stats, err := h.adminService.Stats(c.Request.Context(), identityFrom(c))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, stats)
}

// GetSettings GET /api/v1/admin/settings
func (h *Handler) GetSettings(c *gin.Context) {
	settings, err := h.adminService.GetSettings(c.Request.Context(), identityFrom(c))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, settings)
}

// UpdateSettings PUT /api/v1/admin/settings
func (h *Handler) UpdateSettings(c *gin.Context) {
	var req service.UpdateSettingsRequest
	if !bind(c, &req) {
		return
	}

	settings, err := h.adminService.UpdateSettings(c.Request.Context(), identityFrom(c), &req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, settings)
}

// CreateBank POST /api/v1/admin/banks
func (h *Handler) CreateBank(c *gin.Context) {
	var req service.CreateBankRequest
	if !bind(c, &req) {
		return
	}

	bank, err := h.adminService.CreateBank(c.Request.Context(), identityFrom(c), &req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, bank)
}

// ListBanks GET /api/v1/admin/banks
func (h *Handler) ListBanks(c *gin.Context) {
	banks, err := h.adminService.ListBanks(c.Request.Context(), identityFrom(c))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, banks)
}

// ListAuditLogs GET /api/v1/admin/audit-logs?action_type=CREDIT_DEBIT&limit=50
func (h *Handler) ListAuditLogs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	logs, err := h.adminService.ListAuditLogs(c.Request.Context(), identityFrom(c), c.Query("action_type"), limit)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, logs)
}

// RunInterest 手动执行一次利息发放
// POST /api/v1/admin/jobs/interest
func (h *Handler) RunInterest(c *gin.Context) {
	if err := auth.Require(identityFrom(c), auth.CapRunJobs); err != nil {
		response.FromError(c, err)
		return
	}

	summary, err := h.interestJob.Run(c.Request.Context())
	if err != nil {
		response.FromError(c, jobError(err))
		return
	}
	response.Success(c, summary)
}

// RunInflation 手动执行一次通胀，未开启时 data 为空
// POST /api/v1/admin/jobs/inflation
func (h *Handler) RunInflation(c *gin.Context) {
	if err := auth.Require(identityFrom(c), auth.CapRunJobs); err != nil {
		response.FromError(c, err)
		return
	}

	entry, err := h.inflationJob.Run(c.Request.Context())
	if err != nil {
		response.FromError(c, jobError(err))
		return
	}
	response.Success(c, gin.H{"applied": entry != nil, "log": entry})
}

func jobError(err error) error {
	if errors.Is(err, job.ErrJobAlreadyRunning) || errors.Is(err, job.ErrPeriodAlreadyDone) {
		return apperr.Conflict("%v", err)
	}
	return apperr.Wrap(err)
}
