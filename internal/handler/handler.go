package handler

import (
	"errors"
	"strconv"

	"escrowledger/internal/config"
	"escrowledger/internal/infrastructure/lock"
	"escrowledger/internal/repository"
	"escrowledger/internal/service"
	"escrowledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// Handler bundles all service dependencies behind the HTTP surface.
type Handler struct {
	escrowService   *service.EscrowService
	payoutService   *service.PayoutService
	walletService   *service.WalletService
	settingsService *service.SettingsService
}

func NewHandler(db *gorm.DB, rdb *redis.Client, cfg *config.Config) *Handler {
	return &Handler{
		escrowService:   service.NewEscrowService(db, rdb, cfg),
		payoutService:   service.NewPayoutService(db, rdb, cfg),
		walletService:   service.NewWalletService(db, rdb, cfg),
		settingsService: service.NewSettingsService(db, cfg),
	}
}

// handleError maps service errors onto the stable business codes the
// admin UI relies on.
func handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		response.BusinessError(c, response.CodeValidationFailed, err.Error())
	case errors.Is(err, repository.ErrInvalidState):
		response.BusinessError(c, response.CodeInvalidState, err.Error())
	case errors.Is(err, repository.ErrInsufficientBalance),
		errors.Is(err, repository.ErrInsufficientLocked):
		response.BusinessError(c, response.CodeInsufficientBalance, err.Error())
	case errors.Is(err, repository.ErrOptimisticLock),
		errors.Is(err, lock.ErrLockFailed):
		response.BusinessError(c, response.CodeConflict, err.Error())
	case errors.Is(err, repository.ErrWalletNotFound),
		errors.Is(err, repository.ErrTransactionNotFound),
		errors.Is(err, repository.ErrWithdrawalNotFound),
		errors.Is(err, repository.ErrEntryNotFound),
		errors.Is(err, repository.ErrSettingNotFound):
		response.NotFound(c, err.Error())
	default:
		response.ServerError(c, err.Error())
	}
}

func actorID(c *gin.Context) string {
	if actor := c.GetString(ContextKeyActorID); actor != "" {
		return actor
	}
	return "anonymous"
}

func pagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}

// ============================================================
// Escrow endpoints
// ============================================================

// HoldEscrow places the seller share of a paid order into escrow.
// POST /api/v1/escrow/hold
func (h *Handler) HoldEscrow(c *gin.Context) {
	var req service.HoldEscrowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}
	req.ActorID = actorID(c)

	result, err := h.escrowService.HoldEscrow(c.Request.Context(), &req)
	if err != nil {
		handleError(c, err)
		return
	}

	response.Success(c, result)
}

// ReleaseEscrow moves held funds to the shop's available balance.
// POST /api/v1/escrow/release
func (h *Handler) ReleaseEscrow(c *gin.Context) {
	var req struct {
		TransactionNo string `json:"transaction_no" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	result, err := h.escrowService.ReleaseEscrow(c.Request.Context(), req.TransactionNo, actorID(c))
	if err != nil {
		handleError(c, err)
		return
	}

	response.Success(c, result)
}

// RefundEscrow reverses a held transaction back toward the buyer.
// POST /api/v1/escrow/refund
func (h *Handler) RefundEscrow(c *gin.Context) {
	var req struct {
		TransactionNo string `json:"transaction_no" binding:"required"`
		Reason        string `json:"reason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	result, err := h.escrowService.RefundEscrow(c.Request.Context(), req.TransactionNo, req.Reason, actorID(c))
	if err != nil {
		handleError(c, err)
		return
	}

	response.Success(c, result)
}

// MarkDisputed flags a transaction without moving funds.
// POST /api/v1/escrow/dispute
func (h *Handler) MarkDisputed(c *gin.Context) {
	var req struct {
		TransactionNo string `json:"transaction_no" binding:"required"`
		Reason        string `json:"reason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	result, err := h.escrowService.MarkDisputed(c.Request.Context(), req.TransactionNo, req.Reason, actorID(c))
	if err != nil {
		handleError(c, err)
		return
	}

	response.Success(c, result)
}

// GetTransaction returns one escrow transaction.
// GET /api/v1/escrow/detail?transaction_no=xxx
func (h *Handler) GetTransaction(c *gin.Context) {
	transactionNo := c.Query("transaction_no")
	if transactionNo == "" {
		response.ParamError(c, "transaction_no is required")
		return
	}

	txn, err := h.escrowService.GetTransaction(c.Request.Context(), transactionNo)
	if err != nil {
		handleError(c, err)
		return
	}

	response.Success(c, txn)
}

// ListTransactions lists a shop's escrow transactions.
// GET /api/v1/escrow/list?shop_id=xxx&page=1&page_size=20
func (h *Handler) ListTransactions(c *gin.Context) {
	shopID, err := strconv.ParseInt(c.Query("shop_id"), 10, 64)
	if err != nil {
		response.ParamError(c, "shop_id is required")
		return
	}
	page, pageSize := pagination(c)

	txns, total, err := h.escrowService.ListTransactions(c.Request.Context(), shopID, page, pageSize)
	if err != nil {
		handleError(c, err)
		return
	}

	response.Success(c, gin.H{
		"list":      txns,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// ============================================================
// Wallet endpoints
// ============================================================

// GetWallet returns a shop's balances.
// GET /api/v1/wallet/balance?shop_id=xxx
func (h *Handler) GetWallet(c *gin.Context) {
	shopID, err := strconv.ParseInt(c.Query("shop_id"), 10, 64)
	if err != nil {
		response.ParamError(c, "shop_id is required")
		return
	}

	wallet, err := h.walletService.GetWallet(c.Request.Context(), shopID)
	if err != nil {
		handleError(c, err)
		return
	}

	response.Success(c, gin.H{
		"shop_id":           wallet.ShopID,
		"available_balance": wallet.AvailableBalance,
		"locked_balance":    wallet.LockedBalance,
	})
}

// ListEntries pages through a shop's ledger, newest first.
// GET /api/v1/wallet/entries?shop_id=xxx&page=1&page_size=20
func (h *Handler) ListEntries(c *gin.Context) {
	shopID, err := strconv.ParseInt(c.Query("shop_id"), 10, 64)
	if err != nil {
		response.ParamError(c, "shop_id is required")
		return
	}
	page, pageSize := pagination(c)

	entries, total, err := h.walletService.ListEntries(c.Request.Context(), shopID, page, pageSize)
	if err != nil {
		handleError(c, err)
		return
	}

	response.Success(c, gin.H{
		"list":      entries,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// GetEntry returns one ledger entry.
// GET /api/v1/wallet/entry?entry_no=xxx
func (h *Handler) GetEntry(c *gin.Context) {
	entryNo := c.Query("entry_no")
	if entryNo == "" {
		response.ParamError(c, "entry_no is required")
		return
	}

	entry, err := h.walletService.GetEntry(c.Request.Context(), entryNo)
	if err != nil {
		handleError(c, err)
		return
	}

	response.Success(c, entry)
}

// ============================================================
// Withdrawal endpoints
// ============================================================

// RequestWithdrawal files a pending withdrawal request.
// POST /api/v1/withdrawal/request
func (h *Handler) RequestWithdrawal(c *gin.Context) {
	var input service.RequestWithdrawalInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	req, err := h.payoutService.RequestWithdrawal(c.Request.Context(), &input)
	if err != nil {
		handleError(c, err)
		return
	}

	response.Success(c, req)
}

// CancelWithdrawal cancels a pending request.
// POST /api/v1/withdrawal/cancel
func (h *Handler) CancelWithdrawal(c *gin.Context) {
	var req struct {
		WithdrawalNo string `json:"withdrawal_no" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	result, err := h.payoutService.CancelWithdrawal(c.Request.Context(), req.WithdrawalNo, actorID(c))
	if err != nil {
		handleError(c, err)
		return
	}

	response.Success(c, result)
}

// GetWithdrawal returns one withdrawal request.
// GET /api/v1/withdrawal/detail?withdrawal_no=xxx
func (h *Handler) GetWithdrawal(c *gin.Context) {
	withdrawalNo := c.Query("withdrawal_no")
	if withdrawalNo == "" {
		response.ParamError(c, "withdrawal_no is required")
		return
	}

	req, err := h.payoutService.GetWithdrawal(c.Request.Context(), withdrawalNo)
	if err != nil {
		handleError(c, err)
		return
	}

	response.Success(c, req)
}

// ListWithdrawals lists withdrawal requests, optionally by status.
// GET /api/v1/withdrawal/list?status=pending&page=1&page_size=20
func (h *Handler) ListWithdrawals(c *gin.Context) {
	page, pageSize := pagination(c)

	reqs, total, err := h.payoutService.ListWithdrawals(c.Request.Context(), c.Query("status"), page, pageSize)
	if err != nil {
		handleError(c, err)
		return
	}

	response.Success(c, gin.H{
		"list":      reqs,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// ============================================================
// Admin endpoints
// ============================================================

// ApproveWithdrawal executes the payout and completes the request.
// POST /api/v1/admin/withdrawal/approve
func (h *Handler) ApproveWithdrawal(c *gin.Context) {
	var req struct {
		WithdrawalNo string `json:"withdrawal_no" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	result, err := h.payoutService.ApproveWithdrawal(c.Request.Context(), req.WithdrawalNo, actorID(c))
	if err != nil {
		handleError(c, err)
		return
	}

	response.Success(c, result)
}

// RejectWithdrawal fails a pending request without moving funds.
// POST /api/v1/admin/withdrawal/reject
func (h *Handler) RejectWithdrawal(c *gin.Context) {
	var req struct {
		WithdrawalNo string `json:"withdrawal_no" binding:"required"`
		Reason       string `json:"reason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	result, err := h.payoutService.RejectWithdrawal(c.Request.Context(), req.WithdrawalNo, req.Reason, actorID(c))
	if err != nil {
		handleError(c, err)
		return
	}

	response.Success(c, result)
}

// ProcessPayout debits available balance for an out-of-band payout.
// POST /api/v1/admin/payout
func (h *Handler) ProcessPayout(c *gin.Context) {
	var req struct {
		ShopID    int64  `json:"shop_id" binding:"required"`
		Amount    int64  `json:"amount" binding:"required,gt=0"`
		Method    string `json:"method" binding:"required"`
		Reference string `json:"reference"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	result, err := h.payoutService.ProcessPayout(c.Request.Context(), req.ShopID, req.Amount, req.Method, req.Reference, actorID(c))
	if err != nil {
		handleError(c, err)
		return
	}

	response.Success(c, result)
}

// ApplyAdjustment records a signed manual correction.
// POST /api/v1/admin/adjustment
func (h *Handler) ApplyAdjustment(c *gin.Context) {
	var req struct {
		ShopID      *int64 `json:"shop_id"` // omit for the platform wallet
		Amount      int64  `json:"amount" binding:"required"`
		Description string `json:"description" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	entry, err := h.walletService.ApplyAdjustment(c.Request.Context(), req.ShopID, req.Amount, req.Description, actorID(c))
	if err != nil {
		handleError(c, err)
		return
	}

	response.Success(c, entry)
}

// PlatformSummary returns platform aggregates derived from the ledger.
// GET /api/v1/admin/summary
func (h *Handler) PlatformSummary(c *gin.Context) {
	summary, err := h.walletService.ComputePlatformSummary(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}

	response.Success(c, summary)
}

// ReconcileShop recomputes a wallet from its ledger entries.
// GET /api/v1/admin/reconcile?shop_id=xxx
func (h *Handler) ReconcileShop(c *gin.Context) {
	shopID, err := strconv.ParseInt(c.Query("shop_id"), 10, 64)
	if err != nil {
		response.ParamError(c, "shop_id is required")
		return
	}

	report, err := h.walletService.ReconcileShop(c.Request.Context(), shopID)
	if err != nil {
		handleError(c, err)
		return
	}

	response.Success(c, report)
}

// ListWallets pages over all shop wallets.
// GET /api/v1/admin/wallets?limit=100&offset=0
func (h *Handler) ListWallets(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	wallets, err := h.walletService.ListWallets(c.Request.Context(), limit, offset)
	if err != nil {
		handleError(c, err)
		return
	}

	response.Success(c, wallets)
}

// ============================================================
// Settings endpoints
// ============================================================

// SetCategoryCommission upserts a category's commission rate.
// POST /api/v1/admin/settings/commission
func (h *Handler) SetCategoryCommission(c *gin.Context) {
	var req struct {
		Category string `json:"category" binding:"required"`
		RateBps  int    `json:"rate_bps"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	row, err := h.settingsService.SetCategoryCommission(c.Request.Context(), req.Category, req.RateBps)
	if err != nil {
		handleError(c, err)
		return
	}

	response.Success(c, row)
}

// ListCategoryCommissions lists all commission rates.
// GET /api/v1/admin/settings/commission
func (h *Handler) ListCategoryCommissions(c *gin.Context) {
	rows, err := h.settingsService.ListCategoryCommissions(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}

	response.Success(c, rows)
}

// SetEscrowSettings upserts a category's escrow rule.
// POST /api/v1/admin/settings/escrow
func (h *Handler) SetEscrowSettings(c *gin.Context) {
	var req struct {
		Category string `json:"category" binding:"required"`
		Required *bool  `json:"required" binding:"required"`
		HoldDays int    `json:"hold_days"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	row, err := h.settingsService.SetEscrowSettings(c.Request.Context(), req.Category, *req.Required, req.HoldDays)
	if err != nil {
		handleError(c, err)
		return
	}

	response.Success(c, row)
}

// ListEscrowSettings lists all escrow rules.
// GET /api/v1/admin/settings/escrow
func (h *Handler) ListEscrowSettings(c *gin.Context) {
	rows, err := h.settingsService.ListEscrowSettings(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}

	response.Success(c, rows)
}

// SetGlobalSetting upserts one key/value setting.
// POST /api/v1/admin/settings/global
func (h *Handler) SetGlobalSetting(c *gin.Context) {
	var req struct {
		SettingKey   string `json:"setting_key" binding:"required"`
		SettingValue string `json:"setting_value" binding:"required"`
		Description  string `json:"description"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	row, err := h.settingsService.SetGlobalSetting(c.Request.Context(), req.SettingKey, req.SettingValue, req.Description)
	if err != nil {
		handleError(c, err)
		return
	}

	response.Success(c, row)
}

// ListGlobalSettings lists all key/value settings.
// GET /api/v1/admin/settings/global
func (h *Handler) ListGlobalSettings(c *gin.Context) {
	rows, err := h.settingsService.ListGlobalSettings(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}

	response.Success(c, rows)
}

// SetFeatureFlag upserts one feature flag.
// POST /api/v1/admin/settings/flags
func (h *Handler) SetFeatureFlag(c *gin.Context) {
	var req struct {
		FlagName    string `json:"flag_name" binding:"required"`
		Enabled     *bool  `json:"enabled" binding:"required"`
		Description string `json:"description"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	row, err := h.settingsService.SetFeatureFlag(c.Request.Context(), req.FlagName, *req.Enabled, req.Description)
	if err != nil {
		handleError(c, err)
		return
	}

	response.Success(c, row)
}

// ListFeatureFlags lists all feature flags.
// GET /api/v1/admin/settings/flags
func (h *Handler) ListFeatureFlags(c *gin.Context) {
	rows, err := h.settingsService.ListFeatureFlags(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}

	response.Success(c, rows)
}
