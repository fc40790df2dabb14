package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/finchbank/ledger-service/internal/domain"
	"github.com/finchbank/ledger-service/internal/ledger"
	"github.com/finchbank/ledger-service/internal/middleware"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// LedgerCommander defines the write-side operations used by AccountHandler.
type LedgerCommander interface {
	Transfer(ctx context.Context, caller ledger.Caller, toIdentifier string, amount decimal.Decimal, note string) (*ledger.TransferResult, error)
	Withdraw(ctx context.Context, caller ledger.Caller, amount decimal.Decimal, note string) (*ledger.WithdrawResult, error)
	Deposit(ctx context.Context, caller ledger.Caller, targetIdentifier string, amount decimal.Decimal, note string) (*ledger.DepositResult, error)
	Freeze(ctx context.Context, caller ledger.Caller, targetEmail string) (*ledger.StatusResult, error)
	Unfreeze(ctx context.Context, caller ledger.Caller, targetEmail string) (*ledger.StatusResult, error)
	Close(ctx context.Context, caller ledger.Caller, targetEmail string) (*ledger.StatusResult, error)
}

// LedgerQuerier defines the read-side operations used by AccountHandler.
type LedgerQuerier interface {
	Profile(ctx context.Context, caller ledger.Caller) (*domain.AccountView, error)
	History(ctx context.Context, caller ledger.Caller, limit int) ([]domain.TransactionRecord, error)
	Totals(ctx context.Context, caller ledger.Caller) (*domain.TransferTotals, error)
}

type AccountHandler struct {
	commands LedgerCommander
	queries  LedgerQuerier
}

type TransferRequest struct {
	To     string          `json:"to" validate:"required,identifier"`
	Amount decimal.Decimal `json:"amount"`
	Note   string          `json:"note"`
}

type WithdrawRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Note   string          `json:"note"`
}

type DepositRequest struct {
	To     string          `json:"to" validate:"required,identifier"`
	Amount decimal.Decimal `json:"amount"`
	Note   string          `json:"note"`
}

type StatusChangeRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type TransactionsResponse struct {
	Transactions []domain.TransactionRecord `json:"transactions"`
}

func NewAccountHandler(commands LedgerCommander, queries LedgerQuerier) *AccountHandler {
	return &AccountHandler{commands: commands, queries: queries}
}

func (h *AccountHandler) Me(c *gin.Context) {
	caller, _ := middleware.GetCaller(c)

	view, err := h.queries.Profile(c.Request.Context(), caller)
	if err != nil {
		respondLedgerError(c, err, "Failed to fetch profile")
		return
	}
	c.JSON(http.StatusOK, gin.H{"account": view})
}

func (h *AccountHandler) Transfer(c *gin.Context) {
	caller, _ := middleware.GetCaller(c)

	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if validationErrors := middleware.ValidateRequest(req); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return
	}

	result, err := h.commands.Transfer(c.Request.Context(), caller, req.To, req.Amount, req.Note)
	if err != nil {
		respondLedgerError(c, err, "Transfer failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":   "Transfer successful",
		"balance":   result.Balance,
		"recipient": result.Recipient,
	})
}

func (h *AccountHandler) Withdraw(c *gin.Context) {
	caller, _ := middleware.GetCaller(c)

	var req WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.commands.Withdraw(c.Request.Context(), caller, req.Amount, req.Note)
	if err != nil {
		respondLedgerError(c, err, "Withdrawal failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Withdrawal successful",
		"balance": result.Balance,
	})
}

func (h *AccountHandler) Deposit(c *gin.Context) {
	caller, _ := middleware.GetCaller(c)

	var req DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if validationErrors := middleware.ValidateRequest(req); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return
	}

	result, err := h.commands.Deposit(c.Request.Context(), caller, req.To, req.Amount, req.Note)
	if err != nil {
		respondLedgerError(c, err, "Deposit failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Deposit successful",
		"balance": result.Balance,
		"target":  result.Target,
	})
}

func (h *AccountHandler) Freeze(c *gin.Context) {
	h.statusChange(c, h.commands.Freeze, "Freeze failed")
}

func (h *AccountHandler) Unfreeze(c *gin.Context) {
	h.statusChange(c, h.commands.Unfreeze, "Unfreeze failed")
}

func (h *AccountHandler) Close(c *gin.Context) {
	h.statusChange(c, h.commands.Close, "Close failed")
}

func (h *AccountHandler) statusChange(
	c *gin.Context,
	op func(context.Context, ledger.Caller, string) (*ledger.StatusResult, error),
	fallback string,
) {
	caller, _ := middleware.GetCaller(c)

	var req StatusChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if validationErrors := middleware.ValidateRequest(req); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return
	}

	result, err := op(c.Request.Context(), caller, req.Email)
	if err != nil {
		respondLedgerError(c, err, fallback)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *AccountHandler) ListTransactions(c *gin.Context) {
	caller, _ := middleware.GetCaller(c)

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	records, err := h.queries.History(c.Request.Context(), caller, limit)
	if err != nil {
		respondLedgerError(c, err, "Failed to list transactions")
		return
	}
	if records == nil {
		records = []domain.TransactionRecord{}
	}
	c.JSON(http.StatusOK, TransactionsResponse{Transactions: records})
}

func (h *AccountHandler) Totals(c *gin.Context) {
	caller, _ := middleware.GetCaller(c)

	totals, err := h.queries.Totals(c.Request.Context(), caller)
	if err != nil {
		respondLedgerError(c, err, "Failed to aggregate totals")
		return
	}
	c.JSON(http.StatusOK, totals)
}
