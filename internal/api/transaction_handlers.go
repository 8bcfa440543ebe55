package api

import (
	"net/http"

	"github.com/mehrbod2002/roivault/internal/models"
	"github.com/mehrbod2002/roivault/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type TransferRequest struct {
	ReceiverID string          `json:"receiver_id" binding:"required"`
	Amount     decimal.Decimal `json:"amount"`
	Note       string          `json:"note" binding:"max=256"`
}

type WithdrawalRequest struct {
	Amount             decimal.Decimal `json:"amount"`
	DestinationAddress string          `json:"destination_address" binding:"required"`
}

type TransactionHandler struct {
	ledger      service.LedgerService
	transfers   service.TransferService
	withdrawals service.WithdrawalService
	logService  service.LogService
}

func NewTransactionHandler(ledger service.LedgerService, transfers service.TransferService, withdrawals service.WithdrawalService, logService service.LogService) *TransactionHandler {
	return &TransactionHandler{ledger: ledger, transfers: transfers, withdrawals: withdrawals, logService: logService}
}

// @Summary Get balance
// @Tags Transactions
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]string "Balance"
// @Router /balance [get]
func (h *TransactionHandler) GetBalance(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	balance, err := h.ledger.GetBalance(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": userID.Hex(), "balance": balance})
}

// @Summary Get transaction history
// @Description Paginated ledger entries for the caller, newest first
// @Tags Transactions
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Success 200 {array} models.Transaction
// @Router /transactions [get]
func (h *TransactionHandler) GetUserTransactions(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	page, limit := pagination(c)
	txs, err := h.ledger.GetTransactions(c.Request.Context(), userID, page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, txs)
}

// @Summary Reconcile own balance
// @Description Compares the cached balance with the sum of ledger entries
// @Tags Transactions
// @Produce json
// @Security BearerAuth
// @Success 200 {object} service.Reconciliation
// @Router /balance/reconcile [get]
func (h *TransactionHandler) Reconcile(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	rec, err := h.ledger.Reconcile(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// @Summary Transfer funds
// @Description Moves funds from the caller to another user
// @Tags Transfers
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param transfer body TransferRequest true "Transfer data"
// @Success 201 {object} models.Transfer
// @Failure 400 {object} map[string]string "Invalid request"
// @Failure 402 {object} map[string]string "Insufficient funds"
// @Failure 404 {object} map[string]string "Receiver not found"
// @Router /transfers [post]
func (h *TransactionHandler) Transfer(c *gin.Context) {
	senderID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}
	receiverID, err := primitive.ObjectIDFromHex(req.ReceiverID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid receiver ID"})
		return
	}

	transfer, err := h.transfers.Transfer(c.Request.Context(), senderID, receiverID, req.Amount, req.Note)
	if err != nil {
		respondError(c, err)
		return
	}

	audit(c, h.logService, models.ActorUser, senderID, "Transfer", "User transferred funds", map[string]interface{}{
		"transfer_id": transfer.ID.Hex(),
		"receiver_id": receiverID.Hex(),
		"amount":      req.Amount.String(),
	})
	c.JSON(http.StatusCreated, transfer)
}

// @Summary Get transfers
// @Description Lists transfers sent or received by the caller, including failed ones
// @Tags Transfers
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Transfer
// @Router /transfers [get]
func (h *TransactionHandler) GetTransfers(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	transfers, err := h.transfers.GetTransfersByUserID(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, transfers)
}

// @Summary Request a withdrawal
// @Description Debits the amount immediately and queues the request for admin review
// @Tags Withdrawals
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param withdrawal body WithdrawalRequest true "Withdrawal data"
// @Success 201 {object} models.Withdrawal
// @Failure 400 {object} map[string]string "Invalid request"
// @Failure 402 {object} map[string]string "Insufficient funds"
// @Router /withdrawals [post]
func (h *TransactionHandler) RequestWithdrawal(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req WithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}

	w, err := h.withdrawals.Submit(c.Request.Context(), userID, req.Amount, req.DestinationAddress)
	if err != nil {
		respondError(c, err)
		return
	}

	audit(c, h.logService, models.ActorUser, userID, "RequestWithdrawal", "User requested withdrawal", map[string]interface{}{
		"withdrawal_id": w.ID.Hex(),
		"amount":        req.Amount.String(),
	})
	c.JSON(http.StatusCreated, w)
}

// @Summary Get withdrawals
// @Tags Withdrawals
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Withdrawal
// @Router /withdrawals [get]
func (h *TransactionHandler) GetWithdrawals(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	withdrawals, err := h.withdrawals.GetWithdrawalsByUserID(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, withdrawals)
}
