package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/askhat/vpn-shop-bot/internal/interfaces"
	"github.com/askhat/vpn-shop-bot/internal/models"
	"github.com/askhat/vpn-shop-bot/internal/service"
	"github.com/askhat/vpn-shop-bot/internal/telemetry"
)

type TransactionHandler struct {
	store        interfaces.TransactionStore
	orchestrator *service.Orchestrator
}

func NewTransactionHandler(store interfaces.TransactionStore, orchestrator *service.Orchestrator) *TransactionHandler {
	return &TransactionHandler{
		store:        store,
		orchestrator: orchestrator,
	}
}

func (h *TransactionHandler) GetTransaction(c *gin.Context) {
	id := c.Param("id")

	tx, err := h.store.Get(c.Request.Context(), id)
	if errors.Is(err, models.ErrTransactionNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "transaction not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch transaction"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"transaction_id": tx.ID,
		"requester_id":   tx.RequesterID,
		"amount":         tx.Amount.StringFixed(2),
		"currency":       tx.Currency,
		"status":         tx.Status,
		"provisioned":    tx.Provisioned,
		"created_at":     tx.CreatedAt,
		"updated_at":     tx.UpdatedAt,
	})
}

// RetryProvision lets an operator re-run provisioning for a paid transaction
// that ended up in the paid-but-not-provisioned state. The provision-once
// guard still applies, so a double POST cannot create two accounts.
func (h *TransactionHandler) RetryProvision(c *gin.Context) {
	id := c.Param("id")

	account, err := h.orchestrator.RetryProvision(c.Request.Context(), id)
	if err != nil {
		var perr *models.ProvisioningError
		switch {
		case errors.Is(err, models.ErrTransactionNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "transaction not found"})
		case errors.Is(err, models.ErrPaymentNotSucceeded):
			c.JSON(http.StatusConflict, gin.H{"error": "payment has not succeeded"})
		case errors.Is(err, models.ErrAlreadyProvisioned):
			c.JSON(http.StatusConflict, gin.H{"error": "transaction already provisioned"})
		case errors.As(err, &perr):
			c.JSON(http.StatusBadGateway, gin.H{"error": "provisioning failed", "diagnostic": perr.Diagnostic})
		default:
			telemetry.Logger.Error("manual provisioning retry failed",
				zap.String("transaction_id", id),
				zap.Error(err),
			)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to provision"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"transaction_id":        id,
		"account_handle":        account.Handle,
		"connection_descriptor": account.ConnectionDescriptor,
	})
}
