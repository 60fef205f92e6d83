package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/askhat/vpn-shop-bot/internal/handlers"
	"github.com/askhat/vpn-shop-bot/internal/interfaces"
	"github.com/askhat/vpn-shop-bot/internal/service"
	"github.com/askhat/vpn-shop-bot/internal/telemetry"
)

// NewRouter builds the ops surface: health, metrics, transaction state lookup
// and manual provisioning retry. User traffic never comes through here.
func NewRouter(store interfaces.TransactionStore, orchestrator *service.Orchestrator) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(telemetry.TracingMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "vpn-shop-bot"})
	})

	txHandler := handlers.NewTransactionHandler(store, orchestrator)
	r.GET("/transactions/:id", txHandler.GetTransaction)
	r.POST("/transactions/:id/provision", txHandler.RetryProvision)

	return r
}
