package payments

import (
	"net/http"

	"seatbook/internal/shared/middleware"
	"seatbook/internal/shared/utils/response"

	"github.com/gin-gonic/gin"
)

type TopUpRequest struct {
	Amount int64 `json:"amount" binding:"required,min=1"`
}

type WalletController struct {
	service  Service
	currency string
}

// NewWalletController serves wallet balance and top-ups; new wallets use currency
func NewWalletController(service Service, currency string) *WalletController {
	return &WalletController{service: service, currency: currency}
}

// GetWallet handles GET /api/v1/wallet
func (c *WalletController) GetWallet(ctx *gin.Context) {
	userID, ok := middleware.CurrentUserID(ctx)
	if !ok {
		response.RespondJSON(ctx, "error", http.StatusUnauthorized, "User not authenticated", nil, nil)
		return
	}

	wallet, err := c.service.GetWallet(ctx.Request.Context(), userID)
	if err != nil {
		response.RespondError(ctx, "Failed to get wallet", err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Wallet retrieved successfully", wallet, nil)
}

// TopUp handles POST /api/v1/wallet/top-up
func (c *WalletController) TopUp(ctx *gin.Context) {
	userID, ok := middleware.CurrentUserID(ctx)
	if !ok {
		response.RespondJSON(ctx, "error", http.StatusUnauthorized, "User not authenticated", nil, nil)
		return
	}

	var req TopUpRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	wallet, err := c.service.TopUp(ctx.Request.Context(), userID, req.Amount, c.currency)
	if err != nil {
		response.RespondError(ctx, "Failed to top up wallet", err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Wallet topped up successfully", wallet, nil)
}

func SetupWalletRoutes(rg *gin.RouterGroup, controller *WalletController, jwtSecret string) {
	wallet := rg.Group("/wallet")
	wallet.Use(middleware.JWTAuth(jwtSecret))
	{
		wallet.GET("", controller.GetWallet)       // GET /api/v1/wallet
		wallet.POST("/top-up", controller.TopUp) // POST /api/v1/wallet/top-up
	}
}
