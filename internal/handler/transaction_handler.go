package handler

import (
	"net/http"

	"github.com/jasperfordesq-ai/nexus-v1-sub039/internal/middleware"
	"github.com/jasperfordesq-ai/nexus-v1-sub039/internal/service"
	"github.com/labstack/echo/v4"
)

// TransactionHandler serves time-credit transfers between federated members
type TransactionHandler struct {
	transactions *service.TransactionService
}

func NewTransactionHandler(transactions *service.TransactionService) *TransactionHandler {
	return &TransactionHandler{transactions: transactions}
}

type createTransactionPayload struct {
	ReceiverUserID   uint    `json:"receiver_user_id"`
	ReceiverTenantID uint    `json:"receiver_tenant_id"`
	Amount           float64 `json:"amount"`
	Description      string  `json:"description"`
}

func (h *TransactionHandler) Create(c echo.Context) error {
	claims := middleware.CurrentUser(c)
	var payload createTransactionPayload
	if err := c.Bind(&payload); err != nil {
		return badRequest(c, "invalid request body")
	}
	t, err := h.transactions.Create(c.Request().Context(), claims.UserID, claims.TenantID,
		payload.ReceiverUserID, payload.ReceiverTenantID, payload.Amount, payload.Description)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusCreated, t)
}

func (h *TransactionHandler) Get(c echo.Context) error {
	claims := middleware.CurrentUser(c)
	id, ok := paramUint(c, "id")
	if !ok {
		return badRequest(c, "invalid transaction id")
	}
	t, err := h.transactions.Get(id, claims.TenantID)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, t)
}

func (h *TransactionHandler) History(c echo.Context) error {
	claims := middleware.CurrentUser(c)
	out, err := h.transactions.History(claims.UserID, claims.TenantID,
		queryInt(c, "limit", 50), queryInt(c, "offset", 0))
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"transactions": out})
}

type reversePayload struct {
	Reason string `json:"reason"`
}

// Reverse issues a compensating transfer for a completed transaction
func (h *TransactionHandler) Reverse(c echo.Context) error {
	claims := middleware.CurrentUser(c)
	id, ok := paramUint(c, "id")
	if !ok {
		return badRequest(c, "invalid transaction id")
	}
	var payload reversePayload
	if err := c.Bind(&payload); err != nil {
		return badRequest(c, "invalid request body")
	}
	actor := claims.UserID
	t, err := h.transactions.Reverse(c.Request().Context(), id, claims.TenantID, &actor, payload.Reason)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, t)
}
