package api

import (
	"net/http"

	reqdto "merchant-backend/internal/handler/dto/request"
	resdto "merchant-backend/internal/handler/dto/response"
	"merchant-backend/internal/handler/httperr"
	"merchant-backend/internal/handler/middleware"
	"merchant-backend/internal/pkg/errs"
	"merchant-backend/internal/usecase/commands"
	"merchant-backend/internal/usecase/queries"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type TransactionHandler struct {
	cmds commands.TransactionCommands
	q    queries.TransactionQueries
}

func NewTransactionHandler(cmds commands.TransactionCommands, q queries.TransactionQueries) *TransactionHandler {
	return &TransactionHandler{cmds: cmds, q: q}
}

// @Summary Create transaction
// @Description Create a PENDING transaction for the authenticated merchant. Settlement happens asynchronously.
// @Tags transactions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body reqdto.CreateTransactionRequest true "Create transaction request"
// @Success 201 {object} resdto.TransactionResponse
// @Failure 400 {object} httperr.Response
// @Failure 401 {object} map[string]string
// @Failure 404 {object} httperr.Response
// @Failure 429 {object} httperr.Response
// @Router /transactions [post]
func (h *TransactionHandler) Create(c *gin.Context) {
	merchantID, ok := middleware.GetMerchantID(c)
	if !ok {
		httperr.AbortWithError(c, http.StatusUnauthorized, nil, "Unauthorized", nil)
		return
	}
	var req reqdto.CreateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.AbortWithError(c, http.StatusBadRequest, err, "Invalid request", nil)
		return
	}

	result, err := h.cmds.Create(c.Request.Context(), req.ToInput(), merchantID)
	if err != nil {
		switch {
		case errs.Is(err, errs.ErrDomainValidation):
			httperr.AbortWithError(c, http.StatusBadRequest, err, "Invalid transaction", err.Error())
		case errs.Is(err, errs.ErrMerchantNotFound):
			httperr.AbortWithError(c, http.StatusNotFound, err, "Merchant not found", nil)
		default:
			httperr.AbortWithError(c, http.StatusInternalServerError, err, "Create transaction failed", nil)
		}
		return
	}
	c.JSON(http.StatusCreated, resdto.FromTransactionResult(result))
}

// @Summary List transactions
// @Description Paginated transactions of the authenticated merchant, newest first
// @Tags transactions
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Page size (max 100)" default(10)
// @Success 200 {object} resdto.TransactionListResponse
// @Failure 400 {object} httperr.Response
// @Failure 401 {object} map[string]string
// @Failure 429 {object} httperr.Response
// @Router /transactions [get]
func (h *TransactionHandler) List(c *gin.Context) {
	merchantID, ok := middleware.GetMerchantID(c)
	if !ok {
		httperr.AbortWithError(c, http.StatusUnauthorized, nil, "Unauthorized", nil)
		return
	}
	var req reqdto.ListTransactionsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httperr.AbortWithError(c, http.StatusBadRequest, err, "Invalid query", nil)
		return
	}

	page, err := h.q.FindAll(c.Request.Context(), merchantID, req.Page, req.Limit)
	if err != nil {
		httperr.AbortWithError(c, http.StatusInternalServerError, err, "List transactions failed", nil)
		return
	}
	c.JSON(http.StatusOK, resdto.FromTransactionPage(page))
}

// @Summary Get transaction
// @Description Get one transaction of the authenticated merchant
// @Tags transactions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Transaction ID"
// @Success 200 {object} resdto.TransactionResponse
// @Failure 400 {object} httperr.Response
// @Failure 401 {object} map[string]string
// @Failure 404 {object} httperr.Response
// @Router /transactions/{id} [get]
func (h *TransactionHandler) Get(c *gin.Context) {
	merchantID, ok := middleware.GetMerchantID(c)
	if !ok {
		httperr.AbortWithError(c, http.StatusUnauthorized, nil, "Unauthorized", nil)
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httperr.AbortWithError(c, http.StatusBadRequest, err, "Invalid id", nil)
		return
	}

	view, err := h.q.FindByID(c.Request.Context(), merchantID, id)
	if err != nil {
		if errs.Is(err, errs.ErrTransactionNotFound) {
			httperr.AbortWithError(c, http.StatusNotFound, err, "Transaction not found", nil)
			return
		}
		httperr.AbortWithError(c, http.StatusInternalServerError, err, "Failed to load transaction", nil)
		return
	}
	c.JSON(http.StatusOK, resdto.FromTransactionView(view))
}
