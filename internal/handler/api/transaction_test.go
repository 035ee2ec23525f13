//go:build unit

package api_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	domtx "merchant-backend/internal/domain/transaction"
	"merchant-backend/internal/handler/api"
	resdto "merchant-backend/internal/handler/dto/response"
	"merchant-backend/internal/pkg/errs"
	"merchant-backend/internal/usecase/commands"
	"merchant-backend/internal/usecase/queries"
	"merchant-backend/tests/common/builder"
	"merchant-backend/tests/common/httptest"
	"merchant-backend/tests/common/testutil"
	commandsmock "merchant-backend/tests/mock/commands"
	queriesmock "merchant-backend/tests/mock/queries"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"
)

type TransactionHandlerTestSuite struct {
	suite.Suite
	router       *gin.Engine
	mockCtrl     *gomock.Controller
	mockCommands *commandsmock.MockTransactionCommands
	mockQueries  *queriesmock.MockTransactionQueries
	handler      *api.TransactionHandler
	merchantID   uuid.UUID
}

func (s *TransactionHandlerTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	s.router = gin.New()

	s.mockCtrl = gomock.NewController(s.T())
	s.mockCommands = commandsmock.NewMockTransactionCommands(s.mockCtrl)
	s.mockQueries = queriesmock.NewMockTransactionQueries(s.mockCtrl)
	s.handler = api.NewTransactionHandler(s.mockCommands, s.mockQueries)
	s.merchantID = uuid.New()

	// Mock authentication middleware for testing
	authMiddleware := func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": gin.H{"message": "Unauthorized"}})
			return
		}
		c.Set("merchant_id", s.merchantID)
		c.Next()
	}

	s.router.POST("/transactions", authMiddleware, s.handler.Create)
	s.router.GET("/transactions", authMiddleware, s.handler.List)
	s.router.GET("/transactions/:id", authMiddleware, s.handler.Get)
	// no auth middleware: handlers must refuse on their own
	s.router.GET("/unauthenticated/transactions", s.handler.List)
}

func (s *TransactionHandlerTestSuite) TearDownTest() {
	s.mockCtrl.Finish()
}

func TestTransactionHandlerSuite(t *testing.T) {
	suite.Run(t, new(TransactionHandlerTestSuite))
}

type testCaseTransaction struct {
	name       string
	mutate     func(m map[string]any)
	expectCode int
}

// ================================================================================
// TestCreate
// ================================================================================

func (s *TransactionHandlerTestSuite) TestCreate() {
	url := "/transactions"

	b := builder.NewTransactionBuilder().With(func(b *builder.TransactionBuilder) {
		b.MerchantID = s.merchantID
	})
	reqBody := b.BuildCreateRequestDTO()
	expectedResult := b.BuildResult()

	s.Run("success: returns 201 Created with the pending transaction", func() {
		s.mockCommands.EXPECT().Create(gomock.Any(), gomock.Any(), s.merchantID).
			DoAndReturn(func(_ context.Context, input commands.CreateTransactionInput, _ uuid.UUID) (*commands.TransactionResult, error) {
				s.Equal("100.5", input.Amount.String())
				s.Equal("USD", input.Currency)
				return expectedResult, nil
			}).Times(1)

		rec := httptest.PerformRequest(s.T(), s.router, http.MethodPost, url, reqBody, "bearer-token")

		var body resdto.TransactionResponse
		httptest.AssertSuccessResponse(s.T(), rec, http.StatusCreated, &body)
		s.Equal(expectedResult.ID.String(), body.ID)
		s.Equal(s.merchantID.String(), body.MerchantID)
		s.Equal("100.50", body.Amount.String())
		s.Equal("USD", body.Currency)
		s.Equal("PENDING", body.Status)
		s.Contains(rec.Body.String(), `"amount":100.50`)
	})

	s.Run("success: amount may be sent as a JSON number", func() {
		s.mockCommands.EXPECT().Create(gomock.Any(), gomock.Any(), s.merchantID).
			Return(expectedResult, nil).Times(1)

		rec := httptest.PerformRequest(s.T(), s.router, http.MethodPost, url,
			map[string]any{"amount": 100.5, "currency": "USD"}, "bearer-token")
		s.Equal(http.StatusCreated, rec.Code)
	})

	s.Run("error: 400 Bad Request on malformed body", func() {
		cases := []testCaseTransaction{
			{name: "missing field: amount (required)", mutate: testutil.Field("amount", nil), expectCode: http.StatusBadRequest},
			{name: "missing field: currency (required)", mutate: testutil.Field("currency", nil), expectCode: http.StatusBadRequest},
			{name: "currency shorter than 3 chars", mutate: testutil.Field("currency", "US"), expectCode: http.StatusBadRequest},
			{name: "currency longer than 3 chars", mutate: testutil.Field("currency", "USDT"), expectCode: http.StatusBadRequest},
			{name: "amount is not numeric", mutate: testutil.Field("amount", "ten"), expectCode: http.StatusBadRequest},
		}
		for _, tc := range cases {
			s.Run(tc.name, func() {
				requestMap := testutil.DtoMap(s.T(), reqBody, tc.mutate)
				rec := httptest.PerformRequest(s.T(), s.router, http.MethodPost, url, requestMap, "bearer-token")
				httptest.AssertErrorResponse(s.T(), rec, tc.expectCode, "Invalid request")
			})
		}
	})

	s.Run("error: 400 Bad Request when the amount is rejected", func() {
		s.mockCommands.EXPECT().Create(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, errs.Mark(domtx.ErrInvalidAmount, errs.ErrDomainValidation)).Times(1)

		rec := httptest.PerformRequest(s.T(), s.router, http.MethodPost, url,
			map[string]any{"amount": -5, "currency": "USD"}, "bearer-token")
		httptest.AssertErrorResponse(s.T(), rec, http.StatusBadRequest, "Invalid transaction")
		s.Contains(rec.Body.String(), domtx.ErrInvalidAmount.Error())
	})

	s.Run("error: 404 Not Found when the merchant does not exist", func() {
		s.mockCommands.EXPECT().Create(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, errs.Mark(errors.New("fk violation"), errs.ErrMerchantNotFound)).Times(1)

		rec := httptest.PerformRequest(s.T(), s.router, http.MethodPost, url, reqBody, "bearer-token")
		httptest.AssertErrorResponse(s.T(), rec, http.StatusNotFound, "Merchant not found")
	})

	s.Run("error: 500 Internal Server Error on unexpected failure", func() {
		s.mockCommands.EXPECT().Create(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, errs.Mark(errors.New("connection reset"), errs.ErrDatabaseOperationFailed)).Times(1)

		rec := httptest.PerformRequest(s.T(), s.router, http.MethodPost, url, reqBody, "bearer-token")
		httptest.AssertErrorResponse(s.T(), rec, http.StatusInternalServerError, "Create transaction failed")
	})

	s.Run("error: 401 Unauthorized without token", func() {
		rec := httptest.PerformRequest(s.T(), s.router, http.MethodPost, url, reqBody, "")
		httptest.AssertErrorResponse(s.T(), rec, http.StatusUnauthorized, "Unauthorized")
	})
}

// ================================================================================
// TestList
// ================================================================================

func (s *TransactionHandlerTestSuite) TestList() {
	newer := builder.NewTransactionBuilder().With(func(b *builder.TransactionBuilder) {
		b.MerchantID = s.merchantID
		b.Status = domtx.StatusSuccess
	}).BuildView()
	older := builder.NewTransactionBuilder().With(func(b *builder.TransactionBuilder) {
		b.MerchantID = s.merchantID
	}).BuildView()

	page := &queries.TransactionPage{
		Data: []queries.TransactionView{*newer, *older},
		Meta: queries.PageMeta{Total: 12, Page: 2, Limit: 5, TotalPages: 3},
	}

	s.Run("success: returns the page with meta", func() {
		s.mockQueries.EXPECT().FindAll(gomock.Any(), s.merchantID, 2, 5).
			Return(page, nil).Times(1)

		rec := httptest.PerformRequest(s.T(), s.router, http.MethodGet, "/transactions?page=2&limit=5", nil, "bearer-token")

		var body resdto.TransactionListResponse
		httptest.AssertSuccessResponse(s.T(), rec, http.StatusOK, &body)
		s.Require().Len(body.Data, 2)
		s.Equal(newer.ID.String(), body.Data[0].ID)
		s.Equal("SUCCESS", body.Data[0].Status)
		s.Equal(older.ID.String(), body.Data[1].ID)
		s.Equal(resdto.PageMetaResponse{Total: 12, Page: 2, Limit: 5, TotalPages: 3}, body.Meta)
	})

	s.Run("success: omitted paging is left to the query defaults", func() {
		s.mockQueries.EXPECT().FindAll(gomock.Any(), s.merchantID, 0, 0).
			Return(&queries.TransactionPage{Data: []queries.TransactionView{}, Meta: queries.PageMeta{Page: 1, Limit: 10}}, nil).Times(1)

		rec := httptest.PerformRequest(s.T(), s.router, http.MethodGet, "/transactions", nil, "bearer-token")
		s.Equal(http.StatusOK, rec.Code)
		s.Contains(rec.Body.String(), `"data":[]`)
	})

	s.Run("error: 400 Bad Request on invalid paging", func() {
		for _, q := range []string{"page=-1", "limit=-3", "page=abc", "limit=1.5"} {
			s.Run(q, func() {
				rec := httptest.PerformRequest(s.T(), s.router, http.MethodGet, "/transactions?"+q, nil, "bearer-token")
				httptest.AssertErrorResponse(s.T(), rec, http.StatusBadRequest, "Invalid query")
			})
		}
	})

	s.Run("error: 500 Internal Server Error when the query fails", func() {
		s.mockQueries.EXPECT().FindAll(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, errs.ErrDatabaseOperationFailed).Times(1)

		rec := httptest.PerformRequest(s.T(), s.router, http.MethodGet, "/transactions", nil, "bearer-token")
		httptest.AssertErrorResponse(s.T(), rec, http.StatusInternalServerError, "List transactions failed")
	})

	s.Run("error: 401 Unauthorized when no merchant is attached", func() {
		rec := httptest.PerformRequest(s.T(), s.router, http.MethodGet, "/unauthenticated/transactions", nil, "")
		httptest.AssertErrorResponse(s.T(), rec, http.StatusUnauthorized, "Unauthorized")
	})
}

// ================================================================================
// TestGet
// ================================================================================

func (s *TransactionHandlerTestSuite) TestGet() {
	view := builder.NewTransactionBuilder().With(func(b *builder.TransactionBuilder) {
		b.MerchantID = s.merchantID
		b.Status = domtx.StatusFailed
	}).BuildView()

	s.Run("success: returns the transaction", func() {
		s.mockQueries.EXPECT().FindByID(gomock.Any(), s.merchantID, view.ID).
			Return(view, nil).Times(1)

		rec := httptest.PerformRequest(s.T(), s.router, http.MethodGet, "/transactions/"+view.ID.String(), nil, "bearer-token")

		var body resdto.TransactionResponse
		httptest.AssertSuccessResponse(s.T(), rec, http.StatusOK, &body)
		s.Equal(view.ID.String(), body.ID)
		s.Equal("FAILED", body.Status)
		s.Equal("100.50", body.Amount.String())
	})

	s.Run("error: 400 Bad Request on invalid id", func() {
		rec := httptest.PerformRequest(s.T(), s.router, http.MethodGet, "/transactions/not-a-uuid", nil, "bearer-token")
		httptest.AssertErrorResponse(s.T(), rec, http.StatusBadRequest, "Invalid id")
	})

	s.Run("error: 404 Not Found for another merchant's or a missing transaction", func() {
		s.mockQueries.EXPECT().FindByID(gomock.Any(), s.merchantID, gomock.Any()).
			Return(nil, errs.ErrTransactionNotFound).Times(1)

		rec := httptest.PerformRequest(s.T(), s.router, http.MethodGet, "/transactions/"+uuid.NewString(), nil, "bearer-token")
		httptest.AssertErrorResponse(s.T(), rec, http.StatusNotFound, "Transaction not found")
	})

	s.Run("error: 500 Internal Server Error when the lookup fails", func() {
		s.mockQueries.EXPECT().FindByID(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, errors.New("boom")).Times(1)

		rec := httptest.PerformRequest(s.T(), s.router, http.MethodGet, "/transactions/"+uuid.NewString(), nil, "bearer-token")
		httptest.AssertErrorResponse(s.T(), rec, http.StatusInternalServerError, "Failed to load transaction")
	})
}
