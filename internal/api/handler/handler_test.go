package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/qs3c/chatpay_server/config"
	"github.com/qs3c/chatpay_server/internal/pkg/gateway"
	"github.com/qs3c/chatpay_server/internal/pkg/identity"
	"github.com/qs3c/chatpay_server/internal/pkg/response"
	"github.com/qs3c/chatpay_server/internal/pkg/signature"
	"github.com/qs3c/chatpay_server/internal/repository"
	"github.com/qs3c/chatpay_server/internal/service"
	"github.com/qs3c/chatpay_server/internal/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const (
	testKeySecret      = "rzp_test_secret"
	testIdentitySecret = "test-identity-secret"
)

// fakeGatewayServer 模拟网关下单接口，status 为 0 时返回 200
type fakeGatewayServer struct {
	*httptest.Server
	status atomic.Int32
	calls  atomic.Int32
}

func newFakeGatewayServer(t *testing.T) *fakeGatewayServer {
	t.Helper()

	s := &fakeGatewayServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.calls.Add(1)
		if status := int(s.status.Load()); status != 0 {
			w.WriteHeader(status)
			_, _ = io.WriteString(w, `{"error":{"description":"gateway says no"}}`)
			return
		}

		var req gateway.OrderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(gateway.Order{
			ID:       "order_test_1",
			Entity:   "order",
			Amount:   req.Amount,
			Currency: req.Currency,
			Receipt:  req.Receipt,
			Status:   "created",
		})
	}))
	t.Cleanup(s.Close)
	return s
}

type handlerFixture struct {
	db           *gorm.DB
	gateway      *fakeGatewayServer
	payment      *PaymentHandler
	subscription *SubscriptionHandler
	quota        *QuotaHandler
	quotaService *service.QuotaService
	verifier     identity.Verifier
}

func setupHandlers(t *testing.T) *handlerFixture {
	t.Helper()

	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })

	gw := newFakeGatewayServer(t)
	cfg := &config.Config{
		Payment: config.PaymentConfig{
			KeyID:           "rzp_test_key",
			KeySecret:       testKeySecret,
			BaseURL:         gw.URL,
			Currency:        "INR",
			Timeout:         2 * time.Second,
			BreakerFailures: 100,
		},
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	verifier, err := identity.NewJWTVerifier(config.IdentityConfig{Secret: testIdentitySecret})
	require.NoError(t, err)

	repo := repository.NewSubscriptionRepository(db)
	orderService := service.NewOrderService(gateway.NewClient(cfg.Payment, logger), cfg, logger)
	subscriptionService := service.NewSubscriptionService(repo, signature.NewVerifier(testKeySecret), nil, nil, logger)
	quotaService := service.NewQuotaService(repo)

	return &handlerFixture{
		db:           db,
		gateway:      gw,
		payment:      NewPaymentHandler(orderService, subscriptionService, verifier, logger),
		subscription: NewSubscriptionHandler(subscriptionService, logger),
		quota:        NewQuotaHandler(quotaService, logger),
		quotaService: quotaService,
		verifier:     verifier,
	}
}

func idToken(t *testing.T, userID string) string {
	t.Helper()

	token, err := identity.GenerateToken(userID, testIdentitySecret, time.Hour)
	require.NoError(t, err)
	return token
}

func performRequest(r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	return performRequestWithHeaders(r, method, path, body, nil)
}

func performRequestWithHeaders(r http.Handler, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	switch b := body.(type) {
	case nil:
		reqBody = bytes.NewBuffer(nil)
	case string:
		reqBody = bytes.NewBufferString(b)
	default:
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBytes)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func parseError(t *testing.T, w *httptest.ResponseRecorder) response.ErrorBody {
	t.Helper()

	var body response.ErrorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}
