package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/qs3c/chatpay_server/internal/model"
	"github.com/qs3c/chatpay_server/internal/repository"
	"github.com/qs3c/chatpay_server/internal/service"
	"github.com/qs3c/chatpay_server/internal/testutil"
)

func setupQuotaService(t *testing.T) (*service.QuotaService, *gorm.DB, func()) {
	t.Helper()

	db := testutil.SetupTestDB(t)
	quotaService := service.NewQuotaService(repository.NewSubscriptionRepository(db))

	cleanup := func() {
		testutil.CleanupTestDB(t, db)
	}

	return quotaService, db, cleanup
}

func budgetRouter(quotaService *service.QuotaService, userID string) *gin.Engine {
	router := gin.New()
	router.Use(func(c *gin.Context) {
		if userID != "" {
			c.Set(UserIDKey, userID)
		}
		c.Next()
	})
	router.Use(TokenBudget(quotaService))
	router.POST("/chat/send", func(c *gin.Context) {
		info, ok := GetTokenBudget(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, info)
	})
	return router
}

func TestTokenBudget_ActiveSubscription(t *testing.T) {
	quotaService, db, cleanup := setupQuotaService(t)
	defer cleanup()

	user := testutil.TestUser(t, db, testutil.WithSubscription(model.PlanPremium, model.StatusActive, time.Now()))

	w := httptest.NewRecorder()
	budgetRouter(quotaService, user.ID).ServeHTTP(w, httptest.NewRequest("POST", "/chat/send", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "10000", w.Header().Get(TokenLimitHeader))
	assert.Contains(t, w.Body.String(), `"planId":"premium"`)
}

func TestTokenBudget_ExpiredFallsBackToFree(t *testing.T) {
	quotaService, db, cleanup := setupQuotaService(t)
	defer cleanup()

	user := testutil.TestUser(t, db, testutil.WithExpiredSubscription(model.PlanPro))

	w := httptest.NewRecorder()
	budgetRouter(quotaService, user.ID).ServeHTTP(w, httptest.NewRequest("POST", "/chat/send", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1000", w.Header().Get(TokenLimitHeader))
	assert.Contains(t, w.Body.String(), `"status":"expired"`)
}

func TestTokenBudget_NoUser(t *testing.T) {
	quotaService, _, cleanup := setupQuotaService(t)
	defer cleanup()

	w := httptest.NewRecorder()
	budgetRouter(quotaService, "").ServeHTTP(w, httptest.NewRequest("POST", "/chat/send", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestTokenBudget_StoreFailure(t *testing.T) {
	quotaService, _, cleanup := setupQuotaService(t)
	// 关闭数据库模拟存储故障
	cleanup()

	w := httptest.NewRecorder()
	budgetRouter(quotaService, "uid_1").ServeHTTP(w, httptest.NewRequest("POST", "/chat/send", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "failed to resolve token budget", parseError(t, w).Error)
}
