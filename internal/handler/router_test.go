package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"escrowledger/internal/config"
	"escrowledger/internal/infrastructure/database"
	"escrowledger/pkg/jwtauth"
	"escrowledger/pkg/response"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestRouter(t *testing.T) (*gin.Engine, *config.Config) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.AutoMigrate(db))

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	cfg := &config.Config{
		Kafka: config.KafkaConfig{Topic: config.KafkaTopicConfig{LedgerEvents: "ledger-events"}},
		Auth:  config.AuthConfig{JWTSecret: "test-secret", TokenTTLHours: 1},
		Business: config.BusinessConfig{
			DefaultHoldDays: 7,
			MaxRetryCount:   3,
		},
	}

	return SetupRouter(db, rdb, cfg), cfg
}

func doJSON(t *testing.T, router *gin.Engine, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func parseResponse(t *testing.T, w *httptest.ResponseRecorder) response.Response {
	t.Helper()
	var resp response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestHealthEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestAdminRoutesRequireToken(t *testing.T) {
	router, cfg := newTestRouter(t)

	w := doJSON(t, router, http.MethodGet, "/api/v1/admin/summary", "", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	// a valid token with the wrong role is rejected too
	sellerToken, err := jwtauth.Issue(cfg.Auth.JWTSecret, "shop-10", "seller", 1)
	require.NoError(t, err)
	w = doJSON(t, router, http.MethodGet, "/api/v1/admin/summary", sellerToken, nil)
	require.Equal(t, http.StatusForbidden, w.Code)

	adminToken, err := jwtauth.Issue(cfg.Auth.JWTSecret, "admin-1", "admin", 1)
	require.NoError(t, err)
	w = doJSON(t, router, http.MethodGet, "/api/v1/admin/summary", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, response.CodeSuccess, parseResponse(t, w).Code)
}

func TestEscrowFlowOverHTTP(t *testing.T) {
	router, cfg := newTestRouter(t)

	serviceToken, err := jwtauth.Issue(cfg.Auth.JWTSecret, "payment-gateway", "service", 1)
	require.NoError(t, err)
	adminToken, err := jwtauth.Issue(cfg.Auth.JWTSecret, "admin-1", "admin", 1)
	require.NoError(t, err)

	w := doJSON(t, router, http.MethodPost, "/api/v1/escrow/hold", serviceToken, map[string]interface{}{
		"order_id":          "order-1",
		"shop_id":           10,
		"amount":            10000,
		"commission_amount": 1000,
	})
	require.Equal(t, http.StatusOK, w.Code)
	holdResp := parseResponse(t, w)
	require.Equal(t, response.CodeSuccess, holdResp.Code)

	holdData, ok := holdResp.Data.(map[string]interface{})
	require.True(t, ok)
	txnData, ok := holdData["transaction"].(map[string]interface{})
	require.True(t, ok)
	txnNo, _ := txnData["transaction_no"].(string)
	require.NotEmpty(t, txnNo)

	// duplicate hold surfaces the invalid-state business code
	w = doJSON(t, router, http.MethodPost, "/api/v1/escrow/hold", serviceToken, map[string]interface{}{
		"order_id":          "order-1",
		"shop_id":           10,
		"amount":            10000,
		"commission_amount": 1000,
	})
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, response.CodeInvalidState, parseResponse(t, w).Code)

	w = doJSON(t, router, http.MethodGet, "/api/v1/wallet/balance?shop_id=10", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := parseResponse(t, w)
	require.Equal(t, response.CodeSuccess, resp.Code)

	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	require.Equal(t, float64(9000), data["locked_balance"])

	// an operator releases the hold
	w = doJSON(t, router, http.MethodPost, "/api/v1/escrow/release", adminToken, map[string]interface{}{
		"transaction_no": txnNo,
	})
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, response.CodeSuccess, parseResponse(t, w).Code)
}

func TestEscrowMutationsRequireToken(t *testing.T) {
	router, cfg := newTestRouter(t)

	body := map[string]interface{}{"transaction_no": "TXN-1"}
	for _, path := range []string{
		"/api/v1/escrow/hold",
		"/api/v1/escrow/release",
		"/api/v1/escrow/refund",
		"/api/v1/escrow/dispute",
	} {
		w := doJSON(t, router, http.MethodPost, path, "", body)
		require.Equal(t, http.StatusUnauthorized, w.Code, path)
	}

	// a service token can hold but not release
	serviceToken, err := jwtauth.Issue(cfg.Auth.JWTSecret, "payment-gateway", "service", 1)
	require.NoError(t, err)
	w := doJSON(t, router, http.MethodPost, "/api/v1/escrow/release", serviceToken, body)
	require.Equal(t, http.StatusForbidden, w.Code)

	sellerToken, err := jwtauth.Issue(cfg.Auth.JWTSecret, "shop-10", "seller", 1)
	require.NoError(t, err)
	w = doJSON(t, router, http.MethodPost, "/api/v1/escrow/hold", sellerToken, body)
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestValidationErrorsOverHTTP(t *testing.T) {
	router, cfg := newTestRouter(t)

	adminToken, err := jwtauth.Issue(cfg.Auth.JWTSecret, "admin-1", "admin", 1)
	require.NoError(t, err)

	// binding failure
	w := doJSON(t, router, http.MethodPost, "/api/v1/escrow/hold", adminToken, map[string]interface{}{
		"shop_id": 10,
	})
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, response.CodeParamError, parseResponse(t, w).Code)

	// unknown transaction
	w = doJSON(t, router, http.MethodPost, "/api/v1/escrow/release", adminToken, map[string]interface{}{
		"transaction_no": "TXN-missing",
	})
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, response.CodeNotFound, parseResponse(t, w).Code)
}
