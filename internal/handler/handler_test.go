package handler

import (
	"bytes"
	"context"
	"crypto/rsa"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"license-token-service/internal/config"
	"license-token-service/internal/database"
	"license-token-service/internal/keys"
	"license-token-service/internal/middleware"
	"license-token-service/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const (
	testWebhookSecret = "whsec-test"
	testJWTSecret     = "jwt-test"
	testAdminPassword = "correct horse"
)

var (
	keyOnce sync.Once
	testKey *rsa.PrivateKey
)

type testEnv struct {
	app   *fiber.App
	store *database.RecordStore
	now   time.Time
	mu    sync.Mutex
}

func (e *testEnv) clock() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.now
}

func (e *testEnv) setClock(unix int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.now = time.Unix(unix, 0)
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	keyOnce.Do(func() {
		var err error
		testKey, err = keys.Generate(2048)
		require.NoError(t, err)
	})

	db, err := database.OpenTest()
	require.NoError(t, err)
	t.Cleanup(func() { database.Close(db) })

	hash, err := bcrypt.GenerateFromPassword([]byte(testAdminPassword), bcrypt.MinCost)
	require.NoError(t, err)

	cfg := &config.Config{
		Server: config.ServerConfig{RequestTimeout: 5 * time.Second},
		License: config.LicenseConfig{DefaultDurationHours: 36},
		Admin: config.AdminConfig{
			Username:     "admin",
			PasswordHash: string(hash),
			JWTSecret:    testJWTSecret,
			JWTTTL:       time.Hour,
		},
		Webhook: config.WebhookConfig{Secret: testWebhookSecret},
	}

	env := &testEnv{store: database.NewRecordStore(db), now: time.Unix(1000, 0)}
	signer := keys.NewSigner(keys.NewStaticProvider(testKey, nil))
	svc := service.NewLicenseService(env.store, signer, zerolog.Nop(),
		service.WithClock(env.clock),
		service.WithDefaultDuration(cfg.License.DefaultDurationHours))

	h := New(Deps{
		Service:   svc,
		Config:    cfg,
		Logger:    zerolog.Nop(),
		Health:    func(ctx context.Context) error { return database.Ping(ctx, db) },
		AccessLog: io.Discard,
	})
	env.app = h.NewApp()
	return env
}

type response struct {
	status int
	body   map[string]any
}

func (e *testEnv) do(t *testing.T, method, path string, body any, headers map[string]string) response {
	t.Helper()
	var reader io.Reader
	var raw []byte
	if body != nil {
		var err error
		raw, err = json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := response{status: resp.StatusCode, body: map[string]any{}}
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(data) > 0 && data[0] == '{' {
		require.NoError(t, json.Unmarshal(data, &out.body))
	}
	return out
}

// webhook 发送带正确签名的支付通知
func (e *testEnv) webhook(t *testing.T, body map[string]any) response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/payment", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.HeaderWebhookSignature, "sha256="+hex.EncodeToString(middleware.SignWebhook(testWebhookSecret, raw)))

	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := response{status: resp.StatusCode, body: map[string]any{}}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out.body))
	return out
}

func (e *testEnv) login(t *testing.T) map[string]string {
	t.Helper()
	res := e.do(t, http.MethodPost, "/api/v1/admin/login", map[string]string{
		"username": "admin",
		"password": testAdminPassword,
	}, nil)
	require.Equal(t, http.StatusOK, res.status)
	return map[string]string{"Authorization": "Bearer " + res.body["token"].(string)}
}
