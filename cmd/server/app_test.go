package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	docmodels "doccontrol/internal/document/models"
	jwttoken "doccontrol/internal/jwt_token"
	"doccontrol/internal/platform/config"
	id "doccontrol/pkg/domain"
	"doccontrol/pkg/testutil"
)

// inMemoryConfig clears every backend variable so newApp stays in process.
func inMemoryConfig(t *testing.T) config.Config {
	t.Helper()
	for _, key := range []string{"DATABASE_URL", "REDIS_URL", "KAFKA_BROKERS", "EXTRACTION_URL"} {
		t.Setenv(key, "")
	}
	t.Setenv("JWT_SIGNING_KEY", "app-test-key")
	t.Setenv("LOG_LEVEL", "error")
	cfg, err := config.FromEnv()
	require.NoError(t, err)
	return cfg
}

type apiClient struct {
	t       *testing.T
	handler http.Handler
	jwt     *jwttoken.JWTService
}

func (c apiClient) do(p id.Principal, method, path string, body any) (int, testutil.Envelope) {
	c.t.Helper()
	req := testutil.NewJSONRequest(c.t, method, path, body)
	token, err := c.jwt.GenerateAccessToken(p, time.Minute)
	require.NoError(c.t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := testutil.DoRequest(c.handler, req)
	return rr.Code, testutil.UnmarshalEnvelope(c.t, rr)
}

func TestApprovalFlowInMemory(t *testing.T) {
	ctx := context.Background()
	a, err := newApp(ctx, inMemoryConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() { a.close(ctx) })

	demo, err := a.seed(ctx, time.Minute)
	require.NoError(t, err)
	require.Len(t, demo.Members, 2)

	api := apiClient{t: t, handler: a.router(), jwt: a.jwt}
	admin := id.Principal{UserID: demo.Admin.ID, TenantID: demo.Tenant.ID, Role: id.RoleAdmin}
	alice := id.Principal{UserID: demo.Members[0].ID, TenantID: demo.Tenant.ID, Role: id.RoleMember}
	contract := demo.Contract.ID.String()

	status, env := api.do(admin, http.MethodPut, "/contracts/"+contract+"/distribution-rules", map[string]any{
		"rules": []map[string]any{
			{"user_id": demo.Members[0].ID.String(), "areas": []string{"Civil"}},
			{"user_id": demo.Members[1].ID.String(), "areas": []string{"Civil", "Electrical"}},
		},
	})
	require.Equal(t, http.StatusOK, status, env.Message)

	status, env = api.do(alice, http.MethodPost, "/documents", map[string]any{
		"code":             "DOC-001",
		"area":             "Civil",
		"contract_id":      contract,
		"responsible_id":   alice.UserID.String(),
		"elaboration_date": "2026-01-15",
		"attachment":       map[string]any{"link": "https://files.example/doc-001.pdf", "name": "doc-001.pdf", "type": "application/pdf"},
	})
	require.Equal(t, http.StatusCreated, status, env.Message)
	var doc docmodels.Document
	require.NoError(t, json.Unmarshal(env.Data, &doc))
	assert.Equal(t, docmodels.StatusPendingApproval, doc.Status)

	status, env = api.do(admin, http.MethodPost, "/documents/"+doc.ID.String()+"/status", map[string]any{"status": "approved"})
	require.Equal(t, http.StatusOK, status, env.Message)
	require.NotNil(t, env.NotificationsSent)
	assert.Equal(t, 2, *env.NotificationsSent)

	status, env = api.do(alice, http.MethodGet, "/notifications/unread-count", nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"count":1}`, string(env.Data))

	rr := testutil.DoRequest(api.handler, testutil.NewRequest(t, http.MethodGet, "/metrics"))
	testutil.AssertStatusOK(t, rr)
	assert.Contains(t, rr.Body.String(), "doccontrol_http_requests_total")
}

func TestHealthWithoutBackends(t *testing.T) {
	ctx := context.Background()
	a, err := newApp(ctx, inMemoryConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() { a.close(ctx) })

	rr := testutil.DoRequest(a.router(), testutil.NewRequest(t, http.MethodGet, "/health"))
	testutil.AssertStatusOK(t, rr)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}

func TestTokenCommand(t *testing.T) {
	cfg := inMemoryConfig(t)
	userID, tenantID := id.NewUserID(), id.NewTenantID()

	t.Run("mints a verifiable token", func(t *testing.T) {
		var out bytes.Buffer
		cmd := rootCmd()
		cmd.SetOut(&out)
		cmd.SetArgs([]string{"token", "--env-file", "",
			"--user", userID.String(), "--tenant", tenantID.String(),
			"--role", "member", "--permission", string(id.PermissionBroadcast)})
		require.NoError(t, cmd.Execute())

		svc := jwttoken.NewJWTService(cfg.JWT.SigningKey, cfg.JWT.Issuer, cfg.JWT.Audience)
		claims, err := svc.ValidateToken(strings.TrimSpace(out.String()))
		require.NoError(t, err)
		assert.Equal(t, userID.String(), claims.Subject)
	})

	t.Run("rejects an unknown role", func(t *testing.T) {
		cmd := rootCmd()
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetArgs([]string{"token", "--env-file", "",
			"--user", userID.String(), "--tenant", tenantID.String(), "--role", "owner"})
		assert.ErrorContains(t, cmd.Execute(), "--role")
	})
}

func TestDatabaseCommandsNeedAURL(t *testing.T) {
	inMemoryConfig(t)
	cmd := rootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"migrate", "version", "--env-file", ""})
	assert.ErrorContains(t, cmd.Execute(), "DATABASE_URL")
}
