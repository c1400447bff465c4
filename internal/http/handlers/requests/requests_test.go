package requests_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/abo-portal/internal/http/handlers/requests"
	"github.com/magabrotheeeer/abo-portal/internal/http/middlewarectx"
	"github.com/magabrotheeeer/abo-portal/internal/lib/jwt"
	"github.com/magabrotheeeer/abo-portal/internal/models"
	"github.com/magabrotheeeer/abo-portal/internal/services/access"
	"github.com/magabrotheeeer/abo-portal/internal/services/auth"
	"github.com/magabrotheeeer/abo-portal/internal/services/subscription"
	"github.com/magabrotheeeer/abo-portal/internal/session"
	"github.com/magabrotheeeer/abo-portal/internal/storage/kv"
	"github.com/magabrotheeeer/abo-portal/internal/storage/records"
)

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

type fixture struct {
	router http.Handler
	subs   *subscription.Service
	users  *auth.Service
	maker  *jwt.MakerImpl
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	log := newNoopLogger()
	backend := kv.NewMemory()
	users := auth.NewService(records.New[models.User](backend, records.KeyUsers, log), nil, log)
	subs := subscription.NewService(
		records.New[models.Request](backend, records.KeyRequests, log),
		subscription.NewCatalog(models.DefaultPlans()),
		nil, "operator@example.com", nil, log,
	)
	maker := jwt.NewJWTMaker("test_secret_key", time.Hour)
	h := requests.New(log, subs, users)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Get("/plans", h.Plans)
	r.With(middlewarectx.OptionalJWTMiddleware(maker, log)).Post("/requests", h.Create)
	r.Group(func(r chi.Router) {
		r.Use(middlewarectx.JWTMiddleware(maker, log))
		r.Use(middlewarectx.RequireRole(jwt.RoleUser, log))
		r.Get("/requests/mine", h.Mine)
		r.Post("/requests/{id}/withdraw", h.Withdraw)
		r.Post("/requests/{id}/proof", h.UploadProof)
		r.Get("/requests/{id}/access", h.Access)
	})
	return fixture{router: r, subs: subs, users: users, maker: maker}
}

func (f fixture) register(t *testing.T, email string) (models.User, string) {
	t.Helper()
	user, err := f.users.Register(context.Background(), session.NewMemory(""), email, "secret1", "")
	require.NoError(t, err)
	token, err := f.maker.GenerateToken(user.ID, user.Email, jwt.RoleUser)
	require.NoError(t, err)
	return user, token
}

type envelope struct {
	Status string          `json:"status"`
	Error  string          `json:"error"`
	Data   json.RawMessage `json:"data"`
}

func (f fixture) do(t *testing.T, method, path, token string, body any) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	var env envelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	return rec.Code, env
}

func form(email string) subscription.CreateInput {
	return subscription.CreateInput{
		PlanID:    "apple-one",
		Cycle:     models.CycleMonthly,
		Payment:   models.PaymentBankTransfer,
		StartDate: "2025-01-31",
		Requester: models.Requester{Name: "Anna", Email: email},
	}
}

func TestPlans(t *testing.T) {
	f := newFixture(t)
	code, env := f.do(t, http.MethodGet, "/plans", "", nil)
	require.Equal(t, http.StatusOK, code)
	var plans []models.Plan
	require.NoError(t, json.Unmarshal(env.Data, &plans))
	assert.Equal(t, models.DefaultPlans(), plans)
}

func TestCreate_GuestAndOwned(t *testing.T) {
	f := newFixture(t)
	user, token := f.register(t, "anna@example.com")

	code, env := f.do(t, http.MethodPost, "/requests", "", form("guest@example.com"))
	require.Equal(t, http.StatusCreated, code)
	var guest models.Request
	require.NoError(t, json.Unmarshal(env.Data, &guest))
	assert.Nil(t, guest.UserID)
	assert.Equal(t, models.StatusPendingReview, guest.Status)

	code, env = f.do(t, http.MethodPost, "/requests", token, form("other@example.com"))
	require.Equal(t, http.StatusCreated, code)
	var owned models.Request
	require.NoError(t, json.Unmarshal(env.Data, &owned))
	require.NotNil(t, owned.UserID)
	assert.Equal(t, user.ID, *owned.UserID)

	code, env = f.do(t, http.MethodPost, "/requests", "", subscription.CreateInput{PlanID: "netflix"})
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "Error", env.Status)

	code, _ = f.do(t, http.MethodPost, "/requests", "garbage-token", form("guest@example.com"))
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestMine_WithdrawAndOwnership(t *testing.T) {
	f := newFixture(t)
	_, annaToken := f.register(t, "anna@example.com")
	_, bobToken := f.register(t, "bob@example.com")

	// гостевая заявка на тот же email тоже видна пользователю
	code, env := f.do(t, http.MethodPost, "/requests", "", form("Anna@Example.com"))
	require.Equal(t, http.StatusCreated, code)
	var created models.Request
	require.NoError(t, json.Unmarshal(env.Data, &created))

	code, env = f.do(t, http.MethodGet, "/requests/mine", annaToken, nil)
	require.Equal(t, http.StatusOK, code)
	var mine []models.Request
	require.NoError(t, json.Unmarshal(env.Data, &mine))
	require.Len(t, mine, 1)
	assert.Equal(t, created.ID, mine[0].ID)

	code, env = f.do(t, http.MethodPost, "/requests/"+created.ID+"/withdraw", bobToken, nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "request not found", env.Error)

	code, env = f.do(t, http.MethodPost, "/requests/"+created.ID+"/withdraw", annaToken, nil)
	require.Equal(t, http.StatusOK, code)
	var withdrawn models.Request
	require.NoError(t, json.Unmarshal(env.Data, &withdrawn))
	assert.Equal(t, models.StatusWithdrawn, withdrawn.Status)

	code, env = f.do(t, http.MethodPost, "/requests/"+created.ID+"/withdraw", annaToken, nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "invalid status transition", env.Error)
}

func TestProofAndAccessGate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, token := f.register(t, "anna@example.com")

	code, env := f.do(t, http.MethodPost, "/requests", token, form("anna@example.com"))
	require.Equal(t, http.StatusCreated, code)
	var created models.Request
	require.NoError(t, json.Unmarshal(env.Data, &created))

	decision := func() access.Decision {
		t.Helper()
		code, env := f.do(t, http.MethodGet, "/requests/"+created.ID+"/access", token, nil)
		require.Equal(t, http.StatusOK, code)
		var d access.Decision
		require.NoError(t, json.Unmarshal(env.Data, &d))
		return d
	}

	assert.Equal(t, access.PromptNotActive, decision().Prompt)

	_, err := f.subs.Transition(ctx, created.ID, models.StatusActive, "operator@example.com")
	require.NoError(t, err)
	_, err = f.subs.SetAccessLink(ctx, created.ID, "https://family.example.com/invite", "operator@example.com")
	require.NoError(t, err)
	assert.Equal(t, access.PromptUploadProof, decision().Prompt)

	// ссылка скрыта в списке, пока доступ не открыт
	_, env = f.do(t, http.MethodGet, "/requests/mine", token, nil)
	var mine []models.Request
	require.NoError(t, json.Unmarshal(env.Data, &mine))
	require.Len(t, mine, 1)
	assert.Nil(t, mine[0].AccessLink)

	code, _ = f.do(t, http.MethodPost, "/requests/"+created.ID+"/proof", token, requests.ProofRequest{Payload: "data:image/png;base64,AAAA"})
	assert.Equal(t, http.StatusUnprocessableEntity, code)

	code, _ = f.do(t, http.MethodPost, "/requests/"+created.ID+"/proof", token,
		requests.ProofRequest{Payload: "data:image/png;base64,AAAA", Mimetype: "image/png"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, access.PromptAwaitingVerification, decision().Prompt)

	_, err = f.subs.VerifyProof(ctx, created.ID, "operator@example.com")
	require.NoError(t, err)
	d := decision()
	assert.True(t, d.Visible)
	require.NotNil(t, d.AccessLink)
	assert.Equal(t, "https://family.example.com/invite", *d.AccessLink)
}
