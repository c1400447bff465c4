package subscription_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/abo-portal/internal/models"
	"github.com/magabrotheeeer/abo-portal/internal/services/notification"
	"github.com/magabrotheeeer/abo-portal/internal/services/subscription"
	"github.com/magabrotheeeer/abo-portal/internal/storage/kv"
	"github.com/magabrotheeeer/abo-portal/internal/storage/records"
)

const operatorEmail = "operator@example.com"

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

type fixture struct {
	svc      *subscription.Service
	store    *records.Store[models.Request]
	notifier *notification.Service
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	log := newNoopLogger()
	backend := kv.NewMemory()
	store := records.New[models.Request](backend, records.KeyRequests, log)
	notifier := notification.NewService(records.New[models.Message](backend, records.KeyMessages, log), nil, nil, log)
	svc := subscription.NewService(store, subscription.NewCatalog(models.DefaultPlans()), notifier, operatorEmail, nil, log)
	return fixture{svc: svc, store: store, notifier: notifier}
}

func (f fixture) seed(t *testing.T, list ...models.Request) {
	t.Helper()
	require.NoError(t, f.store.Save(context.Background(), list))
}

func seeded(id string, status models.Status, payment models.PaymentMethod) models.Request {
	return models.Request{
		ID:          id,
		PlanID:      "apple-one",
		Cycle:       models.CycleMonthly,
		Price:       14.99,
		Status:      status,
		CreatedAt:   time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC),
		Requester:   models.Requester{Name: "Anna", Email: "anna@example.com"},
		Payment:     payment,
		StartDate:   time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		NextBilling: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
		History:     []models.HistoryEntry{{At: time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC), Actor: "guest", Action: "created"}},
	}
}

func validInput() subscription.CreateInput {
	return subscription.CreateInput{
		PlanID:    "apple-one",
		Cycle:     models.CycleMonthly,
		Payment:   models.PaymentBankTransfer,
		StartDate: "2025-01-31",
		Requester: models.Requester{Name: "Anna", Email: "anna@example.com", Phone: "0151 000"},
	}
}

func TestCreate_GuestRequest(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	r, err := f.svc.Create(ctx, nil, validInput())
	require.NoError(t, err)

	assert.NotEmpty(t, r.ID)
	assert.Equal(t, models.StatusPendingReview, r.Status)
	assert.Equal(t, 14.99, r.Price)
	assert.Nil(t, r.UserID)
	assert.Equal(t, time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC), r.NextBilling)
	require.Len(t, r.History, 1)
	assert.Equal(t, "guest", r.History[0].Actor)
	assert.Equal(t, "created", r.History[0].Action)

	stored, err := f.svc.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, r.ID, stored.ID)

	inbox := f.notifier.InboxFor(ctx, operatorEmail)
	require.Len(t, inbox, 1)
	assert.Equal(t, "Abo-Anfrage: Apple One (monatlich)", inbox[0].Subject)
	assert.Contains(t, inbox[0].Body, "Plan: Apple One (monatlich)")
	assert.Contains(t, inbox[0].Body, "Telefon: 0151 000")
	assert.Contains(t, inbox[0].Body, "Adresse: -")
	assert.Contains(t, inbox[0].Body, "Abo-ID: "+r.ID)
}

func TestCreate_ComingSoonPlanIsPreRegistration(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	in := validInput()
	in.PlanID = "apple-music-only"
	r, err := f.svc.Create(ctx, nil, in)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPreRegistration, r.Status)

	inbox := f.notifier.InboxFor(ctx, operatorEmail)
	require.Len(t, inbox, 1)
	assert.Equal(t, "Vormerkung: Apple Music Only (monatlich)", inbox[0].Subject)
	assert.Contains(t, inbox[0].Body, "Wunschtermin: 2025-01-31")
}

func TestCreate_YearlyCycle(t *testing.T) {
	f := newFixture(t)
	in := validInput()
	in.Cycle = models.CycleYearly
	in.StartDate = "2024-02-29"

	r, err := f.svc.Create(context.Background(), nil, in)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC), r.NextBilling)
}

func TestCreate_DefaultStartIsToday(t *testing.T) {
	f := newFixture(t)
	in := validInput()
	in.StartDate = ""

	r, err := f.svc.Create(context.Background(), nil, in)
	require.NoError(t, err)
	now := time.Now().UTC()
	assert.Equal(t, time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), r.StartDate)
}

func TestCreate_OwnedRequestVisibleToUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := &models.User{ID: "u-1", Email: "anna@example.com"}

	r, err := f.svc.Create(ctx, owner, validInput())
	require.NoError(t, err)
	require.NotNil(t, r.UserID)
	assert.Equal(t, "u-1", *r.UserID)
	assert.Equal(t, "anna@example.com", r.History[0].Actor)

	guest := validInput()
	guest.Email = "ANNA@example.com"
	_, err = f.svc.Create(ctx, nil, guest)
	require.NoError(t, err)
	other := validInput()
	other.Email = "bob@example.com"
	_, err = f.svc.Create(ctx, nil, other)
	require.NoError(t, err)

	assert.Len(t, f.svc.ListForUser(ctx, owner), 2)
	assert.Len(t, f.svc.ListForUser(ctx, &models.User{ID: "u-2", Email: "bob@example.com"}), 1)
	assert.Empty(t, f.svc.ListForUser(ctx, nil))
}

func TestCreate_Validation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(in *subscription.CreateInput)
		wantErr error
	}{
		{name: "unknown plan", mutate: func(in *subscription.CreateInput) { in.PlanID = "netflix" }, wantErr: subscription.ErrUnknownPlan},
		{name: "missing name", mutate: func(in *subscription.CreateInput) { in.Name = "   " }, wantErr: models.ErrValidation},
		{name: "bad email", mutate: func(in *subscription.CreateInput) { in.Email = "anna@example" }, wantErr: models.ErrValidation},
		{name: "bad cycle", mutate: func(in *subscription.CreateInput) { in.Cycle = "weekly" }, wantErr: models.ErrValidation},
		{name: "bad payment", mutate: func(in *subscription.CreateInput) { in.Payment = "card" }, wantErr: models.ErrValidation},
		{name: "bad start date", mutate: func(in *subscription.CreateInput) { in.StartDate = "31.01.2025" }, wantErr: models.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t)
			in := validInput()
			tt.mutate(&in)

			_, err := f.svc.Create(ctx, nil, in)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.ErrorIs(t, err, models.ErrValidation)
			assert.Empty(t, f.svc.List(ctx, ""))
			assert.Empty(t, f.notifier.InboxFor(ctx, operatorEmail))
		})
	}
}

func TestTransition_Table(t *testing.T) {
	legal := map[models.Status][]models.Status{
		models.StatusPreRegistration: {models.StatusPendingReview, models.StatusActive, models.StatusRejected, models.StatusWithdrawn},
		models.StatusPendingReview:   {models.StatusActive, models.StatusRejected, models.StatusWithdrawn},
		models.StatusActive:          {models.StatusPaused, models.StatusCancelled},
		models.StatusPaused:          {models.StatusActive, models.StatusCancelled},
	}

	for _, from := range models.Statuses {
		for _, to := range models.Statuses {
			t.Run(fmt.Sprintf("%s to %s", from, to), func(t *testing.T) {
				ctx := context.Background()
				f := newFixture(t)
				f.seed(t, seeded("r-1", from, models.PaymentCash))
				before, err := f.svc.Get(ctx, "r-1")
				require.NoError(t, err)

				r, err := f.svc.Transition(ctx, "r-1", to, "operator")
				if contains(legal[from], to) {
					require.NoError(t, err)
					assert.Equal(t, to, r.Status)
					require.Len(t, r.History, len(before.History)+1)
					assert.Equal(t, fmt.Sprintf("status %s -> %s", from, to), r.History[len(r.History)-1].Action)
					assert.Equal(t, "operator", r.History[len(r.History)-1].Actor)
					return
				}
				assert.ErrorIs(t, err, subscription.ErrInvalidTransition)
				after, err := f.svc.Get(ctx, "r-1")
				require.NoError(t, err)
				assert.Equal(t, before, after)
			})
		}
	}
}

func contains(list []models.Status, s models.Status) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func TestTransition_Errors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, seeded("r-1", models.StatusPendingReview, models.PaymentCash))

	_, err := f.svc.Transition(ctx, "missing", models.StatusActive, "operator")
	assert.ErrorIs(t, err, subscription.ErrNotFound)

	_, err = f.svc.Transition(ctx, "r-1", "archived", "operator")
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestTransition_ApprovalNoticeDependsOnPayment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	bank := seeded("r-bank", models.StatusPendingReview, models.PaymentBankTransfer)
	bank.Email = "bank@example.com"
	cash := seeded("r-cash", models.StatusPendingReview, models.PaymentCash)
	cash.Email = "cash@example.com"
	f.seed(t, bank, cash)

	_, err := f.svc.Transition(ctx, "r-bank", models.StatusActive, "operator")
	require.NoError(t, err)
	_, err = f.svc.Transition(ctx, "r-cash", models.StatusActive, "operator")
	require.NoError(t, err)

	bankInbox := f.notifier.InboxFor(ctx, "bank@example.com")
	require.Len(t, bankInbox, 1)
	assert.Equal(t, "Abo bestätigt: Apple One", bankInbox[0].Subject)
	assert.Contains(t, bankInbox[0].Body, "Dauerauftrag")

	cashInbox := f.notifier.InboxFor(ctx, "cash@example.com")
	require.Len(t, cashInbox, 1)
	assert.Contains(t, cashInbox[0].Body, "Zugangsdaten findest du ab sofort")
	assert.NotContains(t, cashInbox[0].Body, "Dauerauftrag")
}

func TestTransition_StatusNotices(t *testing.T) {
	tests := []struct {
		from    models.Status
		to      models.Status
		subject string
	}{
		{from: models.StatusPendingReview, to: models.StatusRejected, subject: "Abo-Anfrage abgelehnt: Apple One"},
		{from: models.StatusActive, to: models.StatusPaused, subject: "Abo pausiert: Apple One"},
		{from: models.StatusPaused, to: models.StatusActive, subject: "Abo fortgesetzt: Apple One"},
		{from: models.StatusActive, to: models.StatusCancelled, subject: "Abo gekündigt: Apple One"},
	}
	for _, tt := range tests {
		t.Run(tt.subject, func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t)
			f.seed(t, seeded("r-1", tt.from, models.PaymentCash))

			_, err := f.svc.Transition(ctx, "r-1", tt.to, "operator")
			require.NoError(t, err)
			inbox := f.notifier.InboxFor(ctx, "anna@example.com")
			require.Len(t, inbox, 1)
			assert.Equal(t, tt.subject, inbox[0].Subject)
		})
	}
}

type NotifierMock struct{ mock.Mock }

func (m *NotifierMock) Send(ctx context.Context, to, subject, body string) (models.Message, error) {
	args := m.Called(ctx, to, subject, body)
	return args.Get(0).(models.Message), args.Error(1)
}

func TestTransition_NotifierFailureIsNotFatal(t *testing.T) {
	ctx := context.Background()
	log := newNoopLogger()
	store := records.New[models.Request](kv.NewMemory(), records.KeyRequests, log)
	notifier := new(NotifierMock)
	notifier.On("Send", mock.Anything, "anna@example.com", mock.Anything, mock.Anything).
		Return(models.Message{}, fmt.Errorf("inbox unavailable")).Once()
	svc := subscription.NewService(store, subscription.NewCatalog(models.DefaultPlans()), notifier, operatorEmail, nil, log)
	require.NoError(t, store.Save(ctx, []models.Request{seeded("r-1", models.StatusPendingReview, models.PaymentCash)}))

	r, err := svc.Transition(ctx, "r-1", models.StatusRejected, "operator")
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, r.Status)
	notifier.AssertExpectations(t)
}

func TestWithdraw(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t,
		seeded("r-pending", models.StatusPendingReview, models.PaymentCash),
		seeded("r-pre", models.StatusPreRegistration, models.PaymentCash),
		seeded("r-active", models.StatusActive, models.PaymentCash),
	)

	for _, id := range []string{"r-pending", "r-pre"} {
		r, err := f.svc.Withdraw(ctx, id, "anna@example.com")
		require.NoError(t, err)
		assert.Equal(t, models.StatusWithdrawn, r.Status)
		assert.Len(t, r.History, 2)
	}

	before, err := f.svc.Get(ctx, "r-active")
	require.NoError(t, err)
	_, err = f.svc.Withdraw(ctx, "r-active", "anna@example.com")
	assert.ErrorIs(t, err, subscription.ErrInvalidTransition)
	after, err := f.svc.Get(ctx, "r-active")
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestBulkApply(t *testing.T) {
	ctx := context.Background()
	status := func(s models.Status) *models.Status { return &s }

	t.Run("empty selection", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.BulkApply(ctx, nil, subscription.Patch{Status: status(models.StatusActive)}, "operator", "bulk")
		assert.ErrorIs(t, err, subscription.ErrNoRecordsSelected)
	})

	t.Run("updates found and reports missing", func(t *testing.T) {
		f := newFixture(t)
		f.seed(t,
			seeded("r-1", models.StatusPendingReview, models.PaymentCash),
			seeded("r-2", models.StatusPreRegistration, models.PaymentCash),
			seeded("r-3", models.StatusPendingReview, models.PaymentCash),
		)

		res, err := f.svc.BulkApply(ctx, []string{"r-1", "r-2", "ghost", "r-1"},
			subscription.Patch{Status: status(models.StatusActive)}, "operator", "bulk approve")
		require.NoError(t, err)
		assert.Equal(t, []string{"ghost"}, res.Missing)
		require.Len(t, res.Updated, 2)

		for _, id := range []string{"r-1", "r-2"} {
			r, err := f.svc.Get(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, models.StatusActive, r.Status)
			require.Len(t, r.History, 2)
			assert.Equal(t, "bulk approve", r.History[1].Action)
		}
		untouched, err := f.svc.Get(ctx, "r-3")
		require.NoError(t, err)
		assert.Equal(t, models.StatusPendingReview, untouched.Status)
		assert.Len(t, untouched.History, 1)

		assert.Len(t, f.notifier.InboxFor(ctx, "anna@example.com"), 2)
	})

	t.Run("one illegal transition fails the whole batch", func(t *testing.T) {
		f := newFixture(t)
		f.seed(t,
			seeded("r-1", models.StatusPendingReview, models.PaymentCash),
			seeded("r-2", models.StatusCancelled, models.PaymentCash),
		)
		before := f.svc.List(ctx, "")

		_, err := f.svc.BulkApply(ctx, []string{"r-1", "r-2"},
			subscription.Patch{Status: status(models.StatusActive)}, "operator", "bulk approve")
		assert.ErrorIs(t, err, subscription.ErrInvalidTransition)
		assert.Equal(t, before, f.svc.List(ctx, ""))
		assert.Empty(t, f.notifier.InboxFor(ctx, "anna@example.com"))
	})

	t.Run("non-status patch", func(t *testing.T) {
		f := newFixture(t)
		f.seed(t,
			seeded("r-1", models.StatusActive, models.PaymentCash),
			seeded("r-2", models.StatusCancelled, models.PaymentCash),
		)
		link := " https://family.example.com/invite "
		next := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

		res, err := f.svc.BulkApply(ctx, []string{"r-1", "r-2"},
			subscription.Patch{AccessLink: &link, NextBilling: &next}, "operator", "")
		require.NoError(t, err)
		require.Len(t, res.Updated, 2)
		for _, r := range res.Updated {
			require.NotNil(t, r.AccessLink)
			assert.Equal(t, "https://family.example.com/invite", *r.AccessLink)
			assert.Equal(t, next, r.NextBilling)
			assert.Equal(t, "bulk update", r.History[len(r.History)-1].Action)
		}
		assert.Empty(t, res.Missing)
	})
}

func TestProofLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t,
		seeded("r-1", models.StatusActive, models.PaymentBankTransfer),
		seeded("r-done", models.StatusCancelled, models.PaymentBankTransfer),
	)

	_, err := f.svc.VerifyProof(ctx, "r-1", "operator")
	assert.ErrorIs(t, err, subscription.ErrNoProof)
	_, err = f.svc.RejectProof(ctx, "r-1", "operator")
	assert.ErrorIs(t, err, subscription.ErrNoProof)

	_, err = f.svc.UploadProof(ctx, "r-1", "", "image/png", "anna@example.com")
	assert.ErrorIs(t, err, models.ErrValidation)
	_, err = f.svc.UploadProof(ctx, "r-done", "data:image/png;base64,AAAA", "image/png", "anna@example.com")
	assert.ErrorIs(t, err, subscription.ErrInvalidTransition)

	r, err := f.svc.UploadProof(ctx, "r-1", "data:image/png;base64,AAAA", "image/png", "anna@example.com")
	require.NoError(t, err)
	require.NotNil(t, r.Proof)
	assert.False(t, r.Proof.Verified)
	assert.Equal(t, models.StatusActive, r.Status)
	assert.Equal(t, "proof uploaded", r.History[len(r.History)-1].Action)

	r, err = f.svc.RejectProof(ctx, "r-1", "operator")
	require.NoError(t, err)
	assert.Nil(t, r.Proof)
	assert.Equal(t, "proof rejected", r.History[len(r.History)-1].Action)

	_, err = f.svc.UploadProof(ctx, "r-1", "data:image/png;base64,BBBB", "image/png", "anna@example.com")
	require.NoError(t, err)
	r, err = f.svc.VerifyProof(ctx, "r-1", "operator")
	require.NoError(t, err)
	assert.True(t, r.Proof.Verified)
	assert.Equal(t, "proof verified", r.History[len(r.History)-1].Action)
	assert.Len(t, r.History, 5)

	inbox := f.notifier.InboxFor(ctx, "anna@example.com")
	require.Len(t, inbox, 2)
	assert.Equal(t, "Zugang freigeschaltet: Apple One", inbox[0].Subject)
	assert.Equal(t, "Nachweis abgelehnt: Apple One", inbox[1].Subject)
}

func TestSetAccessLinkAndDelete(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, seeded("r-1", models.StatusActive, models.PaymentCash))

	r, err := f.svc.SetAccessLink(ctx, "r-1", "https://family.example.com/invite", "operator")
	require.NoError(t, err)
	require.NotNil(t, r.AccessLink)
	assert.Equal(t, "access link updated", r.History[len(r.History)-1].Action)

	r, err = f.svc.SetAccessLink(ctx, "r-1", "  ", "operator")
	require.NoError(t, err)
	assert.Nil(t, r.AccessLink)
	assert.Equal(t, "access link cleared", r.History[len(r.History)-1].Action)

	require.NoError(t, f.svc.Delete(ctx, "r-1"))
	_, err = f.svc.Get(ctx, "r-1")
	assert.ErrorIs(t, err, subscription.ErrNotFound)
	assert.ErrorIs(t, f.svc.Delete(ctx, "r-1"), subscription.ErrNotFound)
}

func TestList_FilterByStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t,
		seeded("r-1", models.StatusActive, models.PaymentCash),
		seeded("r-2", models.StatusPendingReview, models.PaymentCash),
		seeded("r-3", models.StatusActive, models.PaymentCash),
	)
	assert.Len(t, f.svc.List(ctx, ""), 3)
	assert.Len(t, f.svc.List(ctx, models.StatusActive), 2)
	assert.Empty(t, f.svc.List(ctx, models.StatusWithdrawn))
}

func TestExportImport(t *testing.T) {
	ctx := context.Background()
	src := newFixture(t)
	src.seed(t,
		seeded("r-1", models.StatusActive, models.PaymentCash),
		seeded("r-2", models.StatusPendingReview, models.PaymentBankTransfer),
	)
	raw, err := src.svc.Export(ctx)
	require.NoError(t, err)

	dst := newFixture(t)
	dst.seed(t, seeded("old", models.StatusPaused, models.PaymentCash))
	n, err := dst.svc.Import(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, src.svc.List(ctx, ""), dst.svc.List(ctx, ""))

	before := dst.svc.List(ctx, "")
	_, err = dst.svc.Import(ctx, []byte(`[{"id":"x","plan":"apple-one","price":1,"status":"bogus","createdAt":"2025-01-01T00:00:00Z","email":"a@b.de"}]`))
	assert.ErrorIs(t, err, models.ErrValidation)
	assert.Equal(t, before, dst.svc.List(ctx, ""))
}

func TestCanTransition(t *testing.T) {
	assert.True(t, subscription.CanTransition(models.StatusPaused, models.StatusActive))
	assert.False(t, subscription.CanTransition(models.StatusActive, models.StatusWithdrawn))
	assert.False(t, subscription.CanTransition(models.StatusActive, models.StatusActive))
	assert.Empty(t, subscription.Allowed(models.StatusCancelled))
	assert.ElementsMatch(t, []models.Status{models.StatusActive, models.StatusCancelled}, subscription.Allowed(models.StatusPaused))
}
