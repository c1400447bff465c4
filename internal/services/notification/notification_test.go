package notification_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/abo-portal/internal/models"
	"github.com/magabrotheeeer/abo-portal/internal/services/notification"
	"github.com/magabrotheeeer/abo-portal/internal/storage/kv"
	"github.com/magabrotheeeer/abo-portal/internal/storage/records"
)

// Мок для Composer
type ComposerMock struct {
	mock.Mock
}

func (m *ComposerMock) Compose(ctx context.Context, to, subject, body string) error {
	args := m.Called(ctx, to, subject, body)
	return args.Error(0)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func newService(t *testing.T, composer notification.Composer) (*notification.Service, *records.Store[models.Message]) {
	t.Helper()
	store := records.New[models.Message](kv.NewMemory(), records.KeyMessages, newNoopLogger())
	return notification.NewService(store, composer, nil, newNoopLogger()), store
}

func TestSend_PersistsAndComposes(t *testing.T) {
	composer := new(ComposerMock)
	composer.On("Compose", mock.Anything, "anna@example.de", "Hello", "Body").Return(nil).Once()
	svc, store := newService(t, composer)

	msg, err := svc.Send(context.Background(), "  Anna@Example.DE ", "Hello", "Body")
	require.NoError(t, err)
	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, "anna@example.de", msg.RecipientEmail)
	assert.False(t, msg.Read)

	stored := store.Load(context.Background())
	require.Len(t, stored, 1)
	assert.Equal(t, msg.ID, stored[0].ID)
	composer.AssertExpectations(t)
}

func TestSend_ComposerFailureIsNotFatal(t *testing.T) {
	composer := new(ComposerMock)
	composer.On("Compose", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("smtp down")).Once()
	svc, _ := newService(t, composer)

	_, err := svc.Send(context.Background(), "a@b.de", "s", "b")
	require.NoError(t, err)
	assert.Equal(t, 1, svc.UnreadCount(context.Background(), "a@b.de"))
	composer.AssertExpectations(t)
}

func TestSend_InvalidRecipient(t *testing.T) {
	svc, store := newService(t, nil)

	_, err := svc.Send(context.Background(), "not-an-email", "s", "b")
	assert.ErrorIs(t, err, models.ErrValidation)
	assert.Empty(t, store.Load(context.Background()))
}

func TestInboxFor_NewestFirstAndCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t, nil)
	base := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.Save(ctx, []models.Message{
		{ID: "1", RecipientEmail: "a@b.de", Subject: "first", CreatedAt: base},
		{ID: "2", RecipientEmail: "other@b.de", Subject: "foreign", CreatedAt: base.Add(time.Minute)},
		{ID: "3", RecipientEmail: "a@b.de", Subject: "third", CreatedAt: base.Add(2 * time.Minute)},
		{ID: "4", RecipientEmail: "a@b.de", Subject: "second", CreatedAt: base.Add(time.Minute)},
	}))

	inbox := svc.InboxFor(ctx, "A@B.de")
	require.Len(t, inbox, 3)
	assert.Equal(t, []string{"3", "4", "1"}, []string{inbox[0].ID, inbox[1].ID, inbox[2].ID})

	assert.Empty(t, svc.InboxFor(ctx, "nobody@b.de"))
}

func TestMarkAllRead_Idempotent(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, nil)
	for i := 0; i < 3; i++ {
		_, err := svc.Send(ctx, "a@b.de", "s", "b")
		require.NoError(t, err)
	}
	_, err := svc.Send(ctx, "c@d.de", "s", "b")
	require.NoError(t, err)

	assert.Equal(t, 3, svc.UnreadCount(ctx, "a@b.de"))

	n, err := svc.MarkAllRead(ctx, "A@b.de")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 0, svc.UnreadCount(ctx, "a@b.de"))
	assert.Equal(t, 1, svc.UnreadCount(ctx, "c@d.de"))

	n, err = svc.MarkAllRead(ctx, "a@b.de")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Len(t, svc.InboxFor(ctx, "a@b.de"), 3)
}

func TestLogComposer(t *testing.T) {
	c := notification.NewLogComposer(newNoopLogger())
	assert.NoError(t, c.Compose(context.Background(), "a@b.de", "s", "b"))
}
