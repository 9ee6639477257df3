package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/CyberwizD/gate-control/internal/models"
)

func newTestDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

func TestTokenStore_Lookup(t *testing.T) {
	t.Run("returns the stored token", func(t *testing.T) {
		db, mock := newTestDB(t)
		store := NewTokenStore(db, "")

		mock.ExpectQuery(`SELECT \* FROM "device_tokens" WHERE device_id = \$1 LIMIT \$[0-9]+`).
			WithArgs("default", 1).
			WillReturnRows(sqlmock.NewRows([]string{"device_id", "fcm_token", "updated_at"}).
				AddRow("default", "tok-123", time.Now()))

		token, err := store.Lookup(context.Background(), "default")
		require.NoError(t, err)
		assert.Equal(t, "tok-123", token)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing row maps to ErrTokenNotFound", func(t *testing.T) {
		db, mock := newTestDB(t)
		store := NewTokenStore(db, "")

		mock.ExpectQuery(`SELECT \* FROM "device_tokens" WHERE device_id = \$1`).
			WithArgs("gate-2", 1).
			WillReturnRows(sqlmock.NewRows([]string{"device_id", "fcm_token", "updated_at"}))

		_, err := store.Lookup(context.Background(), "gate-2")
		assert.ErrorIs(t, err, ErrTokenNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty token maps to ErrTokenNotFound", func(t *testing.T) {
		db, mock := newTestDB(t)
		store := NewTokenStore(db, "")

		mock.ExpectQuery(`SELECT \* FROM "device_tokens"`).
			WillReturnRows(sqlmock.NewRows([]string{"device_id", "fcm_token", "updated_at"}).
				AddRow("default", "", time.Now()))

		_, err := store.Lookup(context.Background(), "default")
		assert.ErrorIs(t, err, ErrTokenNotFound)
	})

	t.Run("database errors are wrapped", func(t *testing.T) {
		db, mock := newTestDB(t)
		store := NewTokenStore(db, "")

		mock.ExpectQuery(`SELECT \* FROM "device_tokens"`).
			WillReturnError(errors.New("connection reset"))

		_, err := store.Lookup(context.Background(), "default")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrTokenNotFound)
		assert.Contains(t, err.Error(), "connection reset")
	})
}

func TestTokenStore_Upsert(t *testing.T) {
	db, mock := newTestDB(t)
	store := NewTokenStore(db, "")

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "device_tokens" .* ON CONFLICT \("device_id"\) DO UPDATE SET "fcm_token"="excluded"."fcm_token","updated_at"="excluded"."updated_at"`).
		WithArgs("default", "tok-new", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, store.Upsert(context.Background(), "default", "tok-new"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommandStore_Create(t *testing.T) {
	db, mock := newTestDB(t)
	store := NewCommandStore(db, "")

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "gate_commands"`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	cmd := &models.Command{
		ID:       "c-1",
		Kind:     models.CommandOpenGate,
		DeviceID: models.DefaultDeviceID,
		Status:   models.StatusPending,
	}
	require.NoError(t, store.Create(context.Background(), cmd))
	assert.False(t, cmd.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommandStore_Get(t *testing.T) {
	db, mock := newTestDB(t)
	store := NewCommandStore(db, "")

	mock.ExpectQuery(`SELECT \* FROM "gate_commands" WHERE id = \$1 LIMIT \$[0-9]+`).
		WithArgs("c-1", 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "command", "phone_number", "message", "device_id", "status"}).
			AddRow("c-1", "send_sms", "+37060000000", "open", "default", "pending"))

	cmd, err := store.Get(context.Background(), "c-1")
	require.NoError(t, err)
	assert.Equal(t, models.CommandSendSMS, cmd.Kind)
	assert.Equal(t, "+37060000000", cmd.PhoneNumber)

	mock.ExpectQuery(`SELECT \* FROM "gate_commands" WHERE id = \$1`).
		WithArgs("missing", 1).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err = store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrCommandNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommandStore_UpdateStatus(t *testing.T) {
	db, mock := newTestDB(t)
	store := NewCommandStore(db, "")

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "gate_commands" SET .* WHERE id = \$[0-9]+`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, store.UpdateStatus(context.Background(), "c-1", models.StatusAttempted, ""))

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "gate_commands"`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := store.UpdateStatus(context.Background(), "gone", models.StatusFailed, "push rejected")
	assert.ErrorIs(t, err, ErrCommandNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
