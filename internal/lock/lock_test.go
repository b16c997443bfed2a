package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLocker() (*RedisLocker, redismock.ClientMock) {
	db, mock := redismock.NewClientMock()
	l := NewRedisLocker(db)
	l.newToken = func() string { return "token-1" }
	return l, mock
}

func TestRedisLocker_AcquireAndRelease(t *testing.T) {
	l, mock := newTestLocker()
	ctx := context.Background()

	mock.ExpectSetNX(keyPrefix+"weekly-penalties", "token-1", 10*time.Minute).SetVal(true)
	release, err := l.Acquire(ctx, "weekly-penalties", 10*time.Minute)
	require.NoError(t, err)
	require.NotNil(t, release)

	mock.ExpectEval(releaseScript, []string{keyPrefix + "weekly-penalties"}, "token-1").SetVal(int64(1))
	require.NoError(t, release(ctx))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisLocker_AlreadyHeld(t *testing.T) {
	l, mock := newTestLocker()

	mock.ExpectSetNX(keyPrefix+"missed-workouts", "token-1", time.Minute).SetVal(false)
	release, err := l.Acquire(context.Background(), "missed-workouts", time.Minute)
	assert.ErrorIs(t, err, ErrNotAcquired)
	assert.Nil(t, release)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisLocker_RedisDown(t *testing.T) {
	l, mock := newTestLocker()

	mock.ExpectSetNX(keyPrefix+"missed-workouts", "token-1", time.Minute).SetErr(errors.New("connection refused"))
	_, err := l.Acquire(context.Background(), "missed-workouts", time.Minute)
	assert.EqualError(t, err, "connection refused")
	assert.NotErrorIs(t, err, ErrNotAcquired)
}

func TestLocalLocker(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()

	release, err := l.Acquire(ctx, "missed-workouts", time.Minute)
	require.NoError(t, err)

	_, err = l.Acquire(ctx, "missed-workouts", time.Minute)
	assert.ErrorIs(t, err, ErrNotAcquired)

	other, err := l.Acquire(ctx, "weekly-penalties", time.Minute)
	require.NoError(t, err, "names are independent")
	require.NoError(t, other(ctx))

	require.NoError(t, release(ctx))
	require.NoError(t, release(ctx), "second release is a no-op")

	again, err := l.Acquire(ctx, "missed-workouts", time.Minute)
	require.NoError(t, err)
	assert.NoError(t, again(ctx))
}
