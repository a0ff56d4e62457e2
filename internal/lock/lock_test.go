package lock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLockerWithoutClient(t *testing.T) {
	assert.Nil(t, NewLocker(nil))
}

func TestGuardNilReceiverIsNoOp(t *testing.T) {
	var l *Locker

	release, err := l.Guard(context.Background(), "summit:payment:1", time.Second)
	require.NoError(t, err)
	require.NotNil(t, release)
	release()
}

func TestTryLockValidatesInput(t *testing.T) {
	var l *Locker
	_, _, err := l.TryLock(context.Background(), "key", time.Second)
	assert.Error(t, err)

	assert.NoError(t, l.Release(context.Background(), "key", "token"))
}
