package realtime

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialTestSocket(t *testing.T) *socket {
	t.Helper()
	svc := newFakeService(t)
	sock, err := dialSocket(context.Background(), nil, svc.url(), "tok", slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return sock
}

func TestSocket_WriteFailureReachesOnClose(t *testing.T) {
	sock := dialTestSocket(t)
	writeErr := errors.New("write: broken pipe")

	sock.closeWith(writeErr)

	closed := make(chan error, 1)
	sock.start(nil, func(err error) { closed <- err })

	select {
	case err := <-closed:
		assert.ErrorIs(t, err, writeErr)
	case <-time.After(waitTimeout):
		t.Fatal("onClose never called")
	}
	assert.False(t, sock.Open())
}

func TestSocket_LocalCloseIsClean(t *testing.T) {
	sock := dialTestSocket(t)

	closed := make(chan error, 1)
	sock.start(nil, func(err error) { closed <- err })
	require.NoError(t, sock.Close())

	select {
	case err := <-closed:
		assert.NoError(t, err)
	case <-time.After(waitTimeout):
		t.Fatal("onClose never called")
	}
}

func TestSocket_FirstCauseWins(t *testing.T) {
	sock := dialTestSocket(t)
	first := errors.New("write: connection reset")

	sock.closeWith(first)
	sock.closeWith(nil)
	sock.closeWith(errors.New("later"))

	assert.ErrorIs(t, sock.closeCause(), first)
	assert.ErrorIs(t, sock.Send(map[string]string{"type": "ping"}), ErrSocketClosed)
}
