package transport

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/Paranoid-AF/vlive/evaltest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func next(t *testing.T, c *Conn) Message {
	t.Helper()
	select {
	case m := <-c.Messages():
		return m
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for message")
		return Message{}
	}
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func openConn(t *testing.T, srv *evaltest.Server) *Conn {
	t.Helper()
	c := New(srv.URL(), WithWriteTimeout(time.Second))
	require.NoError(t, c.Open(testContext(t)))
	require.Equal(t, KindOpened, next(t, c).Kind)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestSendBeforeOpen(t *testing.T) {
	c := New("ws://127.0.0.1:1/ws")
	assert.Equal(t, StateIdle, c.State())
	assert.ErrorIs(t, c.Send("freq:"), ErrNotConnected)
}

func TestSendAndReceiveInOrder(t *testing.T) {
	srv := evaltest.NewServer(nil)
	defer srv.Close()
	c := openConn(t, srv)
	assert.Equal(t, StateOpen, c.State())

	require.NoError(t, c.Send("eval:wire x;"))
	require.NoError(t, c.Send("freq:"))
	got, err := srv.WaitReceived(testContext(t), 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"eval:wire x;", "freq:"}, got)

	for i := 0; i < 20; i++ {
		srv.PushLog(fmt.Sprintf("line %d", i))
	}
	for i := 0; i < 20; i++ {
		m := next(t, c)
		require.Equal(t, KindFrame, m.Kind)
		assert.Equal(t, string(evaltest.LogFrame(fmt.Sprintf("line %d", i))), m.Text)
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	srv := evaltest.NewServer(nil)
	defer srv.Close()
	c := openConn(t, srv)

	require.NoError(t, c.Open(testContext(t)))
	require.NoError(t, srv.WaitClients(testContext(t), 1))
	assert.Equal(t, 1, srv.Clients())
	select {
	case m := <-c.Messages():
		t.Fatalf("unexpected message %v after second Open", m.Kind)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCloseDeliversClosedAfterFrames(t *testing.T) {
	srv := evaltest.NewServer(evaltest.Echo("1 Hz"))
	defer srv.Close()
	c := openConn(t, srv)

	require.NoError(t, c.Send("freq:"))
	assert.Equal(t, KindFrame, next(t, c).Kind)

	require.NoError(t, c.Close())
	m := next(t, c)
	assert.Equal(t, KindClosed, m.Kind)
	assert.NoError(t, m.Err)
	assert.Equal(t, StateClosed, c.State())

	assert.ErrorIs(t, c.Send("freq:"), ErrNotConnected)
	assert.NoError(t, c.Close())
	select {
	case m := <-c.Messages():
		t.Fatalf("second Close delivered %v", m.Kind)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestServerCloseIsReported(t *testing.T) {
	srv := evaltest.NewServer(nil)
	defer srv.Close()
	c := openConn(t, srv)
	require.NoError(t, srv.WaitClients(testContext(t), 1))

	srv.PushLog("bye")
	srv.DropClients()

	assert.Equal(t, KindFrame, next(t, c).Kind)
	assert.Equal(t, KindClosed, next(t, c).Kind)
	assert.Equal(t, StateClosed, c.State())
	assert.ErrorIs(t, c.Send("pull:"), ErrNotConnected)
}

func TestDialFailure(t *testing.T) {
	srv := evaltest.NewServer(nil)
	url := srv.URL()
	srv.Close()

	c := New(url, WithHandshakeTimeout(time.Second))
	err := c.Open(testContext(t))
	require.Error(t, err)
	m := next(t, c)
	assert.Equal(t, KindErrored, m.Kind)
	assert.Error(t, m.Err)
	assert.Equal(t, StateErrored, c.State())
	assert.True(t, errors.Is(c.Send("freq:"), ErrNotConnected))
}

func TestReopenAfterClose(t *testing.T) {
	srv := evaltest.NewServer(nil)
	defer srv.Close()
	c := openConn(t, srv)

	require.NoError(t, c.Close())
	assert.Equal(t, KindClosed, next(t, c).Kind)

	require.NoError(t, c.Open(testContext(t)))
	assert.Equal(t, KindOpened, next(t, c).Kind)
	require.NoError(t, c.Send("pull:"))
	got, err := srv.WaitReceived(testContext(t), 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"pull:"}, got)
}

func TestStateStrings(t *testing.T) {
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "errored", StateErrored.String())
	assert.Equal(t, "frame", KindFrame.String())
}
