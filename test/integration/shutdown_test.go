package integration

import (
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	th "github.com/Tyrowin/collabchat/test/testhelpers"
)

func TestGracefulShutdownWithClients(t *testing.T) {
	env := th.StartServer(t, "", nil)
	clients := make([]*websocket.Conn, 3)
	for i := range clients {
		clients[i], _ = th.Connect(t, env)
	}
	th.WaitFor(t, time.Second, func() bool { return env.Server.Hub().Count() == len(clients) })

	require.NoError(t, env.Server.Hub().Shutdown(2*time.Second))
	assert.Zero(t, env.Server.Hub().Count())

	for _, conn := range clients {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, _, err := conn.ReadMessage()
		assert.Error(t, err, "connection is closed by the server")
	}

	late, _, err := th.ConnectWebSocket(env.WSURL, th.TestOrigin)
	if err == nil {
		// the upgrade can succeed, but the hub refuses the connection
		require.NoError(t, late.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, _, err = late.ReadMessage()
		assert.Error(t, err)
		_ = late.Close()
	}
	assert.Zero(t, env.Server.Hub().Count())
}

func TestNoClientsShutdown(t *testing.T) {
	env := th.StartServer(t, "", nil)

	start := time.Now()
	require.NoError(t, env.Server.Hub().Shutdown(time.Second))
	assert.Less(t, time.Since(start), time.Second)
}

func TestShutdownIsRepeatable(t *testing.T) {
	env := th.StartServer(t, "", nil)
	th.Connect(t, env)

	require.NoError(t, env.Server.Hub().Shutdown(time.Second))
	require.NoError(t, env.Server.Hub().Shutdown(time.Second))
}
