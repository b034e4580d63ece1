package ip

import (
	"bufio"
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hapctl/hapctl/client"
	hapip "github.com/hapctl/hapctl/transport/ip"
)

// pipeConn builds a *conn around one side of a net.Pipe, bypassing
// dial/Pair-Verify so SubscribeCharacteristics can be exercised directly
// against a scripted server goroutine on the other side.
func pipeConn() (*conn, net.Conn) {
	clientRaw, serverRaw := net.Pipe()
	sc := hapip.NewSecureConn(clientRaw)
	return &conn{secure: sc, raw: clientRaw, br: bufio.NewReader(sc)}, serverRaw
}

func TestSubscribeCharacteristicsDedupesAlreadySubscribed(t *testing.T) {
	c := New("unused:0", nil, ClientOptions{})
	defer c.Close()

	target := client.CharacteristicTarget{AID: 1, IID: 10}
	c.mu.Lock()
	c.subscribed[client_target{1, 10}] = true
	c.mu.Unlock()

	// Every target is already subscribed, so no connection should be
	// needed at all — subConn stays nil and the call must not block.
	err := c.SubscribeCharacteristics(context.Background(), []client.CharacteristicTarget{target})
	require.NoError(t, err)
}

func TestSubscribeThenServerDisconnectEmitsEventDisconnect(t *testing.T) {
	c := New("unused:0", nil, ClientOptions{})
	defer c.Close()

	cn, server := pipeConn()
	c.mu.Lock()
	c.subConn = cn
	c.mu.Unlock()

	dropped := make(chan []client.CharacteristicTarget, 1)
	c.OnDisconnect(func(targets []client.CharacteristicTarget) {
		dropped <- targets
	})

	serverDone := make(chan struct{})
	go func() {
		defer close(serverDone)
		br := bufio.NewReader(server)
		req, err := http.ReadRequest(br)
		if err != nil {
			return
		}
		_ = req.Body.Close()

		_, _ = server.Write([]byte("HTTP/1.1 204 No Content\r\nContent-Length: 0\r\n\r\n"))
		// Disconnect the subscription connection without sending any
		// event frames, simulating the accessory dropping the link.
		_ = server.Close()
	}()

	target := client.CharacteristicTarget{AID: 1, IID: 10}
	err := c.SubscribeCharacteristics(context.Background(), []client.CharacteristicTarget{target})
	require.NoError(t, err)

	select {
	case targets := <-dropped:
		require.Len(t, targets, 1)
		assert.Equal(t, target, targets[0])
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for eventDisconnect callback")
	}

	assert.Empty(t, c.GetSubscribedCharacteristics())
	<-serverDone
}
