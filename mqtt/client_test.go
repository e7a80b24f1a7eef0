package mqtt

import (
	"fmt"
	"testing"
	"time"

	mochi "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testBrokerPort = 18831

// startBroker runs an in-process broker for the duration of the test.
func startBroker(t *testing.T) string {
	t.Helper()

	server := mochi.New(nil)
	require.NoError(t, server.AddHook(new(auth.AllowHook), nil))

	tcp := listeners.NewTCP(listeners.Config{
		Type:    "tcp",
		ID:      "test",
		Address: fmt.Sprintf("127.0.0.1:%d", testBrokerPort),
	})
	require.NoError(t, server.AddListener(tcp))
	require.NoError(t, server.Serve())
	t.Cleanup(func() { _ = server.Close() })

	return fmt.Sprintf("tcp://127.0.0.1:%d", testBrokerPort)
}

func TestClient_PublishSubscribe(t *testing.T) {
	broker := startBroker(t)

	sub, err := NewClient(Config{Broker: broker, ClientID: "sub"}, zap.NewNop())
	require.NoError(t, err)
	defer sub.Disconnect()

	pub, err := NewClient(Config{Broker: broker, ClientID: "pub"}, nil)
	require.NoError(t, err)
	defer pub.Disconnect()

	assert.True(t, sub.IsConnected())

	got := make(chan string, 1)
	err = sub.Subscribe("fall/alert", 1, func(topic string, payload []byte) error {
		got <- topic + " " + string(payload)
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, pub.Publish("fall/alert", 1, false, []byte("fall alert")))

	select {
	case msg := <-got:
		assert.Equal(t, "fall/alert fall alert", msg)
	case <-time.After(5 * time.Second):
		t.Fatal("message not delivered")
	}

	require.NoError(t, sub.Unsubscribe("fall/alert"))
}

func TestNewClient_UnreachableBroker(t *testing.T) {
	_, err := NewClient(Config{Broker: "tcp://127.0.0.1:1", ClientID: "nobody"}, nil)
	assert.Error(t, err)
}
