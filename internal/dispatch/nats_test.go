package dispatch_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"codeberg.org/mutker/sensorpoll/internal/alert"
	"codeberg.org/mutker/sensorpoll/internal/dispatch"
	"codeberg.org/mutker/sensorpoll/internal/errors"
	"codeberg.org/mutker/sensorpoll/internal/logger"
	"codeberg.org/mutker/sensorpoll/internal/view"
	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	subject string
	data    []byte
}

type fakePublisher struct {
	msgs []published
	err  error
}

func (p *fakePublisher) Publish(subject string, data []byte) error {
	p.msgs = append(p.msgs, published{subject: subject, data: data})
	return p.err
}

func TestNATSSubjectsAndPayloads(t *testing.T) {
	pub := &fakePublisher{}
	d := dispatch.NewNATS(pub, "")

	v := view.View{
		Title:      "23.4°C",
		Lines:      []view.Line{{Label: "Temperature", Value: "23.4°C"}},
		Status:     view.StatusConnected,
		Connected:  true,
		LastUpdate: "09:30:00",
		Cycle:      7,
	}
	require.NoError(t, d.Update(context.Background(), v))
	require.NoError(t, d.Alert(context.Background(), cpuAlert()))

	require.Len(t, pub.msgs, 2)
	assert.Equal(t, "sensorpoll.update", pub.msgs[0].subject)
	assert.Equal(t, "sensorpoll.alert", pub.msgs[1].subject)

	var update map[string]any
	require.NoError(t, json.Unmarshal(pub.msgs[0].data, &update))
	assert.Equal(t, "23.4°C", update["title"])
	assert.Equal(t, "Connected", update["status"])
	assert.EqualValues(t, 7, update["cycle"])
	assert.Equal(t, []any{"Temperature: 23.4°C", "Status: Connected", "Last Update: 09:30:00"}, update["menu"])

	var ev map[string]any
	require.NoError(t, json.Unmarshal(pub.msgs[1].data, &ev))
	assert.Equal(t, "cpu-high", ev["key"])
	assert.Equal(t, "High CPU Usage: 85.0%", ev["message"])
	assert.EqualValues(t, 85, ev["value"])
	assert.Equal(t, "2024-06-01T09:30:00Z", ev["timestamp"])
}

func TestNATSPublishFailure(t *testing.T) {
	pub := &fakePublisher{err: nats.ErrConnectionClosed}
	d := dispatch.NewNATS(pub, "lab")

	err := d.Alert(context.Background(), cpuAlert())
	require.Error(t, err)
	assert.Equal(t, errors.ErrDispatchFailed, errors.CodeOf(err))
	assert.Equal(t, "lab.alert", pub.msgs[0].subject)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Error(t, d.Update(ctx, view.View{}))
	assert.Len(t, pub.msgs, 1, "nothing is published after cancellation")
}

func runNATSServer(t *testing.T) *server.Server {
	t.Helper()

	srv, err := server.NewServer(&server.Options{Host: "127.0.0.1", Port: -1})
	require.NoError(t, err)

	go srv.Start()
	if !srv.ReadyForConnections(10 * time.Second) {
		srv.Shutdown()
		t.Fatalf("embedded NATS server not ready for connections")
	}
	t.Cleanup(srv.Shutdown)

	return srv
}

func TestConnectNATSPublishes(t *testing.T) {
	srv := runNATSServer(t)

	sub, err := nats.Connect(srv.ClientURL())
	require.NoError(t, err)
	defer sub.Close()

	msgs := make(chan *nats.Msg, 4)
	_, err = sub.ChanSubscribe("sensorpoll.>", msgs)
	require.NoError(t, err)
	require.NoError(t, sub.Flush())

	d, err := dispatch.ConnectNATS(srv.ClientURL(), dispatch.DefaultSubjectPrefix, logger.Nop())
	require.NoError(t, err)

	require.NoError(t, d.Alert(context.Background(), cpuAlert()))
	require.NoError(t, d.Close())

	select {
	case msg := <-msgs:
		assert.Equal(t, "sensorpoll.alert", msg.Subject)

		var ev alert.Event
		require.NoError(t, json.Unmarshal(msg.Data, &ev))
		assert.Equal(t, cpuAlert(), ev)
	case <-time.After(5 * time.Second):
		t.Fatal("alert not received")
	}
}

func TestConnectNATSUnreachable(t *testing.T) {
	_, err := dispatch.ConnectNATS("nats://127.0.0.1:1", "", logger.Nop())
	require.Error(t, err)
	assert.Equal(t, errors.ErrInitFailed, errors.CodeOf(err))
}
