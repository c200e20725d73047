package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startTestNATSServer(t *testing.T) *natsserver.Server {
	t.Helper()
	server, err := natsserver.NewServer(&natsserver.Options{
		Host:   "127.0.0.1",
		Port:   -1,
		NoLog:  true,
		NoSigs: true,
	})
	require.NoError(t, err)

	go server.Start()
	if !server.ReadyForConnections(5 * time.Second) {
		t.Fatal("NATS server not ready")
	}
	t.Cleanup(func() {
		server.Shutdown()
		server.WaitForShutdown()
	})
	return server
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "docledger.events.added_document_s_to_workspace", Subject("docledger.events", DocumentsAdded))
	assert.Equal(t, "p.orphan_vector", Subject("p", OrphanVector))
}

func TestNATSSink_Record(t *testing.T) {
	server := startTestNATSServer(t)
	nc, err := Connect(server.ClientURL())
	require.NoError(t, err)
	defer nc.Close()

	sub, err := nc.SubscribeSync("docledger.events.>")
	require.NoError(t, err)
	require.NoError(t, nc.Flush())

	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	sink := NewNATSSink(nc, "docledger.events", nil)
	sink.now = func() time.Time { return fixed }

	sink.Record(context.Background(), DocumentsRemoved,
		map[string]any{"numberOfDocuments": 2, "workspaceName": "Engineering"}, "user42")
	require.NoError(t, nc.Flush())

	msg, err := sub.NextMsg(2 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, "docledger.events.removed_document_s_from_workspace", msg.Subject)

	var got Entry
	require.NoError(t, json.Unmarshal(msg.Data, &got))
	assert.Equal(t, DocumentsRemoved, got.Event)
	assert.Equal(t, "user42", got.ActorID)
	assert.Equal(t, float64(2), got.Metadata["numberOfDocuments"])
	assert.Equal(t, "Engineering", got.Metadata["workspaceName"])
	assert.True(t, fixed.Equal(got.OccurredAt))
}

func TestNATSSink_RecordOnClosedConnection(t *testing.T) {
	server := startTestNATSServer(t)
	nc, err := nats.Connect(server.ClientURL())
	require.NoError(t, err)
	nc.Close()

	sink := NewNATSSink(nc, "docledger.events", nil)
	assert.NotPanics(t, func() {
		sink.Record(context.Background(), OrphanVector, map[string]any{"docId": "d"}, "")
	})
}

func TestNop(t *testing.T) {
	var s Sink = Nop{}
	assert.NotPanics(t, func() { s.Record(context.Background(), DocumentsAdded, nil, "") })
}
