package publish

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/syllabusd/internal/config"
	"github.com/fyrsmithlabs/syllabusd/internal/extraction"
)

// startTestNATSServer starts an embedded NATS server for testing.
func startTestNATSServer(t *testing.T) *natsserver.Server {
	t.Helper()
	opts := &natsserver.Options{
		Host:   "127.0.0.1",
		Port:   -1,
		NoLog:  true,
		NoSigs: true,
	}

	server, err := natsserver.NewServer(opts)
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

func sampleResult() *extraction.Result {
	return &extraction.Result{
		RunID:      "run-1",
		DocumentID: "soc.101 fall",
		Items: []extraction.Item{
			{Deadline: &extraction.HardDeadline{Date: "Oct 3", Title: "Final Paper", Category: extraction.CategoryAssignment, Source: extraction.SourceOracle}},
			{Session: &extraction.ClassSession{Date: "Oct 1", Title: "Discussion"}},
		},
	}
}

func TestPublisher_Publish(t *testing.T) {
	server := startTestNATSServer(t)
	nc, err := nats.Connect(server.ClientURL())
	require.NoError(t, err)
	defer nc.Close()

	sub, err := nc.SubscribeSync("syllabus.items.>")
	require.NoError(t, err)

	p := New(nc, "", 0, nil)
	require.NoError(t, p.Publish(context.Background(), sampleResult()))

	msg, err := sub.NextMsg(2 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, "syllabus.items.soc_101_fall.completed", msg.Subject)
	assert.Equal(t, "run-1", msg.Header.Get(nats.MsgIdHdr))

	var ev Event
	require.NoError(t, json.Unmarshal(msg.Data, &ev))
	assert.Equal(t, "run-1", ev.RunID)
	assert.Equal(t, "soc.101 fall", ev.DocumentID)
	require.Len(t, ev.Items, 2)
	assert.Equal(t, "Final Paper", ev.Items[0].Deadline.Title)
	assert.Equal(t, extraction.KindClassSession, ev.Items[1].Kind())
	assert.False(t, ev.PublishedAt.IsZero())
}

func TestPublisher_EmptyItems(t *testing.T) {
	server := startTestNATSServer(t)
	nc, err := nats.Connect(server.ClientURL())
	require.NoError(t, err)
	defer nc.Close()

	sub, err := nc.SubscribeSync("custom.>")
	require.NoError(t, err)

	p := New(nc, "custom.", time.Second, nil)
	require.NoError(t, p.Publish(context.Background(), &extraction.Result{RunID: "run-2"}))

	msg, err := sub.NextMsg(2 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, "custom.anonymous.completed", msg.Subject)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(msg.Data, &raw))
	assert.JSONEq(t, "[]", string(raw["items"]))
}

func TestPublisher_Errors(t *testing.T) {
	var nilPub *Publisher
	assert.ErrorIs(t, nilPub.Publish(context.Background(), sampleResult()), ErrNotConnected)
	assert.NoError(t, nilPub.Close())

	server := startTestNATSServer(t)
	nc, err := nats.Connect(server.ClientURL())
	require.NoError(t, err)

	p := New(nc, "", 0, nil)
	assert.Error(t, p.Publish(context.Background(), nil))

	nc.Close()
	assert.ErrorIs(t, p.Publish(context.Background(), sampleResult()), ErrNotConnected)
}

func TestConnect(t *testing.T) {
	_, err := Connect(config.PublishConfig{}, nil)
	assert.Error(t, err)

	server := startTestNATSServer(t)
	p, err := Connect(config.PublishConfig{
		NATSURL:       server.ClientURL(),
		SubjectPrefix: "syllabus.items",
		Timeout:       config.Duration(time.Second),
	}, nil)
	require.NoError(t, err)
	assert.True(t, p.owned)
	assert.Equal(t, "syllabus.items.doc.completed", p.Subject("doc"))
	assert.NoError(t, p.Close())
}

func TestSubjectToken(t *testing.T) {
	tests := map[string]string{
		"":           "anonymous",
		"  ":         "anonymous",
		"doc-1":      "doc-1",
		"a.b":        "a_b",
		"wild*card>": "wild_card_",
		"two words":  "two_words",
	}
	for in, want := range tests {
		assert.Equal(t, want, subjectToken(in), "input %q", in)
	}
}
