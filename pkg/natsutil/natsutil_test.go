package natsutil

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
)

func startTestNATS(t *testing.T) *nats.Conn {
	t.Helper()
	srv, err := natsserver.NewServer(&natsserver.Options{Port: -1})
	if err != nil {
		t.Fatal(err)
	}
	srv.Start()
	if !srv.ReadyForConnections(3 * time.Second) {
		t.Fatal("nats not ready")
	}
	nc, err := nats.Connect(srv.ClientURL())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		nc.Close()
		srv.Shutdown()
	})
	return nc
}

type payload struct {
	DocID string `json:"doc_id"`
	Path  string `json:"path"`
}

func TestPublishSubscribe(t *testing.T) {
	nc := startTestNATS(t)

	ch := make(chan payload, 1)
	sub, err := Subscribe(nc, "ingest.doc", func(_ context.Context, p payload) {
		ch <- p
	})
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Unsubscribe()

	if err := Publish(context.Background(), nc, "ingest.doc", payload{DocID: "rules-2024", Path: "rules.pdf"}); err != nil {
		t.Fatal(err)
	}

	select {
	case p := <-ch:
		if p.DocID != "rules-2024" || p.Path != "rules.pdf" {
			t.Fatalf("payload = %+v", p)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout")
	}
}

func TestSubscribeDropsMalformed(t *testing.T) {
	nc := startTestNATS(t)

	called := make(chan struct{}, 1)
	sub, err := Subscribe(nc, "ingest.bad", func(_ context.Context, p payload) {
		called <- struct{}{}
	})
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Unsubscribe()

	nc.Publish("ingest.bad", []byte("{not json"))
	nc.Flush()

	select {
	case <-called:
		t.Fatal("handler ran for malformed message")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestPublishWithHeaders(t *testing.T) {
	nc := startTestNATS(t)

	ch := make(chan *nats.Msg, 1)
	sub, err := nc.ChanSubscribe("ingest.retry", ch)
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Unsubscribe()

	h := nats.Header{}
	h.Set("X-Retry-Count", "2")
	if err := PublishWithHeaders(context.Background(), nc, "ingest.retry", payload{DocID: "d"}, h); err != nil {
		t.Fatal(err)
	}

	select {
	case msg := <-ch:
		if msg.Header.Get("X-Retry-Count") != "2" {
			t.Errorf("header = %q", msg.Header.Get("X-Retry-Count"))
		}
		var p payload
		if err := json.Unmarshal(msg.Data, &p); err != nil || p.DocID != "d" {
			t.Errorf("body = %s, %v", msg.Data, err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout")
	}
}
