//go:build integration

package natsutil

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
)

func natsURL() string {
	if v := os.Getenv("NATS_URL"); v != "" {
		return v
	}
	return nats.DefaultURL
}

func connectNATS(t *testing.T) *nats.Conn {
	t.Helper()
	nc, err := nats.Connect(natsURL())
	if err != nil {
		t.Fatalf("nats connect: %v", err)
	}
	t.Cleanup(func() { nc.Close() })
	return nc
}

func TestNATS_PubSub(t *testing.T) {
	nc := connectNATS(t)

	type speech struct {
		Speaker string `json:"speaker"`
		Text    string `json:"text"`
	}

	ch := make(chan speech, 1)
	sub, err := Subscribe(nc, "integ.debates", func(ctx context.Context, s speech) {
		ch <- s
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Unsubscribe()

	in := speech{Speaker: "Mary Lou McDonald", Text: "on the housing crisis"}
	if err := Publish(context.Background(), nc, "integ.debates", in); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case got := <-ch:
		if got != in {
			t.Fatalf("got %+v, want %+v", got, in)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for message")
	}
}
