package broadcaster

import (
	"context"
	"encoding/json"
	"testing"

	"galois/internal/clearer"
	"galois/internal/committer"

	"github.com/IBM/sarama/mocks"
)

func TestPublishSendsKeyedMessage(t *testing.T) {
	mock := mocks.NewSyncProducer(t, nil)
	mock.ExpectSendMessageAndSucceed()

	b := &Broadcaster{producer: mock, topic: "galois.events"}
	defer b.Close()

	msg := Message{
		EventID: 42,
		Rows:    []clearer.Row{{EventID: 42, OrderID: 1}},
		Proof:   &committer.ProofBundle{EventID: 42},
	}
	if err := b.Publish(context.Background(), msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPublishSurfacesProducerError(t *testing.T) {
	mock := mocks.NewSyncProducer(t, nil)
	mock.ExpectSendMessageAndFail(assertableErr{})

	b := &Broadcaster{producer: mock, topic: "galois.events"}
	defer b.Close()

	if err := b.Publish(context.Background(), Message{EventID: 1}); err == nil {
		t.Fatal("expected an error when the producer fails")
	}
}

type assertableErr struct{}

func (assertableErr) Error() string { return "simulated producer failure" }

func TestMessageRoundTripsThroughJSON(t *testing.T) {
	msg := Message{EventID: 7, Proof: &committer.ProofBundle{EventID: 7}}
	blob, err := json.Marshal(msg)
	if err != nil {
		t.Fatal(err)
	}
	var out Message
	if err := json.Unmarshal(blob, &out); err != nil {
		t.Fatal(err)
	}
	if out.EventID != 7 {
		t.Fatalf("expected event id 7, got %d", out.EventID)
	}
}
