// Package broadcaster publishes accepted clearing rows and proof
// bundles downstream for on-chain settlement, replacing the teacher's
// exit-WAL-backed Kafka publisher with one backed directly by the
// committer's own proof bundle (§4.8: every committed event produces
// a ProofBundle a downstream verifier can check against the committed
// root).
package broadcaster

import (
	"context"
	"encoding/binary"
	"encoding/json"

	"galois/internal/clearer"
	"galois/internal/committer"

	"github.com/IBM/sarama"
	"github.com/cockroachdb/errors"
)

// Message is the wire envelope published for one committed event —
// the clearing rows it produced alongside the proof bundle a verifier
// replays against the previous root to confirm NewRoot.
type Message struct {
	EventID uint64                 `json:"event_id"`
	Rows    []clearer.Row          `json:"rows,omitempty"`
	Proof   *committer.ProofBundle `json:"proof"`
}

// Broadcaster owns one synchronous Kafka producer. Publish is called
// synchronously from the same goroutine that advances the committer,
// so publish order is commit order. Kafka keeps that order within each
// partition only; see Publish for how events are keyed.
type Broadcaster struct {
	producer sarama.SyncProducer
	topic    string
}

// New dials brokers and constructs a Broadcaster publishing to topic.
// RequiredAcks=WaitForAll and a bounded retry count match the
// teacher's own settlement-publishing config: a dropped message here
// is a downstream settlement that never happens, so under-acking is
// not an acceptable trade for latency.
func New(brokers []string, topic string) (*Broadcaster, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "broadcaster: new sync producer")
	}
	return &Broadcaster{producer: producer, topic: topic}, nil
}

// Publish sends msg keyed by its big-endian event id. Every event has
// its own key, so the producer's partitioner spreads events across the
// topic's partitions and commit order holds within each partition, not
// across them.
func (b *Broadcaster) Publish(_ context.Context, msg Message) error {
	blob, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrapf(err, "broadcaster: marshal event %d", msg.EventID)
	}

	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, msg.EventID)

	_, _, err = b.producer.SendMessage(&sarama.ProducerMessage{
		Topic: b.topic,
		Key:   sarama.ByteEncoder(key),
		Value: sarama.ByteEncoder(blob),
	})
	if err != nil {
		return errors.Wrapf(err, "broadcaster: send event")
	}
	return nil
}

// Close releases the underlying producer connection.
func (b *Broadcaster) Close() error {
	return b.producer.Close()
}
