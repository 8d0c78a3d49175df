package kafka

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"chainbal/internal/domain"
	"chainbal/internal/streaming"

	"github.com/segmentio/kafka-go"
)

type recordingWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func TestPublishHead(t *testing.T) {
	writer := &recordingWriter{}
	producer := newProducer(writer, ProducerConfig{Network: "KSM"})

	head := domain.ChainHead{BestNumber: 10, FinalizedHash: "0xff", FinalizedNumber: 8}
	if err := producer.PublishHead(context.Background(), head); err != nil {
		t.Fatalf("publish head: %v", err)
	}
	if len(writer.messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(writer.messages))
	}
	got := writer.messages[0]
	if got.Topic != DefaultTopic || string(got.Key) != "head" {
		t.Errorf("unexpected topic/key %q/%q", got.Topic, got.Key)
	}
	msg, err := streaming.Decode(got.Value)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.Type != streaming.MessageTypeHead || msg.BlockNumber != 10 || msg.Network != "KSM" {
		t.Errorf("unexpected payload %+v", msg)
	}
}

func TestPublishBalancesKeyedByAddress(t *testing.T) {
	writer := &recordingWriter{}
	producer := newProducer(writer, ProducerConfig{Topic: "balances", Network: "KSM"})

	snapshots := []domain.BalanceSnapshot{
		{Address: "addr-a", Native: domain.NativeBalance{Free: domain.TokenAmount{Amount: big.NewInt(1)}}},
		{Address: "addr-b", Native: domain.NativeBalance{Free: domain.TokenAmount{Amount: big.NewInt(2)}}},
	}
	if err := producer.PublishBalances(context.Background(), snapshots); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(writer.messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(writer.messages))
	}
	for i, want := range []string{"addr-a", "addr-b"} {
		if string(writer.messages[i].Key) != want || writer.messages[i].Topic != "balances" {
			t.Errorf("message %d: key %q topic %q", i, writer.messages[i].Key, writer.messages[i].Topic)
		}
	}
}

func TestPublishErrors(t *testing.T) {
	writer := &recordingWriter{err: errors.New("broker down")}
	producer := newProducer(writer, ProducerConfig{Network: "KSM"})
	if err := producer.PublishHead(context.Background(), domain.ChainHead{FinalizedHash: "0x01"}); err == nil {
		t.Fatalf("expected write error")
	}

	producer = newProducer(&recordingWriter{}, ProducerConfig{})
	err := producer.PublishBalances(context.Background(), []domain.BalanceSnapshot{{Address: "a"}})
	if err == nil {
		t.Fatalf("expected validation error without network")
	}
	if err := producer.PublishBalances(context.Background(), nil); err != nil {
		t.Fatalf("empty publish: %v", err)
	}
}

func TestNewProducerRequiresBrokers(t *testing.T) {
	if _, err := NewProducer(ProducerConfig{}); err == nil {
		t.Fatalf("expected error")
	}
	producer, err := NewProducer(ProducerConfig{Brokers: []string{"localhost:9092"}, Network: "KSM"})
	if err != nil {
		t.Fatalf("new producer: %v", err)
	}
	_ = producer.Close()
}
