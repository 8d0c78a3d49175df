package kafka

import (
	"context"
	"errors"
	"strings"
	"time"

	"chainbal/internal/domain"
	"chainbal/internal/infrastructure/telemetry"
	"chainbal/internal/streaming"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const DefaultTopic = "chainbal-snapshots"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Producer struct {
	writer  messageWriter
	topic   string
	network string
}

type ProducerConfig struct {
	Brokers []string
	Topic   string
	Network string
}

func NewProducer(cfg ProducerConfig) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		BatchTimeout:           500 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	return newProducer(writer, cfg), nil
}

func newProducer(writer messageWriter, cfg ProducerConfig) *Producer {
	if strings.TrimSpace(cfg.Topic) == "" {
		cfg.Topic = DefaultTopic
	}
	return &Producer{writer: writer, topic: cfg.Topic, network: cfg.Network}
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

func (p *Producer) PublishHead(ctx context.Context, head domain.ChainHead) error {
	ctx, span := otel.Tracer("chainbal/kafka").Start(ctx, "watcher.publish_head", trace.WithSpanKind(trace.SpanKindProducer))
	defer span.End()
	span.SetAttributes(
		attribute.Int64("block.best", int64(head.BestNumber)),
		attribute.Int64("block.finalized", int64(head.FinalizedNumber)),
	)

	msg, err := p.message(ctx, streaming.HeadMessage(p.network, head), "head")
	if err == nil {
		err = p.writer.WriteMessages(ctx, msg)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// PublishBalances writes one message per snapshot, keyed by address so that
// every account keeps its order within a partition.
func (p *Producer) PublishBalances(ctx context.Context, snapshots []domain.BalanceSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}
	tracer := otel.Tracer("chainbal/kafka")
	messages := make([]kafka.Message, 0, len(snapshots))
	spans := make([]trace.Span, 0, len(snapshots))
	endAll := func(err error) {
		for _, span := range spans {
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			}
			span.End()
		}
	}

	for _, snapshot := range snapshots {
		spanCtx, span := tracer.Start(ctx, "watcher.publish_balance", trace.WithSpanKind(trace.SpanKindProducer))
		span.SetAttributes(
			attribute.String("account.address", snapshot.Address),
			attribute.Int64("asset.id", int64(snapshot.Asset.AssetID)),
		)
		spans = append(spans, span)

		msg, err := p.message(spanCtx, streaming.BalanceMessage(p.network, snapshot), snapshot.Address)
		if err != nil {
			endAll(err)
			return err
		}
		messages = append(messages, msg)
	}

	err := p.writer.WriteMessages(ctx, messages...)
	endAll(err)
	return err
}

func (p *Producer) message(ctx context.Context, msg streaming.Message, key string) (kafka.Message, error) {
	msg.TraceID = telemetry.TraceID(ctx)
	payload, err := streaming.Encode(msg)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Topic:   p.topic,
		Key:     []byte(key),
		Value:   payload,
		Headers: telemetry.KafkaHeaders(ctx),
	}, nil
}
