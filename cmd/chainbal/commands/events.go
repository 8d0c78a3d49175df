package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"chainbal/internal/infrastructure/telemetry"
	"chainbal/internal/streaming"

	"github.com/segmentio/kafka-go"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

func newEventsCommand(opts *globalOptions) *cobra.Command {
	var (
		brokers string
		topic   string
		group   string
		limit   int
	)
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Follow head and balance events published by the watcher",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			brokerList := opts.settings.KafkaBrokers
			if cmd.Flags().Changed("brokers") {
				brokerList = nil
				for _, broker := range strings.Split(brokers, ",") {
					if broker = strings.TrimSpace(broker); broker != "" {
						brokerList = append(brokerList, broker)
					}
				}
			}
			if !cmd.Flags().Changed("topic") {
				topic = opts.settings.KafkaTopic
			}
			if len(brokerList) == 0 {
				return errors.New("--brokers or KAFKA_BROKERS is required")
			}
			reader := kafka.NewReader(kafka.ReaderConfig{
				Brokers:  brokerList,
				GroupID:  group,
				Topic:    topic,
				MinBytes: 1,
				MaxBytes: 10e6,
			})
			defer reader.Close()
			return followEvents(cmd, reader, opts.json, limit)
		},
	}
	cmd.Flags().StringVar(&brokers, "brokers", "", "comma separated kafka brokers (default KAFKA_BROKERS)")
	cmd.Flags().StringVar(&topic, "topic", "", "topic the watcher publishes to (default KAFKA_TOPIC)")
	cmd.Flags().StringVar(&group, "group", "", "consumer group; empty reads without committing")
	cmd.Flags().IntVar(&limit, "limit", 0, "stop after this many events; 0 follows forever")
	return cmd
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

func followEvents(cmd *cobra.Command, reader messageReader, asJSON bool, limit int) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	tracer := otel.Tracer("chainbal/events")
	out := cmd.OutOrStdout()
	for seen := 0; limit <= 0 || seen < limit; seen++ {
		message, err := reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
		decoded, err := streaming.Decode(message.Value)
		if err != nil {
			slog.Warn("event decode error", "offset", message.Offset, "err", err)
			continue
		}

		msgCtx := telemetry.ContextFromKafka(ctx, message.Headers)
		_, span := tracer.Start(msgCtx, "events.receive", trace.WithSpanKind(trace.SpanKindConsumer))
		span.SetAttributes(attribute.String("message.type", string(decoded.Type)))

		if asJSON {
			err = writeJSON(out, decoded)
		} else {
			err = printEvent(out, decoded)
		}
		span.End()
		if err != nil {
			return err
		}
	}
	return nil
}

func printEvent(out io.Writer, msg streaming.Message) error {
	var err error
	switch msg.Type {
	case streaming.MessageTypeHead:
		_, err = fmt.Fprintf(out, "%s head best=#%d finalized=#%d\n",
			msg.ObservedAt.Format("15:04:05"), msg.BlockNumber, msg.FinalizedNumber)
	case streaming.MessageTypeBalance:
		_, err = fmt.Fprintf(out, "%s balance %s free=%s reserved=%s asset[%d]=%s\n",
			msg.ObservedAt.Format("15:04:05"), msg.Address, msg.Free, msg.Reserved, msg.AssetID, msg.AssetBalance)
	}
	return err
}
