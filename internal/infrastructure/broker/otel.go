package broker

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/go-user-registration/internal/infrastructure/broker"

const (
	attrSystem      = attribute.Key("messaging.system")
	attrDestination = attribute.Key("messaging.destination.name")
	attrMessageID   = attribute.Key("messaging.message.id")
	attrEventType   = attribute.Key("user.event.type")
	attrOutcome     = attribute.Key("messaging.outcome")
)

var (
	tracer = otel.Tracer(instrumentationName)
	meter  = otel.Meter(instrumentationName)

	messagesPublished, _ = meter.Int64Counter(
		"broker.messages.published",
		metric.WithDescription("Messages confirmed by the broker"),
		metric.WithUnit("{message}"),
	)
	publishRetries, _ = meter.Int64Counter(
		"broker.publish.retries",
		metric.WithDescription("Publishes retried after a closed connection"),
		metric.WithUnit("{retry}"),
	)
	messagesConsumed, _ = meter.Int64Counter(
		"broker.messages.consumed",
		metric.WithDescription("Deliveries settled by the consumer, by outcome"),
		metric.WithUnit("{message}"),
	)
	reconnects, _ = meter.Int64Counter(
		"broker.consumer.reconnects",
		metric.WithDescription("Consumer reconnect attempts"),
		metric.WithUnit("{attempt}"),
	)
)
