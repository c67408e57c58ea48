package cmd

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/campushive/flowkit/pkg/channels/gochannel"
	"github.com/campushive/flowkit/pkg/channels/kafka"
	"github.com/campushive/flowkit/pkg/eventbus"
)

// NewEventBus creates the event bus for the named provider. "kafka" is the
// production transport and needs a comma-separated broker list; "gochannel"
// keeps everything in memory for local development.
func NewEventBus(provider, serviceName, kafkaBrokers string, logger *slog.Logger) eventbus.EventBus {
	watermillLogger := watermill.NewSlogLogger(logger)

	switch provider {
	case "kafka":
		pub, sub, err := kafka.CreateChannel(watermillLogger, strings.Split(kafkaBrokers, ","), serviceName)
		if err != nil {
			panic(fmt.Errorf("failed to create Kafka pub/sub: %w", err))
		}

		return eventbus.NewWatermillEventBus(pub, sub)
	case "gochannel", "":
		pub, sub, err := gochannel.CreateChannel(watermillLogger)
		if err != nil {
			panic(fmt.Errorf("failed to create in-memory pub/sub: %w", err))
		}

		return eventbus.NewWatermillEventBus(pub, sub)
	default:
		panic("Unsupported event bus provider: " + provider)
	}
}
