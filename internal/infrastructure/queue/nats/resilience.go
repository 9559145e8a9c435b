package nats

import (
	"errors"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/urbanism-zoning/internal/infrastructure/resilience"
)

func classifyNATSError(err error) resilience.ErrorClassification {
	return resilience.Classify(err, connectionRule)
}

// connectionRule retries publishes while the client reconnects.
func connectionRule(err error) (resilience.ErrorClassification, bool) {
	for _, target := range []error{nats.ErrNoServers, nats.ErrTimeout, nats.ErrConnectionClosed, nats.ErrDisconnected, nats.ErrConnectionReconnecting} {
		if errors.Is(err, target) {
			return resilience.Transient, true
		}
	}
	return resilience.ErrorClassification{}, false
}

func wrapTemporaryIfNeeded(err error) error {
	return resilience.WrapTemporary("nats publish", err, classifyNATSError)
}
