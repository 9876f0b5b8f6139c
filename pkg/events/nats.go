package events

import (
	"encoding/json"
	"fmt"

	"github.com/luxfi/log"
	"github.com/nats-io/nats.go"
)

// NATSEmitter publishes events as JSON to a NATS subject per event name,
// for consumption by off-chain indexers.
type NATSEmitter struct {
	nc     *nats.Conn
	prefix string
	logger log.Logger
}

// NewNATSEmitter connects to a NATS server. The subject for an event named
// N is "<prefix>.N".
func NewNATSEmitter(url, prefix string, logger log.Logger) (*NATSEmitter, error) {
	nc, err := nats.Connect(url,
		nats.Name("synth-events"),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("events: nats connect: %w", err)
	}
	if prefix == "" {
		prefix = "synth.events"
	}
	return &NATSEmitter{nc: nc, prefix: prefix, logger: logger}, nil
}

// Emit publishes the event. Publish failures are logged, never propagated:
// the event sink must not be able to fail a trade.
func (n *NATSEmitter) Emit(event *Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		n.logger.Error("failed to marshal event", "name", event.Name, "error", err)
		return
	}
	subject := n.prefix + "." + event.Name
	if err := n.nc.Publish(subject, payload); err != nil {
		n.logger.Warn("failed to publish event", "subject", subject, "error", err)
	}
}

// Close flushes and closes the connection.
func (n *NATSEmitter) Close() {
	if n.nc != nil {
		n.nc.Flush()
		n.nc.Close()
	}
}
