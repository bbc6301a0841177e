package broadcast

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/babelcast-labs/babelcast-core/internal/bus"
	"github.com/babelcast-labs/babelcast-core/internal/protocol"
	"github.com/babelcast-labs/babelcast-core/internal/registry"
)

// NATSPusher publishes audio chunks to each subscriber's dedicated subject.
type NATSPusher struct {
	bus *bus.Client
}

func NewNATSPusher(busClient *bus.Client) *NATSPusher {
	return &NATSPusher{bus: busClient}
}

func (p *NATSPusher) Push(ctx context.Context, sub registry.Subscriber, chunk protocol.AudioChunk) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(chunk)
	if err != nil {
		return fmt.Errorf("marshal audio chunk: %w", err)
	}
	subject := fmt.Sprintf("%s.%s.%s", protocol.SubjectAudioOutPrefix, sub.SessionID, sub.ID)
	if err := p.bus.Conn().Publish(subject, data); err != nil {
		return fmt.Errorf("publish audio chunk: %w", err)
	}
	return nil
}
