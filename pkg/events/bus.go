package events

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// Bus is an in-process pub/sub for chat lifecycle events. It replaces
// ambient callback singletons with explicit dispatch: producers publish,
// interested components subscribe.
type Bus struct {
	pubSub *gochannel.GoChannel
}

func NewBus() *Bus {
	return &Bus{
		pubSub: gochannel.NewGoChannel(
			gochannel.Config{},
			watermill.NewStdLogger(false, false),
		),
	}
}

func (b *Bus) Publish(event Event) error {
	payload, err := json.Marshal(BaseEvent{
		Type:       event.EventType(),
		Data:       event.Payload(),
		OccurredAt: event.Timestamp(),
	})
	if err != nil {
		return err
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	return b.pubSub.Publish(TopicChatEvents, msg)
}

// Subscribe returns a channel of decoded events. Messages that fail to
// decode are acked and dropped.
func (b *Bus) Subscribe(ctx context.Context) (<-chan BaseEvent, error) {
	messages, err := b.pubSub.Subscribe(ctx, TopicChatEvents)
	if err != nil {
		return nil, err
	}

	out := make(chan BaseEvent)
	go func() {
		defer close(out)
		for msg := range messages {
			var event BaseEvent
			if err := json.Unmarshal(msg.Payload, &event); err != nil {
				msg.Ack()
				continue
			}
			select {
			case out <- event:
				msg.Ack()
			case <-ctx.Done():
				msg.Nack()
				return
			}
		}
	}()
	return out, nil
}

func (b *Bus) Close() error {
	return b.pubSub.Close()
}
