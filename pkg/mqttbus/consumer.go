package mqttbus

import (
	"context"
	"log"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// IConsumer subscribes to one or more topic filters and feeds inbound
// messages to a handler.
type IConsumer interface {
	ConsumeMessage(ctx context.Context)
	SetHandler(handler func(topic string, message mqtt.Message) error)
}

// MultiConsumer subscribes to several topic filters on a shared client.
// The handler runs on paho's callback goroutines; handler errors are
// logged, never fatal to the consume loop.
type MultiConsumer struct {
	client  mqtt.Client
	topics  []string
	handler func(topic string, message mqtt.Message) error
}

func NewMultiConsumer(client mqtt.Client, topics []string, handler func(topic string, message mqtt.Message) error) *MultiConsumer {
	return &MultiConsumer{
		client:  client,
		topics:  topics,
		handler: handler,
	}
}

var _ IConsumer = (*MultiConsumer)(nil)

func (m *MultiConsumer) SetHandler(handler func(topic string, message mqtt.Message) error) {
	m.handler = handler
}

// ConsumeMessage subscribes to every topic filter and blocks until the
// context is cancelled, then unsubscribes.
func (m *MultiConsumer) ConsumeMessage(ctx context.Context) {
	for _, topic := range m.topics {
		topic := topic // shadow for closure safety
		token := m.client.Subscribe(
			topic,
			qosFor(topic),
			func(_ mqtt.Client, msg mqtt.Message) {
				if m.handler == nil {
					log.Printf("mqttbus: no handler set for topic %s", topic)
					return
				}
				if err := m.handler(msg.Topic(), msg); err != nil {
					log.Printf("mqttbus: error handling message on %s: %v", msg.Topic(), err)
				}
			},
		)
		token.Wait()
		if token.Error() != nil {
			log.Printf("mqttbus: error subscribing to topic %s: %v", topic, token.Error())
		} else {
			log.Printf("mqttbus: subscribed to topic %s", topic)
		}
	}

	<-ctx.Done()

	for _, topic := range m.topics {
		m.client.Unsubscribe(topic)
	}
}
