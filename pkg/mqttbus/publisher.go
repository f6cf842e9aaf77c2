package mqttbus

import (
	"fmt"
	"log"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// IPublisher defines the outbound side of the bus. The topic is passed
// per call: the gateway addresses a different device topic on every
// command.
type IPublisher interface {
	Publish(topic string, payload string) error
	Close()
}

type Publisher struct {
	client mqtt.Client
}

func NewPublisher(client mqtt.Client) *Publisher {
	return &Publisher{client: client}
}

var _ IPublisher = (*Publisher)(nil)

// qosFor picks QoS 1 for command topics whose loss the device cannot
// recover from on its own; everything else rides at QoS 0.
func qosFor(topic string) byte {
	t := strings.TrimSpace(topic)
	if strings.HasPrefix(t, "pump/") ||
		strings.HasPrefix(t, "schedules/") ||
		strings.HasPrefix(t, "gardens/") {
		return 1
	}
	return 0
}

// Publish sends payload to the given topic and waits for broker ack.
func (p *Publisher) Publish(topic string, payload string) error {
	if p.client == nil || !p.client.IsConnected() {
		return fmt.Errorf("publish to %s: client not connected", topic)
	}
	token := p.client.Publish(topic, qosFor(topic), false, payload)
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("failed to publish to %s: %v", topic, token.Error())
	}
	return nil
}

func (p *Publisher) Close() {
	if p.client.IsConnected() {
		p.client.Disconnect(250)
		log.Println("mqttbus: publisher disconnected")
	}
}
