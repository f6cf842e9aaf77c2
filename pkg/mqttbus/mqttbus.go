package mqttbus

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/cenkalti/backoff/v4"
	mqtt "github.com/eclipse/paho.mqtt.golang"
)

type BrokerConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	ClientID string
	UseTLS   bool
}

// NewBrokerConn connects to the MQTT broker, retrying with exponential
// backoff. The connection is torn down when ctx is cancelled.
func NewBrokerConn(cfg *BrokerConfig, ctx context.Context) (mqtt.Client, error) {
	scheme := "tcp"
	if cfg.UseTLS {
		scheme = "ssl"
	}
	connAddr := fmt.Sprintf("%s://%s:%d", scheme, cfg.Host, cfg.Port)

	opts := mqtt.NewClientOptions()
	opts.AddBroker(connAddr)
	opts.SetUsername(cfg.User)
	opts.SetPassword(cfg.Password)
	opts.SetClientID(cfg.ClientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 10 * time.Second
	maxRetries := 5

	var client mqtt.Client

	err := backoff.Retry(func() error {
		client = mqtt.NewClient(opts)
		if token := client.Connect(); token.Wait() && token.Error() != nil {
			log.Printf("mqttbus: connect to %s failed: %v", connAddr, token.Error())
			return token.Error()
		}
		return nil
	}, backoff.WithMaxRetries(bo, uint64(maxRetries-1)))

	if err != nil {
		return nil, fmt.Errorf("could not establish MQTT connection after retries: %v", err)
	}

	log.Printf("mqttbus: connected to broker at %s", connAddr)

	go func() {
		<-ctx.Done()
		client.Disconnect(250)
		log.Println("mqttbus: connection closed")
	}()

	return client, nil
}

func CloseBrokerConn(client mqtt.Client) {
	if client.IsConnected() {
		client.Disconnect(250)
		log.Println("mqttbus: connection successfully closed")
	}
}
