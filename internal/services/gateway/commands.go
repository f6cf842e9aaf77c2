package gateway

import (
	"encoding/json"
	"log"
	"strconv"
	"time"

	"github.com/verdra/garden-gateway/internal/model/messages"
	"github.com/verdra/garden-gateway/pkg/mqttbus"
)

// Commander encodes every gateway→device command onto the bus. It is
// the single place that knows the outbound payload formats.
type Commander struct {
	publisher mqttbus.IPublisher
	metrics   *Metrics
}

func NewCommander(publisher mqttbus.IPublisher, metrics *Metrics) *Commander {
	return &Commander{publisher: publisher, metrics: metrics}
}

// SendGardenNotice tells a device it was bound ("on") or unbound
// ("off") from a garden.
func (c *Commander) SendGardenNotice(deviceID string, bound bool) error {
	action := "off"
	if bound {
		action = "on"
	}
	return c.publish("gardenNotice", topicGardenNotice(deviceID, action), action)
}

// SendModeSelector pushes the irrigation mode selector code.
func (c *Commander) SendModeSelector(deviceID string, code int) error {
	return c.publish("modeSelector", topicModeSelector(deviceID), strconv.Itoa(code))
}

// SendPumpCommand runs the pump for the given number of seconds.
func (c *Commander) SendPumpCommand(deviceID string, seconds int) error {
	return c.publish("pump", topicPump(deviceID), strconv.Itoa(seconds))
}

// SendBioCycle pushes the plant thresholds the device enforces locally
// in auto mode.
func (c *Commander) SendBioCycle(deviceID string, bio messages.BioCycle) error {
	return c.publishJSON("bioCycle", topicBioCycle(deviceID), bio)
}

// SendScheduleAdd pushes one watering slot.
func (c *Commander) SendScheduleAdd(deviceID string, slot messages.ScheduleAdd) error {
	return c.publishJSON("scheduleAdd", topicScheduleAdd(deviceID), slot)
}

// SendScheduleDelete removes the slot at index within a repeat class.
func (c *Commander) SendScheduleDelete(deviceID, repeat string, index int) error {
	return c.publish("scheduleDelete", topicScheduleDelete(deviceID, repeat, index), strconv.Itoa(index))
}

// SendConnectProbe asks the device to confirm it is reachable.
func (c *Commander) SendConnectProbe(deviceID string) error {
	return c.publish("connectProbe", topicConnectProbe(deviceID), "is_connect")
}

// SendConnectReply echoes a connection verdict back to the device.
func (c *Commander) SendConnectReply(deviceID string, connected bool) error {
	value := "off"
	if connected {
		value = "on"
	}
	return c.publish("connectReply", topicConnectReply(deviceID, value), value)
}

// SendRealTime syncs the device wall clock.
func (c *Commander) SendRealTime(deviceID string, now time.Time) error {
	return c.publishJSON("realTime", topicRealTime(deviceID), messages.RealTimeNow(now))
}

func (c *Commander) publishJSON(command, topic string, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		c.metrics.publishError(command)
		return err
	}
	return c.publish(command, topic, string(b))
}

func (c *Commander) publish(command, topic, payload string) error {
	if err := c.publisher.Publish(topic, payload); err != nil {
		c.metrics.publishError(command)
		return err
	}
	log.Printf("gateway: sent %s to %s: %s", command, topic, payload)
	return nil
}
