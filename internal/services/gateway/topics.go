package gateway

import (
	"fmt"
	"strings"
)

// Inbound channel families. The first topic segment selects the
// handler; the device id rides in the path.
const (
	familyConditions = "conditions" // conditions/{deviceId}
	familyLogs       = "logs"       // logs/{deviceId}
	familyIot        = "iot"        // iot/control/feedback/{deviceId}
	familyConnect    = "connect"    // connect/{deviceId}/response/{on|off}
)

// SubscribeTopics is the full inbound subscription set.
var SubscribeTopics = []string{
	"conditions/+",
	"logs/+",
	"iot/control/feedback/+",
	"connect/+/response/+",
}

func topicGardenNotice(deviceID, action string) string {
	return fmt.Sprintf("gardens/%s/%s", deviceID, action)
}

func topicModeSelector(deviceID string) string {
	return "selects/" + deviceID
}

func topicPump(deviceID string) string {
	return "pump/" + deviceID
}

func topicBioCycle(deviceID string) string {
	return "bioCycle/" + deviceID
}

func topicScheduleAdd(deviceID string) string {
	return fmt.Sprintf("schedules/%s/add", deviceID)
}

func topicScheduleDelete(deviceID, repeat string, index int) string {
	return fmt.Sprintf("schedules/%s/delete/%s/%d", deviceID, repeat, index)
}

func topicConnectProbe(deviceID string) string {
	return fmt.Sprintf("connect/%s/cmd/is_connect", deviceID)
}

func topicConnectReply(deviceID, value string) string {
	return fmt.Sprintf("connect/%s/response/%s", deviceID, value)
}

func topicRealTime(deviceID string) string {
	return "setRealTime/" + deviceID
}

// splitTopic breaks a channel path into its segments.
func splitTopic(topic string) []string {
	return strings.Split(strings.Trim(topic, "/"), "/")
}
