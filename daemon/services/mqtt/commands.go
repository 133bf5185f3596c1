package mqtt

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/kdys14/smokehouse-controller/daemon/dto"
	"github.com/kdys14/smokehouse-controller/daemon/lib"
	"github.com/kdys14/smokehouse-controller/daemon/logger"
	"github.com/kdys14/smokehouse-controller/daemon/services/process"
)

// subscribeCommandTopics subscribes to cmd/# so Home Assistant (or any other
// MQTT client) can drive the Controller the same way the Web API does.
func (c *Client) subscribeCommandTopics() {
	if c.client == nil || !c.client.IsConnected() {
		return
	}

	cmdTopic := c.buildTopic("cmd/#")
	token := c.client.Subscribe(cmdTopic, byte(c.config.QoS), func(_ pahomqtt.Client, msg pahomqtt.Message) {
		c.handleCommand(msg)
	})
	token.Wait()
	if token.Error() != nil {
		logger.Error("MQTT: failed to subscribe to command topics: %v", token.Error())
		return
	}
	logger.Success("MQTT: subscribed to command topic %s", cmdTopic)
}

func (c *Client) buildCommandTopic(suffix string) string {
	return c.buildTopic("cmd/" + suffix)
}

// handleCommand routes an incoming cmd/<action> message to the Controller's
// command queue.
func (c *Client) handleCommand(msg pahomqtt.Message) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("MQTT: panic in command handler for %s: %v", msg.Topic(), r)
		}
	}()

	topic := msg.Topic()
	payload := strings.TrimSpace(string(msg.Payload()))
	prefix := c.buildTopic("cmd/")
	if !strings.HasPrefix(topic, prefix) {
		return
	}
	action := topic[len(prefix):]

	logger.Info("MQTT: command received: %s -> %s", action, payload)

	var err error
	switch action {
	case "start_auto":
		err = c.execStartAuto(payload)
	case "start_manual":
		err = c.execEnqueue(process.StartManualCommand())
	case "stop":
		err = c.execEnqueue(process.StopCommand())
	case "next_step":
		err = c.execEnqueue(process.NextStepCommand())
	case "reset_timer":
		err = c.execEnqueue(process.ResetTimerCommand())
	case "set_manual":
		err = c.execSetManual(payload)
	default:
		logger.Debug("MQTT: unhandled command topic: %s", action)
		return
	}

	c.publishCommandResult(topic, err)
}

// execEnqueue submits cmd to the Controller's command queue.
func (c *Client) execEnqueue(cmd process.Command) error {
	if !c.ctrl.Enqueue(cmd) {
		return fmt.Errorf("command queue full")
	}
	return nil
}

// execStartAuto loads the profile named by payload (a flash path, or a
// github: path if GitHub profile sourcing is configured elsewhere) and
// enqueues a start-auto command with it.
func (c *Client) execStartAuto(payload string) error {
	if payload == "" {
		return fmt.Errorf("start_auto requires a profile path payload")
	}
	if c.profiles == nil {
		return fmt.Errorf("profile loader not available")
	}
	profile, err := c.profiles.Load(payload)
	if err != nil {
		return fmt.Errorf("loading profile %q: %w", payload, err)
	}
	return c.execEnqueue(process.StartAutoCommand(profile))
}

// manualSetPayload is the set_manual command's JSON body: the setpoints
// GET /manual/set takes as query parameters, plus smoke, with the fan
// times named fanOnTimeMs/fanOffTimeMs.
type manualSetPayload struct {
	TSet       *float64 `json:"tSet"`
	Power      *int     `json:"power"`
	Smoke      *int     `json:"smoke"`
	FanMode    *string  `json:"fanMode"`
	FanOnTime  *int     `json:"fanOnTimeMs"`
	FanOffTime *int     `json:"fanOffTimeMs"`
}

func (c *Client) execSetManual(payload string) error {
	var body manualSetPayload
	if err := json.Unmarshal([]byte(payload), &body); err != nil {
		return fmt.Errorf("decoding set_manual payload: %w", err)
	}

	var smoke *uint8
	if body.Smoke != nil {
		v := lib.ClampSmokePwm(*body.Smoke)
		smoke = &v
	}

	var fanMode *dto.FanMode
	if body.FanMode != nil {
		m, err := parseFanMode(*body.FanMode)
		if err != nil {
			return err
		}
		fanMode = &m
	}

	cmd := process.SetManualCommand(body.TSet, body.Power, smoke, fanMode, body.FanOnTime, body.FanOffTime)
	return c.execEnqueue(cmd)
}

func parseFanMode(s string) (dto.FanMode, error) {
	switch strings.ToLower(s) {
	case "off":
		return dto.FanOff, nil
	case "on":
		return dto.FanOn, nil
	case "cyclic":
		return dto.FanCyclic, nil
	default:
		if n, err := strconv.Atoi(s); err == nil {
			return dto.FanMode(n), nil
		}
		return dto.FanOff, fmt.Errorf("unknown fan mode %q", s)
	}
}

func (c *Client) publishCommandResult(topic string, err error) {
	result := map[string]any{"success": err == nil}
	if err != nil {
		result["error"] = err.Error()
		logger.Error("MQTT: command failed on %s: %v", topic, err)
	}
	data, jsonErr := json.Marshal(result)
	if jsonErr != nil {
		return
	}
	_ = c.publish(topic+"/result", string(data), false)
}
