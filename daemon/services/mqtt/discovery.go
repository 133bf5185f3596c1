package mqtt

import (
	"fmt"
	"strings"

	"github.com/kdys14/smokehouse-controller/daemon/logger"
)

// haDeviceInfo identifies the physical device every discovered entity
// belongs to, per the Home Assistant MQTT discovery device block.
type haDeviceInfo struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model"`
	SWVersion    string   `json:"sw_version"`
}

// haEntityOpts holds configuration for a single HA MQTT discovery entity.
type haEntityOpts struct {
	entityType     string // sensor, binary_sensor, button
	stateTopic     string
	commandTopic   string // for button
	id             string
	name           string
	unit           string
	icon           string
	template       string
	deviceClass    string
	stateClass     string
	entityCategory string
	payloadOn      string // for binary_sensor
	payloadOff     string // for binary_sensor
	payloadPress   string // for button
}

// publishHAEntity publishes a single Home Assistant discovery config.
func (c *Client) publishHAEntity(opts haEntityOpts) {
	discoveryTopic := fmt.Sprintf("%s/%s/%s/%s/config",
		c.config.HomeAssistantPrefix, opts.entityType, sanitizeID(c.config.ClientID), opts.id)

	config := map[string]any{
		"name":                  opts.name,
		"unique_id":             fmt.Sprintf("smokehouse_%s_%s", sanitizeID(c.config.ClientID), opts.id),
		"availability_topic":    c.buildTopic("availability"),
		"payload_available":     "online",
		"payload_not_available": "offline",
		"device":                c.deviceInfo,
	}
	if opts.icon != "" {
		config["icon"] = opts.icon
	}

	if opts.entityType != "button" && opts.stateTopic != "" {
		config["state_topic"] = opts.stateTopic
	}
	if opts.template != "" && opts.entityType != "button" {
		config["value_template"] = opts.template
	}
	if opts.unit != "" {
		config["unit_of_measurement"] = opts.unit
	}
	if opts.deviceClass != "" {
		config["device_class"] = opts.deviceClass
	}
	if opts.stateClass != "" {
		config["state_class"] = opts.stateClass
	}
	if opts.entityCategory != "" {
		config["entity_category"] = opts.entityCategory
	}

	if opts.entityType == "binary_sensor" {
		on := opts.payloadOn
		if on == "" {
			on = "ON"
		}
		off := opts.payloadOff
		if off == "" {
			off = "OFF"
		}
		config["payload_on"] = on
		config["payload_off"] = off
	}

	if opts.entityType == "button" {
		config["command_topic"] = opts.commandTopic
		press := opts.payloadPress
		if press == "" {
			press = "PRESS"
		}
		config["payload_press"] = press
	}

	if err := c.publishJSON(discoveryTopic, config); err != nil {
		logger.Warning("MQTT: failed to publish HA discovery for %s: %v", opts.id, err)
	}
}

// publishHADiscovery publishes every smokehouse entity's Home Assistant
// discovery config once per connection.
func (c *Client) publishHADiscovery() {
	logger.Info("MQTT: publishing Home Assistant discovery configurations...")

	stateTopic := c.buildTopic("state")

	sensors := []haEntityOpts{
		{entityType: "sensor", stateTopic: stateTopic, id: "t_chamber", name: "Chamber Temperature",
			unit: "°C", deviceClass: "temperature", stateClass: "measurement", icon: "mdi:thermometer",
			template: "{{ value_json.tChamber | round(1) }}"},
		{entityType: "sensor", stateTopic: stateTopic, id: "t_chamber1", name: "Chamber Probe 1",
			unit: "°C", deviceClass: "temperature", stateClass: "measurement", entityCategory: "diagnostic",
			template: "{{ value_json.tChamber1 | round(1) }}"},
		{entityType: "sensor", stateTopic: stateTopic, id: "t_chamber2", name: "Chamber Probe 2",
			unit: "°C", deviceClass: "temperature", stateClass: "measurement", entityCategory: "diagnostic",
			template: "{{ value_json.tChamber2 | round(1) }}"},
		{entityType: "sensor", stateTopic: stateTopic, id: "t_meat", name: "Meat Temperature",
			unit: "°C", deviceClass: "temperature", stateClass: "measurement", icon: "mdi:food-steak",
			template: "{{ value_json.tMeat | round(1) }}"},
		{entityType: "sensor", stateTopic: stateTopic, id: "t_set", name: "Chamber Setpoint",
			unit: "°C", deviceClass: "temperature", stateClass: "measurement", icon: "mdi:thermostat",
			template: "{{ value_json.tSet | round(1) }}"},
		{entityType: "sensor", stateTopic: stateTopic, id: "smoke_pwm", name: "Smoke Generator PWM",
			stateClass: "measurement", icon: "mdi:smoke", template: "{{ value_json.manualSmokePwm }}"},
		{entityType: "sensor", stateTopic: stateTopic, id: "power_mode", name: "Power Mode",
			icon: "mdi:flash", template: "{{ value_json.powerMode }}"},
		{entityType: "sensor", stateTopic: stateTopic, id: "fan_mode", name: "Fan Mode",
			icon: "mdi:fan", template: "{{ value_json.fanMode }}"},
		{entityType: "sensor", stateTopic: stateTopic, id: "process_state", name: "Process State",
			icon: "mdi:state-machine", template: "{{ value_json.state }}"},
		{entityType: "sensor", stateTopic: stateTopic, id: "run_mode", name: "Run Mode",
			icon: "mdi:cog", template: "{{ value_json.mode }}"},
		{entityType: "sensor", stateTopic: stateTopic, id: "current_step", name: "Current Step",
			icon: "mdi:format-list-numbered", entityCategory: "diagnostic",
			template: "{{ value_json.currentStep }}"},
		{entityType: "sensor", stateTopic: stateTopic, id: "elapsed_time", name: "Elapsed Time",
			unit: "s", deviceClass: "duration", stateClass: "measurement", entityCategory: "diagnostic",
			template: "{{ value_json.elapsedTimeSec }}"},
		{entityType: "sensor", stateTopic: stateTopic, id: "remaining_time", name: "Remaining Time",
			unit: "s", deviceClass: "duration", stateClass: "measurement", entityCategory: "diagnostic",
			template: "{{ value_json.remainingProcessTimeSec }}"},
	}

	binarySensors := []haEntityOpts{
		{entityType: "binary_sensor", stateTopic: stateTopic, id: "door_open", name: "Door",
			deviceClass: "door", template: "{{ 'ON' if value_json.doorOpen else 'OFF' }}"},
		{entityType: "binary_sensor", stateTopic: stateTopic, id: "error_sensor", name: "Sensor Fault",
			deviceClass: "problem", entityCategory: "diagnostic",
			template: "{{ 'ON' if value_json.errorSensor else 'OFF' }}"},
		{entityType: "binary_sensor", stateTopic: stateTopic, id: "error_overheat", name: "Overheat Fault",
			deviceClass: "heat", entityCategory: "diagnostic",
			template: "{{ 'ON' if value_json.errorOverheat else 'OFF' }}"},
		{entityType: "binary_sensor", stateTopic: stateTopic, id: "error_profile", name: "Profile Fault",
			deviceClass: "problem", entityCategory: "diagnostic",
			template: "{{ 'ON' if value_json.errorProfile else 'OFF' }}"},
	}

	buttons := []haEntityOpts{
		{entityType: "button", id: "stop", name: "Stop", icon: "mdi:stop",
			commandTopic: c.buildCommandTopic("stop")},
		{entityType: "button", id: "next_step", name: "Next Step", icon: "mdi:skip-next",
			commandTopic: c.buildCommandTopic("next_step")},
		{entityType: "button", id: "reset_timer", name: "Reset Timer", icon: "mdi:restart",
			commandTopic: c.buildCommandTopic("reset_timer")},
		{entityType: "button", id: "start_manual", name: "Start Manual", icon: "mdi:play",
			commandTopic: c.buildCommandTopic("start_manual")},
	}

	for _, e := range sensors {
		c.publishHAEntity(e)
	}
	for _, e := range binarySensors {
		c.publishHAEntity(e)
	}
	for _, e := range buttons {
		c.publishHAEntity(e)
	}

	logger.Success("MQTT: Home Assistant discovery published")
}

func sanitizeID(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, "-", "_")
	return s
}
