package constants

// Event bus topic names. Published with *pubsub.PubSub (github.com/cskr/pubsub):
// payload first, topic name(s) second.
const (
	// TopicStateUpdate carries *dto.ControllerStateSnapshot whenever the
	// process state machine or live temperatures change materially.
	TopicStateUpdate = "state_update"

	// TopicChamberReading carries dto.ChamberReading after each sensors tick.
	TopicChamberReading = "chamber_reading"

	// TopicMeatReading carries dto.MeatReading after each sensors tick.
	TopicMeatReading = "meat_reading"

	// TopicAlert carries dto.Alert for door/overheat/sensor/heater-fault events.
	TopicAlert = "alert"

	// TopicFlashInfo carries dto.FlashInfo after FAT mutations.
	TopicFlashInfo = "flash_info"

	// TopicStats carries dto.ProcessStats periodically from the Monitor task.
	TopicStats = "process_stats"
)
