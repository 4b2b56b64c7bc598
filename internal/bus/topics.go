package bus

// Core event topics. The comment on each constant documents the payload
// schema producers emit and consumers rely on; bus tests assert these
// fields for the topics the orchestration core produces itself.
const (
	// TopicTaskNew fires when the vault scan picks up a new inbox file.
	// Payload: file (string).
	TopicTaskNew = "vault.task.new"

	// TopicTaskTriaged fires after a file is routed by the triage rules.
	// Payload: file (string), status (string).
	TopicTaskTriaged = "vault.task.triaged"

	// TopicTaskCompleted fires when ralph archives a finished task.
	// Payload: file (string), title (string), type (string), destination (string).
	TopicTaskCompleted = "vault.task.completed"

	// TopicErrorAlert fires when a source crosses the error-rate threshold.
	// Payload: source (string), error_count (int), window_seconds (int), ts (string).
	TopicErrorAlert = "error.alert_triggered"

	// TopicRecoveryRecovered fires when a queued failure is replayed successfully.
	// Payload: task_id (string), source (string).
	TopicRecoveryRecovered = "recovery.task.recovered"

	// TopicRecoveryExhausted fires when a queued failure hits its retry limit.
	// Payload: task_id (string), source (string), error (string).
	TopicRecoveryExhausted = "recovery.task.exhausted"

	// TopicRalphStarted fires at the beginning of a full ralph run.
	// Payload: max_cycles (int).
	TopicRalphStarted = "ralph.started"

	// TopicRalphFinished fires at the end of a full ralph run.
	// Payload: cycles (int), total_completed (int), total_processed (int),
	// total_errors (int), total_blocked (int), stopped_reason (string).
	TopicRalphFinished = "ralph.finished"

	// TopicDailyBriefing fires when the daily report job runs.
	// Payload: date (string, YYYY-MM-DD).
	TopicDailyBriefing = "briefing.daily.generated"

	// TopicWeeklyBriefing fires when the weekly briefing job runs.
	// Payload: week (string, YYYY-Www).
	TopicWeeklyBriefing = "briefing.generated"
)
