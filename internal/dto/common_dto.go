package dto

type ErrorResponse struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
}

type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	DB        string `json:"db"`
	Realtime  string `json:"realtime"`
}

// ReviewTriggerResponse is returned by the manual single-user review endpoint.
type ReviewTriggerResponse struct {
	UserID  string `json:"user_id"`
	Outcome string `json:"outcome"`
}

// SchedulerStatusResponse reports the most recent batch tick.
type SchedulerStatusResponse struct {
	LastRun   string `json:"last_run,omitempty"`
	Processed int    `json:"processed"`
	Failed    int    `json:"failed"`
	Skipped   int    `json:"skipped"`
	Suspended int    `json:"suspended"`
	Flagged   int    `json:"flagged"`
}
