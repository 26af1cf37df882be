package job_message

// JobIdentifier threads one job id through every message of a job chain so
// log lines and staged file paths can be correlated.
type JobIdentifier struct {
	JobID string `json:"job_id"`
}
