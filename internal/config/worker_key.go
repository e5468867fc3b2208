package config

// WorkerKeyStruct names the Redis keys shared by background workers.
type WorkerKeyStruct struct {
	// SessionDeadlines is a sorted set of in-progress session IDs scored by
	// their timeout as unix milliseconds.
	SessionDeadlines string
	// SweepLock is held by whichever replica is currently sweeping.
	SweepLock string
}

var WorkerKey = &WorkerKeyStruct{
	SessionDeadlines: "exam_sessions:deadlines",
	SweepLock:        "exam_sessions:sweep_lock",
}
