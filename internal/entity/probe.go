package entity

// ProbeSample is one throughput measurement of the probe stream.
type ProbeSample struct {
	BytesSoFar     int64    `json:"bytesSoFar"`
	TotalBytes     *int64   `json:"totalBytes,omitempty"`
	ElapsedSeconds float64  `json:"elapsedSeconds"`
	SpeedMBps      float64  `json:"speedMBps"`
	Percent        *float64 `json:"percent,omitempty"`
}

// TransferStats are the aggregated outcome counters of all transfers.
type TransferStats struct {
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Aborted   int64 `json:"aborted"`
	Bytes     int64 `json:"bytes"`
}
