package observability

import (
	"testing"
	"time"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	RegisterMetrics()
	RegisterMetrics()

	RecordHTTPRequest("GET", "/health", 200, 12*time.Millisecond)
	RecordConnectionOpened("tcp")
	RecordCommand("hdata")
	RecordFrameSent("tcp", 128)
	RecordAuthFailure()
	RecordPushDrop()
	RecordConnectionClosed("tcp")
}
