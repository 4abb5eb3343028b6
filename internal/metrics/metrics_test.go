package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordPush(t *testing.T) {
	delivered := testutil.ToFloat64(PushesTotal.WithLabelValues(PushDelivered))
	offline := testutil.ToFloat64(PushesTotal.WithLabelValues(PushOffline))

	RecordPush(true)
	RecordPush(false)
	RecordPush(false)

	assert.Equal(t, delivered+1, testutil.ToFloat64(PushesTotal.WithLabelValues(PushDelivered)))
	assert.Equal(t, offline+2, testutil.ToFloat64(PushesTotal.WithLabelValues(PushOffline)))
}

func TestRecordHTTPRequest(t *testing.T) {
	before := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/api/messages", "200"))
	RecordHTTPRequest("GET", "/api/messages", "200", 0.02)
	assert.Equal(t, before+1, testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/api/messages", "200")))
}

func TestRecordConnectionEvent(t *testing.T) {
	before := testutil.ToFloat64(ConnectionEventsTotal.WithLabelValues(EventAccepted))
	RecordConnectionEvent(EventAccepted)
	assert.Equal(t, before+1, testutil.ToFloat64(ConnectionEventsTotal.WithLabelValues(EventAccepted)))
}
