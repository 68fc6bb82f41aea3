package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMethodLabel(t *testing.T) {
	testCases := []struct {
		input    string
		expected string
	}{
		{"GET", "GET"},
		{"POST", "POST"},
		{"OPTIONS", "OPTIONS"},
		{"get", "OTHER"},
		{"BREW", "OTHER"},
		{"", "OTHER"},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			require.Equal(t, tc.expected, methodLabel(tc.input))
		})
	}
}

func TestInit_Idempotent(t *testing.T) {
	Init()
	first := renderRequestsTotal
	Init()
	require.Same(t, first, renderRequestsTotal)
}

func TestObserveRender(t *testing.T) {
	Init()
	before := testutil.ToFloat64(renderRequestsTotal.WithLabelValues("success"))

	ObserveRender("success", 120*time.Millisecond)

	require.Equal(t, before+1, testutil.ToFloat64(renderRequestsTotal.WithLabelValues("success")))
	require.Positive(t, testutil.CollectAndCount(renderDurationSeconds))
}

func TestObserveHTTPRequest_MethodBounded(t *testing.T) {
	Init()
	ObserveHTTPRequest("GET", "/health", 200, time.Millisecond)
	series := testutil.CollectAndCount(httpRequestsTotal)

	for i := range 50 {
		ObserveHTTPRequest(fmt.Sprintf("X%d", i), "unmatched", 200, time.Millisecond)
	}

	require.LessOrEqual(t, testutil.CollectAndCount(httpRequestsTotal), series+1)
}

func TestActiveSessions(t *testing.T) {
	Init()
	before := testutil.ToFloat64(renderActiveSessions)

	IncActiveSessions()
	IncActiveSessions()
	require.Equal(t, before+2, testutil.ToFloat64(renderActiveSessions))

	DecActiveSessions()
	DecActiveSessions()
	require.Equal(t, before, testutil.ToFloat64(renderActiveSessions))
}

func TestObservePollCheck(t *testing.T) {
	Init()
	before := testutil.ToFloat64(clientPollChecksTotal.WithLabelValues("other"))

	ObservePollCheck("other")

	require.Equal(t, before+1, testutil.ToFloat64(clientPollChecksTotal.WithLabelValues("other")))
}

func TestObserveTransportAttempt(t *testing.T) {
	Init()
	before := testutil.ToFloat64(clientTransportAttempts.WithLabelValues("retry"))

	ObserveTransportAttempt("retry")

	require.Equal(t, before+1, testutil.ToFloat64(clientTransportAttempts.WithLabelValues("retry")))
}
