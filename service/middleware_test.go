package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kava-labs/odata-batch-proxy/service/batchmdw"
)

func TestUnitTestRequestIP(t *testing.T) {
	for _, tc := range []struct {
		desc          string
		remoteAddr    string
		forwardedFor  string
		expectedValue string
	}{
		{
			desc:          "remote address with port",
			remoteAddr:    "192.168.1.5:43210",
			expectedValue: "192.168.1.5",
		},
		{
			desc:          "remote address without port",
			remoteAddr:    "192.168.1.5",
			expectedValue: "192.168.1.5",
		},
		{
			desc:          "first forwarded address wins",
			remoteAddr:    "10.0.0.9:80",
			forwardedFor:  " 203.0.113.7 , 10.0.0.9",
			expectedValue: "203.0.113.7",
		},
	} {
		t.Run(tc.desc, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/batch", nil)
			req.RemoteAddr = tc.remoteAddr
			if tc.forwardedFor != "" {
				req.Header.Set("X-Forwarded-For", tc.forwardedFor)
			}

			require.Equal(t, tc.expectedValue, requestIP(req))
		})
	}
}

func TestUnitTestNewBatchRequestMetric(t *testing.T) {
	startedAt := time.Now().Add(-time.Second)

	req := httptest.NewRequest(http.MethodPost, "http://gateway.local/batch", nil)
	req.Header.Set("Origin", "https://app.local")
	ctx := context.WithValue(req.Context(), RequestStartTimeContextKey, startedAt)
	ctx = context.WithValue(ctx, RequestIDContextKey, "batch-1")
	req = req.WithContext(ctx)

	metric := newBatchRequestMetric(req, &batchmdw.BatchResult{
		RetrieveCount:     2,
		ChangesetCount:    1,
		OperationCount:    4,
		FailedCount:       1,
		CacheHits:         1,
		BackendStatusCode: http.StatusAccepted,
		Err:               errors.New("reading response to item 2: unexpected item kind"),
	})

	require.Equal(t, "batch-1", metric.BatchID)
	require.Equal(t, "gateway.local", metric.Hostname)
	require.Equal(t, startedAt, metric.RequestTime)
	require.GreaterOrEqual(t, metric.ResponseLatencyMilliseconds, int64(1000))
	require.Equal(t, 3, metric.ItemCount())
	require.Equal(t, 4, metric.OperationCount)
	require.Equal(t, 1, metric.CacheHits)
	require.NotNil(t, metric.Origin)
	require.Equal(t, "https://app.local", *metric.Origin)
	require.Nil(t, metric.UserAgent)
	require.NotNil(t, metric.ErrorMessage)
}
