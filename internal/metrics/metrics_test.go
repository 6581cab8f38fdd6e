package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordMutation(t *testing.T) {
	before := testutil.ToFloat64(mutationsTotal.WithLabelValues("rename", "rejected"))
	RecordMutation("rename", false)
	assert.Equal(t, before+1, testutil.ToFloat64(mutationsTotal.WithLabelValues("rename", "rejected")))
}

func TestRecordPush(t *testing.T) {
	before := testutil.ToFloat64(pushesTotal.WithLabelValues("created"))
	RecordPush("created", 5*time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(pushesTotal.WithLabelValues("created")))
}

func TestSetTreeNodes(t *testing.T) {
	SetTreeNodes(7)
	assert.Equal(t, float64(7), testutil.ToFloat64(treeNodes))
}

func TestRecordCacheWrite(t *testing.T) {
	before := testutil.ToFloat64(cacheWritesTotal.WithLabelValues("error"))
	RecordCacheWrite(false)
	assert.Equal(t, before+1, testutil.ToFloat64(cacheWritesTotal.WithLabelValues("error")))
}

func TestHandler_ExposesMetrics(t *testing.T) {
	RecordEchoSuppressed()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "cardfs_echo_suppressed_total"))
}
