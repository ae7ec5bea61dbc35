package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.PlatformFetch("user", nil)
	m.PostSync("synced")
	m.InboxActivity("Follow", "handled")
	m.Delivery(errors.New("boom"))
}

func TestHandlerExposesCounters(t *testing.T) {
	m := New()
	m.PlatformFetch("posts", errors.New("boom"))
	m.PostSync("skipped_fresh")
	m.InboxActivity("Undo", "dropped")
	m.Delivery(nil)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)

	out := string(body)
	assert.Contains(t, out, `bridge_platform_fetches_total{kind="posts",result="error"} 1`)
	assert.Contains(t, out, `bridge_post_syncs_total{outcome="skipped_fresh"} 1`)
	assert.Contains(t, out, `bridge_inbox_activities_total{status="dropped",type="Undo"} 1`)
	assert.Contains(t, out, `bridge_deliveries_total{result="ok"} 1`)
}

func TestInboxActivity_UnknownTypesShareOneSeries(t *testing.T) {
	m := New()
	m.InboxActivity("Like", "dropped")
	m.InboxActivity("x-random-1234", "dropped")
	m.InboxActivity("Follow", "handled")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	out := rec.Body.String()

	assert.Contains(t, out, `bridge_inbox_activities_total{status="dropped",type="other"} 2`)
	assert.Contains(t, out, `bridge_inbox_activities_total{status="handled",type="Follow"} 1`)
	assert.NotContains(t, out, "Like")
	assert.NotContains(t, out, "x-random-1234")
}
