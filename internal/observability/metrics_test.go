package observability

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestMetricsSnapshotIsACopy(t *testing.T) {
	m := NewMetrics()
	m.RecordDispatch("GENERAL_INQUIRY", "assigned")
	m.RecordDispatch("GENERAL_INQUIRY", "assigned")
	m.RecordDispatch("GENERAL_INQUIRY", "NO_PENDING_CASE")
	m.RecordTaskRun("sla-sweep", nil)
	m.RecordTaskRun("sla-sweep", errors.New("boom"))

	snap := m.Snapshot()
	assert.Equal(t, int64(2), snap.Dispatches["GENERAL_INQUIRY|assigned"])
	assert.Equal(t, []string{"sla-sweep|error", "sla-sweep|ok"}, Keys(snap.TaskRuns))

	snap.Dispatches["GENERAL_INQUIRY|assigned"] = 99
	assert.Equal(t, int64(2), m.Snapshot().Dispatches["GENERAL_INQUIRY|assigned"])

	var nilMetrics *Metrics
	nilMetrics.RecordDispatch("x", "y")
	assert.Empty(t, nilMetrics.Snapshot().Dispatches)
}

func TestRequestLoggerRecordsRoutePattern(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	m := NewMetrics()
	app := fiber.New()
	app.Use(RequestLogger(zap.New(core), m))
	app.Get("/cases/:id", func(c *fiber.Ctx) error { return c.SendStatus(http.StatusNoContent) })

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/cases/abc", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	assert.Equal(t, int64(1), m.Snapshot().Requests["/cases/:id|GET|204"])
	require.Equal(t, 1, logs.FilterMessage("http request").Len())
	assert.Equal(t, "/cases/abc", logs.All()[0].ContextMap()["path"])
}
