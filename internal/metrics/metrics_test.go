package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryCounters(t *testing.T) {
	r := NewRegistry()

	r.Inc("GET", nil)
	r.Inc("GET", nil)
	r.Inc("COMMIT", errors.New("no transaction"))

	assert.Equal(t, 2.0, testutil.ToFloat64(r.OperationsTotal.WithLabelValues("GET", StatusOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.OperationsTotal.WithLabelValues("COMMIT", StatusError)))

	r.TxnBegun(1)
	r.TxnBegun(2)
	r.TxnEnded(1)
	assert.Equal(t, 1.0, testutil.ToFloat64(r.TransactionsOpen))

	r.CommitMerged(3, 1)
	assert.Equal(t, 3.0, testutil.ToFloat64(r.CommitKeysTotal.WithLabelValues("written")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.CommitKeysTotal.WithLabelValues("removed")))

	r.SessionOpened()
	r.SessionOpened()
	r.SessionClosed()
	r.SessionReaped()
	assert.Equal(t, 1.0, testutil.ToFloat64(r.SessionsActive))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.SessionsReapedTotal))
}

func TestNilRegistry(t *testing.T) {
	var r *Registry
	assert.NotPanics(t, func() {
		r.Inc("GET", nil)
		r.TxnBegun(1)
		r.TxnEnded(1)
		r.CommitMerged(1, 1)
		r.SessionOpened()
		r.SessionClosed()
		r.SessionReaped()
		r.TrackStoreSize(func() int { return 0 })
	})
}

func TestHandler(t *testing.T) {
	r := NewRegistry()
	r.TrackStoreSize(func() int { return 7 })
	r.Inc("SET", nil)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	out := string(body)
	assert.True(t, strings.Contains(out, `txkv_operations_total{op="SET",status="ok"} 1`), out)
	assert.True(t, strings.Contains(out, "txkv_store_keys 7"), out)
}
