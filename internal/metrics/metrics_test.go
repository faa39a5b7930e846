package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordAPIRequest(t *testing.T) {
	before := testutil.ToFloat64(APIRequests.WithLabelValues("POST", "/api/yield", "200"))
	RecordAPIRequest("POST", "/api/yield", "200", 3*time.Millisecond)
	after := testutil.ToFloat64(APIRequests.WithLabelValues("POST", "/api/yield", "200"))
	assert.Equal(t, before+1, after)
}

func TestObservePredictionCountsErrors(t *testing.T) {
	before := testutil.ToFloat64(PredictionErrors.WithLabelValues("test-model"))
	ObservePrediction("test-model", time.Now(), nil)
	ObservePrediction("test-model", time.Now(), errors.New("boom"))
	assert.Equal(t, before+1, testutil.ToFloat64(PredictionErrors.WithLabelValues("test-model")))
}

func TestSetModelLoaded(t *testing.T) {
	SetModelLoaded("yield", true)
	assert.Equal(t, 1.0, testutil.ToFloat64(ModelLoaded.WithLabelValues("yield")))
	SetModelLoaded("yield", false)
	assert.Equal(t, 0.0, testutil.ToFloat64(ModelLoaded.WithLabelValues("yield")))
}
