package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordTransfer(t *testing.T) {
	before := testutil.ToFloat64(TransfersTotal.WithLabelValues("test_transfer"))
	RecordTransfer("test_transfer")
	assert.Equal(t, before+1, testutil.ToFloat64(TransfersTotal.WithLabelValues("test_transfer")))
}

func TestRecordFee_IgnoresZero(t *testing.T) {
	before := testutil.ToFloat64(FeesCollectedTotal.WithLabelValues("test_fee"))
	RecordFee("test_fee", 0)
	RecordFee("test_fee", 2.5)
	assert.Equal(t, before+2.5, testutil.ToFloat64(FeesCollectedTotal.WithLabelValues("test_fee")))
}

func TestRecordJobRun(t *testing.T) {
	before := testutil.ToFloat64(JobRunsTotal.WithLabelValues("interest", "test"))
	RecordJobRun("interest", "test")
	assert.Equal(t, before+1, testutil.ToFloat64(JobRunsTotal.WithLabelValues("interest", "test")))
}
