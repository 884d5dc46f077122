package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCountersAfterInit(t *testing.T) {
	Init(nil, nil)

	before := testutil.ToFloat64(approvalSignTotal.WithLabelValues("supervisor1", ResultSuccess))
	IncApprovalSign("supervisor1", "")
	assert.Equal(t, before+1, testutil.ToFloat64(approvalSignTotal.WithLabelValues("supervisor1", ResultSuccess)))

	beforeOver := testutil.ToFloat64(overEngagedTotal)
	IncOverEngaged()
	assert.Equal(t, beforeOver+1, testutil.ToFloat64(overEngagedTotal))

	ObserveEngagementCreate(ResultError, 5*time.Millisecond)
	assert.GreaterOrEqual(t, testutil.ToFloat64(engagementCreateTotal.WithLabelValues(ResultError)), 1.0)
}

func TestResult(t *testing.T) {
	assert.Equal(t, ResultSuccess, Result(nil))
	assert.Equal(t, ResultError, Result(errors.New("x")))
}
