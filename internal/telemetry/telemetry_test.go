package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/ErikCohenDev/consensus-council-sub001/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestRecorder_CountsAttempts(t *testing.T) {
	r := NewRecorder()
	ctx := context.Background()

	_, finish := r.StartAttempt(ctx, models.RolePM, models.StagePRD, 1)
	finish(errors.New("timeout"))
	_, finish = r.StartAttempt(ctx, models.RolePM, models.StagePRD, 2)
	finish(nil)
	_, finish = r.StartAttempt(ctx, models.RoleUX, models.StagePRD, 1)
	finish(nil)

	assert.Equal(t, RoleStats{Attempts: 2, Successes: 1, Failures: 1}, r.Stats(models.RolePM))
	assert.Equal(t, 3, r.TotalAttempts())
}

func TestOTelCollector_RecordsSpans(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	c := NewOTelCollector(tp)

	_, finish := c.StartAttempt(context.Background(), models.RoleSecurity, models.StageArchitecture, 1)
	finish(errors.New("invalid reply"))
	_, finish = c.StartAttempt(context.Background(), models.RoleSecurity, models.StageArchitecture, 2)
	finish(nil)

	spans := sr.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "auditor.attempt", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, codes.Ok, spans[1].Status().Code)
}

func TestMulti_FansOut(t *testing.T) {
	a, b := NewRecorder(), NewRecorder()
	m := Multi{a, b, Nop{}}

	_, finish := m.StartAttempt(context.Background(), models.RoleCost, models.StageVision, 1)
	finish(nil)

	assert.Equal(t, 1, a.Stats(models.RoleCost).Successes)
	assert.Equal(t, 1, b.Stats(models.RoleCost).Successes)
}

func TestSetup_NoopWhenEndpointEmpty(t *testing.T) {
	shutdown, err := Setup(context.Background(), "council-test", "")
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}
