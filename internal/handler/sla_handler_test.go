package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-clearance-api/internal/models"
)

type sweeperStub struct {
	at     time.Time
	result models.SweepResult
	err    error
}

func (s *sweeperStub) RunSweep(ctx context.Context, now time.Time) (models.SweepResult, error) {
	s.at = now
	return s.result, s.err
}

func TestSLAHandlerSweep(t *testing.T) {
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	sweeper := &sweeperStub{result: models.SweepResult{Checked: 4, Updated: 1}}
	h := NewSLAHandler(sweeper)
	h.now = func() time.Time { return fixed }
	c, w := newJSONContext(http.MethodPost, "/sla/sweep", "", nil)

	h.Sweep(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, fixed, sweeper.at)
	assert.JSONEq(t, `{"data":{"checked":4,"updated":1}}`, w.Body.String())
}

func TestSLAHandlerSweepFailure(t *testing.T) {
	h := NewSLAHandler(&sweeperStub{err: errors.New("db gone")})
	c, w := newJSONContext(http.MethodPost, "/sla/sweep", "", nil)

	h.Sweep(c)

	require.Equal(t, http.StatusInternalServerError, w.Code)
}
