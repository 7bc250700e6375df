package core

import (
	"errors"
	"fmt"

	"github.com/kerala-agrisage/agrisage/internal/logger"
	"github.com/kerala-agrisage/agrisage/internal/metrics"
)

// ErrMissingField is returned when a required request field is empty.
var ErrMissingField = errors.New("missing required field")

func missingField(name string) error {
	return fmt.Errorf("%w: %s", ErrMissingField, name)
}

// recorder reports the outcome of the best-effort inserts that follow a provider answer.
// A failed insert is logged and counted, never returned to the caller.
type recorder struct {
	metrics *metrics.Metrics
	log     *logger.Logger
}

func newRecorder(m *metrics.Metrics, log *logger.Logger) recorder {
	if log == nil {
		log = logger.NewNop()
	}
	return recorder{metrics: m, log: log}
}

func (r recorder) persisted(table, userID string, err error) {
	if r.metrics != nil {
		r.metrics.RecordPersist(table, err)
	}
	if err != nil {
		r.log.Error("Failed to persist record", "table", table, "user_id", userID, "error", err)
	}
}
