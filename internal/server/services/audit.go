package services

import (
	"context"

	"github.com/dmitrijs2005/numeria/internal/dbx"
	"github.com/dmitrijs2005/numeria/internal/logging"
	"github.com/dmitrijs2005/numeria/internal/server/metrics"
	"github.com/dmitrijs2005/numeria/internal/server/models"
	"github.com/dmitrijs2005/numeria/internal/server/repositories/repomanager"
)

// SecurityLogWriter appends audit entries. Write failures are logged and
// never returned.
type SecurityLogWriter struct {
	db          dbx.DBTX
	repomanager repomanager.RepositoryManager
	logger      logging.Logger
	metrics     *metrics.Metrics
}

// NewSecurityLogWriter builds a writer. m may be nil.
func NewSecurityLogWriter(db dbx.DBTX, rm repomanager.RepositoryManager, logger logging.Logger, m *metrics.Metrics) *SecurityLogWriter {
	return &SecurityLogWriter{db: db, repomanager: rm, logger: logger, metrics: m}
}

// Record appends event for userID. kv are metadata key/value pairs; a
// trailing key without a value is dropped.
func (w *SecurityLogWriter) Record(ctx context.Context, userID, event string, kv ...string) {
	var meta map[string]string
	if len(kv) >= 2 {
		meta = make(map[string]string, len(kv)/2)
		for i := 0; i+1 < len(kv); i += 2 {
			meta[kv[i]] = kv[i+1]
		}
	}
	err := w.repomanager.SecurityLogs(w.db).Create(ctx, &models.SecurityLog{
		UserID:   userID,
		Event:    event,
		Metadata: meta,
	})
	if err != nil {
		w.logger.Error(ctx, "security log write failed", "event", event, "user_id", userID, "error", err)
		return
	}
	w.metrics.SecurityEvent(event)
}
