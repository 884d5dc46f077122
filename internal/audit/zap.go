package audit

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// ZapLogger writes audit entries as structured log lines. It is used when
// no database is configured.
type ZapLogger struct {
	logger *zap.Logger
}

// NewZapLogger constructs a ZapLogger.
func NewZapLogger(logger *zap.Logger) (*ZapLogger, error) {
	if logger == nil {
		return nil, errors.New("audit: nil logger")
	}
	return &ZapLogger{logger: logger.Named("audit")}, nil
}

// Log writes an audit entry.
func (l *ZapLogger) Log(_ context.Context, entry Entry) error {
	entry = Prepare(entry, time.Now())
	fields := []zap.Field{
		zap.String("audit_id", entry.ID),
		zap.String("actor", entry.Actor),
		zap.String("role", entry.Role),
		zap.String("action", entry.Action),
		zap.String("resource_type", entry.ResourceType),
		zap.String("resource_id", entry.ResourceID),
		zap.Time("created_at", entry.CreatedAt),
	}
	if entry.Profession != "" {
		fields = append(fields, zap.String("profession", entry.Profession))
	}
	if entry.GrantID != "" {
		fields = append(fields, zap.String("grant_id", entry.GrantID))
	}
	if entry.PayloadDigest != "" {
		fields = append(fields, zap.String("payload_digest", entry.PayloadDigest))
	}
	if len(entry.Metadata) > 0 {
		fields = append(fields, zap.ByteString("metadata", entry.Metadata))
	}
	if entry.IP != "" {
		fields = append(fields, zap.String("ip", entry.IP))
	}
	l.logger.Info("audit", fields...)
	return nil
}
