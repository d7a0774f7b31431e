package audit

import (
	"context"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"orgsession/internal/audit/domain"
)

// recordEmitter is the subset of otellog.Logger the audit logger needs.
type recordEmitter interface {
	Emit(ctx context.Context, rec otellog.Record)
}

// WithLoggerProvider mirrors every event as an OTel log record. A nil provider is ignored.
func (l *Logger) WithLoggerProvider(provider *sdklog.LoggerProvider) *Logger {
	if provider == nil {
		return l
	}
	l.emitter = provider.Logger("orgsession.audit")
	return l
}

func recordFor(entry *domain.AuditLog) otellog.Record {
	rec := otellog.Record{}
	rec.SetTimestamp(entry.CreatedAt)
	rec.SetSeverity(otellog.SeverityInfo)
	if entry.Metadata != "" {
		rec.SetBody(otellog.StringValue(entry.Metadata))
	}
	rec.AddAttributes(
		otellog.String("audit.id", entry.ID),
		otellog.String("action", entry.Action),
		otellog.String("resource", entry.Resource),
		otellog.String("ip", entry.IP),
	)
	if entry.OrgID != "" {
		rec.AddAttributes(otellog.String("org_id", entry.OrgID))
	}
	if entry.UserID != "" {
		rec.AddAttributes(otellog.String("user_id", entry.UserID))
	}
	return rec
}
