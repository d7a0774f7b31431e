package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	otellog "go.opentelemetry.io/otel/log"

	"orgsession/internal/audit/domain"
)

type mockAuditRepo struct {
	entries   []*domain.AuditLog
	createErr error
	gotLimit  int32
}

func (m *mockAuditRepo) Create(_ context.Context, entry *domain.AuditLog) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockAuditRepo) ListByOrg(_ context.Context, orgID string, limit, _ int32) ([]*domain.AuditLog, error) {
	m.gotLimit = limit
	var out []*domain.AuditLog
	for _, e := range m.entries {
		if e.OrgID == orgID {
			out = append(out, e)
		}
	}
	return out, nil
}

type recordCapture struct {
	recs []otellog.Record
}

func (r *recordCapture) Emit(_ context.Context, rec otellog.Record) {
	r.recs = append(r.recs, rec)
}

func TestLogger_LogEvent_Success(t *testing.T) {
	repo := &mockAuditRepo{}
	logger := NewLogger(repo, func(context.Context) string { return "192.168.1.1" }, zerolog.Nop())

	logger.LogEvent(context.Background(), "org-1", "user-1", domain.ActionMemberAdded, "membership", "role=admin")

	if len(repo.entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(repo.entries))
	}
	entry := repo.entries[0]
	if entry.OrgID != "org-1" || entry.UserID != "user-1" {
		t.Errorf("entry ids = %q/%q", entry.OrgID, entry.UserID)
	}
	if entry.Action != domain.ActionMemberAdded {
		t.Errorf("action = %q", entry.Action)
	}
	if entry.IP != "192.168.1.1" {
		t.Errorf("ip = %q, want 192.168.1.1", entry.IP)
	}
	if entry.ID == "" {
		t.Error("entry ID should be set")
	}
	if entry.CreatedAt.IsZero() {
		t.Error("entry CreatedAt should be set")
	}
}

func TestLogger_LogEvent_UnknownIP(t *testing.T) {
	repo := &mockAuditRepo{}
	NewLogger(repo, nil, zerolog.Nop()).LogEvent(context.Background(), "", "", domain.ActionSignInFailure, "session", "")
	if len(repo.entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(repo.entries))
	}
	if repo.entries[0].IP != "unknown" {
		t.Errorf("ip = %q, want unknown", repo.entries[0].IP)
	}
	if repo.entries[0].OrgID != "" {
		t.Errorf("org id = %q, want empty", repo.entries[0].OrgID)
	}
}

func TestLogger_LogEvent_RepoErrorIsSwallowed(t *testing.T) {
	repo := &mockAuditRepo{createErr: errors.New("db down")}
	NewLogger(repo, nil, zerolog.Nop()).LogEvent(context.Background(), "o", "u", "a", "r", "")
	if len(repo.entries) != 0 {
		t.Errorf("entries = %d, want 0", len(repo.entries))
	}
}

func TestLogger_NilIsSafe(t *testing.T) {
	var l *Logger
	l.LogEvent(context.Background(), "o", "u", "a", "r", "")
	if _, err := l.List(context.Background(), "o", 10, 0); err != nil {
		t.Errorf("List on nil logger: %v", err)
	}
}

func TestLogger_EmitsOTelRecord(t *testing.T) {
	cap := &recordCapture{}
	l := NewLogger(nil, nil, zerolog.Nop())
	l.emitter = cap
	l.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	l.LogEvent(context.Background(), "org-1", "user-1", domain.ActionInvitationCreated, "invitation", `{"email":"a@b.c"}`)

	if len(cap.recs) != 1 {
		t.Fatalf("records = %d, want 1", len(cap.recs))
	}
	rec := cap.recs[0]
	if got := rec.Body().AsString(); got != `{"email":"a@b.c"}` {
		t.Errorf("body = %q", got)
	}
	if !rec.Timestamp().Equal(l.now()) {
		t.Errorf("timestamp = %v", rec.Timestamp())
	}
	attrs := map[string]string{}
	rec.WalkAttributes(func(kv otellog.KeyValue) bool {
		attrs[kv.Key] = kv.Value.AsString()
		return true
	})
	want := map[string]string{
		"org_id": "org-1", "user_id": "user-1",
		"action": domain.ActionInvitationCreated, "resource": "invitation", "ip": "unknown",
	}
	for k, v := range want {
		if attrs[k] != v {
			t.Errorf("attr %q = %q, want %q", k, attrs[k], v)
		}
	}
}

func TestLogger_List_ClampsLimit(t *testing.T) {
	repo := &mockAuditRepo{}
	l := NewLogger(repo, nil, zerolog.Nop())
	l.LogEvent(context.Background(), "org-1", "u", "a", "r", "")
	l.LogEvent(context.Background(), "org-2", "u", "a", "r", "")

	got, err := l.List(context.Background(), "org-1", 1000, -5)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("entries = %d, want 1", len(got))
	}
	if repo.gotLimit != 50 {
		t.Errorf("limit = %d, want 50", repo.gotLimit)
	}
}
