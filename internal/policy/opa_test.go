package policy

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	memberdomain "orgsession/internal/membership/domain"
)

var (
	owner  = memberdomain.RoleOwner
	admin  = memberdomain.RoleAdmin
	member = memberdomain.RoleMember
)

// decisionTable is shared by the role and Rego checkers; both must agree on every row.
var decisionTable = []struct {
	name string
	req  Request
	want bool
}{
	{"member lists invitations", Request{Action: ActionListInvitations, ActorRole: member}, true},
	{"non-member lists invitations", Request{Action: ActionListInvitations}, false},
	{"admin invites member", Request{Action: ActionInviteMember, ActorRole: admin, TargetRole: member}, true},
	{"member invites member", Request{Action: ActionInviteMember, ActorRole: member, TargetRole: member}, false},
	{"admin invites owner", Request{Action: ActionInviteMember, ActorRole: admin, TargetRole: owner}, false},
	{"owner invites owner", Request{Action: ActionInviteMember, ActorRole: owner, TargetRole: owner}, true},
	{"admin adds admin", Request{Action: ActionAddMember, ActorRole: admin, TargetRole: admin}, true},
	{"member leaves", Request{Action: ActionRemoveMember, ActorRole: member, TargetRole: member, Self: true}, true},
	{"member removes other", Request{Action: ActionRemoveMember, ActorRole: member, TargetRole: member}, false},
	{"admin removes member", Request{Action: ActionRemoveMember, ActorRole: admin, TargetRole: member}, true},
	{"admin removes owner", Request{Action: ActionRemoveMember, ActorRole: admin, TargetRole: owner}, false},
	{"owner removes owner", Request{Action: ActionRemoveMember, ActorRole: owner, TargetRole: owner}, true},
	{"admin revokes", Request{Action: ActionRevokeInvitation, ActorRole: admin}, true},
	{"member resends", Request{Action: ActionResendInvitation, ActorRole: member}, false},
	{"admin deletes org", Request{Action: ActionDeleteOrganization, ActorRole: admin}, false},
	{"owner deletes org", Request{Action: ActionDeleteOrganization, ActorRole: owner}, true},
	{"admin views audit log", Request{Action: ActionViewAuditLog, ActorRole: admin}, true},
	{"member views audit log", Request{Action: ActionViewAuditLog, ActorRole: member}, false},
	{"unknown action", Request{Action: "launch_rockets", ActorRole: owner}, false},
}

func TestRoleChecker(t *testing.T) {
	c := NewRoleChecker()
	for _, tt := range decisionTable {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Allowed(context.Background(), tt.req)
			if err != nil {
				t.Fatalf("Allowed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Allowed = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOPAChecker_DefaultPolicyMatchesRoleChecker(t *testing.T) {
	c, err := NewOPAChecker(context.Background(), "", zerolog.Nop())
	if err != nil {
		t.Fatalf("NewOPAChecker: %v", err)
	}
	for _, tt := range decisionTable {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Allowed(context.Background(), tt.req)
			if err != nil {
				t.Fatalf("Allowed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Allowed = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOPAChecker_HealthCheck(t *testing.T) {
	c, err := NewOPAChecker(context.Background(), "", zerolog.Nop())
	if err != nil {
		t.Fatalf("NewOPAChecker: %v", err)
	}
	if err := c.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
}

func TestOPAChecker_CustomModuleFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "authz.rego")
	module := "package orgsession.authz\n\ndefault allow := false\n\nallow if input.actor_role == \"owner\"\n"
	if err := os.WriteFile(path, []byte(module), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	c, err := NewOPACheckerFromFile(context.Background(), path, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewOPACheckerFromFile: %v", err)
	}
	ok, _ := c.Allowed(context.Background(), Request{Action: ActionInviteMember, ActorRole: admin})
	if ok {
		t.Error("custom owner-only policy allowed an admin")
	}
	if err := c.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck should fail when members cannot list invitations")
	}
}

func TestNewOPAChecker_InvalidModule(t *testing.T) {
	if _, err := NewOPAChecker(context.Background(), "package broken\n\nallow if {", zerolog.Nop()); err == nil {
		t.Fatal("expected compile error")
	}
}

func TestNewOPACheckerFromFile_Missing(t *testing.T) {
	if _, err := NewOPACheckerFromFile(context.Background(), "/nonexistent/authz.rego", zerolog.Nop()); err == nil {
		t.Fatal("expected read error")
	}
}
