package policy

import (
	"context"
	"fmt"
	"os"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/rs/zerolog"
)

const regoQuery = "data.orgsession.authz.allow"

// DefaultRego mirrors RoleChecker so switching engines does not change behavior.
const DefaultRego = `package orgsession.authz

default allow := false

managers := {"owner", "admin"}

allow if {
	input.action == "list_invitations"
	input.actor_role != ""
}

allow if {
	input.action in {"resend_invitation", "revoke_invitation", "view_audit_log"}
	managers[input.actor_role]
}

allow if {
	input.action in {"invite_member", "add_member"}
	managers[input.actor_role]
	input.target_role != "owner"
}

allow if {
	input.action in {"invite_member", "add_member", "remove_member", "delete_organization"}
	input.actor_role == "owner"
}

allow if {
	input.action == "remove_member"
	input.actor_role != ""
	input.self
}

allow if {
	input.action == "remove_member"
	managers[input.actor_role]
	input.target_role != "owner"
}
`

// OPAChecker evaluates authorization requests with an in-process Rego module.
type OPAChecker struct {
	query  rego.PreparedEvalQuery
	logger zerolog.Logger
}

// NewOPAChecker compiles module (DefaultRego when empty) and prepares the allow query.
func NewOPAChecker(ctx context.Context, module string, logger zerolog.Logger) (*OPAChecker, error) {
	if module == "" {
		module = DefaultRego
	}
	compiler, err := ast.CompileModules(map[string]string{"authz.rego": module})
	if err != nil {
		return nil, fmt.Errorf("compile policy: %w", err)
	}
	pq, err := rego.New(
		rego.Query(regoQuery),
		rego.Compiler(compiler),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare policy: %w", err)
	}
	return &OPAChecker{
		query:  pq,
		logger: logger.With().Str("component", "policy").Logger(),
	}, nil
}

// NewOPACheckerFromFile loads the Rego module at path, falling back to DefaultRego when path is empty.
func NewOPACheckerFromFile(ctx context.Context, path string, logger zerolog.Logger) (*OPAChecker, error) {
	if path == "" {
		return NewOPAChecker(ctx, "", logger)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	return NewOPAChecker(ctx, string(b), logger)
}

// Allowed evaluates the request. An undefined result denies.
func (c *OPAChecker) Allowed(ctx context.Context, req Request) (bool, error) {
	input := map[string]interface{}{
		"action":      string(req.Action),
		"org_id":      req.OrgID,
		"actor_id":    req.ActorID,
		"actor_role":  string(req.ActorRole),
		"target_role": string(req.TargetRole),
		"self":        req.Self,
	}
	rs, err := c.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return false, fmt.Errorf("eval policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		c.logger.Debug().Str("action", string(req.Action)).Msg("policy returned no result; denying")
		return false, nil
	}
	allowed, ok := rs[0].Expressions[0].Value.(bool)
	return ok && allowed, nil
}

// HealthCheck evaluates a known-allowed request to verify the engine is usable.
func (c *OPAChecker) HealthCheck(ctx context.Context) error {
	ok, err := c.Allowed(ctx, Request{Action: ActionListInvitations, ActorRole: "member"})
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("policy health check was denied")
	}
	return nil
}
