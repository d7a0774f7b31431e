// Package store groups the repositories behind one value so the application can run on
// Postgres or entirely in memory.
package store

import (
	auditrepo "orgsession/internal/audit/repository"
	"orgsession/internal/db"
	invrepo "orgsession/internal/invitation/repository"
	memberrepo "orgsession/internal/membership/repository"
	orgrepo "orgsession/internal/organization/repository"
	sessionrepo "orgsession/internal/session/repository"
	"orgsession/internal/store/memory"
	userrepo "orgsession/internal/user/repository"
)

// Repositories is the full persistence surface.
type Repositories struct {
	Users       userrepo.Repository
	Orgs        orgrepo.Repository
	Memberships memberrepo.Repository
	Sessions    sessionrepo.Repository
	Invitations invrepo.Repository
	Audit       auditrepo.Repository
}

// Postgres returns repositories backed by conn.
func Postgres(conn db.DBTX) Repositories {
	return Repositories{
		Users:       userrepo.NewPostgresRepository(conn),
		Orgs:        orgrepo.NewPostgresRepository(conn),
		Memberships: memberrepo.NewPostgresRepository(conn),
		Sessions:    sessionrepo.NewPostgresRepository(conn),
		Invitations: invrepo.NewPostgresRepository(conn),
		Audit:       auditrepo.NewPostgresRepository(conn),
	}
}

// Memory returns repositories sharing the in-memory store s.
func Memory(s *memory.Store) Repositories {
	return Repositories{
		Users:       s.Users(),
		Orgs:        s.Organizations(),
		Memberships: s.Memberships(),
		Sessions:    s.Sessions(),
		Invitations: s.Invitations(),
		Audit:       s.AuditLogs(),
	}
}
