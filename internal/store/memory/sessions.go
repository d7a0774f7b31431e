package memory

import (
	"context"
	"time"

	sessiondomain "orgsession/internal/session/domain"
)

// SessionRepository implements session/repository.Repository.
type SessionRepository struct{ s *Store }

func copySession(sess sessiondomain.Session) *sessiondomain.Session {
	if sess.ActiveOrganizationID != nil {
		sess.ActiveOrganizationID = strPtr(*sess.ActiveOrganizationID)
	}
	return &sess
}

func (r *SessionRepository) GetByTokenHash(_ context.Context, tokenHash string) (*sessiondomain.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sess, ok := r.s.sessions[tokenHash]
	if !ok {
		return nil, nil
	}
	return copySession(sess), nil
}

func (r *SessionRepository) Create(_ context.Context, sess *sessiondomain.Session) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored := *copySession(*sess)
	stored.Token = ""
	r.s.sessions[sess.TokenHash] = stored
	return nil
}

func (r *SessionRepository) Delete(_ context.Context, tokenHash string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.sessions, tokenHash)
	return nil
}

func (r *SessionRepository) DeleteIfExpired(_ context.Context, tokenHash string, now time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if sess, ok := r.s.sessions[tokenHash]; ok && sess.Expired(now) {
		delete(r.s.sessions, tokenHash)
	}
	return nil
}

func (r *SessionRepository) DeleteByUser(_ context.Context, userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for k, sess := range r.s.sessions {
		if sess.UserID == userID {
			delete(r.s.sessions, k)
		}
	}
	return nil
}

func (r *SessionRepository) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for k, sess := range r.s.sessions {
		if sess.Expired(now) {
			delete(r.s.sessions, k)
			n++
		}
	}
	return n, nil
}

func (r *SessionRepository) SetActiveOrgIfMember(_ context.Context, tokenHash, orgID string, now time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sess, ok := r.s.sessions[tokenHash]
	if !ok || sess.Expired(now) {
		return false, nil
	}
	if _, member := r.s.memberships[memberKey(sess.UserID, orgID)]; !member {
		return false, nil
	}
	sess.ActiveOrganizationID = strPtr(orgID)
	r.s.sessions[tokenHash] = sess
	return true, nil
}

func (r *SessionRepository) ClearActiveOrgIf(_ context.Context, tokenHash, orgID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if sess, ok := r.s.sessions[tokenHash]; ok && sess.ActiveOrgID() == orgID {
		sess.ActiveOrganizationID = nil
		r.s.sessions[tokenHash] = sess
	}
	return nil
}

func (r *SessionRepository) ClearActiveOrg(_ context.Context, tokenHash string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if sess, ok := r.s.sessions[tokenHash]; ok {
		sess.ActiveOrganizationID = nil
		r.s.sessions[tokenHash] = sess
	}
	return nil
}
