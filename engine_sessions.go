package authcore

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/solvrey/authcore/internal"
	"github.com/solvrey/authcore/session"
	"github.com/solvrey/authcore/token"
)

// TokenPair is one login's credentials: a short-lived access token for
// API calls and a longer-lived refresh token redeemable exactly once for
// the next pair.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// LoginResult is returned by [Engine.Login]. When MFA stands between the
// password check and the session, Tokens is nil and Methods carries the
// enabled methods the caller may challenge.
type LoginResult struct {
	Tokens      *TokenPair
	MFARequired bool
	Methods     []Method
}

// Identity is the outcome of a successful [Engine.Validate].
type Identity struct {
	AccountID string
	SessionID string
	Role      string
	Claims    token.Claims
}

// SessionInfo is one row of [Engine.Sessions], annotated with whether the
// row's own expiry still holds.
type SessionInfo struct {
	ID        string
	AccountID string
	CreatedAt time.Time
	ExpiresAt time.Time
	Valid     bool
}

// Login runs after the caller has verified the password. When no MFA
// method is enabled it issues a token pair and persists the session row;
// otherwise it returns the enabled methods and no tokens — the pair is
// only minted once VerifyChallenge succeeds.
func (e *Engine) Login(ctx context.Context, accountID string) (*LoginResult, error) {
	if e == nil || e.sessions == nil {
		return nil, ErrEngineNotReady
	}

	account, err := e.loadAccount(ctx, accountID)
	if err != nil {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLogin, false, accountID, 0, err, nil)
		return nil, err
	}

	if methods := account.EnabledMethods(); len(methods) > 0 {
		e.metricInc(MetricLoginMFARequired)
		e.emitAudit(ctx, auditEventLogin, false, accountID, 0, ErrMFARequired, map[string]string{
			"reason": "mfa_required",
		})
		return &LoginResult{MFARequired: true, Methods: methods}, nil
	}

	pair, err := e.issueSession(ctx, account)
	if err != nil {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLogin, false, accountID, 0, err, nil)
		return nil, err
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLogin, true, accountID, 0, nil, nil)
	return &LoginResult{Tokens: pair}, nil
}

// issueSession mints both tokens and inserts the session row. The row
// write is the commit point: if it fails, the freshly signed tokens are
// never returned, so nothing cryptographically valid exists without a
// revocable row behind it.
func (e *Engine) issueSession(ctx context.Context, account Account) (*TokenPair, error) {
	sessionID := uuid.NewString()

	access, err := e.tokens.Issue(token.PurposeAccess, token.Claims{
		AccountID: account.ID,
		SessionID: sessionID,
		Role:      account.Role,
	}, e.config.Token.AccessTTL)
	if err != nil {
		return nil, storeErr(err)
	}
	refresh, err := e.tokens.Issue(token.PurposeRefresh, token.Claims{
		AccountID: account.ID,
		SessionID: sessionID,
	}, e.config.Token.RefreshTTL)
	if err != nil {
		return nil, storeErr(err)
	}

	now := e.nowUnix()
	row := &session.Session{
		ID:          sessionID,
		AccountID:   account.ID,
		Role:        account.Role,
		AccessHash:  internal.HashToken(access),
		RefreshHash: internal.HashToken(refresh),
		CreatedAt:   now,
		ExpiresAt:   now + int64(e.config.Session.TTL/time.Second),
	}
	if err := e.sessions.Insert(ctx, row, e.config.Session.TTL); err != nil {
		return nil, storeErr(err)
	}

	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Logout deletes the session row matching the access token. Logging out
// with a token whose row is already gone reports [ErrSessionRevoked]:
// that request is indistinguishable from replaying a stolen token and is
// never a silent success.
func (e *Engine) Logout(ctx context.Context, accountID, accessToken string) error {
	if accessToken == "" {
		return ErrTokenMissing
	}

	sess, err := e.sessions.GetByAccessHash(ctx, internal.HashToken(accessToken))
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			e.emitAudit(ctx, auditEventLogout, false, accountID, 0, ErrSessionRevoked, nil)
			return ErrSessionRevoked
		}
		return storeErr(err)
	}
	if sess.AccountID != accountID {
		e.emitAudit(ctx, auditEventLogout, false, accountID, 0, ErrSessionRevoked, nil)
		return ErrSessionRevoked
	}

	if err := e.sessions.Delete(ctx, sess); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return ErrSessionRevoked
		}
		return storeErr(err)
	}

	e.metricInc(MetricLogout)
	e.emitAudit(ctx, auditEventLogout, true, accountID, 0, nil, map[string]string{
		"session_id": sess.ID,
	})
	return nil
}

// LogoutAll deletes every session row for the account and returns how
// many were destroyed.
func (e *Engine) LogoutAll(ctx context.Context, accountID string) (int, error) {
	deleted, err := e.sessions.DeleteAllForAccount(ctx, accountID)
	if err != nil {
		return deleted, storeErr(err)
	}
	e.metricInc(MetricLogoutAll)
	e.emitAudit(ctx, auditEventLogoutAll, true, accountID, 0, nil, nil)
	return deleted, nil
}

// Renew redeems a refresh token for a new pair. The signature check
// proves the token was minted here; the atomic index claim proves it is
// redeemed at most once, even under concurrent submission. The new row
// is inserted before the old one is deleted, so a crash between the two
// steps leaves an extra revocable row rather than a logged-out user.
func (e *Engine) Renew(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if refreshToken == "" {
		return nil, ErrTokenMissing
	}

	if _, err := e.tokens.Verify(refreshToken, token.PurposeRefresh); err != nil {
		e.metricInc(MetricRenewFailure)
		e.emitAudit(ctx, auditEventRenew, false, "", 0, err, nil)
		return nil, mapTokenError(err)
	}

	old, err := e.sessions.ClaimByRefreshHash(ctx, internal.HashToken(refreshToken))
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			// Cryptographically valid but already consumed or cancelled.
			e.metricInc(MetricRenewReplay)
			e.emitAudit(ctx, auditEventRenew, false, "", 0, ErrSessionRevoked, map[string]string{
				"reason": "refresh_replay",
			})
			return nil, ErrSessionRevoked
		}
		return nil, storeErr(err)
	}

	account, err := e.loadAccount(ctx, old.AccountID)
	if err != nil {
		e.metricInc(MetricRenewFailure)
		e.emitAudit(ctx, auditEventRenew, false, old.AccountID, 0, err, nil)
		return nil, err
	}

	pair, err := e.issueSession(ctx, account)
	if err != nil {
		e.metricInc(MetricRenewFailure)
		e.emitAudit(ctx, auditEventRenew, false, old.AccountID, 0, err, nil)
		return nil, err
	}

	if err := e.sessions.Delete(ctx, old); err != nil && !errors.Is(err, session.ErrNotFound) {
		return nil, storeErr(err)
	}

	e.metricInc(MetricRenewSuccess)
	e.emitAudit(ctx, auditEventRenew, true, old.AccountID, 0, nil, map[string]string{
		"old_session_id": old.ID,
	})
	return pair, nil
}

// Cancel deletes one session row filtered by both account and session
// id, so an account can never cancel a session it does not own.
func (e *Engine) Cancel(ctx context.Context, accountID, sessionID string) error {
	if err := e.sessions.DeleteOwned(ctx, accountID, sessionID); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			e.emitAudit(ctx, auditEventCancel, false, accountID, 0, ErrSessionNotFound, nil)
			return ErrSessionNotFound
		}
		return storeErr(err)
	}

	e.metricInc(MetricSessionCancelled)
	e.emitAudit(ctx, auditEventCancel, true, accountID, 0, nil, map[string]string{
		"session_id": sessionID,
	})
	return nil
}

// Validate is the two-layer check every request relies on: the stateless
// signature/expiry verification plus the stateful row lookup. A token
// whose row is gone fails [ErrSessionRevoked] no matter how valid its
// signature still is — this is what makes logout instant for bearer
// tokens.
func (e *Engine) Validate(ctx context.Context, accessToken string) (*Identity, error) {
	if accessToken == "" {
		return nil, ErrTokenMissing
	}

	claims, err := e.tokens.Verify(accessToken, token.PurposeAccess)
	if err != nil {
		return nil, mapTokenError(err)
	}

	sess, err := e.sessions.GetByAccessHash(ctx, internal.HashToken(accessToken))
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			e.metricInc(MetricValidateRevoked)
			e.emitAudit(ctx, auditEventValidate, false, claims.AccountID, 0, ErrSessionRevoked, nil)
			return nil, ErrSessionRevoked
		}
		return nil, storeErr(err)
	}

	e.metricInc(MetricValidateSuccess)
	return &Identity{
		AccountID: sess.AccountID,
		SessionID: sess.ID,
		Role:      sess.Role,
		Claims:    *claims,
	}, nil
}

// Sessions lists every stored session for the account, each annotated
// with a derived validity flag, ordered valid-first and stable among
// ties.
func (e *Engine) Sessions(ctx context.Context, accountID string) ([]SessionInfo, error) {
	rows, err := e.sessions.ListForAccount(ctx, accountID)
	if err != nil {
		return nil, storeErr(err)
	}

	now := e.nowUnix()
	infos := make([]SessionInfo, 0, len(rows))
	for _, row := range rows {
		infos = append(infos, SessionInfo{
			ID:        row.ID,
			AccountID: row.AccountID,
			CreatedAt: time.Unix(row.CreatedAt, 0),
			ExpiresAt: time.Unix(row.ExpiresAt, 0),
			Valid:     row.ExpiresAt > now,
		})
	}

	sort.SliceStable(infos, func(i, j int) bool {
		return infos[i].Valid && !infos[j].Valid
	})
	return infos, nil
}

func mapTokenError(err error) error {
	switch {
	case errors.Is(err, token.ErrTokenExpired):
		return ErrTokenExpired
	case errors.Is(err, token.ErrTokenMalformed), errors.Is(err, token.ErrTokenInvalid):
		return ErrTokenInvalid
	default:
		return storeErr(err)
	}
}
