package service

import (
	"context"
	"strings"

	"github.com/taskdeck/backend/internal/db"
)

// Verdict is the only thing callers see: accepted with a principal, or
// rejected. The reasons stay server-side.
type Verdict struct {
	Valid       bool
	PrincipalID string
}

var rejected = Verdict{}

// ValidateToken runs the double-gate check: the token must decode and
// verify (trying both salts), and its embedded session identifier must
// resolve to a live, unexpired session record. A valid signature alone
// never grants access. Store failures reject (fail closed).
func (s *AuthService) ValidateToken(ctx context.Context, raw string) Verdict {
	if strings.TrimSpace(raw) == "" {
		return rejected
	}

	claims, err := s.codec.Decode(raw)
	if err != nil {
		s.log.Debug().Msg("session token rejected: decode failed")
		return rejected
	}

	if claims.SessionToken == "" {
		s.log.Debug().Msg("session token rejected: no embedded session id")
		return rejected
	}

	tctx, cancel := s.storeCtx(ctx)
	defer cancel()

	session, err := s.sessions.GetSession(tctx, claims.SessionToken)
	if err != nil {
		if db.IsNoRows(err) {
			s.log.Info().Msg("session token rejected: session not found (revoked or never issued)")
			return rejected
		}
		s.log.Error().Err(err).Msg("session store unavailable, rejecting (fail closed)")
		return rejected
	}

	if !s.now().Before(session.ExpiresAt) {
		s.log.Info().Str("user_id", session.UserID).Msg("session token rejected: session expired")
		return rejected
	}

	return Verdict{Valid: true, PrincipalID: session.UserID}
}
