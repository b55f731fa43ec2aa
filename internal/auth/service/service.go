// Package service orchestrates the auth flows: verifying external identity
// tokens, resolving accounts, and managing session token pairs.
package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"tokengate/internal/auth/models"
	"tokengate/internal/identity"
	"tokengate/internal/identity/verifier"
	"tokengate/internal/platform/metrics"
	sessionmodels "tokengate/internal/session/models"
	sessionservice "tokengate/internal/session/service"
	"tokengate/internal/simulation"
	"tokengate/internal/user"
	"tokengate/pkg/audit"
	dErrors "tokengate/pkg/domain-errors"
	"tokengate/pkg/platform/sentinel"
	"tokengate/pkg/requestcontext"
)

// TokenVerifier verifies an externally-issued identity token.
type TokenVerifier interface {
	Verify(ctx context.Context, provider identity.Provider, rawToken, expectedNonce string) (*verifier.ExternalClaims, error)
}

// Directory resolves verified identities to accounts.
type Directory interface {
	GetOrCreate(ctx context.Context, provider identity.Provider, providerID, email string) (*user.User, bool, error)
	FindByID(ctx context.Context, id uuid.UUID) (*user.User, error)
}

// SessionManager owns refresh-token session lifecycle.
type SessionManager interface {
	Create(ctx context.Context, userID uuid.UUID, provider identity.Provider, email string, device sessionmodels.Device) (*sessionmodels.Session, *sessionservice.TokenPair, error)
	Rotate(ctx context.Context, rawRefresh string) (*sessionmodels.Session, *sessionservice.TokenPair, error)
	Revoke(ctx context.Context, rawRefresh string) error
	RevokeAllForUser(ctx context.Context, userID uuid.UUID) (int, error)
}

// Auditor receives audit events without blocking the flow.
type Auditor interface {
	Emit(event audit.Event)
}

// SignInResult is a successful sign-in: the resolved account, the session
// opened for this device, and the token pair.
type SignInResult struct {
	User    *user.User
	Session *sessionmodels.Session
	Tokens  *sessionservice.TokenPair
}

// RefreshResult is a successful rotation. Profile is attached when the
// directory lookup succeeds and is omitted otherwise.
type RefreshResult struct {
	Session *sessionmodels.Session
	Tokens  *sessionservice.TokenPair
	Profile *user.Profile
}

// Service orchestrates sign-in, refresh, and revocation.
type Service struct {
	verifier TokenVerifier
	users    Directory
	sessions SessionManager
	sim      *simulation.Settings
	metrics  *metrics.Metrics
	auditor  Auditor
	logger   *slog.Logger
}

func New(
	tokenVerifier TokenVerifier,
	users Directory,
	sessions SessionManager,
	sim *simulation.Settings,
	m *metrics.Metrics,
	auditor Auditor,
	logger *slog.Logger,
) *Service {
	return &Service{
		verifier: tokenVerifier,
		users:    users,
		sessions: sessions,
		sim:      sim,
		metrics:  m,
		auditor:  auditor,
		logger:   logger,
	}
}

var errMaintenance = dErrors.NewTagged(dErrors.CodeMaintenance, "MAINTENANCE_MODE", "service is temporarily down for maintenance")

// SignIn verifies an external identity token and opens a session.
func (s *Service) SignIn(ctx context.Context, provider identity.Provider, req models.LoginRequest) (*SignInResult, error) {
	stage := StageReceived

	// Maintenance is checked before anything leaves the process.
	if s.sim.InMaintenance() {
		return nil, s.failSignIn(ctx, provider, stage, errMaintenance)
	}

	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, s.failSignIn(ctx, provider, stage, err)
	}
	stage = StageInputValidated

	claims, err := s.verifier.Verify(ctx, provider, req.IDToken, req.Nonce)
	if err != nil {
		return nil, s.failSignIn(ctx, provider, stage, err)
	}
	stage = StageTokenVerified

	account, created, err := s.users.GetOrCreate(ctx, provider, claims.Subject, claims.Email)
	if err != nil {
		return nil, s.failSignIn(ctx, provider, stage, translateInfra(err))
	}
	stage = StageUserResolved
	if created {
		s.auditor.Emit(audit.Event{
			Action:    audit.ActionUserCreated,
			UserID:    account.ID.String(),
			Provider:  provider.String(),
			RequestID: requestcontext.RequestID(ctx),
		})
	}

	session, tokens, err := s.sessions.Create(ctx, account.ID, provider, account.Email, req.Device())
	if err != nil {
		return nil, s.failSignIn(ctx, provider, stage, translateInfra(err))
	}
	stage = StageSessionCreated

	s.metrics.SignIns.WithLabelValues(provider.String(), metrics.OutcomeSuccess).Inc()
	s.auditor.Emit(audit.Event{
		Action:    audit.ActionLoginSucceeded,
		UserID:    account.ID.String(),
		Provider:  provider.String(),
		SessionID: session.ID.String(),
		RequestID: requestcontext.RequestID(ctx),
	})
	s.logger.InfoContext(ctx, "sign-in succeeded",
		"request_id", requestcontext.RequestID(ctx),
		"provider", provider,
		"user_id", account.ID,
		"session_id", session.ID,
		"new_user", created,
	)

	return &SignInResult{User: account, Session: session, Tokens: tokens}, nil
}

// Refresh rotates a refresh token and returns a fresh pair.
func (s *Service) Refresh(ctx context.Context, req models.RefreshRequest) (*RefreshResult, error) {
	stage := StageReceived

	if s.sim.InMaintenance() {
		return nil, s.failRefresh(ctx, stage, errMaintenance)
	}

	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, s.failRefresh(ctx, stage, err)
	}
	stage = StageInputValidated

	session, tokens, err := s.sessions.Rotate(ctx, req.RefreshToken)
	if err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			s.metrics.ReplaysDetected.Inc()
			s.auditor.Emit(audit.Event{
				Action:    audit.ActionRefreshRejected,
				UserID:    userIDOf(session),
				RequestID: requestcontext.RequestID(ctx),
				Reason:    "replayed after rotation",
			})
		}
		return nil, s.failRefresh(ctx, stage, translateInfra(err))
	}
	stage = StageSessionRotated

	result := &RefreshResult{Session: session, Tokens: tokens}
	if account, err := s.users.FindByID(ctx, session.UserID); err == nil {
		result.Profile = user.ProfileOf(account)
	}

	s.metrics.Refreshes.WithLabelValues(metrics.OutcomeSuccess).Inc()
	s.auditor.Emit(audit.Event{
		Action:    audit.ActionTokenRefreshed,
		UserID:    session.UserID.String(),
		Provider:  session.Provider.String(),
		SessionID: session.ID.String(),
		RequestID: requestcontext.RequestID(ctx),
	})
	s.logger.InfoContext(ctx, "token refreshed",
		"request_id", requestcontext.RequestID(ctx),
		"user_id", session.UserID,
		"session_id", session.ID,
	)
	return result, nil
}

// Revoke ends the session the refresh token belongs to. Succeeds whether or
// not the token was valid; only a storage failure errors.
func (s *Service) Revoke(ctx context.Context, req models.RevokeRequest) error {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return err
	}

	if err := s.sessions.Revoke(ctx, req.RefreshToken); err != nil {
		s.logger.ErrorContext(ctx, "revocation failed",
			"request_id", requestcontext.RequestID(ctx),
			"stage", StageInputValidated,
			"error", err,
		)
		return translateInfra(err)
	}

	s.metrics.Revocations.Inc()
	s.auditor.Emit(audit.Event{
		Action:    audit.ActionSessionRevoked,
		RequestID: requestcontext.RequestID(ctx),
	})
	return nil
}

// RevokeAll ends every session the user has.
func (s *Service) RevokeAll(ctx context.Context, userID uuid.UUID) (int, error) {
	revoked, err := s.sessions.RevokeAllForUser(ctx, userID)
	if err != nil {
		return 0, translateInfra(err)
	}
	s.auditor.Emit(audit.Event{
		Action:    audit.ActionSessionsRevoked,
		UserID:    userID.String(),
		RequestID: requestcontext.RequestID(ctx),
	})
	return revoked, nil
}

func (s *Service) failSignIn(ctx context.Context, provider identity.Provider, stage Stage, err error) error {
	s.metrics.SignIns.WithLabelValues(provider.String(), outcomeOf(err)).Inc()
	s.auditor.Emit(audit.Event{
		Action:    audit.ActionLoginFailed,
		Provider:  provider.String(),
		RequestID: requestcontext.RequestID(ctx),
		Reason:    dErrors.SafeMessage(err),
	})
	s.logger.WarnContext(ctx, "sign-in failed",
		"request_id", requestcontext.RequestID(ctx),
		"provider", provider,
		"stage", stage,
		"error", err,
	)
	return err
}

func (s *Service) failRefresh(ctx context.Context, stage Stage, err error) error {
	s.metrics.Refreshes.WithLabelValues(outcomeOf(err)).Inc()
	s.logger.WarnContext(ctx, "refresh failed",
		"request_id", requestcontext.RequestID(ctx),
		"stage", stage,
		"error", err,
	)
	return err
}

// translateInfra maps infrastructure sentinels to domain errors; domain
// errors pass through untouched.
func translateInfra(err error) error {
	var dErr *dErrors.Error
	if errors.As(err, &dErr) {
		return err
	}
	if errors.Is(err, sentinel.ErrUnavailable) {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "service temporarily unavailable")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "internal server error")
}

func outcomeOf(err error) string {
	switch dErrors.CodeOf(err) {
	case dErrors.CodeUnavailable, dErrors.CodeMaintenance:
		return metrics.OutcomeUnavailable
	case dErrors.CodeUnauthorized, dErrors.CodeInvalidInput:
		return metrics.OutcomeRejected
	default:
		return metrics.OutcomeError
	}
}

func userIDOf(session *sessionmodels.Session) string {
	if session == nil {
		return ""
	}
	return session.UserID.String()
}
