package identity

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/psiclinic/clinic/internal/platform/apperr"
	"github.com/psiclinic/clinic/internal/platform/auth"
)

type Service struct {
	users  UserRepository
	hasher auth.PasswordHasher
	tokens *auth.TokenManager
	now    func() time.Time
}

func NewService(users UserRepository, hasher auth.PasswordHasher, tokens *auth.TokenManager) *Service {
	return &Service{users: users, hasher: hasher, tokens: tokens, now: time.Now}
}

// Login checks credentials and issues a session token. Unknown email and wrong
// password fail with the same error; a disabled account is reported only after
// the password has matched.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, apperr.Validation("email and password are required")
	}

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if !apperr.Is(err, apperr.KindNotFound) {
			return nil, err
		}
		s.hasher.CompareDummy(password)
		zerolog.Ctx(ctx).Warn().Str("reason", "unknown_email").Msg("login failed")
		return nil, auth.AsAppError(auth.ErrInvalidCredentials)
	}

	if err := s.hasher.Compare(u.PasswordHash, password); err != nil {
		zerolog.Ctx(ctx).Warn().Int64("user_id", u.ID).Str("reason", "bad_password").Msg("login failed")
		return nil, auth.AsAppError(auth.ErrInvalidCredentials)
	}
	if !u.IsActive {
		zerolog.Ctx(ctx).Warn().Int64("user_id", u.ID).Str("reason", "disabled").Msg("login failed")
		return nil, auth.AsAppError(auth.ErrAccountDisabled)
	}

	token, expiresAt, err := s.tokens.Issue(u.Principal())
	if err != nil {
		return nil, apperr.Internal(err)
	}

	now := s.now().UTC()
	if err := s.users.TouchLastLogin(ctx, u.ID, now); err != nil {
		return nil, err
	}
	u.LastLoginAt = &now

	return &LoginResult{Token: token, ExpiresAt: expiresAt, User: u}, nil
}

// VerifyToken validates token and re-reads the account, so a user deleted or
// deactivated after issue is rejected even while the token is unexpired.
func (s *Service) VerifyToken(ctx context.Context, token string) (auth.Principal, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return auth.Principal{}, err
	}

	u, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return auth.Principal{}, auth.ErrUserNotFound
		}
		return auth.Principal{}, err
	}
	if !u.IsActive {
		return auth.Principal{}, auth.ErrAccountDisabled
	}
	return u.Principal(), nil
}

// CurrentUser returns the stored row for an authenticated principal.
func (s *Service) CurrentUser(ctx context.Context, p auth.Principal) (*User, error) {
	return s.users.GetByID(ctx, p.ID)
}

func (s *Service) ChangePassword(ctx context.Context, p auth.Principal, current, next string) error {
	if len(next) < auth.MinPasswordLength {
		return apperr.Validationf("new password must be at least %d characters", auth.MinPasswordLength)
	}
	u, err := s.users.GetByID(ctx, p.ID)
	if err != nil {
		return err
	}
	if err := s.hasher.Compare(u.PasswordHash, current); err != nil {
		return apperr.Validation("current password is incorrect")
	}
	hash, err := s.hasher.Hash(next)
	if err != nil {
		return apperr.Internal(err)
	}
	return s.users.UpdatePassword(ctx, u.ID, hash)
}

// CreateUser is the admin API path. Only a super_admin may mint another
// super_admin.
func (s *Service) CreateUser(ctx context.Context, actor auth.Principal, req CreateUserRequest) (*User, error) {
	if req.Role == auth.RoleSuperAdmin && actor.Role != auth.RoleSuperAdmin {
		return nil, apperr.Forbidden("only a super_admin can create super_admin accounts")
	}
	u, err := s.createUser(ctx, req)
	if err != nil {
		return nil, err
	}
	zerolog.Ctx(ctx).Info().
		Int64("user_id", u.ID).
		Int64("actor_id", actor.ID).
		Str("role", u.Role).
		Msg("user created")
	return u, nil
}

func (s *Service) createUser(ctx context.Context, req CreateUserRequest) (*User, error) {
	email := NormalizeEmail(req.Email)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, apperr.Validation("a valid email is required")
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperr.Validation("name is required")
	}
	if len(req.Password) < auth.MinPasswordLength {
		return nil, apperr.Validationf("password must be at least %d characters", auth.MinPasswordLength)
	}
	role := req.Role
	if role == "" {
		role = auth.RolePsychologist
	}
	if !auth.ValidRole(role) {
		return nil, apperr.Validationf("invalid role: %s", role)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	u := &User{
		Email:        email,
		PasswordHash: hash,
		Name:         name,
		Role:         role,
		CRP:          req.CRP,
		Phone:        req.Phone,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// SetActive enables or disables an account. Actors cannot disable themselves,
// and only a super_admin may toggle a super_admin account.
func (s *Service) SetActive(ctx context.Context, actor auth.Principal, id int64, active bool) (*User, error) {
	if id == actor.ID && !active {
		return nil, apperr.Validation("cannot deactivate your own account")
	}
	target, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if target.Role == auth.RoleSuperAdmin && actor.Role != auth.RoleSuperAdmin {
		return nil, apperr.Forbidden("only a super_admin can change a super_admin account")
	}
	if err := s.users.SetActive(ctx, id, active); err != nil {
		return nil, err
	}
	zerolog.Ctx(ctx).Info().
		Int64("user_id", id).
		Int64("actor_id", actor.ID).
		Bool("active", active).
		Msg("user active flag changed")
	return s.users.GetByID(ctx, id)
}

func (s *Service) ListUsers(ctx context.Context, limit, offset int) ([]*User, int, error) {
	return s.users.List(ctx, limit, offset)
}

// Bootstrap creates an account from the command line, the only path that can
// create the first super_admin. Duplicates get a clearer error.
func (s *Service) Bootstrap(ctx context.Context, req CreateUserRequest) (*User, error) {
	u, err := s.createUser(ctx, req)
	if apperr.Is(err, apperr.KindConflict) {
		return nil, fmt.Errorf("user %s already exists: %w", NormalizeEmail(req.Email), err)
	}
	if err != nil {
		return nil, err
	}
	zerolog.Ctx(ctx).Info().Int64("user_id", u.ID).Str("role", u.Role).Msg("user bootstrapped")
	return u, nil
}
