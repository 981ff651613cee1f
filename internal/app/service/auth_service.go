package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"timetrack/internal/common"
	"timetrack/internal/common/security"
	"timetrack/internal/domain/model"
	"timetrack/internal/domain/repository"

	"github.com/go-chi/jwtauth/v5"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

type AuthService struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	tokenAuth   *jwtauth.JWTAuth
	sessionTTL  time.Duration
	clock       clockwork.Clock
}

func NewAuthService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	tokenAuth *jwtauth.JWTAuth,
	sessionTTL time.Duration,
	clock clockwork.Clock,
) *AuthService {
	return &AuthService{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		tokenAuth:   tokenAuth,
		sessionTTL:  sessionTTL,
		clock:       clock,
	}
}

type SignupRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthResponse is returned by Signup and Login. SessionID only travels in the
// signed sid cookie.
type AuthResponse struct {
	User      *model.User `json:"user"`
	Token     string      `json:"token"`
	SessionID string      `json:"-"`
}

func (s *AuthService) Signup(ctx context.Context, req SignupRequest) (*AuthResponse, error) {
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		return nil, common.NewError(common.ErrBadRequest, "Username and password are required")
	}
	if len(req.Password) > security.MaxPasswordBytes {
		return nil, common.NewError(common.ErrBadRequest, "Password must be at most 72 bytes")
	}

	hashedPassword, err := security.HashPassword(req.Password)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, common.NewError(common.ErrBadRequest, "Password must be at most 72 bytes")
		}
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		ID:             uuid.NewString(),
		Username:       req.Username,
		HashedPassword: hashedPassword,
		CreatedAt:      s.clock.Now().UTC().Truncate(time.Millisecond),
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, common.ErrConflict) {
			return nil, common.NewError(common.ErrConflict, "Username already exists")
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	log.Info().Str("user_id", user.ID).Str("username", user.Username).Msg("user registered")
	return s.issue(ctx, user)
}

// Register is Signup with positional arguments.
func (s *AuthService) Register(ctx context.Context, username, password string) (*AuthResponse, error) {
	return s.Signup(ctx, SignupRequest{Username: username, Password: password})
}

func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	if req.Username == "" || req.Password == "" {
		return nil, common.NewError(common.ErrBadRequest, "Username and password are required")
	}

	user, err := s.userRepo.FindByUsername(ctx, strings.TrimSpace(req.Username))
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.NewError(common.ErrUnauthorized, "Invalid username or password")
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if !security.CheckPasswordHash(req.Password, user.HashedPassword) {
		return nil, common.NewError(common.ErrUnauthorized, "Invalid username or password")
	}

	return s.issue(ctx, user)
}

// Logout destroys the session. An unknown or empty id is not an error.
func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if err := s.sessionRepo.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to destroy session: %v: %w", err, common.ErrInternalServer)
	}
	return nil
}

// VerifyToken checks a bearer token. A missing token is Unauthorized; one
// that fails signature or payload checks is Forbidden.
func (s *AuthService) VerifyToken(tokenString string) (*model.Principal, error) {
	if tokenString == "" {
		return nil, common.NewError(common.ErrUnauthorized, "Access denied. No token provided.")
	}

	claims, err := security.ParseToken(s.tokenAuth, tokenString)
	if err != nil {
		return nil, common.NewError(common.ErrForbidden, "Invalid token")
	}
	userID, err := security.GetUserIDFromClaims(claims)
	if err != nil {
		return nil, common.NewError(common.ErrForbidden, "Invalid token")
	}
	username, _ := security.GetUsernameFromClaims(claims)

	return &model.Principal{UserID: userID, Username: username}, nil
}

// SessionUser resolves the user behind a session id, for live channel
// admission.
func (s *AuthService) SessionUser(ctx context.Context, sessionID string) (*model.User, error) {
	if sessionID == "" {
		return nil, common.NewError(common.ErrUnauthorized, "Unauthorized")
	}
	sess, err := s.sessionRepo.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.NewError(common.ErrUnauthorized, "Unauthorized")
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	user := sess.User
	return &user, nil
}

func (s *AuthService) issue(ctx context.Context, user *model.User) (*AuthResponse, error) {
	token, err := security.GenerateToken(s.tokenAuth, user.ID, user.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	public := user.Public()
	sess := &model.Session{
		ID:        uuid.NewString(),
		User:      public,
		CreatedAt: s.clock.Now().UTC(),
	}
	if err := s.sessionRepo.Create(ctx, sess, s.sessionTTL); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return &AuthResponse{User: &public, Token: token, SessionID: sess.ID}, nil
}
