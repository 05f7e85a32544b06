package usecase

import (
	"context"
	"errors"
	"time"

	"PricePortal/internal/domain/models"
	drepo "PricePortal/internal/domain/repository"
	"PricePortal/internal/service/auth"
	xhttp "PricePortal/pkg/http"
	"PricePortal/pkg/logger"

	"github.com/google/uuid"
)

const (
	MsgUserExists         = "A user with that username already exists."
	MsgInvalidCredentials = "No active account found with the given credentials"
	MsgInvalidToken       = "Token is invalid or expired"
)

// AuthService registers accounts and issues JWT pairs.
type AuthService struct {
	users   drepo.UserRepository
	hasher  *auth.PasswordHasher
	tokens  *auth.TokenService
	metrics drepo.Metrics
	log     *logger.Logger
	now     func() time.Time
	// compared against on unknown usernames so both paths cost one bcrypt
	dummy   string
}

func NewAuthService(users drepo.UserRepository, hasher *auth.PasswordHasher, tokens *auth.TokenService, metrics drepo.Metrics, log *logger.Logger) *AuthService {
	dummy, _ := hasher.Hash(uuid.NewString())
	return &AuthService{
		dummy:   dummy,
		users:   users,
		hasher:  hasher,
		tokens:  tokens,
		metrics: metrics,
		log:     log.Component("auth_service"),
		now:     time.Now,
	}
}

// Register creates an account. The password is stored only as a bcrypt hash.
func (s *AuthService) Register(ctx context.Context, username, password string) (*models.User, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}
	u := &models.User{
		ID:           uuid.New(),
		Username:     username,
		PasswordHash: hash,
		DateJoined:   s.now().UTC(),
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, models.ErrUserExists) {
			return nil, xhttp.BadRequestError(MsgUserExists).WithCode("ERR_USER_EXISTS").WithError(err)
		}
		s.metrics.RecordError("user_create")
		return nil, err
	}
	s.log.Info("user registered", logger.String("username", username))
	return u, nil
}

// Login verifies credentials and returns an access/refresh pair.
func (s *AuthService) Login(ctx context.Context, username, password string) (*models.TokenPair, error) {
	u, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			s.hasher.Verify(s.dummy, password)
			return nil, xhttp.UnauthorizedError(MsgInvalidCredentials)
		}
		s.metrics.RecordError("user_lookup")
		return nil, err
	}
	if !s.hasher.Verify(u.PasswordHash, password) {
		return nil, xhttp.UnauthorizedError(MsgInvalidCredentials)
	}
	return s.tokens.IssuePair(u)
}

// Refresh exchanges a refresh token for a new access token.
func (s *AuthService) Refresh(ctx context.Context, refresh string) (*models.AccessToken, error) {
	access, err := s.tokens.Refresh(refresh)
	if err != nil {
		return nil, xhttp.UnauthorizedError(MsgInvalidToken).WithError(err)
	}
	return &models.AccessToken{Access: access}, nil
}

// Authenticate resolves an access token to its username.
func (s *AuthService) Authenticate(token string) (string, error) {
	c, err := s.tokens.ParseAccess(token)
	if err != nil {
		return "", xhttp.UnauthorizedError(MsgInvalidToken).WithError(err)
	}
	return c.Username, nil
}
