package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"gorm.io/gorm"

	"github.com/Skotchmaster/issue_logger/internal/events"
	"github.com/Skotchmaster/issue_logger/internal/hash"
	"github.com/Skotchmaster/issue_logger/internal/models"
	"github.com/Skotchmaster/issue_logger/pkg/logging"
	"github.com/Skotchmaster/issue_logger/pkg/tokens"
)

const MinPasswordLength = 6

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

type AuthService struct {
	Store  AuthStore
	Tokens *tokens.Service
	Hasher *hash.Hasher
	Events events.Publisher

	now       func() time.Time
	dummyHash string
}

type AuthOption func(*AuthService)

func WithAuthClock(now func() time.Time) AuthOption {
	return func(s *AuthService) {
		if now != nil {
			s.now = now
		}
	}
}

func NewAuthService(store AuthStore, tok *tokens.Service, hasher *hash.Hasher, pub events.Publisher, opts ...AuthOption) (*AuthService, error) {
	if pub == nil {
		pub = events.Nop{}
	}
	s := &AuthService{
		Store:  store,
		Tokens: tok,
		Hasher: hasher,
		Events: pub,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	// compared against on unknown emails so both login failures cost one bcrypt check
	dummy, err := hasher.Hash(context.Background(), "issue-logger-unknown-user")
	if err != nil {
		return nil, fmt.Errorf("prepare dummy hash: %w", err)
	}
	s.dummyHash = dummy
	return s, nil
}

type RegisterInput struct {
	Email    string
	Password string
	FullName *string
	Role     string
}

type LoginResult struct {
	AccessToken  string
	RefreshToken string
	AccessExp    time.Time
	RefreshExp   time.Time
	User         *models.User
}

type RefreshResult struct {
	AccessToken string
	AccessExp   time.Time
}

type FullProfile struct {
	User        *models.User
	Profile     *models.UserProfile
	Preferences *models.UserPreference
	Addresses   []models.UserAddress
}

// ResolveRole maps a requested role to a stored one. Only the exact string
// "admin" yields an admin.
func ResolveRole(requested string) string {
	if requested == models.RoleAdmin {
		return models.RoleAdmin
	}
	return models.RoleUser
}

func validateCredentials(email, password string) error {
	if email == "" || password == "" {
		return invalid("Email and password are required")
	}
	if !emailRe.MatchString(email) {
		return invalid("Invalid email format")
	}
	if len(password) < MinPasswordLength {
		return invalid(fmt.Sprintf("Password must be at least %d characters long", MinPasswordLength))
	}
	return nil
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	l := logging.FromContext(ctx).With("svc", "auth.register")

	if err := validateCredentials(in.Email, in.Password); err != nil {
		return nil, err
	}

	taken, err := s.Store.EmailTaken(ctx, in.Email)
	if err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if taken {
		return nil, ErrConflict
	}

	pwHash, err := s.Hasher.Hash(ctx, in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		Email:        in.Email,
		PasswordHash: pwHash,
		FullName:     in.FullName,
		Role:         ResolveRole(in.Role),
	}
	if err := s.Store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.seedProfile(ctx, user.ID)
	s.publish(ctx, events.TopicUsers, user.ID, events.Event{
		Type:   events.TypeUserRegistered,
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
	})

	l.Info("user_registered", "user_id", user.ID, "role", user.Role)
	return user, nil
}

// seedProfile creates the empty profile and default preferences rows. The
// user row is already committed; failures here are logged only.
func (s *AuthService) seedProfile(ctx context.Context, userID uint) {
	l := logging.FromContext(ctx).With("svc", "auth.register", "user_id", userID)

	if err := s.Store.CreateProfile(ctx, &models.UserProfile{UserID: userID}); err != nil {
		l.Warn("profile_seed_failed", "table", "user_profiles", "error", err)
	}
	pref := models.DefaultPreference(userID)
	if err := s.Store.CreatePreference(ctx, &pref); err != nil {
		l.Warn("profile_seed_failed", "table", "user_preferences", "error", err)
	}
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	l := logging.FromContext(ctx).With("svc", "auth.login")

	if email == "" || password == "" {
		return nil, invalid("Email and password are required")
	}

	user, err := s.Store.UserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.Hasher.Check(s.dummyHash, password)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	if !s.Hasher.Check(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	accessToken, accessExp, err := s.Tokens.IssueAccess(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, err
	}
	refreshToken, refreshExp, err := s.Tokens.IssueRefresh(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, err
	}

	if err := s.Store.CreateRefreshToken(ctx, &models.RefreshToken{
		UserID:    user.ID,
		Token:     refreshToken,
		ExpiresAt: refreshExp.UTC(),
	}); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	s.publish(ctx, events.TopicUsers, user.ID, events.Event{
		Type:   events.TypeUserLoggedIn,
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
	})

	l.Info("login_successful", "user_id", user.ID)
	return &LoginResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		AccessExp:    accessExp,
		RefreshExp:   refreshExp,
		User:         user,
	}, nil
}

// Refresh mints a new access token. The refresh token itself is not rotated.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("%w: refresh token missing", ErrUnauthenticated)
	}

	claims, err := s.Tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}

	ok, err := s.Store.RefreshTokenValid(ctx, refreshToken, claims.UserID, s.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("check refresh token: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: refresh token revoked or expired", ErrUnauthenticated)
	}

	accessToken, accessExp, err := s.Tokens.IssueAccess(claims.UserID, claims.Email, claims.Role)
	if err != nil {
		return nil, err
	}
	return &RefreshResult{AccessToken: accessToken, AccessExp: accessExp}, nil
}

// Logout forgets refreshToken. Unknown or empty tokens are not an error.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	l := logging.FromContext(ctx).With("svc", "auth.logout")

	if refreshToken == "" {
		return nil
	}

	n, err := s.Store.DeleteRefreshToken(ctx, refreshToken)
	if err != nil {
		return fmt.Errorf("delete refresh token: %w", err)
	}

	if n > 0 {
		if claims, err := s.Tokens.VerifyRefresh(refreshToken); err == nil {
			s.publish(ctx, events.TopicUsers, claims.UserID, events.Event{
				Type:   events.TypeUserLoggedOut,
				UserID: claims.UserID,
			})
		}
	}
	l.Info("logout", "revoked", n)
	return nil
}

func (s *AuthService) GetProfile(ctx context.Context, userID uint) (*models.User, error) {
	user, err := s.Store.UserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return user, nil
}

func (s *AuthService) GetFullProfile(ctx context.Context, userID uint) (*FullProfile, error) {
	user, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	profile, err := s.Store.ProfileByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("find profile: %w", err)
	}
	prefs, err := s.Store.PreferenceByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("find preferences: %w", err)
	}
	addrs, err := s.Store.AddressesByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("find addresses: %w", err)
	}

	return &FullProfile{
		User:        user,
		Profile:     profile,
		Preferences: prefs,
		Addresses:   addrs,
	}, nil
}

func (s *AuthService) ListUsers(ctx context.Context) ([]models.User, error) {
	users, err := s.Store.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// SweepExpired deletes refresh token rows that can no longer be used.
func (s *AuthService) SweepExpired(ctx context.Context) (int64, error) {
	return s.Store.DeleteExpiredRefreshTokens(ctx, s.now().UTC())
}

func (s *AuthService) publish(ctx context.Context, topic string, key uint, ev events.Event) {
	ev.At = s.now().UTC()
	if err := s.Events.PublishEvent(ctx, topic, strconv.FormatUint(uint64(key), 10), ev); err != nil {
		logging.FromContext(ctx).Warn("event_publish_failed", "topic", topic, "type", ev.Type, "error", err)
	}
}
