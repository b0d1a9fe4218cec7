package service

import (
	"context"
	"errors"
	"fittrainer/backend/internal/domain"
	"fittrainer/backend/internal/metrics"
	"fittrainer/backend/internal/repository"
	"fittrainer/backend/internal/telegram"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v4"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"
)

// --- Error Definitions ---
var (
	ErrUserAlreadyExists    = errors.New("user with this username or email already exists")
	ErrAuthenticationFailed = errors.New("authentication failed: invalid username or password")
	ErrHashingFailed        = errors.New("failed to hash password")
	ErrTokenGeneration      = errors.New("failed to generate authentication token")
	ErrInvalidToken         = errors.New("invalid or expired token")
	ErrInvalidInitData      = errors.New("invalid telegram init data")
	ErrInitDataExpired      = errors.New("telegram init data is too old")
	ErrInvalidRole          = errors.New("role must be 'trainer' or 'client'")
	ErrUserNotFound         = errors.New("user not found")
	ErrProfileNotFound      = errors.New("role profile not found")
)

// Clock returns the current time. Services take one so tests can pin it.
type Clock func() time.Time

// Session is the outcome of a successful login.
type Session struct {
	Token   string
	User    *domain.User
	Created bool // account was created by this login
}

// Identity is a user together with its role profile.
type Identity struct {
	User    *domain.User
	Trainer *domain.Trainer
	Client  *domain.Client
}

// RegisterInput holds the fields of a password registration.
type RegisterInput struct {
	Username  string
	Password  string
	FirstName string
	LastName  string
	Email     string
	Role      domain.Role
}

// Claims is the verified JWT payload.
type Claims struct {
	UserID primitive.ObjectID
	Role   domain.Role
}

type AuthService interface {
	// TelegramLogin verifies Mini-App init-data and resolves it to an account,
	// creating the user and role profile on first contact.
	TelegramLogin(ctx context.Context, initData string, role domain.Role) (*Session, error)
	Register(ctx context.Context, input RegisterInput) (*domain.User, error)
	Login(ctx context.Context, username, password string) (*Session, error)
	Me(ctx context.Context, userID primitive.ObjectID) (*Identity, error)
	ParseToken(tokenString string) (*Claims, error)
}

// AuthConfig carries the secrets and limits of the auth service.
type AuthConfig struct {
	JWTSecret     string
	JWTExpiration time.Duration
	BotToken      string
	MaxAuthAge    time.Duration // zero disables the freshness check
}

// authService implements the AuthService interface.
type authService struct {
	userRepo    repository.UserRepository
	profileRepo repository.ProfileRepository
	cfg         AuthConfig
	metrics     *metrics.Manager
	now         Clock
}

// NewAuthService creates a new instance of authService.
func NewAuthService(
	userRepo repository.UserRepository,
	profileRepo repository.ProfileRepository,
	cfg AuthConfig,
	metricsManager *metrics.Manager,
	now Clock,
) AuthService {
	if cfg.JWTSecret == "" {
		panic("JWT secret cannot be empty") // Critical configuration
	}
	if cfg.JWTExpiration <= 0 {
		cfg.JWTExpiration = 30 * 24 * time.Hour
	}
	if now == nil {
		now = time.Now
	}
	return &authService{
		userRepo:    userRepo,
		profileRepo: profileRepo,
		cfg:         cfg,
		metrics:     metricsManager,
		now:         now,
	}
}

func (s *authService) countTelegramAuth(result string) {
	if s.metrics != nil {
		s.metrics.CounterTelegramAuth.WithLabelValues(result).Inc()
	}
}

// TelegramLogin handles the Mini-App login.
//
// On repeat logins the stored role wins over the requested one. Two first
// logins of the same Telegram account racing each other are settled by the
// unique telegramId index: the loser re-reads the winner's record. Every path
// ensures the role profile exists before a token is issued.
func (s *authService) TelegramLogin(ctx context.Context, initData string, role domain.Role) (*Session, error) {
	if role == "" {
		role = domain.RoleClient
	}
	if !role.Valid() {
		return nil, ErrInvalidRole
	}

	data, err := telegram.ValidateInitData(initData, s.cfg.BotToken)
	if err != nil {
		s.countTelegramAuth("rejected")
		log.WithError(err).Warn("telegram init data rejected")
		return nil, ErrInvalidInitData
	}
	if s.cfg.MaxAuthAge > 0 && (data.AuthDate.IsZero() || s.now().Sub(data.AuthDate) > s.cfg.MaxAuthAge) {
		s.countTelegramAuth("expired")
		return nil, ErrInitDataExpired
	}
	if data.User.ID == 0 {
		s.countTelegramAuth("rejected")
		log.Warn("telegram init data carries no user id")
		return nil, ErrInvalidInitData
	}

	user, created, err := s.resolveTelegramUser(ctx, data.User, role)
	if err != nil {
		s.countTelegramAuth("error")
		return nil, err
	}

	token, err := s.generateJWT(user)
	if err != nil {
		return nil, ErrTokenGeneration
	}
	s.countTelegramAuth("ok")
	log.WithFields(log.Fields{
		"userId":  user.ID.Hex(),
		"role":    user.Role,
		"created": created,
	}).Info("telegram login")

	return &Session{Token: token, User: user, Created: created}, nil
}

func (s *authService) resolveTelegramUser(ctx context.Context, tgUser telegram.User, role domain.Role) (*domain.User, bool, error) {
	existing, err := s.userRepo.GetByTelegramID(ctx, tgUser.ID)
	if err == nil {
		if err := s.ensureProfile(ctx, existing); err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, false, fmt.Errorf("lookup telegram user: %w", err)
	}

	fallback := "tg_" + strconv.FormatInt(tgUser.ID, 10)
	username := tgUser.Username
	if username == "" {
		username = fallback
	}

	for attempt := 0; ; attempt++ {
		telegramID := tgUser.ID
		user := &domain.User{
			Username:   username,
			FirstName:  tgUser.FirstName,
			LastName:   tgUser.LastName,
			Role:       role,
			TelegramID: &telegramID,
		}
		_, err = s.userRepo.Create(ctx, user)
		if err == nil {
			// The user is kept on failure; the next login attaches the profile.
			if err := s.ensureProfile(ctx, user); err != nil {
				return nil, false, err
			}
			return user, true, nil
		}
		if !errors.Is(err, repository.ErrDuplicate) {
			return nil, false, fmt.Errorf("create telegram user: %w", err)
		}

		// Either another login for this account won the race, or the
		// Telegram username is taken by a different account.
		winner, lookupErr := s.userRepo.GetByTelegramID(ctx, tgUser.ID)
		if lookupErr == nil {
			// The winner may still be creating the profile.
			if err := s.ensureProfile(ctx, winner); err != nil {
				return nil, false, err
			}
			return winner, false, nil
		}
		if !errors.Is(lookupErr, repository.ErrNotFound) {
			return nil, false, fmt.Errorf("lookup telegram user: %w", lookupErr)
		}
		if attempt > 0 || username == fallback {
			return nil, false, ErrUserAlreadyExists
		}
		username = fallback
	}
}

// ensureProfile makes sure the user's role profile exists, creating it when
// missing. The unique userId index settles concurrent creators.
func (s *authService) ensureProfile(ctx context.Context, user *domain.User) error {
	var err error
	switch user.Role {
	case domain.RoleTrainer:
		_, err = s.profileRepo.GetTrainerByUserID(ctx, user.ID)
	default:
		_, err = s.profileRepo.GetClientByUserID(ctx, user.ID)
	}
	if err == nil {
		return nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("get %s profile: %w", user.Role, err)
	}
	if err := s.insertProfile(ctx, user); err != nil {
		log.WithError(err).WithFields(log.Fields{"userId": user.ID.Hex(), "role": user.Role}).
			Error("failed to create role profile")
		return fmt.Errorf("create %s profile: %w", user.Role, err)
	}
	return nil
}

// insertProfile creates the role profile. A duplicate means another request
// already created it.
func (s *authService) insertProfile(ctx context.Context, user *domain.User) error {
	var err error
	switch user.Role {
	case domain.RoleTrainer:
		_, err = s.profileRepo.CreateTrainer(ctx, &domain.Trainer{UserID: user.ID})
	default:
		_, err = s.profileRepo.CreateClient(ctx, &domain.Client{UserID: user.ID})
	}
	if errors.Is(err, repository.ErrDuplicate) {
		return nil
	}
	return err
}

// createProfile attaches the role profile to a freshly registered user. When
// that fails the user is removed so the registration can be retried.
func (s *authService) createProfile(ctx context.Context, user *domain.User) error {
	err := s.insertProfile(ctx, user)
	if err == nil {
		return nil
	}

	logger := log.WithFields(log.Fields{"userId": user.ID.Hex(), "role": user.Role})
	logger.WithError(err).Error("failed to create role profile, removing user")
	if delErr := s.userRepo.Delete(ctx, user.ID); delErr != nil {
		logger.WithError(delErr).Error("failed to remove user after profile failure")
	}
	return fmt.Errorf("create %s profile: %w", user.Role, err)
}

// Register handles new user registration.
func (s *authService) Register(ctx context.Context, input RegisterInput) (*domain.User, error) {
	if input.Username == "" || input.Password == "" || input.FirstName == "" {
		return nil, errors.New("username, password and first name cannot be empty")
	}
	if !input.Role.Valid() {
		return nil, ErrInvalidRole
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, ErrHashingFailed
	}

	user := &domain.User{
		Username:     input.Username,
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Email:        input.Email,
		PasswordHash: string(hashedPassword),
		Role:         input.Role,
	}
	// The unique indexes decide; no read-then-write check.
	if _, err = s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrUserAlreadyExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	if err = s.createProfile(ctx, user); err != nil {
		return nil, err
	}

	user.PasswordHash = ""
	return user, nil
}

// Login handles user authentication and JWT generation.
func (s *authService) Login(ctx context.Context, username, password string) (*Session, error) {
	if username == "" || password == "" {
		return nil, errors.New("username and password cannot be empty")
	}

	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAuthenticationFailed
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	// Telegram-only accounts have no password.
	if user.PasswordHash == "" {
		return nil, ErrAuthenticationFailed
	}
	if err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrAuthenticationFailed
	}
	if err = s.ensureProfile(ctx, user); err != nil {
		return nil, err
	}

	token, err := s.generateJWT(user)
	if err != nil {
		return nil, ErrTokenGeneration
	}
	user.PasswordHash = ""
	return &Session{Token: token, User: user}, nil
}

// Me returns the caller with its role profile.
func (s *authService) Me(ctx context.Context, userID primitive.ObjectID) (*Identity, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	user.PasswordHash = ""

	identity := &Identity{User: user}
	switch user.Role {
	case domain.RoleTrainer:
		identity.Trainer, err = s.profileRepo.GetTrainerByUserID(ctx, userID)
	case domain.RoleClient:
		identity.Client, err = s.profileRepo.GetClientByUserID(ctx, userID)
	}
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return identity, nil
}

// --- JWT Helper ---

// jwtClaims defines the structure of the JWT payload.
type jwtClaims struct {
	UserID string      `json:"uid"`  // User ID
	Role   domain.Role `json:"role"` // User Role
	jwt.RegisteredClaims
}

const jwtIssuer = "fittrainer"

// generateJWT creates a new JWT token for the given user.
func (s *authService) generateJWT(user *domain.User) (string, error) {
	now := s.now()
	claims := &jwtClaims{
		UserID: user.ID.Hex(),
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.Hex(),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.JWTExpiration)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    jwtIssuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.JWTSecret))
}

// ParseToken verifies signature, algorithm and expiry of a bearer token.
func (s *authService) ParseToken(tokenString string) (*Claims, error) {
	claims := &jwtClaims{}
	// Expiry is checked below against the service clock.
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithoutClaimsValidation())
	token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil || !token.Valid || !claims.VerifyExpiresAt(s.now(), true) {
		return nil, ErrInvalidToken
	}

	userID, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil || !claims.Role.Valid() {
		return nil, ErrInvalidToken
	}
	return &Claims{UserID: userID, Role: claims.Role}, nil
}
