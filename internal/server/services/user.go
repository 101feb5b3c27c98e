// Package services contains server-side business logic. This file implements
// UserService, which handles registration with key provisioning, login with
// key unlock, token refresh and account removal.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/papervault/internal/common"
	"github.com/dmitrijs2005/papervault/internal/dbx"
	"github.com/dmitrijs2005/papervault/internal/logging"
	"github.com/dmitrijs2005/papervault/internal/server/auth"
	"github.com/dmitrijs2005/papervault/internal/server/config"
	"github.com/dmitrijs2005/papervault/internal/server/keys"
	"github.com/dmitrijs2005/papervault/internal/server/models"
	"github.com/dmitrijs2005/papervault/internal/server/repositories/repomanager"
)

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// KeyCustodian provisions user key pairs and manages unlocked sessions.
type KeyCustodian interface {
	Provision(passphrase string) (*keys.KeyMaterial, error)
	Unlock(ctx context.Context, user *models.User, passphrase string) error
	Extend(userID string) bool
	Lock(userID string)
	Forget(userID string)
}

// UserService provides account operations:
//   - Register: create a user with a fresh sealed key pair
//   - Login: unlock the private key and mint tokens
//   - RefreshToken: rotate refresh tokens and mint new access tokens
//   - Logout / Delete: end sessions, remove accounts
type UserService struct {
	db                           *sql.DB
	repomanager                  repomanager.RepositoryManager
	keys                         KeyCustodian
	logger                       logging.Logger
	jwtSecret                    []byte
	accessTokenValidityDuration  time.Duration
	refreshTokenValidityDuration time.Duration
}

// NewUserService constructs a UserService using repositories and server config.
func NewUserService(db *sql.DB, m repomanager.RepositoryManager, custodian KeyCustodian, logger logging.Logger, cfg *config.Config) *UserService {
	return &UserService{
		db:                           db,
		repomanager:                  m,
		keys:                         custodian,
		logger:                       logger.With("module", "users"),
		jwtSecret:                    []byte(cfg.SecretKey),
		accessTokenValidityDuration:  cfg.AccessTokenValidityDuration,
		refreshTokenValidityDuration: cfg.RefreshTokenValidityDuration,
	}
}

// Register creates a user whose private key is sealed under password.
func (s *UserService) Register(ctx context.Context, username, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, fmt.Errorf("username and password are required: %w", common.ErrValidation)
	}

	km, err := s.keys.Provision(password)
	if err != nil {
		return nil, fmt.Errorf("error provisioning keys: %w", err)
	}

	user := &models.User{
		UserName:         username,
		Salt:             km.Salt,
		Verifier:         km.Verifier,
		PublicKey:        km.PublicKey,
		SealedPrivateKey: km.SealedPrivateKey,
	}

	u, err := s.repomanager.Users(s.db).Create(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("error creating user: %w", err)
	}

	s.logger.Info(ctx, "user registered", "user_id", u.ID)
	return u, nil
}

// Login unlocks the user's private key for the session and returns a new
// TokenPair. Unknown users and wrong passwords are indistinguishable.
func (s *UserService) Login(ctx context.Context, userName, password string) (*TokenPair, error) {
	user, err := s.repomanager.Users(s.db).GetUserByLogin(ctx, userName)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, common.ErrorInternal
	}

	if err := s.keys.Unlock(ctx, user, password); err != nil {
		if errors.Is(err, common.ErrorUnauthorized) {
			s.logger.Warn(ctx, "login refused", "user_id", user.ID)
			return nil, common.ErrorUnauthorized
		}
		return nil, common.ErrorInternal
	}

	return s.generateTokenPair(ctx, user.ID, s.db)
}

// RefreshToken validates a refresh token, rotates it transactionally, and
// returns a fresh TokenPair. Expired tokens yield ErrRefreshTokenExpired.
func (s *UserService) RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	repo := s.repomanager.RefreshTokens(s.db)

	token, err := repo.Find(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidToken
		}
		return nil, fmt.Errorf("error searching refresh token: %w", err)
	}
	if token.Expires.Before(time.Now()) {
		return nil, common.ErrRefreshTokenExpired
	}

	var pair *TokenPair
	if err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.RefreshTokens(tx).Delete(ctx, refreshToken); err != nil {
			return fmt.Errorf("error deleting refresh token: %w", err)
		}
		var genErr error
		pair, genErr = s.generateTokenPair(ctx, token.UserID, tx)
		return genErr
	}); err != nil {
		return nil, err
	}

	// the unlocked key follows the refresh chain; without one the client
	// still gets tokens but must log in again to decrypt
	if !s.keys.Extend(token.UserID) {
		s.logger.Debug(ctx, "refresh without unlocked key", "user_id", token.UserID)
	}
	return pair, nil
}

// Logout revokes every refresh token of userID and drops the unlocked key.
// Access tokens already issued stay valid until they expire but can no
// longer decrypt anything.
func (s *UserService) Logout(ctx context.Context, userID string) error {
	if err := s.repomanager.RefreshTokens(s.db).DeleteByUser(ctx, userID); err != nil {
		return err
	}
	s.keys.Lock(userID)
	return nil
}

// Delete removes an account together with its role bindings and tokens.
// Users that are creator or moderator of any paper are kept: their wrapped
// keys are the only way into those papers.
func (s *UserService) Delete(ctx context.Context, userID string) error {
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		n, err := s.repomanager.Papers(tx).CountByParticipant(ctx, userID)
		if err != nil {
			return err
		}
		if n > 0 {
			return common.ErrUserIsRecipient
		}

		if err := s.repomanager.UserRoles(tx).DeleteByUser(ctx, userID); err != nil {
			return err
		}
		if err := s.repomanager.RefreshTokens(tx).DeleteByUser(ctx, userID); err != nil {
			return err
		}
		return s.repomanager.Users(tx).Delete(ctx, userID)
	})
	if err != nil {
		return err
	}

	s.keys.Forget(userID)
	s.logger.Info(ctx, "user deleted", "user_id", userID)
	return nil
}

// GetByUserName returns the user called userName or common.ErrorNotFound.
func (s *UserService) GetByUserName(ctx context.Context, userName string) (*models.User, error) {
	return s.repomanager.Users(s.db).GetUserByLogin(ctx, userName)
}

// --- helpers below ---

func (s *UserService) generateAccessToken(userID string) (string, error) {
	return auth.GenerateToken(userID, s.jwtSecret, s.accessTokenValidityDuration)
}

func (s *UserService) generateRefreshToken() (string, error) {
	return common.MakeRandHexString(32)
}

func (s *UserService) generateTokenPair(ctx context.Context, userID string, tx dbx.DBTX) (*TokenPair, error) {
	access, err := s.generateAccessToken(userID)
	if err != nil {
		return nil, common.ErrorInternal
	}
	refresh, err := s.generateRefreshToken()
	if err != nil {
		return nil, common.ErrorInternal
	}
	refreshRepo := s.repomanager.RefreshTokens(tx)
	if err := refreshRepo.Create(ctx, userID, refresh, s.refreshTokenValidityDuration); err != nil {
		return nil, common.ErrorInternal
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}
