package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/fathima-sithara/chat-core/internal/blob"
	"github.com/fathima-sithara/chat-core/internal/cerr"
	"github.com/fathima-sithara/chat-core/internal/domain"
	"github.com/fathima-sithara/chat-core/internal/profile"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type Service struct {
	users  profile.Repository
	blobs  blob.Store
	tokens *TokenManager
	log    *zap.SugaredLogger
}

func NewService(users profile.Repository, blobs blob.Store, tokens *TokenManager, log *zap.SugaredLogger) *Service {
	return &Service{users: users, blobs: blobs, tokens: tokens, log: log}
}

type Session struct {
	UserID string `json:"uid"`
	Token  string `json:"token"`
}

// CreateAccount registers a user and, when image bytes are given, uploads
// the profile image and persists its URL. Account creation is not complete
// until the profile record (including the image reference) is written; an
// image or profile failure is reported and the caller retries just
// PersistProfileImage, which overwrites rather than duplicates.
func (s *Service) CreateAccount(ctx context.Context, email, password string, image []byte, contentType string) (Session, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || !strings.Contains(email, "@") {
		return Session{}, cerr.Validation("invalid email address")
	}
	if len(password) < 6 {
		return Session{}, cerr.Validation("password must be at least 6 characters")
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return Session{}, cerr.Validation("email already registered")
	} else if !errors.Is(err, cerr.ErrNotFound) {
		return Session{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Session{}, cerr.Auth("hash password")
	}

	u := domain.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.users.Persist(ctx, u); err != nil {
		return Session{}, err
	}

	if len(image) > 0 {
		if err := s.PersistProfileImage(ctx, u.ID, image, contentType); err != nil {
			return Session{}, err
		}
	}

	token, err := s.tokens.Mint(u.ID)
	if err != nil {
		return Session{}, cerr.Auth("mint token")
	}
	s.log.Infow("account created", "uid", u.ID)
	return Session{UserID: u.ID, Token: token}, nil
}

// PersistProfileImage uploads the image under the uid key and rewrites the
// user record with the resulting URL. Safe to re-run: blob keys and the
// user record are both keyed by uid, so the second URL wins.
func (s *Service) PersistProfileImage(ctx context.Context, userID string, image []byte, contentType string) error {
	if s.blobs == nil {
		return cerr.Storage("no blob store configured", nil)
	}
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return err
	}
	url, err := s.blobs.Put(ctx, userID, contentType, image)
	if err != nil {
		return cerr.Storage("upload profile image", err)
	}
	u.ProfileImageURL = url
	if err := s.users.Persist(ctx, u); err != nil {
		return cerr.Storage("persist profile image reference", err)
	}
	return nil
}

func (s *Service) SignIn(ctx context.Context, email, password string) (Session, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, cerr.ErrNotFound) {
			return Session{}, cerr.Auth("invalid email or password")
		}
		return Session{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return Session{}, cerr.Auth("invalid email or password")
	}
	token, err := s.tokens.Mint(u.ID)
	if err != nil {
		return Session{}, cerr.Auth("mint token")
	}
	return Session{UserID: u.ID, Token: token}, nil
}

// CurrentUserID resolves a presented token to a user id.
func (s *Service) CurrentUserID(token string) (string, error) {
	return s.tokens.Validate(token)
}
