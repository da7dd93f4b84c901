package service

import (
	"context"
	"crypto/sha256"
	"encoding/base64"

	"github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/Rogue-Bear-Innovations/bookmarker-accounts/internal/config"
	"github.com/Rogue-Bear-Innovations/bookmarker-accounts/internal/db"
)

var (
	Module = fx.Provide(
		NewSessionStore,
		NewGeneral,
	)
)

var (
	ErrUserExists         = errors.New("user exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrUnauthorized       = errors.New("unauthorized")
)

type (
	General struct {
		db           *gorm.DB
		sessions     SessionStore
		codec        db.BookmarkCodec
		logger       *zap.SugaredLogger
		bcryptCost   int
		requireToken bool
	}

	LoginResult struct {
		Username  string
		Bookmarks []string
		Session   *Session
	}
)

func NewGeneral(cfg *config.Config, gdb *gorm.DB, sessions SessionStore, codec db.BookmarkCodec, l *zap.SugaredLogger) *General {
	return &General{
		db:           gdb,
		sessions:     sessions,
		codec:        codec,
		logger:       l,
		bcryptCost:   cfg.BcryptCost,
		requireToken: cfg.RequireToken,
	}
}

func (s *General) Signup(ctx context.Context, username, pass string) error {
	_, err := s.findUser(ctx, username)
	switch {
	case err == nil:
		return ErrUserExists
	case !errors.Is(err, ErrUserNotFound):
		return err
	}

	hash, err := s.bcryptGen(pass)
	if err != nil {
		return errors.Wrap(err, "bcryptGen")
	}
	res := s.db.WithContext(ctx).Create(&db.User{
		Username: username,
		Password: hash,
	})
	if res.Error != nil {
		// lost a race with a concurrent signup for the same username
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return ErrUserExists
		}
		return errors.Wrap(res.Error, "create user")
	}

	s.logger.Debugw("user created", "username", username)
	return nil
}

func (s *General) Login(ctx context.Context, username, pass string) (*LoginResult, error) {
	user, err := s.findUser(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := s.bcryptCheck(user.Password, pass); err != nil {
		return nil, ErrInvalidCredentials
	}

	bookmarks, err := s.codec.Decode(user.Bookmarks)
	if err != nil {
		return nil, errors.Wrap(err, "decode bookmarks")
	}

	session, err := s.sessions.Create(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	return &LoginResult{
		Username:  user.Username,
		Bookmarks: bookmarks,
		Session:   session,
	}, nil
}

// SaveBookmarks replaces the whole bookmark sequence of username. caller is the
// session presented with the request and may be nil when tokens are not
// required.
func (s *General) SaveBookmarks(ctx context.Context, caller *Session, username string, bookmarks []string) error {
	if s.requireToken && caller == nil {
		return ErrUnauthorized
	}

	user, err := s.findUser(ctx, username)
	if err != nil {
		return err
	}

	if s.requireToken && caller.UserID != user.ID {
		return ErrUnauthorized
	}

	raw, err := s.codec.Encode(bookmarks)
	if err != nil {
		return errors.Wrap(err, "encode bookmarks")
	}

	res := s.db.WithContext(ctx).Model(user).Update("bookmarks", raw)
	if res.Error != nil {
		return errors.Wrap(res.Error, "update bookmarks")
	}
	return nil
}

// Authenticate resolves a session token. Unknown and expired tokens yield
// ErrUnauthorized.
func (s *General) Authenticate(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}
	session, err := s.sessions.Get(ctx, token)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	return session, nil
}

func (s *General) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.sessions.Delete(ctx, token)
}

func (s *General) findUser(ctx context.Context, username string) (*db.User, error) {
	sql, args, err := squirrel.
		Select("id", "created_at", "updated_at", "username", "password", "bookmarks").
		From("users").
		Where(squirrel.Eq{"username": username}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "build sql")
	}

	users := make([]db.User, 0, 1)
	res := s.db.WithContext(ctx).Raw(sql, args...).Scan(&users)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "scan")
	}
	if len(users) == 0 {
		return nil, ErrUserNotFound
	}
	return &users[0], nil
}

// prehash fits passwords of any length into the 72 bytes bcrypt accepts.
func prehash(pass string) []byte {
	sum := sha256.Sum256([]byte(pass))
	return []byte(base64.StdEncoding.EncodeToString(sum[:]))
}

func (s *General) bcryptGen(pass string) (string, error) {
	passwordHashB, err := bcrypt.GenerateFromPassword(prehash(pass), s.bcryptCost)
	if err != nil {
		return "", errors.Wrap(err, "generate password hash")
	}
	return string(passwordHashB), nil
}

func (s *General) bcryptCheck(hash, pass string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), prehash(pass))
}
