// Package sessions resolves the credentials referenced by a job's session identifiers.
//
// Sessions are written by the upstream auth service as JSON under "{prefix}{id}" in Redis. This package only reads
// them (and writes them in tests and the enqueue tooling); token refresh is not its concern.
package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/playlist-converter/internal/services"
	"github.com/desertthunder/playlist-converter/internal/shared"
	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"
)

// Session is the stored form of one user's catalog session.
type Session struct {
	ID           string    `json:"id"`
	Service      string    `json:"service"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	TokenType    string    `json:"token_type,omitempty"`
	Expiry       time.Time `json:"expiry,omitempty"`
	AuthFile     string    `json:"auth_file,omitempty"`
}

// Token converts the session into an [oauth2.Token].
func (s Session) Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		TokenType:    s.TokenType,
		Expiry:       s.Expiry,
	}
}

// Resolver is the ResolveSession contract consumed by the orchestrator.
type Resolver interface {
	ResolveSession(ctx context.Context, sessionID string) (services.Credentials, error)
}

// Store reads sessions from Redis.
type Store struct {
	client *redis.Client
	prefix string
	logger *log.Logger
}

// NewStore creates a session store. An empty prefix defaults to "session:".
func NewStore(client *redis.Client, prefix string, logger *log.Logger) *Store {
	if prefix == "" {
		prefix = "session:"
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Store{client: client, prefix: prefix, logger: logger}
}

func (s *Store) key(id string) string {
	return s.prefix + id
}

// Get loads a raw session.
func (s *Store) Get(ctx context.Context, sessionID string) (*Session, error) {
	data, err := s.client.Get(ctx, s.key(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", shared.ErrSessionNotFound, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: session store: %v", shared.ErrServiceUnavailable, err)
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("%w: session %s: %v", shared.ErrInvalidCredentials, sessionID, err)
	}
	session.ID = sessionID
	return &session, nil
}

// Put stores a session; ttl of zero keeps it until deleted.
func (s *Store) Put(ctx context.Context, session Session, ttl time.Duration) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := s.client.Set(ctx, s.key(session.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("%w: session store: %v", shared.ErrServiceUnavailable, err)
	}
	return nil
}

// ResolveSession returns credentials for sessionID.
//
// A missing session or an expired token both wrap [shared.ErrCredentialsExpired]; the more specific
// [shared.ErrSessionNotFound] or [shared.ErrTokenExpired] stays in the chain.
func (s *Store) ResolveSession(ctx context.Context, sessionID string) (services.Credentials, error) {
	session, err := s.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, shared.ErrSessionNotFound) || errors.Is(err, shared.ErrInvalidCredentials) {
			return services.Credentials{}, fmt.Errorf("%w: %w", shared.ErrCredentialsExpired, err)
		}
		return services.Credentials{}, err
	}

	token := session.Token()
	if session.AuthFile == "" && !token.Valid() {
		s.logger.Debug("session token expired", "session_id", sessionID, "expiry", session.Expiry)
		return services.Credentials{}, fmt.Errorf("%w: %w: session %s", shared.ErrCredentialsExpired, shared.ErrTokenExpired, sessionID)
	}

	return services.Credentials{
		Service:  session.Service,
		Token:    token,
		AuthFile: session.AuthFile,
	}, nil
}
