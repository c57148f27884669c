package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Cache keys used in the local cache.
const (
	ProfileKey = "tone_profile"
	UserIDKey  = "user_id"
)

// DefaultDimension is the value every dimension of a synthesized default
// profile starts at. It is intentionally not DefaultScore.
const DefaultDimension = 3

var (
	// ErrNotFound is returned by a Remote when no profile exists for the user.
	ErrNotFound = errors.New("profile not found")

	// ErrUnusable is returned when saving a profile without the required
	// abbreviation and emoticon usage answers.
	ErrUnusable = errors.New("profile is missing abbreviation_usage or emoticon_usage")
)

// Remote is the server-side profile record. Implemented by gateway.Router.
type Remote interface {
	FetchProfile(ctx context.Context, userID string) (*ToneProfile, error)
	CreateProfile(ctx context.Context, p *ToneProfile) error
}

// Cache is the local key/value cache. Implemented by storage.Store.
type Cache interface {
	GetCacheKey(key string) (value string, ok bool, err error)
	SetCacheKey(key, value string) error
	DeleteCacheKey(key string) error
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Store reconciles the remote profile record with the local cache. Writes are
// last-write-wins; callers serialize profile mutations themselves.
type Store struct {
	remote Remote
	cache  Cache
	clock  Clock
	logger *slog.Logger
}

// NewStore creates a Store. remote may be nil, in which case every resolution
// behaves as if the server were unreachable.
func NewStore(remote Remote, cache Cache) *Store {
	return &Store{
		remote: remote,
		cache:  cache,
		clock:  realClock{},
		logger: slog.Default(),
	}
}

// NewStoreWithClock creates a Store with a custom clock (for testing).
func NewStoreWithClock(remote Remote, cache Cache, clock Clock) *Store {
	s := NewStore(remote, cache)
	s.clock = clock
	return s
}

// Resolve returns the profile for userID, or nil when none is available.
//
// A usable remote record wins and is written through to the local cache. An
// unusable one is treated like a missing one. Otherwise the cached profile is used if it passes the usability
// check; a cached profile that fails it is erased. A nil profile is a normal
// outcome: callers decide whether to CreateDefault. The returned error is
// reserved for local cache I/O failures.
func (s *Store) Resolve(ctx context.Context, userID string) (*ToneProfile, error) {
	if s.remote != nil {
		p, err := s.remote.FetchProfile(ctx, userID)
		switch {
		case err == nil && p != nil && p.Usable():
			if p.UserID == "" {
				p.UserID = userID
			}
			if perr := s.Persist(p); perr != nil {
				s.logger.Warn("caching remote profile failed", "user_id", userID, "error", perr)
			}
			return p, nil
		case err == nil && p != nil:
			s.logger.Debug("discarding unusable remote profile", "user_id", userID)
		case err == nil, errors.Is(err, ErrNotFound):
			s.logger.Debug("no remote profile", "user_id", userID)
		default:
			s.logger.Warn("remote profile unavailable, falling back to local cache", "user_id", userID, "error", err)
		}
	}
	return s.loadLocal(userID)
}

func (s *Store) loadLocal(userID string) (*ToneProfile, error) {
	raw, ok, err := s.cache.GetCacheKey(ProfileKey)
	if err != nil {
		return nil, fmt.Errorf("reading cached profile: %w", err)
	}
	if !ok {
		return nil, nil
	}

	var p ToneProfile
	if err := json.Unmarshal([]byte(raw), &p); err != nil || !p.Usable() {
		s.logger.Debug("discarding corrupt cached profile", "user_id", userID, "decode_error", err)
		if derr := s.cache.DeleteCacheKey(ProfileKey); derr != nil {
			return nil, fmt.Errorf("erasing corrupt cached profile: %w", derr)
		}
		return nil, nil
	}

	if userID != "" && p.UserID != "" && p.UserID != userID {
		s.logger.Debug("cached profile belongs to another user", "user_id", userID, "cached_user_id", p.UserID)
		return nil, nil
	}
	return &p, nil
}

// Persist writes p to the local cache.
func (s *Store) Persist(p *ToneProfile) error {
	if p == nil {
		return errors.New("persisting nil profile")
	}
	b, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshalling profile: %w", err)
	}
	if err := s.cache.SetCacheKey(ProfileKey, string(b)); err != nil {
		return fmt.Errorf("writing cached profile: %w", err)
	}
	return nil
}

// Erase removes the cached profile.
func (s *Store) Erase() error {
	if err := s.cache.DeleteCacheKey(ProfileKey); err != nil {
		return fmt.Errorf("erasing cached profile: %w", err)
	}
	return nil
}

// CreateDefault synthesizes the default profile for userID, persists it
// locally and then pushes it to the remote once. A remote failure is logged
// and the local profile is still returned.
func (s *Store) CreateDefault(ctx context.Context, userID string) (*ToneProfile, error) {
	p := Default(userID, s.clock.Now())
	if err := s.Save(ctx, p); err != nil {
		return nil, fmt.Errorf("persisting default profile: %w", err)
	}
	return p, nil
}

// Save persists p locally and pushes it to the remote once. Session
// overrides are not saved. Only the local write can fail the call.
func (s *Store) Save(ctx context.Context, p *ToneProfile) error {
	if !p.Usable() {
		return ErrUnusable
	}
	stored := p.Clone()
	stored.ClearSession()
	if err := s.Persist(stored); err != nil {
		return err
	}

	if s.remote != nil {
		if err := s.remote.CreateProfile(ctx, stored); err != nil {
			s.logger.Warn("remote profile update failed, continuing local-only", "user_id", stored.UserID, "error", err)
		}
	}
	return nil
}

// Ensure resolves the profile and falls back to CreateDefault when none is
// available. Cache read failures degrade to the default profile.
func (s *Store) Ensure(ctx context.Context, userID string) (*ToneProfile, error) {
	p, err := s.Resolve(ctx, userID)
	if err != nil {
		s.logger.Warn("profile resolution failed, using default", "user_id", userID, "error", err)
	}
	if p != nil {
		return p, nil
	}
	return s.CreateDefault(ctx, userID)
}

// Default returns the synthesized default profile.
func Default(userID string, now time.Time) *ToneProfile {
	return &ToneProfile{
		UserID:       userID,
		Formality:    ScoreOf(DefaultDimension),
		Friendliness: ScoreOf(DefaultDimension),
		Emotion:      ScoreOf(DefaultDimension),
		Directness:   ScoreOf(DefaultDimension),
		Responses: Responses{
			AbbreviationUsage:    "rarely",
			EmoticonUsage:        "rarely",
			GratitudeExpressions: Phrases{"Thank you."},
			RequestExpressions:   Phrases{"Could you please take a look?"},
			ClosingExpressions:   Phrases{"Best regards."},
			AgreementExpressions: Phrases{"Sounds good."},
		},
		CompletedAt: now.UTC(),
	}
}
