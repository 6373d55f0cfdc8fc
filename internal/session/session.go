// Package session manages the participant session manifest and the
// test-type lock: once a session is bound to "fe" or "dv", every later
// operation under it must match that type or be rejected.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"vizlab/internal/storage"
)

// Test types a session can be locked to.
const (
	TestTypeFE = "fe" // frontend-build exercises
	TestTypeDV = "dv" // data-visualization exercises
)

// Manifest is the persisted session record.
type Manifest struct {
	SessionID  string  `json:"session_id"`
	Name       *string `json:"name"`
	TestType   string  `json:"test_type"`
	Consent    bool    `json:"consent"`
	CreatedAt  string  `json:"created_at"`
	FinishedAt *string `json:"finished_at"`
}

// LockConflictError reports an operation whose intended test type does not
// match the session's locked one. Session state is left unchanged.
type LockConflictError struct {
	SessionID string
	Locked    string
	Intended  string
}

func (e LockConflictError) Error() string {
	return fmt.Sprintf("session %s locked to test_type=%s, cannot use %s routes",
		e.SessionID, strings.ToUpper(e.Locked), strings.ToUpper(e.Intended))
}

// ErrNotFound reports a session that has never been started.
var ErrNotFound = errors.New("session not found")

// Service reads and writes session manifests through a storage backend.
type Service struct {
	store storage.Backend
	log   *zap.Logger
}

// NewService constructs a session service over the given backend.
func NewService(store storage.Backend, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, log: log}
}

// Start creates a new session locked to testType and returns its manifest.
func (s *Service) Start(ctx context.Context, name, testType string, consent bool) (Manifest, error) {
	m := Manifest{
		SessionID: uuid.NewString(),
		Name:      &name,
		TestType:  strings.ToLower(testType),
		Consent:   consent,
		CreatedAt: storage.UTCNowISO(),
	}
	if err := s.write(ctx, m); err != nil {
		return Manifest{}, err
	}
	s.log.Info("session started",
		zap.String("session_id", m.SessionID),
		zap.String("test_type", m.TestType))
	return m, nil
}

// Get returns the manifest for a session or ErrNotFound.
func (s *Service) Get(ctx context.Context, sessionID string) (Manifest, error) {
	var m Manifest
	err := storage.ReadJSON(ctx, s.store, storage.SessionManifestPath(sessionID), &m)
	if errors.Is(err, storage.ErrNotFound) {
		return Manifest{}, ErrNotFound
	}
	if err != nil {
		return Manifest{}, err
	}
	return m, nil
}

// Finish stamps the session's finished_at timestamp.
func (s *Service) Finish(ctx context.Context, sessionID string) (Manifest, error) {
	m, err := s.Get(ctx, sessionID)
	if err != nil {
		return Manifest{}, err
	}
	now := storage.UTCNowISO()
	m.FinishedAt = &now
	if err := s.write(ctx, m); err != nil {
		return Manifest{}, err
	}
	return m, nil
}

// EnsureTestType enforces the lock semantics: a missing session is created
// lazily and locked to the intended type; an existing session with a
// different locked type yields a LockConflictError and stays untouched.
func (s *Service) EnsureTestType(ctx context.Context, sessionID, intended string) (Manifest, error) {
	intended = strings.ToLower(intended)
	m, err := s.Get(ctx, sessionID)
	if errors.Is(err, ErrNotFound) {
		m = Manifest{
			SessionID: sessionID,
			TestType:  intended,
			CreatedAt: storage.UTCNowISO(),
		}
		if err := s.write(ctx, m); err != nil {
			return Manifest{}, err
		}
		s.log.Info("session created lazily",
			zap.String("session_id", sessionID),
			zap.String("test_type", intended))
		return m, nil
	}
	if err != nil {
		return Manifest{}, err
	}
	if m.TestType != "" && m.TestType != intended {
		return Manifest{}, LockConflictError{SessionID: sessionID, Locked: m.TestType, Intended: intended}
	}
	return m, nil
}

func (s *Service) write(ctx context.Context, m Manifest) error {
	_, err := storage.WriteJSON(ctx, s.store, storage.SessionManifestPath(m.SessionID), m)
	return err
}
