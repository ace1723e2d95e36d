package device

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/rfplayer-bridge/internal/rfplayer"
)

// maxRedirectHops bounds redirect chains during resolution.
const maxRedirectHops = 4

// Logger defines the logging interface used by the Registry.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Config controls registry policy.
type Config struct {
	// AutomaticAdd stores newly observed identities as devices.
	// When false, frames from unknown devices are still published as
	// raw events but no record is created.
	AutomaticAdd bool

	// Redirects maps an observed identity string to the identity that
	// should be used in its place. Applied before auto-add, so a
	// multi-address remote collapses onto one record.
	Redirects map[string]string
}

// Registry provides device management with caching and thread safety.
// It wraps a Repository and adds an in-memory cache, redirect
// resolution and auto-add policy.
//
// The cache is populated on startup via RefreshCache() and kept in sync
// by cache-invalidating CRUD operations.
type Registry struct {
	repo    Repository
	cfg     Config
	cache   map[string]*Record
	cacheMu sync.RWMutex
	logger  Logger
}

// NewRegistry creates a new device registry.
// The repository is used for persistence; the registry adds caching.
func NewRegistry(repo Repository, cfg Config) *Registry {
	return &Registry{
		repo:   repo,
		cfg:    cfg,
		cache:  make(map[string]*Record),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// RefreshCache reloads all devices from the repository into the cache.
// This should be called on application startup.
func (r *Registry) RefreshCache(ctx context.Context) error {
	records, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading devices: %w", err)
	}

	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()

	r.cache = make(map[string]*Record, len(records))
	for i := range records {
		rec := records[i]
		r.cache[rec.IDString] = rec.DeepCopy()
	}

	r.logger.Info("device cache refreshed", "count", len(records))
	return nil
}

// Get retrieves a device by identity string.
// Returns ErrNotFound if the device does not exist.
// The returned record is a deep copy; callers can safely modify it.
func (r *Registry) Get(ctx context.Context, idString string) (*Record, error) {
	r.cacheMu.RLock()
	cached, ok := r.cache[idString]
	r.cacheMu.RUnlock()

	if ok {
		return cached.DeepCopy(), nil
	}

	rec, err := r.repo.GetByID(ctx, idString)
	if err != nil {
		return nil, err
	}

	r.cacheMu.Lock()
	r.cache[idString] = rec.DeepCopy()
	r.cacheMu.Unlock()

	return rec, nil
}

// List retrieves all devices.
// The returned records are deep copies; callers can safely modify them.
func (r *Registry) List(ctx context.Context) ([]Record, error) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	if len(r.cache) > 0 {
		records := make([]Record, 0, len(r.cache))
		for _, rec := range r.cache {
			records = append(records, *rec.DeepCopy())
		}
		return records, nil
	}

	return r.repo.List(ctx)
}

// Register creates a device record explicitly (API-driven add).
// Returns ErrExists if the identity is already registered.
func (r *Registry) Register(ctx context.Context, rec *Record) error {
	if rec.IDString == "" {
		return ErrInvalidIdentity
	}
	now := time.Now()
	if rec.FirstSeen.IsZero() {
		rec.FirstSeen = now
	}
	if rec.LastSeen.IsZero() {
		rec.LastSeen = now
	}

	if err := r.repo.Create(ctx, rec); err != nil {
		return err
	}

	r.cacheMu.Lock()
	r.cache[rec.IDString] = rec.DeepCopy()
	r.cacheMu.Unlock()

	r.logger.Info("device registered", "id", rec.IDString, "profile", rec.ProfileName)
	return nil
}

// Update persists changes to an existing device.
func (r *Registry) Update(ctx context.Context, rec *Record) error {
	if err := r.repo.Update(ctx, rec); err != nil {
		return err
	}

	r.cacheMu.Lock()
	r.cache[rec.IDString] = rec.DeepCopy()
	r.cacheMu.Unlock()

	return nil
}

// Remove deletes a device by identity.
func (r *Registry) Remove(ctx context.Context, idString string) error {
	if err := r.repo.Delete(ctx, idString); err != nil {
		return err
	}

	r.cacheMu.Lock()
	delete(r.cache, idString)
	r.cacheMu.Unlock()

	r.logger.Info("device removed", "id", idString)
	return nil
}

// Resolve applies redirect rules to an identity string and returns
// the identity that state should be published under.
//
// Configured redirects are checked first, then the target record's own
// redirect field, following chains up to maxRedirectHops.
func (r *Registry) Resolve(ctx context.Context, idString string) (string, error) {
	current := idString
	for hop := 0; hop < maxRedirectHops; hop++ {
		next := ""
		if target, ok := r.cfg.Redirects[current]; ok && target != "" {
			next = target
		} else {
			rec, err := r.Get(ctx, current)
			switch {
			case errors.Is(err, ErrNotFound):
				return current, nil
			case err != nil:
				return "", err
			case rec.RedirectAddress != "":
				next = rec.RedirectAddress
			}
		}

		if next == "" || next == current {
			return current, nil
		}
		current = next
	}
	return "", fmt.Errorf("%w: starting from %s", ErrRedirectLoop, idString)
}

// Observe records a received transmission from the given identity.
//
// The redirect rules are applied first, then the effective record is
// touched (last seen) or created when auto-add is enabled. The returned
// record reflects the effective identity; created reports whether a new
// record was stored. A nil record with nil error means the identity is
// unknown and auto-add is off.
func (r *Registry) Observe(ctx context.Context, id rfplayer.DeviceID, seenAt time.Time) (rec *Record, created bool, err error) {
	effective, err := r.Resolve(ctx, id.IDString())
	if err != nil {
		return nil, false, err
	}

	existing, err := r.Get(ctx, effective)
	switch {
	case err == nil:
		existing.LastSeen = seenAt
		if err := r.repo.UpdateSeen(ctx, effective, seenAt); err != nil {
			return nil, false, err
		}
		r.cacheMu.Lock()
		if cached, ok := r.cache[effective]; ok {
			cached.LastSeen = seenAt
		}
		r.cacheMu.Unlock()
		return existing, false, nil

	case !errors.Is(err, ErrNotFound):
		return nil, false, err
	}

	if !r.cfg.AutomaticAdd {
		r.logger.Debug("unknown device ignored", "id", id.IDString())
		return nil, false, nil
	}

	// Redirected identities belong to a device that should already
	// exist; creating the target from a redirect would fabricate it
	// with the wrong protocol fields.
	if effective != id.IDString() {
		r.logger.Warn("redirect target not registered", "from", id.IDString(), "to", effective)
		return nil, false, nil
	}

	fresh := &Record{
		IDString:  id.IDString(),
		Protocol:  id.Protocol,
		Address:   id.Address,
		GroupID:   id.GroupID,
		Model:     id.Model,
		FirstSeen: seenAt,
		LastSeen:  seenAt,
	}
	if err := r.repo.Create(ctx, fresh); err != nil {
		if errors.Is(err, ErrExists) {
			// Lost a race with a concurrent frame for the same device.
			rec, getErr := r.Get(ctx, fresh.IDString)
			return rec, false, getErr
		}
		return nil, false, err
	}

	r.cacheMu.Lock()
	r.cache[fresh.IDString] = fresh.DeepCopy()
	r.cacheMu.Unlock()

	r.logger.Info("device auto-added", "id", fresh.IDString, "protocol", fresh.Protocol, "model", fresh.Model)
	return fresh, true, nil
}

// SetState persists the last published capability state for a device.
func (r *Registry) SetState(ctx context.Context, idString string, state map[string]string) error {
	if err := r.repo.UpdateState(ctx, idString, state); err != nil {
		return err
	}

	r.cacheMu.Lock()
	if cached, ok := r.cache[idString]; ok {
		cached.LastState = make(map[string]string, len(state))
		for k, v := range state {
			cached.LastState[k] = v
		}
	}
	r.cacheMu.Unlock()

	return nil
}

// Len returns the number of cached devices.
func (r *Registry) Len() int {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	return len(r.cache)
}
