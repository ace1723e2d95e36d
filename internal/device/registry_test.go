package device

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/rfplayer-bridge/internal/rfplayer"
)

// memoryRepo is an in-memory Repository for registry tests.
type memoryRepo struct {
	mu      sync.Mutex
	records map[string]*Record
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{records: make(map[string]*Record)}
}

func (m *memoryRepo) GetByID(_ context.Context, id string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return rec.DeepCopy(), nil
}

func (m *memoryRepo) List(_ context.Context) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Record, 0, len(m.records))
	for _, rec := range m.records {
		out = append(out, *rec.DeepCopy())
	}
	return out, nil
}

func (m *memoryRepo) ListByProtocol(_ context.Context, protocol string) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Record
	for _, rec := range m.records {
		if rec.Protocol == protocol {
			out = append(out, *rec.DeepCopy())
		}
	}
	return out, nil
}

func (m *memoryRepo) Create(_ context.Context, rec *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec.IDString == "" {
		return ErrInvalidIdentity
	}
	if _, ok := m.records[rec.IDString]; ok {
		return ErrExists
	}
	m.records[rec.IDString] = rec.DeepCopy()
	return nil
}

func (m *memoryRepo) Update(_ context.Context, rec *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[rec.IDString]; !ok {
		return ErrNotFound
	}
	m.records[rec.IDString] = rec.DeepCopy()
	return nil
}

func (m *memoryRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[id]; !ok {
		return ErrNotFound
	}
	delete(m.records, id)
	return nil
}

func (m *memoryRepo) UpdateSeen(_ context.Context, id string, seenAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return ErrNotFound
	}
	rec.LastSeen = seenAt
	return nil
}

func (m *memoryRepo) UpdateState(_ context.Context, id string, state map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return ErrNotFound
	}
	rec.LastState = state
	return nil
}

func oregonID() rfplayer.DeviceID {
	return rfplayer.DeviceID{Protocol: "OREGON", Address: "39168", Model: "PCR800"}
}

func TestObserveAutoAdd(t *testing.T) {
	repo := newMemoryRepo()
	reg := NewRegistry(repo, Config{AutomaticAdd: true})
	ctx := context.Background()

	seenAt := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)
	rec, created, err := reg.Observe(ctx, oregonID(), seenAt)
	if err != nil {
		t.Fatalf("Observe() error = %v", err)
	}
	if !created {
		t.Error("Observe() created = false, want true")
	}
	if rec.IDString != "OREGON-39168" {
		t.Errorf("IDString = %q, want OREGON-39168", rec.IDString)
	}
	if !rec.FirstSeen.Equal(seenAt) || !rec.LastSeen.Equal(seenAt) {
		t.Errorf("seen timestamps = %v / %v, want %v", rec.FirstSeen, rec.LastSeen, seenAt)
	}

	// Second observation updates last seen without creating.
	later := seenAt.Add(time.Minute)
	rec, created, err = reg.Observe(ctx, oregonID(), later)
	if err != nil {
		t.Fatalf("Observe() second error = %v", err)
	}
	if created {
		t.Error("Observe() second created = true, want false")
	}
	if !rec.LastSeen.Equal(later) {
		t.Errorf("LastSeen = %v, want %v", rec.LastSeen, later)
	}

	stored, err := repo.GetByID(ctx, "OREGON-39168")
	if err != nil {
		t.Fatalf("repo.GetByID() error = %v", err)
	}
	if !stored.LastSeen.Equal(later) {
		t.Errorf("stored LastSeen = %v, want %v", stored.LastSeen, later)
	}
}

func TestObserveAutoAddDisabled(t *testing.T) {
	reg := NewRegistry(newMemoryRepo(), Config{AutomaticAdd: false})

	rec, created, err := reg.Observe(context.Background(), oregonID(), time.Now())
	if err != nil {
		t.Fatalf("Observe() error = %v", err)
	}
	if rec != nil || created {
		t.Errorf("Observe() = (%+v, %v), want (nil, false) when auto-add is off", rec, created)
	}
}

func TestObserveRedirect(t *testing.T) {
	repo := newMemoryRepo()
	target := &Record{
		IDString: "RTS-70000",
		Protocol: "RTS",
		Address:  "70000",
	}
	if err := repo.Create(context.Background(), target); err != nil {
		t.Fatalf("seeding target: %v", err)
	}

	reg := NewRegistry(repo, Config{
		AutomaticAdd: true,
		Redirects:    map[string]string{"RTS-70001": "RTS-70000"},
	})

	seenAt := time.Now()
	rec, created, err := reg.Observe(context.Background(),
		rfplayer.DeviceID{Protocol: "RTS", Address: "70001"}, seenAt)
	if err != nil {
		t.Fatalf("Observe() error = %v", err)
	}
	if created {
		t.Error("Observe() created = true, want false for redirect")
	}
	if rec.IDString != "RTS-70000" {
		t.Errorf("effective record = %q, want RTS-70000", rec.IDString)
	}
}

func TestObserveRedirectUnknownTarget(t *testing.T) {
	reg := NewRegistry(newMemoryRepo(), Config{
		AutomaticAdd: true,
		Redirects:    map[string]string{"RTS-70001": "RTS-70000"},
	})

	// Target doesn't exist: must not fabricate it from the redirected frame.
	rec, created, err := reg.Observe(context.Background(),
		rfplayer.DeviceID{Protocol: "RTS", Address: "70001"}, time.Now())
	if err != nil {
		t.Fatalf("Observe() error = %v", err)
	}
	if rec != nil || created {
		t.Errorf("Observe() = (%+v, %v), want (nil, false)", rec, created)
	}
}

func TestResolveRecordRedirect(t *testing.T) {
	repo := newMemoryRepo()
	ctx := context.Background()

	if err := repo.Create(ctx, &Record{
		IDString:        "X2D-3:266",
		Protocol:        "X2D",
		Address:         "4262",
		GroupID:         "3",
		RedirectAddress: "X2D-4:266",
	}); err != nil {
		t.Fatalf("seeding: %v", err)
	}

	reg := NewRegistry(repo, Config{})

	got, err := reg.Resolve(ctx, "X2D-3:266")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got != "X2D-4:266" {
		t.Errorf("Resolve() = %q, want X2D-4:266", got)
	}

	// Unknown identities resolve to themselves.
	got, err = reg.Resolve(ctx, "VISONIC-123")
	if err != nil {
		t.Fatalf("Resolve() unknown error = %v", err)
	}
	if got != "VISONIC-123" {
		t.Errorf("Resolve() = %q, want VISONIC-123", got)
	}
}

func TestResolveLoop(t *testing.T) {
	reg := NewRegistry(newMemoryRepo(), Config{
		Redirects: map[string]string{
			"A-1": "A-2",
			"A-2": "A-1",
		},
	})

	_, err := reg.Resolve(context.Background(), "A-1")
	if !errors.Is(err, ErrRedirectLoop) {
		t.Errorf("Resolve() error = %v, want ErrRedirectLoop", err)
	}
}

func TestRegisterAndRemove(t *testing.T) {
	reg := NewRegistry(newMemoryRepo(), Config{})
	ctx := context.Background()

	rec := &Record{IDString: "X10-A3", Protocol: "X10", Address: "163", ProfileName: "X10 On/Off"}
	if err := reg.Register(ctx, rec); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if rec.FirstSeen.IsZero() || rec.LastSeen.IsZero() {
		t.Error("Register() should default seen timestamps")
	}

	if err := reg.Register(ctx, rec.DeepCopy()); !errors.Is(err, ErrExists) {
		t.Errorf("Register() duplicate error = %v, want ErrExists", err)
	}

	if reg.Len() != 1 {
		t.Errorf("Len() = %d, want 1", reg.Len())
	}

	if err := reg.Remove(ctx, "X10-A3"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if _, err := reg.Get(ctx, "X10-A3"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after remove error = %v, want ErrNotFound", err)
	}
}

func TestSetStateUpdatesCache(t *testing.T) {
	repo := newMemoryRepo()
	reg := NewRegistry(repo, Config{})
	ctx := context.Background()

	if err := reg.Register(ctx, &Record{IDString: "BLYSS-FE5040", Protocol: "BLYSS", Address: "4261417217"}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if err := reg.SetState(ctx, "BLYSS-FE5040", map[string]string{"state": "off"}); err != nil {
		t.Fatalf("SetState() error = %v", err)
	}

	got, err := reg.Get(ctx, "BLYSS-FE5040")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.LastState["state"] != "off" {
		t.Errorf("LastState = %v, want state=off", got.LastState)
	}
}

func TestRefreshCache(t *testing.T) {
	repo := newMemoryRepo()
	ctx := context.Background()
	for _, id := range []string{"X10-A1", "X10-A2"} {
		if err := repo.Create(ctx, &Record{IDString: id, Protocol: "X10", Address: id}); err != nil {
			t.Fatalf("seeding: %v", err)
		}
	}

	reg := NewRegistry(repo, Config{})
	if err := reg.RefreshCache(ctx); err != nil {
		t.Fatalf("RefreshCache() error = %v", err)
	}
	if reg.Len() != 2 {
		t.Errorf("Len() = %d, want 2", reg.Len())
	}

	records, err := reg.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(records) != 2 {
		t.Errorf("List() = %d records, want 2", len(records))
	}
}
