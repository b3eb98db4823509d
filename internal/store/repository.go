package store

import (
	"context"
	"time"

	"github.com/diticoms/service-desk/internal/model"
)

const (
	keyUser      = "diti_user"
	keyConfig    = "diti_config"
	keyTickets   = "diti_services_cache"
	keyTechs     = "diti_techs"
	keyPriceList = "diti_pricelist"
)

// Snapshot is the last successful read of the sheet.
type Snapshot struct {
	Tickets     []model.Ticket    `json:"tickets"`
	Technicians []string          `json:"technicians"`
	PriceList   []model.PriceItem `json:"price_list"`
	SyncedAt    time.Time         `json:"synced_at"`
}

// Repository maps the desk's persisted state onto a KV.
type Repository struct {
	kv KV
}

func NewRepository(kv KV) *Repository {
	return &Repository{kv: kv}
}

// User returns the logged-in user, or nil.
func (r *Repository) User(ctx context.Context) (*model.User, error) {
	var u model.User
	ok, err := r.kv.Get(ctx, keyUser, &u)
	if err != nil || !ok {
		return nil, err
	}
	return &u, nil
}

func (r *Repository) SaveUser(ctx context.Context, u model.User) error {
	return r.kv.Put(ctx, keyUser, u)
}

// AppConfig returns the stored config and whether one was saved.
func (r *Repository) AppConfig(ctx context.Context) (model.AppConfig, bool, error) {
	var c model.AppConfig
	ok, err := r.kv.Get(ctx, keyConfig, &c)
	return c, ok, err
}

func (r *Repository) SaveAppConfig(ctx context.Context, c model.AppConfig) error {
	return r.kv.Put(ctx, keyConfig, c)
}

// Snapshot loads the cached sheet data. Missing parts come back empty.
func (r *Repository) Snapshot(ctx context.Context) (Snapshot, error) {
	s := Snapshot{Tickets: []model.Ticket{}, Technicians: []string{}, PriceList: []model.PriceItem{}}
	var cached struct {
		Tickets  []model.Ticket `json:"tickets"`
		SyncedAt time.Time      `json:"synced_at"`
	}
	ok, err := r.kv.Get(ctx, keyTickets, &cached)
	if err != nil {
		return s, err
	}
	if ok && cached.Tickets != nil {
		s.Tickets, s.SyncedAt = cached.Tickets, cached.SyncedAt
	}
	if _, err := r.kv.Get(ctx, keyTechs, &s.Technicians); err != nil {
		return s, err
	}
	if _, err := r.kv.Get(ctx, keyPriceList, &s.PriceList); err != nil {
		return s, err
	}
	if s.Technicians == nil {
		s.Technicians = []string{}
	}
	if s.PriceList == nil {
		s.PriceList = []model.PriceItem{}
	}
	return s, nil
}

func (r *Repository) SaveSnapshot(ctx context.Context, s Snapshot) error {
	cached := struct {
		Tickets  []model.Ticket `json:"tickets"`
		SyncedAt time.Time      `json:"synced_at"`
	}{s.Tickets, s.SyncedAt}
	if err := r.kv.Put(ctx, keyTickets, cached); err != nil {
		return err
	}
	if err := r.kv.Put(ctx, keyTechs, s.Technicians); err != nil {
		return err
	}
	return r.kv.Put(ctx, keyPriceList, s.PriceList)
}

func (r *Repository) SaveTechnicians(ctx context.Context, names []string) error {
	return r.kv.Put(ctx, keyTechs, names)
}

// Clear forgets everything, config included, as a logout does.
func (r *Repository) Clear(ctx context.Context) error {
	return r.kv.Delete(ctx, keyUser, keyConfig, keyTickets, keyTechs, keyPriceList)
}
