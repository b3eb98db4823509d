package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/diticoms/service-desk/internal/errs"
	"github.com/diticoms/service-desk/internal/filter"
	"github.com/diticoms/service-desk/internal/kafka"
	"github.com/diticoms/service-desk/internal/model"
	"github.com/diticoms/service-desk/internal/sheetapi"
	"github.com/diticoms/service-desk/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Sheet actions.
const (
	actionLogin         = "login"
	actionRead          = "read"
	actionReadSettings  = "read_settings"
	actionReadPriceList = "read_pricelist"
	actionCreate        = "create"
	actionUpdate        = "update"
	actionDelete        = "delete"
	actionSaveSettings  = "save_settings"
)

const (
	createdAtLayout = "2006-01-02T15:04:05.000Z"
	publishTimeout  = 5 * time.Second
)

// DeskServicer is what the HTTP handlers and the CLI depend on.
type DeskServicer interface {
	Login(ctx context.Context, username, password string) (model.User, error)
	Logout(ctx context.Context) error
	CurrentUser(ctx context.Context) (model.User, error)
	Refresh(ctx context.Context) (store.Snapshot, error)
	Snapshot(ctx context.Context) (store.Snapshot, error)
	Tickets(ctx context.Context) ([]model.Ticket, error)
	Get(ctx context.Context, id string) (model.Ticket, error)
	List(ctx context.Context, u model.User, c model.FilterCriteria) ([]model.Ticket, error)
	Create(ctx context.Context, u model.User, in TicketInput) (model.Ticket, error)
	Update(ctx context.Context, u model.User, id string, in TicketInput) (model.Ticket, error)
	Delete(ctx context.Context, u model.User, id string) error
	SaveTechnicians(ctx context.Context, u model.User, names []string) ([]string, error)
	Config(ctx context.Context) (model.AppConfig, error)
	SaveConfig(ctx context.Context, u *model.User, cfg model.AppConfig) (model.AppConfig, error)
}

// TicketInput is the editable part of a ticket. A nil Revenue defaults to the
// work item estimate; a nil Debt is derived from the status.
type TicketInput struct {
	CustomerName string             `json:"customer_name"`
	Phone        string             `json:"phone"`
	Address      string             `json:"address"`
	Status       model.TicketStatus `json:"status"`
	Technician   string             `json:"technician"`
	Content      string             `json:"content"`
	WorkItems    []model.WorkItem   `json:"work_items"`
	Revenue      *int64             `json:"revenue,omitempty"`
	Cost         int64              `json:"cost"`
	Debt         *int64             `json:"debt,omitempty"`
}

func (in TicketInput) validate() error {
	if strings.TrimSpace(in.CustomerName) == "" {
		return fmt.Errorf("%w: customer name is required", errs.ErrInvalidInput)
	}
	if len(in.WorkItems) == 0 {
		return fmt.Errorf("%w: at least one work item is required", errs.ErrInvalidInput)
	}
	if in.Status != "" && !in.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", errs.ErrInvalidInput, in.Status)
	}
	if in.Cost < 0 || (in.Revenue != nil && *in.Revenue < 0) || (in.Debt != nil && *in.Debt < 0) {
		return fmt.Errorf("%w: amounts must not be negative", errs.ErrInvalidInput)
	}
	return nil
}

type Options struct {
	// DefaultSheetURL is used while no AppConfig has been saved.
	DefaultSheetURL string
	// IdempotencyKeys attaches a request_id to write actions so a retried
	// write can be recognised by the script.
	IdempotencyKeys bool
	Logger          *zap.Logger
	Now             func() time.Time
}

type DeskService struct {
	sheet       sheetapi.Caller
	repo        *store.Repository
	events      kafka.TicketEventProducer
	defaultURL  string
	idempotency bool
	log         *zap.Logger
	now         func() time.Time
}

func NewDeskService(sheet sheetapi.Caller, repo *store.Repository, events kafka.TicketEventProducer, opts Options) *DeskService {
	s := &DeskService{
		sheet:       sheet,
		repo:        repo,
		events:      events,
		defaultURL:  opts.DefaultSheetURL,
		idempotency: opts.IdempotencyKeys,
		log:         opts.Logger,
		now:         opts.Now,
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *DeskService) Config(ctx context.Context) (model.AppConfig, error) {
	cfg, ok, err := s.repo.AppConfig(ctx)
	if err != nil {
		return model.AppConfig{}, err
	}
	if !ok || cfg.SheetURL == "" {
		cfg.SheetURL = s.defaultURL
	}
	return cfg, nil
}

// SaveConfig stores the app config. Only the very first save, before anything
// is stored, may be anonymous. After that a session is required, and changing
// the sheet URL or the bank account takes an admin.
func (s *DeskService) SaveConfig(ctx context.Context, u *model.User, cfg model.AppConfig) (model.AppConfig, error) {
	cfg.SheetURL = strings.TrimSpace(cfg.SheetURL)
	if err := sheetapi.ValidateEndpoint(cfg.SheetURL); err != nil {
		return model.AppConfig{}, err
	}
	if cfg.BankInfo != nil && strings.TrimSpace(cfg.BankInfo.BankID) == "" && strings.TrimSpace(cfg.BankInfo.AccountNo) == "" {
		cfg.BankInfo = nil
	}
	stored, ok, err := s.repo.AppConfig(ctx)
	if err != nil {
		return model.AppConfig{}, err
	}
	configured := ok && stored.SheetURL != ""
	current := stored
	if current.SheetURL == "" {
		current.SheetURL = s.defaultURL
	}

	if u == nil && configured {
		return model.AppConfig{}, fmt.Errorf("%w: log in to change the configuration", errs.ErrNotLoggedIn)
	}
	isAdmin := u != nil && u.IsAdmin()
	if !isAdmin && current.SheetURL != "" && current.SheetURL != cfg.SheetURL {
		return model.AppConfig{}, fmt.Errorf("%w: only an admin can change the sheet URL", errs.ErrForbidden)
	}
	if !isAdmin && configured && !sameBank(stored.BankInfo, cfg.BankInfo) {
		return model.AppConfig{}, fmt.Errorf("%w: only an admin can change the bank account", errs.ErrForbidden)
	}
	if err := s.repo.SaveAppConfig(ctx, cfg); err != nil {
		return model.AppConfig{}, err
	}
	return cfg, nil
}

func sameBank(a, b *model.BankConfig) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func (s *DeskService) endpoint(ctx context.Context) (string, error) {
	cfg, err := s.Config(ctx)
	if err != nil {
		return "", err
	}
	return cfg.SheetURL, nil
}

// Login checks the credentials with the sheet and persists the session.
func (s *DeskService) Login(ctx context.Context, username, password string) (model.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return model.User{}, fmt.Errorf("%w: username and password are required", errs.ErrInvalidInput)
	}
	url, err := s.endpoint(ctx)
	if err != nil {
		return model.User{}, err
	}
	raw, err := s.sheet.Call(ctx, url, actionLogin, map[string]string{"username": username, "password": password})
	if err != nil {
		return model.User{}, err
	}
	env, err := sheetapi.DecodeEnvelope(actionLogin, raw)
	if err != nil {
		return model.User{}, err
	}
	if err := env.Expect(actionLogin, sheetapi.StatusSuccess); err != nil {
		return model.User{}, err
	}
	if env.User == nil {
		return model.User{}, &errs.ApplicationError{Action: actionLogin, Message: "response has no user"}
	}
	u := *env.User
	if u.Username == "" {
		u.Username = username
	}
	if u.Role == "" {
		u.Role = model.RoleUser
	}
	if err := s.repo.SaveUser(ctx, u); err != nil {
		return model.User{}, err
	}
	s.log.Info("desk: logged in", zap.String("username", u.Username), zap.String("role", string(u.Role)))
	return u, nil
}

func (s *DeskService) Logout(ctx context.Context) error {
	return s.repo.Clear(ctx)
}

func (s *DeskService) CurrentUser(ctx context.Context) (model.User, error) {
	u, err := s.repo.User(ctx)
	if err != nil {
		return model.User{}, err
	}
	if u == nil {
		return model.User{}, errs.ErrNotLoggedIn
	}
	return *u, nil
}

// Refresh reads tickets, settings and the price list concurrently and replaces
// the cache only when all three succeed.
func (s *DeskService) Refresh(ctx context.Context) (store.Snapshot, error) {
	url, err := s.endpoint(ctx)
	if err != nil {
		return store.Snapshot{}, err
	}
	prev, err := s.repo.Snapshot(ctx)
	if err != nil {
		return store.Snapshot{}, err
	}

	var rows, settings, prices json.RawMessage
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		rows, err = s.sheet.Call(gctx, url, actionRead, nil)
		return err
	})
	g.Go(func() (err error) {
		settings, err = s.sheet.Call(gctx, url, actionReadSettings, nil)
		return err
	})
	g.Go(func() (err error) {
		prices, err = s.sheet.Call(gctx, url, actionReadPriceList, nil)
		return err
	})
	if err := g.Wait(); err != nil {
		return store.Snapshot{}, err
	}

	now := s.now()
	tickets, err := sheetapi.DecodeRows(rows, now)
	if err != nil {
		return store.Snapshot{}, err
	}
	snap := store.Snapshot{
		Tickets:     tickets,
		Technicians: prev.Technicians,
		PriceList:   prev.PriceList,
		SyncedAt:    now.UTC(),
	}
	var env struct {
		Technicians json.RawMessage `json:"technicians"`
	}
	if json.Unmarshal(settings, &env) == nil && len(env.Technicians) > 0 && string(env.Technicians) != "null" {
		snap.Technicians = sheetapi.DecodeTechnicians(env.Technicians)
	}
	if len(prices) > 0 && prices[0] == '[' {
		snap.PriceList = sheetapi.DecodePriceList(prices)
	}

	if err := s.repo.SaveSnapshot(ctx, snap); err != nil {
		return store.Snapshot{}, err
	}
	s.log.Debug("desk: refreshed",
		zap.Int("tickets", len(snap.Tickets)),
		zap.Int("technicians", len(snap.Technicians)),
		zap.Int("price_items", len(snap.PriceList)))
	return snap, nil
}

func (s *DeskService) Snapshot(ctx context.Context) (store.Snapshot, error) {
	return s.repo.Snapshot(ctx)
}

func (s *DeskService) Tickets(ctx context.Context) ([]model.Ticket, error) {
	snap, err := s.repo.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Tickets, nil
}

func (s *DeskService) Get(ctx context.Context, id string) (model.Ticket, error) {
	tickets, err := s.Tickets(ctx)
	if err != nil {
		return model.Ticket{}, err
	}
	for _, t := range tickets {
		if t.ID == id {
			return t, nil
		}
	}
	return model.Ticket{}, errs.ErrTicketNotFound
}

func (s *DeskService) List(ctx context.Context, u model.User, c model.FilterCriteria) ([]model.Ticket, error) {
	tickets, err := s.Tickets(ctx)
	if err != nil {
		return nil, err
	}
	return filter.Apply(tickets, c, u), nil
}

// CanAccess reports whether u may see or edit t.
func CanAccess(u model.User, t model.Ticket) bool {
	scope := u.ScopedTech()
	return scope == "" || model.NormalizeIdentity(t.Technician) == scope
}

func (s *DeskService) Create(ctx context.Context, u model.User, in TicketInput) (model.Ticket, error) {
	if err := in.validate(); err != nil {
		return model.Ticket{}, err
	}
	now := s.now().UTC()
	t := s.build(u, in, nil)
	t.ID = strconv.FormatInt(now.UnixMilli(), 10)
	t.CreatedAt = now.Format(createdAtLayout)

	if err := s.write(ctx, actionCreate, t); err != nil {
		return model.Ticket{}, err
	}
	s.afterWrite(ctx, kafka.EventTicketCreated, t, u)
	return t, nil
}

// Update replaces the editable fields of an existing ticket and keeps its id
// and creation time.
func (s *DeskService) Update(ctx context.Context, u model.User, id string, in TicketInput) (model.Ticket, error) {
	if err := in.validate(); err != nil {
		return model.Ticket{}, err
	}
	existing, err := s.Get(ctx, id)
	if err != nil {
		return model.Ticket{}, err
	}
	if !CanAccess(u, existing) {
		return model.Ticket{}, fmt.Errorf("%w: ticket %s belongs to another technician", errs.ErrForbidden, id)
	}
	t := s.build(u, in, &existing)
	t.ID = existing.ID
	t.CreatedAt = existing.CreatedAt

	if err := s.write(ctx, actionUpdate, t); err != nil {
		return model.Ticket{}, err
	}
	s.afterWrite(ctx, kafka.EventTicketUpdated, t, u)
	return t, nil
}

func (s *DeskService) Delete(ctx context.Context, u model.User, id string) error {
	if !u.IsAdmin() {
		return fmt.Errorf("%w: only an admin can delete tickets", errs.ErrForbidden)
	}
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: ticket id is required", errs.ErrInvalidInput)
	}
	url, err := s.endpoint(ctx)
	if err != nil {
		return err
	}
	payload := map[string]string{"id": id, "role": string(u.Role)}
	if s.idempotency {
		payload["request_id"] = uuid.NewString()
	}
	raw, err := s.sheet.Call(ctx, url, actionDelete, payload)
	if err != nil {
		return err
	}
	env, err := sheetapi.DecodeEnvelope(actionDelete, raw)
	if err != nil {
		return err
	}
	if err := env.Expect(actionDelete, sheetapi.StatusDeleted, sheetapi.StatusSuccess); err != nil {
		return err
	}
	s.afterWrite(ctx, kafka.EventTicketDeleted, model.Ticket{ID: id}, u)
	return nil
}

// SaveTechnicians replaces the technician list on the sheet and in the cache.
func (s *DeskService) SaveTechnicians(ctx context.Context, u model.User, names []string) ([]string, error) {
	if !u.IsAdmin() {
		return nil, fmt.Errorf("%w: only an admin can edit technicians", errs.ErrForbidden)
	}
	list := make([]string, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		key := model.NormalizeIdentity(n)
		if n == "" || seen[key] {
			continue
		}
		seen[key] = true
		list = append(list, n)
	}
	url, err := s.endpoint(ctx)
	if err != nil {
		return nil, err
	}
	raw, err := s.sheet.Call(ctx, url, actionSaveSettings, map[string]any{"technicians": list})
	if err != nil {
		return nil, err
	}
	env, err := sheetapi.DecodeEnvelope(actionSaveSettings, raw)
	if err != nil {
		return nil, err
	}
	if err := env.Expect(actionSaveSettings, sheetapi.StatusSuccess); err != nil {
		return nil, err
	}
	if err := s.repo.SaveTechnicians(ctx, list); err != nil {
		return nil, err
	}
	return list, nil
}

// build turns the input into a ticket. Revenue and debt overrides are honoured
// for admins only; other users get the estimate on create and keep the stored
// amounts on update.
func (s *DeskService) build(u model.User, in TicketInput, existing *model.Ticket) model.Ticket {
	t := model.Ticket{
		CustomerName: strings.TrimSpace(in.CustomerName),
		Phone:        strings.TrimSpace(in.Phone),
		Address:      strings.TrimSpace(in.Address),
		Status:       in.Status,
		Technician:   strings.TrimSpace(in.Technician),
		Content:      in.Content,
		WorkItems:    in.WorkItems,
		Cost:         in.Cost,
	}
	if t.Status == "" {
		t.Status = model.Statuses[0]
	}
	if t.Technician == "" && !u.IsAdmin() {
		t.Technician = u.AssociatedTech
	}
	if !u.IsAdmin() {
		if existing != nil {
			t.Revenue, t.Debt = existing.Revenue, existing.Debt
			t.SettleDebt(true)
			return t
		}
		t.Revenue = t.Estimate()
		t.SettleDebt(false)
		return t
	}
	if in.Revenue != nil {
		t.Revenue = *in.Revenue
	} else {
		t.Revenue = t.Estimate()
	}
	if in.Debt != nil {
		t.Debt = *in.Debt
	}
	t.SettleDebt(in.Debt != nil)
	return t
}

type writePayload struct {
	sheetapi.Row
	RequestID string `json:"request_id,omitempty"`
}

// write sends a create or update and only returns nil on an accepted status.
// Nothing local changes before that.
func (s *DeskService) write(ctx context.Context, action string, t model.Ticket) error {
	url, err := s.endpoint(ctx)
	if err != nil {
		return err
	}
	p := writePayload{Row: sheetapi.EncodeRow(t)}
	if s.idempotency {
		p.RequestID = uuid.NewString()
	}
	raw, err := s.sheet.Call(ctx, url, action, p)
	if err != nil {
		return err
	}
	env, err := sheetapi.DecodeEnvelope(action, raw)
	if err != nil {
		return err
	}
	return env.Expect(action, sheetapi.StatusSuccess, sheetapi.StatusUpdated)
}

// afterWrite refreshes the cache and publishes the event. A failed refresh is
// logged only: the write itself already succeeded.
func (s *DeskService) afterWrite(ctx context.Context, event string, t model.Ticket, u model.User) {
	if _, err := s.Refresh(ctx); err != nil {
		s.log.Warn("desk: refresh after write failed",
			zap.String("event", event),
			zap.String("ticket_id", t.ID),
			zap.Error(err))
	}
	s.publish(event, t, u.Username)
}

func (s *DeskService) publish(event string, t model.Ticket, actor string) {
	if s.events == nil {
		return
	}
	ev := kafka.TicketEvent{
		Event:      event,
		TicketID:   t.ID,
		Status:     string(t.Status),
		Technician: t.Technician,
		Revenue:    t.Revenue,
		Debt:       t.Debt,
		Actor:      actor,
		At:         s.now().UTC(),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		s.events.ProduceTicketEvent(ctx, ev)
	}()
}

// PublishSnapshot emits one ticket.synced event per ticket, synchronously.
func (s *DeskService) PublishSnapshot(ctx context.Context, tickets []model.Ticket) int {
	if s.events == nil {
		return 0
	}
	for _, t := range tickets {
		s.events.ProduceTicketEvent(ctx, kafka.TicketEvent{
			Event:      kafka.EventTicketSynced,
			TicketID:   t.ID,
			Status:     string(t.Status),
			Technician: t.Technician,
			Revenue:    t.Revenue,
			Debt:       t.Debt,
			At:         s.now().UTC(),
		})
	}
	return len(tickets)
}
