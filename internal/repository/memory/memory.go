// Package memory реализует repository.Repository в памяти процесса.
// Используется в режиме разработки (STORAGE=memory) и в тестах.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rajivgeraev/barter-api/internal/models"
	"github.com/rajivgeraev/barter-api/internal/repository"
)

// Store хранилище в памяти. Все операции сериализуются одним мьютексом,
// поэтому InTx ведет себя как транзакция с уровнем serializable.
type Store struct {
	mu sync.Mutex
	st *state
}

// Option настройка Store
type Option func(*Store)

// WithClock подменяет источник времени (для тестов с одинаковыми created_at)
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.st.now = now }
}

// New создает пустое хранилище
func New(opts ...Option) *Store {
	s := &Store{st: newState()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ repository.Repository = (*Store)(nil)

// InTx выполняет fn под блокировкой и восстанавливает снимок при ошибке
func (s *Store) InTx(ctx context.Context, fn func(q repository.Queries) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	if err := fn(s.st); err != nil {
		s.st = snapshot
		return err
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

func (s *Store) Close() {}

func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.CreateUser(ctx, user)
}

func (s *Store) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.GetUserByID(ctx, id)
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.GetUserByUsername(ctx, username)
}

func (s *Store) UpsertTelegramUser(ctx context.Context, profile models.TelegramProfile) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.UpsertTelegramUser(ctx, profile)
}

func (s *Store) CreateAd(ctx context.Context, ad *models.Ad) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.CreateAd(ctx, ad)
}

func (s *Store) GetAd(ctx context.Context, id uuid.UUID) (*models.Ad, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.GetAd(ctx, id)
}

func (s *Store) LockAds(ctx context.Context, ids ...uuid.UUID) (map[uuid.UUID]*models.Ad, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.LockAds(ctx, ids...)
}

func (s *Store) UpdateAd(ctx context.Context, ad *models.Ad) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.UpdateAd(ctx, ad)
}

func (s *Store) DeactivateAds(ctx context.Context, ids ...uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.DeactivateAds(ctx, ids...)
}

func (s *Store) DeleteAd(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.DeleteAd(ctx, id)
}

func (s *Store) SearchAds(ctx context.Context, filter models.AdFilter) ([]models.Ad, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.SearchAds(ctx, filter)
}

func (s *Store) ListUserAds(ctx context.Context, userID uuid.UUID) ([]models.Ad, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.ListUserAds(ctx, userID)
}

func (s *Store) CreateProposal(ctx context.Context, p *models.ExchangeProposal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.CreateProposal(ctx, p)
}

func (s *Store) GetProposal(ctx context.Context, id uuid.UUID) (*models.ExchangeProposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.GetProposal(ctx, id)
}

func (s *Store) GetProposalForUpdate(ctx context.Context, id uuid.UUID) (*models.ExchangeProposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.GetProposalForUpdate(ctx, id)
}

func (s *Store) ProposalExists(ctx context.Context, senderAdID, receiverAdID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.ProposalExists(ctx, senderAdID, receiverAdID)
}

func (s *Store) SetProposalStatus(ctx context.Context, id uuid.UUID, status models.ProposalStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.SetProposalStatus(ctx, id, status)
}

func (s *Store) ListProposals(ctx context.Context, filter models.ProposalFilter) ([]models.ExchangeProposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.ListProposals(ctx, filter)
}

func (s *Store) CountProposals(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.CountProposals(ctx)
}

// state данные хранилища; методы вызываются под мьютексом Store
type state struct {
	now       func() time.Time
	users     map[uuid.UUID]models.User
	usernames map[string]uuid.UUID
	telegram  map[int64]uuid.UUID
	ads       map[uuid.UUID]models.Ad
	proposals map[uuid.UUID]models.ExchangeProposal
	pairs     map[[2]uuid.UUID]uuid.UUID
}

func newState() *state {
	return &state{
		now:       func() time.Time { return time.Now().UTC() },
		users:     make(map[uuid.UUID]models.User),
		usernames: make(map[string]uuid.UUID),
		telegram:  make(map[int64]uuid.UUID),
		ads:       make(map[uuid.UUID]models.Ad),
		proposals: make(map[uuid.UUID]models.ExchangeProposal),
		pairs:     make(map[[2]uuid.UUID]uuid.UUID),
	}
}

// clone копирует карты; значения хранятся по значению, поэтому копии независимы
func (st *state) clone() *state {
	c := &state{
		now:       st.now,
		users:     make(map[uuid.UUID]models.User, len(st.users)),
		usernames: make(map[string]uuid.UUID, len(st.usernames)),
		telegram:  make(map[int64]uuid.UUID, len(st.telegram)),
		ads:       make(map[uuid.UUID]models.Ad, len(st.ads)),
		proposals: make(map[uuid.UUID]models.ExchangeProposal, len(st.proposals)),
		pairs:     make(map[[2]uuid.UUID]uuid.UUID, len(st.pairs)),
	}
	for k, v := range st.users {
		c.users[k] = v
	}
	for k, v := range st.usernames {
		c.usernames[k] = v
	}
	for k, v := range st.telegram {
		c.telegram[k] = v
	}
	for k, v := range st.ads {
		c.ads[k] = v
	}
	for k, v := range st.proposals {
		c.proposals[k] = v
	}
	for k, v := range st.pairs {
		c.pairs[k] = v
	}
	return c
}

func (st *state) CreateUser(_ context.Context, user *models.User) error {
	if _, taken := st.usernames[user.Username]; taken {
		return repository.ErrDuplicate
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.CreatedAt = st.now()
	st.users[user.ID] = *user
	st.usernames[user.Username] = user.ID
	return nil
}

func (st *state) GetUserByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	u, ok := st.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (st *state) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	id, ok := st.usernames[username]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return st.GetUserByID(ctx, id)
}

func (st *state) UpsertTelegramUser(ctx context.Context, profile models.TelegramProfile) (*models.User, error) {
	if id, ok := st.telegram[profile.TelegramID]; ok {
		u := st.users[id]
		u.FirstName = profile.FirstName
		u.LastName = profile.LastName
		st.users[id] = u
		return &u, nil
	}

	tgID := profile.TelegramID
	u := models.User{
		Username:   fmt.Sprintf("tg_%d", profile.TelegramID),
		FirstName:  profile.FirstName,
		LastName:   profile.LastName,
		TelegramID: &tgID,
	}
	if err := st.CreateUser(ctx, &u); err != nil {
		return nil, err
	}
	st.telegram[tgID] = u.ID
	return &u, nil
}

func (st *state) CreateAd(_ context.Context, ad *models.Ad) error {
	if _, ok := st.users[ad.UserID]; !ok {
		return repository.ErrNotFound
	}
	if ad.ID == uuid.Nil {
		ad.ID = uuid.New()
	}
	now := st.now()
	ad.IsActive = true
	ad.CreatedAt = now
	ad.UpdatedAt = now
	st.ads[ad.ID] = *ad
	return nil
}

func (st *state) GetAd(_ context.Context, id uuid.UUID) (*models.Ad, error) {
	ad, ok := st.ads[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &ad, nil
}

func (st *state) LockAds(_ context.Context, ids ...uuid.UUID) (map[uuid.UUID]*models.Ad, error) {
	out := make(map[uuid.UUID]*models.Ad, len(ids))
	for _, id := range ids {
		if ad, ok := st.ads[id]; ok {
			out[id] = &ad
		}
	}
	return out, nil
}

func (st *state) UpdateAd(_ context.Context, ad *models.Ad) error {
	cur, ok := st.ads[ad.ID]
	if !ok {
		return repository.ErrNotFound
	}
	cur.Title = ad.Title
	cur.Description = ad.Description
	cur.ImageURL = ad.ImageURL
	cur.Category = ad.Category
	cur.Condition = ad.Condition
	cur.UpdatedAt = st.now()
	st.ads[ad.ID] = cur
	*ad = cur
	return nil
}

func (st *state) DeactivateAds(_ context.Context, ids ...uuid.UUID) error {
	for _, id := range ids {
		ad, ok := st.ads[id]
		if !ok {
			return repository.ErrNotFound
		}
		ad.IsActive = false
		ad.UpdatedAt = st.now()
		st.ads[id] = ad
	}
	return nil
}

func (st *state) DeleteAd(_ context.Context, id uuid.UUID) error {
	if _, ok := st.ads[id]; !ok {
		return repository.ErrNotFound
	}
	delete(st.ads, id)
	for pid, p := range st.proposals {
		if p.AdSenderID == id || p.AdReceiverID == id {
			delete(st.proposals, pid)
			delete(st.pairs, [2]uuid.UUID{p.AdSenderID, p.AdReceiverID})
		}
	}
	return nil
}

func (st *state) SearchAds(_ context.Context, filter models.AdFilter) ([]models.Ad, int, error) {
	text := strings.ToLower(filter.Text)

	var matched []models.Ad
	for _, ad := range st.ads {
		if !ad.IsActive {
			continue
		}
		if text != "" &&
			!strings.Contains(strings.ToLower(ad.Title), text) &&
			!strings.Contains(strings.ToLower(ad.Description), text) {
			continue
		}
		if filter.Category != nil && ad.Category != *filter.Category {
			continue
		}
		if filter.Condition != nil && ad.Condition != *filter.Condition {
			continue
		}
		matched = append(matched, ad)
	}
	sortAds(matched)

	total := len(matched)
	if filter.PageSize <= 0 {
		return matched, total, nil
	}
	from := filter.Offset()
	if from >= total {
		return []models.Ad{}, total, nil
	}
	to := from + filter.PageSize
	if to > total {
		to = total
	}
	return matched[from:to], total, nil
}

func (st *state) ListUserAds(_ context.Context, userID uuid.UUID) ([]models.Ad, error) {
	var out []models.Ad
	for _, ad := range st.ads {
		if ad.UserID == userID {
			out = append(out, ad)
		}
	}
	sortAds(out)
	return out, nil
}

func (st *state) CreateProposal(_ context.Context, p *models.ExchangeProposal) error {
	if _, ok := st.ads[p.AdSenderID]; !ok {
		return repository.ErrNotFound
	}
	if _, ok := st.ads[p.AdReceiverID]; !ok {
		return repository.ErrNotFound
	}
	key := [2]uuid.UUID{p.AdSenderID, p.AdReceiverID}
	if _, dup := st.pairs[key]; dup {
		return repository.ErrDuplicate
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.Status = models.StatusPending
	p.CreatedAt = st.now()
	p.DecidedAt = nil

	stored := *p
	stored.AdSender, stored.AdReceiver = nil, nil
	st.proposals[p.ID] = stored
	st.pairs[key] = p.ID

	st.fill(p)
	return nil
}

func (st *state) GetProposal(_ context.Context, id uuid.UUID) (*models.ExchangeProposal, error) {
	p, ok := st.proposals[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	st.fill(&p)
	return &p, nil
}

func (st *state) GetProposalForUpdate(ctx context.Context, id uuid.UUID) (*models.ExchangeProposal, error) {
	return st.GetProposal(ctx, id)
}

func (st *state) ProposalExists(_ context.Context, senderAdID, receiverAdID uuid.UUID) (bool, error) {
	_, ok := st.pairs[[2]uuid.UUID{senderAdID, receiverAdID}]
	return ok, nil
}

func (st *state) SetProposalStatus(_ context.Context, id uuid.UUID, status models.ProposalStatus) error {
	p, ok := st.proposals[id]
	if !ok {
		return repository.ErrNotFound
	}
	p.Status = status
	if status.Terminal() {
		now := st.now()
		p.DecidedAt = &now
	}
	st.proposals[id] = p
	return nil
}

func (st *state) ListProposals(_ context.Context, filter models.ProposalFilter) ([]models.ExchangeProposal, error) {
	var out []models.ExchangeProposal
	for _, p := range st.proposals {
		st.fill(&p)
		switch filter.Box {
		case models.BoxSent:
			if p.SenderUserID != filter.UserID {
				continue
			}
		case models.BoxReceived:
			if p.ReceiverUserID != filter.UserID {
				continue
			}
		default:
			if p.SenderUserID != filter.UserID && p.ReceiverUserID != filter.UserID {
				continue
			}
		}
		if filter.Status != nil && p.Status != *filter.Status {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return bytes.Compare(out[i].ID[:], out[j].ID[:]) > 0
	})
	return out, nil
}

func (st *state) CountProposals(context.Context) (int, error) {
	return len(st.proposals), nil
}

// fill подставляет объявления и их владельцев, как это делает JOIN в PostgreSQL
func (st *state) fill(p *models.ExchangeProposal) {
	if ad, ok := st.ads[p.AdSenderID]; ok {
		p.AdSender = &ad
		p.SenderUserID = ad.UserID
	}
	if ad, ok := st.ads[p.AdReceiverID]; ok {
		p.AdReceiver = &ad
		p.ReceiverUserID = ad.UserID
	}
}

// sortAds упорядочивает от новых к старым, при равном времени по id по убыванию
func sortAds(ads []models.Ad) {
	sort.Slice(ads, func(i, j int) bool {
		if !ads[i].CreatedAt.Equal(ads[j].CreatedAt) {
			return ads[i].CreatedAt.After(ads[j].CreatedAt)
		}
		return bytes.Compare(ads[i].ID[:], ads[j].ID[:]) > 0
	})
}
