package proposal

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rajivgeraev/barter-api/internal/access"
	"github.com/rajivgeraev/barter-api/internal/models"
	"github.com/rajivgeraev/barter-api/internal/repository"
	"github.com/rajivgeraev/barter-api/internal/repository/memory"
)

type fixture struct {
	store  *memory.Store
	engine *Engine
	userA  *models.User
	userB  *models.User
	book   *models.Ad
	phone  *models.Ad
}

func setup(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.New()

	a := &models.User{Username: "alice"}
	b := &models.User{Username: "bob"}
	require.NoError(t, store.CreateUser(ctx, a))
	require.NoError(t, store.CreateUser(ctx, b))

	book := &models.Ad{UserID: a.ID, Title: "Книга", Description: "Интересный роман", Category: models.CategoryBooks, Condition: models.ConditionNew}
	phone := &models.Ad{UserID: b.ID, Title: "Телефон", Description: "Смартфон", Category: models.CategoryElectronics, Condition: models.ConditionUsed}
	require.NoError(t, store.CreateAd(ctx, book))
	require.NoError(t, store.CreateAd(ctx, phone))

	return &fixture{store: store, engine: NewEngine(store), userA: a, userB: b, book: book, phone: phone}
}

func (f *fixture) newAd(t *testing.T, owner uuid.UUID, title string) *models.Ad {
	t.Helper()
	ad := &models.Ad{UserID: owner, Title: title, Description: title, Category: models.CategoryOther, Condition: models.ConditionUsed}
	require.NoError(t, f.store.CreateAd(context.Background(), ad))
	return ad
}

func (f *fixture) count(t *testing.T) int {
	t.Helper()
	n, err := f.store.CountProposals(context.Background())
	require.NoError(t, err)
	return n
}

func (f *fixture) ad(t *testing.T, id uuid.UUID) *models.Ad {
	t.Helper()
	ad, err := f.store.GetAd(context.Background(), id)
	require.NoError(t, err)
	return ad
}

func TestBookForPhoneAccepted(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	p, err := f.engine.Create(ctx, f.userA.ID, CreateInput{SenderAdID: f.book.ID, ReceiverAdID: f.phone.ID, Comment: "Обменяемся?"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, p.Status)
	assert.Equal(t, "Обменяемся?", p.Comment)
	assert.True(t, f.ad(t, f.book.ID).IsActive)
	assert.True(t, f.ad(t, f.phone.ID).IsActive)

	decided, err := f.engine.Decide(ctx, f.userB.ID, p.ID, models.DecisionAccept)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAccepted, decided.Status)
	assert.NotNil(t, decided.DecidedAt)
	assert.False(t, decided.AdSender.IsActive)
	assert.False(t, decided.AdReceiver.IsActive)

	assert.False(t, f.ad(t, f.book.ID).IsActive)
	assert.False(t, f.ad(t, f.phone.ID).IsActive)
}

func TestRejectLeavesAdsActive(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	p, err := f.engine.Create(ctx, f.userA.ID, CreateInput{SenderAdID: f.book.ID, ReceiverAdID: f.phone.ID, Comment: "Обменяемся?"})
	require.NoError(t, err)

	decided, err := f.engine.Decide(ctx, f.userB.ID, p.ID, models.DecisionReject)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, decided.Status)
	assert.True(t, f.ad(t, f.book.ID).IsActive)
	assert.True(t, f.ad(t, f.phone.ID).IsActive)
}

func TestSelfExchangeCreatesNothing(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.engine.Create(ctx, f.userA.ID, CreateInput{SenderAdID: f.book.ID, ReceiverAdID: f.book.ID, Comment: "Сам с собой"})
	assert.ErrorIs(t, err, ErrSelfExchange)
	assert.Equal(t, 0, f.count(t))

	// Два разных объявления одного владельца тоже самообмен
	other := f.newAd(t, f.userA.ID, "Лампа")
	_, err = f.engine.Create(ctx, f.userA.ID, CreateInput{SenderAdID: f.book.ID, ReceiverAdID: other.ID, Comment: "Сам с собой"})
	assert.ErrorIs(t, err, ErrSelfExchange)
	assert.Equal(t, 0, f.count(t))
}

func TestDuplicateProposalRejected(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.engine.Create(ctx, f.userA.ID, CreateInput{SenderAdID: f.book.ID, ReceiverAdID: f.phone.ID, Comment: "Первое"})
	require.NoError(t, err)

	_, err = f.engine.Create(ctx, f.userA.ID, CreateInput{SenderAdID: f.book.ID, ReceiverAdID: f.phone.ID, Comment: "Второе"})
	assert.ErrorIs(t, err, ErrDuplicateProposal)
	assert.Equal(t, 1, f.count(t))

	// Встречное предложение это другая упорядоченная пара
	_, err = f.engine.Create(ctx, f.userB.ID, CreateInput{SenderAdID: f.phone.ID, ReceiverAdID: f.book.ID, Comment: "Встречное"})
	require.NoError(t, err)
	assert.Equal(t, 2, f.count(t))
}

func TestDuplicateCheckedBeforeActivity(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	p, err := f.engine.Create(ctx, f.userA.ID, CreateInput{SenderAdID: f.book.ID, ReceiverAdID: f.phone.ID, Comment: "Обменяемся?"})
	require.NoError(t, err)
	_, err = f.engine.Decide(ctx, f.userB.ID, p.ID, models.DecisionAccept)
	require.NoError(t, err)

	_, err = f.engine.Create(ctx, f.userA.ID, CreateInput{SenderAdID: f.book.ID, ReceiverAdID: f.phone.ID, Comment: "Еще раз"})
	assert.ErrorIs(t, err, ErrDuplicateProposal)
}

func TestCreatePreconditions(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	t.Run("missing ad", func(t *testing.T) {
		_, err := f.engine.Create(ctx, f.userA.ID, CreateInput{SenderAdID: f.book.ID, ReceiverAdID: uuid.New(), Comment: "?"})
		assert.ErrorIs(t, err, ErrAdNotFound)
	})

	t.Run("foreign sender ad", func(t *testing.T) {
		_, err := f.engine.Create(ctx, f.userA.ID, CreateInput{SenderAdID: f.phone.ID, ReceiverAdID: f.book.ID, Comment: "?"})
		assert.ErrorIs(t, err, ErrNotSenderOwner)
	})

	t.Run("empty comment", func(t *testing.T) {
		_, err := f.engine.Create(ctx, f.userA.ID, CreateInput{SenderAdID: f.book.ID, ReceiverAdID: f.phone.ID, Comment: "   "})
		assert.ErrorIs(t, err, ErrEmptyComment)
	})

	t.Run("inactive ad", func(t *testing.T) {
		lamp := f.newAd(t, f.userA.ID, "Лампа")
		chair := f.newAd(t, f.userB.ID, "Стул")
		require.NoError(t, f.store.DeactivateAds(ctx, chair.ID))

		_, err := f.engine.Create(ctx, f.userA.ID, CreateInput{SenderAdID: lamp.ID, ReceiverAdID: chair.ID, Comment: "?"})
		assert.ErrorIs(t, err, ErrInactiveAd)
	})

	assert.Equal(t, 0, f.count(t))
}

func TestDecideNonPendingLeavesStateUnchanged(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	p, err := f.engine.Create(ctx, f.userA.ID, CreateInput{SenderAdID: f.book.ID, ReceiverAdID: f.phone.ID, Comment: "Обменяемся?"})
	require.NoError(t, err)
	rejected, err := f.engine.Decide(ctx, f.userB.ID, p.ID, models.DecisionReject)
	require.NoError(t, err)

	for _, d := range []models.Decision{models.DecisionAccept, models.DecisionReject} {
		_, err := f.engine.Decide(ctx, f.userB.ID, p.ID, d)
		assert.ErrorIs(t, err, ErrAlreadyDecided)
	}

	after, err := f.store.GetProposal(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, after.Status)
	assert.Equal(t, rejected.DecidedAt, after.DecidedAt)
	assert.True(t, f.ad(t, f.book.ID).IsActive)
	assert.True(t, f.ad(t, f.phone.ID).IsActive)
}

func TestDecideGuards(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	p, err := f.engine.Create(ctx, f.userA.ID, CreateInput{SenderAdID: f.book.ID, ReceiverAdID: f.phone.ID, Comment: "Обменяемся?"})
	require.NoError(t, err)

	// Отправитель не может принять свое предложение
	_, err = f.engine.Decide(ctx, f.userA.ID, p.ID, models.DecisionAccept)
	assert.ErrorIs(t, err, access.ErrNotReceiver)

	_, err = f.engine.Decide(ctx, f.userB.ID, uuid.New(), models.DecisionAccept)
	assert.ErrorIs(t, err, ErrProposalNotFound)

	got, err := f.store.GetProposal(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, got.Status)
}

func TestAcceptFailsWhenAdAlreadyTraded(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	userC := &models.User{Username: "carol"}
	require.NoError(t, f.store.CreateUser(ctx, userC))
	bike := f.newAd(t, userC.ID, "Велосипед")

	// Оба предложения просят Телефон
	p1, err := f.engine.Create(ctx, f.userA.ID, CreateInput{SenderAdID: f.book.ID, ReceiverAdID: f.phone.ID, Comment: "1"})
	require.NoError(t, err)
	p2, err := f.engine.Create(ctx, userC.ID, CreateInput{SenderAdID: bike.ID, ReceiverAdID: f.phone.ID, Comment: "2"})
	require.NoError(t, err)

	_, err = f.engine.Decide(ctx, f.userB.ID, p1.ID, models.DecisionAccept)
	require.NoError(t, err)

	_, err = f.engine.Decide(ctx, f.userB.ID, p2.ID, models.DecisionAccept)
	assert.ErrorIs(t, err, ErrInactiveAd)

	got, err := f.store.GetProposal(ctx, p2.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, got.Status)
	assert.True(t, f.ad(t, bike.ID).IsActive)

	// Отклонить такое предложение по-прежнему можно
	_, err = f.engine.Decide(ctx, f.userB.ID, p2.ID, models.DecisionReject)
	require.NoError(t, err)
}

func TestConcurrentAcceptsSharingAnAd(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	userC := &models.User{Username: "carol"}
	require.NoError(t, f.store.CreateUser(ctx, userC))
	bike := f.newAd(t, userC.ID, "Велосипед")

	p1, err := f.engine.Create(ctx, f.userA.ID, CreateInput{SenderAdID: f.book.ID, ReceiverAdID: f.phone.ID, Comment: "1"})
	require.NoError(t, err)
	p2, err := f.engine.Create(ctx, userC.ID, CreateInput{SenderAdID: bike.ID, ReceiverAdID: f.phone.ID, Comment: "2"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, id := range []uuid.UUID{p1.ID, p2.ID} {
		wg.Add(1)
		go func(i int, id uuid.UUID) {
			defer wg.Done()
			_, errs[i] = f.engine.Decide(ctx, f.userB.ID, id, models.DecisionAccept)
		}(i, id)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, ErrInactiveAd)
		}
	}
	assert.Equal(t, 1, succeeded)
}

func TestGetAndListMine(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	userC := &models.User{Username: "carol"}
	require.NoError(t, f.store.CreateUser(ctx, userC))

	p, err := f.engine.Create(ctx, f.userA.ID, CreateInput{SenderAdID: f.book.ID, ReceiverAdID: f.phone.ID, Comment: "Обменяемся?"})
	require.NoError(t, err)

	_, err = f.engine.Get(ctx, f.userA.ID, p.ID)
	require.NoError(t, err)
	_, err = f.engine.Get(ctx, f.userB.ID, p.ID)
	require.NoError(t, err)
	_, err = f.engine.Get(ctx, userC.ID, p.ID)
	assert.ErrorIs(t, err, access.ErrNotParticipant)

	mineA, err := f.engine.ListMine(ctx, f.userA.ID, "", nil)
	require.NoError(t, err)
	assert.Len(t, mineA.Sent, 1)
	assert.Empty(t, mineA.Received)
	assert.NotNil(t, mineA.Received)

	mineB, err := f.engine.ListMine(ctx, f.userB.ID, models.BoxReceived, nil)
	require.NoError(t, err)
	assert.Empty(t, mineB.Sent)
	require.Len(t, mineB.Received, 1)
	assert.Equal(t, p.ID, mineB.Received[0].ID)

	accepted := models.StatusAccepted
	mineB, err = f.engine.ListMine(ctx, f.userB.ID, "", &accepted)
	require.NoError(t, err)
	assert.Empty(t, mineB.Received)
}

var errDeactivate = errors.New("deactivate ads: connection reset")

// failingDeactivation ломает снятие объявлений после смены статуса
type failingDeactivation struct {
	*memory.Store
}

func (r failingDeactivation) InTx(ctx context.Context, fn func(q repository.Queries) error) error {
	return r.Store.InTx(ctx, func(q repository.Queries) error {
		return fn(failingQueries{Queries: q})
	})
}

type failingQueries struct {
	repository.Queries
}

func (failingQueries) DeactivateAds(context.Context, ...uuid.UUID) error {
	return errDeactivate
}

func TestAcceptRollsBackWhenDeactivationFails(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	p, err := f.engine.Create(ctx, f.userA.ID, CreateInput{SenderAdID: f.book.ID, ReceiverAdID: f.phone.ID, Comment: "Обменяемся?"})
	require.NoError(t, err)

	broken := NewEngine(failingDeactivation{Store: f.store})
	_, err = broken.Decide(ctx, f.userB.ID, p.ID, models.DecisionAccept)
	require.ErrorIs(t, err, errDeactivate)

	stored, err := f.store.GetProposal(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, stored.Status)
	assert.Nil(t, stored.DecidedAt)
	assert.True(t, f.ad(t, f.book.ID).IsActive)
	assert.True(t, f.ad(t, f.phone.ID).IsActive)

	// После сбоя предложение все еще можно принять
	decided, err := f.engine.Decide(ctx, f.userB.ID, p.ID, models.DecisionAccept)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAccepted, decided.Status)
	assert.False(t, f.ad(t, f.book.ID).IsActive)
}
