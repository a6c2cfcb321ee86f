package cartsync

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmamart/internal/domain"
)

type memStore struct {
	mu      sync.Mutex
	rows    map[string][]domain.CartLine
	failOn  string
	listErr error
}

func newMemStore() *memStore {
	return &memStore{rows: map[string][]domain.CartLine{}}
}

var errDown = errors.New("store unavailable")

func (m *memStore) List(_ context.Context, userID string) ([]domain.CartLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	return slices.Clone(m.rows[userID]), nil
}

func (m *memStore) Upsert(_ context.Context, userID, productID string, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOn == "upsert" {
		return errDown
	}
	rows := m.rows[userID]
	for i := range rows {
		if rows[i].ProductID == productID {
			rows[i].Quantity = quantity
			return nil
		}
	}
	m.rows[userID] = append(rows, domain.CartLine{ProductID: productID, Quantity: quantity})
	return nil
}

func (m *memStore) Delete(_ context.Context, userID, productID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOn == "delete" {
		return errDown
	}
	m.rows[userID] = slices.DeleteFunc(m.rows[userID], func(l domain.CartLine) bool { return l.ProductID == productID })
	return nil
}

func (m *memStore) DeleteAll(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOn == "deleteAll" {
		return errDown
	}
	delete(m.rows, userID)
	return nil
}

type priceCatalog struct {
	prices map[string]string
	calls  int
}

func (c *priceCatalog) Products(_ context.Context, ids []string) ([]domain.Product, error) {
	c.calls++
	var out []domain.Product
	for _, id := range ids {
		if p, ok := c.prices[id]; ok {
			out = append(out, domain.Product{ID: id, Name: id, Price: decimal.RequireFromString(p)})
		}
	}
	return out, nil
}

const user = "user-1"

func loaded(t *testing.T, store *memStore, catalog *priceCatalog) *Synchronizer {
	t.Helper()
	s := New(store, catalog, nil)
	require.NoError(t, s.Load(context.Background(), user))
	return s
}

func quantityOf(s *Synchronizer, productID string) int {
	for _, l := range s.Lines() {
		if l.ProductID == productID {
			return l.Quantity
		}
	}
	return 0
}

func TestAddItemAccumulates(t *testing.T) {
	ctx := context.Background()
	s := loaded(t, newMemStore(), &priceCatalog{})

	for _, n := range []int{1, 4, 2, 3} {
		require.NoError(t, s.AddItem(ctx, "A", n))
	}
	require.Len(t, s.Lines(), 1)
	assert.Equal(t, 10, quantityOf(s, "A"))
}

func TestAddItemToExistingLine(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	store.rows[user] = []domain.CartLine{{ProductID: "A", Quantity: 2}}
	s := loaded(t, store, &priceCatalog{})

	require.NoError(t, s.AddItem(ctx, "A", 1))
	require.Len(t, s.Lines(), 1)
	assert.Equal(t, 3, quantityOf(s, "A"))
	assert.Equal(t, 3, store.rows[user][0].Quantity)
}

func TestAddItemRejectsNonPositive(t *testing.T) {
	s := loaded(t, newMemStore(), &priceCatalog{})
	assert.ErrorIs(t, s.AddItem(context.Background(), "A", 0), ErrInvalidQuantity)
	assert.Empty(t, s.Lines())
}

func TestUpdateToZeroEqualsRemove(t *testing.T) {
	ctx := context.Background()
	seed := []domain.CartLine{{ProductID: "A", Quantity: 2}, {ProductID: "B", Quantity: 1}}

	storeA := newMemStore()
	storeA.rows[user] = slices.Clone(seed)
	viaUpdate := loaded(t, storeA, &priceCatalog{})
	require.NoError(t, viaUpdate.UpdateQuantity(ctx, "A", 0))

	storeB := newMemStore()
	storeB.rows[user] = slices.Clone(seed)
	viaRemove := loaded(t, storeB, &priceCatalog{})
	require.NoError(t, viaRemove.RemoveItem(ctx, "A"))

	assert.Equal(t, viaRemove.Lines(), viaUpdate.Lines())
	assert.Equal(t, storeB.rows[user], storeA.rows[user])
	assert.Zero(t, quantityOf(viaUpdate, "A"))
}

func TestUpdateQuantitySetsAbsoluteValue(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	s := loaded(t, store, &priceCatalog{})

	require.NoError(t, s.AddItem(ctx, "A", 2))
	require.NoError(t, s.UpdateQuantity(ctx, "A", 7))
	assert.Equal(t, 7, quantityOf(s, "A"))
	assert.Equal(t, 7, store.rows[user][0].Quantity)

	assert.ErrorIs(t, s.UpdateQuantity(ctx, "missing", 2), domain.ErrNotFound)
}

func TestTotalsScenario(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	store.rows[user] = []domain.CartLine{{ProductID: "A", Quantity: 2}, {ProductID: "B", Quantity: 1}}
	catalog := &priceCatalog{prices: map[string]string{"A": "10.00", "B": "25.50"}}
	s := loaded(t, store, catalog)

	total, err := s.TotalPrice(ctx)
	require.NoError(t, err)
	assert.Equal(t, "45.50", total.StringFixed(2))
	assert.Equal(t, 3, s.TotalItems())
}

func TestTotalPriceIsRecomputed(t *testing.T) {
	ctx := context.Background()
	catalog := &priceCatalog{prices: map[string]string{"A": "10.00"}}
	s := loaded(t, newMemStore(), catalog)
	require.NoError(t, s.AddItem(ctx, "A", 3))

	first, err := s.TotalPrice(ctx)
	require.NoError(t, err)
	assert.Equal(t, "30.00", first.StringFixed(2))

	catalog.prices["A"] = "12.50"
	second, err := s.TotalPrice(ctx)
	require.NoError(t, err)
	assert.Equal(t, "37.50", second.StringFixed(2))
	assert.Equal(t, 2, catalog.calls)
}

func TestViewAttachesProducts(t *testing.T) {
	ctx := context.Background()
	catalog := &priceCatalog{prices: map[string]string{"A": "4.20"}}
	s := loaded(t, newMemStore(), catalog)
	require.NoError(t, s.AddItem(ctx, "A", 1))
	require.NoError(t, s.AddItem(ctx, "gone", 2))

	v, err := s.View(ctx)
	require.NoError(t, err)
	require.Len(t, v.Lines, 2)
	require.NotNil(t, v.Lines[0].Product)
	assert.Nil(t, v.Lines[1].Product)
	assert.Equal(t, 3, v.TotalItems)
	assert.Equal(t, "4.20", v.TotalPrice.StringFixed(2))
}

func TestClearThenLoadIsEmpty(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	s := loaded(t, store, &priceCatalog{})
	require.NoError(t, s.AddItem(ctx, "A", 2))
	require.NoError(t, s.AddItem(ctx, "B", 1))

	require.NoError(t, s.Clear(ctx))
	assert.Empty(t, s.Lines())

	fresh := loaded(t, store, &priceCatalog{})
	assert.Empty(t, fresh.Lines())
	assert.Zero(t, fresh.TotalItems())
}

func TestRoundTripThroughFreshSession(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	s := loaded(t, store, &priceCatalog{})
	require.NoError(t, s.AddItem(ctx, "P", 2))

	fresh := loaded(t, store, &priceCatalog{})
	lines := fresh.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, "P", lines[0].ProductID)
	assert.Equal(t, 2, lines[0].Quantity)
}

func TestLoadFailureLeavesCartEmpty(t *testing.T) {
	store := newMemStore()
	store.rows[user] = []domain.CartLine{{ProductID: "A", Quantity: 1}}
	s := loaded(t, store, &priceCatalog{})
	require.Len(t, s.Lines(), 1)

	store.listErr = errDown
	err := s.Load(context.Background(), user)

	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, user, fe.UserID)
	assert.ErrorIs(t, err, errDown)
	assert.Empty(t, s.Lines())
}

func TestMutationAfterFailedLoadRereadsStore(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	store.rows[user] = []domain.CartLine{{ProductID: "A", Quantity: 3}}
	store.listErr = errDown

	s := New(store, &priceCatalog{}, nil)
	require.Error(t, s.Load(ctx, user))
	assert.True(t, s.Stale())

	assert.ErrorIs(t, s.AddItem(ctx, "A", 1), errDown)
	assert.Equal(t, 3, store.rows[user][0].Quantity)

	store.listErr = nil
	require.NoError(t, s.AddItem(ctx, "A", 1))
	assert.False(t, s.Stale())
	assert.Equal(t, 4, quantityOf(s, "A"))
	assert.Equal(t, 4, store.rows[user][0].Quantity)
}

func TestEnsureLoadedRetriesOnlyWhenStale(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	store.rows[user] = []domain.CartLine{{ProductID: "A", Quantity: 2}}
	store.listErr = errDown

	s := New(store, &priceCatalog{}, nil)
	assert.ErrorIs(t, s.EnsureLoaded(ctx), ErrNoUser)
	require.Error(t, s.Load(ctx, user))
	require.Empty(t, s.Lines())

	var fe *FetchError
	assert.ErrorAs(t, s.EnsureLoaded(ctx), &fe)

	store.listErr = nil
	require.NoError(t, s.EnsureLoaded(ctx))
	assert.Equal(t, 2, s.TotalItems())

	store.rows[user] = nil
	require.NoError(t, s.EnsureLoaded(ctx))
	assert.Equal(t, 2, s.TotalItems())
}

func TestFailedWritesRevert(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	store.rows[user] = []domain.CartLine{{ProductID: "A", Quantity: 2}}
	s := loaded(t, store, &priceCatalog{})
	before := s.Lines()

	store.failOn = "upsert"
	err := s.AddItem(ctx, "A", 1)
	assert.ErrorIs(t, err, ErrRemoteWrite)
	assert.ErrorIs(t, err, errDown)
	assert.Equal(t, before, s.Lines())

	assert.ErrorIs(t, s.AddItem(ctx, "B", 1), ErrRemoteWrite)
	assert.Equal(t, before, s.Lines())

	assert.ErrorIs(t, s.UpdateQuantity(ctx, "A", 9), ErrRemoteWrite)
	assert.Equal(t, before, s.Lines())

	store.failOn = "delete"
	assert.ErrorIs(t, s.RemoveItem(ctx, "A"), ErrRemoteWrite)
	assert.ErrorIs(t, s.UpdateQuantity(ctx, "A", 0), ErrRemoteWrite)
	assert.Equal(t, before, s.Lines())

	store.failOn = "deleteAll"
	assert.ErrorIs(t, s.Clear(ctx), ErrRemoteWrite)
	assert.Equal(t, before, s.Lines())
}

func TestMutationsRequireUser(t *testing.T) {
	ctx := context.Background()
	s := New(newMemStore(), &priceCatalog{}, nil)

	assert.ErrorIs(t, s.AddItem(ctx, "A", 1), ErrNoUser)
	assert.ErrorIs(t, s.RemoveItem(ctx, "A"), ErrNoUser)
	assert.ErrorIs(t, s.Clear(ctx), ErrNoUser)
	assert.ErrorIs(t, s.Load(ctx, ""), ErrNoUser)

	s = loaded(t, newMemStore(), &priceCatalog{})
	s.Reset()
	assert.Empty(t, s.UserID())
	assert.ErrorIs(t, s.AddItem(ctx, "A", 1), ErrNoUser)
}

func TestConcurrentAddsSerialize(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	s := loaded(t, store, &priceCatalog{})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.AddItem(ctx, "A", 1))
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, s.TotalItems())
	assert.Equal(t, 50, store.rows[user][0].Quantity)
}
