package orders

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDraftStore(t *testing.T, ttl time.Duration) (*DraftStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewDraftStore(client, ttl), mr
}

func TestDraftStoreRoundTrip(t *testing.T) {
	drafts, mr := newDraftStore(t, time.Hour)
	ctx := context.Background()

	_, ok, err := drafts.Load(ctx, "billing", "u1")
	require.NoError(t, err)
	assert.False(t, ok)

	b := newStoreBuilder()
	addProduct(t, b, Product{ID: "p-rice", Name: "Rice", Unit: "kg", Price: 20, GSTRate: 5}, "10")
	require.NoError(t, b.SetHeaderField("notes", "deliver tomorrow"))
	require.NoError(t, drafts.Save(ctx, "billing", "u1", b.State()))

	assert.True(t, mr.Exists("draft:billing:u1"))
	assert.Equal(t, time.Hour, mr.TTL("draft:billing:u1"))

	st, ok, err := drafts.Load(ctx, "billing", "u1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, b.State().Order, st.Order)

	resumed := Resume(StoreInvoice, st, testOptions()...)
	addProduct(t, resumed, Product{ID: "p-urea", Name: "Urea", Unit: "bag", Price: 100, GSTRate: 12}, "2")
	assert.Equal(t, 434.0, resumed.State().Order.GrandTotal)

	_, ok, err = drafts.Load(ctx, "broker", "u1")
	require.NoError(t, err)
	assert.False(t, ok, "drafts are per workflow")
}

func TestDraftStoreExpiryAndDelete(t *testing.T) {
	drafts, mr := newDraftStore(t, 0)
	ctx := context.Background()

	require.NoError(t, drafts.Save(ctx, "broker", "u2", newBrokerBuilder().State()))
	assert.Equal(t, DefaultDraftTTL, mr.TTL("draft:broker:u2"))

	mr.FastForward(DefaultDraftTTL + time.Second)
	_, ok, err := drafts.Load(ctx, "broker", "u2")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, drafts.Save(ctx, "broker", "u2", newBrokerBuilder().State()))
	require.NoError(t, drafts.Delete(ctx, "broker", "u2"))
	require.NoError(t, drafts.Delete(ctx, "broker", "u2"))
	assert.False(t, mr.Exists("draft:broker:u2"))
}

func TestDraftStoreCorruptPayload(t *testing.T) {
	drafts, mr := newDraftStore(t, time.Minute)
	require.NoError(t, mr.Set("draft:billing:u3", "{not json"))

	_, _, err := drafts.Load(context.Background(), "billing", "u3")
	assert.ErrorContains(t, err, "decode draft")
}
