package indexer

import (
	"context"
	"math/big"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betbot/derivaoption/internal/events"
)

func openTestIndexer(t *testing.T) *Indexer {
	t.Helper()
	idx, err := Open(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func offerEvent(id uint64, at time.Time) events.OfferCreated {
	return events.OfferCreated{
		OfferID:   id,
		Seller:    common.HexToAddress("0x0000000000000000000000000000000000000a11"),
		Token:     common.HexToAddress("0x0000000000000000000000000000000000e70001"),
		IsCall:    true,
		Strike:    big.NewInt(2100),
		Premium:   big.NewInt(5),
		Expiry:    at.Add(time.Hour),
		Amount:    big.NewInt(1000),
		Timestamp: at,
	}
}

func TestAppendAndQuery(t *testing.T) {
	idx := openTestIndexer(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, idx.Append(offerEvent(1, base)))
	require.NoError(t, idx.Append(offerEvent(2, base.Add(time.Minute))))
	require.NoError(t, idx.Append(events.OfferCanceled{
		OfferID:   1,
		Seller:    common.HexToAddress("0x0000000000000000000000000000000000000a11"),
		Refunded:  big.NewInt(1000),
		Timestamp: base.Add(2 * time.Minute),
	}))

	n, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	// newest first
	recent, err := idx.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, "offer_canceled", recent[0].Name)
	assert.Equal(t, "offer_created", recent[1].Name)
	assert.True(t, recent[0].Seq > recent[1].Seq)
	assert.Equal(t, base.Add(2*time.Minute), recent[0].OccurredAt)
	assert.JSONEq(t, `{
		"offer_id": 1,
		"seller": "0x0000000000000000000000000000000000000a11",
		"refunded": 1000,
		"timestamp": "2026-01-01T00:02:00Z"
	}`, string(recent[0].Payload))

	byName, err := idx.ByName(ctx, "offer_created", 10)
	require.NoError(t, err)
	require.Len(t, byName, 2)
	for _, r := range byName {
		assert.Equal(t, "offer_created", r.Name)
	}

	// limit applies
	limited, err := idx.Recent(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestAttachWritesThroughBus(t *testing.T) {
	idx := openTestIndexer(t)
	bus := events.NewBus()
	idx.Attach(bus)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	bus.Publish(offerEvent(7, base))

	recent, err := idx.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "offer_created", recent[0].Name)
}

func TestOpenIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audit.db")

	idx, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, idx.Append(offerEvent(1, time.Now())))
	require.NoError(t, idx.Close())

	// reopening keeps existing rows
	idx2, err := Open(path)
	require.NoError(t, err)
	defer idx2.Close()
	n, err := idx2.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
