package intel

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skuflow/repricer/internal/model"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	s := NewStore(DefaultOptions())
	s.Ingest(scrape("B0TEST", offer("s1", 20.00)), t0)
	s.Ingest(scrape("B0TEST", offer("s1", 18.00)), t0.Add(time.Hour))
	s.AppendBuyBoxEvent(model.BuyBoxEvent{
		ID: "ev1", ASIN: "B0TEST", Kind: model.BuyBoxLost,
		WinnerSellerID: "s1", Timestamp: t0.Add(time.Hour),
	})

	require.NoError(t, s.Save(path))

	loaded := NewStore(DefaultOptions())
	require.NoError(t, loaded.Load(path))

	rec, ok := loaded.Record("B0TEST", "s1")
	require.True(t, ok)
	assert.Equal(t, 18.00, rec.CurrentPrice)
	assert.Equal(t, 20.00, rec.PreviousPrice)

	assert.Len(t, loaded.History("B0TEST", time.Time{}), 1)
	assert.Len(t, loaded.BuyBoxEvents("B0TEST", time.Time{}), 1)
}

func TestLoadMissingFileStartsEmpty(t *testing.T) {
	s := NewStore(DefaultOptions())
	require.NoError(t, s.Load(filepath.Join(t.TempDir(), "absent.json")))
	assert.Empty(t, s.Records("B0TEST"))
}

func TestLoadCorruptFileStartsFresh(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	s := NewStore(DefaultOptions())
	require.NoError(t, s.Load(path))
	assert.Empty(t, s.Records("B0TEST"))
}
