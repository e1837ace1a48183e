package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func openTestStore(t *testing.T) *SQLite {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test_logbook.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestTripLifecycle(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	active, err := s.ActiveTrip(ctx)
	require.NoError(t, err)
	assert.Nil(t, active)

	first, err := s.InsertTrip(ctx, Trip{StartMillis: 1000, Name: ptr("Dawn session")})
	require.NoError(t, err)
	second, err := s.InsertTrip(ctx, Trip{StartMillis: 2000, Waterway: ptr("Lake Eildon")})
	require.NoError(t, err)

	active, err = s.ActiveTrip(ctx)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, second, active.ID)
	assert.Equal(t, "Lake Eildon", *active.Waterway)
	assert.Nil(t, active.Name)

	require.NoError(t, s.EndTrip(ctx, second, 3000))

	active, err = s.ActiveTrip(ctx)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, first, active.ID)

	trips, err := s.ListTrips(ctx)
	require.NoError(t, err)
	require.Len(t, trips, 2)
	assert.Equal(t, second, trips[0].ID)
	require.NotNil(t, trips[0].EndMillis)
	assert.Equal(t, int64(3000), *trips[0].EndMillis)
	assert.False(t, trips[0].Active())
	assert.True(t, trips[1].Active())
}

func TestEndTripUnknownID(t *testing.T) {
	s := openTestStore(t)
	err := s.EndTrip(context.Background(), 42, 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCatchRoundTripKeepsAbsentFields(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	tripID, err := s.InsertTrip(ctx, Trip{StartMillis: 1})
	require.NoError(t, err)

	full := Catch{
		TripID:                 &tripID,
		TimestampMillis:        1718000000000,
		Species:                "  Murray cod ",
		LengthCm:               ptr(72.5),
		WeightKg:               ptr(0.0),
		Lure:                   ptr("Spinnerbait"),
		Notes:                  ptr("Snag, 2m"),
		Latitude:               ptr(-36.9),
		Longitude:              ptr(145.9),
		AccuracyM:              ptr(4.5),
		PhotoRef:               ptr("AgACAgQAAxkBAAIB"),
		WeatherTempC:           ptr(14.2),
		WeatherPressureHpa:     ptr(1016.0),
		WeatherFetchedAtMillis: ptr(int64(1718000000100)),
		MoonPhaseName:          ptr("Waxing Crescent"),
		MoonIlluminationPct:    ptr(12),
	}
	fullID, err := s.InsertCatch(ctx, full)
	require.NoError(t, err)

	bareID, err := s.InsertCatch(ctx, Catch{TimestampMillis: 1718000005000, Species: "Redfin"})
	require.NoError(t, err)

	got, err := s.GetCatch(ctx, fullID)
	require.NoError(t, err)
	full.ID = fullID
	full.Species = "Murray cod"
	assert.Equal(t, full, *got)
	// Zero is a measurement, not absence.
	require.NotNil(t, got.WeightKg)
	assert.Equal(t, 0.0, *got.WeightKg)

	bare, err := s.GetCatch(ctx, bareID)
	require.NoError(t, err)
	assert.Nil(t, bare.TripID)
	assert.Nil(t, bare.LengthCm)
	assert.Nil(t, bare.Latitude)
	assert.Nil(t, bare.WeatherTempC)
	assert.Nil(t, bare.MoonIlluminationPct)
	assert.False(t, bare.HasPosition())
	assert.True(t, got.HasPosition())
}

func TestInsertCatchRequiresSpecies(t *testing.T) {
	s := openTestStore(t)
	_, err := s.InsertCatch(context.Background(), Catch{TimestampMillis: 1, Species: "   "})
	assert.ErrorIs(t, err, ErrInvalidCatch)
}

func TestListCatchesNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	for _, ts := range []int64{300, 100, 200} {
		_, err := s.InsertCatch(ctx, Catch{TimestampMillis: ts, Species: "Trout"})
		require.NoError(t, err)
	}

	list, err := s.ListCatches(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, int64(300), list[0].TimestampMillis)
	assert.Equal(t, int64(200), list[1].TimestampMillis)
	assert.Equal(t, int64(100), list[2].TimestampMillis)
}

func TestDeleteCatch(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	id, err := s.InsertCatch(ctx, Catch{TimestampMillis: 1, Species: "Bream"})
	require.NoError(t, err)

	require.NoError(t, s.DeleteCatch(ctx, id))

	_, err = s.GetCatch(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.DeleteCatch(ctx, id), ErrNotFound)
}

func TestSubscribeReceivesChanges(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	events, cancel := s.Subscribe()
	defer cancel()

	tripID, err := s.InsertTrip(ctx, Trip{StartMillis: 1})
	require.NoError(t, err)
	catchID, err := s.InsertCatch(ctx, Catch{TimestampMillis: 2, Species: "Carp"})
	require.NoError(t, err)
	require.NoError(t, s.DeleteCatch(ctx, catchID))
	require.NoError(t, s.EndTrip(ctx, tripID, 3))

	want := []Event{
		{Kind: TripStarted, ID: tripID},
		{Kind: CatchAdded, ID: catchID},
		{Kind: CatchDeleted, ID: catchID},
		{Kind: TripEnded, ID: tripID},
	}
	for _, w := range want {
		select {
		case got := <-events:
			assert.Equal(t, w, got)
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %v", w)
		}
	}
}

func TestSubscribeCancelClosesChannel(t *testing.T) {
	s := openTestStore(t)
	events, cancel := s.Subscribe()
	cancel()
	cancel()

	_, ok := <-events
	assert.False(t, ok)

	// Publishing after cancel must not panic.
	_, err := s.InsertTrip(context.Background(), Trip{StartMillis: 1})
	require.NoError(t, err)
}

func TestSubscribeStalledReaderDoesNotBlockWrites(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	stalled, cancel := s.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < subscriberBuffer+8; i++ {
			_, err := s.InsertTrip(ctx, Trip{StartMillis: int64(i)})
			assert.NoError(t, err)
		}
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("inserts blocked on a subscriber that stopped reading")
	}
	assert.Len(t, stalled, subscriberBuffer)

	fresh, cancelFresh := s.Subscribe()
	defer cancelFresh()
	id, err := s.InsertCatch(ctx, Catch{TimestampMillis: 1, Species: "Carp"})
	require.NoError(t, err)

	select {
	case got := <-fresh:
		assert.Equal(t, Event{Kind: CatchAdded, ID: id}, got)
	case <-time.After(time.Second):
		t.Fatal("new subscriber missed the event")
	}
	assert.Len(t, stalled, subscriberBuffer)

	// The buffered events are the oldest ones, in order.
	first := <-stalled
	assert.Equal(t, TripStarted, first.Kind)
	assert.Equal(t, int64(1), first.ID)
}

func TestSnapshotTo(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	_, err := s.InsertCatch(ctx, Catch{TimestampMillis: 1, Species: "Perch"})
	require.NoError(t, err)

	snap := filepath.Join(t.TempDir(), "snapshot.db")
	require.NoError(t, os.WriteFile(snap, []byte("stale"), 0644))
	require.NoError(t, s.SnapshotTo(ctx, snap))

	copyStore, err := Open(snap)
	require.NoError(t, err)
	defer copyStore.Close()

	list, err := copyStore.ListCatches(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Perch", list[0].Species)
}
