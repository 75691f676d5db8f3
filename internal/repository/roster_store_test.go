package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"afterschool-toast/internal/models"
	"afterschool-toast/internal/seed"
)

func testBundle(t *testing.T) seed.Bundle {
	t.Helper()
	b, err := seed.FromRecords(
		[]models.Location{{ID: "loc1", LocationName: "Cafeteria", IsActive: true, IsDefault: true}},
		[]models.Student{
			{ID: "s1", FirstName: "Ava", CurrentLocID: models.LocationNone, PreviousLocID: models.LocationNone},
			{ID: "s2", FirstName: "Ben", CurrentLocID: models.LocationNone, PreviousLocID: models.LocationNone},
		},
		[]models.Teacher{{ID: "t1", FirstName: "Maria", CurrentLocID: models.LocationNone}},
		[]models.Group{{ID: "g1", Name: "K", Color: "#fff"}},
		models.DefaultSettings(),
	)
	require.NoError(t, err)
	return b
}

func TestCollection_InitializeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	store := NewRosterStore(kv, testBundle(t))

	require.NoError(t, store.Students.Initialize(ctx))
	first, ok, err := kv.Get(ctx, StudentsKey)
	require.NoError(t, err)
	require.True(t, ok)

	// a later write must survive a second Initialize
	require.NoError(t, store.Students.Update(ctx, func(ss []models.Student) ([]models.Student, error) {
		ss[0].FirstName = "Changed"
		return ss, nil
	}))
	changed, _, _ := kv.Get(ctx, StudentsKey)
	require.NotEqual(t, first, changed)

	require.NoError(t, store.Students.Initialize(ctx))
	after, _, _ := kv.Get(ctx, StudentsKey)
	assert.Equal(t, changed, after)
}

func TestCollection_ReadNotInitialized(t *testing.T) {
	ctx := context.Background()
	store := NewRosterStore(NewMemoryKV(), testBundle(t))

	_, err := store.Locations.Read(ctx)
	assert.True(t, errors.Is(err, ErrNotInitialized))
	_, err = store.Students.Read(ctx)
	assert.True(t, errors.Is(err, ErrNotInitialized))
	_, err = store.Teachers.Read(ctx)
	assert.True(t, errors.Is(err, ErrNotInitialized))

	err = store.Students.Update(ctx, func(ss []models.Student) ([]models.Student, error) { return ss, nil })
	assert.True(t, errors.Is(err, ErrNotInitialized))
}

func TestCollection_GroupsAndSettingsSelfHeal(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	store := NewRosterStore(kv, testBundle(t))

	groups, err := store.Groups.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.Group{{ID: "g1", Name: "K", Color: "#fff"}}, groups)

	settings, err := store.Settings.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, settings.WarnThreshold)
	assert.Equal(t, 13, settings.MaxThreshold)

	_, ok, _ := kv.Get(ctx, SettingsKey)
	assert.True(t, ok, "settings key written by self-heal")
}

func TestCollection_FailedUpdateWritesNothing(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	store := NewRosterStore(kv, testBundle(t))
	require.NoError(t, store.InitializeAll(ctx))

	before, _, _ := kv.Get(ctx, StudentsKey)
	boom := errors.New("boom")
	err := store.Students.Update(ctx, func(ss []models.Student) ([]models.Student, error) {
		ss[0].CurrentLocID = "loc1"
		return nil, boom
	})
	assert.Equal(t, boom, err)

	after, _, _ := kv.Get(ctx, StudentsKey)
	assert.Equal(t, before, after)
}

func TestRosterStore_Reset(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	bundle := testBundle(t)
	store := NewRosterStore(kv, bundle)
	require.NoError(t, store.InitializeAll(ctx))

	require.NoError(t, store.Students.Update(ctx, func(ss []models.Student) ([]models.Student, error) {
		ss[0].CurrentLocID = "loc1"
		return ss, nil
	}))
	require.NoError(t, store.Reset(ctx))

	v, _, _ := kv.Get(ctx, StudentsKey)
	assert.Equal(t, string(bundle.Students), v)

	require.NoError(t, store.Clear(ctx))
	for _, key := range AllKeys {
		_, ok, _ := kv.Get(ctx, key)
		assert.False(t, ok, key)
	}
}

func setFirstName(id, name string) func([]models.Student) ([]models.Student, error) {
	return func(ss []models.Student) ([]models.Student, error) {
		for i := range ss {
			if ss[i].ID == id {
				ss[i].FirstName = name
			}
		}
		return ss, nil
	}
}

// Without locks an update issued while another is between its read and its
// write is overwritten by the stale snapshot.
func TestCollection_OverlappingUpdatesLoseWrites(t *testing.T) {
	ctx := context.Background()
	store := NewRosterStore(NewMemoryKV(), testBundle(t))
	require.NoError(t, store.InitializeAll(ctx))

	err := store.Students.Update(ctx, func(ss []models.Student) ([]models.Student, error) {
		// interleaved update lands between our read and our write
		require.NoError(t, store.Students.Update(ctx, setFirstName("s2", "Interleaved")))
		return setFirstName("s1", "Outer")(ss)
	})
	require.NoError(t, err)

	students, err := store.Students.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Outer", students[0].FirstName)
	assert.Equal(t, "Ben", students[1].FirstName, "interleaved write was lost")
}

func TestCollection_LocksPreserveOverlappingUpdates(t *testing.T) {
	ctx := context.Background()
	store := NewRosterStore(NewMemoryKV(), testBundle(t), WithCollectionLocks())
	require.NoError(t, store.InitializeAll(ctx))

	inside := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_ = store.Students.Update(ctx, func(ss []models.Student) ([]models.Student, error) {
			close(inside)
			time.Sleep(20 * time.Millisecond)
			return setFirstName("s1", "First")(ss)
		})
	}()
	go func() {
		defer wg.Done()
		<-inside
		_ = store.Students.Update(ctx, setFirstName("s2", "Second"))
	}()
	wg.Wait()

	students, err := store.Students.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, "First", students[0].FirstName)
	assert.Equal(t, "Second", students[1].FirstName)
}
