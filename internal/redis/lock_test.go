package redisclient

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careops/clinicbook/internal/calendar"
	"github.com/careops/clinicbook/internal/lock"
)

func testSetup(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func testKey() calendar.Key {
	return calendar.Key{ClinicID: uuid.New(), ResourceID: uuid.New(), Kind: calendar.KindDoctor}
}

func TestResourceLockerRunsSection(t *testing.T) {
	mr, client := testSetup(t)
	locker := NewResourceLocker(client, 5*time.Second, time.Second)
	key := testKey()

	var ran bool
	err := locker.WithResourceLocks(context.Background(), []calendar.Key{key}, func(ctx context.Context) error {
		ran = true
		// The lock key must exist while the section runs.
		assert.True(t, mr.Exists(lockKeyPrefix+key.String()))
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)

	// Released afterwards.
	assert.False(t, mr.Exists(lockKeyPrefix+key.String()))
}

func TestResourceLockerContention(t *testing.T) {
	_, client := testSetup(t)
	locker := NewResourceLocker(client, 5*time.Second, 100*time.Millisecond)
	key := testKey()

	held := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = locker.WithResourceLocks(context.Background(), []calendar.Key{key}, func(ctx context.Context) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	err := locker.WithResourceLocks(context.Background(), []calendar.Key{key}, func(ctx context.Context) error {
		t.Error("section entered while held elsewhere")
		return nil
	})
	assert.ErrorIs(t, err, lock.ErrLockTimeout)

	close(release)
}

func TestResourceLockerWaitsForRelease(t *testing.T) {
	_, client := testSetup(t)
	locker := NewResourceLocker(client, 5*time.Second, 2*time.Second)
	key := testKey()

	held := make(chan struct{})
	go func() {
		_ = locker.WithResourceLocks(context.Background(), []calendar.Key{key}, func(ctx context.Context) error {
			close(held)
			time.Sleep(75 * time.Millisecond)
			return nil
		})
	}()
	<-held

	// Second caller should eventually win within the wait budget.
	err := locker.WithResourceLocks(context.Background(), []calendar.Key{key}, func(ctx context.Context) error {
		return nil
	})
	assert.NoError(t, err)
}

func TestResourceLockerMutualExclusion(t *testing.T) {
	_, client := testSetup(t)
	locker := NewResourceLocker(client, 5*time.Second, 5*time.Second)
	key := testKey()

	var inSection, maxInSection int
	var mu sync.Mutex

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := locker.WithResourceLocks(context.Background(), []calendar.Key{key}, func(ctx context.Context) error {
				mu.Lock()
				inSection++
				if inSection > maxInSection {
					maxInSection = inSection
				}
				mu.Unlock()

				time.Sleep(time.Millisecond)

				mu.Lock()
				inSection--
				mu.Unlock()
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxInSection)
}

func TestResourceLockerMultipleKeysReleasedOnFailure(t *testing.T) {
	mr, client := testSetup(t)
	locker := NewResourceLocker(client, 5*time.Second, 50*time.Millisecond)

	doctor := testKey()
	room := calendar.Key{ClinicID: doctor.ClinicID, ResourceID: uuid.New(), Kind: calendar.KindRoom}

	// Pre-hold one of the keys so the multi-acquisition fails partway.
	names := lock.SortedKeyNames([]calendar.Key{doctor, room})
	require.NoError(t, client.Set(context.Background(), lockKeyPrefix+names[1], "other", time.Minute).Err())

	err := locker.WithResourceLocks(context.Background(), []calendar.Key{doctor, room}, func(ctx context.Context) error {
		return nil
	})
	assert.ErrorIs(t, err, lock.ErrLockTimeout)

	// The first key acquired must have been released again.
	assert.False(t, mr.Exists(lockKeyPrefix+names[0]))
}
