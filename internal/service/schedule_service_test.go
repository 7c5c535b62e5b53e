package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Freeeeeet/slot_scheduler/internal/model"
	"github.com/Freeeeeet/slot_scheduler/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var fixedNow = time.Date(2025, 5, 20, 8, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*ScheduleService, *memory.SlotStore) {
	t.Helper()
	store := memory.NewSlotStore()
	svc := NewScheduleService(store, nil, func() time.Time { return fixedNow }, zap.NewNop())
	return svc, store
}

func mustCreate(t *testing.T, svc *ScheduleService, date, start, end string, status model.SlotStatus) *model.ScheduleSlot {
	t.Helper()
	slot, err := svc.CreateSlot(context.Background(), "op1", date, start, end, status)
	require.NoError(t, err)
	return slot
}

func TestScheduleService_CreateSlot_ConflictExample(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	first := mustCreate(t, svc, "2025-06-01", "09:00", "09:30", model.SlotStatusAvailable)
	assert.Equal(t, model.SlotStatusAvailable, first.Status)
	assert.Equal(t, fixedNow, first.CreatedAt)
	assert.Equal(t, fixedNow, first.UpdatedAt)
	assert.NotEmpty(t, first.ID)

	_, err := svc.CreateSlot(ctx, "op1", "2025-06-01", "09:15", "09:45", model.SlotStatusAvailable)
	var conflict *model.SlotConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, first.ID, conflict.ConflictingSlotID)

	adjacent, err := svc.CreateSlot(ctx, "op1", "2025-06-01", "09:30", "10:00", model.SlotStatusAvailable)
	require.NoError(t, err)
	assert.Equal(t, "09:30", adjacent.StartTime)

	// у другого оператора то же время свободно
	_, err = svc.CreateSlot(ctx, "op2", "2025-06-01", "09:15", "09:45", model.SlotStatusAvailable)
	require.NoError(t, err)
}

func TestScheduleService_CreateSlot_BlockedParticipatesInOverlap(t *testing.T) {
	svc, _ := newTestService(t)

	mustCreate(t, svc, "2025-06-01", "12:00", "13:00", model.SlotStatusBlocked)

	_, err := svc.CreateSlot(context.Background(), "op1", "2025-06-01", "12:30", "12:45", model.SlotStatusAvailable)
	assert.ErrorIs(t, err, model.ErrSlotConflict)
}

func TestScheduleService_CreateSlot_Validation(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)

	_, err := svc.CreateSlot(ctx, "op1", "2025-06-01", "10:00", "09:00", model.SlotStatusAvailable)
	assert.ErrorIs(t, err, model.ErrValidation)

	_, err = svc.CreateSlot(ctx, "op1", "2025-06-01", "09:00", "10:00", model.SlotStatusBooked)
	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "status", verr.Field)

	slots, err := store.FindByOperatorAndDate(ctx, "op1", "2025-06-01")
	require.NoError(t, err)
	assert.Empty(t, slots, "nothing is persisted on failure")
}

// staleViewRepo прячет соседей от детектора, как при гонке двух создателей
type staleViewRepo struct {
	*memory.SlotStore
}

func (r staleViewRepo) FindByOperatorAndDate(context.Context, string, string) ([]*model.ScheduleSlot, error) {
	return nil, nil
}

func TestScheduleService_CreateSlot_StorageIsTheSafetyNet(t *testing.T) {
	store := memory.NewSlotStore()
	svc := NewScheduleService(staleViewRepo{store}, nil, nil, zap.NewNop())

	_, err := svc.CreateSlot(context.Background(), "op1", "2025-06-01", "09:00", "10:00", model.SlotStatusAvailable)
	require.NoError(t, err)

	_, err = svc.CreateSlot(context.Background(), "op1", "2025-06-01", "09:30", "10:30", model.SlotStatusAvailable)
	assert.ErrorIs(t, err, model.ErrSlotConflict)
}

func TestScheduleService_BookCancelRebook(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	slot := mustCreate(t, svc, "2025-06-01", "09:00", "09:30", model.SlotStatusAvailable)

	booked, err := svc.BookSlot(ctx, slot.ID, "booking-42")
	require.NoError(t, err)
	assert.Equal(t, model.SlotStatusBooked, booked.Status)
	require.NotNil(t, booked.BookingRef)
	assert.Equal(t, "booking-42", *booked.BookingRef)
	assert.Greater(t, booked.Version, slot.Version)

	cancelled, err := svc.CancelBooking(ctx, slot.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SlotStatusAvailable, cancelled.Status)
	assert.Nil(t, cancelled.BookingRef)

	rebooked, err := svc.BookSlot(ctx, slot.ID, "")
	require.NoError(t, err)
	assert.Equal(t, model.SlotStatusBooked, rebooked.Status)
	require.NotNil(t, rebooked.BookingRef)
	assert.NotEmpty(t, *rebooked.BookingRef)
}

func TestScheduleService_ConcurrentBooking_ExactlyOneWins(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	slot := mustCreate(t, svc, "2025-06-01", "09:00", "09:30", model.SlotStatusAvailable)

	const attempts = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		wins    int
		stale   int
		unknown []error
	)
	start := make(chan struct{})

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, err := svc.BookSlot(ctx, slot.ID, fmt.Sprintf("booking-%d", i))

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, model.ErrStaleState):
				stale++
			default:
				unknown = append(unknown, err)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, attempts-1, stale)
	assert.Empty(t, unknown)
}

func TestScheduleService_BlockBookedIsForbidden(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)
	slot := mustCreate(t, svc, "2025-06-01", "09:00", "09:30", model.SlotStatusAvailable)

	_, err := svc.BookSlot(ctx, slot.ID, "b1")
	require.NoError(t, err)

	_, err = svc.BlockSlot(ctx, slot.ID)
	assert.ErrorIs(t, err, model.ErrForbiddenTransition)

	current, err := store.FindByID(ctx, slot.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SlotStatusBooked, current.Status)
}

func TestScheduleService_BlockUnblock(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	slot := mustCreate(t, svc, "2025-06-01", "09:00", "09:30", model.SlotStatusAvailable)

	blocked, err := svc.BlockSlot(ctx, slot.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SlotStatusBlocked, blocked.Status)

	// заблокированный слот не бронируется
	_, err = svc.BookSlot(ctx, slot.ID, "")
	var stale *model.StaleStateError
	require.ErrorAs(t, err, &stale)
	assert.Equal(t, model.SlotStatusBlocked, stale.Actual)

	unblocked, err := svc.UnblockSlot(ctx, slot.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SlotStatusAvailable, unblocked.Status)

	_, err = svc.UnblockSlot(ctx, slot.ID)
	assert.ErrorIs(t, err, model.ErrStaleState)
}

func TestScheduleService_CancelNotBooked(t *testing.T) {
	svc, _ := newTestService(t)
	slot := mustCreate(t, svc, "2025-06-01", "09:00", "09:30", model.SlotStatusAvailable)

	_, err := svc.CancelBooking(context.Background(), slot.ID)
	assert.ErrorIs(t, err, model.ErrStaleState)
}

func TestScheduleService_UnknownSlot(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.BookSlot(ctx, "not-a-uuid", "")
	assert.ErrorIs(t, err, model.ErrNotFound)

	_, err = svc.CancelBooking(ctx, "3f0c1c5e-6a8e-4c1e-9f3e-0a0b0c0d0e0f")
	assert.ErrorIs(t, err, model.ErrNotFound)

	_, err = svc.GetSlot(ctx, "3f0c1c5e-6a8e-4c1e-9f3e-0a0b0c0d0e0f")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

type lookupCountingRepo struct {
	*memory.SlotStore
	lookups int
}

func (r *lookupCountingRepo) FindByID(ctx context.Context, slotID string) (*model.ScheduleSlot, error) {
	r.lookups++
	return r.SlotStore.FindByID(ctx, slotID)
}

func TestScheduleService_NonCanonicalSlotIDNeverReachesStorage(t *testing.T) {
	ctx := context.Background()
	repo := &lookupCountingRepo{SlotStore: memory.NewSlotStore()}
	svc := NewScheduleService(repo, nil, func() time.Time { return fixedNow }, zap.NewNop())

	slot := mustCreate(t, svc, "2025-06-01", "09:00", "09:30", model.SlotStatusAvailable)

	for _, id := range []string{
		"urn:uuid:" + slot.ID,
		"{" + slot.ID + "}",
		strings.ReplaceAll(slot.ID, "-", ""),
	} {
		_, err := svc.GetSlot(ctx, id)
		assert.ErrorIs(t, err, model.ErrNotFound, id)

		_, err = svc.BookSlot(ctx, id, "")
		assert.ErrorIs(t, err, model.ErrNotFound, id)
	}
	assert.Zero(t, repo.lookups)

	got, err := svc.GetSlot(ctx, strings.ToUpper(slot.ID))
	require.Error(t, err, "memory store keys are lower-case")
	assert.Nil(t, got)
	assert.Equal(t, 1, repo.lookups, "upper-case canonical form is passed through")

	got, err = svc.GetSlot(ctx, slot.ID)
	require.NoError(t, err)
	assert.Equal(t, slot.ID, got.ID)
}

func TestScheduleService_Transition(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	slot := mustCreate(t, svc, "2025-06-01", "09:00", "09:30", model.SlotStatusAvailable)

	got, err := svc.Transition(ctx, slot.ID, EventBlock)
	require.NoError(t, err)
	assert.Equal(t, model.SlotStatusBlocked, got.Status)

	_, err = svc.Transition(ctx, slot.ID, "teleport")
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestScheduleService_RescheduleSlot(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	a := mustCreate(t, svc, "2025-06-01", "09:00", "10:00", model.SlotStatusAvailable)
	b := mustCreate(t, svc, "2025-06-01", "11:00", "12:00", model.SlotStatusAvailable)

	// пересечение с самим собой не считается конфликтом
	moved, err := svc.RescheduleSlot(ctx, a.ID, "09:30", "10:30")
	require.NoError(t, err)
	assert.Equal(t, "09:30", moved.StartTime)
	assert.Equal(t, "10:30", moved.EndTime)

	_, err = svc.RescheduleSlot(ctx, a.ID, "10:30", "11:30")
	var conflict *model.SlotConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, b.ID, conflict.ConflictingSlotID)

	_, err = svc.RescheduleSlot(ctx, a.ID, "10:30", "10:00")
	assert.ErrorIs(t, err, model.ErrValidation)

	_, err = svc.BookSlot(ctx, b.ID, "")
	require.NoError(t, err)
	_, err = svc.RescheduleSlot(ctx, b.ID, "13:00", "14:00")
	assert.ErrorIs(t, err, model.ErrForbiddenTransition)
}

func TestScheduleService_DeleteSlot(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	free := mustCreate(t, svc, "2025-06-01", "09:00", "10:00", model.SlotStatusAvailable)
	taken := mustCreate(t, svc, "2025-06-01", "10:00", "11:00", model.SlotStatusAvailable)

	_, err := svc.BookSlot(ctx, taken.ID, "")
	require.NoError(t, err)

	require.NoError(t, svc.DeleteSlot(ctx, free.ID))
	_, err = svc.GetSlot(ctx, free.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)

	assert.ErrorIs(t, svc.DeleteSlot(ctx, taken.ID), model.ErrForbiddenTransition)

	// освободившееся время снова можно занять
	mustCreate(t, svc, "2025-06-01", "09:00", "09:30", model.SlotStatusBlocked)
}

func TestScheduleService_RandomCreatesNeverOverlap(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)
	rng := rand.New(rand.NewSource(42))
	dates := []string{"2025-06-01", "2025-06-02"}

	for i := 0; i < 300; i++ {
		startMin := rng.Intn(24*60 - 1)
		endMin := startMin + 1 + rng.Intn(120)
		if endMin > 24*60-1 {
			endMin = 24*60 - 1
		}
		start := fmt.Sprintf("%02d:%02d", startMin/60, startMin%60)
		end := fmt.Sprintf("%02d:%02d", endMin/60, endMin%60)
		status := model.SlotStatusAvailable
		if rng.Intn(3) == 0 {
			status = model.SlotStatusBlocked
		}

		_, err := svc.CreateSlot(ctx, "op1", dates[rng.Intn(len(dates))], start, end, status)
		if err != nil {
			require.True(t, isValidationOrConflict(err), "unexpected error: %v", err)
		}
	}

	for _, date := range dates {
		slots, err := store.FindByOperatorAndDate(ctx, "op1", date)
		require.NoError(t, err)
		for i, a := range slots {
			require.Less(t, a.StartTime, a.EndTime)
			for _, b := range slots[i+1:] {
				require.False(t, model.Overlaps(a.StartTime, a.EndTime, b.StartTime, b.EndTime),
					"%s-%s overlaps %s-%s on %s", a.StartTime, a.EndTime, b.StartTime, b.EndTime, date)
			}
		}
	}
}

func isValidationOrConflict(err error) bool {
	return errors.Is(err, model.ErrValidation) || errors.Is(err, model.ErrSlotConflict)
}
