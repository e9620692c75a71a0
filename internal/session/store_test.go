package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewStore(client, nil), mr
}

func TestStore_SetGetRoundTrip(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "u1", "patient_id", "p-42", 900*time.Second))

	id, ok, err := store.GetString(ctx, "u1", "patient_id")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "p-42", id)
}

func TestStore_AbsentFieldIsNotAnError(t *testing.T) {
	store, _ := newTestStore(t)

	_, ok, err := store.GetString(context.Background(), "u1", "selected_slot")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestStore_FieldsExpireIndependently(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "u1", "selected_slot", "s-1", 500*time.Second))
	require.NoError(t, store.Set(ctx, "u1", "post_id", 109, 2000*time.Second))

	mr.FastForward(600 * time.Second)

	_, ok, err := store.GetString(ctx, "u1", "selected_slot")
	require.NoError(t, err)
	require.False(t, ok, "slot should have lapsed")

	var postID int
	ok, err = store.Get(ctx, "u1", "post_id", &postID)
	require.NoError(t, err)
	require.True(t, ok, "profession id should survive")
	require.Equal(t, 109, postID)
}

func TestStore_ClearDropsOnlyThatUser(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "u1", "patient_id", "p-1", time.Minute))
	require.NoError(t, store.Set(ctx, "u1", "post_id", 109, time.Minute))
	require.NoError(t, store.Set(ctx, "u2", "patient_id", "p-2", time.Minute))

	require.NoError(t, store.Clear(ctx, "u1"))

	_, ok, err := store.GetString(ctx, "u1", "patient_id")
	require.NoError(t, err)
	require.False(t, ok)

	other, ok, err := store.GetString(ctx, "u2", "patient_id")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "p-2", other)
}

func TestStore_ApplyPatchInOrder(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	var patch Patch
	patch = patch.Set("selected_date", "12.01.2026", time.Minute)
	patch = patch.Set("selected_time", "09:30", time.Minute)
	patch = patch.Remove("pending_task")

	require.NoError(t, store.Set(ctx, "u1", "pending_task", "h-1", time.Minute))
	require.NoError(t, store.Apply(ctx, "u1", patch))

	date, ok, err := store.GetString(ctx, "u1", "selected_date")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "12.01.2026", date)

	_, ok, err = store.GetString(ctx, "u1", "pending_task")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestStore_GetDecodesStructs(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	type clinician struct {
		FIO   string `json:"fio"`
		SNILS string `json:"snils"`
	}

	in := clinician{FIO: "Иванов Петр Сергеевич", SNILS: "112-233-445 95"}
	require.NoError(t, store.Set(ctx, "u1", "selected_specialist", in, time.Minute))

	var out clinician
	ok, err := store.Get(ctx, "u1", "selected_specialist", &out)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, in, out)
}
