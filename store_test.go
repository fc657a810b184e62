package main

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T) *sqliteStore {
	t.Helper()
	s, err := openStore(filepath.Join(t.TempDir(), "vist.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStoreCRUD(t *testing.T) {
	s := testStore(t)

	r := Reminder{
		ID: 100, OwnerID: "u1", Title: "Họp team", Time: "09:00",
		Date: "01/01/2025", Category: "work", Color: "#007BFF",
	}
	require.NoError(t, s.Put("u1", r))

	got, err := s.Get("u1", 100)
	require.NoError(t, err)
	assert.Equal(t, r, got)

	_, err = s.Get("u1", 999)
	assert.ErrorIs(t, err, errNotFound)
	_, err = s.Get("u2", 100)
	assert.ErrorIs(t, err, errNotFound, "id is scoped per owner")

	require.NoError(t, s.Delete("u1", 100))
	_, err = s.Get("u1", 100)
	assert.ErrorIs(t, err, errNotFound)

	// Deleting a missing record is not an error.
	assert.NoError(t, s.Delete("u1", 100))
}

func TestStoreListOrderAndOwnership(t *testing.T) {
	s := testStore(t)
	for i, owner := range []string{"u1", "u2", "u1"} {
		require.NoError(t, s.Put(owner, Reminder{
			ID: int64(i + 1), OwnerID: owner, Title: fmt.Sprintf("việc %d", i+1),
			Time: "09:00", Date: "01/01/2025", Category: "personal",
		}))
	}

	list, err := s.List("u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, int64(1), list[0].ID)
	assert.Equal(t, int64(3), list[1].ID)

	list, err = s.List("u2")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, int64(2), list[0].ID)

	list, err = s.List("nobody")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestStoreListPending(t *testing.T) {
	s := testStore(t)
	require.NoError(t, s.Put("u1", Reminder{ID: 1, Title: "a", Time: "09:00", Date: "01/01/2025"}))
	require.NoError(t, s.Put("u1", Reminder{ID: 2, Title: "b", Time: "09:00", Date: "01/01/2025", IsNotified: true}))
	require.NoError(t, s.Put("u2", Reminder{ID: 3, Title: "c", Time: "09:00", Date: "01/01/2025"}))

	all, err := s.ListPending(true, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, int64(1), all[0].ID)
	assert.Equal(t, int64(3), all[1].ID)

	mine, err := s.ListPending(false, "u1")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, int64(1), mine[0].ID)
}

func TestStoreMarkNotifiedIdempotent(t *testing.T) {
	s := testStore(t)
	require.NoError(t, s.Put("u1", Reminder{ID: 1, Title: "a", Time: "09:00", Date: "01/01/2025"}))

	fired, err := s.MarkNotified("u1", 1)
	require.NoError(t, err)
	assert.True(t, fired)

	fired, err = s.MarkNotified("u1", 1)
	require.NoError(t, err)
	assert.False(t, fired, "second mark must report already fired")

	fired, err = s.MarkNotified("u1", 999)
	require.NoError(t, err)
	assert.False(t, fired)
}

func TestStoreUpdatePatch(t *testing.T) {
	s := testStore(t)
	require.NoError(t, s.Put("u1", Reminder{
		ID: 1, Title: "Họp", Time: "09:00", Date: "01/01/2025",
		Category: "work", Color: "#007BFF", IsNotified: true,
	}))

	newTime := "10:30"
	require.NoError(t, s.Update("u1", 1, ReminderPatch{Time: &newTime}))

	got, err := s.Get("u1", 1)
	require.NoError(t, err)
	assert.Equal(t, "10:30", got.Time)
	assert.Equal(t, "Họp", got.Title, "unpatched fields stay put")
	assert.False(t, got.IsNotified, "any edit re-arms the reminder")

	assert.ErrorIs(t, s.Update("u1", 999, ReminderPatch{Time: &newTime}), errNotFound)
	assert.ErrorIs(t, s.Update("u2", 1, ReminderPatch{Time: &newTime}), errNotFound)
}

func TestStoreChatHistory(t *testing.T) {
	s := testStore(t)
	for i := 0; i < 5; i++ {
		require.NoError(t, s.AppendChat("u1", "user", fmt.Sprintf("câu hỏi %d", i)))
		require.NoError(t, s.AppendChat("u1", "assistant", fmt.Sprintf("trả lời %d", i)))
	}
	require.NoError(t, s.AppendChat("u2", "user", "xin chào"))

	// Most recent turns, oldest first within the window.
	hist, err := s.ChatHistory("u1", 4)
	require.NoError(t, err)
	require.Len(t, hist, 4)
	assert.Equal(t, "câu hỏi 3", hist[0].Content)
	assert.Equal(t, "trả lời 3", hist[1].Content)
	assert.Equal(t, "câu hỏi 4", hist[2].Content)
	assert.Equal(t, "trả lời 4", hist[3].Content)
	assert.Equal(t, "user", hist[0].Role)
	assert.Equal(t, "assistant", hist[1].Role)

	hist, err = s.ChatHistory("u2", 10)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, "xin chào", hist[0].Content)

	hist, err = s.ChatHistory("nobody", 10)
	require.NoError(t, err)
	assert.Empty(t, hist)
}
