package faq

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	entries []Entry
}

func (m *memoryRepo) ListNewest(_ context.Context, limit int) ([]Entry, error) {
	if limit >= len(m.entries) {
		return m.entries, nil
	}
	return m.entries[:limit], nil
}

func TestFeedCapsAtFive(t *testing.T) {
	repo := &memoryRepo{}
	base := time.Now()
	for i := 0; i < 8; i++ {
		repo.entries = append(repo.entries, Entry{
			ID:        fmt.Sprintf("faq-%d", i),
			Question:  fmt.Sprintf("question %d", i),
			Answer:    "answer",
			CreatedAt: base.Add(-time.Duration(i) * time.Hour),
		})
	}

	entries, err := NewService(repo).Feed(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 5)
	require.Equal(t, "faq-0", entries[0].ID)
}

func TestFeedWithFewerEntries(t *testing.T) {
	repo := &memoryRepo{entries: []Entry{{ID: "faq-0"}}}

	entries, err := NewService(repo).Feed(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
}
