package memory

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/talentwire/jobfetch/internal/scrape"
)

func TestStoreAndRecentRecords(t *testing.T) {
	t.Parallel()

	s := NewRecordStore()
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		err := s.StoreRecord(ctx, scrape.ScrapeRecord{
			ID:       fmt.Sprintf("id-%d", i),
			Target:   fmt.Sprintf("https://www.linkedin.com/jobs/view/%d", i),
			Platform: scrape.PlatformLinkedIn,
			Success:  true,
		})
		require.NoError(t, err)
	}

	recent, err := s.RecentRecords(ctx, 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	require.Equal(t, "id-4", recent[0].ID, "newest record first")
	require.Equal(t, "id-2", recent[2].ID)

	all, err := s.RecentRecords(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 5)
	require.Equal(t, 5, s.Len())
}
