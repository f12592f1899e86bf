package lexical

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/socraticlab/recall/pkg/types"
)

func makeTurn(userID string, projectID uuid.UUID, text string, at time.Time) *types.Turn {
	return &types.Turn{
		ID:        uuid.New(),
		UserID:    userID,
		ProjectID: projectID,
		Role:      types.RoleUser,
		Text:      text,
		CreatedAt: at,
	}
}

func TestSearchFindsDistinctiveTerm(t *testing.T) {
	ix := NewIndex()
	project := uuid.New()
	turn := makeTurn("jihye", project, "카페 창업을 준비하고 있어", time.Now())
	ix.Add(turn)
	ix.Add(makeTurn("jihye", project, "오늘 날씨가 좋다", time.Now()))

	hits := ix.Search(Scope{UserID: "jihye"}, "카페")
	require.Len(t, hits, 1)
	assert.Equal(t, turn.ID, hits[0].TurnID)
	assert.Greater(t, hits[0].Score, 0.0)
}

func TestSearchEmptyQuery(t *testing.T) {
	ix := NewIndex()
	ix.Add(makeTurn("jihye", uuid.New(), "카페 창업", time.Now()))

	assert.Empty(t, ix.Search(Scope{UserID: "jihye"}, ""))
	assert.Empty(t, ix.Search(Scope{UserID: "jihye"}, "!!!"))
	assert.Empty(t, ix.Search(Scope{UserID: "jihye"}, "없는단어"))
}

func TestSearchScopedToProject(t *testing.T) {
	ix := NewIndex()
	p1, p2 := uuid.New(), uuid.New()
	inP1 := makeTurn("jihye", p1, "카페 메뉴 개발", time.Now())
	inP2 := makeTurn("jihye", p2, "카페 인테리어", time.Now())
	ix.Add(inP1)
	ix.Add(inP2)

	hits := ix.Search(Scope{UserID: "jihye", ProjectID: &p1}, "카페")
	require.Len(t, hits, 1)
	assert.Equal(t, inP1.ID, hits[0].TurnID)

	hits = ix.Search(Scope{UserID: "jihye", ExcludeProjectID: &p1}, "카페")
	require.Len(t, hits, 1)
	assert.Equal(t, inP2.ID, hits[0].TurnID)
}

func TestSearchIsolatedBetweenUsers(t *testing.T) {
	ix := NewIndex()
	ix.Add(makeTurn("jihye", uuid.New(), "카페 창업", time.Now()))

	assert.Empty(t, ix.Search(Scope{UserID: "minsu"}, "카페"))
}

func TestRepeatedTermScoresHigher(t *testing.T) {
	ix := NewIndex()
	project := uuid.New()
	once := makeTurn("jihye", project, "카페 하나", time.Now())
	twice := makeTurn("jihye", project, "카페 그리고 카페", time.Now())
	ix.Add(once)
	ix.Add(twice)

	hits := ix.Search(Scope{UserID: "jihye"}, "카페")
	require.Len(t, hits, 2)
	assert.Equal(t, twice.ID, hits[0].TurnID)
	assert.Greater(t, hits[0].Score, hits[1].Score)
}

func TestTieBrokenByRecency(t *testing.T) {
	ix := NewIndex()
	project := uuid.New()
	base := time.Now()
	older := makeTurn("jihye", project, "카페 이야기", base.Add(-time.Hour))
	newer := makeTurn("jihye", project, "카페 이야기", base)
	ix.Add(older)
	ix.Add(newer)

	hits := ix.Search(Scope{UserID: "jihye"}, "카페 이야기")
	require.Len(t, hits, 2)
	assert.Equal(t, newer.ID, hits[0].TurnID)
	assert.Equal(t, older.ID, hits[1].TurnID)
}

func TestRemoveProjectEvictsAllPostings(t *testing.T) {
	ix := NewIndex()
	p1, p2 := uuid.New(), uuid.New()
	ix.Add(makeTurn("jihye", p1, "카페 창업 준비", time.Now()))
	kept := makeTurn("jihye", p2, "카페 디자인", time.Now())
	ix.Add(kept)

	ix.RemoveProject("jihye", p1)

	hits := ix.Search(Scope{UserID: "jihye"}, "카페")
	require.Len(t, hits, 1)
	assert.Equal(t, kept.ID, hits[0].TurnID)
	assert.Empty(t, ix.Search(Scope{UserID: "jihye"}, "창업"))
}

func TestRareTermsOutweighCommonOnes(t *testing.T) {
	ix := NewIndex()
	project := uuid.New()
	rare := makeTurn("jihye", project, "카페 창업", time.Now())
	ix.Add(rare)
	for i := 0; i < 4; i++ {
		ix.Add(makeTurn("jihye", project, "창업 계획 검토", time.Now()))
	}

	rareHits := ix.Search(Scope{UserID: "jihye"}, "카페")
	commonHits := ix.Search(Scope{UserID: "jihye"}, "창업")
	require.Len(t, rareHits, 1)
	require.Len(t, commonHits, 5)
	assert.Greater(t, rareHits[0].Score, commonHits[0].Score)
}

func TestIDFRebuiltAfterCorpusChange(t *testing.T) {
	ix := NewIndex()
	project := uuid.New()
	ix.Add(makeTurn("jihye", project, "카페 창업", time.Now()))
	first := ix.Search(Scope{UserID: "jihye"}, "카페")
	require.Len(t, first, 1)

	// Growing the corpus without the term raises its rarity; the next
	// search must see a rebuilt table.
	for i := 0; i < 10; i++ {
		ix.Add(makeTurn("jihye", project, "날씨 이야기", time.Now()))
	}
	second := ix.Search(Scope{UserID: "jihye"}, "카페")
	require.Len(t, second, 1)
	assert.Greater(t, second[0].Score, first[0].Score)
}

func TestConcurrentAddAndSearch(t *testing.T) {
	ix := NewIndex()
	project := uuid.New()

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				ix.Add(makeTurn("jihye", project, fmt.Sprintf("카페 주제 %d-%d", w, i), time.Now()))
			}
		}(w)
	}
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				for _, hit := range ix.Search(Scope{UserID: "jihye"}, "카페") {
					assert.NotEqual(t, uuid.Nil, hit.TurnID)
					assert.GreaterOrEqual(t, hit.Score, 0.0)
				}
			}
		}()
	}
	wg.Wait()

	hits := ix.Search(Scope{UserID: "jihye"}, "카페")
	assert.Len(t, hits, 200)
}

// A turn added while a search is rebuilding the IDF table must still be
// findable by its distinctive term on a later search. The rebuild clears
// the dirty flag when it snapshots, so an Add racing the rebuild re-dirties
// the shard instead of being clobbered into a stale table.
func TestAddDuringRebuildStillSearchable(t *testing.T) {
	ix := NewIndex()
	project := uuid.New()
	now := time.Now()

	for i := 0; i < 500; i++ {
		ix.Add(makeTurn("jihye", project, fmt.Sprintf("배경 잡담 주제%d", i), now))
	}

	turns := make([]*types.Turn, 20)
	for i := range turns {
		turns[i] = makeTurn("jihye", project, fmt.Sprintf("창업노트%d 정리", i), now)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			ix.Search(Scope{UserID: "jihye"}, "배경")
		}
	}()
	go func() {
		defer wg.Done()
		for _, turn := range turns {
			ix.Add(turn)
		}
	}()
	wg.Wait()

	for i, turn := range turns {
		hits := ix.Search(Scope{UserID: "jihye"}, fmt.Sprintf("창업노트%d", i))
		require.Len(t, hits, 1, "turn %d unfindable by its distinctive term", i)
		assert.Equal(t, turn.ID, hits[0].TurnID)
	}
}
