package sitemap

import (
	"math/rand/v2"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anzhiyu-c/anheyu-sitemap/pkg/domain/model"
)

func sortedURLs(entries []model.SitemapEntry) []string {
	urls := urlsOf(entries)
	slices.Sort(urls)
	return urls
}

func TestMerger_Merge(t *testing.T) {
	chunker := NewChunker(WithMaxEntries(7), WithChunkerLogger(discardLogger()))
	merger := NewMerger(chunker)

	old := makeEntries(20)
	oldChunks, err := chunker.Chunk(old)
	require.NoError(t, err)

	next := append([]model.SitemapEntry(nil), makeEntries(30)[5:]...)
	next[0].Priority = 0.9
	updatedURL := next[0].URL

	merged, err := merger.Merge(oldChunks, Diff(old, next))
	require.NoError(t, err)

	assert.Equal(t, sortedURLs(next), urlsOf(flatten(merged)), "合并结果必须与新集合完全一致并按 URL 排序")
	for _, chunk := range merged {
		assert.LessOrEqual(t, chunk.Len(), 7)
	}
	for _, e := range flatten(merged) {
		if e.URL == updatedURL {
			assert.Equal(t, 0.9, e.Priority, "更新的条目必须替换旧值")
		}
	}
}

func TestMerger_Idempotent(t *testing.T) {
	chunker := NewChunker(WithMaxEntries(4), WithChunkerLogger(discardLogger()))
	merger := NewMerger(chunker)

	entries := makeEntries(10)
	first, err := merger.Merge(nil, Diff(nil, entries))
	require.NoError(t, err)

	again, err := merger.Merge(first, Diff(flatten(first), entries))
	require.NoError(t, err)

	assert.Equal(t, urlsOf(flatten(first)), urlsOf(flatten(again)))
	assert.Equal(t, len(first), len(again))
}

func TestMerger_UpdatedEntryMissingFromOldChunks(t *testing.T) {
	merger := NewMerger(NewChunker(WithChunkerLogger(discardLogger())))
	orphan := makeEntry("https://example.com/orphan")

	merged, err := merger.Merge(nil, model.ChangeSet{Updated: []model.SitemapEntry{orphan}})
	require.NoError(t, err)
	assert.Equal(t, []string{orphan.URL}, urlsOf(flatten(merged)))
}

func TestSortEntries(t *testing.T) {
	entries := []model.SitemapEntry{
		makeEntry("https://example.com/c"),
		makeEntry("https://example.com/a"),
		makeEntry("https://example.com/b"),
	}
	SortEntries(entries)
	assert.Equal(t, []string{"https://example.com/a", "https://example.com/b", "https://example.com/c"}, urlsOf(entries))
}

func TestMerger_RandomInvariants(t *testing.T) {
	rng := rand.New(rand.NewPCG(20251018, 2))

	for trial := 0; trial < 40; trial++ {
		old := randomEntries(rng, 0, rng.IntN(300))
		rng.Shuffle(len(old), func(i, j int) { old[i], old[j] = old[j], old[i] })

		// 旧分块和本次合并使用不同的上限，覆盖分块边界漂移
		oldChunks, err := randomChunker(rng).Chunk(old)
		require.NoError(t, err)

		var next []model.SitemapEntry
		for _, e := range old {
			switch rng.IntN(5) {
			case 0:
				continue
			case 1:
				e.LastModified = e.LastModified.Add(time.Hour)
			}
			next = append(next, e)
		}
		next = append(next, randomEntries(rng, len(old), rng.IntN(100))...)
		rng.Shuffle(len(next), func(i, j int) { next[i], next[j] = next[j], next[i] })

		cs := Diff(old, next)
		assert.Equal(t, len(next), len(cs.Added)+len(cs.Updated)+len(cs.Unchanged), "第 %d 轮：新集合划分", trial)
		assert.Equal(t, len(old), len(cs.Deleted)+len(cs.Updated)+len(cs.Unchanged), "第 %d 轮：旧集合划分", trial)

		chunker := randomChunker(rng)
		merged, err := NewMerger(chunker).Merge(oldChunks, cs)
		require.NoError(t, err)

		got := flatten(merged)
		require.Equal(t, sortedURLs(next), urlsOf(got), "第 %d 轮：合并结果与新集合一致且有序", trial)

		want := make(map[string]time.Time, len(next))
		for _, e := range next {
			want[e.URL] = e.LastModified
		}
		for _, e := range got {
			assert.True(t, want[e.URL].Equal(e.LastModified), "第 %d 轮：%s 不是最新值", trial, e.URL)
		}
		for i, chunk := range merged {
			assert.LessOrEqual(t, chunk.Len(), chunker.MaxEntries(), "第 %d 轮分块 %d 条目超限", trial, i)
			assert.LessOrEqual(t, chunk.SizeBytes, chunker.MaxBytes(), "第 %d 轮分块 %d 字节超限", trial, i)
		}
	}
}
