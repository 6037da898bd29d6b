package chunking

import (
	"context"
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertRoundTrip(t *testing.T, c *Chunker, text string) {
	t.Helper()
	chunks := c.Chunk(text)
	assert.Equal(t, text, strings.Join(chunks, ""), "拼接后必须精确还原原文")
	for i, chunk := range chunks {
		assert.LessOrEqual(t, len(chunk), c.MaxChars, "chunk %d exceeds max", i)
		assert.NotEmpty(t, chunk)
	}
}

func TestChunkEmpty(t *testing.T) {
	c := NewChunker(100)
	chunks := c.Chunk("")
	assert.NotNil(t, chunks)
	assert.Empty(t, chunks)
}

func TestChunkShortTextSingleChunk(t *testing.T) {
	c := NewChunker(100)
	text := "A short note about the team."
	assert.Equal(t, []string{text}, c.Chunk(text))
}

func TestChunkDefaultsMaxChars(t *testing.T) {
	c := NewChunker(0)
	assert.Equal(t, DefaultMaxChunkChars, c.MaxChars)
}

func TestChunkSentencesRoundTrip(t *testing.T) {
	c := NewChunker(40)
	text := "First sentence here. Second one follows! Third asks a question? Fourth ends it all."
	assertRoundTrip(t, c, text)

	chunks := c.Chunk(text)
	assert.Greater(t, len(chunks), 1)
}

func TestChunkLongSentenceFallsBackToWords(t *testing.T) {
	c := NewChunker(30)
	// 一整句没有句末标点，超限后必须按词装填
	text := "one two three four five six seven eight nine ten eleven twelve"
	assertRoundTrip(t, c, text)
}

func TestChunkOversizedWordHardSplit(t *testing.T) {
	c := NewChunker(10)
	text := strings.Repeat("x", 35)
	assertRoundTrip(t, c, text)

	chunks := c.Chunk(text)
	require.Len(t, chunks, 4)
	assert.Equal(t, 5, len(chunks[3]))
}

func TestChunkNewlinesRoundTrip(t *testing.T) {
	c := NewChunker(25)
	text := "line one\nline two\nline three\nline four and a bit more"
	assertRoundTrip(t, c, text)
}

func TestChunkDocumentsAssignsChunkIndex(t *testing.T) {
	c := NewChunker(20)
	docs, err := c.ChunkDocuments(context.Background(), []*schema.Document{
		{
			Content:  "Sentence number one. Sentence number two. Sentence number three.",
			MetaData: map[string]any{"source": "note"},
		},
	})
	require.NoError(t, err)
	require.Greater(t, len(docs), 1)

	var joined strings.Builder
	for i, d := range docs {
		assert.Equal(t, i, d.MetaData["chunk_index"])
		assert.Equal(t, "note", d.MetaData["source"])
		joined.WriteString(d.Content)
	}
	assert.Equal(t, "Sentence number one. Sentence number two. Sentence number three.", joined.String())
}
