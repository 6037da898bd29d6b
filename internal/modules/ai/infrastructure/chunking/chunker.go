package chunking

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/cloudwego/eino-ext/components/document/transformer/splitter/recursive"
	"github.com/cloudwego/eino/components/document"
	"github.com/cloudwego/eino/schema"
)

// DefaultMaxChunkChars 单个分块的默认字符上限
const DefaultMaxChunkChars = 8000

// Chunker 贪心分块器：先按句子装填，句子本身超限再退化到按词装填。
// 不变式：所有分块按序拼接必须精确还原原文。
type Chunker struct {
	MaxChars int

	useRecursive  bool
	initOnce      sync.Once
	initErr       error
	recursiveImpl document.Transformer
}

// NewChunker 构造函数
func NewChunker(maxChars int) *Chunker {
	if maxChars <= 0 {
		maxChars = DefaultMaxChunkChars
	}
	return &Chunker{MaxChars: maxChars}
}

// NewRecursiveChunker 文档摄取用的递归切分版本（不保证精确还原）
func NewRecursiveChunker(maxChars int) *Chunker {
	c := NewChunker(maxChars)
	c.useRecursive = true
	return c
}

// Chunk 按句子贪心装填，整句放不下且自身超限时退化到按词装填
func (c *Chunker) Chunk(text string) []string {
	if text == "" {
		return []string{}
	}
	if len(text) <= c.MaxChars {
		return []string{text}
	}

	var chunks []string
	var cur strings.Builder

	flush := func() {
		if cur.Len() > 0 {
			chunks = append(chunks, cur.String())
			cur.Reset()
		}
	}

	for _, sentence := range splitSentences(text) {
		if cur.Len()+len(sentence) <= c.MaxChars {
			cur.WriteString(sentence)
			continue
		}
		flush()
		if len(sentence) <= c.MaxChars {
			cur.WriteString(sentence)
			continue
		}
		// 句子本身超限，按词装填
		for _, word := range splitWords(sentence) {
			if cur.Len()+len(word) <= c.MaxChars {
				cur.WriteString(word)
				continue
			}
			flush()
			if len(word) <= c.MaxChars {
				cur.WriteString(word)
				continue
			}
			// 单个词仍超限，硬切
			for len(word) > c.MaxChars {
				chunks = append(chunks, word[:c.MaxChars])
				word = word[c.MaxChars:]
			}
			cur.WriteString(word)
		}
	}
	flush()
	return chunks
}

// splitSentences 在句末标点（含换行）之后切开，每段都保留原始字节
func splitSentences(text string) []string {
	var pieces []string
	start := 0
	inTerminator := false
	for i := 0; i < len(text); i++ {
		ch := text[i]
		isTerm := ch == '.' || ch == '!' || ch == '?' || ch == '\n'
		if inTerminator && !isTerm && ch != ' ' {
			pieces = append(pieces, text[start:i])
			start = i
		}
		inTerminator = isTerm || (inTerminator && ch == ' ')
	}
	if start < len(text) {
		pieces = append(pieces, text[start:])
	}
	return pieces
}

// splitWords 在空格之后切开，保留原始字节
func splitWords(text string) []string {
	var words []string
	start := 0
	for i := 0; i < len(text); i++ {
		if text[i] == ' ' {
			if i+1 < len(text) && text[i+1] != ' ' {
				words = append(words, text[start:i+1])
				start = i + 1
			}
		}
	}
	if start < len(text) {
		words = append(words, text[start:])
	}
	return words
}

// ChunkDocuments 文档级切分；递归模式用于长文档摄取
func (c *Chunker) ChunkDocuments(ctx context.Context, docs []*schema.Document) ([]*schema.Document, error) {
	if len(docs) == 0 {
		return []*schema.Document{}, nil
	}

	if !c.useRecursive {
		out := make([]*schema.Document, 0, len(docs))
		for _, d := range docs {
			if d == nil {
				continue
			}
			parts := c.Chunk(d.Content)
			for i, p := range parts {
				n := &schema.Document{Content: p, MetaData: map[string]any{}}
				for k, v := range d.MetaData {
					n.MetaData[k] = v
				}
				n.MetaData["chunk_index"] = i
				out = append(out, n)
			}
		}
		return out, nil
	}

	c.initOnce.Do(func() {
		impl, err := recursive.NewSplitter(ctx, &recursive.Config{
			ChunkSize:   c.MaxChars,
			OverlapSize: 0,
			Separators:  []string{"\n\n", "\n", ". ", "! ", "? ", " "},
			LenFunc: func(s string) int {
				return len(s)
			},
			KeepType: recursive.KeepTypeEnd,
		})
		if err != nil {
			c.initErr = err
			return
		}
		c.recursiveImpl = impl
	})
	if c.initErr != nil {
		return nil, c.initErr
	}
	if c.recursiveImpl == nil {
		return nil, fmt.Errorf("recursive splitter not initialized")
	}

	out := make([]*schema.Document, 0, len(docs))
	for _, d := range docs {
		if d == nil {
			continue
		}
		frags, err := c.recursiveImpl.Transform(ctx, []*schema.Document{{Content: d.Content}})
		if err != nil {
			return nil, err
		}
		for i, f := range frags {
			if f == nil {
				continue
			}
			n := &schema.Document{Content: f.Content, MetaData: map[string]any{}}
			for k, v := range d.MetaData {
				n.MetaData[k] = v
			}
			n.MetaData["chunk_index"] = i
			out = append(out, n)
		}
	}
	return out, nil
}
