package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"

	"github.com/cloudwego/eino/components/embedding"
)

// MockEmbedder 本地开发用的确定性向量生成器，同文本恒得同向量
type MockEmbedder struct {
	Dim int
}

func NewMockEmbedder(dim int) *MockEmbedder {
	if dim <= 0 {
		dim = 1536
	}
	return &MockEmbedder{Dim: dim}
}

func (m *MockEmbedder) EmbedStrings(ctx context.Context, texts []string, opts ...embedding.Option) ([][]float64, error) {
	result := make([][]float64, len(texts))
	for i, text := range texts {
		sum := sha256.Sum256([]byte(text))
		vec := make([]float64, m.Dim)
		for j := 0; j < m.Dim; j++ {
			word := binary.BigEndian.Uint32(sum[(j*4)%28 : (j*4)%28+4])
			vec[j] = float64(word%2000)/1000.0 - 1.0
		}
		result[i] = vec
	}
	return result, nil
}

var _ embedding.Embedder = (*MockEmbedder)(nil)
