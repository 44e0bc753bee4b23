package semantic

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/kpxlab/marketrag/engine/domain"
)

// Hit is a single vector search result. Score is the cosine similarity
// reported by Qdrant, in [0,1] for normalised embeddings.
type Hit struct {
	ID         string
	Score      float64
	Text       string
	DocID      string
	SourceFile string
	Meta       map[string]string
}

// Record is a single point to upsert.
type Record struct {
	ID        string
	Embedding []float32
	Payload   map[string]any
}

// RecordFromChunk converts an embedded chunk to an upsertable record. The
// point id is a deterministic UUID derived from the chunk id, so re-indexing
// a document overwrites its previous points instead of accumulating.
func RecordFromChunk(ec domain.EmbeddedChunk) Record {
	return Record{
		ID:        PointID(ec.Chunk.ID),
		Embedding: ec.Embedding,
		Payload: map[string]any{
			"chunk_id":    ec.Chunk.ID,
			"text":        ec.Text,
			"doc_id":      ec.DocID,
			"source_file": ec.SourceFile,
			"file_type":   string(ec.FileType),
			"category":    ec.Category,
			"seq":         ec.Seq,
			"model_id":    ec.ModelID,
		},
	}
}

// PointID maps a chunk id onto a stable UUID for Qdrant.
func PointID(chunkID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("marketrag:"+chunkID)).String()
}

// hitResult converts a Hit into the shared search result shape, deriving
// the distance from the similarity score.
func (h Hit) Result() domain.SearchResult {
	return domain.SearchResult{
		ID:         h.ID,
		Text:       h.Text,
		Meta:       h.Meta,
		Similarity: h.Score,
		Distance:   1 - h.Score,
		Relevance:  h.Score,
		DocID:      h.DocID,
		SourceFile: h.SourceFile,
	}
}

func (h Hit) String() string {
	return fmt.Sprintf("%s(%.3f)", h.ID, h.Score)
}
