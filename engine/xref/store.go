package xref

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/kpxlab/marketrag/engine/domain"
)

// Graph persists provision cross-references in Neo4j.
//
// Schema: (:Document {id}) -[:HAS_CHUNK]-> (:Chunk {id, seq})
// -[:CITES]-> (:Provision {key, kind, number}). RelatedProvisions walks
// CITES edges two hops out from a provision's citing chunks.
type Graph struct {
	driver neo4j.DriverWithContext
	db     string
}

// NewGraph connects to Neo4j.
func NewGraph(uri, user, pass, database string) (*Graph, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, pass, ""))
	if err != nil {
		return nil, fmt.Errorf("xref: connect %s: %w", uri, err)
	}
	if database == "" {
		database = "neo4j"
	}
	return &Graph{driver: driver, db: database}, nil
}

// Close releases the driver.
func (g *Graph) Close(ctx context.Context) error { return g.driver.Close(ctx) }

// SaveDocument merges the document node and its chunk nodes.
func (g *Graph) SaveDocument(ctx context.Context, doc domain.Document, chunks []domain.Chunk) error {
	_, err := neo4j.ExecuteQuery(ctx, g.driver, `
		MERGE (d:Document {id: $id})
		SET d.source_file = $source_file, d.category = $category`,
		map[string]any{
			"id":          doc.ID,
			"source_file": doc.SourceFile,
			"category":    doc.Category,
		},
		neo4j.EagerResultTransformer, neo4j.ExecuteQueryWithDatabase(g.db))
	if err != nil {
		return fmt.Errorf("xref: save document %s: %w", doc.ID, err)
	}

	for _, ch := range chunks {
		_, err := neo4j.ExecuteQuery(ctx, g.driver, `
			MATCH (d:Document {id: $doc_id})
			MERGE (c:Chunk {id: $id})
			SET c.seq = $seq
			MERGE (d)-[:HAS_CHUNK]->(c)`,
			map[string]any{"doc_id": ch.DocID, "id": ch.ID, "seq": ch.Seq},
			neo4j.EagerResultTransformer, neo4j.ExecuteQueryWithDatabase(g.db))
		if err != nil {
			return fmt.Errorf("xref: save chunk %s: %w", ch.ID, err)
		}
	}
	return nil
}

// SaveReferences extracts citations from each chunk and merges CITES edges.
// Returns the number of edges written.
func (g *Graph) SaveReferences(ctx context.Context, chunks []domain.Chunk) (int, error) {
	edges := 0
	for _, ch := range chunks {
		for _, ref := range Extract(ch.Text) {
			_, err := neo4j.ExecuteQuery(ctx, g.driver, `
				MATCH (c:Chunk {id: $chunk_id})
				MERGE (p:Provision {key: $key})
				SET p.kind = $kind, p.number = $number, p.raw = $raw
				MERGE (c)-[:CITES]->(p)`,
				map[string]any{
					"chunk_id": ch.ID,
					"key":      ref.Key(),
					"kind":     string(ref.Kind),
					"number":   ref.Number,
					"raw":      ref.Raw,
				},
				neo4j.EagerResultTransformer, neo4j.ExecuteQueryWithDatabase(g.db))
			if err != nil {
				return edges, fmt.Errorf("xref: save reference %s in %s: %w", ref.Key(), ch.ID, err)
			}
			edges++
		}
	}
	return edges, nil
}

// RelatedProvisions returns the raw citations co-cited with any provision
// cited in the given text, most co-cited first.
func (g *Graph) RelatedProvisions(ctx context.Context, text string, limit int) ([]string, error) {
	refs := Extract(text)
	if len(refs) == 0 {
		return nil, nil
	}
	keys := make([]string, len(refs))
	for i, r := range refs {
		keys[i] = r.Key()
	}

	result, err := neo4j.ExecuteQuery(ctx, g.driver, `
		MATCH (p:Provision)<-[:CITES]-(c:Chunk)-[:CITES]->(q:Provision)
		WHERE p.key IN $keys AND NOT q.key IN $keys
		RETURN q.raw AS raw, count(c) AS weight
		ORDER BY weight DESC, raw
		LIMIT $limit`,
		map[string]any{"keys": keys, "limit": limit},
		neo4j.EagerResultTransformer, neo4j.ExecuteQueryWithDatabase(g.db))
	if err != nil {
		return nil, fmt.Errorf("xref: related provisions: %w", err)
	}

	var out []string
	for _, rec := range result.Records {
		if raw, ok := rec.Get("raw"); ok {
			if s, ok := raw.(string); ok && s != "" {
				out = append(out, s)
			}
		}
	}
	return out, nil
}

// DeleteDocument removes the document, its chunks, and their CITES edges.
// Provision nodes are kept; they may be cited by other documents.
func (g *Graph) DeleteDocument(ctx context.Context, docID string) error {
	_, err := neo4j.ExecuteQuery(ctx, g.driver, `
		MATCH (d:Document {id: $id})
		OPTIONAL MATCH (d)-[:HAS_CHUNK]->(c:Chunk)
		DETACH DELETE d, c`,
		map[string]any{"id": docID},
		neo4j.EagerResultTransformer, neo4j.ExecuteQueryWithDatabase(g.db))
	if err != nil {
		return fmt.Errorf("xref: delete document %s: %w", docID, err)
	}
	return nil
}
