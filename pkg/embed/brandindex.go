package embed

import (
	"context"
	"fmt"
	"strings"
	"sync"

	chromem "github.com/philippgille/chromem-go"
)

// Brand is one entry in the golden list: a protected brand and its
// legitimate registrable domains.
type Brand struct {
	Name    string
	Domains []string
}

// BrandMatch is the closest golden-list brand to a queried hostname.
type BrandMatch struct {
	Brand      string
	Domains    []string
	Similarity float32
}

// BrandIndex holds embedded golden-list brand names in an in-memory vector
// store and answers "which protected brand does this hostname resemble".
type BrandIndex struct {
	db         *chromem.DB
	collection *chromem.Collection
	brands     map[string]Brand // key: lowercase brand name
	mu         sync.RWMutex
	ready      bool
}

// NewBrandIndex creates an empty index backed by the given embedder.
func NewBrandIndex(embedder Embedder) (*BrandIndex, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is nil")
	}

	db := chromem.NewDB()
	embeddingFunc := func(ctx context.Context, text string) ([]float32, error) {
		return embedder.Embed(ctx, text)
	}
	collection, err := db.CreateCollection("golden_brands", nil, embeddingFunc)
	if err != nil {
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}

	return &BrandIndex{
		db:         db,
		collection: collection,
		brands:     make(map[string]Brand),
	}, nil
}

// Load embeds every golden-list brand into the index. Call once at startup.
func (b *BrandIndex) Load(ctx context.Context, brands []Brand) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(brands) == 0 {
		return fmt.Errorf("no brands to load")
	}

	docs := make([]chromem.Document, len(brands))
	for i, br := range brands {
		docs[i] = chromem.Document{
			ID:      fmt.Sprintf("brand_%d", i),
			Content: strings.ToLower(br.Name),
			Metadata: map[string]string{
				"brand": br.Name,
			},
		}
		b.brands[strings.ToLower(br.Name)] = br
	}

	// Sequential add keeps us under the embedding API rate limit at startup.
	if err := b.collection.AddDocuments(ctx, docs, 1); err != nil {
		return fmt.Errorf("failed to add brands: %w", err)
	}

	b.ready = true
	return nil
}

// Closest returns the golden-list brand most similar to the query text,
// typically the hostname with separators replaced by spaces.
func (b *BrandIndex) Closest(ctx context.Context, query string) (*BrandMatch, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.ready {
		return nil, fmt.Errorf("brand index not loaded - call Load first")
	}

	results, err := b.collection.Query(ctx, strings.ToLower(query), 1, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("brand query failed: %w", err)
	}
	if len(results) == 0 {
		return nil, nil
	}

	best := results[0]
	brand := b.brands[strings.ToLower(best.Metadata["brand"])]
	return &BrandMatch{
		Brand:      brand.Name,
		Domains:    brand.Domains,
		Similarity: best.Similarity,
	}, nil
}

// Lookup returns the golden-list entry for an exact brand name, if present.
func (b *BrandIndex) Lookup(name string) (Brand, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	br, ok := b.brands[strings.ToLower(name)]
	return br, ok
}

// IsReady reports whether Load has completed.
func (b *BrandIndex) IsReady() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.ready
}

// BrandCount returns the number of indexed brands.
func (b *BrandIndex) BrandCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.brands)
}

// QueryText converts a hostname into the text form queried against the
// index: separators become spaces so "paypal-secure.xyz" reads "paypal
// secure xyz" to the embedding model.
func QueryText(host string) string {
	repl := strings.NewReplacer(".", " ", "-", " ", "_", " ")
	return strings.TrimSpace(repl.Replace(strings.ToLower(host)))
}
