// Package retrieval scores the reference corpus against user queries by
// keyword overlap. It is deliberately not a vector search: the corpus is
// small, static, and curated, and a linear scorer is deterministic and
// trivially testable.
package retrieval

import (
	"encoding/json"
	"sort"
	"strings"
	"sync"

	"gorm.io/gorm"

	"github.com/avendano/forecourt/internal/models"
)

// maxResults caps how many documents Retrieve returns.
const maxResults = 3

// Document is one corpus entry as seen by the retriever and the generator.
type Document struct {
	ID       uint
	Content  string
	Category string
	Keywords []string
}

// Corpus holds the in-memory retrieval corpus. Reads (conversation path) and
// appends (admin path) may happen concurrently.
type Corpus struct {
	mu   sync.RWMutex
	docs []Document
}

// NewCorpus creates a Corpus from the given documents, preserving order.
func NewCorpus(docs []Document) *Corpus {
	c := &Corpus{docs: make([]Document, len(docs))}
	copy(c.docs, docs)
	return c
}

// LoadCorpus reads all documents from the database in insertion order.
func LoadCorpus(db *gorm.DB) (*Corpus, error) {
	var rows []models.Document
	if err := db.Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	docs := make([]Document, 0, len(rows))
	for _, r := range rows {
		var keywords []string
		if r.Keywords != "" {
			// Malformed keyword JSON degrades to content-only matching.
			_ = json.Unmarshal([]byte(r.Keywords), &keywords)
		}
		docs = append(docs, Document{
			ID:       r.ID,
			Content:  r.Content,
			Category: r.Category,
			Keywords: keywords,
		})
	}
	return NewCorpus(docs), nil
}

// Retrieve returns up to three documents relevant to query, ordered by
// descending score with ties broken by corpus order. Documents with zero
// score are excluded; a query with no overlap returns an empty slice.
func (c *Corpus) Retrieve(query string) []Document {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return nil
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	type scored struct {
		doc   Document
		score int
		pos   int
	}
	var hits []scored
	for i, doc := range c.docs {
		if s := score(doc, terms); s > 0 {
			hits = append(hits, scored{doc: doc, score: s, pos: i})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].score > hits[j].score
	})

	n := len(hits)
	if n > maxResults {
		n = maxResults
	}
	out := make([]Document, 0, n)
	for _, h := range hits[:n] {
		out = append(out, h.doc)
	}
	return out
}

// score computes the relevance of doc for the lowercased query terms:
// one point per term contained in the content, two points per term/keyword
// pair where either contains the other.
func score(doc Document, terms []string) int {
	content := strings.ToLower(doc.Content)
	keywords := make([]string, len(doc.Keywords))
	for i, k := range doc.Keywords {
		keywords[i] = strings.ToLower(k)
	}

	s := 0
	for _, term := range terms {
		if strings.Contains(content, term) {
			s++
		}
		for _, k := range keywords {
			if strings.Contains(k, term) || strings.Contains(term, k) {
				s += 2
			}
		}
	}
	return s
}

// Add persists a new document and appends it to the in-memory corpus.
// Used by the admin corpus-growth endpoint, not the conversation path.
func (c *Corpus) Add(db *gorm.DB, content, category string, keywords []string) (Document, error) {
	kw, err := json.Marshal(keywords)
	if err != nil {
		return Document{}, err
	}
	row := models.Document{Content: content, Category: category, Keywords: string(kw)}
	if err := db.Create(&row).Error; err != nil {
		return Document{}, err
	}

	doc := Document{ID: row.ID, Content: content, Category: category, Keywords: keywords}
	c.mu.Lock()
	c.docs = append(c.docs, doc)
	c.mu.Unlock()
	return doc, nil
}

// Len returns the number of documents in the corpus.
func (c *Corpus) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.docs)
}
