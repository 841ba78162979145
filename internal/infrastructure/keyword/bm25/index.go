package bm25

import (
	"errors"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/kirillkom/catalog-assistant/internal/core/domain"
	"github.com/kirillkom/catalog-assistant/internal/core/ports"
)

const (
	defaultK1 = 1.5
	defaultB  = 0.75
)

var ErrEmptyCorpus = errors.New("bm25: corpus has no indexable terms")

// Builder creates in-memory Okapi BM25 indexes over a chunk set.
type Builder struct {
	k1 float64
	b  float64
}

func NewBuilder() *Builder {
	return &Builder{k1: defaultK1, b: defaultB}
}

func (b *Builder) Build(chunks []domain.Chunk) (ports.KeywordIndex, error) {
	return newIndex(chunks, b.k1, b.b)
}

type posting struct {
	doc int
	tf  float64
}

// Index is immutable after construction and safe for concurrent Search.
type Index struct {
	chunks   []domain.Chunk
	docLen   []float64
	avgLen   float64
	idf      map[string]float64
	postings map[string][]posting
	k1       float64
	b        float64
}

func newIndex(chunks []domain.Chunk, k1, b float64) (*Index, error) {
	idx := &Index{
		chunks:   append([]domain.Chunk(nil), chunks...),
		docLen:   make([]float64, len(chunks)),
		idf:      make(map[string]float64),
		postings: make(map[string][]posting),
		k1:       k1,
		b:        b,
	}

	var total float64
	for i, chunk := range chunks {
		tokens := Tokenize(chunk.Content)
		idx.docLen[i] = float64(len(tokens))
		total += float64(len(tokens))

		tf := make(map[string]float64, len(tokens))
		for _, token := range tokens {
			tf[token]++
		}
		for term, freq := range tf {
			idx.postings[term] = append(idx.postings[term], posting{doc: i, tf: freq})
		}
	}
	if total == 0 {
		return nil, ErrEmptyCorpus
	}
	idx.avgLen = total / float64(len(chunks))

	n := float64(len(chunks))
	for term, list := range idx.postings {
		df := float64(len(list))
		idx.idf[term] = math.Log(1 + (n-df+0.5)/(df+0.5))
	}
	return idx, nil
}

// Search returns up to limit chunks with a positive score, best first.
// Ties keep corpus order.
func (idx *Index) Search(query string, limit int) []domain.Chunk {
	if limit <= 0 {
		return nil
	}
	scores := make(map[int]float64)
	seen := make(map[string]struct{})
	for _, term := range Tokenize(query) {
		if _, dup := seen[term]; dup {
			continue
		}
		seen[term] = struct{}{}
		idf := idx.idf[term]
		for _, p := range idx.postings[term] {
			norm := idx.k1 * (1 - idx.b + idx.b*idx.docLen[p.doc]/idx.avgLen)
			scores[p.doc] += idf * p.tf * (idx.k1 + 1) / (p.tf + norm)
		}
	}

	docs := make([]int, 0, len(scores))
	for doc, score := range scores {
		if score > 0 {
			docs = append(docs, doc)
		}
	}
	sort.Slice(docs, func(i, j int) bool {
		si, sj := scores[docs[i]], scores[docs[j]]
		if si != sj {
			return si > sj
		}
		return docs[i] < docs[j]
	})
	if len(docs) > limit {
		docs = docs[:limit]
	}

	out := make([]domain.Chunk, len(docs))
	for i, doc := range docs {
		out[i] = idx.chunks[doc]
	}
	return out
}

// Tokenize lowercases and splits on anything that is not a letter or digit.
func Tokenize(s string) []string {
	if s == "" {
		return nil
	}
	out := make([]string, 0, 24)
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		if b.Len() > 0 {
			out = append(out, b.String())
			b.Reset()
		}
	}
	if b.Len() > 0 {
		out = append(out, b.String())
	}
	return out
}
