package search

import (
	"context"
	"sort"
	"strings"
	"sync"
	"unicode"
)

// MemoryIndex — индекс в памяти процесса. Используется при SEARCH_BACKEND=memory
// и в тестах. Семантика поиска повторяет запрос к Elasticsearch: все слова
// запроса обязательны, совпадение в имени весит вдвое больше.
type MemoryIndex struct {
	mu   sync.RWMutex
	docs map[int64]memoryDoc
}

type memoryDoc struct {
	doc    Document
	name   map[string]int
	others map[string]int
}

// NewMemoryIndex создаёт пустой индекс.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{docs: make(map[int64]memoryDoc)}
}

func (m *MemoryIndex) IndexDocument(ctx context.Context, doc Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[doc.ID] = analyze(doc)
	return nil
}

func (m *MemoryIndex) UpdateDocument(ctx context.Context, doc Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.docs[doc.ID]
	if !ok {
		return ErrDocumentMissing
	}
	// поля, неизменяемые после создания, остаются от исходного документа
	doc.OwnerID = cur.doc.OwnerID
	doc.CreatedAt = cur.doc.CreatedAt
	m.docs[doc.ID] = analyze(doc)
	return nil
}

func (m *MemoryIndex) DeleteDocument(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs, id)
	return nil
}

// Get возвращает документ по id.
func (m *MemoryIndex) Get(id int64) (Document, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.docs[id]
	return d.doc, ok
}

// Len — число документов в индексе.
func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}

func (m *MemoryIndex) SearchByText(ctx context.Context, term string, from, size int) ([]int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	terms := tokenize(term)
	if len(terms) == 0 {
		return []int64{}, nil
	}

	type hit struct {
		id    int64
		score int
	}
	m.mu.RLock()
	hits := make([]hit, 0)
	for id, d := range m.docs {
		score := 0
		matched := true
		for _, t := range terms {
			n := 2*d.name[t] + d.others[t]
			if n == 0 {
				matched = false
				break
			}
			score += n
		}
		if matched {
			hits = append(hits, hit{id: id, score: score})
		}
	}
	m.mu.RUnlock()

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].id < hits[j].id
	})

	ids := make([]int64, 0, len(hits))
	for _, h := range hits {
		ids = append(ids, h.id)
	}
	return page(ids, from, size), nil
}

func (m *MemoryIndex) DocumentIDs(ctx context.Context, afterID int64, size int) ([]int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	ids := make([]int64, 0, len(m.docs))
	for id := range m.docs {
		if id > afterID {
			ids = append(ids, id)
		}
	}
	m.mu.RUnlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return page(ids, 0, size), nil
}

func page(ids []int64, from, size int) []int64 {
	if from < 0 {
		from = 0
	}
	if from >= len(ids) {
		return []int64{}
	}
	ids = ids[from:]
	if size > 0 && size < len(ids) {
		ids = ids[:size]
	}
	return ids
}

func analyze(doc Document) memoryDoc {
	return memoryDoc{
		doc:    doc,
		name:   termFreq(doc.Name),
		others: termFreq(doc.Code, doc.Description, doc.Location),
	}
}

func termFreq(fields ...string) map[string]int {
	tf := make(map[string]int)
	for _, f := range fields {
		for _, t := range tokenize(f) {
			tf[t]++
		}
	}
	return tf
}

// tokenize приближает standard analyzer: нижний регистр, разбиение по всему,
// что не буква и не цифра.
func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

var (
	_ Index = (*MemoryIndex)(nil)
	_ Index = (*ElasticIndex)(nil)
)
