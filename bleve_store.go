package main

import (
	"os"
	"strings"

	"github.com/blevesearch/bleve/v2"
	bleveQuery "github.com/blevesearch/bleve/v2/search/query"
	"github.com/pkg/errors"
)

// LabelDoc is the indexed form of one label entry.
type LabelDoc struct {
	Key     string `json:"key"`
	Ordinal int    `json:"ordinal"`
	Text    string `json:"text"`
}

// LabelHit is one search result.
type LabelHit struct {
	LabelDoc
	Score float64 `json:"score"`
}

// LabelIndex is a bleve full-text index over the labels of a converted
// store, so transcriptions can be looked up without scanning the store.
type LabelIndex struct {
	index bleve.Index
}

func (b *LabelIndex) Initialize(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		index, err := bleve.New(path, bleve.NewIndexMapping())
		if err != nil {
			return errors.Wrapf(err, "create label index %s", path)
		}
		b.index = index
		return nil
	}
	index, err := bleve.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open label index %s", path)
	}
	b.index = index
	return nil
}

func (b *LabelIndex) Close() error {
	if b.index == nil {
		return nil
	}
	err := b.index.Close()
	b.index = nil
	return err
}

// IndexLabelBatch adds or replaces a batch of documents. The label key is
// the document id, so rebuilding from the same store is idempotent.
func (b *LabelIndex) IndexLabelBatch(batch []*LabelDoc) error {
	batchIndex := b.index.NewBatch()
	for _, d := range batch {
		if err := batchIndex.Index(d.Key, d); err != nil {
			return err
		}
	}
	return b.index.Batch(batchIndex)
}

func (b *LabelIndex) Count() (int, error) {
	c, err := b.index.DocCount()
	return int(c), err
}

// Search runs a bleve query string query ("text:hà nội", "+text:phố
// -text:cũ", "text:phoo~1"). An empty query matches every label. At most
// limit hits are returned, best first.
func (b *LabelIndex) Search(input string, limit int) ([]LabelHit, error) {
	var q bleveQuery.Query
	if strings.TrimSpace(input) == "" {
		q = bleve.NewMatchAllQuery()
	} else {
		q = bleve.NewQueryStringQuery(input)
	}
	req := bleve.NewSearchRequest(q)
	req.Size = limit
	req.Fields = []string{"*"}
	req.SortBy([]string{"-_score", "ordinal"})

	res, err := b.index.Search(req)
	if err != nil {
		return nil, err
	}

	hits := make([]LabelHit, 0, len(res.Hits))
	for _, hit := range res.Hits {
		h := LabelHit{Score: hit.Score}
		h.Key = hit.ID
		if v, ok := hit.Fields["text"].(string); ok {
			h.Text = v
		}
		if v, ok := hit.Fields["ordinal"].(float64); ok {
			h.Ordinal = int(v)
		}
		hits = append(hits, h)
	}
	return hits, nil
}

// BuildLabelIndex indexes every label entry of store, batchSize documents
// per bleve batch, and returns the number indexed.
func BuildLabelIndex(store Datastore, idx *LabelIndex, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = 500
	}
	var indexed int
	batch := make([]*LabelDoc, 0, batchSize)
	write := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := idx.IndexLabelBatch(batch); err != nil {
			return errors.Wrap(err, "index label batch")
		}
		indexed += len(batch)
		batch = batch[:0]
		return nil
	}

	err := store.Scan(func(key string, value []byte) error {
		if !strings.HasPrefix(key, labelKeyPrefix) {
			return nil
		}
		i, ok := parseOrdinal(key)
		if !ok {
			return nil
		}
		batch = append(batch, &LabelDoc{Key: key, Ordinal: i, Text: string(value)})
		if len(batch) >= batchSize {
			return write()
		}
		return nil
	})
	if err != nil {
		return indexed, err
	}
	if err := write(); err != nil {
		return indexed, err
	}
	return indexed, nil
}
