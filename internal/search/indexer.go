package search

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"go.uber.org/zap"

	"github.com/khanglvm/smartfix/internal/models"
)

// Indexer keeps an in-memory BM25 index of problem records.
type Indexer struct {
	bleveIndex bleve.Index
	mu         sync.RWMutex
	logger     *zap.Logger
}

// NewIndexer creates an empty in-memory index.
func NewIndexer(logger *zap.Logger) (*Indexer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	index, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create bleve index: %w", err)
	}

	return &Indexer{
		bleveIndex: index,
		logger:     logger,
	}, nil
}

// buildIndexMapping creates the Bleve index mapping.
func buildIndexMapping() mapping.IndexMapping {
	problemMapping := bleve.NewDocumentMapping()

	problemMapping.AddFieldMappingsAt("problem_text", bleve.NewTextFieldMapping())
	problemMapping.AddFieldMappingsAt("problem_type", bleve.NewTextFieldMapping())

	symptomsMapping := bleve.NewTextFieldMapping()
	symptomsMapping.Store = false
	problemMapping.AddFieldMappingsAt("symptoms", symptomsMapping)

	// Category is an exact filter, not scored text.
	categoryMapping := bleve.NewKeywordFieldMapping()
	categoryMapping.IncludeInAll = false
	problemMapping.AddFieldMappingsAt("device_category", categoryMapping)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.AddDocumentMapping("_default", problemMapping)

	return indexMapping
}

// IndexRecords adds or replaces records in one batch.
func (i *Indexer) IndexRecords(records []models.ProblemRecord) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	batch := i.bleveIndex.NewBatch()
	for _, rec := range records {
		if err := batch.Index(docID(rec.ID), toDocument(rec)); err != nil {
			i.logger.Warn("failed to index record", zap.Int64("record_id", rec.ID), zap.Error(err))
		}
	}

	if err := i.bleveIndex.Batch(batch); err != nil {
		return fmt.Errorf("failed to batch index records: %w", err)
	}
	return nil
}

// IndexRecord adds or replaces a single record.
func (i *Indexer) IndexRecord(rec models.ProblemRecord) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if err := i.bleveIndex.Index(docID(rec.ID), toDocument(rec)); err != nil {
		return fmt.Errorf("failed to index record %d: %w", rec.ID, err)
	}
	return nil
}

// Count returns the number of indexed records.
func (i *Indexer) Count() (uint64, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	docCount, err := i.bleveIndex.DocCount()
	if err != nil {
		return 0, fmt.Errorf("failed to get doc count: %w", err)
	}
	return docCount, nil
}

// Close closes the index and releases resources.
func (i *Indexer) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.bleveIndex != nil {
		return i.bleveIndex.Close()
	}
	return nil
}

func docID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func toDocument(rec models.ProblemRecord) problemDocument {
	return problemDocument{
		ProblemText:    rec.ProblemText,
		Symptoms:       rec.Symptoms,
		ProblemType:    rec.ProblemType,
		DeviceCategory: strings.ToLower(rec.DeviceCategory),
	}
}
