package catalog

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/flowquery-dev/flowquery/ast"
)

// NodeStore wraps a virtual node definition's statement. On first Data
// call it runs the statement and caches the resulting records, then lazily
// builds an id -> row-position index, per spec.md §4.G.
type NodeStore struct {
	label string
	stmt  *ast.Chain

	mu       sync.Mutex
	loaded   bool
	records  []map[string]any
	idIndex  map[any][]int
	indexed  bool
}

// Label returns the store's node label.
func (s *NodeStore) Label() string { return s.label }

// Data returns the store's materialized records, running the definition's
// statement on first use.
func (s *NodeStore) Data(cat *Catalog) ([]map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return s.records, nil
	}
	rows, err := cat.Run(s.stmt)
	if err != nil {
		return nil, errors.Wrapf(err, "materializing virtual node :%s", s.label)
	}
	s.records = rows
	s.loaded = true
	return s.records, nil
}

// ByID returns the row positions whose "id" field structurally equals id,
// building the index on first use.
func (s *NodeStore) ByID(cat *Catalog, id any) ([]int, error) {
	if _, err := s.Data(cat); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.indexed {
		s.idIndex = make(map[any][]int, len(s.records))
		for i, rec := range s.records {
			key := indexKey(rec["id"])
			s.idIndex[key] = append(s.idIndex[key], i)
		}
		s.indexed = true
	}
	return s.idIndex[indexKey(id)], nil
}

// indexKey normalizes a join-key value so int64/float64/int compare as the
// same map key when they denote the same number, matching value.Equal's
// cross-representation numeric equality.
func indexKey(v any) any {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case float64:
		return n
	default:
		return v
	}
}

// RelationshipStore wraps a virtual relationship definition's statement,
// indexing materialized records by both left_id and right_id.
type RelationshipStore struct {
	typ         string
	sourceLabel string
	targetLabel string
	stmt        *ast.Chain

	mu         sync.Mutex
	loaded     bool
	records    []map[string]any
	leftIndex  map[any][]int
	rightIndex map[any][]int
	indexed    bool
}

func (s *RelationshipStore) Type() string        { return s.typ }
func (s *RelationshipStore) SourceLabel() string  { return s.sourceLabel }
func (s *RelationshipStore) TargetLabel() string  { return s.targetLabel }

// Data returns the store's materialized records, running the definition's
// statement on first use. Each record must carry left_id and right_id;
// remaining columns become relationship properties.
func (s *RelationshipStore) Data(cat *Catalog) ([]map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return s.records, nil
	}
	rows, err := cat.Run(s.stmt)
	if err != nil {
		return nil, errors.Wrapf(err, "materializing virtual relationship :%s", s.typ)
	}
	s.records = rows
	s.loaded = true
	return s.records, nil
}

func (s *RelationshipStore) buildIndexes() {
	if s.indexed {
		return
	}
	s.leftIndex = make(map[any][]int, len(s.records))
	s.rightIndex = make(map[any][]int, len(s.records))
	for i, rec := range s.records {
		lk := indexKey(rec["left_id"])
		rk := indexKey(rec["right_id"])
		s.leftIndex[lk] = append(s.leftIndex[lk], i)
		s.rightIndex[rk] = append(s.rightIndex[rk], i)
	}
	s.indexed = true
}

// ByLeftID returns row positions whose left_id matches id (rightward "->"
// traversal, and the sole index used for undirected "-" per spec.md §9).
func (s *RelationshipStore) ByLeftID(cat *Catalog, id any) ([]int, error) {
	if _, err := s.Data(cat); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buildIndexes()
	return s.leftIndex[indexKey(id)], nil
}

// ByRightID returns row positions whose right_id matches id (leftward
// "<-" traversal).
func (s *RelationshipStore) ByRightID(cat *Catalog, id any) ([]int, error) {
	if _, err := s.Data(cat); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buildIndexes()
	return s.rightIndex[indexKey(id)], nil
}
