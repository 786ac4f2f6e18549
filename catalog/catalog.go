// Package catalog implements the virtual catalog spec'd in spec.md §4.G: a
// process-wide mapping from label/type to the compiled sub-query that
// materializes its records, with on-demand id/endpoint indexes.
//
// A Store does not execute its own statement directly — Catalog holds a
// Runner callback, supplied by the engine at construction, that drives the
// statement through the pipeline executor. This dependency-inversion keeps
// package catalog free of an import cycle back to package exec (which
// looks up stores from a Catalog when executing MATCH).
package catalog

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/flowquery-dev/flowquery/ast"
	"github.com/flowquery-dev/flowquery/fqerr"
)

// Runner executes a compiled sub-query statement and returns its result
// rows as plain maps, the shape a virtual node/relationship definition's
// records take per spec.md §3.
type Runner func(stmt *ast.Chain) ([]map[string]any, error)

// Catalog is the process-wide virtual node/relationship registry.
type Catalog struct {
	mu     sync.RWMutex
	nodes  map[string]*NodeStore
	rels   map[string]*RelationshipStore
	run    Runner
	Logger logrus.FieldLogger
}

// New creates an empty Catalog. SetRunner must be called before any Store
// is materialized.
func New(logger logrus.FieldLogger) *Catalog {
	if logger == nil {
		logger = logrus.New()
	}
	return &Catalog{
		nodes:  make(map[string]*NodeStore),
		rels:   make(map[string]*RelationshipStore),
		Logger: logger,
	}
}

// SetRunner wires the sub-query execution callback; called once by the
// engine after both the Catalog and the pipeline executor exist.
func (c *Catalog) SetRunner(r Runner) { c.run = r }

// RegisterNode adds a virtual node definition, failing with
// ErrDuplicateVirtual if label is already registered.
func (c *Catalog) RegisterNode(label string, stmt *ast.Chain) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.nodes[label]; exists {
		return fqerr.ErrDuplicateVirtual.New("node label :" + label)
	}
	c.nodes[label] = &NodeStore{label: label, stmt: stmt, idIndex: map[any][]int{}}
	return nil
}

// RegisterRel adds a virtual relationship definition, failing with
// ErrDuplicateVirtual if typ is already registered.
func (c *Catalog) RegisterRel(typ, sourceLabel, targetLabel string, stmt *ast.Chain) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.rels[typ]; exists {
		return fqerr.ErrDuplicateVirtual.New("relationship type :" + typ)
	}
	c.rels[typ] = &RelationshipStore{
		typ: typ, sourceLabel: sourceLabel, targetLabel: targetLabel, stmt: stmt,
		leftIndex: map[any][]int{}, rightIndex: map[any][]int{},
	}
	return nil
}

// DeleteNode removes label's definition; subsequent MATCH on it fails per
// spec.md §4.G.
func (c *Catalog) DeleteNode(label string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.nodes[label]; !exists {
		return fqerr.ErrUnknownLabel.New(label)
	}
	delete(c.nodes, label)
	return nil
}

// DeleteRel removes typ's definition.
func (c *Catalog) DeleteRel(typ string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.rels[typ]; !exists {
		return fqerr.ErrUnknownRelType.New(typ)
	}
	delete(c.rels, typ)
	return nil
}

// NodeStoreFor returns label's store, or (nil, ErrUnknownLabel) if
// label has no virtual definition. The Catalog always returns the error;
// whether a missing label is treated as an empty source (OPTIONAL MATCH)
// rather than a hard failure is decided by the pattern matcher, per
// spec.md §7.
func (c *Catalog) NodeStoreFor(label string) (*NodeStore, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.nodes[label]
	if !ok {
		return nil, fqerr.ErrUnknownLabel.New(label)
	}
	return s, nil
}

// RelStoreFor returns typ's store, or ErrUnknownRelType.
func (c *Catalog) RelStoreFor(typ string) (*RelationshipStore, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.rels[typ]
	if !ok {
		return nil, fqerr.ErrUnknownRelType.New(typ)
	}
	return s, nil
}

// Run drives stmt through the configured Runner (the pipeline executor),
// used by NodeStore/RelationshipStore to materialize their records.
func (c *Catalog) Run(stmt *ast.Chain) ([]map[string]any, error) {
	if c.run == nil {
		return nil, errors.New("catalog: no Runner configured")
	}
	return c.run(stmt)
}

// SchemaReport is catalog.Catalog.Schema()'s introspection payload, per
// spec.md §4.G.
type SchemaReport struct {
	Nodes []LabelSchema
	Rels  []TypeSchema
}

type LabelSchema struct {
	Label      string
	Properties []string
	Sample     map[string]any
}

type TypeSchema struct {
	Type        string
	SourceLabel string
	TargetLabel string
	Properties  []string
	Sample      map[string]any
}

var reservedNodeKeys = map[string]bool{"id": true}
var reservedRelKeys = map[string]bool{"left_id": true, "right_id": true, "_type": true}

// Schema enumerates every registered label/type with the property columns
// observed on its first materialized record and a sample row, per
// spec.md §4.G. It materializes every store (forcing any unmaterialized
// sub-query to run) so the report reflects real data, not just names.
func (c *Catalog) Schema() (SchemaReport, error) {
	c.mu.RLock()
	labels := make([]*NodeStore, 0, len(c.nodes))
	for _, s := range c.nodes {
		labels = append(labels, s)
	}
	types := make([]*RelationshipStore, 0, len(c.rels))
	for _, s := range c.rels {
		types = append(types, s)
	}
	c.mu.RUnlock()

	var report SchemaReport
	for _, s := range labels {
		rows, err := s.Data(c)
		if err != nil {
			return SchemaReport{}, errors.Wrapf(err, "schema: materializing label %s", s.label)
		}
		ls := LabelSchema{Label: s.label}
		if len(rows) > 0 {
			for k := range rows[0] {
				if !reservedNodeKeys[k] {
					ls.Properties = append(ls.Properties, k)
				}
			}
			ls.Sample = rows[0]
		}
		report.Nodes = append(report.Nodes, ls)
	}
	for _, s := range types {
		rows, err := s.Data(c)
		if err != nil {
			return SchemaReport{}, errors.Wrapf(err, "schema: materializing type %s", s.typ)
		}
		ts := TypeSchema{Type: s.typ, SourceLabel: s.sourceLabel, TargetLabel: s.targetLabel}
		if len(rows) > 0 {
			for k := range rows[0] {
				if !reservedRelKeys[k] {
					ts.Properties = append(ts.Properties, k)
				}
			}
			ts.Sample = rows[0]
		}
		report.Rels = append(report.Rels, ts)
	}
	return report, nil
}
