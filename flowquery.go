// Package flowquery is the embeddable engine facade: it wires together the
// tokenizer, parser, function registry, virtual catalog, and pipeline
// executor behind a single entry point, mirroring the shape of the
// teacher's own top-level `sqle.Engine` in engine.go — a `Config` struct, a
// `New(cfg) *Runner` constructor, and a handful of query/introspection
// methods on the returned value.
package flowquery

import (
	"net/http"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	uuid "github.com/satori/go.uuid"

	"github.com/flowquery-dev/flowquery/ast"
	"github.com/flowquery-dev/flowquery/catalog"
	"github.com/flowquery-dev/flowquery/exec"
	"github.com/flowquery-dev/flowquery/function"
	"github.com/flowquery-dev/flowquery/function/builtin"
	"github.com/flowquery-dev/flowquery/parse"

	_ "github.com/flowquery-dev/flowquery/function/provider"
)

// Config carries engine-wide knobs, mirroring sqle.Config in engine.go.
type Config struct {
	// MaxRows caps the number of rows any single Run returns; 0 means
	// unbounded. Exceeding it truncates the result rather than failing,
	// since spec.md names no memory/row-count error kind.
	MaxRows int
	// DefaultLimit is applied to a terminal RETURN that carries no
	// explicit LIMIT clause; 0 means no implicit limit.
	DefaultLimit int
	// HTTPTimeout bounds LOAD JSON FROM requests; 0 uses Go's http.Client
	// zero-value (no timeout).
	HTTPTimeout time.Duration
	// Logger receives Run's structured Debug/Warn entries for parse
	// failures, run failures, and run completion. Defaults to a
	// logrus.New() instance if nil.
	Logger logrus.FieldLogger
	// Clock backs function/builtin's "now"-resolving temporal functions;
	// defaults to the real clock.New() if nil, letting tests inject a
	// fixed or mocked clock instead of calling time.Now() directly.
	Clock clock.Clock
}

// Runner is the embeddable engine: it owns a Catalog, a function Registry,
// and the Executor that drives both. The Executor (not Runner itself) is
// the Catalog's catalog.Runner, so virtual stores materialize themselves
// via nested Executor.Run calls.
type Runner struct {
	Catalog   *catalog.Catalog
	Functions *function.Registry
	Executor  *exec.Executor
	Config    *Config

	// ID is a per-Runner identifier stamped once at construction and
	// attached to every structured log entry this Runner emits, so log
	// lines from concurrently embedded Runners in the same process can be
	// told apart.
	ID string
}

// New creates a Runner wired against its own fresh Catalog and function
// Registry seeded from function.Default, mirroring sqle.New(a, cfg)'s
// "build fresh dependencies, apply cfg on top" shape.
func New(cfg *Config) *Runner {
	if cfg == nil {
		cfg = &Config{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.New()
	}
	if cfg.Clock != nil {
		builtin.Clock = cfg.Clock
	}

	reg := function.NewRegistry()
	for _, d := range function.Default.Functions() {
		reg.Register(d)
	}

	cat := catalog.New(logger)
	ex := exec.New(cat, reg, logger)
	if cfg.HTTPTimeout > 0 {
		ex.HTTPClient = &http.Client{Timeout: cfg.HTTPTimeout}
	}

	id, err := uuid.NewV4()
	idStr := "unknown"
	if err == nil {
		idStr = id.String()
	}

	return &Runner{Catalog: cat, Functions: reg, Executor: ex, Config: cfg, ID: idStr}
}

// Run parses query against r's Registry and executes it, applying
// Config.DefaultLimit/MaxRows around the parse/execute step.
func (r *Runner) Run(query string) ([]map[string]any, error) {
	log := r.Config.Logger
	if log == nil {
		log = logrus.New()
	}
	fields := logrus.Fields{"run_id": r.ID, "query": query}

	stmt, err := parse.ParseWithRegistry(query, r.Functions)
	if err != nil {
		log.WithFields(fields).WithError(err).Debug("flowquery: parse failed")
		return nil, errors.Wrap(err, "flowquery: parse")
	}
	if r.Config.DefaultLimit > 0 {
		applyDefaultLimit(stmt, r.Config.DefaultLimit)
	}

	start := time.Now()
	rows, err := r.Executor.Run(stmt)
	if err != nil {
		log.WithFields(fields).WithField("duration", time.Since(start)).WithError(err).Warn("flowquery: run failed")
		return nil, errors.Wrap(err, "flowquery: run")
	}
	log.WithFields(fields).WithField("duration", time.Since(start)).WithField("rows", len(rows)).Debug("flowquery: run complete")

	if r.Config.MaxRows > 0 && len(rows) > r.Config.MaxRows {
		rows = rows[:r.Config.MaxRows]
	}
	return rows, nil
}

// Schema reports the catalog's registered labels/types, per spec.md §4.G.
func (r *Runner) Schema() (catalog.SchemaReport, error) {
	return r.Catalog.Schema()
}

// ListFunctions reports every registered function descriptor, per spec.md
// §4.E / §6's function-registration contract.
func (r *Runner) ListFunctions() []function.Descriptor {
	return r.Functions.Functions()
}

// RegisterFunction adds or overrides a function in this Runner's own
// Registry without touching the process-wide function.Default, per §6's
// "function-registration contract" external interface.
func (r *Runner) RegisterFunction(d function.Descriptor) {
	r.Functions.Register(d)
}

// applyDefaultLimit stamps Config.DefaultLimit onto every terminal RETURN
// in stmt (each UNION branch independently) that carries no explicit LIMIT,
// leaving an already-specified LIMIT untouched.
func applyDefaultLimit(stmt *ast.Chain, n int) {
	if len(stmt.Branches) > 0 {
		for _, br := range stmt.Branches {
			applyDefaultLimit(br, n)
		}
		return
	}
	if len(stmt.Ops) == 0 {
		return
	}
	last := stmt.Ops[len(stmt.Ops)-1]
	ret, ok := last.(*ast.Return)
	if !ok || ret.Limit != nil {
		return
	}
	ret.Limit = &ast.Literal{Value: int64(n)}
}
