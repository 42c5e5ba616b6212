package multitenantengine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/processgpt/dmnrules/internal/logger"
	"github.com/processgpt/dmnrules/internal/metrics"
	"github.com/processgpt/dmnrules/rules"
)

// Config holds the manager's reload and matching settings
type Config struct {
	// ReloadTimeout bounds one store fetch, independent of the caller that triggered it
	ReloadTimeout time.Duration

	// MinScore is the relevance a table must exceed to be evaluated
	MinScore float64

	Cache CacheConfig
}

// DefaultConfig returns a 30s reload timeout, the default relevance threshold and no TTL
func DefaultConfig() Config {
	return Config{
		ReloadTimeout: 30 * time.Second,
		MinScore:      rules.DefaultMinScore,
		Cache:         DefaultCacheConfig(),
	}
}

// ReloadReport summarizes a reload
type ReloadReport struct {
	Tenant   string        `json:"tenant"`
	Owner    string        `json:"owner"`
	Version  uint64        `json:"version"`
	Models   int           `json:"models"`
	Tables   int           `json:"tables"`
	Warnings []string      `json:"warnings,omitempty"`
	Stale    bool          `json:"stale"`
	LoadedAt time.Time     `json:"loadedAt"`
	Duration time.Duration `json:"durationNs"`
}

// scopeState is the per owner/tenant slot holding the current snapshot
type scopeState struct {
	key     rules.Scope
	cache   *SnapshotCache
	version atomic.Uint64
}

// Manager maintains one rule index per owner/tenant scope and answers queries against it
type Manager struct {
	loader  *rules.Loader
	config  Config
	metrics *metrics.Metrics
	scopes  map[rules.Scope]*scopeState
	group   singleflight.Group
	mu      sync.RWMutex
}

// NewManager creates a manager reading decision models from store.
// m may be nil to disable metrics.
func NewManager(store rules.ModelStore, config Config, m *metrics.Metrics) *Manager {
	if config.ReloadTimeout <= 0 {
		config.ReloadTimeout = DefaultConfig().ReloadTimeout
	}
	return &Manager{
		loader:  rules.NewLoader(store),
		config:  config,
		metrics: m,
		scopes:  make(map[rules.Scope]*scopeState),
	}
}

func (m *Manager) lookup(owner, tenant string) (*scopeState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sc, exists := m.scopes[rules.Scope{Tenant: tenant, Owner: owner}]
	return sc, exists
}

func (m *Manager) register(owner, tenant string) *scopeState {
	key := rules.Scope{Tenant: tenant, Owner: owner}

	m.mu.Lock()
	defer m.mu.Unlock()

	if sc, exists := m.scopes[key]; exists {
		return sc
	}
	sc := &scopeState{key: key, cache: NewSnapshotCache(m.config.Cache)}
	m.scopes[key] = sc
	return sc
}

// Open registers a scope and loads it unless a snapshot already exists
func (m *Manager) Open(ctx context.Context, owner, tenant string) (*Snapshot, error) {
	if err := ValidateScope(owner, tenant); err != nil {
		return nil, err
	}

	sc := m.register(owner, tenant)
	if snap := sc.cache.Get(); snap != nil {
		return snap, nil
	}

	if _, err := m.Reload(ctx, owner, tenant); err != nil {
		var stale *StaleSnapshotError
		if !errors.As(err, &stale) {
			return nil, err
		}
	}
	return sc.cache.Get(), nil
}

// Reload rebuilds the scope's snapshot from the store and swaps it in atomically.
// Concurrent reloads of the same scope share one fetch. When the fetch fails and an
// older snapshot exists, the report is marked stale and the error is a *StaleSnapshotError.
func (m *Manager) Reload(ctx context.Context, owner, tenant string) (*ReloadReport, error) {
	if err := ValidateScope(owner, tenant); err != nil {
		return nil, err
	}

	sc := m.register(owner, tenant)
	ch := m.group.DoChan(sc.key.String(), func() (any, error) {
		return m.reload(ctx, sc)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		report, _ := res.Val.(*ReloadReport)
		return report, res.Err
	}
}

func (m *Manager) reload(ctx context.Context, sc *scopeState) (*ReloadReport, error) {
	start := time.Now()
	owner, tenant := sc.key.Owner, sc.key.Tenant

	// The fetch outlives a cancelled caller so other waiters still get a snapshot
	loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.config.ReloadTimeout)
	defer cancel()

	result, err := m.loader.Load(loadCtx, owner, tenant)
	if err != nil {
		logger.LoadFailure()

		prev := sc.cache.Get()
		if prev == nil {
			m.metrics.RecordReload(metrics.ReloadFailed, 0, time.Since(start))
			logger.Error("Rule index load failed",
				"tenant", tenant,
				"owner", owner,
				"error", err,
			)
			return nil, err
		}

		m.metrics.RecordReload(metrics.ReloadStale, 0, time.Since(start))
		logger.Warn("Rule index reload failed, serving previous snapshot",
			"tenant", tenant,
			"owner", owner,
			"version", prev.Version,
			"loaded_at", prev.LoadedAt,
			"error", err,
		)
		report := reportFor(prev, time.Since(start))
		report.Stale = true
		return report, &StaleSnapshotError{Tenant: tenant, Owner: owner, LoadedAt: prev.LoadedAt, Cause: err}
	}

	tables, warnings := admit(result)
	engine := rules.NewEngine(tables, m.config.MinScore)
	for tableID, issues := range engine.ResolverIssues() {
		logger.Debug("Input expressions resolved by name only", "table", tableID, "issues", issues)
	}

	snap := &Snapshot{
		Tenant:   tenant,
		Owner:    owner,
		Version:  sc.version.Add(1),
		LoadedAt: time.Now(),
		Engine:   engine,
		Models:   len(result.Models),
		Warnings: warnings,
	}
	sc.cache.Set(snap)

	logger.ParseErrors(len(result.Warnings))
	m.metrics.RecordReload(metrics.ReloadOK, len(result.Warnings), time.Since(start))
	m.metrics.SetTables(tenant, owner, len(tables))

	logger.Info("Rule index loaded",
		"tenant", tenant,
		"owner", owner,
		"version", snap.Version,
		"models", snap.Models,
		"tables", len(tables),
		"warnings", len(warnings),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	for _, w := range warnings {
		logger.Warn("Rule index warning", "tenant", tenant, "owner", owner, "warning", w)
	}

	return reportFor(snap, time.Since(start)), nil
}

// admit keeps the tables that pass validation and collects every skipped item as a warning
func admit(result *rules.LoadResult) ([]*rules.DecisionTable, []error) {
	warnings := append([]error(nil), result.Warnings...)

	var tables []*rules.DecisionTable
	for _, t := range result.Tables() {
		if err := ValidateTable(t); err != nil {
			warnings = append(warnings, fmt.Errorf("model %q: %w", t.ModelID, err))
			continue
		}
		tables = append(tables, t)
	}
	return tables, warnings
}

func reportFor(snap *Snapshot, d time.Duration) *ReloadReport {
	report := &ReloadReport{
		Tenant:   snap.Tenant,
		Owner:    snap.Owner,
		Version:  snap.Version,
		Models:   snap.Models,
		Tables:   len(snap.Tables()),
		LoadedAt: snap.LoadedAt,
		Duration: d,
	}
	for _, w := range snap.Warnings {
		report.Warnings = append(report.Warnings, w.Error())
	}
	return report
}

// Snapshot returns the scope's current snapshot
func (m *Manager) Snapshot(owner, tenant string) (*Snapshot, error) {
	sc, exists := m.lookup(owner, tenant)
	if !exists {
		return nil, fmt.Errorf("%s/%s: %w", tenant, owner, ErrScopeNotFound)
	}
	snap := sc.cache.Get()
	if snap == nil {
		return nil, fmt.Errorf("%s/%s has no loaded snapshot: %w", tenant, owner, ErrScopeNotFound)
	}
	return snap, nil
}

// Tables returns the decision tables of the scope's current snapshot
func (m *Manager) Tables(owner, tenant string) ([]*rules.DecisionTable, error) {
	snap, err := m.Snapshot(owner, tenant)
	if err != nil {
		return nil, err
	}
	return snap.Tables(), nil
}

// current returns a snapshot fit to answer a query, loading or refreshing the scope as needed.
// A failed refresh falls back to the stale snapshot.
func (m *Manager) current(ctx context.Context, owner, tenant string) (*Snapshot, error) {
	sc, exists := m.lookup(owner, tenant)
	if !exists {
		return m.Open(ctx, owner, tenant)
	}

	if !sc.cache.IsValid() {
		if _, err := m.Reload(ctx, owner, tenant); err != nil {
			var stale *StaleSnapshotError
			if !errors.As(err, &stale) && sc.cache.Get() == nil {
				return nil, err
			}
		}
	}

	snap := sc.cache.Get()
	if snap == nil {
		return nil, fmt.Errorf("%s/%s has no loaded snapshot: %w", tenant, owner, ErrScopeNotFound)
	}
	return snap, nil
}

// RunQuery answers a query against the scope's rule index.
// NoMatchFound is an outcome, not an error; errors only report an unreadable store.
func (m *Manager) RunQuery(ctx context.Context, owner, tenant string, q rules.Query) (*rules.QueryResult, error) {
	snap, err := m.current(ctx, owner, tenant)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	result := snap.Engine.Run(q)
	elapsed := time.Since(start)

	ambiguous := result.Evaluation != nil && result.Evaluation.Ambiguous
	m.metrics.RecordQuery(string(result.Outcome), ambiguous, elapsed)

	for _, c := range result.Candidates {
		logger.Debug("Candidate table",
			"tenant", tenant,
			"owner", owner,
			"table", c.Table.ID,
			"score", c.Score,
			"shared", c.Shared,
		)
	}

	if !result.Applied() {
		logger.NoMatch()
		logger.Info("Query matched no rule",
			"tenant", tenant,
			"owner", owner,
			"candidates", len(result.Candidates),
			"snapshot_version", snap.Version,
		)
		return result, nil
	}

	if ambiguous {
		logger.Ambiguous()
		logger.Warn("UNIQUE table matched more than one rule",
			"tenant", tenant,
			"owner", owner,
			"table", result.Evaluation.TableID,
			"rules", rules.RuleLabels(result.Evaluation.MatchedRules),
		)
	}

	logger.Info("Rule applied",
		"tenant", tenant,
		"owner", owner,
		"table", result.Evaluation.TableID,
		"hit_policy", result.Evaluation.HitPolicy,
		"rules", rules.RuleLabels(result.Evaluation.MatchedRules),
		"snapshot_version", snap.Version,
		"duration_us", elapsed.Microseconds(),
	)
	return result, nil
}

// Invalidate marks the scope's snapshot for reload.
// With RefreshOnInvalidate the reload starts immediately in the background.
func (m *Manager) Invalidate(owner, tenant string) error {
	sc, exists := m.lookup(owner, tenant)
	if !exists {
		return fmt.Errorf("%s/%s: %w", tenant, owner, ErrScopeNotFound)
	}

	sc.cache.Invalidate()
	if m.config.Cache.RefreshOnInvalidate {
		go func() {
			if _, err := m.Reload(context.Background(), owner, tenant); err != nil {
				logger.Warn("Background reload failed", "tenant", tenant, "owner", owner, "error", err)
			}
		}()
	}
	return nil
}

// RefreshAll reloads every registered scope and joins the failures.
// Stale-snapshot fallbacks are included so callers can report them.
func (m *Manager) RefreshAll(ctx context.Context) error {
	var errs []error
	for _, s := range m.ListScopes() {
		if _, err := m.Reload(ctx, s.Owner, s.Tenant); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s, err))
		}
	}
	return errors.Join(errs...)
}

// ListScopes returns all registered scopes ordered by tenant then owner
func (m *Manager) ListScopes() []rules.Scope {
	m.mu.RLock()
	defer m.mu.RUnlock()

	scopes := make([]rules.Scope, 0, len(m.scopes))
	for key := range m.scopes {
		scopes = append(scopes, key)
	}
	sort.Slice(scopes, func(i, j int) bool {
		if scopes[i].Tenant != scopes[j].Tenant {
			return scopes[i].Tenant < scopes[j].Tenant
		}
		return scopes[i].Owner < scopes[j].Owner
	})
	return scopes
}

// DropScope removes a scope's snapshot from memory.
// Note: This does not delete any stored models.
func (m *Manager) DropScope(owner, tenant string) error {
	key := rules.Scope{Tenant: tenant, Owner: owner}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.scopes[key]; !exists {
		return fmt.Errorf("%s: %w", key, ErrScopeNotFound)
	}

	delete(m.scopes, key)
	m.metrics.DeleteScope(tenant, owner)
	return nil
}
