// internal/catalog/catalog.go
//
// The rule catalog synchronizer reconstructs "all rules belonging to a
// scope" from the server's generic paginated listing, and keeps that
// reconstructed view consistent across create/edit/delete/restore/refine
// mutations. The listing endpoint has no "source guideline in set S"
// filter, so multi-guideline scopes require a sequential scan: request
// pages at the largest size the server honors, keep the members, and stop
// at the first short page. A hard page ceiling bounds the scan against a
// server that never returns a short page; hitting it yields a truncated
// but usable view rather than an error.

package catalog

import (
	"context"
	"fmt"
	"time"

	cache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"brandguard/internal/api"
)

const (
	// defaultPageSize is the largest page the server honors.
	defaultPageSize = 100

	// defaultMaxPages bounds the scan. This is a safety net, not a
	// correctness mechanism: a scope whose rules extend past the ceiling
	// comes back flagged as truncated.
	defaultMaxPages = 50

	// viewCacheTTL is how long a fetched view is served to callers asking
	// for the cached copy. Views are rebuilt on every explicit refresh
	// regardless.
	viewCacheTTL = 5 * time.Minute
)

// Gateway is the slice of the remote API the synchronizer depends on.
// *api.Client satisfies it.
type Gateway interface {
	ListRules(ctx context.Context, params api.ListRulesParams) ([]api.Rule, error)
	CreateRule(ctx context.Context, text string, category api.Category, severity api.Severity, pointsDeduction float64) (api.Rule, error)
	UpdateRule(ctx context.Context, id string, patch api.RulePatch) (api.Rule, error)
	DeactivateRule(ctx context.Context, id string) error
	ReactivateRule(ctx context.Context, id string) (api.Rule, error)
	RefineRule(ctx context.Context, id, instruction string) (api.Rule, error)
}

// View is a reconstructed, ordered rule list for one scope. Each screen
// owns its own View; a mutation made through one screen is not pushed into
// another screen's view, the other screen refreshes to observe it.
type View struct {
	Scope Scope
	Rules []api.Rule

	// Truncated marks a scan that hit the page ceiling: the view is the
	// best-effort prefix, not the complete scope.
	Truncated bool

	// PagesScanned counts the listing requests the scan made.
	PagesScanned int

	FetchedAt time.Time
}

// Get returns the held copy of a rule by id.
func (v *View) Get(id string) (api.Rule, bool) {
	for _, rule := range v.Rules {
		if rule.ID == id {
			return rule, true
		}
	}
	return api.Rule{}, false
}

// replace splices a post-mutation record into the view by id, preserving
// position. It reports whether the id was present.
func (v *View) replace(rule api.Rule) bool {
	for i := range v.Rules {
		if v.Rules[i].ID == rule.ID {
			v.Rules[i] = rule
			return true
		}
	}
	return false
}

// Synchronizer reconstructs and maintains catalog views.
type Synchronizer struct {
	gateway  Gateway
	logger   *zap.Logger
	clock    func() time.Time
	pageSize int
	maxPages int
	views    *cache.Cache
}

// Option customizes the synchronizer.
type Option func(*Synchronizer)

// WithPageSize overrides the listing page size.
func WithPageSize(size int) Option {
	return func(s *Synchronizer) {
		if size > 0 {
			s.pageSize = size
		}
	}
}

// WithMaxPages overrides the scan ceiling.
func WithMaxPages(pages int) Option {
	return func(s *Synchronizer) {
		if pages > 0 {
			s.maxPages = pages
		}
	}
}

// WithLogger attaches a logger for scan telemetry.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Synchronizer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock injects a deterministic clock (primarily for tests).
func WithClock(clock func() time.Time) Option {
	return func(s *Synchronizer) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// New wires a synchronizer to the remote gateway.
func New(gateway Gateway, opts ...Option) (*Synchronizer, error) {
	if gateway == nil {
		return nil, fmt.Errorf("catalog: gateway is required")
	}
	s := &Synchronizer{
		gateway:  gateway,
		logger:   zap.NewNop(),
		clock:    time.Now,
		pageSize: defaultPageSize,
		maxPages: defaultMaxPages,
		views:    cache.New(viewCacheTTL, 2*viewCacheTTL),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// FetchScoped rebuilds the complete rule view for a scope. After a
// successful pass the view contains exactly the rules whose source
// guideline belongs to the scope, de-duplicated, in server page order.
func (s *Synchronizer) FetchScoped(ctx context.Context, scope Scope) (*View, error) {
	view := &View{Scope: scope}
	params := api.ListRulesParams{PageSize: s.pageSize}
	if id, ok := scope.single(); ok {
		// Server-side filter for the single-guideline case; the scan
		// below stays as the fallback for multi-guideline scopes.
		params.SourceGuidelineID = id
	}

	seen := make(map[string]struct{})
	for page := 1; ; page++ {
		if page > s.maxPages {
			view.Truncated = true
			s.logger.Warn("catalog scan hit page ceiling",
				zap.String("scope", scope.Key()),
				zap.Int("pages", s.maxPages))
			break
		}
		params.Page = page
		batch, err := s.gateway.ListRules(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("catalog: fetch page %d: %w", page, err)
		}
		view.PagesScanned++
		for _, rule := range batch {
			if !scope.Contains(rule.SourceGuidelineID) {
				continue
			}
			if _, dup := seen[rule.ID]; dup {
				continue
			}
			seen[rule.ID] = struct{}{}
			view.Rules = append(view.Rules, rule)
		}
		// A full page is the only signal that more pages may exist; the
		// server reports no total count here.
		if len(batch) < s.pageSize {
			break
		}
	}

	view.FetchedAt = s.clock()
	s.cacheView(view)
	return view, nil
}

// Cached returns the most recently fetched view for a scope, if it is
// still fresh. Screens that tolerate staleness can render this while a
// refresh runs.
func (s *Synchronizer) Cached(scope Scope) (*View, bool) {
	entry, ok := s.views.Get(scope.Key())
	if !ok {
		return nil, false
	}
	cached, ok := entry.(*View)
	if !ok {
		return nil, false
	}
	clone := *cached
	clone.Rules = append([]api.Rule(nil), cached.Rules...)
	return &clone, true
}

func (s *Synchronizer) cacheView(view *View) {
	clone := *view
	clone.Rules = append([]api.Rule(nil), view.Rules...)
	s.views.Set(view.Scope.Key(), &clone, cache.DefaultExpiration)
}

// EditRule applies a partial update and splices the server's authoritative
// record into the view. When the edit reassigns the category, which can
// change which filtered views a rule belongs to, the whole view is
// rescanned instead. Category changes are rare enough that the extra
// requests do not matter.
func (s *Synchronizer) EditRule(ctx context.Context, view *View, id string, patch api.RulePatch) (api.Rule, error) {
	previous, held := view.Get(id)
	updated, err := s.gateway.UpdateRule(ctx, id, patch)
	if err != nil {
		return api.Rule{}, err
	}
	if held && patch.Category != nil && updated.Category != previous.Category {
		refreshed, err := s.FetchScoped(ctx, view.Scope)
		if err != nil {
			// The edit itself succeeded; keep the spliced view rather
			// than failing the operation. The view may now hold a rule
			// the scope no longer contains, so leave a trace.
			s.logger.Warn("rescan after category change failed, view may be stale",
				zap.String("rule", id),
				zap.String("scope", view.Scope.Key()),
				zap.Error(err))
			view.replace(updated)
			return updated, nil
		}
		*view = *refreshed
		return updated, nil
	}
	view.replace(updated)
	s.cacheView(view)
	return updated, nil
}

// CreateRule authors a rule directly and appends it to the view when the
// view's scope contains directly authored rules.
func (s *Synchronizer) CreateRule(ctx context.Context, view *View, text string, category api.Category, severity api.Severity, pointsDeduction float64) (api.Rule, error) {
	created, err := s.gateway.CreateRule(ctx, text, category, severity, pointsDeduction)
	if err != nil {
		return api.Rule{}, err
	}
	if view.Scope.Contains(created.SourceGuidelineID) {
		view.Rules = append(view.Rules, created)
		s.cacheView(view)
	}
	return created, nil
}

// Deactivate soft-deletes a rule and marks the held copy inactive. The
// call is issued even when the held copy is already inactive; the second
// call is observably a no-op, never an error.
func (s *Synchronizer) Deactivate(ctx context.Context, view *View, id string) error {
	if err := s.gateway.DeactivateRule(ctx, id); err != nil {
		return err
	}
	if rule, ok := view.Get(id); ok {
		rule.IsActive = false
		view.replace(rule)
		s.cacheView(view)
	}
	return nil
}

// Reactivate restores a soft-deleted rule and splices the server's record
// into the view. Reactivating an already-active rule is a no-op.
func (s *Synchronizer) Reactivate(ctx context.Context, view *View, id string) (api.Rule, error) {
	restored, err := s.gateway.ReactivateRule(ctx, id)
	if err != nil {
		return api.Rule{}, err
	}
	view.replace(restored)
	s.cacheView(view)
	return restored, nil
}

// Refine delegates a rewrite-by-instruction to the server and splices the
// rewritten rule into the view.
func (s *Synchronizer) Refine(ctx context.Context, view *View, id, instruction string) (api.Rule, error) {
	refined, err := s.gateway.RefineRule(ctx, id, instruction)
	if err != nil {
		return api.Rule{}, err
	}
	view.replace(refined)
	s.cacheView(view)
	return refined, nil
}
