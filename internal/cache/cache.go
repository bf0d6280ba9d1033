package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"govreport/internal/domain"
	"govreport/internal/formula"
	"govreport/internal/metrics"
	"govreport/internal/sqlgen"
	"govreport/internal/validate"
)

// DefaultTTL is how long compiled SQL stays cached.
const DefaultTTL = 2 * time.Hour

const keyPrefix = "rdec:sql:"

// ExecutionCache memoizes compiled SQL per sub-report configuration. The
// cache is advisory: store failures fall back to compiling.
type ExecutionCache struct {
	store   Store
	ttl     time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics
	group   singleflight.Group
}

// New creates an ExecutionCache. A zero ttl means DefaultTTL.
func New(store Store, ttl time.Duration, m *metrics.Metrics, logger *slog.Logger) *ExecutionCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &ExecutionCache{
		store:   store,
		ttl:     ttl,
		logger:  logger.With("component", "execution-cache"),
		metrics: m,
	}
}

// Canonical renders the parts of an analysed configuration that determine its
// SQL: labels and declared types are dropped and formulas are reprinted in
// canonical form.
func Canonical(a *validate.Analysis) ([]byte, error) {
	cfg := a.Config
	cfg.Fields = make([]domain.FieldSpec, len(a.Fields))
	for i, f := range a.Fields {
		spec := f.Spec
		spec.Label = ""
		spec.Type = ""
		if f.Root != nil {
			spec.Expression = formula.Format(f.Root)
		}
		cfg.Fields[i] = spec
	}
	return json.Marshal(cfg)
}

// Key returns the cache key of a sub-report configuration.
func Key(reportID, subReportID int64, a *validate.Analysis) (string, error) {
	canonical, err := Canonical(a)
	if err != nil {
		return "", err
	}
	h := sha256.New()
	fmt.Fprintf(h, "%d|%d|", reportID, subReportID)
	h.Write(canonical)
	return subPrefix(subReportID) + hex.EncodeToString(h.Sum(nil)), nil
}

func subPrefix(subReportID int64) string {
	return keyPrefix + strconv.FormatInt(subReportID, 10) + ":"
}

// CompileFunc produces SQL on a cache miss.
type CompileFunc func() (*sqlgen.Compiled, error)

// GetOrCompile returns the cached SQL for a, compiling and storing it on a
// miss. Concurrent misses for one key compile once. hit reports whether the
// result came from the store.
func (c *ExecutionCache) GetOrCompile(ctx context.Context, reportID, subReportID int64, a *validate.Analysis, compile CompileFunc) (_ *sqlgen.Compiled, hit bool, _ error) {
	key, err := Key(reportID, subReportID, a)
	if err != nil {
		return nil, false, domain.ErrInternal("hash sub-report configuration", err)
	}

	if compiled, ok := c.lookup(ctx, key); ok {
		c.metrics.CacheRequest(metrics.CacheHit)
		return compiled, true, nil
	}
	c.metrics.CacheRequest(metrics.CacheMiss)

	v, err, _ := c.group.Do(key, func() (any, error) {
		compiled, err := compile()
		if err != nil {
			return nil, err
		}
		c.save(ctx, key, compiled)
		return compiled, nil
	})
	if err != nil {
		return nil, false, err
	}
	return v.(*sqlgen.Compiled), false, nil
}

// lookup reads key, retrying once on store errors. Undecodable entries are
// treated as misses.
func (c *ExecutionCache) lookup(ctx context.Context, key string) (*sqlgen.Compiled, bool) {
	var (
		raw []byte
		ok  bool
		err error
	)
	for attempt := 0; attempt < 2; attempt++ {
		raw, ok, err = c.store.Get(ctx, key)
		if err == nil {
			break
		}
	}
	if err != nil {
		c.metrics.CacheRequest(metrics.CacheError)
		c.logger.Warn("cache read failed, compiling", "key", key, "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var compiled sqlgen.Compiled
	if err := json.Unmarshal(raw, &compiled); err != nil {
		c.logger.Warn("discarding undecodable cache entry", "key", key, "error", err)
		return nil, false
	}
	return &compiled, true
}

func (c *ExecutionCache) save(ctx context.Context, key string, compiled *sqlgen.Compiled) {
	raw, err := json.Marshal(compiled)
	if err != nil {
		c.logger.Warn("encode compiled sql", "key", key, "error", err)
		return
	}
	if err := c.store.Set(ctx, key, raw, c.ttl); err != nil {
		c.logger.Warn("cache write failed", "key", key, "error", err)
	}
}

// Invalidate drops every cached compilation of a sub-report.
func (c *ExecutionCache) Invalidate(ctx context.Context, subReportID int64) error {
	if err := c.store.DeletePrefix(ctx, subPrefix(subReportID)); err != nil {
		return domain.ErrInternal("invalidate compiled sql", err)
	}
	return nil
}
