// Package pagecache parses each page's marked content at most once and
// serves tag lookups from the parsed result.
package pagecache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/multierr"

	"github.com/a3tai/mcp-pdf-structure/internal/pdf/content"
)

// DefaultProgressEvery is how many pages PreloadAll parses between progress logs
const DefaultProgressEvery = 20

// PageSource yields interpretable pages of one document
type PageSource interface {
	PageCount() int
	Page(n int) (content.Page, error)
}

// Entry is the cached capture for one (page, tag) pair. It is shared by all
// readers and must not be modified.
type Entry struct {
	Text   string
	Glyphs []content.Glyph
}

// Config configures a Cache
type Config struct {
	// ProgressEvery is the preload progress interval in pages
	ProgressEvery int
	// Workers bounds concurrent page parses during PreloadAll
	Workers int
	Logger  *slog.Logger
}

// Cache wraps an Extractor so every page is interpreted at most once.
// Entries are immutable after creation, so concurrent readers need no lock
// beyond the page table.
type Cache struct {
	source    PageSource
	extractor *content.Extractor
	config    Config
	logger    *slog.Logger

	mu    sync.Mutex
	pages map[int]*pageEntry

	hits       atomic.Int64
	misses     atomic.Int64
	parsed     atomic.Int64
	parseNanos atomic.Int64
}

type pageEntry struct {
	once    sync.Once
	content *content.PageContent
	marks   *content.PageMarks
	err     error
	done    atomic.Bool
}

// New creates a cache over source
func New(source PageSource, extractor *content.Extractor, config Config) *Cache {
	if config.ProgressEvery <= 0 {
		config.ProgressEvery = DefaultProgressEvery
	}
	if config.Workers <= 0 {
		config.Workers = 1
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if extractor == nil {
		extractor = content.NewExtractor(content.NewInterpreter(content.WithLogger(logger)))
	}
	return &Cache{
		source:    source,
		extractor: extractor,
		config:    config,
		logger:    logger,
		pages:     make(map[int]*pageEntry),
	}
}

func (c *Cache) entry(page int) *pageEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.pages[page]
	if !ok {
		e = &pageEntry{}
		c.pages[page] = e
	}
	return e
}

// EnsureParsed interprets the page unless that already happened. A failed
// page keeps its error and is never retried.
func (c *Cache) EnsureParsed(page int) error {
	_, err := c.parsedEntry(page)
	return err
}

// parsedEntry returns the page's entry once parsed. Callers read results
// from this entry only: Clear may install a fresh one meanwhile.
func (c *Cache) parsedEntry(page int) (*pageEntry, error) {
	e := c.entry(page)
	e.once.Do(func() {
		start := time.Now()
		e.content, e.marks, e.err = c.parse(page)
		elapsed := time.Since(start)

		e.done.Store(true)
		c.parsed.Add(1)
		c.parseNanos.Add(int64(elapsed))
		if e.err != nil {
			c.logger.Warn("page parse failed", "page", page, "error", e.err)
			return
		}
		c.logger.Debug("page parsed", "page", page, "tags", e.marks.Count(), "elapsed_ms", elapsed.Milliseconds())
	})
	return e, e.err
}

func (c *Cache) parse(page int) (pc *content.PageContent, marks *content.PageMarks, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while parsing page %d: %v", page, r)
		}
	}()

	if page < 1 || page > c.source.PageCount() {
		return nil, nil, fmt.Errorf("page %d out of range (1-%d)", page, c.source.PageCount())
	}
	p, err := c.source.Page(page)
	if err != nil {
		return nil, nil, err
	}
	return c.extractor.ExtractContent(p)
}

// IsParsed reports whether the page has been interpreted, successfully or not
func (c *Cache) IsParsed(page int) bool {
	c.mu.Lock()
	e, ok := c.pages[page]
	c.mu.Unlock()
	if !ok {
		return false
	}
	return e.done.Load()
}

// Get returns the capture for one tag. A failed page, or a tag the page
// never emitted, is a miss.
func (c *Cache) Get(page, mcid int) (Entry, bool) {
	e, err := c.parsedEntry(page)
	if err != nil {
		c.misses.Add(1)
		return Entry{}, false
	}
	marks := e.marks
	glyphs, ok := marks.Glyphs[mcid]
	if !ok {
		c.misses.Add(1)
		return Entry{}, false
	}
	c.hits.Add(1)
	return Entry{Text: marks.Text[mcid], Glyphs: glyphs}, true
}

// GetAll returns the captures for the given tags on one page; missing tags
// are absent from the result.
func (c *Cache) GetAll(page int, mcids []int) map[int]Entry {
	out := make(map[int]Entry, len(mcids))
	e, err := c.parsedEntry(page)
	if err != nil {
		c.misses.Add(int64(len(mcids)))
		return out
	}
	marks := e.marks
	for _, mcid := range mcids {
		glyphs, ok := marks.Glyphs[mcid]
		if !ok {
			c.misses.Add(1)
			continue
		}
		c.hits.Add(1)
		out[mcid] = Entry{Text: marks.Text[mcid], Glyphs: glyphs}
	}
	return out
}

// Marks returns the full tag index of a page
func (c *Cache) Marks(page int) (*content.PageMarks, error) {
	e, err := c.parsedEntry(page)
	if err != nil {
		return nil, err
	}
	return e.marks, nil
}

// Content returns everything captured on a page, untagged glyphs and
// ruling segments included
func (c *Cache) Content(page int) (*content.PageContent, error) {
	e, err := c.parsedEntry(page)
	if err != nil {
		return nil, err
	}
	return e.content, nil
}

// PreloadAll parses every page. Page failures are logged and collected but
// never stop the run; only cancellation does.
func (c *Cache) PreloadAll(ctx context.Context) error {
	total := c.source.PageCount()
	start := time.Now()
	c.logger.Info("preloading marked content", "pages", total, "workers", c.config.Workers)

	var (
		done   atomic.Int64
		errMu  sync.Mutex
		result error
	)

	p := pool.New().WithMaxGoroutines(c.config.Workers)
	for page := 1; page <= total; page++ {
		if ctx.Err() != nil {
			break
		}
		p.Go(func() {
			if ctx.Err() != nil {
				return
			}
			if err := c.EnsureParsed(page); err != nil {
				errMu.Lock()
				result = multierr.Append(result, fmt.Errorf("page %d: %w", page, err))
				errMu.Unlock()
			}
			n := done.Add(1)
			if n%int64(c.config.ProgressEvery) == 0 || n == int64(total) {
				c.logger.Info("preload progress", "done", n, "total", total)
			}
		})
	}
	p.Wait()

	if err := ctx.Err(); err != nil {
		return multierr.Append(result, err)
	}

	elapsed := time.Since(start)
	avg := 0.0
	if total > 0 {
		avg = float64(elapsed.Milliseconds()) / float64(total)
	}
	c.logger.Info("preload complete",
		"pages", total,
		"elapsed_ms", elapsed.Milliseconds(),
		"avg_ms_per_page", fmt.Sprintf("%.1f", avg),
		"failed", len(multierr.Errors(result)))
	return result
}

// Stats is a snapshot of cache counters
type Stats struct {
	Pages       int64         `json:"pages"`
	Hits        int64         `json:"hits"`
	Misses      int64         `json:"misses"`
	HitRate     float64       `json:"hit_rate"`
	ParseTime   time.Duration `json:"parse_time"`
	AvgParseDur time.Duration `json:"avg_parse_time"`
}

// Stats returns the current counters
func (c *Cache) Stats() Stats {
	s := Stats{
		Pages:     c.parsed.Load(),
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		ParseTime: time.Duration(c.parseNanos.Load()),
	}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) * 100 / float64(total)
	}
	if s.Pages > 0 {
		s.AvgParseDur = s.ParseTime / time.Duration(s.Pages)
	}
	return s
}

// String formats the counters on one line
func (s Stats) String() string {
	return fmt.Sprintf("pages=%d, hits=%d, misses=%d, hitRate=%.1f%%, totalParseTime=%dms, avgParseTime=%.1fms",
		s.Pages, s.Hits, s.Misses, s.HitRate,
		s.ParseTime.Milliseconds(), float64(s.AvgParseDur.Microseconds())/1000)
}

// Clear drops every parsed page and resets the counters. The page table is
// replaced, so in-flight lookups finish against the entries they started on.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.pages = make(map[int]*pageEntry)
	c.mu.Unlock()
	c.hits.Store(0)
	c.misses.Store(0)
	c.parsed.Store(0)
	c.parseNanos.Store(0)
}
