package pdf

import (
	"github.com/a3tai/mcp-pdf-structure/internal/extract"
	"github.com/a3tai/mcp-pdf-structure/internal/lattice"
	"github.com/a3tai/mcp-pdf-structure/internal/pagecache"
	"github.com/a3tai/mcp-pdf-structure/internal/pdf/content"
	"github.com/a3tai/mcp-pdf-structure/internal/structure"
)

// Request Types

// StructureRequest asks for the reading-order records of a file
type StructureRequest struct {
	Path string `json:"path"`
	// Normalize applies NFKC to record text; nil keeps the service default
	Normalize *bool `json:"normalize,omitempty"`
}

// TablesRequest asks for the tables of a file, optionally of one page
type TablesRequest struct {
	Path string `json:"path"`
	// Page restricts the result to tables touching this page; 0 means all
	Page int `json:"page,omitempty"`
}

// PageMarksRequest asks for the tag index of one page
type PageMarksRequest struct {
	Path string `json:"path"`
	Page int    `json:"page"`
}

// CacheStatsRequest asks for page cache counters after a full extraction
type CacheStatsRequest struct {
	Path string `json:"path"`
}

// Response Types

// StructureResult is the full extraction output
type StructureResult struct {
	Path string `json:"path"`
	*extract.Result
	// ErrorCounts maps taxonomy names to occurrence counts
	ErrorCounts  map[string]int `json:"error_counts,omitempty"`
	ErrorSummary string         `json:"error_summary,omitempty"`
}

// TablesResult lists tables and, on the lattice path, the grids behind them
type TablesResult struct {
	Path   string            `json:"path"`
	RunID  string            `json:"run_id"`
	Source string            `json:"source"`
	Tables []structure.Table `json:"tables"`
	Grids  []*lattice.Table  `json:"-"`
}

// TagText is one tag's captured text on a page
type TagText struct {
	MCID   int    `json:"mcid"`
	Text   string `json:"text"`
	Glyphs int    `json:"glyphs"`
}

// PageMarksResult is the tag index of one page
type PageMarksResult struct {
	Path    string               `json:"path"`
	Page    int                  `json:"page"`
	Pages   int                  `json:"pages"`
	Tags    []TagText            `json:"tags"`
	Nesting content.NestingStats `json:"nesting"`
	Stats   pagecache.Stats      `json:"cache_stats"`
}

// CacheStatsResult reports page cache counters for one file
type CacheStatsResult struct {
	Path    string          `json:"path"`
	Pages   int             `json:"pages"`
	Stats   pagecache.Stats `json:"stats"`
	Summary string          `json:"summary"`
}
