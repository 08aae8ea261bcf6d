package lattice

import (
	"log/slog"

	pdferrors "github.com/a3tai/mcp-pdf-structure/internal/pdf/errors"
)

// Geometry tolerances in points unless noted
const (
	// EpsX and EpsY cluster breakpoints
	EpsX = 1.0
	EpsY = 1.0
	// GapTol is the largest gap fused between collinear ruling pieces
	GapTol = 1.5
	// MinLenPt is the shortest ruling taken as table geometry
	MinLenPt = 10.0
	// HairlinePt and thinner strokes never corroborate a row boundary
	HairlinePt = 0.35
	// TextOverlapMax is the share of a run's height a ruling may cut into
	TextOverlapMax = 0.30
	// EndSnapSlack is how far a ruling end may sit from a column breakpoint
	EndSnapSlack = 1.5
	// RowSupport is the default number of column votes for a row boundary
	RowSupport = 2
	// IntraColLineGapEm is the band clustering threshold in font sizes
	IntraColLineGapEm = 1.5
	// SoftMergeGapEm is the in-cell paragraph break threshold in font sizes
	SoftMergeGapEm = 0.8
	// ContinuationRange scales the median row height for continuation merges
	ContinuationRange = 1.5
)

// Config tunes a Reconstructor. Zero values take the defaults.
type Config struct {
	// MinColumns below which the even split fallback is used
	MinColumns int
	// FallbackColumns is N of the even N-way split
	FallbackColumns int
	// RowSupport is the number of column votes that accept a row boundary
	// without ruling corroboration
	RowSupport int
	Logger     *slog.Logger
	Errors     *pdferrors.ErrorCollection
}

func (c Config) withDefaults() Config {
	if c.MinColumns <= 0 {
		c.MinColumns = 2
	}
	if c.FallbackColumns <= 0 {
		c.FallbackColumns = 3
	}
	if c.RowSupport <= 0 {
		c.RowSupport = RowSupport
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}
