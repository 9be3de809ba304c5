package report

// NA marks an absent asset reference in the screenshot manifest.
const NA = "NA"

// Meta is the single metadata record of one test (the first data row of its
// meta.csv). A missing meta.csv means the test does not exist.
type Meta struct {
	LowerBound float64
	BestGuess  float64
	UpperBound float64
	Winner     string
	Loser      string
	Variable   string
	Country    string
	Language   string
	Time       int64

	// Monetary impact fields are optional; HasDollar reports whether all three
	// parsed. Campaign is empty when the column is absent.
	HasDollar   bool
	DollarPct   float64
	DollarLower float64
	DollarUpper float64
	Campaign    string
}

// Confident reports whether the result is statistically confident.
// Confidence is derived solely from the sign of the lower bound.
func (m Meta) Confident() bool {
	return m.LowerBound >= 0
}

// ScreenshotRow is one row of a test's screenshots.csv manifest.
type ScreenshotRow struct {
	Index     string
	Variant   string
	Primary   string // asset reference or NA
	Secondary string // asset reference or NA
}
