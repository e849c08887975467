package nav

// SplitPart describes one sub-identifier of a work that is published in
// several parts. Readers address scrolls locally within a part, while the
// table of contents and the source files are numbered globally against the
// base work id.
type SplitPart struct {
	// GlobalOffset is the number of scrolls preceding this part in the
	// base work. Local scroll n maps to global scroll GlobalOffset+n.
	GlobalOffset int
	// Scrolls is the scroll count local to this part.
	Scrolls int
}

// SplitTable maps split-work sub-identifiers to their scroll ranges.
// Entries are consulted before any table-of-contents or filesystem lookup.
type SplitTable map[string]SplitPart

// DefaultSplitTable returns the built-in split-work registrations.
//
// The Taishō Large Prajñāpāramitā (T0220) is distributed as fifteen
// sub-identifiers a through o, but its table of contents and source files
// carry only the base number. Further split works can be registered through
// Options.SplitWorks without touching this table.
func DefaultSplitTable() SplitTable {
	return SplitTable{
		"T0220a": {GlobalOffset: 0, Scrolls: 200},   // 卷1-200
		"T0220b": {GlobalOffset: 200, Scrolls: 200}, // 卷201-400
		"T0220c": {GlobalOffset: 400, Scrolls: 137}, // 卷401-537
		"T0220d": {GlobalOffset: 537, Scrolls: 28},  // 卷538-565
		"T0220e": {GlobalOffset: 565, Scrolls: 8},   // 卷566-573
		"T0220f": {GlobalOffset: 573, Scrolls: 2},   // 卷574-575
		"T0220g": {GlobalOffset: 575, Scrolls: 1},   // 卷576
		"T0220h": {GlobalOffset: 576, Scrolls: 1},   // 卷577
		"T0220i": {GlobalOffset: 577, Scrolls: 1},   // 卷578
		"T0220j": {GlobalOffset: 578, Scrolls: 5},   // 卷579-583
		"T0220k": {GlobalOffset: 583, Scrolls: 5},   // 卷584-588
		"T0220l": {GlobalOffset: 588, Scrolls: 1},   // 卷589
		"T0220m": {GlobalOffset: 589, Scrolls: 1},   // 卷590
		"T0220n": {GlobalOffset: 590, Scrolls: 2},   // 卷591-592
		"T0220o": {GlobalOffset: 592, Scrolls: 8},   // 卷593-600
	}
}
