package models

// RowOutcome is the processing state of a single import row.
type RowOutcome int

const (
	RowPending RowOutcome = iota
	RowSuccess
	RowFailed
)

// RowFailure identifies one failed import row. Row is the 1-based data row
// number (the header row is not counted).
type RowFailure struct {
	Row     int    `json:"row"`
	Name    string `json:"name,omitempty"`
	Message string `json:"message"`
}

// ImportSummary aggregates the outcome of one import run. It covers only the
// rows that were actually processed, so a cancelled run still yields
// Succeeded+Failed == Total.
type ImportSummary struct {
	Total     int          `json:"total"`
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
	Failures  []RowFailure `json:"failures,omitempty"`
}
