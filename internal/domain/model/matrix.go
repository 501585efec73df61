package model

// Row is one (raceId, driverId) observation after the feature join.
// Features is aligned with the owning matrix's Columns.
type Row struct {
	RaceID        string
	DriverID      string
	ConstructorID string
	CircuitID     string
	Year          int
	Round         int

	// Event is the source observation; labeling reads its outcome fields.
	Event Event

	Features []float64
	Target   float64
}

// Matrix is the labeled, filtered and imputed training matrix.
type Matrix struct {
	Target  string   // name of the target rule that produced Row.Target
	Columns []string // feature column names

	Rows []Row

	// Imputation holds the per-column fill value computed from Rows.
	Imputation map[string]float64
}

// ColumnIndex returns the position of name in Columns, or -1.
func (m *Matrix) ColumnIndex(name string) int {
	for i, c := range m.Columns {
		if c == name {
			return i
		}
	}
	return -1
}
