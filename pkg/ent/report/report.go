package report

import "time"

// Report summarizes a created dump.
type Report struct {
	// Archive is the path to the dump file.
	Archive string `json:"archive"`

	// Backend is the type of the dumped database.
	Backend string `json:"backend"`

	// Size is the size of the archive in bytes.
	Size int64 `json:"size"`

	// Duration is the time spent on the dump.
	Duration time.Duration `json:"duration"`

	// Tables lists exported tables in the archive order.
	Tables []Table `json:"tables"`
}

// Table describes data of one table in a dump.
type Table struct {
	// Name of the table.
	Name string `json:"name"`

	// Rows is the number of exported rows.
	Rows int64 `json:"rows"`

	// Full is true if all rows of the table were exported.
	Full bool `json:"full"`
}

// Rows returns the total number of exported rows.
func (r Report) Rows() int64 {
	var res int64
	for _, t := range r.Tables {
		res += t.Rows
	}
	return res
}
