package merge

import "fmt"

// DiscrepancyError reports a cycle whose insert count does not match the
// number of new ids found in the staging file. The staging file is retained.
type DiscrepancyError struct {
	CycleID  string
	Pending  int
	Inserted int
}

// Error implements the error interface.
func (e *DiscrepancyError) Error() string {
	return fmt.Sprintf("merge discrepancy: %d pending, %d inserted (cycle=%s); staging file kept",
		e.Pending, e.Inserted, e.CycleID)
}
