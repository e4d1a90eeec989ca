package domain

import "time"

// ImportBatchState tracks a preview through confirmation. A batch that is
// never confirmed expires, which is how abandonment is represented.
type ImportBatchState string

const (
	ImportBatchPreviewed ImportBatchState = "previewed"
	ImportBatchConfirmed ImportBatchState = "confirmed"
)

// ImportBatch summarizes one previewed upload.
type ImportBatch struct {
	ID          string           `json:"id"`
	Entity      string           `json:"entity"`
	State       ImportBatchState `json:"state"`
	FileName    string           `json:"fileName"`
	Total       int              `json:"total"`
	Valid       int              `json:"valid"`
	Invalid     int              `json:"invalid"`
	Duplicates  int              `json:"duplicates"`
	Created     int              `json:"created"`
	Failed      int              `json:"failed"`
	CreatedAt   time.Time        `json:"createdAt"`
	ConfirmedAt *time.Time       `json:"confirmedAt,omitempty"`
}
