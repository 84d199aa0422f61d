package entities

import "time"

// GroupCount is one bucket of a grouped count
type GroupCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// ImportSummary aggregates the current store contents
type ImportSummary struct {
	ByKind            []GroupCount `json:"by_kind"`
	ByProvince        []GroupCount `json:"by_province"`
	ByDataSource      []GroupCount `json:"by_data_source"`
	WithCoordinates   int          `json:"with_coordinates"`
	TotalAutoImported int          `json:"total_auto_imported"`
	GeneratedAt       time.Time    `json:"generated_at"`
}

// ImportResult reports the counters of one import call
type ImportResult struct {
	TotalFetched   int            `json:"total_fetched"`
	TotalProcessed int            `json:"total_processed"`
	TotalInserted  int            `json:"total_inserted"`
	TotalUpdated   int            `json:"total_updated"`
	TotalSkipped   int            `json:"total_skipped"`
	FailedRegions  []string       `json:"failed_regions,omitempty"`
	Summary        *ImportSummary `json:"summary,omitempty"`
}

// Add accumulates the counters of another result. The summary is not merged.
func (r *ImportResult) Add(other *ImportResult) {
	if other == nil {
		return
	}
	r.TotalFetched += other.TotalFetched
	r.TotalProcessed += other.TotalProcessed
	r.TotalInserted += other.TotalInserted
	r.TotalUpdated += other.TotalUpdated
	r.TotalSkipped += other.TotalSkipped
	r.FailedRegions = append(r.FailedRegions, other.FailedRegions...)
}

// DedupResult reports the outcome of a deduplication sweep
type DedupResult struct {
	DuplicateGroupsFound int `json:"duplicate_groups_found"`
	RecordsRemoved       int `json:"records_removed"`
	RecordsFailed        int `json:"records_failed"`
}
