package reporting

import (
	"context"
	"time"
)

type Repository interface {
	// CountPatients returns the total patient count and the count
	// registered at or after since.
	CountPatients(ctx context.Context, since time.Time) (total, recent int, err error)
	// Grouped evaluates a grouped-count measure.
	Grouped(ctx context.Context, m Measure, args ...any) (map[string]int, error)
	// NIHSSTotals returns the total score of every assessment.
	NIHSSTotals(ctx context.Context) ([]int, error)
	CountAdministered(ctx context.Context) (int, error)
	ExportRows(ctx context.Context) ([]ExportRow, error)
}
