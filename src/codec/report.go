package codec

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"trading-venue/src/engine"
)

// RenderReport renders aggregation rows under the
// "<Attribute>,Price,AggregatedVolume" header.
func RenderReport(attr engine.Attribute, rows []engine.AggregateRow) string {
	var b strings.Builder
	b.WriteString(string(attr))
	b.WriteString(",Price,AggregatedVolume\n")
	for _, row := range rows {
		b.WriteString(row.Group)
		b.WriteByte(',')
		b.WriteString(row.Price.String())
		b.WriteByte(',')
		b.WriteString(strconv.FormatInt(row.Volume, 10))
		b.WriteByte('\n')
	}
	return b.String()
}

// ReportFileName is the destination name for one (attribute, side) report,
// e.g. BidAggregationsPerUser.csv.
func ReportFileName(attr engine.Attribute, side engine.Side) string {
	return side.Label() + "AggregationsPer" + string(attr) + ".csv"
}

// WriteReport writes a rendered report into dir and returns the file path.
func WriteReport(dir string, attr engine.Attribute, side engine.Side, report string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create report dir %s: %w", dir, err)
	}
	path := filepath.Join(dir, ReportFileName(attr, side))
	if err := os.WriteFile(path, []byte(report), 0o644); err != nil {
		return "", fmt.Errorf("write report %s: %w", path, err)
	}
	return path, nil
}
