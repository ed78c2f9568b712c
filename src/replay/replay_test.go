package replay

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"trading-venue/src/codec"
	"trading-venue/src/engine"
)

const orderFile = codec.MessageHeader + `
T1,AAPL,USD,B,100,10,P1,NEW,A1,S1,alice,2024-03-01T09:30:00.000001,20240305
T2,AAPL,USD,S,99,4,P2,NEW,A2,S2,bob,2024-03-01T09:30:00.000002,20240305
T3,MSFT,USD,S,50,8,P1,NEW,A1,S1,alice,2024-03-01T09:30:00.000003,20240305
T4,MSFT,USD,X,50,8,P1,NEW,A1,S1,alice,2024-03-01T09:30:00.000004,20240305
T9,AAPL,USD,B,100,1,P1,CANCEL,A1,S1,alice,2024-03-01T09:30:00.000005,20240305
T1,AAPL,USD,B,101,6,P1,AMEND,A1,S1,alice,2024-03-01T09:30:00.000006,20240305
`

func TestLoad(t *testing.T) {
	venue := engine.NewVenue()

	summary, err := Load(venue, strings.NewReader(orderFile), true)

	if err == nil {
		t.Fatal("Expected load errors")
	}
	if !errors.Is(err, codec.ErrMalformedMessage) {
		t.Errorf("Expected ErrMalformedMessage, got: %v", err)
	}
	if !errors.Is(err, engine.ErrUnknownOrder) {
		t.Errorf("Expected ErrUnknownOrder, got: %v", err)
	}
	if want := (Summary{Read: 6, Malformed: 1, Accepted: 4, Rejected: 1}); summary != want {
		t.Errorf("Expected summary %+v, got: %+v", want, summary)
	}

	if got := rowsString(venue.AggregateBy(engine.AttributeInstrument, engine.SideBid)); got != "[{AAPL 101 6}]" {
		t.Errorf("Expected bid rows [{AAPL 101 6}], got: %s", got)
	}
	if got := rowsString(venue.AggregateBy(engine.AttributeInstrument, engine.SideAsk)); got != "[{MSFT 50 8}]" {
		t.Errorf("Expected ask rows [{MSFT 50 8}], got: %s", got)
	}
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(engine.NewVenue(), filepath.Join(t.TempDir(), "missing.csv"), true)
	if err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestWriteReports(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "orders.csv")
	if err := os.WriteFile(path, []byte(orderFile), 0o644); err != nil {
		t.Fatalf("Failed to write order file: %v", err)
	}

	venue := engine.NewVenue()
	if _, err := LoadFile(venue, path, true); err == nil {
		t.Fatal("Expected load errors")
	}

	out := filepath.Join(dir, "out")
	paths, err := WriteReports(venue, out)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(paths) != 8 {
		t.Fatalf("Expected 8 reports, got: %d", len(paths))
	}

	for _, attr := range ReportAttributes {
		for _, side := range []engine.Side{engine.SideBid, engine.SideAsk} {
			name := filepath.Join(out, codec.ReportFileName(attr, side))
			if _, err := os.Stat(name); err != nil {
				t.Errorf("Expected report %s, got: %v", name, err)
			}
		}
	}

	users, err := os.ReadFile(filepath.Join(out, "BidAggregationsPerUser.csv"))
	if err != nil {
		t.Fatalf("Expected user report, got: %v", err)
	}
	if string(users) != "User,Price,AggregatedVolume\nalice,101,6\n" {
		t.Errorf("Unexpected user report: %q", users)
	}

	portfolios, err := os.ReadFile(filepath.Join(out, "AskAggregationsPerPortfolio.csv"))
	if err != nil {
		t.Fatalf("Expected portfolio report, got: %v", err)
	}
	if string(portfolios) != "Portfolio,Price,AggregatedVolume\nP1,50,8\n" {
		t.Errorf("Unexpected portfolio report: %q", portfolios)
	}
}

func TestWriteReportsSelectedAttributes(t *testing.T) {
	paths, err := WriteReports(engine.NewVenue(), t.TempDir(), engine.AttributeStrategy)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(paths) != 2 {
		t.Fatalf("Expected 2 reports, got: %d", len(paths))
	}
	if got := filepath.Base(paths[0]); got != "BidAggregationsPerStrategy.csv" {
		t.Errorf("Expected BidAggregationsPerStrategy.csv, got: %s", got)
	}
	if got := filepath.Base(paths[1]); got != "AskAggregationsPerStrategy.csv" {
		t.Errorf("Expected AskAggregationsPerStrategy.csv, got: %s", got)
	}
}

func rowsString(rows []engine.AggregateRow) string {
	parts := make([]string, 0, len(rows))
	for _, row := range rows {
		parts = append(parts, fmt.Sprintf("{%s %s %d}", row.Group, row.Price, row.Volume))
	}
	return "[" + strings.Join(parts, " ") + "]"
}
