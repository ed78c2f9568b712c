package replay

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"

	"trading-venue/src/codec"
	"trading-venue/src/engine"
)

// ReportAttributes are the groupings written by WriteReports, in menu order.
var ReportAttributes = []engine.Attribute{
	engine.AttributeUser,
	engine.AttributePortfolio,
	engine.AttributeStrategy,
	engine.AttributeInstrument,
}

type Summary struct {
	Read      int
	Malformed int
	Accepted  int
	Rejected  int
}

// Load parses messages from r and submits them to the venue in order.
// Malformed lines and rejected submissions are counted and joined into the
// returned error; they never stop the load.
func Load(venue *engine.Venue, r io.Reader, hasHeader bool) (Summary, error) {
	var summary Summary

	orders, parseErr := codec.ReadMessages(r, hasHeader)
	summary.Read = len(orders)
	if parseErr != nil {
		var joined interface{ Unwrap() []error }
		if errors.As(parseErr, &joined) {
			summary.Malformed = len(joined.Unwrap())
		} else {
			summary.Malformed = 1
		}
		summary.Read += summary.Malformed
	}

	results, submitErr := venue.SubmitBatch(orders)
	for _, result := range results {
		if result == nil {
			summary.Rejected++
		} else {
			summary.Accepted++
		}
	}

	log.Info().
		Int("read", summary.Read).
		Int("malformed", summary.Malformed).
		Int("accepted", summary.Accepted).
		Int("rejected", summary.Rejected).
		Msg("Order messages loaded")

	return summary, errors.Join(parseErr, submitErr)
}

func LoadFile(venue *engine.Venue, path string, hasHeader bool) (Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		return Summary{}, fmt.Errorf("open order file: %w", err)
	}
	defer f.Close()

	return Load(venue, f, hasHeader)
}

// WriteReports writes the bid and ask report of every attribute into dir and
// returns the written paths.
func WriteReports(venue *engine.Venue, dir string, attrs ...engine.Attribute) ([]string, error) {
	if len(attrs) == 0 {
		attrs = ReportAttributes
	}

	paths := make([]string, 0, len(attrs)*2)
	for _, attr := range attrs {
		for _, side := range []engine.Side{engine.SideBid, engine.SideAsk} {
			report := codec.RenderReport(attr, venue.AggregateBy(attr, side))
			path, err := codec.WriteReport(dir, attr, side, report)
			if err != nil {
				return paths, err
			}
			log.Debug().
				Str("attribute", string(attr)).
				Str("side", side.Label()).
				Str("path", path).
				Msg("Aggregation report written")
			paths = append(paths, path)
		}
	}
	return paths, nil
}
