package parse

import (
	"fmt"
	"io"
	"sort"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"
	"github.com/spkg/bom"

	"github.com/digitaljerry/mbus/model"
)

type SampleCSV struct {
	StopID      string `csv:"stop_id"`
	Route       string `csv:"route"`
	Time        string `csv:"time"`
	Destination string `csv:"destination"`
}

// Parses a sample timetable. Returns departures grouped by stop ID,
// each group ordered by time.
//
// Malformed times are kept. They sort last, like everywhere else.
func ParseSamples(data io.Reader) (map[string][]model.SampleDeparture, error) {
	samples := map[string][]model.SampleDeparture{}

	// LazyCSVReader to survive hand edited files. The BOM reader
	// strips unicode BOMs if present.
	gocsv.SetCSVReader(func(in io.Reader) gocsv.CSVReader {
		return gocsv.LazyCSVReader(bom.NewReader(in))
	})

	i := -1
	err := gocsv.UnmarshalToCallbackWithError(data, func(row *SampleCSV) error {
		i += 1
		if row.StopID == "" {
			return fmt.Errorf("missing stop_id (row %d)", i+1)
		}
		if row.Route == "" {
			return fmt.Errorf("missing route (row %d)", i+1)
		}
		if row.Time == "" {
			return fmt.Errorf("missing time (row %d)", i+1)
		}

		samples[row.StopID] = append(samples[row.StopID], model.SampleDeparture{
			StopID:      row.StopID,
			Route:       row.Route,
			Time:        row.Time,
			Destination: row.Destination,
		})
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "unmarshaling samples csv")
	}

	for _, deps := range samples {
		sort.SliceStable(deps, func(i, j int) bool {
			return model.TimeToMinutes(deps[i].Time) < model.TimeToMinutes(deps[j].Time)
		})
	}

	return samples, nil
}
