package suite

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/rcontract/internal/canonical"
)

// AssertGolden compares the canonical JSON of report (durations left out)
// with testdata/golden/{name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/suite -update
func AssertGolden(t *testing.T, name string, report *Report) {
	t.Helper()

	data, err := canonical.Marshal(report.Generic())
	if err != nil {
		t.Fatalf("marshal report: %v", err)
	}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
}
