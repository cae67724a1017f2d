// Command validate performs integrity checks on the cleaned and joined site
// tables: exact headers, coordinate and measurement ranges, DMS round trips,
// covariate ranges and key consistency between the two tables.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -cleaned datasets/cleaned_2016-12-07_catalog_paduri_virgine_si_cvasivirgine.csv \
//	  -joined datasets/ministry_forest_with_gfc_data.csv
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"

	"github.com/couchcryptid/forest-loss-pipeline/internal/adapter/csvfile"
	"github.com/couchcryptid/forest-loss-pipeline/internal/domain"
)

// maxLossYearCode is the last year covered by the Global Forest Change
// release the rasters come from (2000+23).
const maxLossYearCode = 23

// dmsTolerance is the round-trip error allowed on decimal degrees.
const dmsTolerance = 1e-9

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	cleanedPath := flag.String("cleaned", "", "path to the cleaned site table")
	joinedPath := flag.String("joined", "", "optional path to the joined site table")
	flag.Parse()

	if *cleanedPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*cleanedPath, *joinedPath); code != 0 {
		os.Exit(code)
	}
}

func run(cleanedPath, joinedPath string) int {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	fmt.Println("=== Forest Site Table Validation ===")
	fmt.Println()

	// ── Load tables ──
	cleaned, err := csvfile.NewCleanedTable(cleanedPath, logger).ExtractCleaned(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load cleaned table: %v\n", err)
		return 1
	}

	var joined []domain.GeoJoinedRecord
	if joinedPath != "" {
		joined, err = csvfile.NewJoinedTable(joinedPath, logger).ExtractJoined(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: load joined table: %v\n", err)
			return 1
		}
	}

	// ── Run validation phases ──
	phases := []*phase{
		validateRecords(cleaned),
		validateRoundTrip(cleaned),
	}
	if joinedPath != "" {
		phases = append(phases, validateJoined(joined, cleaned))
	}

	// ── Report results ──
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Records: %d cleaned, %d joined\n", len(cleaned), len(joined))
	if r, ok := largestSite(cleaned); ok {
		fmt.Printf("Largest site: %s (%s ha, radius %.0f m)\n", r.Name, r.AreaHa, domain.SiteRadiusMeters(r.AreaHa.Value))
	}

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Phase 1: Record ranges ──

func validateRecords(records []domain.ForestSiteRecord) *phase {
	p := &phase{name: "Phase 1: Record ranges (cleaned)"}

	seen := make(map[domain.SiteKey]int, len(records))
	for i, r := range records {
		line := i + 2
		if err := r.Validate(); err != nil {
			p.errorf("line %d: %v", line, err)
		}
		if r.AltitudeMin.Valid && r.AltitudeMax.Valid && r.AltitudeMin.Value > r.AltitudeMax.Value {
			p.errorf("line %d: site %d: altitude min %v above max %v", line, r.ID, r.AltitudeMin.Value, r.AltitudeMax.Value)
		}
		if r.County == "" {
			p.errorf("line %d: site %d: empty county", line, r.ID)
		}
		if prev, dup := seen[r.Key()]; dup {
			p.errorf("line %d: key %s already on line %d", line, r.Key(), prev)
		}
		seen[r.Key()] = line
	}
	return p
}

// ── Phase 2: DMS round trip ──
// Each decimal coordinate must survive conversion back to DMS and re-parsing.

func validateRoundTrip(records []domain.ForestSiteRecord) *phase {
	p := &phase{name: "Phase 2: DMS round trip"}

	for i, r := range records {
		for _, c := range []struct {
			axis string
			v    float64
		}{
			{"latitude", r.Latitude},
			{"longitude", r.Longitude},
		} {
			if c.v < 0 {
				// The catalog grammar has no sign; southern and western
				// coordinates cannot come from it.
				p.errorf("line %d: site %d: negative %s %v", i+2, r.ID, c.axis, c.v)
				continue
			}
			back, err := domain.DMSToDecimal(domain.DecimalToDMS(c.v).String())
			if err != nil {
				p.errorf("line %d: site %d: %s %v: %v", i+2, r.ID, c.axis, c.v, err)
				continue
			}
			if math.Abs(back-c.v) > dmsTolerance {
				p.errorf("line %d: site %d: %s %v round-trips to %v", i+2, r.ID, c.axis, c.v, back)
			}
		}
	}
	return p
}

// ── Phase 3: Joined covariates ──

func validateJoined(joined []domain.GeoJoinedRecord, cleaned []domain.ForestSiteRecord) *phase {
	p := &phase{name: "Phase 3: Joined covariates (joined vs cleaned)"}

	source := make(map[domain.SiteKey]domain.ForestSiteRecord, len(cleaned))
	for _, r := range cleaned {
		source[r.Key()] = r
	}

	var missingCover, missingLoss int
	first, last := 0, 0
	for i, r := range joined {
		line := i + 2
		src, ok := source[r.Key()]
		switch {
		case !ok:
			p.errorf("line %d: key %s not in cleaned table", line, r.Key())
		case src != r.ForestSiteRecord:
			p.errorf("line %d: key %s differs from its cleaned record", line, r.Key())
		}

		if r.TreeCover.Valid {
			if r.TreeCover.Value < 0 || r.TreeCover.Value > 100 {
				p.errorf("line %d: site %d: tree cover %v outside [0, 100]", line, r.ID, r.TreeCover.Value)
			}
		} else {
			missingCover++
		}
		if r.LossYear.Valid {
			if r.LossYear.Code < 0 || r.LossYear.Code > maxLossYearCode {
				p.errorf("line %d: site %d: loss year code %d outside [0, %d]", line, r.ID, r.LossYear.Code, maxLossYearCode)
			}
			if y, ok := r.LossYear.Year(); ok {
				if first == 0 || y < first {
					first = y
				}
				last = max(last, y)
			}
		} else {
			missingLoss++
		}
	}

	fmt.Printf("Joined sites outside rasters: %d tree cover, %d loss year\n", missingCover, missingLoss)
	if first != 0 {
		fmt.Printf("Loss years: %d to %d\n", first, last)
	}
	return p
}

func largestSite(records []domain.ForestSiteRecord) (domain.ForestSiteRecord, bool) {
	var best domain.ForestSiteRecord
	found := false
	for _, r := range records {
		if r.AreaHa.Valid && (!found || r.AreaHa.Value > best.AreaHa.Value) {
			best, found = r, true
		}
	}
	return best, found
}
