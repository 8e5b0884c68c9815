package analytics

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Frequency selects which period columns and amount column a query reads.
// Dispatch happens once when predicates are resolved, not per call site.
type Frequency string

const (
	FrequencyMonth   Frequency = "month"
	FrequencyQuarter Frequency = "quarter"
	FrequencyYear    Frequency = "year"
)

func (f Frequency) Valid() bool {
	switch f {
	case FrequencyMonth, FrequencyQuarter, FrequencyYear:
		return true
	}
	return false
}

// subColumn is the sub-year column this frequency compares on ("" for year).
func (f Frequency) subColumn() string {
	switch f {
	case FrequencyMonth:
		return "month"
	case FrequencyQuarter:
		return "quarter"
	}
	return ""
}

// amountColumn is the period-scoped amount column for this frequency.
func (f Frequency) amountColumn() string {
	switch f {
	case FrequencyMonth:
		return "monthly_amount"
	case FrequencyQuarter:
		return "quarterly_amount"
	}
	return "yearly_amount"
}

// markerExpr renders the period marker ("2023", "2023-05", "2023-Q2") for a
// row of the aliased source table. Must stay in sync with parseMarker.
func (f Frequency) markerExpr(alias string) string {
	switch f {
	case FrequencyMonth:
		return fmt.Sprintf("CONCAT(%s.year, '-', LPAD(%s.month, 2, '0'))", alias, alias)
	case FrequencyQuarter:
		return fmt.Sprintf("CONCAT(%s.year, '-Q', %s.quarter)", alias, alias)
	}
	return fmt.Sprintf("CAST(%s.year AS CHAR)", alias)
}

// PeriodSelection is either a closed interval of period markers or an
// explicit set of discrete markers. Markers win when both are present.
type PeriodSelection struct {
	Start   string   `json:"start,omitempty"`
	End     string   `json:"end,omitempty"`
	Markers []string `json:"markers,omitempty"`
}

// periodParts is a parsed marker at a frequency's granularity. HasSub is
// false when the marker only carries a year.
type periodParts struct {
	Year   int
	Sub    int
	HasSub bool
}

var (
	yearMarkerRe    = regexp.MustCompile(`^(\d{4})$`)
	monthMarkerRe   = regexp.MustCompile(`^(\d{4})-(\d{2})$`)
	quarterMarkerRe = regexp.MustCompile(`^(\d{4})-Q([1-4])$`)
)

// parseMarker parses a period marker at the given frequency's granularity.
// A year-only marker parses under every frequency (without sub-unit); a
// sub-unit of the wrong kind fails.
func parseMarker(marker string, freq Frequency) (periodParts, error) {
	marker = strings.TrimSpace(marker)
	if m := yearMarkerRe.FindStringSubmatch(marker); m != nil {
		y, _ := strconv.Atoi(m[1])
		return periodParts{Year: y}, nil
	}
	switch freq {
	case FrequencyMonth:
		if m := monthMarkerRe.FindStringSubmatch(marker); m != nil {
			y, _ := strconv.Atoi(m[1])
			mo, _ := strconv.Atoi(m[2])
			if mo >= 1 && mo <= 12 {
				return periodParts{Year: y, Sub: mo, HasSub: true}, nil
			}
		}
	case FrequencyQuarter:
		if m := quarterMarkerRe.FindStringSubmatch(marker); m != nil {
			y, _ := strconv.Atoi(m[1])
			q, _ := strconv.Atoi(m[2])
			return periodParts{Year: y, Sub: q, HasSub: true}, nil
		}
	}
	return periodParts{}, fmt.Errorf("marker %q not valid at %s granularity", marker, freq)
}

// ResolvePeriod compiles a period selection into predicates against the
// aliased source's year/month/quarter columns.
//
// Interval mode compares the composite (year, sub-unit) tuple when both
// boundaries carry the frequency's sub-unit, and falls back to a year-only
// range otherwise: callers may legitimately send year-only boundaries even
// for monthly queries. Discrete mode OR's exact matches; markers that do not
// parse at the frequency's granularity are dropped.
func ResolvePeriod(sel PeriodSelection, freq Frequency, alias string) []Predicate {
	if len(sel.Markers) > 0 {
		return resolveDiscrete(sel.Markers, freq, alias)
	}
	return resolveInterval(sel, freq, alias)
}

func resolveInterval(sel PeriodSelection, freq Frequency, alias string) []Predicate {
	var preds []Predicate

	start, startErr := parseMarker(sel.Start, freq)
	end, endErr := parseMarker(sel.End, freq)
	sub := freq.subColumn()
	tuple := sub != "" && startErr == nil && endErr == nil && start.HasSub && end.HasSub

	if startErr == nil {
		if tuple {
			preds = append(preds, Predicate{
				Expr: fmt.Sprintf("(%s.year > ? OR (%s.year = ? AND %s.%s >= ?))", alias, alias, alias, sub),
				Args: []any{start.Year, start.Year, start.Sub},
			})
		} else {
			preds = append(preds, Predicate{
				Expr: fmt.Sprintf("%s.year >= ?", alias),
				Args: []any{start.Year},
			})
		}
	}
	if endErr == nil {
		if tuple {
			preds = append(preds, Predicate{
				Expr: fmt.Sprintf("(%s.year < ? OR (%s.year = ? AND %s.%s <= ?))", alias, alias, alias, sub),
				Args: []any{end.Year, end.Year, end.Sub},
			})
		} else {
			preds = append(preds, Predicate{
				Expr: fmt.Sprintf("%s.year <= ?", alias),
				Args: []any{end.Year},
			})
		}
	}
	return preds
}

func resolveDiscrete(markers []string, freq Frequency, alias string) []Predicate {
	var exprs []string
	var args []any
	sub := freq.subColumn()
	for _, marker := range markers {
		p, err := parseMarker(marker, freq)
		if err != nil {
			continue
		}
		if sub == "" {
			exprs = append(exprs, fmt.Sprintf("%s.year = ?", alias))
			args = append(args, p.Year)
			continue
		}
		if !p.HasSub {
			// Year-only marker in a sub-year frequency cannot name one
			// bucket; dropped like any other unparsable marker.
			continue
		}
		exprs = append(exprs, fmt.Sprintf("(%s.year = ? AND %s.%s = ?)", alias, alias, sub))
		args = append(args, p.Year, p.Sub)
	}
	if len(exprs) == 0 {
		return nil
	}
	return []Predicate{{
		Expr: "(" + strings.Join(exprs, " OR ") + ")",
		Args: args,
	}}
}
