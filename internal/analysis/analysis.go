// Package analysis profiles document columns: inferred type, null and
// unique counts, top values, and numeric statistics. Profiles feed the
// column inspector; nothing here affects the logical view.
package analysis

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/csvview/csvview/internal/document"
)

// InferredType classifies a column's dominant value shape.
type InferredType string

const (
	TypeInteger InferredType = "Integer"
	TypeFloat   InferredType = "Float"
	TypeBoolean InferredType = "Boolean"
	TypeDate    InferredType = "Date"
	TypeText    InferredType = "Text"
	TypeEmpty   InferredType = "Empty"
	TypeMixed   InferredType = "Mixed"
)

// ValueCount is one entry of a column's top-values list.
type ValueCount struct {
	Value string
	Count int
}

// Profile holds the statistics for a single column.
type Profile struct {
	ColumnIndex int
	Header      string
	Type        InferredType
	TotalCount  int
	NullCount   int
	UniqueCount int

	// Numeric stats, valid only when HasNumeric is set.
	HasNumeric bool
	Min        float64
	Max        float64
	Sum        float64
	Mean       float64
	StdDev     float64

	// TopValues holds the most frequent non-null values, capped at five.
	TopValues []ValueCount
}

// NullPercentage returns the null share of the column in percent.
func (p Profile) NullPercentage() float64 {
	if p.TotalCount == 0 {
		return 0
	}
	return float64(p.NullCount) / float64(p.TotalCount) * 100
}

// topValuesCap bounds the frequency list kept per profile.
const topValuesCap = 5

// typeThreshold is the share of values a shape must reach to name the
// column's type.
const typeThreshold = 0.8

// AnalyzeColumn profiles one column of the document's merged logical view.
func AnalyzeColumn(doc *document.Document, col int) (Profile, error) {
	cols := doc.Columns()
	if col < 0 || col >= len(cols) {
		return Profile{}, fmt.Errorf("%w: column %d of %d", document.ErrIndex, col, len(cols))
	}

	p := Profile{ColumnIndex: col, Header: cols[col], TotalCount: doc.DataRows()}

	counts := make(map[string]int)
	var nonNull []string
	start := doc.Rows() - doc.DataRows()
	for row := start; row < doc.Rows(); row++ {
		v, err := doc.Cell(row, col)
		if err != nil {
			return Profile{}, err
		}
		trimmed := strings.TrimSpace(v)
		if isNull(trimmed) {
			p.NullCount++
			continue
		}
		nonNull = append(nonNull, trimmed)
		counts[trimmed]++
	}

	p.UniqueCount = len(counts)
	p.TopValues = topValues(counts)

	numeric := inferType(&p, nonNull)
	if len(numeric) > 0 {
		p.HasNumeric = true
		p.Min, p.Max = numeric[0], numeric[0]
		for _, n := range numeric {
			p.Sum += n
			p.Min = math.Min(p.Min, n)
			p.Max = math.Max(p.Max, n)
		}
		p.Mean = p.Sum / float64(len(numeric))
		var variance float64
		for _, n := range numeric {
			variance += (n - p.Mean) * (n - p.Mean)
		}
		p.StdDev = math.Sqrt(variance / float64(len(numeric)))
	}

	return p, nil
}

// Analyze profiles every column of the document.
func Analyze(doc *document.Document) ([]Profile, error) {
	out := make([]Profile, doc.ColumnCount())
	for col := range out {
		p, err := AnalyzeColumn(doc, col)
		if err != nil {
			return nil, err
		}
		out[col] = p
	}
	return out, nil
}

func isNull(v string) bool {
	switch strings.ToLower(v) {
	case "", "null", "na", "n/a":
		return true
	}
	return false
}

func topValues(counts map[string]int) []ValueCount {
	all := make([]ValueCount, 0, len(counts))
	for v, c := range counts {
		all = append(all, ValueCount{Value: v, Count: c})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Count != all[j].Count {
			return all[i].Count > all[j].Count
		}
		return all[i].Value < all[j].Value
	})
	if len(all) > topValuesCap {
		all = all[:topValuesCap]
	}
	return all
}

// inferType sets p.Type from the non-null values and returns the parsed
// numeric values for the stats pass.
func inferType(p *Profile, values []string) []float64 {
	if len(values) == 0 {
		p.Type = TypeEmpty
		return nil
	}

	var ints, floats, bools, dates, texts int
	numeric := make([]float64, 0, len(values))

	for _, v := range values {
		if _, err := strconv.ParseInt(v, 10, 64); err == nil {
			ints++
			if n, err := strconv.ParseFloat(v, 64); err == nil {
				numeric = append(numeric, n)
			}
			continue
		}
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			floats++
			numeric = append(numeric, n)
			continue
		}
		switch strings.ToLower(v) {
		case "true", "false", "yes", "no":
			bools++
			continue
		}
		if looksLikeDate(v) {
			dates++
			continue
		}
		texts++
	}

	total := float64(len(values))
	switch {
	case float64(ints)/total > typeThreshold:
		p.Type = TypeInteger
		return numeric
	case float64(ints+floats)/total > typeThreshold:
		p.Type = TypeFloat
		return numeric
	case float64(bools)/total > typeThreshold:
		p.Type = TypeBoolean
		return nil
	case float64(dates)/total > typeThreshold:
		p.Type = TypeDate
		return nil
	case texts > 0:
		p.Type = TypeText
		return nil
	default:
		p.Type = TypeMixed
		return numeric
	}
}

// looksLikeDate accepts three numeric components separated by '-' or '/'.
func looksLikeDate(v string) bool {
	parts := strings.FieldsFunc(v, func(r rune) bool { return r == '-' || r == '/' })
	if len(parts) != 3 || !strings.ContainsAny(v, "-/") {
		return false
	}
	for _, part := range parts {
		if _, err := strconv.ParseUint(part, 10, 32); err != nil {
			return false
		}
	}
	return true
}
