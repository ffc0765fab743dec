package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"breederchat/internal/core/record"

	"github.com/PuerkitoBio/goquery"
)

// Result is what a single page yields.
type Result struct {
	Records []record.Record `json:"records"`
	// TotalEntries is set when the page advertises the overall row count.
	TotalEntries *int `json:"total_entries,omitempty"`
}

type Extractor interface {
	Extract(html string) (Result, error)
}

// minCells is the number of cells a row needs to be mapped to name/phone/location.
const minCells = 3

var totalEntriesRe = regexp.MustCompile(`(?i)showing\s+[\d,]+(?:\s*(?:to|-)\s*[\d,]+)?\s+of\s+([\d,]+)\s+entries`)

// TableExtractor reads breeder rows out of every <table> on the page.
type TableExtractor struct{}

func NewTableExtractor() *TableExtractor { return &TableExtractor{} }

func (e *TableExtractor) Extract(html string) (Result, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Result{}, fmt.Errorf("parse html: %w", err)
	}

	var out Result
	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		ownRows(table).Each(func(i int, row *goquery.Selection) {
			if i == 0 {
				return
			}
			cells := row.ChildrenFiltered("td, th")
			if cells.Length() < minCells {
				return
			}
			out.Records = append(out.Records, record.New(
				cells.Eq(0).Text(),
				cells.Eq(1).Text(),
				cells.Eq(2).Text(),
			))
		})
	})

	out.TotalEntries = TotalEntries(doc.Text())
	return out, nil
}

// ownRows selects the rows of table itself, leaving rows of nested tables to
// their own pass.
func ownRows(table *goquery.Selection) *goquery.Selection {
	sections := table.ChildrenFiltered("thead, tbody, tfoot")
	return table.ChildrenFiltered("tr").AddSelection(sections.ChildrenFiltered("tr"))
}

// TotalEntries parses a "Showing 1 to 10 of 57 entries" marker.
func TotalEntries(text string) *int {
	m := totalEntriesRe.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	n, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
	if err != nil {
		return nil
	}
	return &n
}

// HasMorePages falls back to "this page had rows" when the total is unknown.
func HasMorePages(r Result, aggregated int) bool {
	if r.TotalEntries != nil {
		return aggregated < *r.TotalEntries
	}
	return len(r.Records) > 0
}
