// Package decode turns one HTML table from stats.ncaa.org into positional
// raw rows. It knows the site's cell encoding but nothing about column
// meaning beyond the expected row width and a few named context columns.
package decode

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// RawRow is one decoded table row before typing. Cells line up with the
// schema by position only.
type RawRow []string

// Selector locates a table and the rows inside it.
//
// When ID is empty the table is picked by position among all table
// elements on the page. Positional selection breaks whenever the site adds
// or removes a table above the target, so prefer ID when the page has one.
type Selector struct {
	// ID matches the table's id attribute, e.g. "stat_grid".
	ID string
	// Index picks among the matching tables. Negative values count from the
	// end, so -1 is the last one.
	Index int
	// Rows is a CSS selector evaluated inside the table. Defaults to "tr".
	Rows string
	// SkipRows drops this many leading rows after Rows matches.
	SkipRows int
}

func (s Selector) String() string {
	var b strings.Builder
	b.WriteString("table")
	if s.ID != "" {
		fmt.Fprintf(&b, "#%s", s.ID)
	}
	fmt.Fprintf(&b, "[%d]", s.Index)
	if s.Rows != "" {
		fmt.Fprintf(&b, " %s", s.Rows)
	}
	return b.String()
}

func (s Selector) rows() string {
	if s.Rows == "" {
		return "tr"
	}
	return s.Rows
}

// Options tune how cells become a row.
type Options struct {
	// Identifier is appended to every accepted row as the schema's final
	// column. It is never parsed from the page.
	Identifier string
	// KeepLinkText emits a linked cell as two cells: the id from the href,
	// then the visible text. Player cells on aggregate tables need this.
	KeepLinkText bool
	// DedupeColumn names a schema column. A row whose value in that column
	// equals the previous accepted row's value is rejected.
	DedupeColumn string
	// SkipLabels drops rows whose first cell text is one of these labels,
	// such as a "Career" summary row.
	SkipLabels []string
}

// RejectReason says why a row was dropped.
type RejectReason string

const (
	RejectCellCount RejectReason = "cell_count"
	RejectDuplicate RejectReason = "duplicate"
	RejectVenue     RejectReason = "venue"
	RejectScore     RejectReason = "score"
	RejectNoID      RejectReason = "no_id"
)

// Rejection records one dropped row. Rejections are local recoveries and
// never surface as errors.
type Rejection struct {
	Row    int          `json:"row"`
	Reason RejectReason `json:"reason"`
	Cells  int          `json:"cells"`
	Detail string       `json:"detail,omitempty"`
}

// Result is the output of one decode call.
type Result struct {
	Rows     []RawRow
	Rejected []Rejection
}

// NoTableFoundError means the selector matched nothing. The site returns
// an error page or a changed layout when this happens.
type NoTableFoundError struct {
	Selector Selector
}

func (e *NoTableFoundError) Error() string {
	return fmt.Sprintf("decode: no table matching %s", e.Selector)
}

// Parse reads a document once so several tables can be decoded from it.
func Parse(markup io.Reader) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(markup)
	if err != nil {
		return nil, fmt.Errorf("parsing html: %w", err)
	}
	return doc, nil
}

// Decode extracts rows from one table. A cell yields, in order of
// preference, its data-order attribute, the id embedded in its link, or its
// stripped text. Rows must have exactly len(schema)-1 cells before the
// identifier is appended.
func Decode(markup io.Reader, schema []string, sel Selector, opts Options) (*Result, error) {
	doc, err := Parse(markup)
	if err != nil {
		return nil, err
	}
	return DecodeDocument(doc, schema, sel, opts)
}

// DecodeDocument is Decode over an already parsed document.
func DecodeDocument(doc *goquery.Document, schema []string, sel Selector, opts Options) (*Result, error) {
	table, err := FindTable(doc, sel)
	if err != nil {
		return nil, err
	}
	acc := newAcceptor(schema, opts)
	skip := make(map[string]bool, len(opts.SkipLabels))
	for _, l := range opts.SkipLabels {
		skip[l] = true
	}

	rows(table, sel).Each(func(i int, tr *goquery.Selection) {
		tds := tr.Find("td")
		if tds.Length() == 0 {
			return
		}
		if skip[strings.TrimSpace(tds.First().Text())] {
			return
		}
		var cells RawRow
		tds.Each(func(_ int, td *goquery.Selection) {
			cells = append(cells, cellValues(td, opts.KeepLinkText)...)
		})
		acc.offer(i, cells)
	})
	return acc.result(), nil
}

// FindTable applies the table part of a selector.
func FindTable(doc *goquery.Document, sel Selector) (*goquery.Selection, error) {
	query := "table"
	if sel.ID != "" {
		query = fmt.Sprintf("table[id=%q]", sel.ID)
	}
	tables := doc.Find(query)
	n := tables.Length()
	idx := sel.Index
	if idx < 0 {
		idx += n
	}
	if n == 0 || idx < 0 || idx >= n {
		return nil, &NoTableFoundError{Selector: sel}
	}
	return tables.Eq(idx), nil
}

// Headers returns the header texts of the selected table, in order.
func Headers(doc *goquery.Document, sel Selector) ([]string, error) {
	table, err := FindTable(doc, sel)
	if err != nil {
		return nil, err
	}
	head := table.Find("thead tr").First()
	if head.Length() == 0 {
		head = table.Find("tr").First()
	}
	var out []string
	head.Find("th").Each(func(_ int, th *goquery.Selection) {
		if t := strings.TrimSpace(th.Text()); t != "" {
			out = append(out, t)
		}
	})
	return out, nil
}

func rows(table *goquery.Selection, sel Selector) *goquery.Selection {
	rs := table.Find(sel.rows())
	if sel.SkipRows > 0 {
		if sel.SkipRows >= rs.Length() {
			return rs.Slice(0, 0)
		}
		rs = rs.Slice(sel.SkipRows, rs.Length())
	}
	return rs
}

func cellValues(td *goquery.Selection, keepLinkText bool) []string {
	if v, ok := td.Attr("data-order"); ok {
		return []string{strings.TrimSpace(v)}
	}
	text := cellText(td)
	if a := td.Find("a").First(); a.Length() > 0 {
		href, ok := a.Attr("href")
		id := "-"
		if ok {
			if _, got := ClassifyLink(href); got != "" {
				id = got
			}
		}
		if keepLinkText {
			return []string{id, text}
		}
		return []string{id}
	}
	return []string{text}
}

// cellText is the visible text with runs of whitespace collapsed.
func cellText(s *goquery.Selection) string {
	return strings.Join(strings.Fields(s.Text()), " ")
}

// acceptor enforces the width and duplicate rules shared by every decoder.
type acceptor struct {
	width      int
	identifier string
	dedupeAt   int
	prev       string
	res        Result
}

func newAcceptor(schema []string, opts Options) *acceptor {
	a := &acceptor{width: len(schema) - 1, identifier: opts.Identifier, dedupeAt: -1}
	if opts.DedupeColumn != "" {
		for i, c := range schema {
			if c == opts.DedupeColumn {
				a.dedupeAt = i
				break
			}
		}
	}
	return a
}

func (a *acceptor) reject(i int, reason RejectReason, cells int, detail string) {
	a.res.Rejected = append(a.res.Rejected, Rejection{Row: i, Reason: reason, Cells: cells, Detail: detail})
}

func (a *acceptor) offer(i int, cells RawRow) bool {
	if len(cells) != a.width {
		a.reject(i, RejectCellCount, len(cells), fmt.Sprintf("want %d cells", a.width))
		return false
	}
	if a.dedupeAt >= 0 && a.dedupeAt < len(cells) {
		key := cells[a.dedupeAt]
		if key != "" && key == a.prev {
			a.reject(i, RejectDuplicate, len(cells), key)
			return false
		}
		a.prev = key
	}
	row := make(RawRow, 0, a.width+1)
	row = append(row, cells...)
	row = append(row, a.identifier)
	a.res.Rows = append(a.res.Rows, row)
	return true
}

func (a *acceptor) result() *Result {
	r := a.res
	return &r
}
