package supabase

import (
	"net/url"
	"strconv"
	"strings"
)

// ============================================================
// PostgREST query helpers
// ============================================================

const (
	preferRepresentation = "return=representation"
	preferCount          = "count=exact"
)

// query builds a PostgREST path: table?col=op.value&...
type query struct {
	table  string
	values url.Values
}

func from(table string) *query {
	return &query{table: table, values: url.Values{}}
}

func (q *query) eq(col, v string) *query {
	q.values.Add(col, "eq."+v)
	return q
}

func (q *query) op(col, op, v string) *query {
	q.values.Add(col, op+"."+v)
	return q
}

func (q *query) selectCols(cols string) *query {
	q.values.Set("select", cols)
	return q
}

func (q *query) order(expr string) *query {
	q.values.Set("order", expr)
	return q
}

func (q *query) limit(n int) *query {
	q.values.Set("limit", strconv.Itoa(n))
	return q
}

// search matches a case-insensitive substring on any of cols.
func (q *query) search(term string, cols ...string) *query {
	term = strings.NewReplacer(",", "", "(", "", ")", "", "*", "").Replace(term)
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = c + ".ilike.*" + term + "*"
	}
	q.values.Set("or", "("+strings.Join(parts, ",")+")")
	return q
}

func (q *query) String() string {
	if len(q.values) == 0 {
		return q.table
	}
	return q.table + "?" + q.values.Encode()
}

// totalFromContentRange parses "0-24/3573" or "*/0".
func totalFromContentRange(h string) (int, bool) {
	i := strings.LastIndexByte(h, '/')
	if i < 0 {
		return 0, false
	}
	n, err := strconv.Atoi(h[i+1:])
	if err != nil {
		return 0, false
	}
	return n, true
}
