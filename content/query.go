package content

import (
	"regexp"
	"strings"
	"time"
)

const (
	DefaultPage     = 1
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Order selects the listing sort.
type Order string

const (
	OrderNewest  Order = "newest"
	OrderOldest  Order = "oldest"
	OrderPopular Order = "popular"
)

// ParseOrder maps unknown or empty values to OrderNewest.
func ParseOrder(raw string) Order {
	switch o := Order(raw); o {
	case OrderNewest, OrderOldest, OrderPopular:
		return o
	default:
		return OrderNewest
	}
}

// Sort returns the column and direction used for the order.
func (o Order) Sort() (column string, desc bool) {
	switch o {
	case OrderOldest:
		return "created_at", false
	case OrderPopular:
		return "views", true
	default:
		return "created_at", true
	}
}

// State selects live or soft deleted records.
type State int

const (
	StateLive State = iota
	StateDeleted
)

// Field names a counter column that can be incremented.
type Field string

// FieldViews is the view counter.
const FieldViews Field = "views"

// Filter is shared by the page query and the total count so both are
// computed over the same records.
type Filter struct {
	State  State
	Search string
	// Tags holds the search tokens matched against record tags. It is empty
	// for kinds without tag search and for empty searches.
	Tags []string
}

// Query is a filter plus sort and window.
type Query struct {
	Filter
	Skip  int
	Take  int
	Order Order
}

var tagSeparators = regexp.MustCompile(`[\s,]+`)

// Tokenize splits a search string on whitespace and commas.
func Tokenize(search string) []string {
	var tokens []string
	for _, s := range tagSeparators.Split(search, -1) {
		if s = strings.TrimSpace(s); s != "" {
			tokens = append(tokens, s)
		}
	}
	return tokens
}

// Compose builds the store query for a listing. maxTake clamps the window;
// zero means MaxPageSize.
func Compose(kind Kind, state State, skip, take int, order Order, search string, maxTake int) Query {
	if maxTake <= 0 {
		maxTake = MaxPageSize
	}
	if skip < 0 {
		skip = 0
	}
	if take <= 0 {
		take = DefaultPageSize
	}
	if take > maxTake {
		take = maxTake
	}

	f := Filter{State: state, Search: search}
	if kind.TagSearch {
		f.Tags = Tokenize(search)
	}

	return Query{
		Filter: f,
		Skip:   skip,
		Take:   take,
		Order:  ParseOrder(string(order)),
	}
}

// Matches evaluates the filter in memory. It mirrors the SQL built by the
// bun store and is used by the in-memory store.
func (f Filter) Matches(item *Item, tags []string) bool {
	if (f.State == StateLive) != item.Live() {
		return false
	}

	needle := strings.ToLower(f.Search)
	if strings.Contains(strings.ToLower(item.Title), needle) ||
		strings.Contains(strings.ToLower(item.Content), needle) {
		return true
	}

	for _, t := range f.Tags {
		for _, have := range tags {
			if t == have {
				return true
			}
		}
	}
	return false
}

// Less orders two items for the query. Ties fall back to the id so pages
// do not overlap.
func (q Query) Less(a, b *Item) bool {
	column, desc := q.Order.Sort()
	var cmp int
	switch column {
	case "views":
		cmp = compareInt(a.Views, b.Views)
	default:
		cmp = compareTime(a.CreatedAt, b.CreatedAt)
	}
	if cmp == 0 {
		return strings.Compare(a.ID.String(), b.ID.String()) < 0
	}
	if desc {
		return cmp > 0
	}
	return cmp < 0
}

func compareInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareTime(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	default:
		return 0
	}
}

// PageWindow converts a 1-based page and size into skip/take. Callers
// validate that both are positive and that page*pageSize fits in an int.
func PageWindow(page, pageSize int) (skip, take int) {
	return (page - 1) * pageSize, pageSize
}
