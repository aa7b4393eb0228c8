// Package query turns raw URL query parameters into mongo filter, sort,
// projection and pagination specifications. Stages are pure: each returns a
// new Features value, so they compose in any order.
package query

import (
	"net/url"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DefaultLimit applies to product-style listings; reference-data listings
// (categories, brands, subcategories) use the smaller SmallLimit.
const (
	DefaultLimit = 50
	SmallLimit   = 5
)

// Keys consumed by the pipeline itself; everything else is a filter field.
var reservedKeys = map[string]struct{}{
	"page":    {},
	"limit":   {},
	"sort":    {},
	"fields":  {},
	"keyword": {},
}

var comparisonOps = map[string]string{
	"gt":  "$gt",
	"gte": "$gte",
	"lt":  "$lt",
	"lte": "$lte",
	"in":  "$in",
}

// Pagination describes the page window of a listing response.
type Pagination struct {
	CurrentPage   int64  `json:"currentPage"`
	Limit         int64  `json:"limit"`
	NumberOfPages int64  `json:"numberOfPages"`
	Next          *int64 `json:"next,omitempty"`
	Prev          *int64 `json:"prev,omitempty"`
}

// Features is the accumulated query specification.
type Features struct {
	values       url.Values
	base         bson.M
	filter       bson.M
	search       bson.M
	sort         bson.D
	projection   bson.M
	skip         int64
	limit        int64
	defaultLimit int64

	Pagination Pagination
}

// New builds an empty specification from raw query parameters.
func New(values url.Values) Features {
	return Features{
		values:       values,
		defaultLimit: DefaultLimit,
	}
}

// WithBaseFilter attaches a mandatory pre-filter, e.g. scoping subcategories
// to one parent category on a nested route.
func (f Features) WithBaseFilter(base bson.M) Features {
	f.base = base
	return f
}

// WithDefaultLimit overrides the page size used when the client sends none.
func (f Features) WithDefaultLimit(limit int64) Features {
	if limit > 0 {
		f.defaultLimit = limit
	}
	return f
}

// Filter treats every non-reserved query key as an equality or comparison
// condition. Keys of the form field[gt|gte|lt|lte|in] become mongo range
// operators; malformed entries are dropped rather than matching everything.
func (f Features) Filter() Features {
	filter := bson.M{}

	for key, values := range f.values {
		if len(values) == 0 {
			continue
		}
		field, op := splitOperatorKey(key)
		if field == "" {
			continue
		}
		if _, reserved := reservedKeys[field]; reserved {
			continue
		}

		value := values[0]
		if op == "" {
			filter[field] = coerceValue(value)
			continue
		}

		mongoOp, ok := comparisonOps[op]
		if !ok {
			continue
		}

		cond, hasCond := filter[field].(bson.M)
		if !hasCond {
			cond = bson.M{}
		}
		if mongoOp == "$in" {
			cond[mongoOp] = coerceList(value)
		} else {
			cond[mongoOp] = coerceValue(value)
		}
		filter[field] = cond
	}

	f.filter = filter
	return f
}

// Sort applies the comma-separated sort list, "-" prefix meaning descending.
// Defaults to newest-first.
func (f Features) Sort() Features {
	raw := strings.TrimSpace(f.values.Get("sort"))
	if raw == "" {
		f.sort = bson.D{{Key: "createdAt", Value: -1}}
		return f
	}

	sort := bson.D{}
	for _, field := range strings.Split(raw, ",") {
		field = strings.TrimSpace(field)
		if field == "" || field == "-" {
			continue
		}
		direction := 1
		if strings.HasPrefix(field, "-") {
			direction = -1
			field = field[1:]
		}
		sort = append(sort, bson.E{Key: field, Value: direction})
	}
	if len(sort) == 0 {
		sort = bson.D{{Key: "createdAt", Value: -1}}
	}

	f.sort = sort
	return f
}

// LimitFields builds the projection from the comma-separated fields list.
// A "-" prefix excludes a field; inclusion and exclusion cannot be mixed, so
// the first entry decides the mode. Default hides the version key.
func (f Features) LimitFields() Features {
	raw := strings.TrimSpace(f.values.Get("fields"))
	if raw == "" {
		f.projection = bson.M{"__v": 0}
		return f
	}

	projection := bson.M{}
	exclude := strings.HasPrefix(strings.TrimSpace(strings.Split(raw, ",")[0]), "-")
	for _, field := range strings.Split(raw, ",") {
		field = strings.TrimSpace(field)
		if field == "" || field == "-" {
			continue
		}
		if strings.HasPrefix(field, "-") {
			if exclude {
				projection[field[1:]] = 0
			}
			continue
		}
		if !exclude {
			projection[field] = 1
		}
	}
	if len(projection) == 0 {
		projection = bson.M{"__v": 0}
	}

	f.projection = projection
	return f
}

// Search adds a case-insensitive keyword match. Products match on title or
// description; every other entity matches on name.
func (f Features) Search(entity string) Features {
	keyword := strings.TrimSpace(f.values.Get("keyword"))
	if keyword == "" {
		return f
	}

	regex := primitive.Regex{Pattern: regexQuote(keyword), Options: "i"}
	if strings.EqualFold(entity, "product") {
		f.search = bson.M{"$or": bson.A{
			bson.M{"title": regex},
			bson.M{"description": regex},
		}}
	} else {
		f.search = bson.M{"name": regex}
	}
	return f
}

// Paginate resolves skip/limit and the pagination result from the given
// total. The total is the count of the collection scoped only by the
// mandatory base filter: query-parameter filters deliberately do not change
// the page-count denominator (known quirk, kept for compatibility).
func (f Features) Paginate(total int64) Features {
	page := parsePositive(f.values.Get("page"), 1)
	limit := parsePositive(f.values.Get("limit"), f.defaultLimit)

	f.skip = (page - 1) * limit
	f.limit = limit

	pagination := Pagination{
		CurrentPage:   page,
		Limit:         limit,
		NumberOfPages: (total + limit - 1) / limit,
	}
	if page*limit < total {
		next := page + 1
		pagination.Next = &next
	}
	if page > 1 {
		prev := page - 1
		pagination.Prev = &prev
	}

	f.Pagination = pagination
	return f
}

// FilterDocument merges the base filter, the query filters and the keyword
// search into the document passed to Find.
func (f Features) FilterDocument() bson.M {
	merged := bson.M{}
	for k, v := range f.base {
		merged[k] = v
	}
	for k, v := range f.filter {
		merged[k] = v
	}
	for k, v := range f.search {
		merged[k] = v
	}
	return merged
}

// FindOptions materializes sort, projection and the page window.
func (f Features) FindOptions() *options.FindOptions {
	opts := options.Find()
	if len(f.sort) > 0 {
		opts.SetSort(f.sort)
	}
	if len(f.projection) > 0 {
		opts.SetProjection(f.projection)
	}
	if f.limit > 0 {
		opts.SetSkip(f.skip).SetLimit(f.limit)
	}
	return opts
}

func splitOperatorKey(key string) (field, op string) {
	key = strings.TrimSpace(key)
	open := strings.IndexByte(key, '[')
	if open < 0 {
		return key, ""
	}
	if !strings.HasSuffix(key, "]") || open == 0 {
		return "", ""
	}
	return key[:open], key[open+1 : len(key)-1]
}

// coerceValue parses numbers and booleans so range conditions compare
// numerically instead of lexically.
func coerceValue(raw string) interface{} {
	raw = strings.TrimSpace(raw)
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return i
	}
	if fl, err := strconv.ParseFloat(raw, 64); err == nil {
		return fl
	}
	if b, err := strconv.ParseBool(raw); err == nil {
		return b
	}
	return raw
}

func coerceList(raw string) bson.A {
	parts := strings.Split(raw, ",")
	list := make(bson.A, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			list = append(list, coerceValue(part))
		}
	}
	return list
}

func parsePositive(raw string, fallback int64) int64 {
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || value < 1 {
		return fallback
	}
	return value
}

var regexMeta = strings.NewReplacer(
	`\`, `\\`, `.`, `\.`, `+`, `\+`, `*`, `\*`, `?`, `\?`,
	`(`, `\(`, `)`, `\)`, `[`, `\[`, `]`, `\]`, `{`, `\{`, `}`, `\}`,
	`^`, `\^`, `$`, `\$`, `|`, `\|`,
)

// regexQuote escapes the keyword so it is matched as a literal substring.
func regexQuote(keyword string) string {
	return regexMeta.Replace(keyword)
}
