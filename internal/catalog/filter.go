package catalog

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// Query parameter names used by the terminal.
const (
	ParamIDs      = "id"
	ParamSKU      = "codigo_barras"
	ParamName     = "nome"
	ParamPage     = "paginaAtual"
	ParamPageSize = "totalItem"
)

const (
	DefaultPage     = 1
	DefaultPageSize = 100
	MaxPageSize     = 100
)

// Kind identifies which lookup a Filter performs.
type Kind int

const (
	KindAll Kind = iota
	KindIDs
	KindSKU
	KindName
)

func (k Kind) String() string {
	switch k {
	case KindIDs:
		return "ids"
	case KindSKU:
		return "sku"
	case KindName:
		return "name"
	default:
		return "all"
	}
}

// Filter selects which catalog entries to export. Build one with ByIDs, BySKU,
// ByName or All.
type Filter struct {
	Kind     Kind
	IDs      []int64
	SKU      string
	Name     string
	Page     int
	PageSize int
}

// ByIDs selects products by id.
func ByIDs(ids ...int64) Filter {
	return Filter{Kind: KindIDs, IDs: ids}
}

// BySKU selects products whose SKU equals sku.
func BySKU(sku string) Filter {
	return Filter{Kind: KindSKU, SKU: sku}
}

// ByName selects products by free text; barcode-looking text is treated as a SKU.
func ByName(text string) Filter {
	return Filter{Kind: KindName, Name: text}
}

// All lists the catalog.
func All() Filter {
	return Filter{Kind: KindAll}
}

// WithPage returns a copy of f with pagination applied.
func (f Filter) WithPage(page, pageSize int) Filter {
	f.Page = page
	f.PageSize = pageSize
	return f
}

// normalized fills pagination defaults and caps the page size.
func (f Filter) normalized() Filter {
	if f.Page < 1 {
		f.Page = DefaultPage
	}
	if f.PageSize < 1 {
		f.PageSize = DefaultPageSize
	}
	if f.PageSize > MaxPageSize {
		f.PageSize = MaxPageSize
	}
	return f
}

// skuPattern matches barcode-like search text: digits, optionally one hyphenated digit group.
var skuPattern = regexp.MustCompile(`^[0-9]+(-[0-9]+)?$`)

// looksLikeSKU reports whether free text should be looked up as a SKU.
func looksLikeSKU(text string) bool {
	return skuPattern.MatchString(text)
}

// ParseQuery builds a Filter from request parameters.
// Precedence: id, then codigo_barras, then nome. Empty parameters are ignored.
func ParseQuery(values url.Values) Filter {
	var f Filter
	switch {
	case strings.TrimSpace(values.Get(ParamIDs)) != "":
		f = ByIDs(parseIDs(values.Get(ParamIDs))...)
	case strings.TrimSpace(values.Get(ParamSKU)) != "":
		f = BySKU(strings.TrimSpace(values.Get(ParamSKU)))
	case strings.TrimSpace(values.Get(ParamName)) != "":
		f = ByName(strings.TrimSpace(values.Get(ParamName)))
	default:
		f = All()
	}
	return f.WithPage(atoiOrZero(values.Get(ParamPage)), atoiOrZero(values.Get(ParamPageSize)))
}

// parseIDs reads a comma separated id list, dropping anything that is not a positive integer.
func parseIDs(s string) []int64 {
	parts := strings.Split(s, ",")
	ids := make([]int64, 0, len(parts))
	seen := make(map[int64]bool, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil || id <= 0 || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}

func atoiOrZero(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}
