package normalize

import (
	"sort"
	"strings"
)

var monthNumbers = map[string]string{
	"january": "01", "jan": "01",
	"february": "02", "feb": "02",
	"march": "03", "mar": "03",
	"april": "04", "apr": "04",
	"may":  "05",
	"june": "06", "jun": "06",
	"july": "07", "jul": "07",
	"august": "08", "aug": "08",
	"september": "09", "sep": "09", "sept": "09",
	"october": "10", "oct": "10",
	"november": "11", "nov": "11",
	"december": "12", "dec": "12",
}

// Normalizer applies the field rules of a Rules set. It holds no mutable
// state and is safe for concurrent use.
type Normalizer struct {
	rules *Rules
}

// New creates a Normalizer. A nil rules uses DefaultRules.
func New(rules *Rules) *Normalizer {
	if rules == nil {
		rules = DefaultRules()
	}
	return &Normalizer{rules: rules}
}

// Rules returns the rules the normalizer was built with.
func (n *Normalizer) Rules() *Rules {
	return n.rules
}

var defaultNormalizer = New(nil)

// Normalize runs the default rules. See Normalizer.Normalize.
func Normalize(fields []string, raw map[string]string) map[string]string {
	return defaultNormalizer.Normalize(fields, raw)
}

// Normalize maps raw candidate values onto the form's field set.
//
// Fields missing from raw first receive their default, except year digits.
// Then the rules run in a fixed order: month names become two digits, year
// values are split across digit groups, repeated entity blocks that duplicate
// the first block are cleared, and year digits still missing are backfilled.
// The result has exactly one entry per distinct name in fields; raw entries
// for unknown names are dropped. Normalize never fails: malformed values are
// left as they are and missing values get a deterministic default.
//
// A repeated entity block whose fields are all missing or blank is cleared
// instead of backfilled.
//
// Normalizing an already normalized map returns it unchanged.
func (n *Normalizer) Normalize(fields []string, raw map[string]string) map[string]string {
	classified := n.rules.Classify(fields)
	groups, digitNames := collectYearGroups(classified)

	work := make(map[string]string, len(raw)+len(classified))
	for k, v := range raw {
		work[k] = v
	}

	missing := n.backfillText(classified, groups, work)
	n.applyMonths(classified, work)
	n.applyYearSplit(groups, sourceKeys(classified, work, digitNames), work)
	n.applyEntitySuppression(classified, work, missing)

	out := make(map[string]string, len(classified))
	for _, f := range classified {
		if v, ok := work[f.Name]; ok {
			out[f.Name] = v
			continue
		}
		out[f.Name] = n.rules.fallbackFor(f)
	}
	return out
}

// Default returns the backfill value for a single field name as it would be
// classified inside fields.
func (n *Normalizer) Default(fields []string, name string) string {
	for _, f := range n.rules.Classify(fields) {
		if f.Name == name {
			return n.rules.fallbackFor(f)
		}
	}
	return n.rules.fallbackFor(Field{Name: name})
}

// MonthNumber converts a month name or abbreviation to its two-digit form.
func MonthNumber(v string) (string, bool) {
	key := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(v)), ".")
	num, ok := monthNumbers[key]
	return num, ok
}

func (n *Normalizer) applyMonths(fields []Field, work map[string]string) {
	for _, f := range fields {
		if f.Role != RoleMonth {
			continue
		}
		v, ok := work[f.Name]
		if !ok {
			continue
		}
		if num, ok := MonthNumber(v); ok {
			work[f.Name] = num
		}
	}
}

// yearGroup is a complete four-way digit group.
type yearGroup struct {
	base   string
	digits [4]string // field names by position
}

// claims reports whether name holds the whole year of g: the base name
// itself or a name that differs from it only in case and separators.
func (g *yearGroup) claims(name string) bool {
	return name == g.base || canonicalSlot(name) == canonicalSlot(g.base)
}

func (g *yearGroup) joined(work map[string]string) string {
	var b strings.Builder
	for _, name := range g.digits {
		b.WriteString(work[name])
	}
	return b.String()
}

func collectYearGroups(fields []Field) ([]*yearGroup, map[string]bool) {
	byBase := make(map[string]*yearGroup)
	var groups []*yearGroup
	digitNames := make(map[string]bool)

	for _, f := range fields {
		if f.Role != RoleYearDigit {
			continue
		}
		g, ok := byBase[f.YearBase]
		if !ok {
			g = &yearGroup{base: f.YearBase}
			byBase[f.YearBase] = g
			groups = append(groups, g)
		}
		g.digits[f.YearPos-1] = f.Name
		digitNames[f.Name] = true
	}
	return groups, digitNames
}

// backfillText gives every missing field except year digits its default and
// returns the names it filled. A field that holds the whole year of digit
// groups takes the year those groups already show, so the split never
// overwrites digits with a default.
func (n *Normalizer) backfillText(fields []Field, groups []*yearGroup, work map[string]string) map[string]bool {
	missing := make(map[string]bool)
	for _, f := range fields {
		if f.Role == RoleYearDigit {
			continue
		}
		if _, ok := work[f.Name]; !ok {
			missing[f.Name] = true
		}
	}
	for _, f := range fields {
		if missing[f.Name] {
			work[f.Name] = n.yearAwareDefault(f, groups, work)
		}
	}
	return missing
}

func (n *Normalizer) yearAwareDefault(f Field, groups []*yearGroup, work map[string]string) string {
	def := n.rules.fallbackFor(f)

	year := ""
	allFilled, agree := true, true
	for _, g := range groups {
		if !g.claims(f.Name) {
			continue
		}
		if !digitsFilled(g, work) {
			allFilled = false
			continue
		}
		switch v := g.joined(work); {
		case year == "":
			year = v
		case year != v:
			agree = false
		}
	}

	switch {
	case year == "":
		return def
	case allFilled && agree:
		return year
	default:
		return n.rules.notYear(def)
	}
}

// notYear returns v, or a value that cannot be taken for a year.
func (r *Rules) notYear(v string) string {
	if !isFourDigits(v) {
		return v
	}
	if !isFourDigits(r.Placeholder) {
		return r.Placeholder
	}
	return ""
}

// sourceKeys lists the names a year may be read from: form fields first,
// then the remaining raw keys, each part sorted. Year digits are excluded.
func sourceKeys(fields []Field, work map[string]string, digitNames map[string]bool) []string {
	form := make(map[string]bool, len(fields))
	var keys []string
	for _, f := range fields {
		if digitNames[f.Name] {
			continue
		}
		form[f.Name] = true
		keys = append(keys, f.Name)
	}
	sort.Strings(keys)

	var rest []string
	for k := range work {
		if !form[k] && !digitNames[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(keys, rest...)
}

func (n *Normalizer) applyYearSplit(groups []*yearGroup, keys []string, work map[string]string) {
	for _, g := range groups {
		src, ok := n.yearSource(g, keys, work)
		if !ok {
			continue
		}
		for i, name := range g.digits {
			work[name] = src[i : i+1]
		}
	}
}

// yearSource finds the four-digit value to split across g. A value under a
// name that holds the whole year wins. Otherwise, when the digits are not
// already filled, the first four-digit value under a key containing a year
// hint is used.
func (n *Normalizer) yearSource(g *yearGroup, keys []string, work map[string]string) (string, bool) {
	for _, k := range keys {
		if !g.claims(k) {
			continue
		}
		if v := strings.TrimSpace(work[k]); isFourDigits(v) {
			return v, true
		}
	}

	if digitsFilled(g, work) {
		return "", false
	}

	for _, k := range keys {
		lower := strings.ToLower(k)
		for _, hint := range n.rules.YearSourceHints {
			if hint == "" || !strings.Contains(lower, strings.ToLower(hint)) {
				continue
			}
			if v := strings.TrimSpace(work[k]); isFourDigits(v) {
				return v, true
			}
		}
	}
	return "", false
}

func digitsFilled(g *yearGroup, work map[string]string) bool {
	for _, name := range g.digits {
		v := work[name]
		if len(v) != 1 || v[0] < '0' || v[0] > '9' {
			return false
		}
	}
	return true
}

func (n *Normalizer) applyEntitySuppression(fields []Field, work map[string]string, missing map[string]bool) {
	// kind -> index -> slot -> field
	blocks := make(map[string]map[int]map[string]Field)
	var kinds []string

	for _, f := range fields {
		if !f.InEntity() {
			continue
		}
		byIndex, ok := blocks[f.Entity]
		if !ok {
			byIndex = make(map[int]map[string]Field)
			blocks[f.Entity] = byIndex
			kinds = append(kinds, f.Entity)
		}
		if byIndex[f.EntityIndex] == nil {
			byIndex[f.EntityIndex] = make(map[string]Field)
		}
		if _, dup := byIndex[f.EntityIndex][f.EntitySlot]; !dup {
			byIndex[f.EntityIndex][f.EntitySlot] = f
		}
	}

	for _, kind := range kinds {
		byIndex := blocks[kind]
		first, ok := byIndex[1]
		if !ok {
			continue
		}

		indexes := make([]int, 0, len(byIndex))
		for idx := range byIndex {
			if idx > 1 {
				indexes = append(indexes, idx)
			}
		}
		sort.Ints(indexes)

		for _, idx := range indexes {
			block := byIndex[idx]
			if !n.duplicatesBlock(first, block, work) && !blankBlock(block, work, missing) {
				continue
			}
			for _, f := range block {
				work[f.Name] = ""
			}
		}
	}
}

// duplicatesBlock reports whether every slot of block holds the same value
// as the corresponding slot of first. A field without an entry compares as
// the value backfill would give it, so the outcome does not change once
// the map has been backfilled.
func (n *Normalizer) duplicatesBlock(first, block map[string]Field, work map[string]string) bool {
	for slot, f := range block {
		if n.effective(f, work) != n.slotValue(first, slot, work) {
			return false
		}
	}
	for slot, f := range first {
		if n.effective(f, work) != n.slotValue(block, slot, work) {
			return false
		}
	}
	return true
}

func (n *Normalizer) slotValue(block map[string]Field, slot string, work map[string]string) string {
	f, ok := block[slot]
	if !ok {
		return ""
	}
	return n.effective(f, work)
}

func (n *Normalizer) effective(f Field, work map[string]string) string {
	if v, ok := work[f.Name]; ok {
		return v
	}
	return n.rules.fallbackFor(f)
}

// blankBlock reports whether no field of block got a non-blank value from
// the caller. Defaults assigned by backfillText do not count.
func blankBlock(block map[string]Field, work map[string]string, missing map[string]bool) bool {
	for _, f := range block {
		if !missing[f.Name] && strings.TrimSpace(work[f.Name]) != "" {
			return false
		}
	}
	return true
}

func (r *Rules) fallbackFor(f Field) string {
	if f.Role == RoleYearDigit && isFourDigits(r.DefaultYear) && f.YearPos >= 1 && f.YearPos <= 4 {
		return r.DefaultYear[f.YearPos-1 : f.YearPos]
	}
	lower := strings.ToLower(f.Name)
	for _, fb := range r.Fallbacks {
		for _, kw := range fb.Keywords {
			if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
				return fb.Value
			}
		}
	}
	return r.Placeholder
}

func isFourDigits(s string) bool {
	if len(s) != 4 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
