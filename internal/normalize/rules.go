package normalize

import (
	"errors"
	"os"
	"regexp"

	"github.com/m-mizutani/goerr/v2"
	"gopkg.in/yaml.v3"
)

// ErrInvalidRules is returned by LoadRules when a rules file cannot be used.
var ErrInvalidRules = errors.New("invalid normalization rules")

const (
	defaultMonthPattern     = `(?i)month`
	defaultYearDigitPattern = `(?i)^(?P<base>.*(?:year|yr))[\s_\-]*(?:d|digit)?[\s_\-]*(?P<pos>[1-4])$`
	defaultYear             = "2025"
	defaultPlaceholder      = "N/A"
)

var defaultEntityPatterns = []string{
	// seller1_name, Buyer 2 address
	`(?i)^(?P<entity>seller|buyer|owner|party)[\s_\-]*(?P<index>[1-9])(?:[\s_\-]|$)`,
	// Seller print name 2, Sell date 2
	`(?i)^.*?\b(?P<entity>seller|sell|buyer|owner|party)\b.*?[\s_\-](?P<index>[1-9])$`,
}

// defaultEntityAliases name unnumbered first blocks on the sample forms.
func defaultEntityAliases() map[string]string {
	return map[string]string{
		"Print seller's name": "Seller print name 1",
	}
}

// Fallback is a backfill heuristic: a field whose lowercased name contains
// any of Keywords receives Value.
type Fallback struct {
	Keywords []string `yaml:"keywords"`
	Value    string   `yaml:"value"`
}

// Rules holds the naming conventions and defaults used by a Normalizer.
// The zero value recognizes nothing and backfills with an empty placeholder;
// use DefaultRules or LoadRules.
type Rules struct {
	// Month matches month fields.
	Month *regexp.Regexp
	// YearDigit matches year digit fields. It must define the named groups
	// "base" and "pos".
	YearDigit *regexp.Regexp
	// Entities match fields of repeated entity blocks. Each must define the
	// named group "index"; the optional group "entity" names the block kind.
	Entities []*regexp.Regexp
	// EntityAliases classify an unnumbered field as a numbered one for
	// entity matching, e.g. "Print seller's name" as "Seller print name 1".
	// Keys compare ignoring case and separators.
	EntityAliases map[string]string
	// YearSourceHints are substrings identifying a raw value that may hold
	// the year when no entry matches a digit group's base name.
	YearSourceHints []string
	// DefaultYear backfills year digit fields. Must be four digits.
	DefaultYear string
	// Fallbacks are tried in order during backfill.
	Fallbacks []Fallback
	// Placeholder is used when no fallback matches.
	Placeholder string
}

// DefaultRules returns the rules for the sample bill-of-sale style forms:
// "month" fields, "Year-1".."Year-4" or "year_d1".."year_d4" digit groups
// and numbered seller/buyer blocks.
func DefaultRules() *Rules {
	entities := make([]*regexp.Regexp, len(defaultEntityPatterns))
	for i, p := range defaultEntityPatterns {
		entities[i] = regexp.MustCompile(p)
	}
	return &Rules{
		Month:           regexp.MustCompile(defaultMonthPattern),
		YearDigit:       regexp.MustCompile(defaultYearDigitPattern),
		Entities:        entities,
		EntityAliases:   defaultEntityAliases(),
		YearSourceHints: []string{"year", "yr"},
		DefaultYear:     defaultYear,
		Fallbacks:       defaultFallbacks(),
		Placeholder:     defaultPlaceholder,
	}
}

func defaultFallbacks() []Fallback {
	return []Fallback{
		{Keywords: []string{"zip", "postal"}, Value: "90210"},
		{Keywords: []string{"state"}, Value: "CA"},
		{Keywords: []string{"phone", "tel"}, Value: "(555) 010-0100"},
		{Keywords: []string{"email", "e-mail"}, Value: "jane.doe@example.com"},
		{Keywords: []string{"month"}, Value: "03"},
		{Keywords: []string{"year", "yr"}, Value: defaultYear},
		{Keywords: []string{"date"}, Value: "03/15/" + defaultYear},
		{Keywords: []string{"day"}, Value: "15"},
		{Keywords: []string{"city"}, Value: "Springfield"},
		{Keywords: []string{"address", "addr", "street"}, Value: "123 Main St"},
		{Keywords: []string{"signature", "name"}, Value: "Jane Doe"},
		{Keywords: []string{"amount", "price", "total"}, Value: "100.00"},
	}
}

// rulesFile is the YAML layout accepted by LoadRules. Empty entries keep
// the defaults.
type rulesFile struct {
	MonthPattern     string            `yaml:"month_pattern"`
	YearDigitPattern string            `yaml:"year_digit_pattern"`
	EntityPatterns   []string          `yaml:"entity_patterns"`
	EntityAliases    map[string]string `yaml:"entity_aliases"`
	YearSourceHints  []string          `yaml:"year_source_hints"`
	DefaultYear      string            `yaml:"default_year"`
	Placeholder      string            `yaml:"placeholder"`
	Fallbacks        []Fallback        `yaml:"fallbacks"`
}

// LoadRules reads a YAML rules file and merges it over DefaultRules.
func LoadRules(path string) (*Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read rules file", goerr.V("path", path))
	}
	return ParseRules(data)
}

// ParseRules parses YAML rules and merges them over DefaultRules.
func ParseRules(data []byte) (*Rules, error) {
	var rf rulesFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, goerr.Wrap(ErrInvalidRules, "failed to parse rules", goerr.V("cause", err.Error()))
	}

	r := DefaultRules()

	if rf.MonthPattern != "" {
		re, err := regexp.Compile(rf.MonthPattern)
		if err != nil {
			return nil, goerr.Wrap(ErrInvalidRules, "bad month_pattern", goerr.V("cause", err.Error()))
		}
		r.Month = re
	}

	if rf.YearDigitPattern != "" {
		re, err := regexp.Compile(rf.YearDigitPattern)
		if err != nil {
			return nil, goerr.Wrap(ErrInvalidRules, "bad year_digit_pattern", goerr.V("cause", err.Error()))
		}
		if re.SubexpIndex("base") < 0 || re.SubexpIndex("pos") < 0 {
			return nil, goerr.Wrap(ErrInvalidRules, "year_digit_pattern needs (?P<base>) and (?P<pos>) groups")
		}
		r.YearDigit = re
	}

	if len(rf.EntityPatterns) > 0 {
		r.Entities = nil
		for _, p := range rf.EntityPatterns {
			re, err := regexp.Compile(p)
			if err != nil {
				return nil, goerr.Wrap(ErrInvalidRules, "bad entity pattern", goerr.V("pattern", p), goerr.V("cause", err.Error()))
			}
			if re.SubexpIndex("index") < 0 {
				return nil, goerr.Wrap(ErrInvalidRules, "entity pattern needs an (?P<index>) group", goerr.V("pattern", p))
			}
			r.Entities = append(r.Entities, re)
		}
	}

	// Aliases are merged over the defaults and must land in an entity block.
	for alias, target := range rf.EntityAliases {
		if _, _, _, ok := r.matchEntity(target); !ok {
			return nil, goerr.Wrap(ErrInvalidRules, "entity alias target matches no entity pattern",
				goerr.V("alias", alias), goerr.V("target", target))
		}
		r.EntityAliases[alias] = target
	}

	if len(rf.YearSourceHints) > 0 {
		r.YearSourceHints = rf.YearSourceHints
	}

	if rf.DefaultYear != "" {
		if !isFourDigits(rf.DefaultYear) {
			return nil, goerr.Wrap(ErrInvalidRules, "default_year must be four digits", goerr.V("default_year", rf.DefaultYear))
		}
		r.DefaultYear = rf.DefaultYear
	}

	if rf.Placeholder != "" {
		r.Placeholder = rf.Placeholder
	}

	if len(rf.Fallbacks) > 0 {
		r.Fallbacks = rf.Fallbacks
	}

	return r, nil
}
