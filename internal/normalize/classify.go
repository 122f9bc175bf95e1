// Package normalize rewrites AI-generated form values into a mapping that
// can be written verbatim into a specific PDF form.
//
// Normalization is split in two steps: every field name is first classified
// into a closed set of roles (Classify), then a fixed sequence of rules is
// applied per role (Normalizer.Normalize). The naming conventions that drive
// classification live in Rules and can be replaced per form.
package normalize

import (
	"regexp"
	"strconv"
	"strings"
)

// Role is the primary role of a form field.
type Role int

const (
	// RoleText is a plain text field with no special rule.
	RoleText Role = iota
	// RoleMonth holds a month that is written as two digits.
	RoleMonth
	// RoleYearDigit holds one digit of a year split across four fields.
	RoleYearDigit
)

// String returns the role name.
func (r Role) String() string {
	switch r {
	case RoleMonth:
		return "month"
	case RoleYearDigit:
		return "year-digit"
	default:
		return "text"
	}
}

// Field is a classified form field.
type Field struct {
	Name string
	Role Role

	// YearBase and YearPos are set for RoleYearDigit: the shared base name
	// of the group and the 1-based digit position.
	YearBase string
	YearPos  int

	// Entity, EntityIndex and EntitySlot describe membership in a repeated
	// entity block (seller 1, seller 2). Entity is empty when the field is
	// not part of one.
	Entity      string
	EntityIndex int
	EntitySlot  string
}

// InEntity reports whether the field belongs to a repeated entity block.
func (f Field) InEntity() bool {
	return f.Entity != ""
}

// Classify assigns a role to each distinct name in fields, preserving the
// order of first occurrence. A year-digit candidate only keeps its role when
// all four positions of its base are present in the form.
func (r *Rules) Classify(fields []string) []Field {
	names := dedupe(fields)
	out := make([]Field, 0, len(names))

	// base -> positions seen
	groups := make(map[string]map[int]bool)

	for _, name := range names {
		f := Field{Name: name, Role: RoleText}

		if base, pos, ok := r.matchYearDigit(name); ok {
			f.Role = RoleYearDigit
			f.YearBase = base
			f.YearPos = pos
			if groups[base] == nil {
				groups[base] = make(map[int]bool)
			}
			groups[base][pos] = true
		} else if r.Month != nil && r.Month.MatchString(name) {
			f.Role = RoleMonth
		}

		if entity, idx, slot, ok := r.matchEntity(r.entityName(name)); ok {
			f.Entity = entity
			f.EntityIndex = idx
			f.EntitySlot = slot
		}

		out = append(out, f)
	}

	for i := range out {
		if out[i].Role != RoleYearDigit {
			continue
		}
		if len(groups[out[i].YearBase]) != 4 {
			out[i].Role = RoleText
			out[i].YearBase = ""
			out[i].YearPos = 0
		}
	}

	return out
}

// GenerationTargets returns the names a value generator should be asked to
// fill: every field except year digits, with each complete year-digit group
// replaced by its base name at the position of its first digit.
func (r *Rules) GenerationTargets(fields []string) []string {
	var targets []string
	seenBase := make(map[string]bool)
	for _, f := range r.Classify(fields) {
		if f.Role != RoleYearDigit {
			targets = append(targets, f.Name)
			continue
		}
		if seenBase[f.YearBase] {
			continue
		}
		seenBase[f.YearBase] = true
		targets = append(targets, f.YearBase)
	}
	return targets
}

func (r *Rules) matchYearDigit(name string) (string, int, bool) {
	if r.YearDigit == nil {
		return "", 0, false
	}
	m := r.YearDigit.FindStringSubmatch(name)
	if m == nil {
		return "", 0, false
	}
	baseIdx := r.YearDigit.SubexpIndex("base")
	posIdx := r.YearDigit.SubexpIndex("pos")
	if baseIdx < 0 || posIdx < 0 {
		return "", 0, false
	}
	pos, err := strconv.Atoi(m[posIdx])
	if err != nil || pos < 1 || pos > 4 {
		return "", 0, false
	}
	base := strings.TrimSpace(m[baseIdx])
	if base == "" {
		return "", 0, false
	}
	return base, pos, true
}

func (r *Rules) matchEntity(name string) (string, int, string, bool) {
	for _, re := range r.Entities {
		loc := re.FindStringSubmatchIndex(name)
		if loc == nil {
			continue
		}
		idxGroup := re.SubexpIndex("index")
		if idxGroup < 0 || loc[2*idxGroup] < 0 {
			continue
		}
		start, end := loc[2*idxGroup], loc[2*idxGroup+1]
		idx, err := strconv.Atoi(name[start:end])
		if err != nil {
			continue
		}

		entity := ""
		if g := re.SubexpIndex("entity"); g >= 0 && loc[2*g] >= 0 {
			entity = strings.ToLower(strings.TrimSpace(name[loc[2*g]:loc[2*g+1]]))
		}
		if entity == "" {
			entity = "entity"
		}

		slot := canonicalSlot(name[:start] + name[end:])
		return entity, idx, slot, true
	}
	return "", 0, "", false
}

// entityName returns the alias target of name, or name itself.
func (r *Rules) entityName(name string) string {
	if len(r.EntityAliases) == 0 {
		return name
	}
	key := canonicalSlot(name)
	for alias, target := range r.EntityAliases {
		if canonicalSlot(alias) == key {
			return target
		}
	}
	return name
}

var slotSeparators = regexp.MustCompile(`[\s_\-.]+`)

// canonicalSlot lowercases a name and collapses separator runs so that
// "seller1_name" and "Seller 2 name" map to comparable slots.
func canonicalSlot(s string) string {
	s = slotSeparators.ReplaceAllString(strings.ToLower(s), "_")
	return strings.Trim(s, "_")
}

func dedupe(fields []string) []string {
	seen := make(map[string]bool, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}
