package chapters

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"
	"unicode"

	"github.com/pelletier/go-toml/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/listenupapp/listenup-player/internal/domain"
)

// MatchMode selects how a rule compares chapter titles.
type MatchMode string

// Supported match modes. Titles and patterns are folded before comparison,
// except for regex which runs against the folded title as written.
const (
	MatchContains MatchMode = "contains"
	MatchPrefix   MatchMode = "prefix"
	MatchExact    MatchMode = "exact"
	MatchRegex    MatchMode = "regex"
)

// Rule marks chapters whose title matches as not-to-be-played.
type Rule struct {
	Match   string    `toml:"match"`
	Mode    MatchMode `toml:"mode"`
	Podcast string    `toml:"podcast"` // optional; restricts the rule to one podcast title

	folded  string
	podcast string
	re      *regexp.Regexp
}

// RuleSet is an ordered list of auto-skip rules.
type RuleSet struct {
	Rules []Rule `toml:"rule"`
}

// LoadRules reads a TOML rule file. A blank path or a missing file yields an empty set.
//
//	[[rule]]
//	match = "sponsor"
//	mode = "contains"
func LoadRules(path string) (*RuleSet, error) {
	if path == "" {
		return &RuleSet{}, nil
	}

	data, err := os.ReadFile(path) //#nosec G304 -- rule file path comes from configuration
	if errors.Is(err, fs.ErrNotExist) {
		return &RuleSet{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read auto-skip rules: %w", err)
	}

	var rs RuleSet
	if err := toml.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("parse auto-skip rules: %w", err)
	}
	if err := rs.compile(); err != nil {
		return nil, err
	}
	return &rs, nil
}

// NewRuleSet builds a compiled rule set in code.
func NewRuleSet(rules ...Rule) (*RuleSet, error) {
	rs := &RuleSet{Rules: rules}
	if err := rs.compile(); err != nil {
		return nil, err
	}
	return rs, nil
}

func (rs *RuleSet) compile() error {
	for i := range rs.Rules {
		r := &rs.Rules[i]
		if r.Mode == "" {
			r.Mode = MatchContains
		}
		if strings.TrimSpace(r.Match) == "" {
			return fmt.Errorf("auto-skip rule %d: match is empty", i+1)
		}
		r.folded = Fold(r.Match)
		r.podcast = Fold(r.Podcast)

		switch r.Mode {
		case MatchContains, MatchPrefix, MatchExact:
		case MatchRegex:
			re, err := regexp.Compile(r.Match)
			if err != nil {
				return fmt.Errorf("auto-skip rule %d: %w", i+1, err)
			}
			r.re = re
		default:
			return fmt.Errorf("auto-skip rule %d: unknown mode %q", i+1, r.Mode)
		}
	}
	return nil
}

// Len returns the number of rules.
func (rs *RuleSet) Len() int {
	if rs == nil {
		return 0
	}
	return len(rs.Rules)
}

// Matches reports whether any rule applies to the chapter title.
func (rs *RuleSet) Matches(podcast, title string) bool {
	if rs.Len() == 0 {
		return false
	}
	foldedTitle := Fold(title)
	foldedPodcast := Fold(podcast)

	for i := range rs.Rules {
		r := &rs.Rules[i]
		if r.podcast != "" && r.podcast != foldedPodcast {
			continue
		}
		if r.matches(foldedTitle) {
			return true
		}
	}
	return false
}

func (r *Rule) matches(title string) bool {
	switch r.Mode {
	case MatchPrefix:
		return strings.HasPrefix(title, r.folded)
	case MatchExact:
		return title == r.folded
	case MatchRegex:
		return r.re.MatchString(title)
	default:
		return strings.Contains(title, r.folded)
	}
}

// Apply flips ShouldPlay to false on matching chapters that are still playable
// and returns the indices it changed.
func (rs *RuleSet) Apply(podcast string, chapters []domain.Chapter) []int {
	var changed []int
	for i := range chapters {
		if !chapters[i].ShouldPlay {
			continue
		}
		if rs.Matches(podcast, chapters[i].Title) {
			chapters[i].ShouldPlay = false
			changed = append(changed, i)
		}
	}
	return changed
}

// Fold normalizes a title for comparison: accents stripped, case folded,
// whitespace collapsed.
func Fold(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}
	return strings.Join(strings.Fields(cases.Fold().String(stripped)), " ")
}
