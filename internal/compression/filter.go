package compression

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// MinContentLength is the shortest content, in characters, that can survive
// filtering.
const MinContentLength = 3

// charsPerToken is the token estimate heuristic shared by the filter and
// the compressor.
const charsPerToken = 4

// NoiseFilter classifies message content as informative or noise.
type NoiseFilter struct {
	// boilerplate rules are stripped anywhere in the content
	boilerplate []*compiledRule
	// wholeMessage rules (pleasantries and acknowledgements) drop the message
	wholeMessage []*compiledRule
}

// compiledRule holds a compiled rule.
type compiledRule struct {
	Rule
	pattern *regexp.Regexp
}

// NewNoiseFilter compiles DefaultRules into a filter.
func NewNoiseFilter() *NoiseFilter {
	f, err := newNoiseFilter(DefaultRules())
	if err != nil {
		// The default table is a constant; failing to compile it is a programming error.
		panic(fmt.Sprintf("compression: default ruleset %s: %v", RulesetVersion, err))
	}
	return f
}

// newNoiseFilter compiles a rule table, failing fast on the first bad rule.
func newNoiseFilter(rules []Rule) (*NoiseFilter, error) {
	f := &NoiseFilter{}
	seen := make(map[string]bool, len(rules))

	for i, rule := range rules {
		if rule.ID == "" {
			return nil, fmt.Errorf("rule %d: ID is required", i)
		}
		if seen[rule.ID] {
			return nil, fmt.Errorf("rule %s: duplicate ID", rule.ID)
		}
		seen[rule.ID] = true

		if rule.Pattern == "" {
			return nil, fmt.Errorf("rule %s: pattern is required", rule.ID)
		}
		pattern, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return nil, fmt.Errorf("rule %s: invalid pattern: %w", rule.ID, err)
		}

		compiled := &compiledRule{Rule: rule, pattern: pattern}
		switch rule.Category {
		case CategoryBoilerplate:
			f.boilerplate = append(f.boilerplate, compiled)
		case CategoryPleasantry, CategoryAcknowledgment:
			f.wholeMessage = append(f.wholeMessage, compiled)
		default:
			return nil, fmt.Errorf("rule %s: unknown category %q", rule.ID, rule.Category)
		}
	}

	return f, nil
}

// Filter returns the cleaned content and true when the message is worth
// keeping, or "" and false when the whole message is noise.
func (f *NoiseFilter) Filter(content string) (string, bool) {
	cleaned := strings.TrimSpace(f.stripBoilerplate(content))

	if f.matchWholeMessage(cleaned) != "" {
		return "", false
	}

	if utf8.RuneCountInString(cleaned) < MinContentLength {
		return "", false
	}

	return cleaned, true
}

// IsNoise reports whether the whole message would be dropped.
func (f *NoiseFilter) IsNoise(content string) bool {
	_, ok := f.Filter(content)
	return !ok
}

// MatchedRule returns the ID of the whole-message rule that drops content, or
// "" if none applies. Boilerplate is stripped first, as in Filter.
func (f *NoiseFilter) MatchedRule(content string) string {
	return f.matchWholeMessage(strings.TrimSpace(f.stripBoilerplate(content)))
}

// TokenSavings estimates how many tokens filtering saved. Pass "" as filtered
// when the message was dropped.
func (f *NoiseFilter) TokenSavings(original, filtered string) int {
	saved := EstimateTextTokens(original) - EstimateTextTokens(filtered)
	if saved < 0 {
		return 0
	}
	return saved
}

// stripBoilerplate removes boilerplate until none is left. A single pass can
// expose a wrapper that was split around a nested one.
func (f *NoiseFilter) stripBoilerplate(content string) string {
	for {
		stripped := content
		for _, rule := range f.boilerplate {
			stripped = rule.pattern.ReplaceAllLiteralString(stripped, "")
		}
		if stripped == content {
			return content
		}
		content = stripped
	}
}

// matchWholeMessage returns the first pleasantry or acknowledgement rule that
// matches the trimmed content.
func (f *NoiseFilter) matchWholeMessage(cleaned string) string {
	for _, rule := range f.wholeMessage {
		if rule.pattern.MatchString(cleaned) {
			return rule.ID
		}
	}
	return ""
}

// EstimateTextTokens estimates tokens for text at ~4 characters per token,
// rounding up.
func EstimateTextTokens(text string) int {
	return (len(text) + charsPerToken - 1) / charsPerToken
}
