package compression

// RulesetVersion identifies the pattern table returned by DefaultRules.
// Bump it whenever a rule is added, removed or changed.
const RulesetVersion = "2025.11.2"

// Category groups rules by how the filter applies them.
type Category string

const (
	// CategoryBoilerplate rules are stripped wherever they match.
	CategoryBoilerplate Category = "boilerplate"
	// CategoryPleasantry rules drop a message whose whole content is social filler.
	CategoryPleasantry Category = "pleasantry"
	// CategoryAcknowledgment rules drop a message that only confirms receipt.
	CategoryAcknowledgment Category = "acknowledgment"
)

// Rule is one entry in the noise pattern table.
type Rule struct {
	// ID is the unique identifier for this rule
	ID string

	// Category decides whether the pattern strips or drops
	Category Category

	// Pattern is an RE2 expression. Whole-message rules carry their own anchors.
	Pattern string

	// Description explains what this rule catches
	Description string
}

// DefaultRules returns the noise pattern table.
func DefaultRules() []Rule {
	return []Rule{
		// Structural injections
		{
			ID:          "environment-context",
			Category:    CategoryBoilerplate,
			Pattern:     `<environment_context>[\s\S]*?</environment_context>`,
			Description: "Environment context block injected by the harness",
		},
		{
			ID:          "system-reminder",
			Category:    CategoryBoilerplate,
			Pattern:     `<system-reminder>[\s\S]*?</system-reminder>`,
			Description: "System reminder block",
		},
		{
			ID:          "empty-tool-output",
			Category:    CategoryBoilerplate,
			Pattern:     `<system>Tool ran without output or errors</system>`,
			Description: "Sentinel for a tool call that produced nothing",
		},

		// Pleasantries
		{
			ID:          "standalone-pleasantry",
			Category:    CategoryPleasantry,
			Pattern:     `(?i)^(please|thank you|thanks|sure|ok|okay|got it|understood|great|awesome|perfect|excellent|nice|good)\s*[.!]?\s*$`,
			Description: "Bare thanks, ok, great",
		},
		{
			ID:          "empty-enthusiasm",
			Category:    CategoryPleasantry,
			Pattern:     `(?i)^(this is (all )?(very )?(great|amazing|exciting|wonderful|fantastic|perfect|excellent)|how (cool|neat|nice|great)|very (cool|nice|exciting|interesting))[.!]*\s*$`,
			Description: "Enthusiasm with no content",
		},
		{
			ID:          "polite-prefix",
			Category:    CategoryPleasantry,
			Pattern:     `(?i)^(if you (don['’]t mind|could|would like)|would you like me to|let me|i['’]ll|i will|i can)\b`,
			Description: "Polite opener such as \"let me ...\"",
		},
		{
			ID:          "polite-suffix",
			Category:    CategoryPleasantry,
			Pattern:     `(?i)(let me know if you (need|want|would like)|is there anything else|anything else i can help).*$`,
			Description: "Polite closer running to the end of the message",
		},

		// Acknowledgements
		{
			ID:          "bare-acknowledgment",
			Category:    CategoryAcknowledgment,
			Pattern:     `(?i)^(i understand|i see|i got it|understood|noted|will do|on it|done)\s*[.!]?\s*$`,
			Description: "Confirmation with nothing else",
		},
	}
}
