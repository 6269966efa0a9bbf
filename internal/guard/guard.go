// Package guard screens SQL text before it reaches a database.
//
// The checks are text-level heuristics, not a parser. They are a second
// line of defence: the grants of the database user a connection logs in as
// remain the real security boundary.
package guard

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/koustreak/vizly/internal/errs"
	"github.com/koustreak/vizly/internal/logger"
)

// MaxStatementLength is the hard cap on statement size, in characters.
const MaxStatementLength = 50_000

// Rule names reported on rejection.
const (
	RuleEmpty              = "empty_statement"
	RuleTooLong            = "statement_too_long"
	RuleDenylistedKeyword  = "denylisted_keyword"
	RuleStackedStatement   = "stacked_statement"
	RuleLineComment        = "line_comment"
	RuleBlockComment       = "block_comment"
	RuleCommandExecution   = "command_execution"
	RuleNotAllowed         = "statement_not_allowed"
	RuleMultipleStatements = "multiple_statements"
	RuleMisplacedSemicolon = "misplaced_semicolon"
)

// Rejection says which rule declined a statement. Keyword is set only for
// denylist hits and always comes from the fixed list, never from the input.
type Rejection struct {
	Rule    string
	Keyword string
	Reason  string
}

// Error names the rule only; Reason is carried as the message of the
// errs.Error that Validate returns.
func (r *Rejection) Error() string { return "rule " + r.Rule }

// deniedKeywords are refused for standard callers anywhere in the text.
var deniedKeywords = []string{
	"DROP", "CREATE", "ALTER", "TRUNCATE", "RENAME",
	"GRANT", "REVOKE",
	"USE", "DATABASE",
	"EXEC", "EXECUTE", "CALL", "PROCEDURE",
	"INTO OUTFILE", "INTO DUMPFILE", "LOAD DATA", "LOAD_FILE",
	"PG_SLEEP", "PG_READ_FILE", "COPY",
}

// allowedLeading are the only first keywords a standard caller may use.
var allowedLeading = map[string]bool{
	"SELECT": true, "WITH": true, "SHOW": true,
	"DESCRIBE": true, "DESC": true, "EXPLAIN": true,
}

type keywordRule struct {
	keyword string
	re      *regexp.Regexp
}

type patternRule struct {
	rule   string
	reason string
	re     *regexp.Regexp
}

var (
	denylist = compileDenylist(deniedKeywords)

	// patterns apply to every caller, privileged or not.
	patterns = []patternRule{
		{RuleStackedStatement, "statement contains a stacked write or drop", regexp.MustCompile(`(?i);\s*(DROP|DELETE|UPDATE|INSERT)\b`)},
		{RuleLineComment, "statement ends in a line comment", regexp.MustCompile(`--[^\n]*\s*\z`)},
		{RuleBlockComment, "statement contains a block comment", regexp.MustCompile(`/\*`)},
		{RuleCommandExecution, "statement invokes a command execution procedure", regexp.MustCompile(`(?i)xp_cmdshell`)},
	}
)

// compileDenylist builds one whole-word, case-insensitive matcher per
// keyword. Multi-word phrases tolerate any run of whitespace between words.
func compileDenylist(words []string) []keywordRule {
	rules := make([]keywordRule, len(words))
	for i, w := range words {
		parts := strings.Fields(w)
		for j, p := range parts {
			parts[j] = regexp.QuoteMeta(p)
		}
		rules[i] = keywordRule{
			keyword: w,
			re:      regexp.MustCompile(`(?i)\b` + strings.Join(parts, `\s+`) + `\b`),
		}
	}
	return rules
}

// Guard validates statements against the rule set. The zero value is not
// usable; construct with New.
type Guard struct {
	maxLength int
	log       *logger.Logger
}

// Option configures a Guard.
type Option func(*Guard)

// WithLogger sets the logger rejections are reported to.
func WithLogger(l *logger.Logger) Option {
	return func(g *Guard) { g.log = l }
}

// WithMaxLength overrides MaxStatementLength.
func WithMaxLength(n int) Option {
	return func(g *Guard) {
		if n > 0 {
			g.maxLength = n
		}
	}
}

// New returns a Guard with the default limits.
func New(opts ...Option) *Guard {
	g := &Guard{maxLength: MaxStatementLength, log: logger.Nop()}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Validate returns nil if sql may run. Otherwise it returns an
// errs.ErrKindRejected error whose cause is a *Rejection. Privileged
// callers skip the keyword denylist and the leading-keyword allow-list,
// never the injection patterns.
func (g *Guard) Validate(sql string, privileged bool) error {
	r := g.check(sql, privileged)
	if r == nil {
		return nil
	}
	g.log.With().
		Str("rule", r.Rule).
		Str("keyword", r.Keyword).
		Bool("privileged", privileged).
		Int("length", len(sql)).
		Logger().
		Warn("statement rejected")
	return errs.Wrap(errs.ErrKindRejected, r.Reason, r)
}

func (g *Guard) check(sql string, privileged bool) *Rejection {
	trimmed := strings.TrimSpace(sql)
	if trimmed == "" {
		return &Rejection{Rule: RuleEmpty, Reason: "statement is empty"}
	}

	if n := len([]rune(sql)); n > g.maxLength {
		return &Rejection{
			Rule:   RuleTooLong,
			Reason: fmt.Sprintf("statement exceeds maximum length of %d characters", g.maxLength),
		}
	}

	if !privileged {
		for _, k := range denylist {
			if k.re.MatchString(sql) {
				return &Rejection{
					Rule:    RuleDenylistedKeyword,
					Keyword: k.keyword,
					Reason:  "statement contains forbidden operation: " + k.keyword,
				}
			}
		}
	}

	for _, p := range patterns {
		if p.re.MatchString(sql) {
			return &Rejection{Rule: p.rule, Reason: p.reason}
		}
	}

	if !privileged {
		first := strings.ToUpper(leadingWord(trimmed))
		if !allowedLeading[first] {
			return &Rejection{Rule: RuleNotAllowed, Reason: "only read statements are allowed for standard users"}
		}
	}

	switch n := strings.Count(sql, ";"); {
	case n > 1:
		return &Rejection{Rule: RuleMultipleStatements, Reason: "multiple statements are not allowed"}
	case n == 1 && !strings.HasSuffix(trimmed, ";"):
		return &Rejection{Rule: RuleMisplacedSemicolon, Reason: "a semicolon may only end the statement"}
	}

	return nil
}

// leadingWord returns the first whitespace-delimited token of s.
func leadingWord(s string) string {
	if f := strings.Fields(s); len(f) > 0 {
		return f[0]
	}
	return ""
}

// RejectionOf extracts the *Rejection carried by err, if any.
func RejectionOf(err error) (*Rejection, bool) {
	var r *Rejection
	if errors.As(err, &r) {
		return r, true
	}
	return nil, false
}
