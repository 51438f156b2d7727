// Package classifier decides whether a question should be routed to the
// structured query path or the retrieval path.
package classifier

import (
	"regexp"
	"strings"

	"github.com/finsolve/rbac-chat/common/logger"
)

// Intent is the routing verdict for a question.
type Intent int

const (
	// NaturalLanguage routes to the retrieval path. It is the default on
	// any ambiguity: a misrouted SQL question still gets a safe answer from
	// documents, while the reverse would need extra defense.
	NaturalLanguage Intent = iota
	// Structured routes to the SQL path.
	Structured
)

func (i Intent) String() string {
	if i == Structured {
		return "structured"
	}
	return "natural_language"
}

// Result carries the verdict plus the candidate statement for the
// structured path. Produced per request and discarded after routing.
type Result struct {
	Intent    Intent
	Statement string
}

// Classifier decides the routing intent for a question given the caller's
// accessible structured tables. Implementations must be pure: no side
// effects, no failure mode.
type Classifier interface {
	Classify(question string, tables []string) Result
}

// RuleBased classifies by scanning for SQL syntax cues. It never calls an
// external service, so routing stays deterministic and unit-testable.
type RuleBased struct{}

// NewRuleBased creates the default heuristic classifier.
func NewRuleBased() *RuleBased { return &RuleBased{} }

var sqlKeywords = []string{
	"select", "from", "where", "group by", "order by", "limit",
	"sum", "avg", "average", "count", "join", "having", "min", "max",
}

var (
	comparisonPattern = regexp.MustCompile(`[<>]=?|==|!=`)
	sqlStartPattern   = regexp.MustCompile(`(?i)^\s*(with\s+|select\s+)`)
)

// Classify implements Classifier.
func (c *RuleBased) Classify(question string, tables []string) Result {
	text := strings.ToLower(strings.TrimSpace(question))
	if text == "" {
		return Result{Intent: NaturalLanguage}
	}

	if sqlStartPattern.MatchString(text) {
		return Result{Intent: Structured, Statement: strings.TrimSpace(question)}
	}

	keywordHits := 0
	for _, kw := range sqlKeywords {
		if strings.Contains(text, kw) {
			keywordHits++
		}
	}
	hasComparison := comparisonPattern.MatchString(text)
	mentionsTable := false
	for _, table := range tables {
		if table != "" && strings.Contains(text, strings.ToLower(table)) {
			mentionsTable = true
			break
		}
	}

	if keywordHits >= 2 && (hasComparison || mentionsTable) {
		logger.Debugf("classifier: structured intent (keywords=%d comparison=%v table=%v)", keywordHits, hasComparison, mentionsTable)
		return Result{Intent: Structured, Statement: strings.TrimSpace(question)}
	}
	if mentionsTable && hasComparison {
		return Result{Intent: Structured, Statement: strings.TrimSpace(question)}
	}

	return Result{Intent: NaturalLanguage}
}
