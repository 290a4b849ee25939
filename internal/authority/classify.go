package authority

import (
	"regexp"
	"strings"

	"github.com/ram-tewari/neo-alexandria-sub002/internal/domain"
)

// Personal-classification codes (§4.6). These reuse Dewey's top-level
// hundreds as a familiar shorthand, not the full Dewey Decimal System.
const (
	CodeGeneral   = "000" // computing, reference, general works
	CodeLanguage  = "400" // language and linguistics
	CodeScience   = "500" // mathematics and natural science
	CodeHistory   = "900" // history, geography, biography
	titleWeight   = 3
	tagWeight     = 2
	descWeight    = 1
)

// yearTokenPattern matches a bare 4-digit year in 1000-2019, the boost
// signal for CodeHistory per spec.md §4.6.
var yearTokenPattern = regexp.MustCompile(`\b(1[0-9]{3}|200[0-9]|201[0-9])\b`)

// classifierKeywords are the per-code keyword sets scored against title,
// tags, and description. Compiled to lowercase once at package init,
// mirroring the teacher's compiled-pattern idiom in internal/search/patterns.go.
var classifierKeywords = map[string][]string{
	CodeGeneral: {
		"computer", "software", "algorithm", "programming", "database",
		"network", "internet", "data", "encyclopedia", "library", "information",
	},
	CodeLanguage: {
		"language", "linguistics", "grammar", "vocabulary", "translation",
		"dictionary", "rhetoric", "syntax", "phonetics", "etymology",
	},
	CodeScience: {
		"mathematics", "physics", "chemistry", "biology", "science",
		"theorem", "equation", "experiment", "molecule", "calculus", "astronomy",
	},
	CodeHistory: {
		"history", "historical", "war", "empire", "century", "ancient",
		"biography", "geography", "civilization", "dynasty", "revolution",
	},
}

// Classifier scores a resource's title/tags/description against the §4.6
// keyword tables and returns the highest-scoring personal-classification
// code. Ties break 000 > 400 > 500 > 900; an all-zero score defaults to 000.
type Classifier struct{}

// NewClassifier constructs a rule-based Classifier. It holds no state; the
// keyword tables are package-level constants.
func NewClassifier() *Classifier {
	return &Classifier{}
}

// Classify scores title/tags/description against the keyword tables and
// returns the winning code.
func (c *Classifier) Classify(title string, tags []string, description string) string {
	scores := map[string]int{
		CodeGeneral:  0,
		CodeLanguage: 0,
		CodeScience:  0,
		CodeHistory:  0,
	}

	titleLower := strings.ToLower(title)
	tagsLower := strings.ToLower(strings.Join(tags, " "))
	descLower := strings.ToLower(description)

	for code, keywords := range classifierKeywords {
		for _, kw := range keywords {
			if strings.Contains(titleLower, kw) {
				scores[code] += titleWeight
			}
			if strings.Contains(tagsLower, kw) {
				scores[code] += tagWeight
			}
			if strings.Contains(descLower, kw) {
				scores[code] += descWeight
			}
		}
	}

	combined := titleLower + " " + tagsLower + " " + descLower
	if yearTokenPattern.MatchString(combined) {
		scores[CodeHistory] += titleWeight
	}

	return pickWinner(scores)
}

// ClassifyResource is a convenience wrapper over Classify for a domain.Resource.
func (c *Classifier) ClassifyResource(r *domain.Resource) string {
	return c.Classify(r.Title, r.Subject, r.Description)
}

// precedence is the §4.6 tie-break order: 000 > 400 > 500 > 900.
var precedence = []string{CodeGeneral, CodeLanguage, CodeScience, CodeHistory}

func pickWinner(scores map[string]int) string {
	best := CodeGeneral
	bestScore := -1
	for _, code := range precedence {
		if scores[code] > bestScore {
			bestScore = scores[code]
			best = code
		}
	}
	if bestScore <= 0 {
		return CodeGeneral
	}
	return best
}
