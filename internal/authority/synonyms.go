package authority

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Synonyms built-in table, grounded on spec.md §4.6's worked examples
// (ml -> Machine Learning, ai -> Artificial Intelligence, py -> Python).
// Keys are matched lowercased.
var builtinSubjectSynonyms = map[string]string{
	"ml":      "Machine Learning",
	"ai":      "Artificial Intelligence",
	"py":      "Python",
	"js":      "JavaScript",
	"ts":      "TypeScript",
	"nlp":     "Natural Language Processing",
	"cv":      "Computer Vision",
	"db":      "Databases",
	"os":      "Operating Systems",
	"net":     "Networking",
	"sec":     "Security",
	"devops":  "DevOps",
	"ux":      "User Experience",
	"ui":      "User Interface",
	"crypto":  "Cryptography",
	"bio":     "Biology",
	"chem":    "Chemistry",
	"physics": "Physics",
	"math":    "Mathematics",
	"econ":    "Economics",
	"philo":   "Philosophy",
	"psych":   "Psychology",
	"geo":     "Geography",
	"hist":    "History",
}

// loadSynonymOverrides reads a YAML file of additional raw->canonical pairs
// and merges them over the built-in table (file entries win on conflict).
// A missing path is not an error -- the built-in table is used as-is.
func loadSynonymOverrides(path string) (map[string]string, error) {
	merged := make(map[string]string, len(builtinSubjectSynonyms))
	for k, v := range builtinSubjectSynonyms {
		merged[k] = v
	}
	if path == "" {
		return merged, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return merged, nil
	}
	if err != nil {
		return nil, err
	}
	var overrides map[string]string
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, err
	}
	for k, v := range overrides {
		merged[strings.ToLower(strings.TrimSpace(k))] = v
	}
	return merged, nil
}
