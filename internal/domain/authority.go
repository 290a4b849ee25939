package domain

// AuthorityCategory distinguishes the normalization vocabularies a
// NormalizeSubject/NormalizeCreatorPublisher canonical is drawn from (§4.6).
type AuthorityCategory string

const (
	AuthoritySubject   AuthorityCategory = "subject"
	AuthorityCreator   AuthorityCategory = "creator"
	AuthorityPublisher AuthorityCategory = "publisher"
)

// AuthorityEntry is one canonical form with its known raw-input variants
// and how many distinct resources have used it.
type AuthorityEntry struct {
	ID         string
	Category   AuthorityCategory
	Canonical  string
	Variants   []string
	UsageCount int
}
