package model

// EvidenceItem is a retrieved passage offered for or against a claim
type EvidenceItem struct {
	Text     string  `json:"text"`                // Passage text
	SourceID string  `json:"source_id,omitempty"` // Provenance (paper id, file path)
	Score    float64 `json:"score"`               // Similarity in [0,1]; meaningful only when Scored
	Scored   bool    `json:"scored"`              // Whether the store reported a score
	Expanded bool    `json:"expanded,omitempty"`  // Obtained through query expansion (bypasses the score floor)
}

// EvidenceAnnotation is an advocate's per-evidence relevance judgment
type EvidenceAnnotation struct {
	SourceID    string  `json:"source_id"`
	Relevance   float64 `json:"relevance"` // 0-10 as reported by the model
	Explanation string  `json:"explanation,omitempty"`
}

// AuthorityTier ranks how much weight a source's documents carry
type AuthorityTier int

const (
	TierUnknown   AuthorityTier = 0 // Not classified
	TierPrimary   AuthorityTier = 1 // Assessment reports, peer-reviewed literature
	TierSecondary AuthorityTier = 2 // Reviews, encyclopedias, reputable media
	TierTertiary  AuthorityTier = 3 // Abstract collections, grey literature
)

func (t AuthorityTier) String() string {
	switch t {
	case TierPrimary:
		return "primary"
	case TierSecondary:
		return "secondary"
	case TierTertiary:
		return "tertiary"
	default:
		return "unknown"
	}
}

// ParseAuthorityTier maps a config string onto a tier
func ParseAuthorityTier(s string) AuthorityTier {
	switch s {
	case "primary":
		return TierPrimary
	case "secondary":
		return TierSecondary
	case "tertiary":
		return TierTertiary
	default:
		return TierUnknown
	}
}
