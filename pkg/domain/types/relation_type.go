package types

// RelationType classifies a correlation edge between two chunks
type RelationType string

const (
	RelationTypeThematic      RelationType = "thematic"
	RelationTypeContradictory RelationType = "contradictory"
	RelationTypeSupportive    RelationType = "supportive"
)

// AllRelationTypes returns all valid relation types
func AllRelationTypes() []RelationType {
	return []RelationType{
		RelationTypeThematic,
		RelationTypeContradictory,
		RelationTypeSupportive,
	}
}

// IsValid checks if the relation type is valid
func (r RelationType) IsValid() bool {
	switch r {
	case RelationTypeThematic,
		RelationTypeContradictory,
		RelationTypeSupportive:
		return true
	default:
		return false
	}
}

// String returns the string representation of the relation type
func (r RelationType) String() string {
	return string(r)
}
