package model

// EnergyProgression classifies how smooth tempo transitions are
// between consecutive tracks.
type EnergyProgression string

const (
	ProgressionSmooth   EnergyProgression = "smooth"
	ProgressionModerate EnergyProgression = "moderate"
	ProgressionChoppy   EnergyProgression = "choppy"
)

// ValidationResult holds the constraint-satisfaction and flow-quality
// scores for a track sequence against its selection criteria. It is
// recomputed, never mutated, whenever the track list changes.
type ValidationResult struct {
	TempoSatisfaction    float64 `json:"tempo_satisfaction"`
	GenreSatisfaction    float64 `json:"genre_satisfaction"`
	EraSatisfaction      float64 `json:"era_satisfaction"`
	RegionalSatisfaction float64 `json:"regional_satisfaction"`

	ConstraintSatisfaction float64 `json:"constraint_satisfaction"`

	FlowQuality       float64           `json:"flow_quality"`
	AvgTempoDelta     float64           `json:"avg_tempo_delta"`
	EnergyProgression EnergyProgression `json:"energy_progression"`

	// GapAnalysis holds one human-readable explanation per unmet
	// criterion. Empty when the playlist passes.
	GapAnalysis map[string]string `json:"gap_analysis,omitempty"`

	PassesValidation bool `json:"passes_validation"`
}
