// Package relax widens selection tolerances across an ordered ladder
// of levels until validation passes or the ladder is exhausted.
package relax

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/skylark-radio/playlist-cli/internal/model"
)

// Level is one tagged rung of the relaxation ladder. New rungs can be
// added without touching call sites.
type Level struct {
	Name               string  `yaml:"name"`
	TempoTolerance     float64 `yaml:"tempo_tolerance"`
	CrossGenre         bool    `yaml:"cross_genre"`
	UnconstrainedTempo bool    `yaml:"unconstrained_tempo"`
	UnconstrainedGenre bool    `yaml:"unconstrained_genre"`
}

// DefaultLadder returns the built-in six-level ladder, strict first.
func DefaultLadder() []Level {
	return []Level{
		{Name: "L0-strict"},
		{Name: "L1-tempo-5", TempoTolerance: 5},
		{Name: "L2-tempo-10", TempoTolerance: 10},
		{Name: "L3-tempo-15-crossgenre", TempoTolerance: 15, CrossGenre: true},
		{Name: "L4-tempo-20", TempoTolerance: 20, CrossGenre: true},
		{Name: "L5-unconstrained", UnconstrainedTempo: true, UnconstrainedGenre: true, CrossGenre: true},
	}
}

// LoadLadder reads a ladder override from a YAML file.
func LoadLadder(path string) ([]Level, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "relax: read ladder %s", path)
	}
	var levels []Level
	if err := yaml.Unmarshal(data, &levels); err != nil {
		return nil, eris.Wrapf(err, "relax: parse ladder %s", path)
	}
	if len(levels) == 0 {
		return nil, eris.Errorf("relax: ladder %s defines no levels", path)
	}
	return levels, nil
}

// BuildCriteria produces the immutable criteria snapshot for spec at
// the given level. The regional minimum is copied from the spec
// unchanged at every level; it is structurally excluded from
// relaxation.
func BuildCriteria(spec model.DaypartSpec, lvl Level) model.TrackSelectionCriteria {
	env := spec.TempoEnvelope()
	tempo := model.TempoRange{
		Min: env.Min - lvl.TempoTolerance,
		Max: env.Max + lvl.TempoTolerance,
	}
	if tempo.Min < 0 {
		tempo.Min = 0
	}

	target := spec.MaxTracks
	if target == 0 {
		target = spec.MinTracks
	}

	c := model.TrackSelectionCriteria{
		Level:              lvl.Name,
		Tempo:              tempo,
		UnconstrainedTempo: lvl.UnconstrainedTempo,
		CrossGenre:         lvl.CrossGenre,
		UnconstrainedGenre: lvl.UnconstrainedGenre,
		RegionalMinimum:    spec.RegionalMinimum,
		RegionCode:         spec.RegionCode,
		EnergyFlow:         spec.Mood,
		TargetTracks:       target,
	}

	if !lvl.UnconstrainedGenre {
		c.GenreMix = make(map[string]model.Band, len(spec.GenreMix))
		for g, b := range spec.GenreMix {
			c.GenreMix[g] = b
		}
	}
	c.EraDistribution = make(map[string]model.Band, len(spec.EraDistribution))
	for e, b := range spec.EraDistribution {
		c.EraDistribution[e] = b
	}

	return c
}
