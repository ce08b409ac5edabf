// Package schedule parses semi-structured programming documents into
// daypart specifications.
//
// A document is a sequence of daypart blocks, each introduced by a
// level-two heading naming the slot, its weekday, and its time range:
//
//	## Morning Drive — Monday 06:00-10:00
//	Tempo: 06:00-07:00 90-110 BPM; 07:00-10:00 110-135 BPM
//	Genres: Alternative 30-50%, Indie Rock 20-40%
//	Eras: 1990s 10-30%, 2010s 30-60%
//	Australian content: minimum 25%
//	Mood: bright and energetic, building through the hour
//	Tracks: 45-55
//	Duration: 240 minutes
//
// Quantitative fields are extracted with deterministic pattern
// matching only, never a model, so parsing is reproducible. Mood
// text is passed through verbatim.
package schedule

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/skylark-radio/playlist-cli/internal/model"
)

// maxSaneBPM rejects tempo values no instrument produces.
const maxSaneBPM = 300

var (
	headerRe = regexp.MustCompile(`^##\s+(.+?)\s+[—–-]+\s+(Monday|Tuesday|Wednesday|Thursday|Friday|Saturday|Sunday)\s+(\d{1,2}:\d{2})\s*[-–]\s*(\d{1,2}:\d{2})\s*$`)

	tempoSegRe  = regexp.MustCompile(`(\d{1,2}:\d{2})\s*[-–]\s*(\d{1,2}:\d{2})\s+(\d+)\s*[-–]\s*(\d+)\s*BPM`)
	tempoBareRe = regexp.MustCompile(`(\d+)\s*[-–]\s*(\d+)\s*BPM`)

	bandRe     = regexp.MustCompile(`([A-Za-z0-9&'./ -]+?)\s+(\d+)\s*[-–]\s*(\d+)\s*%`)
	regionalRe = regexp.MustCompile(`(?i)^([A-Za-z ]+?)\s+content:\s*minimum\s+(\d+)\s*%`)
	tracksRe   = regexp.MustCompile(`(?i)^Tracks:\s*(\d+)\s*[-–]\s*(\d+)`)
	durationRe = regexp.MustCompile(`(?i)^Duration:\s*(\d+)\s*min`)
)

// regionCodes maps region names recognized in regional-content lines
// to ISO country codes.
var regionCodes = map[string]string{
	"australian":    "AU",
	"new zealand":   "NZ",
	"british":       "GB",
	"canadian":      "CA",
	"local":         "AU",
	"united states": "US",
	"american":      "US",
}

var titleCaser = cases.Title(language.English)

// Parse converts a programming document into daypart specs. It
// returns a *ParseError for structurally broken blocks and a
// *ValidationError for contradictory values.
func Parse(document string) ([]model.DaypartSpec, error) {
	blocks := splitBlocks(document)
	if len(blocks) == 0 {
		return nil, &ParseError{Block: "(document)", Msg: "no daypart headings found"}
	}

	specs := make([]model.DaypartSpec, 0, len(blocks))
	for _, block := range blocks {
		spec, err := parseBlock(block)
		if err != nil {
			return nil, err
		}
		if err := validateSpec(spec); err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// splitBlocks groups the document into per-daypart line groups, each
// starting with its "## " heading.
func splitBlocks(document string) [][]string {
	var blocks [][]string
	var current []string
	for _, raw := range strings.Split(document, "\n") {
		line := strings.TrimRight(raw, " \t\r")
		if strings.HasPrefix(line, "## ") {
			if current != nil {
				blocks = append(blocks, current)
			}
			current = []string{line}
			continue
		}
		if current != nil && strings.TrimSpace(line) != "" {
			current = append(current, strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "- ")))
		}
	}
	if current != nil {
		blocks = append(blocks, current)
	}
	return blocks
}

func parseBlock(lines []string) (model.DaypartSpec, error) {
	header := lines[0]
	m := headerRe.FindStringSubmatch(header)
	if m == nil {
		return model.DaypartSpec{}, &ParseError{Block: header, Field: "header", Msg: "expected '## Name — Weekday HH:MM-HH:MM'"}
	}

	spec := model.DaypartSpec{
		Name:      strings.TrimSpace(m[1]),
		Weekday:   m[2],
		StartTime: m[3],
		EndTime:   m[4],
	}

	var moodSeen, tempoSeen, tracksSeen, durationSeen bool

	for _, line := range lines[1:] {
		lower := strings.ToLower(line)
		switch {
		case strings.HasPrefix(lower, "tempo:"):
			segs, err := parseTempoLine(spec, strings.TrimSpace(line[len("tempo:"):]))
			if err != nil {
				return spec, err
			}
			spec.TempoProgression = segs
			tempoSeen = true

		case strings.HasPrefix(lower, "genres:"), strings.HasPrefix(lower, "genre mix:"):
			_, rest, _ := strings.Cut(line, ":")
			bands, err := parseBands(spec.Name, "genres", rest)
			if err != nil {
				return spec, err
			}
			spec.GenreMix = bands

		case strings.HasPrefix(lower, "eras:"), strings.HasPrefix(lower, "era mix:"):
			_, rest, _ := strings.Cut(line, ":")
			bands, err := parseBands(spec.Name, "eras", rest)
			if err != nil {
				return spec, err
			}
			spec.EraDistribution = bands

		case regionalRe.MatchString(line):
			rm := regionalRe.FindStringSubmatch(line)
			pct, _ := strconv.Atoi(rm[2])
			spec.RegionalMinimum = float64(pct) / 100
			region := strings.ToLower(strings.TrimSpace(rm[1]))
			if code, ok := regionCodes[region]; ok {
				spec.RegionCode = code
			} else {
				return spec, &ParseError{Block: spec.Name, Field: "regional", Msg: fmt.Sprintf("unrecognized region %q", rm[1])}
			}

		case strings.HasPrefix(lower, "mood:"):
			spec.Mood = strings.TrimSpace(line[len("mood:"):])
			moodSeen = true

		case tracksRe.MatchString(line):
			tm := tracksRe.FindStringSubmatch(line)
			spec.MinTracks, _ = strconv.Atoi(tm[1])
			spec.MaxTracks, _ = strconv.Atoi(tm[2])
			tracksSeen = true

		case durationRe.MatchString(line):
			dm := durationRe.FindStringSubmatch(line)
			spec.TargetDurationMinutes, _ = strconv.Atoi(dm[1])
			durationSeen = true
		}
	}

	if !tempoSeen {
		return spec, &ParseError{Block: spec.Name, Field: "tempo", Msg: "missing required Tempo line"}
	}
	if !tracksSeen {
		return spec, &ParseError{Block: spec.Name, Field: "tracks", Msg: "missing required Tracks line"}
	}
	if !durationSeen {
		return spec, &ParseError{Block: spec.Name, Field: "duration", Msg: "missing required Duration line"}
	}
	_ = moodSeen // mood is optional; verbatim when present

	return spec, nil
}

func parseTempoLine(spec model.DaypartSpec, rest string) ([]model.TempoSegment, error) {
	var segs []model.TempoSegment
	for _, part := range strings.Split(rest, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if m := tempoSegRe.FindStringSubmatch(part); m != nil {
			lo, _ := strconv.Atoi(m[3])
			hi, _ := strconv.Atoi(m[4])
			segs = append(segs, model.TempoSegment{
				Start: m[1],
				End:   m[2],
				Tempo: model.TempoRange{Min: float64(lo), Max: float64(hi)},
			})
			continue
		}
		if m := tempoBareRe.FindStringSubmatch(part); m != nil {
			lo, _ := strconv.Atoi(m[1])
			hi, _ := strconv.Atoi(m[2])
			segs = append(segs, model.TempoSegment{
				Start: spec.StartTime,
				End:   spec.EndTime,
				Tempo: model.TempoRange{Min: float64(lo), Max: float64(hi)},
			})
			continue
		}
		return nil, &ParseError{Block: spec.Name, Field: "tempo", Msg: fmt.Sprintf("unparsable tempo segment %q", part)}
	}
	if len(segs) == 0 {
		return nil, &ParseError{Block: spec.Name, Field: "tempo", Msg: "no tempo segments found"}
	}
	return segs, nil
}

func parseBands(daypart, field, rest string) (map[string]Band, error) {
	bands := make(map[string]Band)
	for _, part := range strings.Split(rest, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		m := bandRe.FindStringSubmatch(part)
		if m == nil {
			return nil, &ParseError{Block: daypart, Field: field, Msg: fmt.Sprintf("unparsable band %q", part)}
		}
		label := normalizeLabel(m[1], field)
		lo, _ := strconv.Atoi(m[2])
		hi, _ := strconv.Atoi(m[3])
		bands[label] = Band{Min: float64(lo) / 100, Max: float64(hi) / 100}
	}
	if len(bands) == 0 {
		return nil, &ParseError{Block: daypart, Field: field, Msg: "no bands found"}
	}
	return bands, nil
}

// Band aliases the model type to keep parseBands signatures short.
type Band = model.Band

// normalizeLabel canonicalizes genre labels with English title casing;
// era labels ("1990s") are kept as written, lowercased suffix.
func normalizeLabel(label, field string) string {
	label = strings.TrimSpace(label)
	if field == "eras" {
		return strings.ToLower(label)
	}
	return titleCaser.String(strings.ToLower(label))
}

func validateSpec(spec model.DaypartSpec) error {
	for _, seg := range spec.TempoProgression {
		if seg.Tempo.Min <= 0 || seg.Tempo.Max > maxSaneBPM {
			return &ValidationError{
				Daypart: spec.Name,
				Field:   "tempo",
				Msg:     fmt.Sprintf("tempo %g-%g outside sane range (0, %d]", seg.Tempo.Min, seg.Tempo.Max, maxSaneBPM),
			}
		}
		if seg.Tempo.Min > seg.Tempo.Max {
			return &ValidationError{
				Daypart: spec.Name,
				Field:   "tempo",
				Msg:     fmt.Sprintf("tempo min %g exceeds max %g", seg.Tempo.Min, seg.Tempo.Max),
			}
		}
	}

	if err := validateBands(spec.Name, "genres", spec.GenreMix, true); err != nil {
		return err
	}
	if err := validateBands(spec.Name, "eras", spec.EraDistribution, false); err != nil {
		return err
	}

	if spec.MinTracks > spec.MaxTracks {
		return &ValidationError{
			Daypart: spec.Name,
			Field:   "tracks",
			Msg:     fmt.Sprintf("min tracks %d exceeds max %d", spec.MinTracks, spec.MaxTracks),
		}
	}

	return nil
}

// validateBands checks min<=max per band and, when capped, that the
// minimums alone do not demand more than 100% of the playlist.
func validateBands(daypart, field string, bands map[string]Band, capMinSum bool) error {
	var minSum float64
	for label, b := range bands {
		if b.Min > b.Max {
			return &ValidationError{
				Daypart: daypart,
				Field:   field,
				Msg:     fmt.Sprintf("band %q min %.0f%% exceeds max %.0f%%", label, b.Min*100, b.Max*100),
			}
		}
		minSum += b.Min
	}
	if capMinSum && minSum > 1.0 {
		return &ValidationError{
			Daypart: daypart,
			Field:   field,
			Msg:     fmt.Sprintf("band minimums sum to %.0f%%, exceeding 100%%", minSum*100),
		}
	}
	return nil
}
