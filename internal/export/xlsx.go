// Package export writes generated playlists to files for station
// traffic and programming staff.
package export

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/skylark-radio/playlist-cli/internal/model"
)

var trackHeader = []string{
	"Position", "Track ID", "Title", "Artist", "Album",
	"Tempo (BPM)", "Genre", "Year", "Country", "Duration (s)", "Rationale",
}

// WriteXLSX writes one workbook with a summary sheet and one sheet per
// daypart.
func WriteXLSX(path string, playlists []*model.Playlist) error {
	f := xlsx.NewFile()

	if err := addSummarySheet(f, playlists); err != nil {
		return err
	}

	for _, pl := range playlists {
		if err := addPlaylistSheet(f, pl); err != nil {
			return err
		}
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "export: save workbook %s", path)
	}
	return nil
}

func addSummarySheet(f *xlsx.File, playlists []*model.Playlist) error {
	sheet, err := f.AddSheet("Summary")
	if err != nil {
		return eris.Wrap(err, "export: add summary sheet")
	}

	header := sheet.AddRow()
	for _, h := range []string{
		"Daypart", "Tracks", "Duration (min)", "Constraint Score",
		"Flow Score", "Passes", "Relaxation Levels", "Cost (USD)", "Status",
	} {
		header.AddCell().SetString(h)
	}

	for _, pl := range playlists {
		row := sheet.AddRow()
		row.AddCell().SetString(pl.Daypart.ID())
		row.AddCell().SetInt(len(pl.Tracks))
		row.AddCell().SetFloat(float64(pl.TotalDurationSeconds()) / 60)
		row.AddCell().SetFloat(pl.Validation.ConstraintSatisfaction)
		row.AddCell().SetFloat(pl.Validation.FlowQuality)
		row.AddCell().SetBool(pl.Validation.PassesValidation)
		row.AddCell().SetString(fmt.Sprintf("%v", pl.RelaxationLevels))
		row.AddCell().SetFloat(pl.CostUSD)
		status := "generated"
		if pl.Skipped {
			status = "skipped"
		}
		row.AddCell().SetString(status)
	}
	return nil
}

func addPlaylistSheet(f *xlsx.File, pl *model.Playlist) error {
	// Sheet names are capped at 31 chars by the format.
	name := pl.Daypart.ID()
	if len(name) > 31 {
		name = name[:31]
	}

	sheet, err := f.AddSheet(name)
	if err != nil {
		return eris.Wrapf(err, "export: add sheet %s", name)
	}

	header := sheet.AddRow()
	for _, h := range trackHeader {
		header.AddCell().SetString(h)
	}

	for _, t := range pl.Tracks {
		row := sheet.AddRow()
		row.AddCell().SetInt(t.Position)
		row.AddCell().SetString(t.TrackID)
		row.AddCell().SetString(t.Title)
		row.AddCell().SetString(t.Artist)
		row.AddCell().SetString(t.Album)
		row.AddCell().SetFloat(t.TempoBPM)
		row.AddCell().SetString(t.Genre)
		row.AddCell().SetInt(t.Year)
		row.AddCell().SetString(t.Country)
		row.AddCell().SetInt(t.DurationSeconds)
		row.AddCell().SetString(t.Rationale)
	}
	return nil
}
