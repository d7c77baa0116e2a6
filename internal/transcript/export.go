package transcript

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"
)

// Format names an export encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatSRT  Format = "srt"
	FormatVTT  Format = "vtt"
	FormatYAML Format = "yaml"
	FormatXLSX Format = "xlsx"
)

// ParseFormat validates a user-supplied export format.
func ParseFormat(value string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(value))); f {
	case FormatJSON, FormatSRT, FormatVTT, FormatYAML, FormatXLSX:
		return f, nil
	case "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported export format %q (want json, srt, vtt, yaml, or xlsx)", value)
	}
}

// Export writes t to w in the given text format. XLSX is binary and is
// written through ExportXLSX instead.
func Export(w io.Writer, t Transcript, format Format) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(t)
	case FormatSRT:
		return writeSRT(w, t)
	case FormatVTT:
		return writeVTT(w, t)
	case FormatYAML:
		return writeYAML(w, t)
	case FormatXLSX:
		return ExportXLSX(w, t)
	default:
		return fmt.Errorf("unsupported export format %q", format)
	}
}

// cueText stacks the original line above its translation.
func cueText(s Sentence) string {
	text := strings.TrimSpace(s.Text)
	if english := strings.TrimSpace(s.Translation); english != "" {
		text += "\n" + english
	}
	return text
}

func writeSRT(w io.Writer, t Transcript) error {
	for i, s := range t.Sentences {
		if _, err := fmt.Fprintf(w, "%d\n%s --> %s\n%s\n\n", i+1,
			formatCueTime(s.Start, ','), formatCueTime(s.End, ','), cueText(s)); err != nil {
			return err
		}
	}
	return nil
}

func writeVTT(w io.Writer, t Transcript) error {
	if _, err := io.WriteString(w, "WEBVTT\n\n"); err != nil {
		return err
	}
	for _, s := range t.Sentences {
		if _, err := fmt.Fprintf(w, "%s --> %s\n%s\n\n",
			formatCueTime(s.Start, '.'), formatCueTime(s.End, '.'), cueText(s)); err != nil {
			return err
		}
	}
	return nil
}

// formatCueTime renders HH:MM:SS<sep>mmm. SRT uses a comma and WebVTT a dot.
func formatCueTime(d time.Duration, sep byte) string {
	if d < 0 {
		d = 0
	}
	ms := d.Milliseconds()
	h := ms / 3_600_000
	m := (ms / 60_000) % 60
	s := (ms / 1000) % 60
	return fmt.Sprintf("%02d:%02d:%02d%c%03d", h, m, s, sep, ms%1000)
}

type yamlTranscript struct {
	CreatedAt      string         `yaml:"created_at"`
	TotalSentences int            `yaml:"total_sentences"`
	Sentences      []yamlSentence `yaml:"sentences"`
}

type yamlSentence struct {
	Start             float64 `yaml:"start"`
	End               float64 `yaml:"end"`
	Japanese          string  `yaml:"japanese"`
	English           string  `yaml:"english"`
	TranslationFailed bool    `yaml:"translation_failed,omitempty"`
}

func writeYAML(w io.Writer, t Transcript) error {
	doc := yamlTranscript{
		CreatedAt:      t.CreatedAt.Format(CreatedAtLayout),
		TotalSentences: len(t.Sentences),
		Sentences:      make([]yamlSentence, 0, len(t.Sentences)),
	}
	for _, s := range t.Sentences {
		doc.Sentences = append(doc.Sentences, yamlSentence{
			Start:             Seconds(s.Start),
			End:               Seconds(s.End),
			Japanese:          s.Text,
			English:           s.Translation,
			TranslationFailed: s.TranslationFailed,
		})
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	return enc.Close()
}

const xlsxSheet = "Transcript"

// ExportXLSX writes a study sheet with one row per sentence.
func ExportXLSX(w io.Writer, t Transcript) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", xlsxSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	header := []any{"#", "Start", "End", "Japanese", "English"}
	if err := f.SetSheetRow(xlsxSheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, s := range t.Sentences {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{i + 1, formatCueTime(s.Start, '.'), formatCueTime(s.End, '.'), s.Text, s.Translation}
		if err := f.SetSheetRow(xlsxSheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	if err := f.SetColWidth(xlsxSheet, "D", "E", 60); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		_ = f.SetRowStyle(xlsxSheet, 1, 1, style)
	}
	if err := f.SetPanes(xlsxSheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return fmt.Errorf("freeze header: %w", err)
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
