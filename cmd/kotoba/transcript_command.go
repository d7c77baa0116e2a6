package main

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"kotoba/internal/transcript"
)

func newTranscriptCommand() *cobra.Command {
	transcriptCmd := &cobra.Command{
		Use:         "transcript",
		Short:       "Read saved transcripts",
		Annotations: map[string]string{"skipConfigLoad": "true"},
	}

	transcriptCmd.AddCommand(newTranscriptShowCommand())
	transcriptCmd.AddCommand(newTranscriptExportCommand())

	return transcriptCmd
}

func newTranscriptShowCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "show <transcript.json>",
		Short: "Print a transcript as a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := transcript.Load(args[0])
			if err != nil {
				return err
			}
			sentences := t.Sentences
			if limit > 0 && len(sentences) > limit {
				sentences = sentences[:limit]
			}
			rows := make([][]string, 0, len(sentences))
			for i, s := range sentences {
				english := s.Translation
				if s.SynthesisFailed {
					english += " (no audio)"
				}
				rows = append(rows, []string{
					fmt.Sprintf("%d", i+1),
					formatClock(s.Start),
					formatClock(s.End),
					s.Text,
					english,
				})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(
				[]string{"#", "Start", "End", "Japanese", "English"},
				rows,
				[]columnAlignment{alignRight, alignRight, alignRight, alignLeft, alignLeft},
			))
			fmt.Fprintf(out, "%d sentences, created %s\n", len(t.Sentences), t.CreatedAt.Format(transcript.CreatedAtLayout))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Show at most this many sentences")
	return cmd
}

func newTranscriptExportCommand() *cobra.Command {
	var formatFlag string
	var outputPath string

	cmd := &cobra.Command{
		Use:   "export <transcript.json>",
		Short: "Convert a transcript to json, srt, vtt, yaml, or xlsx",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := transcript.ParseFormat(formatFlag)
			if err != nil {
				return err
			}
			t, err := transcript.Load(args[0])
			if err != nil {
				return err
			}
			target := strings.TrimSpace(outputPath)
			toStdout := target == "" || target == "-"
			if toStdout && format == transcript.FormatXLSX {
				return fmt.Errorf("xlsx export needs --output")
			}
			var buf bytes.Buffer
			if err := transcript.Export(&buf, t, format); err != nil {
				return err
			}
			if format == transcript.FormatSRT || format == transcript.FormatVTT {
				for _, issue := range transcript.ValidateCues(buf.String(), 0) {
					fmt.Fprintf(cmd.ErrOrStderr(), "Warning: subtitle check: %s\n", issue)
				}
			}
			if toStdout {
				_, err := cmd.OutOrStdout().Write(buf.Bytes())
				return err
			}
			return exportToFile(target, buf.Bytes())
		},
	}

	cmd.Flags().StringVarP(&formatFlag, "format", "f", "srt", "Export format: json, srt, vtt, yaml, or xlsx")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Destination file (default stdout)")
	return cmd
}

func exportToFile(path string, data []byte) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	defer func() {
		if cerr := file.Close(); err == nil && cerr != nil {
			err = cerr
		}
		if err != nil {
			_ = os.Remove(path)
		}
	}()
	_, err = file.Write(data)
	return err
}
