// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/siderolabs/gen/xslices"
	"gopkg.in/yaml.v3"

	"github.com/siderolabs/go-retrodisk/fsprobe"
	"github.com/siderolabs/go-retrodisk/notes"
	"github.com/siderolabs/go-retrodisk/partition"
)

// Report describes a probed image.
type Report struct {
	Image   string `json:"image" yaml:"image"`
	Size    uint64 `json:"size" yaml:"size"`
	Scheme  string `json:"scheme,omitempty" yaml:"scheme,omitempty"`
	Variant string `json:"variant,omitempty" yaml:"variant,omitempty"`
	Dubious bool   `json:"dubious" yaml:"dubious"`

	// FileSystem is set for images without a partition scheme.
	FileSystem *FileSystemReport `json:"filesystem,omitempty" yaml:"filesystem,omitempty"`

	Partitions []PartitionReport `json:"partitions,omitempty" yaml:"partitions,omitempty"`
	Notes      []NoteReport      `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// PartitionReport describes a partition.
type PartitionReport struct {
	Index  uint    `json:"index" yaml:"index"`
	ID     string  `json:"id" yaml:"id"`
	Name   *string `json:"name,omitempty" yaml:"name,omitempty"`
	Type   *string `json:"type,omitempty" yaml:"type,omitempty"`
	Start  uint64  `json:"start" yaml:"start"`
	Length uint64  `json:"length" yaml:"length"`

	FileSystem *FileSystemReport `json:"filesystem,omitempty" yaml:"filesystem,omitempty"`
}

// FileSystemReport describes a recognized filesystem.
type FileSystemReport struct {
	Type   string  `json:"type" yaml:"type"`
	Label  *string `json:"label,omitempty" yaml:"label,omitempty"`
	Blocks uint64  `json:"blocks,omitempty" yaml:"blocks,omitempty"`
}

// NoteReport is a diagnostic recorded while resolving the partitions.
type NoteReport struct {
	Severity string `json:"severity" yaml:"severity"`
	Message  string `json:"message" yaml:"message"`
}

func partitionReport(p *partition.Partition) PartitionReport {
	r := PartitionReport{
		Index:  p.Index(),
		ID:     p.ID().String(),
		Name:   p.Name(),
		Type:   p.Type(),
		Start:  p.Start(),
		Length: p.Length(),
	}

	if fs := p.FileSystem(); fs != nil {
		r.FileSystem = fileSystemReport(fs)
	}

	return r
}

func fileSystemReport(fs partition.FileSystem) *FileSystemReport {
	r := &FileSystemReport{Type: fs.Type()}

	if vol, ok := fs.(*fsprobe.Volume); ok {
		r.Label = vol.Label()
		r.Blocks = vol.Blocks()
	}

	return r
}

var severityNames = map[notes.Severity]string{
	notes.Info:    "info",
	notes.Warning: "warning",
	notes.Error:   "error",
}

func noteReports(log *notes.Notes) []NoteReport {
	return xslices.Map(log.Entries(), func(e notes.Entry) NoteReport {
		return NoteReport{Severity: severityNames[e.Severity], Message: e.Message}
	})
}

func writeReports(w io.Writer, format string, reports []*Report) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")

		return enc.Encode(reports)
	case OutputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)

		if err := enc.Encode(reports); err != nil {
			return err
		}

		return enc.Close()
	case OutputTable:
		for i, report := range reports {
			if i > 0 {
				fmt.Fprintln(w) //nolint:errcheck
			}

			if err := writeTable(w, report); err != nil {
				return err
			}
		}

		return nil
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func orDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}

	return *s
}

func fsColumns(fs *FileSystemReport) (string, string) {
	if fs == nil {
		return "-", "-"
	}

	return fs.Type, orDash(fs.Label)
}

func writeTable(w io.Writer, report *Report) error {
	scheme := report.Scheme
	if scheme == "" {
		scheme = "none"
	}

	if report.Variant != "" {
		scheme += " (" + report.Variant + ")"
	}

	if report.Dubious {
		scheme += ", dubious"
	}

	fmt.Fprintf(w, "%s: %s, scheme %s\n", report.Image, humanize.IBytes(report.Size), scheme) //nolint:errcheck

	if report.FileSystem != nil {
		fsType, label := fsColumns(report.FileSystem)

		fmt.Fprintf(w, "filesystem %s, label %s\n", fsType, label) //nolint:errcheck
	}

	if len(report.Partitions) > 0 {
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

		fmt.Fprintln(tw, "#\tSTART\tSIZE\tNAME\tTYPE\tFS\tLABEL") //nolint:errcheck

		for _, p := range report.Partitions {
			fsType, label := fsColumns(p.FileSystem)

			fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%s\t%s\t%s\n", //nolint:errcheck
				p.Index, p.Start, humanize.IBytes(p.Length), orDash(p.Name), orDash(p.Type), fsType, label)
		}

		if err := tw.Flush(); err != nil {
			return err
		}
	}

	for _, note := range report.Notes {
		if _, err := fmt.Fprintf(w, "%s: %s\n", note.Severity, note.Message); err != nil {
			return err
		}
	}

	return nil
}
