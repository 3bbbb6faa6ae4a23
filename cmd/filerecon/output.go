package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"

	"filerecon/internal/format"
	"filerecon/internal/models"
	"filerecon/internal/reconcile"
)

var (
	outputWriter    io.Writer        = os.Stdout
	outputFormatter format.Formatter = format.JSONFormatter{}
)

func setOutputFormat(out *outputFlags) {
	if out.yaml {
		outputFormatter = format.YAMLFormatter{}
		return
	}
	outputFormatter = format.JSONFormatter{}
}

func writeStructured(payload any) error {
	return outputFormatter.Write(outputWriter, payload)
}

func writePlain(format string, args ...any) error {
	_, err := fmt.Fprintf(outputWriter, format, args...)
	return err
}

// writeTable renders rows in the borderless layout used by every list command.
func writeTable(headers []string, rows [][]string) {
	table := tablewriter.NewWriter(outputWriter)
	table.SetHeader(headers)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)
	table.AppendBulk(rows)
	table.Render()
}

// writeKeyValues renders a two-column key: value listing.
func writeKeyValues(pairs [][2]string) {
	table := tablewriter.NewWriter(outputWriter)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator(":")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)
	for _, pair := range pairs {
		table.Append([]string{pair[0], pair[1]})
	}
	table.Render()
}

func writeFileTable(files []models.FileRecord) {
	rows := make([][]string, 0, len(files))
	for _, file := range files {
		rows = append(rows, []string{
			strconv.FormatInt(file.ID, 10),
			strconv.FormatInt(file.PatientID, 10),
			file.FileName,
			orDash(file.FilePath),
			orDash(file.FileType),
			formatSize(file.FileSize),
			humanize.Time(file.CreatedAt),
		})
	}
	writeTable([]string{"id", "patient", "file name", "file path", "type", "size", "created"}, rows)
}

func writeFileDetail(file models.FileRecord, extra ...[2]string) {
	writeKeyValues(append([][2]string{
		{"id", strconv.FormatInt(file.ID, 10)},
		{"patient_id", strconv.FormatInt(file.PatientID, 10)},
		{"file_name", file.FileName},
		{"file_path", orDash(file.FilePath)},
		{"file_type", orDash(file.FileType)},
		{"file_size", formatSize(file.FileSize)},
		{"created_at", formatTime(file.CreatedAt)},
	}, extra...))
}

// writeEntries lists classified records. Blob columns appear only when the
// pass collected blob stats.
func writeEntries(entries []reconcile.Entry, withBlobs bool) {
	headers := []string{"id", "patient", "file path", "class", "suggested"}
	if withBlobs {
		headers = append(headers, "record size", "blob size", "blob modified")
	}

	rows := make([][]string, 0, len(entries))
	for _, entry := range entries {
		row := []string{
			strconv.FormatInt(entry.Record.ID, 10),
			strconv.FormatInt(entry.Record.PatientID, 10),
			orDash(entry.Record.LookupKey()),
			string(entry.Class),
			orDash(entry.SuggestedPath),
		}
		if withBlobs {
			blobSize, blobModified := "-", "-"
			if entry.Blob != nil {
				blobSize = formatSize(entry.Blob.SizeBytes)
				if entry.SizeMismatch {
					blobSize += " (mismatch)"
				}
				blobModified = humanize.Time(entry.Blob.ModTime)
			}
			row = append(row, formatSize(entry.Record.FileSize), blobSize, blobModified)
		}
		rows = append(rows, row)
	}
	writeTable(headers, rows)
}

func writeSummary(summary reconcile.Summary, dryRun bool) error {
	line := fmt.Sprintf("%d records: %d consistent, %d relocatable, %d orphaned",
		summary.Total, summary.Consistent, summary.Relocatable, summary.Orphaned)
	if summary.SizeMismatch > 0 {
		line += fmt.Sprintf(", %d size mismatch", summary.SizeMismatch)
	}
	if !dryRun {
		line += fmt.Sprintf("; %d deleted, %d delete failed", summary.Deleted, summary.DeleteFailed)
	}
	return writePlain("%s\n", line)
}

func formatSize(size int64) string {
	if size <= 0 {
		return "-"
	}
	return humanize.IBytes(uint64(size))
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}

func orDash(value string) string {
	if value == "" {
		return "-"
	}
	return value
}
