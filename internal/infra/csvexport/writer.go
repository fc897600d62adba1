// Package csvexport flattens raw report payloads into one CSV file per
// application.
package csvexport

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bryanwahyu/iqexport/internal/domain/apps"
	"github.com/bryanwahyu/iqexport/internal/domain/reports"
)

// header is the fixed column set, in order. List-valued columns carry
// compact JSON.
var header = []string{
	"Package URL",
	"Display Name",
	"Security Issues Count",
	"License Data",
	"Security Issues",
	"Policy Violations",
	"Hash",
}

type Writer struct {
	dir string
}

// NewWriter ensures the output directory exists.
func NewWriter(dir string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &reports.Error{Kind: reports.KindFileWrite, Err: err}
	}
	return &Writer{dir: dir}, nil
}

// Filename is deterministic: reruns against unchanged upstream data land on
// the same path.
func Filename(app apps.Application, info reports.Info) string {
	return fmt.Sprintf("report_%s_%s_raw.csv", app.PublicID, info.ReportID)
}

// Serialize implements reports.Serializer. Rows are written to a temp file
// and renamed into place, so an external observer sees either the complete
// file or nothing.
func (w *Writer) Serialize(app apps.Application, info reports.Info, report *reports.RawReport) (string, error) {
	rows, err := flatten(report)
	if err != nil {
		return "", err
	}

	name := Filename(app, info)
	final := filepath.Join(w.dir, name)

	tmp, err := os.CreateTemp(w.dir, name+".tmp-*")
	if err != nil {
		return "", &reports.Error{Kind: reports.KindFileWrite, Err: err}
	}
	tmpName := tmp.Name()

	cw := csv.NewWriter(tmp)
	writeErr := cw.Write(header)
	for _, row := range rows {
		if writeErr != nil {
			break
		}
		writeErr = cw.Write(row)
	}
	if writeErr == nil {
		cw.Flush()
		writeErr = cw.Error()
	}
	if closeErr := tmp.Close(); writeErr == nil {
		writeErr = closeErr
	}
	if writeErr != nil {
		os.Remove(tmpName)
		return "", &reports.Error{Kind: reports.KindFileWrite, Err: writeErr}
	}

	if err := os.Rename(tmpName, final); err != nil {
		os.Remove(tmpName)
		return "", &reports.Error{Kind: reports.KindFileWrite, Err: err}
	}
	return final, nil
}

// flatten produces one row per component, in payload order.
func flatten(report *reports.RawReport) ([][]string, error) {
	rows := make([][]string, 0, len(report.Components))
	for i, c := range report.Components {
		// Package URL is the one required field; everything else
		// defaults to an empty value.
		if strings.TrimSpace(c.PackageURL) == "" {
			return nil, &reports.Error{
				Kind: reports.KindSerialization,
				Err:  fmt.Errorf("component %d (%q) has no package url", i, c.DisplayName),
			}
		}
		licenses, err := encodeList(c.LicenseData.DeclaredLicenses)
		if err != nil {
			return nil, err
		}
		issues, err := encodeList(c.SecurityData.SecurityIssues)
		if err != nil {
			return nil, err
		}
		violations, err := encodeList(c.PolicyData.PolicyViolations)
		if err != nil {
			return nil, err
		}
		rows = append(rows, []string{
			c.PackageURL,
			c.DisplayName,
			strconv.Itoa(len(c.SecurityData.SecurityIssues)),
			licenses,
			issues,
			violations,
			c.Hash,
		})
	}
	return rows, nil
}

// encodeList renders empty lists as [] so reruns stay byte-identical.
func encodeList[T any](items []T) (string, error) {
	if len(items) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "", &reports.Error{Kind: reports.KindSerialization, Err: err}
	}
	return string(b), nil
}
