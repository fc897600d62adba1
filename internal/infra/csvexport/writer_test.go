package csvexport

import (
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/iqexport/internal/domain/apps"
	"github.com/bryanwahyu/iqexport/internal/domain/reports"
)

func testApp() apps.Application {
	return apps.Application{ID: "a1", PublicID: "pub-1", Name: "Payments"}
}

func testReport() *reports.RawReport {
	return &reports.RawReport{Components: []reports.Component{
		{
			PackageURL:  "pkg:npm/lodash@4.17.20",
			DisplayName: "lodash",
			Hash:        "abc123",
			SecurityData: reports.SecurityData{SecurityIssues: []reports.SecurityIssue{
				{Reference: "CVE-2021-23337", Severity: 7.2},
				{Reference: "CVE-2020-8203", Severity: 7.4},
			}},
			LicenseData: reports.LicenseData{DeclaredLicenses: []reports.License{
				{LicenseID: "MIT", LicenseName: "MIT License"},
			}},
			PolicyData: reports.PolicyData{PolicyViolations: []reports.PolicyViolation{
				{PolicyName: "Security-High", ThreatLevel: 8, ThreatCategory: "SECURITY"},
			}},
		},
		{PackageURL: "pkg:npm/tiny@1.0.0"},
	}}
}

func readRows(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestSerializeWritesDeterministicFile(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir)
	require.NoError(t, err)

	path, err := w.Serialize(testApp(), reports.Info{ReportID: "rep-9"}, testReport())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "report_pub-1_rep-9_raw.csv"), path)

	rows := readRows(t, path)
	require.Len(t, rows, 3)
	assert.Equal(t, header, rows[0])

	assert.Equal(t, "pkg:npm/lodash@4.17.20", rows[1][0])
	assert.Equal(t, "lodash", rows[1][1])
	assert.Equal(t, "2", rows[1][2])
	assert.Contains(t, rows[1][3], `"licenseId":"MIT"`)
	assert.Contains(t, rows[1][4], "CVE-2021-23337")
	assert.Contains(t, rows[1][5], "Security-High")
	assert.Equal(t, "abc123", rows[1][6])
}

func TestSerializeMissingOptionalFieldsDefaultEmpty(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir)
	require.NoError(t, err)

	path, err := w.Serialize(testApp(), reports.Info{ReportID: "rep-9"}, testReport())
	require.NoError(t, err)

	rows := readRows(t, path)
	bare := rows[2]
	assert.Equal(t, []string{"pkg:npm/tiny@1.0.0", "", "0", "[]", "[]", "[]", ""}, bare)
}

func TestSerializeIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir)
	require.NoError(t, err)

	path1, err := w.Serialize(testApp(), reports.Info{ReportID: "rep-9"}, testReport())
	require.NoError(t, err)
	first, err := os.ReadFile(path1)
	require.NoError(t, err)

	path2, err := w.Serialize(testApp(), reports.Info{ReportID: "rep-9"}, testReport())
	require.NoError(t, err)
	second, err := os.ReadFile(path2)
	require.NoError(t, err)

	assert.Equal(t, path1, path2)
	assert.Equal(t, first, second)
}

func TestSerializeMissingPackageURLFails(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir)
	require.NoError(t, err)

	report := &reports.RawReport{Components: []reports.Component{
		{DisplayName: "nameless"},
	}}
	_, err = w.Serialize(testApp(), reports.Info{ReportID: "rep-9"}, report)
	require.Error(t, err)

	var e *reports.Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, reports.KindSerialization, e.Kind)

	// nothing written, not even a temp file
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSerializeLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir)
	require.NoError(t, err)

	_, err = w.Serialize(testApp(), reports.Info{ReportID: "rep-9"}, testReport())
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "report_pub-1_rep-9_raw.csv", entries[0].Name())
}
