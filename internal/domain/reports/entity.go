package reports

import "time"

// Info identifies the latest completed report of one application.
type Info struct {
	ApplicationID string    `json:"applicationId"`
	ReportID      string    `json:"reportId"`
	EvaluatedAt   time.Time `json:"evaluatedAt,omitempty"`
}

// RawReport is the application-scoped raw scan payload.
type RawReport struct {
	Components []Component `json:"components"`
}

// Component is one dependency/artifact entry within a report.
type Component struct {
	PackageURL   string       `json:"packageUrl"`
	DisplayName  string       `json:"displayName"`
	Hash         string       `json:"hash"`
	PolicyData   PolicyData   `json:"policyData"`
	SecurityData SecurityData `json:"securityData"`
	LicenseData  LicenseData  `json:"licenseData"`
}

type PolicyData struct {
	PolicyViolations []PolicyViolation `json:"policyViolations"`
}

// PolicyViolation is a rule breach recorded against a component.
type PolicyViolation struct {
	PolicyID       string `json:"policyId,omitempty"`
	PolicyName     string `json:"policyName,omitempty"`
	ThreatLevel    int    `json:"policyThreatLevel,omitempty"`
	ThreatCategory string `json:"policyThreatCategory,omitempty"`
}

type SecurityData struct {
	SecurityIssues []SecurityIssue `json:"securityIssues"`
}

// SecurityIssue is a vulnerability record associated with a component.
type SecurityIssue struct {
	Source         string  `json:"source,omitempty"`
	Reference      string  `json:"reference,omitempty"`
	Severity       float64 `json:"severity,omitempty"`
	Status         string  `json:"status,omitempty"`
	ThreatCategory string  `json:"threatCategory,omitempty"`
	URL            string  `json:"url,omitempty"`
}

type LicenseData struct {
	DeclaredLicenses []License `json:"declaredLicenses"`
}

type License struct {
	LicenseID   string `json:"licenseId,omitempty"`
	LicenseName string `json:"licenseName,omitempty"`
}
