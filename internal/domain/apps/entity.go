package apps

// ID tipe untuk Application
type ID string

// Application is a unit of software tracked by the IQ server.
// Immutable once fetched from the directory.
type Application struct {
	ID             ID     `json:"id"`
	PublicID       string `json:"publicId"`
	Name           string `json:"name"`
	OrganizationID string `json:"organizationId"`
}

// Organization groups applications and can be used as an enumeration filter.
type Organization struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
