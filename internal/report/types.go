package report

import "time"

// Data is the material a report or mail PDF is rendered from.
type Data struct {
	Title  string
	Fields []Field
}

// Field is one labeled value in a rendered document.
type Field struct {
	Label string
	Value string
}

// Report is a persisted reports row.
type Report struct {
	ID         string
	CompanyID  string
	LineUserID string
	Payload    map[string]string
	S3Path     string
	Remarks    string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
