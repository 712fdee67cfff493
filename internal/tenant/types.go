package tenant

import "time"

// Credential is one company's LINE channel and Dify endpoint pairing,
// looked up by the destination channel ID on every webhook callback.
// Rows are provisioned out of band and treated as immutable here.
type Credential struct {
	ID                 string
	CompanyID          string
	LineChannelID      string
	DifyAPIURL         string
	DifyAPIKey         string
	ChannelAccessToken string
	ChannelSecret      string
	Remarks            string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Company is the organization owning a credential set; the report
// pipeline mails rendered PDFs to its address.
type Company struct {
	ID           string
	Name         string
	EmailAddress string
	Remarks      string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
