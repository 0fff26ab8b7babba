package models

// Template holds the body (and subject, for email) a send node renders
// against live contact data. Owned by an external authoring surface.
type Template struct {
	ID      string  `json:"id"`
	Channel Channel `json:"channel"`
	Body    string  `json:"body"`
	Subject string  `json:"subject,omitempty"`
}

// ProviderSettings carries per-channel provider credentials, fetched from
// the settings store on every send.
type ProviderSettings struct {
	Channel       Channel `json:"channel"`
	AccountID     string  `json:"account_id"`
	AuthToken     string  `json:"auth_token"`
	FromAddress   string  `json:"from_address"`
	SigningSecret string  `json:"signing_secret"`
}
