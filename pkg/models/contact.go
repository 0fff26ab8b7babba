package models

import (
	"fmt"
	"strings"
	"time"
)

// Contact is the recipient of an outreach sequence. Contacts are owned by an
// external CRM surface; the engine reads them for send/branch decisions and
// mutates only the Status field (via update_status nodes).
type Contact struct {
	ID           string         `json:"id"`
	FirstName    string         `json:"first_name"`
	LastName     string         `json:"last_name"`
	Email        string         `json:"email"`
	Phone        string         `json:"phone"`
	Status       string         `json:"status"`
	DoNotContact bool           `json:"do_not_contact"`
	Custom       map[string]any `json:"custom,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// Field resolves a named contact field for branch evaluation. Built-in
// fields take precedence over custom fields of the same name.
func (c *Contact) Field(name string) (any, bool) {
	switch strings.ToLower(name) {
	case "first_name":
		return c.FirstName, true
	case "last_name":
		return c.LastName, true
	case "email":
		return c.Email, true
	case "phone":
		return c.Phone, true
	case "status":
		return c.Status, true
	case "do_not_contact":
		return c.DoNotContact, true
	}

	if c.Custom != nil {
		if v, ok := c.Custom[name]; ok {
			return v, true
		}
	}

	return nil, false
}

// PlaceholderData flattens the contact into the key/value map consumed by
// the placeholder renderer. Custom fields are stringified; built-ins win
// on name collisions.
func (c *Contact) PlaceholderData() map[string]string {
	data := make(map[string]string, len(c.Custom)+5)

	for k, v := range c.Custom {
		data[k] = fmt.Sprintf("%v", v)
	}

	data["first_name"] = c.FirstName
	data["last_name"] = c.LastName
	data["email"] = c.Email
	data["phone"] = c.Phone
	data["status"] = c.Status

	return data
}

// AddressFor returns the contact's address for the given channel.
func (c *Contact) AddressFor(channel Channel) string {
	switch channel {
	case ChannelSMS:
		return c.Phone
	case ChannelEmail:
		return c.Email
	default:
		return ""
	}
}
