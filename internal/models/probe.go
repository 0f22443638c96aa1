package models

import "time"

// URLKind classifies a URL for the scrape step's probe-required predicate.
type URLKind string

// URL kinds.
const (
	URLKindTwitter URLKind = "twitter"
	URLKindWeb     URLKind = "web"
)

// ProbeEventStatus is the lifecycle state of a ProbeEvent.
type ProbeEventStatus string

// ProbeEvent statuses.
const (
	ProbeEventPending   ProbeEventStatus = "pending"
	ProbeEventSent      ProbeEventStatus = "sent"
	ProbeEventCompleted ProbeEventStatus = "completed"
	ProbeEventError     ProbeEventStatus = "error"
)

// ProbeEvent is a unit of scrape work dispatched from the coordinator to a
// probe.
type ProbeEvent struct {
	ID          string           `json:"id"`
	UserID      int64            `json:"user_id"`
	LinkID      int64            `json:"link_id"`
	URL         string            `json:"url"`
	URLKind     URLKind          `json:"url_kind"`
	Status      ProbeEventStatus `json:"status"`
	Result      *ScrapeData      `json:"result,omitempty"`
	Error       *string          `json:"error,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	SentAt      *time.Time       `json:"sent_at,omitempty"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
}

// RawMedia is a single media reference discovered during a scrape, carried
// through to the image/OCR helper.
type RawMedia struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

// ScrapeData is the payload a probe returns on a successful scrape. Field
// names follow the wire contract in spec.md §6 exactly since probes are
// third-party processes that must keep working across coordinator releases.
type ScrapeData struct {
	Title          *string    `json:"title,omitempty"`
	Markdown       string     `json:"markdown"`
	OGTitle        *string    `json:"og_title,omitempty"`
	OGDescription  *string    `json:"og_description,omitempty"`
	OGImage        *string    `json:"og_image,omitempty"`
	OGSiteName     *string    `json:"og_site_name,omitempty"`
	OGType         *string    `json:"og_type,omitempty"`
	RawMedia       []RawMedia `json:"raw_media,omitempty"`
}

// ProbeDevice is a registered probe agent instance.
type ProbeDevice struct {
	ID          string    `json:"id"`
	UserID      int64     `json:"user_id"`
	BearerToken string    `json:"-"`
	DisplayName string    `json:"display_name"`
	LastSeenAt  time.Time `json:"last_seen_at"`
	CreatedAt   time.Time `json:"created_at"`
}

// DeviceAuthStatus is the lifecycle state of a DeviceAuthRequest.
type DeviceAuthStatus string

// Device-auth statuses.
const (
	DeviceAuthPending    DeviceAuthStatus = "pending"
	DeviceAuthAuthorized DeviceAuthStatus = "authorized"
	DeviceAuthExpired    DeviceAuthStatus = "expired"
)

// DeviceAuthRequest is one in-flight device-code enrollment.
type DeviceAuthRequest struct {
	DeviceCode    string           `json:"device_code"`
	UserCode      string           `json:"user_code"`
	Status        DeviceAuthStatus `json:"status"`
	AuthorizedBy  *int64           `json:"authorized_by,omitempty"`
	ExpiresAt     time.Time        `json:"expires_at"`
	CreatedAt     time.Time        `json:"created_at"`
}
