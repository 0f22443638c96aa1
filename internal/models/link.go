package models

import "time"

// LinkStatus is the lifecycle state of a Link. Transitions form a DAG:
// pending -> {scraped, waiting_probe, error}; waiting_probe -> pending (via
// probe result re-spawn); scraped -> analyzed; {analyzed, error} -> pending
// on retry.
type LinkStatus string

// Link statuses.
const (
	LinkStatusPending      LinkStatus = "pending"
	LinkStatusScraped      LinkStatus = "scraped"
	LinkStatusAnalyzed     LinkStatus = "analyzed"
	LinkStatusError        LinkStatus = "error"
	LinkStatusWaitingProbe LinkStatus = "waiting_probe"
)

// ImageDescriptor is one entry of a Link's optional image list, carried as
// JSON in the store.
type ImageDescriptor struct {
	URL     string `json:"url"`
	OCRText string `json:"ocr_text,omitempty"`
}

// Link is a single submitted URL and everything the pipeline has derived
// from it.
type Link struct {
	ID          int64      `json:"id"`
	UserID      int64      `json:"user_id"`
	URL         string     `json:"url"`
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	Image       *string    `json:"image,omitempty"`
	SiteName    *string    `json:"site_name,omitempty"`
	Type        *string    `json:"type,omitempty"`
	Markdown    *string    `json:"-"` // never serialized to the API; large and internal
	Summary     *string    `json:"summary,omitempty"`
	Insight     *string    `json:"insight,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
	Images      []ImageDescriptor `json:"images,omitempty"`
	Vector      []float32  `json:"-"`
	Status      LinkStatus `json:"status"`
	Error       *string    `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// LinkFields is a partial update for UpdateLinkFields. A nil pointer field
// means "leave unchanged"; Clear* flags explicitly null a nullable column
// (used e.g. to clear Error on resubmission).
type LinkFields struct {
	Title       *string
	Description *string
	Image       *string
	SiteName    *string
	Type        *string
	Markdown    *string
	Summary     *string
	Insight     *string
	Tags        *[]string
	Images      *[]ImageDescriptor
	Vector      *[]float32
	Status      *LinkStatus
	Error       *string
	ClearError  bool
}

// RelatedLink is one entry of a GetRelations result: the other endpoint of
// the relation plus the similarity score.
type RelatedLink struct {
	LinkID int64   `json:"link_id"`
	Score  float64 `json:"score"`
}

// LinkListItem is the compact shape returned by list endpoints.
type LinkListItem struct {
	ID        int64      `json:"id"`
	URL       string     `json:"url"`
	Title     *string    `json:"title,omitempty"`
	Status    LinkStatus `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
}
