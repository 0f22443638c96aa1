package models

import "time"

// LinkRelation is a single stored edge. Only one row exists per unordered
// pair: (a,b) and (b,a) are never both stored. Readers must union outgoing
// (link_a = x) and incoming (link_b = x) rows to get the symmetric view.
type LinkRelation struct {
	LinkA     int64     `json:"link_a"`
	LinkB     int64     `json:"link_b"`
	Score     float64   `json:"score"`
	CreatedAt time.Time `json:"created_at"`
}
