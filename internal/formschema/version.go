package formschema

import "time"

// VersionEntry is one immutable snapshot in a product's history. Version
// numbers start at 1 and increase per product.
type VersionEntry struct {
	ProductID     string             `json:"productId"`
	VersionNumber int                `json:"versionNumber"`
	VersionID     string             `json:"versionId"`
	Snapshot      *FormConfiguration `json:"snapshot"`
	ChangedBy     string             `json:"changedBy"`
	ChangeNotes   string             `json:"changeNotes,omitempty"`
	CreatedAt     time.Time          `json:"createdAt"`
}
