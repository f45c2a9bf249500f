// internal/models/common.go
package models

// Quantity carries a value and its unit, e.g. 2.5 "ton".
type Quantity struct {
	Unit  string  `bson:"unit,omitempty" json:"unit"`
	Value float64 `bson:"value" json:"value"`
}

// Address is a free-text address with optional coordinates.
type Address struct {
	FullText  string   `bson:"fullText" json:"fullText"`
	Latitude  *float64 `bson:"latitude,omitempty" json:"latitude,omitempty"`
	Longitude *float64 `bson:"longitude,omitempty" json:"longitude,omitempty"`
}

// MediaPointer references a file kept in object storage.
type MediaPointer struct {
	ID       string `bson:"id" json:"id"`
	URL      string `bson:"url" json:"url"`
	Key      string `bson:"key" json:"key"`
	FileName string `bson:"fileName" json:"fileName"`
	FileType string `bson:"fileType" json:"fileType"` // e.g. "image/png", "application/pdf"
}
