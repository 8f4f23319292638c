package types

import "time"

// Object is the remote store's basic object: an id and an opaque payload.
type Object struct {
	ID       string    `json:"id"`
	Payload  []byte    `json:"payload"`
	Modified time.Time `json:"modified"`
}

// Listing is the result of listing a collection. Timestamp is the store's
// clock when the listing was taken and is what pollers use as a watermark.
type Listing struct {
	IDs       []string  `json:"ids"`
	Timestamp time.Time `json:"timestamp"`
}
