package models

import "time"

// ImageOrigin says where an image reference currently lives.
type ImageOrigin int

const (
	// OriginLocal marks a file on disk that has not been uploaded yet.
	OriginLocal ImageOrigin = iota
	// OriginRemote marks an image already hosted at a durable URL.
	OriginRemote
)

func (o ImageOrigin) String() string {
	if o == OriginLocal {
		return "local"
	}
	return "remote"
}

// ImageRef is one entry of a product's ordered image collection. Location
// holds a local file path for OriginLocal entries and a URL for OriginRemote
// ones. Within a collection the Order values are a dense zero-based
// permutation; the reconciler re-densifies them on every mutation.
type ImageRef struct {
	ID       string      `json:"id,omitempty"`
	Location string      `json:"location"`
	Order    int         `json:"order"`
	Origin   ImageOrigin `json:"origin"`
}

// MirrorEntry is the last remotely-confirmed image order for one product.
type MirrorEntry struct {
	ProductID string     `json:"productId"`
	Images    []ImageRef `json:"images"`
	UpdatedAt time.Time  `json:"updatedAt"`
}
