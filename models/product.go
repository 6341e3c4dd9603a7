package models

import "encoding/json"

// Category is a catalog category record. IDs are opaque strings assigned by
// the remote API.
type Category struct {
	ID   string `json:"_id"`
	Name string `json:"name"`
}

// RemoteImage is one image as stored on the remote product record.
type RemoteImage struct {
	ID    string `json:"_id,omitempty"`
	URL   string `json:"url"`
	Order int    `json:"order"`
}

// CategoryRef decodes a product's category field, which the API returns
// either as a bare id or as a populated {_id, name} object depending on the
// endpoint.
type CategoryRef struct {
	ID   string
	Name string
}

func (c *CategoryRef) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		return json.Unmarshal(b, &c.ID)
	}
	var obj struct {
		ID   string `json:"_id"`
		Name string `json:"name"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	c.ID = obj.ID
	c.Name = obj.Name
	return nil
}

func (c CategoryRef) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.ID)
}

// Product is a catalog product record as served by the remote API.
type Product struct {
	ID            string        `json:"_id"`
	Name          string        `json:"name"`
	Description   string        `json:"description"`
	Price         float64       `json:"price"`
	OriginalPrice *float64      `json:"originalPrice,omitempty"`
	Stock         int           `json:"stock"`
	Category      CategoryRef   `json:"category"`
	Images        []RemoteImage `json:"images,omitempty"`
}

// ProductDraft is a product submission built from one import row or form. It
// is submitted once and discarded; the remote API assigns the id.
type ProductDraft struct {
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	Price         float64  `json:"price"`
	OriginalPrice *float64 `json:"originalPrice,omitempty"`
	Stock         int      `json:"stock"`
	CategoryID    string   `json:"category"`
}
