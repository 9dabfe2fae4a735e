package loc

import (
	"encoding/json"
	"strings"
)

// StringList accepts LOC metadata fields that arrive either as a single
// string or as an array of strings.
type StringList []string

// UnmarshalJSON implements json.Unmarshaler
func (s *StringList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		if single == "" {
			*s = nil
		} else {
			*s = StringList{single}
		}
		return nil
	}

	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*s = StringList(many)
	return nil
}

// ItemPayload is the metadata the API returns for one collection item,
// either as a search result entry or as the "item" block of an item page.
type ItemPayload struct {
	ID             string     `json:"id"`
	URL            string     `json:"url"`
	Title          string     `json:"title"`
	Date           string     `json:"date"`
	Description    StringList `json:"description"`
	Subjects       StringList `json:"subject"`
	Contributors   StringList `json:"contributor"`
	Location       StringList `json:"location"`
	OriginalFormat StringList `json:"original_format"`
	ImageURLs      StringList `json:"image_url"`
	Resources      []Resource `json:"resources"`
}

// Resource is one entry of an item's resources array
type Resource struct {
	Image string `json:"image"`
	PDF   string `json:"pdf"`
	URL   string `json:"url"`
}

// ItemID returns the bare item identifier, normalizing the full item URL
// the API puts in the id field.
func (p *ItemPayload) ItemID() string {
	if p.ID != "" {
		return ItemIDFromURL(p.ID)
	}
	return ItemIDFromURL(p.URL)
}

// Valid reports whether the payload carries the fields a Record requires.
// Items without an identifier cannot be keyed and are treated as malformed.
func (p *ItemPayload) Valid() bool {
	id := p.ItemID()
	return id != "" && !strings.Contains(id, "/")
}

// Pagination is the pagination block of a search response
type Pagination struct {
	Current int    `json:"current"`
	Total   int    `json:"total"`
	Next    string `json:"next"`
	Results string `json:"results"`
	Of      int    `json:"of"`
}

// SearchResponse is the JSON body of a collection search page
type SearchResponse struct {
	Results    []ItemPayload `json:"results"`
	Pagination *Pagination   `json:"pagination"`
}

// SearchPage is one fetched page of the collection
type SearchPage struct {
	Page    int
	Items   []ItemPayload
	HasMore bool
	// TotalItems is the collection size reported by the API, 0 if unknown
	TotalItems int
}

// ItemResponse is the JSON body of a single item page
type ItemResponse struct {
	Item      ItemPayload `json:"item"`
	Resources []Resource  `json:"resources"`
}
