package loc

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	// BaseURL is the base URL for the Library of Congress JSON API
	BaseURL = "https://www.loc.gov"

	// Collection is the AIDS Memorial Quilt Records collection identifier
	Collection = "aids-memorial-quilt-records"

	// ItemIDPrefix is the archive prefix shared by every item in the collection
	ItemIDPrefix = "afc2019048"

	// DefaultItemsPerPage is the default page size for collection searches
	DefaultItemsPerPage = 100

	// MaxItemsPerPage is the largest page size the API accepts
	MaxItemsPerPage = 1000
)

// SearchURL constructs the URL for a collection search page (1-based)
func SearchURL(base, collection string, perPage, page int) string {
	if perPage <= 0 {
		perPage = DefaultItemsPerPage
	} else if perPage > MaxItemsPerPage {
		perPage = MaxItemsPerPage
	}
	if page <= 0 {
		page = 1
	}

	params := url.Values{}
	params.Set("fo", "json")
	params.Set("c", fmt.Sprintf("%d", perPage))
	params.Set("sp", fmt.Sprintf("%d", page))

	return fmt.Sprintf("%s/collections/%s/?%s", strings.TrimRight(base, "/"), collection, params.Encode())
}

// ItemURL constructs the URL for fetching a single item's JSON payload
func ItemURL(base, itemID string) string {
	return fmt.Sprintf("%s/item/%s/?fo=json", strings.TrimRight(base, "/"), itemID)
}

// CanonicalItemURL returns the public page URL stored as a Record's source URL
func CanonicalItemURL(itemID string) string {
	return fmt.Sprintf("%s/item/%s/", BaseURL, itemID)
}

// ItemIDFromURL extracts the bare item identifier from a LOC item URL such
// as "https://www.loc.gov/item/afc2019048_0001/". It returns the input
// unchanged when it is not an item URL.
func ItemIDFromURL(s string) string {
	idx := strings.Index(s, "/item/")
	if idx < 0 {
		return strings.TrimSpace(s)
	}
	id := s[idx+len("/item/"):]
	id = strings.TrimRight(id, "/")
	if qs := strings.Index(id, "?"); qs >= 0 {
		id = id[:qs]
	}
	return id
}

// FormatItemID turns a quilt block number into the item identifier used by
// the collection. Block numbers below 1000 are zero padded to four digits;
// higher numbers are not padded.
func FormatItemID(block int) string {
	if block < 1000 {
		return fmt.Sprintf("%s_%04d", ItemIDPrefix, block)
	}
	return fmt.Sprintf("%s_%d", ItemIDPrefix, block)
}

// BlockNumberFromItemID extracts the numeric block suffix from an item
// identifier, returning 0 if the suffix is not numeric.
func BlockNumberFromItemID(itemID string) int {
	idx := strings.LastIndex(itemID, "_")
	if idx < 0 || idx == len(itemID)-1 {
		return 0
	}
	var block int
	if _, err := fmt.Sscanf(itemID[idx+1:], "%d", &block); err != nil {
		return 0
	}
	return block
}
