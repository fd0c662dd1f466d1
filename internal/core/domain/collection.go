package domain

import "strings"

// Collection names one of the fixed logical namespaces of the store.
type Collection string

const (
	// CollectionNodes holds document-tree node records.
	CollectionNodes Collection = "nodes"

	// CollectionTheme holds the single theme settings record.
	CollectionTheme Collection = "theme"

	// CollectionImages holds image payload records.
	CollectionImages Collection = "images"
)

// Collections returns all known collections in a stable order.
func Collections() []Collection {
	return []Collection{CollectionNodes, CollectionTheme, CollectionImages}
}

// Valid reports whether c is one of the known collections.
func (c Collection) Valid() bool {
	switch c {
	case CollectionNodes, CollectionTheme, CollectionImages:
		return true
	default:
		return false
	}
}

// String implements fmt.Stringer.
func (c Collection) String() string {
	return string(c)
}

// ParseCollection parses a collection name (case-insensitive).
func ParseCollection(name string) (Collection, error) {
	c := Collection(strings.ToLower(strings.TrimSpace(name)))
	if !c.Valid() {
		return "", ErrUnknownCollection.WithDetails(name)
	}
	return c, nil
}
