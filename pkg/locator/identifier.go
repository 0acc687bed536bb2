package locator

// Identifier is either a canonical content locator or an object id. Exactly
// one of the fields is set on a valid identifier.
type Identifier struct {
	Locator  string
	ObjectID string
}

// LocatorID wraps a canonical locator
func LocatorID(canonical string) Identifier {
	return Identifier{Locator: canonical}
}

// ObjectIdentifier wraps an object id
func ObjectIdentifier(id string) Identifier {
	return Identifier{ObjectID: id}
}

// String returns the identifier in its wire form
func (id Identifier) String() string {
	if id.Locator != "" {
		return id.Locator
	}
	return id.ObjectID
}

// IsZero reports whether neither form is set
func (id Identifier) IsZero() bool {
	return id.Locator == "" && id.ObjectID == ""
}

// ParseIdentifier classifies raw as a content locator (canonicalized) or an
// object id. Anything else reports false.
func ParseIdentifier(raw string) (Identifier, bool) {
	if canonical, ok := Canonicalize(raw); ok {
		return LocatorID(canonical), true
	}
	if IsObjectID(raw) {
		return ObjectIdentifier(raw), true
	}
	return Identifier{}, false
}
