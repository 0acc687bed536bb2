// Package locator parses the two identifier spaces used by the lineage engine.
//
// # Content locators
//
// A content locator names immutable, content-addressed data:
//
//	acbd18db4cc2f85cedef654fccc4a4d8+3+Afcd3d2d19b3d2b1b8e35a8c4a1e0b8d3@65a1b2c3+K@zzzzz
//
// The first segment is a 32 character lowercase hex MD5 digest, the second is
// the content size in bytes, and any further segments are hints (signatures,
// cluster routing, and so on). Two locators with the same hash and size are
// the same data no matter which hints they carry, so every identity check in
// this module goes through Locator.Canonical.
//
// The size is held as an int64. Canonical renders it in decimal without
// leading zeros, so hash+007 and hash+7 are one key. Digit runs too large for
// an int64 match the grammar but are not locators: Parse reports false for
// them and they are never walked.
//
// # Object ids
//
// Mutable store records are addressed by fixed width object ids:
//
//	zzzzz-8i9sb-0123456789abcde
//
// The first segment is the cluster id, the second a type code that selects
// the resource kind, and the third the object segment. Classify maps a type
// code onto the closed set of kinds the walker knows how to expand.
//
// # Usage
//
//	if loc, ok := locator.Parse(raw); ok {
//		key := loc.Canonical()
//		...
//	}
//
//	switch locator.Classify(id) {
//	case locator.KindJob:
//	case locator.KindCollection:
//	default:
//	}
package locator
