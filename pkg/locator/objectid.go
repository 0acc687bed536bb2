package locator

import (
	"regexp"
)

var (
	objectIDPattern   = regexp.MustCompile(`^[0-9a-z]{5}-[0-9a-z]{5}-[0-9a-z]{15}$`)
	embeddedIDPattern = regexp.MustCompile(`[0-9a-z]{5}-[0-9a-z]{5}-[0-9a-z]{15}`)
)

// IsObjectID reports whether s has the shape of an object id
func IsObjectID(s string) bool {
	return objectIDPattern.MatchString(s)
}

// FindObjectID returns the first object id embedded in s whose type code
// passes accept. A nil accept matches every type code.
func FindObjectID(s string, accept func(typeCode string) bool) (string, bool) {
	for _, m := range embeddedIDPattern.FindAllString(s, -1) {
		if accept == nil || accept(m[6:11]) {
			return m, true
		}
	}
	return "", false
}

// TypeCode returns the resource type segment of an object id
func TypeCode(id string) string {
	if !IsObjectID(id) {
		return ""
	}
	return id[6:11]
}

// ClusterID returns the cluster segment of an object id
func ClusterID(id string) string {
	if !IsObjectID(id) {
		return ""
	}
	return id[:5]
}
