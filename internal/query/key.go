package query

import (
	"log/slog"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Key identifies a query. The first segment is usually the Owner of the
// data so that browsers never share entries.
type Key []string

const keySep = "\x1f"

func (k Key) String() string {
	return strings.Join(k, keySep)
}

// LogValue renders the key with readable separators.
func (k Key) LogValue() slog.Value {
	return slog.StringValue(strings.Join(k, "/"))
}

// HasPrefix reports whether k starts with every segment of prefix.
func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix) > len(k) {
		return false
	}
	for i := range prefix {
		if k[i] != prefix[i] {
			return false
		}
	}
	return true
}

// Owner derives a key segment from an access token without storing the
// token itself.
func Owner(token string) string {
	return "u" + strconv.FormatUint(xxhash.Sum64String(token), 16)
}
