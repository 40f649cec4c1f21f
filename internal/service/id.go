package service

import (
	"strings"

	"github.com/google/uuid"
)

// crockford is Crockford's base32 alphabet: no I, L, O or U.
const crockford = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

const orderIDPrefix = "HB-"

// newOrderID returns "HB-" followed by 8 base32 characters (40 random bits).
func newOrderID() string {
	u := uuid.New()

	var bits uint64
	for _, b := range u[:5] {
		bits = bits<<8 | uint64(b)
	}

	var sb strings.Builder
	sb.Grow(len(orderIDPrefix) + 8)
	sb.WriteString(orderIDPrefix)
	for i := 7; i >= 0; i-- {
		sb.WriteByte(crockford[(bits>>(uint(i)*5))&0x1f])
	}
	return sb.String()
}

// NormalizeOrderID maps user input onto the canonical ID form. Lookups are
// case-insensitive and the prefix may be omitted.
func NormalizeOrderID(id string) string {
	id = strings.ToUpper(strings.TrimSpace(id))
	if id == "" {
		return ""
	}
	if !strings.HasPrefix(id, orderIDPrefix) {
		id = orderIDPrefix + id
	}
	return id
}
