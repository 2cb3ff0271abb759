package printing

import (
	"strings"

	"github.com/erp/labelprint/internal/domain/shared"
	"github.com/google/uuid"
)

// SaleCode is a backend-issued identifier for one physical labeled unit:
// a kind prefix followed by a lowercase canonical UUID.
type SaleCode string

// ParseSaleCode validates and returns a sale code
func ParseSaleCode(s string) (SaleCode, error) {
	if len(s) != 1+36 {
		return "", shared.NewDomainError("INVALID_SALE_CODE", "Sale code must be a prefix followed by a UUID: "+s)
	}
	if !SaleCodeKind(s[0]).IsValid() {
		return "", shared.NewDomainError("INVALID_SALE_CODE", "Unknown sale code prefix: "+s[:1])
	}
	rest := s[1:]
	id, err := uuid.Parse(rest)
	if err != nil {
		return "", shared.NewDomainError("INVALID_SALE_CODE", "Sale code UUID is malformed: "+s)
	}
	if id.String() != rest {
		return "", shared.NewDomainError("INVALID_SALE_CODE", "Sale code UUID must be lowercase: "+s)
	}
	return SaleCode(s), nil
}

// NewSaleCode builds a code from a kind and a UUID
func NewSaleCode(kind SaleCodeKind, id uuid.UUID) SaleCode {
	return SaleCode(string(rune(kind)) + id.String())
}

// Kind returns the code prefix
func (c SaleCode) Kind() SaleCodeKind {
	if c == "" {
		return 0
	}
	return SaleCodeKind(c[0])
}

// Short returns the last block of the UUID, upper-cased, for printing under the code image
func (c SaleCode) Short() string {
	s := string(c)
	if i := strings.LastIndexByte(s, '-'); i >= 0 && i+1 < len(s) {
		return strings.ToUpper(s[i+1:])
	}
	return strings.ToUpper(s)
}

// String returns the raw code
func (c SaleCode) String() string {
	return string(c)
}

// TrackingURL builds the literal string encoded into a label's code image
func TrackingURL(base string, code SaleCode) string {
	return strings.TrimRight(base, "/") + "/" + string(code)
}
