package orders

import (
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

// Document number prefixes per workflow.
const (
	PrefixInvoice = "INV"
	PrefixSale    = "SALE"
)

// GenerateDocumentNumber returns PREFIX-YYMMDD-NNNN where NNNN is
// floor(random*10000) zero padded. random must return values in [0, 1).
// Numbers are not checked for collisions.
func GenerateDocumentNumber(prefix string, now time.Time, random func() float64) string {
	if random == nil {
		random = rand.Float64
	}
	suffix := int(math.Floor(random() * 10000))
	return fmt.Sprintf("%s-%s-%04d", prefix, now.Format("060102"), suffix)
}
