package eps

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NewMerchantTransactionID mints a unique merchant transaction id in the
// format the gateway correlates across initialize, callback and status
// calls.
func NewMerchantTransactionID(now time.Time) string {
	return fmt.Sprintf("EPS-%d-%s", now.Unix(), uuid.NewString()[:8])
}
