package cloud

import (
	"time"

	"github.com/hemantobora/mcc/internal/models"
)

// settleDelays lists the providers whose stop call returns before the
// instance reports its new state. The command loop sleeps this long before
// refreshing so the table shows the transition.
var settleDelays = map[models.ProviderKind]time.Duration{
	models.ProviderAWS:   5 * time.Second,
	models.ProviderAzure: 10 * time.Second,
}

// SettleDelay returns the post-stop wait for kind, zero when the adapter
// already waits for completion
func SettleDelay(kind models.ProviderKind) time.Duration {
	return settleDelays[kind]
}
