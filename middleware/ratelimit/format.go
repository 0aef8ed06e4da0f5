// Formatação dos headers de quota, sem passar por fmt.

package ratelimit

import (
	"net/http"
	"strconv"
	"time"

	"concierge-gateway/contract"
	"concierge-gateway/middleware/ratelimit/domain"
)

func formatInt(v int) string { return strconv.Itoa(v) }

// setQuotaHeaders publica o estado da janela em toda resposta decidida pelo store.
func setQuotaHeaders(h http.Header, dec domain.Decision, now time.Time) {
	h.Set(contract.HeaderLimit, formatInt(dec.Limit))
	h.Set(contract.HeaderRemaining, formatInt(dec.Remaining))
	h.Set(contract.HeaderReset, formatInt(dec.ResetSeconds(now)))
}
