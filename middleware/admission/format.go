// utilitário pequeno para formatação consistente de valores numéricos em headers.

package admission

import (
	"math"
	"strconv"
	"time"

	"acquisitions-gateway/middleware/admission/domain"
)

func formatInt(v int) string { return strconv.Itoa(v) }

func formatFloat(v float64) string {
	// sem notação científica para valores comuns
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// formatPolicy segue o formato do draft IETF RateLimit: "<limite>;w=<segundos>".
func formatPolicy(p domain.Policy) string {
	return formatInt(p.MaxRequests) + ";w=" + formatFloat(p.Window.Seconds()) + `;name="` + p.Name() + `"`
}

// secondsUntil arredonda para cima; nunca menos que 1 quando reset está no futuro.
func secondsUntil(reset, now time.Time) int {
	d := reset.Sub(now)
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}
