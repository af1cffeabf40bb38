package middleware

import (
	"net"
	"net/http"
	"strings"

	"goride-payments/internal/utils"
	"goride-payments/pkg/logger"

	"github.com/gin-gonic/gin"
)

// CallbackSourceRequired rejects callback deliveries whose client IP is not in the
// allowlist. Entries may be single IPs or CIDR ranges; an empty list allows every source.
func CallbackSourceRequired(allowed []string, log *logger.Logger) gin.HandlerFunc {
	networks := parseAllowlist(allowed)

	return func(c *gin.Context) {
		if len(networks) == 0 {
			c.Next()
			return
		}

		ip := net.ParseIP(c.ClientIP())
		if ip != nil {
			for _, n := range networks {
				if n.Contains(ip) {
					c.Next()
					return
				}
			}
		}

		log.WithContext(c.Request.Context()).WithField("client_ip", c.ClientIP()).Warn("Rejected callback from unlisted source")
		utils.ErrorResponse(c, http.StatusForbidden, "FORBIDDEN", "Callback source not allowed.")
		c.Abort()
	}
}

func parseAllowlist(entries []string) []*net.IPNet {
	var networks []*net.IPNet
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if !strings.Contains(entry, "/") {
			if ip := net.ParseIP(entry); ip != nil {
				bits := 32
				if ip.To4() == nil {
					bits = 128
				}
				networks = append(networks, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			}
			continue
		}
		if _, n, err := net.ParseCIDR(entry); err == nil {
			networks = append(networks, n)
		}
	}
	return networks
}
