// Package geo resolves client IP addresses to a display location. Lookups are best
// effort: every failure degrades to UnknownLocation and nothing here returns an error.
package geo

import (
	"context"
	"net/netip"

	"reloop/internal/activity/models"
)

// UnknownLocation is recorded when no location could be resolved. The location-anomaly
// detector never treats it as a real location.
const UnknownLocation = models.UnknownLocation

// Locator resolves an IP address to a location string.
type Locator interface {
	Locate(ctx context.Context, ip string) string
}

// StaticLocator returns UnknownLocation for every address. Used when no lookup service
// is configured.
type StaticLocator struct{}

func (StaticLocator) Locate(context.Context, string) string { return UnknownLocation }

// IsKnown reports whether location is a resolved value.
func IsKnown(location string) bool {
	return location != "" && location != UnknownLocation
}

// routable reports whether ip is worth an external lookup.
func routable(ip string) (netip.Addr, bool) {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return netip.Addr{}, false
	}
	addr = addr.Unmap()
	if addr.IsLoopback() || addr.IsPrivate() || addr.IsUnspecified() ||
		addr.IsLinkLocalUnicast() || addr.IsMulticast() {
		return netip.Addr{}, false
	}
	return addr, true
}
