// Package device turns a User-Agent header into the short device description stored on
// activity records and compared by the new-device detector.
package device

import (
	"strings"

	"github.com/mssola/useragent"
)

// UnknownDevice is recorded when the request carries no User-Agent.
const UnknownDevice = "Unknown Device"

// Parser is the seam used by the interceptor.
type Parser interface {
	Parse(userAgent string) string
}

// UserAgentParser implements Parser with ParseUserAgent.
type UserAgentParser struct{}

func (UserAgentParser) Parse(userAgent string) string {
	return ParseUserAgent(userAgent)
}

// ParseUserAgent returns "Browser on OS" (e.g. "Chrome on Windows 10"). Mobile agents
// use the platform instead of the OS ("Safari on iPhone"). Non-browser clients fall back
// to the product token ("okhttp on Unknown OS").
func ParseUserAgent(userAgent string) string {
	userAgent = strings.TrimSpace(userAgent)
	if userAgent == "" {
		return UnknownDevice
	}

	ua := useragent.New(userAgent)
	browser, _ := ua.Browser()
	if ua.Bot() {
		browser = "Bot"
	}
	if browser == "" {
		browser = productToken(userAgent)
	}

	if ua.Mobile() {
		if platform := ua.Platform(); platform != "" {
			return strings.TrimSpace(browser + " on " + platform)
		}
	}

	osName := ua.OS()
	if osName == "" {
		osName = "Unknown OS"
	}
	return strings.TrimSpace(browser + " on " + osName)
}

// productToken extracts "okhttp" from "okhttp/4.11.0".
func productToken(userAgent string) string {
	first, _, _ := strings.Cut(userAgent, " ")
	name, _, _ := strings.Cut(first, "/")
	if name == "" {
		return "Unknown Browser"
	}
	return name
}
