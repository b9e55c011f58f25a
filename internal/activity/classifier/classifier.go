// Package classifier maps an HTTP method and path to a domain action, its label, the
// entity it touches and a risk tier. It is pure and table driven.
package classifier

import (
	"net/http"
	"regexp"
	"slices"
	"strings"

	"reloop/internal/activity/models"
)

// Classification is the result of a successful match.
type Classification struct {
	Action     models.Action
	Label      string
	EntityType string
	EntityID   string
	RiskLevel  models.RiskLevel
}

type segmentKind int

const (
	segmentWildcard segmentKind = iota + 1
	segmentParam
	segmentLiteral
)

type segment struct {
	kind  segmentKind
	value string
}

// weights rank matches: literal segments outrank params and a wildcard adds nothing, so
// "/auth/login" beats "/auth/*" and "/admins/{id}" ties with "/admins/{id}/*" (table order).
var weights = map[segmentKind]int{
	segmentLiteral:  3,
	segmentParam:    2,
	segmentWildcard: 0,
}

type compiledRule struct {
	rule
	segments    []segment
	specificity int
	order       int
}

var compiled = compile(rules)

func compile(rs []rule) []compiledRule {
	out := make([]compiledRule, 0, len(rs))
	for i, r := range rs {
		cr := compiledRule{rule: r, order: i}
		for _, part := range splitPath(r.pattern) {
			var seg segment
			switch {
			case part == "*":
				seg = segment{kind: segmentWildcard}
			case strings.HasPrefix(part, "{") && strings.HasSuffix(part, "}"):
				seg = segment{kind: segmentParam, value: part[1 : len(part)-1]}
			default:
				seg = segment{kind: segmentLiteral, value: strings.ToLower(part)}
			}
			cr.segments = append(cr.segments, seg)
			cr.specificity += weights[seg.kind]
		}
		out = append(out, cr)
	}
	return out
}

// Classify resolves (method, path). ok is false when no rule applies, in which case the
// request is not logged.
func Classify(method, path string) (Classification, bool) {
	method = strings.ToUpper(method)
	parts := splitPath(NormalizePath(path))

	var (
		best   *compiledRule
		params map[string]string
	)
	for i := range compiled {
		cr := &compiled[i]
		if !slices.Contains(cr.methods, method) {
			continue
		}
		p, ok := cr.match(parts)
		if !ok {
			continue
		}
		if best == nil || cr.specificity > best.specificity {
			best, params = cr, p
		}
	}
	if best == nil {
		return Classification{}, false
	}

	c := Classification{
		Action:     best.action,
		Label:      LabelFor(best.action),
		EntityType: best.entityType,
		RiskLevel:  RiskFor(best.action),
	}
	if best.entityParam != "" {
		c.EntityID = params[best.entityParam]
	}
	return c, true
}

func (cr *compiledRule) match(parts []string) (map[string]string, bool) {
	var params map[string]string
	for i, seg := range cr.segments {
		if seg.kind == segmentWildcard {
			return params, true
		}
		if i >= len(parts) {
			return nil, false
		}
		switch seg.kind {
		case segmentLiteral:
			if strings.ToLower(parts[i]) != seg.value {
				return nil, false
			}
		case segmentParam:
			if params == nil {
				params = make(map[string]string, 1)
			}
			params[seg.value] = parts[i]
		}
	}
	return params, len(parts) == len(cr.segments)
}

// LabelFor returns the human-readable label of an action.
func LabelFor(a models.Action) string {
	if l, ok := labels[a]; ok {
		return l
	}
	return string(a)
}

// RiskFor returns the fixed risk tier of an action; unlisted actions are LOW.
func RiskFor(a models.Action) models.RiskLevel {
	if r, ok := risks[a]; ok {
		return r
	}
	return models.RiskLow
}

var apiPrefix = regexp.MustCompile(`(?i)^/api(/v[0-9]+)?(/|$)`)

// NormalizePath strips an optional /api or /api/vN prefix and any trailing slash.
func NormalizePath(path string) string {
	if path == "" {
		return "/"
	}
	if loc := apiPrefix.FindStringIndex(path); loc != nil {
		path = "/" + path[loc[1]:]
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return path
}

// IsOTPVerification reports whether path is the OTP verification endpoint, which is
// logged even when the caller has no identity yet.
func IsOTPVerification(path string) bool {
	return strings.EqualFold(NormalizePath(path), otpVerificationPath)
}

func splitPath(path string) []string {
	var parts []string
	for p := range strings.SplitSeq(path, "/") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

var mobileMarkers = []string{"android", "iphone", "ipad", "ipod", "mobile", "okhttp", "dart", "cfnetwork", "expo"}

// APIKeyHeader marks machine-to-machine callers.
const APIKeyHeader = "X-API-Key"

// DetectSource guesses the request channel: mobile user agents first, then API key or
// /api/ prefixed calls, defaulting to WEB.
func DetectSource(userAgent, path string, header http.Header) models.Source {
	ua := strings.ToLower(userAgent)
	for _, marker := range mobileMarkers {
		if strings.Contains(ua, marker) {
			return models.SourceMobile
		}
	}
	if header != nil && header.Get(APIKeyHeader) != "" {
		return models.SourceAPI
	}
	if strings.HasPrefix(strings.ToLower(path), "/api/") {
		return models.SourceAPI
	}
	return models.SourceWeb
}
