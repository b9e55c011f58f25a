package interceptor

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	id "reloop/pkg/domain"
)

// subjectClaims are checked in order when reading an unverified token.
var subjectClaims = []string{"sub", "userId", "user_id", "id"}

var unverifiedParser = jwt.NewParser()

// FromUnverifiedBearer extracts a subject from a Bearer token without checking its
// signature. The result is only ever used to attribute an activity record; it must never
// grant access.
func FromUnverifiedBearer(authorization string) id.UserID {
	scheme, token, ok := strings.Cut(strings.TrimSpace(authorization), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return ""
	}

	claims := jwt.MapClaims{}
	if _, _, err := unverifiedParser.ParseUnverified(token, claims); err != nil {
		return ""
	}
	for _, key := range subjectClaims {
		if v := scalarString(claims[key]); v != "" {
			return id.UserID(v)
		}
	}
	return ""
}

// responseUserPaths are the JSON locations a login response may carry the user ID in.
var responseUserPaths = [][]string{
	{"userId"},
	{"user", "id"},
	{"user", "_id"},
	{"data", "user", "id"},
	{"data", "user", "_id"},
	{"data", "userId"},
}

// userIDFromResponse backfills the subject of a login from its JSON response body.
func userIDFromResponse(body []byte) id.UserID {
	doc := decodeObject(body)
	if doc == nil {
		return ""
	}
	for _, path := range responseUserPaths {
		if v := lookup(doc, path); v != "" {
			return id.UserID(v)
		}
	}
	return ""
}

// userIDHint reads a userId field from a request body. Used only on the OTP verification
// path, where the caller has no token yet.
func userIDHint(body []byte) id.UserID {
	doc := decodeObject(body)
	if doc == nil {
		return ""
	}
	return id.UserID(lookup(doc, []string{"userId"}))
}

var entityNameFields = []string{"name", "title", "email", "fullName"}

func entityNameFromBody(body []byte) string {
	doc := decodeObject(body)
	if doc == nil {
		return ""
	}
	for _, field := range entityNameFields {
		if v := lookup(doc, []string{field}); v != "" {
			return v
		}
	}
	return ""
}

func decodeObject(body []byte) map[string]any {
	if len(body) == 0 {
		return nil
	}
	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil
	}
	return doc
}

func lookup(doc map[string]any, path []string) string {
	var cur any = doc
	for _, key := range path {
		obj, ok := cur.(map[string]any)
		if !ok {
			return ""
		}
		cur = obj[key]
	}
	return scalarString(cur)
}

func scalarString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	}
	return ""
}
