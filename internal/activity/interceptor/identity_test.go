package interceptor

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"

	id "reloop/pkg/domain"
)

func TestFromUnverifiedBearer(t *testing.T) {
	tests := []struct {
		name   string
		header func(t *testing.T) string
		want   id.UserID
	}{
		{"sub claim", func(t *testing.T) string { return "Bearer " + signedToken(t, jwt.MapClaims{"sub": "u-1"}) }, "u-1"},
		{"user_id claim", func(t *testing.T) string { return "Bearer " + signedToken(t, jwt.MapClaims{"user_id": "u-2"}) }, "u-2"},
		{"numeric id claim", func(t *testing.T) string { return "Bearer " + signedToken(t, jwt.MapClaims{"id": 42}) }, "42"},
		{"sub wins over id", func(t *testing.T) string {
			return "Bearer " + signedToken(t, jwt.MapClaims{"id": "x", "sub": "u-3"})
		}, "u-3"},
		{"lowercase scheme", func(t *testing.T) string { return "bearer " + signedToken(t, jwt.MapClaims{"sub": "u-4"}) }, "u-4"},
		{"no claims", func(t *testing.T) string { return "Bearer " + signedToken(t, jwt.MapClaims{"role": "admin"}) }, ""},
		{"basic auth", func(*testing.T) string { return "Basic dXNlcjpwYXNz" }, ""},
		{"empty", func(*testing.T) string { return "" }, ""},
		{"garbage", func(*testing.T) string { return "Bearer abc.def" }, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FromUnverifiedBearer(tt.header(t)))
		})
	}
}

func TestUserIDFromResponse(t *testing.T) {
	tests := []struct {
		body string
		want id.UserID
	}{
		{`{"userId":"a"}`, "a"},
		{`{"user":{"id":"b"}}`, "b"},
		{`{"user":{"_id":"c"}}`, "c"},
		{`{"data":{"user":{"id":"d"}}}`, "d"},
		{`{"data":{"user":{"_id":"e"}}}`, "e"},
		{`{"data":{"userId":"f"}}`, "f"},
		{`{"data":{"user":"g"}}`, ""},
		{`[1,2,3]`, ""},
		{`not json`, ""},
		{``, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, userIDFromResponse([]byte(tt.body)), tt.body)
	}
}

func TestEntityNameFromBody(t *testing.T) {
	assert.Equal(t, "Zone A", entityNameFromBody([]byte(`{"name":"Zone A","title":"ignored"}`)))
	assert.Equal(t, "ops@reloop.africa", entityNameFromBody([]byte(`{"email":"ops@reloop.africa"}`)))
	assert.Equal(t, "Ada Obi", entityNameFromBody([]byte(`{"fullName":"Ada Obi"}`)))
	assert.Empty(t, entityNameFromBody([]byte(`{"name":{"first":"x"}}`)))
	assert.Empty(t, entityNameFromBody(nil))
}
