package privacy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnonymizeIP(t *testing.T) {
	tests := map[string]string{
		"192.168.1.47":                           "192.168.1.0",
		"10.0.0.0":                               "10.0.0.0",
		"127.0.0.1":                              "127.0.0.0",
		"::ffff:203.0.113.9":                     "203.0.113.0",
		"2001:db8:85a3:0000:0000:8a2e:0370:7334": "2001:db8:85a3::",
		"2001:db8:85a3:1:2:3:4:5":                "2001:db8:85a3::",
		"fe80::1%eth0":                           "fe80::",
		"::1":                                    "::",
		"":                                       "unknown",
		"unknown":                                "unknown",
		"not-an-ip":                              "invalid",
		"203.0.113.9:443":                        "invalid",
	}
	for in, want := range tests {
		assert.Equal(t, want, AnonymizeIP(in), in)
	}
}
