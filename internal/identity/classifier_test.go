package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsPrivate(t *testing.T) {
	cases := []struct {
		addr string
		want bool
	}{
		{"10.1.2.3", true},
		{"10.255.255.255", true},
		{"172.16.0.1", true},
		{"172.31.255.254", true},
		{"172.32.0.1", false},
		{"172.15.9.9", false},
		{"192.168.1.10", true},
		{"192.169.1.10", false},
		{"8.8.8.8", false},
		{"127.0.0.1", false},
		{"192.168.1.10:51515", true},
		{"10.1.2", false},
		{"10.1.2.3.4", false},
		{"x10.1.2.3", false},
		{"010.1.2.3", false},
		{"::1", false},
		{"::ffff:10.0.0.1", false},
		{"fd00::1", false},
		{"", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, IsPrivate(tc.addr), "address %q", tc.addr)
	}
}

func TestDisplayAddress(t *testing.T) {
	assert.Equal(t, "10.1.2.3", DisplayAddress("10.1.2.3", true))
	assert.Equal(t, RedactedPlaceholder, DisplayAddress("8.8.8.8", true))
	assert.Equal(t, "10.1.2.3", DisplayAddress("10.1.2.3", false))
	assert.Equal(t, "8.8.8.8", DisplayAddress("8.8.8.8", false))
	assert.Equal(t, RedactedPlaceholder, DisplayAddress("2001:db8::1", true))
}
