package urlcheck

import "testing"

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		url  string
		want bool
	}{
		// Accepted public destinations.
		{name: "plain https", url: "https://example.com/paper.pdf", want: true},
		{name: "http with query", url: "http://example.com/search?q=transformers&page=2", want: true},
		{name: "multi-label host", url: "https://eprints.sub.uni-hamburg.de/id/123", want: true},
		{name: "public ipv4 literal", url: "http://93.184.216.34/", want: true},
		{name: "host with port", url: "https://example.com:8443/x", want: true},

		// Scheme and shape failures.
		{name: "relative url", url: "/works/W123", want: false},
		{name: "missing scheme", url: "example.com/paper", want: false},
		{name: "ftp scheme", url: "ftp://example.com/file", want: false},
		{name: "file scheme", url: "file:///etc/passwd", want: false},
		{name: "empty string", url: "", want: false},
		{name: "scheme only", url: "https://", want: false},

		// Non-public addresses.
		{name: "loopback ipv4", url: "http://127.0.0.1/admin", want: false},
		{name: "loopback ipv6", url: "http://[::1]:8080/", want: false},
		{name: "rfc1918 ten", url: "http://10.0.0.5/", want: false},
		{name: "rfc1918 oneninetwo", url: "http://192.168.1.1/router", want: false},
		{name: "rfc1918 oneseventwo", url: "http://172.16.0.1/", want: false},
		{name: "link-local metadata endpoint", url: "http://169.254.169.254/latest/meta-data/", want: false},
		{name: "unspecified", url: "http://0.0.0.0/", want: false},
		{name: "multicast", url: "http://224.0.0.1/", want: false},
		{name: "ipv6 link-local", url: "http://[fe80::1]/", want: false},
		{name: "ipv6 unique-local", url: "http://[fd12:3456::1]/", want: false},
		{name: "ipv4-mapped loopback", url: "http://[::ffff:127.0.0.1]/", want: false},
		{name: "ipv4-mapped private", url: "http://[::ffff:10.0.0.1]/", want: false},

		// Hostname policy.
		{name: "localhost", url: "http://localhost/", want: false},
		{name: "localhost uppercase", url: "http://LOCALHOST/", want: false},
		{name: "single label", url: "http://intranet/", want: false},
		{name: "trailing dot", url: "https://example.com./", want: false},
		{name: "unregistered but well-formed tld", url: "https://example.zzzzzz/", want: true},
		{name: "one-char tld", url: "https://example.c/", want: false},
		{name: "numeric tld", url: "https://example.123/", want: false},
		{name: "leading hyphen label", url: "https://-bad.example.com/", want: false},
		{name: "trailing hyphen label", url: "https://bad-.example.com/", want: false},
		{name: "underscore in label", url: "https://bad_host.example.com/", want: false},
		{name: "empty label", url: "https://a..com/", want: false},

		// Query syntax.
		{name: "bad percent escape in query", url: "https://example.com/?q=%zz", want: false},
		{name: "semicolon separator in query", url: "https://example.com/?a=1;b=2", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Validate(tt.url); got != tt.want {
				t.Errorf("Validate(%q) = %v, want %v", tt.url, got, tt.want)
			}
		})
	}
}
