package dockerx

import "testing"

func TestHasDockerErrorSignature(t *testing.T) {
	cases := []struct {
		log  string
		want bool
	}{
		{"attempt finished cleanly", false},
		{"failed to create endpoint on network ctfnet-abc: exchange full", true},
		{"random 500 Server Error from daemon", true},
		{"docker.errors.APIError: conflict", true},
		{"", false},
	}

	for _, tc := range cases {
		if got := HasDockerErrorSignature(tc.log); got != tc.want {
			t.Errorf("HasDockerErrorSignature(%q) = %v, want %v", tc.log, got, tc.want)
		}
	}
}
