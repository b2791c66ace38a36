package dockerenv

import (
	"strconv"
	"strings"
	"testing"

	"github.com/Cyber-Gym/enigma-plus/pkg/challenge"
)

func TestServerDescriptionNeverLeaksLocalhostOrExternalPort(t *testing.T) {
	cases := []challenge.Descriptor{
		{ChallengeID: "web_Foo", Category: "web", ServerAlias: "web-foo", InternalPort: 80},
		{ChallengeID: "misc_Bar", Category: "misc", ServerAlias: "misc-bar", InternalPort: 8080},
		{ChallengeID: "pwn_Baz", Category: "pwn", ServerAlias: "pwn-baz", InternalPort: 9999},
		{ChallengeID: "crypto_Qux", Category: "crypto", ServerAlias: "crypto-qux", InternalPort: 31337},
	}

	externalLookingPort := "54321"

	for _, ch := range cases {
		desc := serverDescription(ch)

		if strings.Contains(desc, "localhost") {
			t.Errorf("%s: server description must never mention localhost: %q", ch.ChallengeID, desc)
		}
		if strings.Contains(desc, externalLookingPort) {
			t.Errorf("%s: server description leaked an unrelated port-looking number: %q", ch.ChallengeID, desc)
		}
		if !strings.Contains(desc, ch.ServerAlias) {
			t.Errorf("%s: server description must reference the service alias: %q", ch.ChallengeID, desc)
		}
		if !strings.Contains(desc, strconv.Itoa(ch.InternalPort)) {
			t.Errorf("%s: server description must reference the internal port: %q", ch.ChallengeID, desc)
		}
	}
}

func TestServerDescriptionFormulationByCategory(t *testing.T) {
	web := challenge.Descriptor{ChallengeID: "web_Foo", Category: "web", ServerAlias: "alias", InternalPort: 80}
	if got := serverDescription(web); !strings.Contains(got, "curl http://") {
		t.Errorf("expected curl-based description for web, got %q", got)
	}

	pwn := challenge.Descriptor{ChallengeID: "pwn_Foo", Category: "pwn", ServerAlias: "alias", InternalPort: 9999}
	if got := serverDescription(pwn); !strings.Contains(got, "connect_start") {
		t.Errorf("expected connect_start-based description for pwn, got %q", got)
	}
}
