package version

import (
	"strings"
	"testing"
)

func TestSummary(t *testing.T) {
	out := Summary()
	if !strings.Contains(out, "version: "+Version) || !strings.Contains(out, "commit: "+Commit) {
		t.Fatalf("unexpected summary %q", out)
	}
	if UserAgent() != "azcostalert/"+Version {
		t.Fatalf("unexpected user agent %q", UserAgent())
	}
}
