package version

import "testing"

func TestGetDefaults(t *testing.T) {
	info := Get()
	if info.BuildVersion != "dev" || info.BuiltAt != "unknown" {
		t.Fatalf("Get returned %+v, want dev/unknown defaults", info)
	}
	if got := info.String(); got != "proxywarden dev (built unknown)" {
		t.Fatalf("String returned %q", got)
	}
}
