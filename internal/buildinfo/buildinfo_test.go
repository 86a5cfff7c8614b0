package buildinfo

import (
	"runtime"
	"testing"
)

func TestHostInfo(t *testing.T) {
	h := HostInfo()
	if h.OS != runtime.GOOS {
		t.Fatalf("os: got %q want %q", h.OS, runtime.GOOS)
	}
	if h.LogicalCPUs < 1 || h.GoMaxProcs < 1 {
		t.Fatalf("cpu counts not set: %+v", h)
	}
	if Info()["version"] == "" {
		t.Fatal("version must default to dev")
	}
}
