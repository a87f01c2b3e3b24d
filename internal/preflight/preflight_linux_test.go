package preflight

import "testing"

func TestKernelVersion(t *testing.T) {
	v, err := KernelVersion()
	if err != nil {
		t.Fatalf("KernelVersion failed: %v", err)
	}
	if v == "" {
		t.Error("expected non-empty kernel version")
	}
}

func TestHasMiscDevice(t *testing.T) {
	data := []byte(" 58 rfkill\n236 device-mapper\n183 hw_random\n237 loop-control\n")

	tests := []struct {
		name string
		want bool
	}{
		{"device-mapper", true},
		{"loop-control", true},
		{"device", false},
		{"btrfs-control", false},
	}
	for _, tc := range tests {
		if got := hasMiscDevice(data, tc.name); got != tc.want {
			t.Errorf("hasMiscDevice(%q) = %v, want %v", tc.name, got, tc.want)
		}
	}
}
