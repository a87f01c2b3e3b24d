package loop

import "testing"

func TestParseDevice(t *testing.T) {
	tests := []struct {
		path    string
		number  int
		wantErr bool
	}{
		{path: "/dev/loop0", number: 0},
		{path: "/dev/loop12", number: 12},
		{path: "/dev/mapper/snap.img", wantErr: true},
		{path: "/dev/loop", wantErr: true},
		{path: "/dev/loop1p2", wantErr: true},
		{path: "/dev/loop-control", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			dev, err := ParseDevice(tc.path)
			if tc.wantErr {
				if err == nil {
					t.Errorf("expected error, got %+v", dev)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDevice failed: %v", err)
			}
			if dev.Number != tc.number || dev.Path != tc.path {
				t.Errorf("got %+v", dev)
			}
		})
	}
}

func TestBackingFile(t *testing.T) {
	var info LoopInfo64
	copy(info.FileName[:], "/images/disk.img")
	if got := info.BackingFile(); got != "/images/disk.img" {
		t.Errorf("BackingFile = %q", got)
	}

	for i := range info.FileName {
		info.FileName[i] = 'x'
	}
	if got := info.BackingFile(); len(got) != 64 {
		t.Errorf("unterminated name should use all 64 bytes, got %d", len(got))
	}
}

func TestFlagNames(t *testing.T) {
	info := LoopInfo64{Flags: LoFlagsReadOnly | LoFlagsAutoclear}
	got := info.FlagNames()
	if len(got) != 2 || got[0] != "read-only" || got[1] != "autoclear" {
		t.Errorf("FlagNames = %v", got)
	}
	if got := (&LoopInfo64{}).FlagNames(); got != nil {
		t.Errorf("no flags should give nil, got %v", got)
	}
}
