package kernel

import "testing"

func TestGetInfo(t *testing.T) {
	info := GetInfo()
	if info.Version != "v0.1.0" {
		t.Errorf("Version = %q, want %q", info.Version, "v0.1.0")
	}
	if info.Checker == "" || info.Scheduling == "" {
		t.Errorf("GetInfo() = %+v, want every field set", info)
	}
}

func TestCheckCompatible(t *testing.T) {
	tests := []struct {
		required string
		wantErr  bool
	}{
		{"v0.1.0", false},
		{"0.1.0", false},
		{"v0.1", false},
		{"v0.0.9", false},
		{"v0.1.0-rc.1", false},
		{"v0.2.0", true},
		{"v1.0.0", true},
		{"", true},
		{"latest", true},
	}

	for _, tt := range tests {
		t.Run(tt.required, func(t *testing.T) {
			err := CheckCompatible(tt.required)
			if (err != nil) != tt.wantErr {
				t.Errorf("CheckCompatible(%q) error = %v, wantErr %v", tt.required, err, tt.wantErr)
			}
		})
	}
}
