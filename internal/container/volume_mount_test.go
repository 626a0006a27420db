// SPDX-License-Identifier: MPL-2.0

package container

import (
	"errors"
	"testing"
)

func TestParseVolumeMount(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    VolumeMount
		wantErr bool
	}{
		{
			name:  "simple",
			input: "/host:/container",
			want:  VolumeMount{HostPath: "/host", ContainerPath: "/container"},
		},
		{
			name:  "read only",
			input: "/host:/container:ro",
			want:  VolumeMount{HostPath: "/host", ContainerPath: "/container", ReadOnly: true},
		},
		{
			name:  "selinux shared",
			input: "/host:/container:z",
			want:  VolumeMount{HostPath: "/host", ContainerPath: "/container", SELinux: SELinuxLabelShared},
		},
		{
			name:  "combined options",
			input: "/host:/container:ro,Z",
			want:  VolumeMount{HostPath: "/host", ContainerPath: "/container", ReadOnly: true, SELinux: SELinuxLabelPrivate},
		},
		{
			name:    "missing container path",
			input:   "/host",
			wantErr: true,
		},
		{
			name:    "empty",
			input:   "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseVolumeMount(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidVolumeMount) {
					t.Fatalf("ParseVolumeMount(%q) error = %v, want ErrInvalidVolumeMount", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseVolumeMount(%q) error = %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseVolumeMount(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
		})
	}
}

func TestVolumeMount_String(t *testing.T) {
	tests := []struct {
		name  string
		mount VolumeMount
		want  string
	}{
		{
			name:  "plain",
			mount: VolumeMount{HostPath: "/a", ContainerPath: "/b"},
			want:  "/a:/b",
		},
		{
			name:  "read only with selinux",
			mount: VolumeMount{HostPath: "/a", ContainerPath: "/b", ReadOnly: true, SELinux: SELinuxLabelShared},
			want:  "/a:/b:ro,z",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.mount.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAddSELinuxLabel_PreservesExplicitLabel(t *testing.T) {
	mount := VolumeMount{HostPath: "/a", ContainerPath: "/b", SELinux: SELinuxLabelPrivate}
	if got := addSELinuxLabel(mount); got != "/a:/b:Z" {
		t.Errorf("addSELinuxLabel() = %q, want %q", got, "/a:/b:Z")
	}
}
