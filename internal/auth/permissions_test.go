package auth

import (
	"errors"
	"testing"
)

func TestHasPermission(t *testing.T) {
	tests := []struct {
		role Role
		perm Permission
		want bool
	}{
		{RoleAdmin, PermHubConfigure, true},
		{RoleAdmin, PermUserManage, true},
		{RoleManager, PermBreakerManage, true},
		{RoleManager, PermHubConfigure, false},
		{RoleManager, PermUserManage, false},
		{RoleReceptionist, PermRoomUpdateStatus, true},
		{RoleReceptionist, PermBreakerRead, true},
		{RoleReceptionist, PermBreakerControl, false},
		{RoleHousekeeping, PermRoomUpdateStatus, true},
		{RoleHousekeeping, PermBreakerRead, false},
		{RoleMaintenance, PermBreakerControl, true},
		{RoleMaintenance, PermBreakerManage, false},
		{RoleMaintenance, PermRoomUpdateStatus, false},
		{Role("owner"), PermRoomRead, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.role)+"/"+string(tt.perm), func(t *testing.T) {
			if got := HasPermission(tt.role, tt.perm); got != tt.want {
				t.Errorf("HasPermission(%s, %s) = %v, want %v", tt.role, tt.perm, got, tt.want)
			}
		})
	}
}

func TestEveryRoleCanReadRooms(t *testing.T) {
	for _, r := range ValidRoles {
		if !HasPermission(r, PermRoomRead) {
			t.Errorf("%s lacks %s", r, PermRoomRead)
		}
	}
}

func TestPermissionsForRole_ReturnsCopy(t *testing.T) {
	perms := PermissionsForRole(RoleHousekeeping)
	if len(perms) != 2 {
		t.Fatalf("housekeeping has %d permissions, want 2", len(perms))
	}
	perms[0] = PermHubConfigure
	if HasPermission(RoleHousekeeping, PermHubConfigure) {
		t.Error("mutating the returned slice changed the role table")
	}

	if got := PermissionsForRole(Role("guest")); len(got) != 0 {
		t.Errorf("unknown role has %d permissions, want 0", len(got))
	}
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole(" Maintenance ")
	if err != nil {
		t.Fatalf("ParseRole() error = %v", err)
	}
	if r != RoleMaintenance {
		t.Errorf("ParseRole() = %q, want maintenance", r)
	}

	for _, bad := range []string{"", "owner", "panel"} {
		if _, err := ParseRole(bad); !errors.Is(err, ErrInvalidRole) {
			t.Errorf("ParseRole(%q) error = %v, want ErrInvalidRole", bad, err)
		}
	}
}

func TestIsValidUsername(t *testing.T) {
	valid := []string{"admin", "j.smith", "night_shift-2"}
	invalid := []string{"", "has space", "semi;colon", string(make([]byte, 65))}

	for _, u := range valid {
		if !IsValidUsername(u) {
			t.Errorf("IsValidUsername(%q) = false", u)
		}
	}
	for _, u := range invalid {
		if IsValidUsername(u) {
			t.Errorf("IsValidUsername(%q) = true", u)
		}
	}
}
