package roles

import "testing"

func TestCan(t *testing.T) {
	cases := []struct {
		role   Role
		action Action
		want   bool
	}{
		{RoleLeader, ActionCreateEvent, true},
		{RoleLeader, ActionPost, true},
		{RoleMember, ActionReadFeed, true},
		{RoleMember, ActionPost, false},
		{RoleMember, ActionAcknowledge, true},
		{RoleMember, ActionCreateEvent, false},
		{RoleMember, ActionInvite, false},
		{Role(""), ActionReadFeed, false},
	}
	for _, tc := range cases {
		if got := Can(tc.role, tc.action); got != tc.want {
			t.Errorf("Can(%q, %q) = %v, want %v", tc.role, tc.action, got, tc.want)
		}
	}
}

func TestNormalize(t *testing.T) {
	if Normalize("LEADER") != RoleLeader {
		t.Error("expected LEADER to normalize to RoleLeader")
	}
	if Normalize("weird") != RoleMember {
		t.Error("expected unknown role to normalize to RoleMember")
	}
}
