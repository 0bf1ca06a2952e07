package chat

import (
	"strings"
	"testing"

	"gorm.io/gorm"

	"github.com/stepline/stepline/internal/core/data"
)

func relationshipBetween(t *testing.T, db *gorm.DB, a, b uint64) *data.Relationship {
	t.Helper()
	rel, err := data.FindRelationship(db, a, b)
	if err != nil {
		t.Fatalf("error finding relationship: %v", err)
	}
	return rel
}

func TestAddFriendHandshake(t *testing.T) {
	db := setUpDatabase(t)
	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")

	cmd := &addFriendCommand{}

	// Alice requests, Bob accepts: one accepted row for the pair.
	response, err := cmd.Invoke(newTestContext(t, db, alice), "bob")
	if err != nil {
		t.Fatalf("addfriend error = %v", err)
	}
	if len(response) != 1 || !strings.HasPrefix(response[0], "Friend request sent to") {
		t.Errorf("addfriend response = %v", response)
	}

	rel := relationshipBetween(t, db, alice.ID, bob.ID)
	if rel == nil || rel.State != data.RelationshipPending {
		t.Fatalf("relationship after request = %+v, want pending", rel)
	}

	response, err = cmd.Invoke(newTestContext(t, db, bob), "alice")
	if err != nil {
		t.Fatalf("addfriend error = %v", err)
	}
	if len(response) != 1 || !strings.HasPrefix(response[0], "Accepted friend request from") {
		t.Errorf("addfriend response = %v", response)
	}

	rel = relationshipBetween(t, db, alice.ID, bob.ID)
	if rel == nil || rel.State != data.RelationshipAccepted {
		t.Fatalf("relationship after acceptance = %+v, want accepted", rel)
	}

	// Re-requesting in either direction changes nothing.
	response, err = cmd.Invoke(newTestContext(t, db, alice), "bob")
	if err != nil {
		t.Fatalf("addfriend error = %v", err)
	}
	if len(response) != 1 || !strings.Contains(response[0], "is already friends with you") {
		t.Errorf("addfriend response = %v", response)
	}
}

func TestAddFriendRepeatRequest(t *testing.T) {
	db := setUpDatabase(t)
	alice := createTestUser(t, db, "alice")
	createTestUser(t, db, "bob")

	cmd := &addFriendCommand{}

	if _, err := cmd.Invoke(newTestContext(t, db, alice), "bob"); err != nil {
		t.Fatalf("addfriend error = %v", err)
	}
	response, err := cmd.Invoke(newTestContext(t, db, alice), "bob")
	if err != nil {
		t.Fatalf("addfriend error = %v", err)
	}
	if len(response) != 1 || !strings.HasPrefix(response[0], "Already sent a friend request to") {
		t.Errorf("addfriend response = %v", response)
	}
}

func TestAddFriendTargetValidation(t *testing.T) {
	db := setUpDatabase(t)
	alice := createTestUser(t, db, "alice")

	cmd := &addFriendCommand{}

	response, err := cmd.Invoke(newTestContext(t, db, alice), "nobody")
	if err != nil {
		t.Fatalf("addfriend error = %v", err)
	}
	if len(response) != 1 || !strings.HasPrefix(response[0], "Unknown user") {
		t.Errorf("addfriend response = %v", response)
	}

	response, err = cmd.Invoke(newTestContext(t, db, alice), "alice")
	if err != nil {
		t.Fatalf("addfriend error = %v", err)
	}
	if len(response) != 1 || response[0] != "Cannot befriend yourself" {
		t.Errorf("addfriend response = %v", response)
	}
}

func TestAddFriendBlockedByIgnore(t *testing.T) {
	db := setUpDatabase(t)
	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")

	ignore := &ignoreCommand{}
	addFriend := &addFriendCommand{}

	if _, err := ignore.Invoke(newTestContext(t, db, alice), "bob"); err != nil {
		t.Fatalf("ignore error = %v", err)
	}

	// The ignorer must unignore first; the ignored side is refused outright.
	response, err := addFriend.Invoke(newTestContext(t, db, alice), "bob")
	if err != nil {
		t.Fatalf("addfriend error = %v", err)
	}
	if len(response) != 1 || !strings.Contains(response[0], "Unignore them before sending a friend request") {
		t.Errorf("addfriend response = %v", response)
	}

	response, err = addFriend.Invoke(newTestContext(t, db, bob), "alice")
	if err != nil {
		t.Fatalf("addfriend error = %v", err)
	}
	if len(response) != 1 || !strings.HasPrefix(response[0], "Cannot send") {
		t.Errorf("addfriend response = %v", response)
	}

	rel := relationshipBetween(t, db, alice.ID, bob.ID)
	if rel == nil || rel.State != data.RelationshipIgnored {
		t.Fatalf("relationship = %+v, want intact ignore", rel)
	}
}

func TestRemoveFriend(t *testing.T) {
	db := setUpDatabase(t)
	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")

	remove := &removeFriendCommand{}

	response, err := remove.Invoke(newTestContext(t, db, alice), "bob")
	if err != nil {
		t.Fatalf("removefriend error = %v", err)
	}
	if len(response) != 1 || !strings.Contains(response[0], "is not your friend") {
		t.Errorf("removefriend response = %v", response)
	}

	addFriend := &addFriendCommand{}
	if _, err := addFriend.Invoke(newTestContext(t, db, alice), "bob"); err != nil {
		t.Fatalf("addfriend error = %v", err)
	}
	if _, err := addFriend.Invoke(newTestContext(t, db, bob), "alice"); err != nil {
		t.Fatalf("addfriend error = %v", err)
	}

	response, err = remove.Invoke(newTestContext(t, db, bob), "alice")
	if err != nil {
		t.Fatalf("removefriend error = %v", err)
	}
	if len(response) != 1 || !strings.Contains(response[0], "is no longer your friend") {
		t.Errorf("removefriend response = %v", response)
	}
	if rel := relationshipBetween(t, db, alice.ID, bob.ID); rel != nil {
		t.Errorf("relationship = %+v, want none", rel)
	}
}

func TestIgnoreReplacesFriendship(t *testing.T) {
	db := setUpDatabase(t)
	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")

	addFriend := &addFriendCommand{}
	if _, err := addFriend.Invoke(newTestContext(t, db, alice), "bob"); err != nil {
		t.Fatalf("addfriend error = %v", err)
	}
	if _, err := addFriend.Invoke(newTestContext(t, db, bob), "alice"); err != nil {
		t.Fatalf("addfriend error = %v", err)
	}

	ignore := &ignoreCommand{}
	response, err := ignore.Invoke(newTestContext(t, db, alice), "bob")
	if err != nil {
		t.Fatalf("ignore error = %v", err)
	}
	if len(response) != 2 {
		t.Fatalf("ignore response = %v, want friendship removal plus ignore", response)
	}

	rel := relationshipBetween(t, db, alice.ID, bob.ID)
	if rel == nil || rel.State != data.RelationshipIgnored || rel.User1ID != alice.ID {
		t.Fatalf("relationship = %+v, want ignore imposed by alice", rel)
	}
}

func TestMutualIgnoreKeepsSingleRow(t *testing.T) {
	db := setUpDatabase(t)
	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")

	ignore := &ignoreCommand{}
	if _, err := ignore.Invoke(newTestContext(t, db, alice), "bob"); err != nil {
		t.Fatalf("ignore error = %v", err)
	}

	response, err := ignore.Invoke(newTestContext(t, db, bob), "alice")
	if err != nil {
		t.Fatalf("ignore error = %v", err)
	}
	if len(response) != 1 || !strings.HasSuffix(response[0], " ignored") {
		t.Errorf("ignore response = %v", response)
	}

	// Still the single row imposed by alice.
	rel := relationshipBetween(t, db, alice.ID, bob.ID)
	if rel == nil || rel.User1ID != alice.ID || rel.State != data.RelationshipIgnored {
		t.Fatalf("relationship = %+v, want single ignore row by alice", rel)
	}
}

func TestUnignoreOnlyByImposer(t *testing.T) {
	db := setUpDatabase(t)
	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")

	ignore := &ignoreCommand{}
	unignore := &unignoreCommand{}

	if _, err := ignore.Invoke(newTestContext(t, db, alice), "bob"); err != nil {
		t.Fatalf("ignore error = %v", err)
	}

	// Bob did not impose the ignore so he cannot lift it.
	response, err := unignore.Invoke(newTestContext(t, db, bob), "alice")
	if err != nil {
		t.Fatalf("unignore error = %v", err)
	}
	if len(response) != 1 || !strings.Contains(response[0], "is not currently ignored. Cannot unignore") {
		t.Errorf("unignore response = %v", response)
	}
	if rel := relationshipBetween(t, db, alice.ID, bob.ID); rel == nil {
		t.Fatal("ignore lifted by the wrong side")
	}

	response, err = unignore.Invoke(newTestContext(t, db, alice), "bob")
	if err != nil {
		t.Fatalf("unignore error = %v", err)
	}
	if len(response) != 1 || !strings.HasSuffix(response[0], " unignored") {
		t.Errorf("unignore response = %v", response)
	}
	if rel := relationshipBetween(t, db, alice.ID, bob.ID); rel != nil {
		t.Errorf("relationship = %+v, want none", rel)
	}
}

func TestFriendListPartitions(t *testing.T) {
	db := setUpDatabase(t)
	alice := createTestUser(t, db, "alice")
	createTestUser(t, db, "friend")
	createTestUser(t, db, "requester")
	createTestUser(t, db, "requested")
	createTestUser(t, db, "nuisance")

	addFriend := &addFriendCommand{}
	ignore := &ignoreCommand{}

	seed := []struct {
		actor  string
		target string
		cmd    Command
	}{
		{"alice", "friend", addFriend},
		{"friend", "alice", addFriend},
		{"requester", "alice", addFriend},
		{"alice", "requested", addFriend},
		{"alice", "nuisance", ignore},
	}
	for _, s := range seed {
		actor, err := data.FindUserByName(db, s.actor)
		if err != nil || actor == nil {
			t.Fatalf("error finding %s: %v", s.actor, err)
		}
		if _, err := s.cmd.Invoke(newTestContext(t, db, actor), s.target); err != nil {
			t.Fatalf("error seeding %s -> %s: %v", s.actor, s.target, err)
		}
	}

	response, err := (&friendListCommand{}).Invoke(newTestContext(t, db, alice), "")
	if err != nil {
		t.Fatalf("friendlist error = %v", err)
	}
	want := []string{
		"Friends: friend",
		"Incoming requests: requester",
		"Outgoing requests: requested",
		"Ignoring: nuisance",
	}
	if len(response) != len(want) {
		t.Fatalf("friendlist = %v", response)
	}
	for i := range want {
		if response[i] != want[i] {
			t.Errorf("friendlist[%d] = %q, want %q", i, response[i], want[i])
		}
	}
}

func TestPmDelivery(t *testing.T) {
	db := setUpDatabase(t)
	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")

	ctx := newTestContext(t, db, alice)
	transport := ctx.Server.(*fakeTransport)
	transport.connections[bob.ID] = newTestClient(t)

	pm := &pmCommand{}

	response, err := pm.Invoke(ctx, "bob hello there")
	if err != nil {
		t.Fatalf("pm error = %v", err)
	}
	if len(response) != 1 || !strings.HasSuffix(response[0], ": hello there") ||
		!strings.HasPrefix(response[0], "To ") {
		t.Errorf("pm response = %v", response)
	}
}

func TestPmValidation(t *testing.T) {
	db := setUpDatabase(t)
	alice := createTestUser(t, db, "alice")
	offline := &data.User{Name: "sleeper", Online: false}
	if err := data.CreateUser(db, offline); err != nil {
		t.Fatalf("error creating user: %v", err)
	}

	pm := &pmCommand{}

	tests := []struct {
		name string
		arg  string
		want string
	}{
		{name: "missing text", arg: "bob", want: "Need a text message to send"},
		{name: "empty input", arg: "", want: "Need a text message to send"},
		{name: "offline target", arg: "sleeper hi", want: "Could not find " + WithColor("sleeper") + " online"},
		{name: "self target", arg: "alice hi", want: "Cannot pm yourself"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			response, err := pm.Invoke(newTestContext(t, db, alice), tt.arg)
			if err != nil {
				t.Fatalf("pm error = %v", err)
			}
			if len(response) != 1 || response[0] != tt.want {
				t.Errorf("pm response = %v, want %q", response, tt.want)
			}
		})
	}
}

func TestPmBlockedByIgnore(t *testing.T) {
	db := setUpDatabase(t)
	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")

	ignore := &ignoreCommand{}
	if _, err := ignore.Invoke(newTestContext(t, db, alice), "bob"); err != nil {
		t.Fatalf("ignore error = %v", err)
	}

	pm := &pmCommand{}

	// Blocked in both directions.
	for _, sender := range []*data.User{alice, bob} {
		receiver := "bob"
		if sender.ID == bob.ID {
			receiver = "alice"
		}
		response, err := pm.Invoke(newTestContext(t, db, sender), receiver+" hey")
		if err != nil {
			t.Fatalf("pm error = %v", err)
		}
		if len(response) != 1 || !strings.HasPrefix(response[0], "Cannot send") {
			t.Errorf("pm response for %s = %v", sender.Name, response)
		}
	}
}

func TestPmUnderscoreFallback(t *testing.T) {
	db := setUpDatabase(t)
	alice := createTestUser(t, db, "alice")
	spacey := createTestUser(t, db, "dance partner")

	ctx := newTestContext(t, db, alice)
	transport := ctx.Server.(*fakeTransport)
	transport.connections[spacey.ID] = newTestClient(t)

	response, err := (&pmCommand{}).Invoke(ctx, "dance_partner save me a spot")
	if err != nil {
		t.Fatalf("pm error = %v", err)
	}
	if len(response) != 1 || !strings.HasPrefix(response[0], "To ") {
		t.Errorf("pm response = %v", response)
	}
}
