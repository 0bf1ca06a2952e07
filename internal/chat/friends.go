package chat

import (
	"strings"

	"github.com/stepline/stepline/internal/core/data"
)

// resolveTarget looks up the named user and rejects self-targeting. The
// second return value carries the user-visible denial when resolution fails.
func resolveTarget(ctx *Context, name string, verb string) (*data.User, []string, error) {
	target, err := data.FindUserByName(ctx.DB, name)
	if err != nil {
		return nil, nil, err
	}
	if target == nil {
		return nil, []string{"Unknown user " + WithColor(name)}, nil
	}
	if target.ID == ctx.User().ID {
		return nil, []string{"Cannot " + verb + " yourself"}, nil
	}
	return target, nil, nil
}

// addFriendCommand sends, accepts, or reports on a friend request depending
// on the current relationship between the pair.
type addFriendCommand struct {
	loginRequired
}

func (c *addFriendCommand) Name() string { return "addfriend" }
func (c *addFriendCommand) Help() string { return "Add a friend. /addfriend user" }

func (c *addFriendCommand) Invoke(ctx *Context, arg string) ([]string, error) {
	user := ctx.User()

	target, denial, err := resolveTarget(ctx, arg, "befriend")
	if target == nil {
		return denial, err
	}

	unlock := data.LockRelationshipPair(user.ID, target.ID)
	defer unlock()

	rel, err := data.FindRelationship(ctx.DB, user.ID, target.ID)
	if err != nil {
		return nil, err
	}

	colored := WithColor(target.Name)

	if rel == nil {
		rel = &data.Relationship{User1ID: user.ID, User2ID: target.ID, State: data.RelationshipPending}
		if err := data.CreateRelationship(ctx.DB, rel); err != nil {
			return nil, err
		}
		return []string{"Friend request sent to " + colored}, nil
	}

	switch rel.State {
	case data.RelationshipAccepted:
		return []string{colored + " is already friends with you"}, nil
	case data.RelationshipIgnored:
		if rel.User1ID == user.ID {
			return []string{"You are ignoring " + colored + ". Unignore them before sending a friend request"}, nil
		}
		return []string{"Cannot send " + colored + " a friend request"}, nil
	}

	// Pending request.
	if rel.User1ID == user.ID {
		return []string{"Already sent a friend request to " + colored}, nil
	}

	rel.State = data.RelationshipAccepted
	if err := data.SaveRelationship(ctx.DB, rel); err != nil {
		return nil, err
	}
	return []string{"Accepted friend request from " + colored}, nil
}

// removeFriendCommand removes an accepted friendship or withdraws a pending
// request in either direction.
type removeFriendCommand struct {
	loginRequired
}

func (c *removeFriendCommand) Name() string { return "removefriend" }
func (c *removeFriendCommand) Help() string { return "Remove a friend. /removefriend user" }

func (c *removeFriendCommand) Invoke(ctx *Context, arg string) ([]string, error) {
	user := ctx.User()

	target, denial, err := resolveTarget(ctx, arg, "remove")
	if target == nil {
		return denial, err
	}

	unlock := data.LockRelationshipPair(user.ID, target.ID)
	defer unlock()

	rel, err := data.FindRelationship(ctx.DB, user.ID, target.ID)
	if err != nil {
		return nil, err
	}

	colored := WithColor(target.Name)

	if rel == nil || rel.State == data.RelationshipIgnored {
		return []string{colored + " is not your friend"}, nil
	}

	if err := data.DeleteRelationship(ctx.DB, rel); err != nil {
		return nil, err
	}
	return []string{colored + " is no longer your friend"}, nil
}

// ignoreCommand drops any friendship with the target and records the caller
// as ignoring them.
type ignoreCommand struct {
	loginRequired
}

func (c *ignoreCommand) Name() string { return "ignore" }
func (c *ignoreCommand) Help() string {
	return "Ignore someone (can't send friend requests or pm). /ignore user"
}

func (c *ignoreCommand) Invoke(ctx *Context, arg string) ([]string, error) {
	user := ctx.User()

	target, denial, err := resolveTarget(ctx, arg, "ignore")
	if target == nil {
		return denial, err
	}

	unlock := data.LockRelationshipPair(user.ID, target.ID)
	defer unlock()

	rel, err := data.FindRelationship(ctx.DB, user.ID, target.ID)
	if err != nil {
		return nil, err
	}

	colored := WithColor(target.Name)
	var response []string

	if rel != nil {
		if rel.State == data.RelationshipIgnored {
			if rel.User1ID == user.ID {
				return []string{colored + " is already ignored"}, nil
			}
			// The target is already ignoring the caller. The single row per
			// pair stands; messages are blocked in both directions anyway.
			return []string{colored + " ignored"}, nil
		}

		if err := data.DeleteRelationship(ctx.DB, rel); err != nil {
			return nil, err
		}
		response = append(response, colored+" is no longer your friend")
	}

	rel = &data.Relationship{User1ID: user.ID, User2ID: target.ID, State: data.RelationshipIgnored}
	if err := data.CreateRelationship(ctx.DB, rel); err != nil {
		return nil, err
	}
	return append(response, colored+" ignored"), nil
}

// unignoreCommand lifts an ignore. Only the user who imposed it may do so.
type unignoreCommand struct {
	loginRequired
}

func (c *unignoreCommand) Name() string { return "unignore" }
func (c *unignoreCommand) Help() string { return "Stop ignoring someone. /unignore user" }

func (c *unignoreCommand) Invoke(ctx *Context, arg string) ([]string, error) {
	user := ctx.User()

	target, denial, err := resolveTarget(ctx, arg, "unignore")
	if target == nil {
		return denial, err
	}

	unlock := data.LockRelationshipPair(user.ID, target.ID)
	defer unlock()

	rel, err := data.FindRelationship(ctx.DB, user.ID, target.ID)
	if err != nil {
		return nil, err
	}

	colored := WithColor(target.Name)

	if rel == nil || rel.State != data.RelationshipIgnored || rel.User1ID != user.ID {
		return []string{colored + " is not currently ignored. Cannot unignore"}, nil
	}

	if err := data.DeleteRelationship(ctx.DB, rel); err != nil {
		return nil, err
	}
	return []string{colored + " unignored"}, nil
}

// friendListCommand renders the caller's relationships partitioned by state
// and direction.
type friendListCommand struct {
	loginRequired
}

func (c *friendListCommand) Name() string { return "friendlist" }
func (c *friendListCommand) Help() string { return "Show friendlist" }

func (c *friendListCommand) Invoke(ctx *Context, arg string) ([]string, error) {
	user := ctx.User()

	rels, err := data.RelationshipsForUser(ctx.DB, user.ID)
	if err != nil {
		return nil, err
	}

	var friendIDs, incomingIDs, outgoingIDs, ignoredIDs []uint64
	for _, rel := range rels {
		switch rel.State {
		case data.RelationshipAccepted:
			friendIDs = append(friendIDs, rel.Other(user.ID))
		case data.RelationshipPending:
			if rel.User2ID == user.ID {
				incomingIDs = append(incomingIDs, rel.User1ID)
			} else {
				outgoingIDs = append(outgoingIDs, rel.User2ID)
			}
		case data.RelationshipIgnored:
			if rel.User1ID == user.ID {
				ignoredIDs = append(ignoredIDs, rel.User2ID)
			}
		}
	}

	names, err := c.nameIndex(ctx, friendIDs, incomingIDs, outgoingIDs, ignoredIDs)
	if err != nil {
		return nil, err
	}

	return []string{
		"Friends: " + c.nameList(names, friendIDs),
		"Incoming requests: " + c.nameList(names, incomingIDs),
		"Outgoing requests: " + c.nameList(names, outgoingIDs),
		"Ignoring: " + c.nameList(names, ignoredIDs),
	}, nil
}

func (c *friendListCommand) nameIndex(ctx *Context, idGroups ...[]uint64) (map[uint64]string, error) {
	var all []uint64
	for _, ids := range idGroups {
		all = append(all, ids...)
	}

	users, err := data.FindUsersByIDs(ctx.DB, all)
	if err != nil {
		return nil, err
	}

	names := make(map[uint64]string, len(users))
	for _, u := range users {
		names[u.ID] = u.Name
	}
	return names, nil
}

func (c *friendListCommand) nameList(names map[uint64]string, ids []uint64) string {
	list := make([]string, 0, len(ids))
	for _, id := range ids {
		if name, ok := names[id]; ok {
			list = append(list, name)
		}
	}
	return strings.Join(list, ", ")
}

// pmCommand delivers a private message to one online user, blocked when an
// ignore exists between the pair in either direction.
type pmCommand struct {
	loginRequired
}

func (c *pmCommand) Name() string { return "pm" }
func (c *pmCommand) Help() string { return "Send a private message. /pm user message" }

func (c *pmCommand) Invoke(ctx *Context, arg string) ([]string, error) {
	name, text, _ := strings.Cut(arg, " ")
	text = strings.TrimSpace(text)
	if name == "" || text == "" {
		return []string{"Need a text message to send"}, nil
	}

	response, delivered, err := c.deliver(ctx, name, text)
	if err != nil {
		return nil, err
	}
	// Room names may contain spaces, which clients send as underscores.
	if !delivered && strings.Contains(name, "_") {
		return c.retryWithSpaces(ctx, name, text, response)
	}
	return response, nil
}

func (c *pmCommand) retryWithSpaces(ctx *Context, name, text string, firstResponse []string) ([]string, error) {
	response, delivered, err := c.deliver(ctx, strings.ReplaceAll(name, "_", " "), text)
	if err != nil {
		return nil, err
	}
	if !delivered {
		return firstResponse, nil
	}
	return response, nil
}

func (c *pmCommand) deliver(ctx *Context, name, text string) ([]string, bool, error) {
	user := ctx.User()
	colored := WithColor(name)

	target, err := data.FindOnlineUserByName(ctx.DB, name)
	if err != nil {
		return nil, false, err
	}
	if target == nil {
		return []string{"Could not find " + colored + " online"}, false, nil
	}
	if target.ID == user.ID {
		return []string{"Cannot pm yourself"}, false, nil
	}

	ignored, err := data.IsIgnored(ctx.DB, user.ID, target.ID)
	if err != nil {
		return nil, false, err
	}
	if ignored {
		return []string{"Cannot send " + colored + " a private message"}, false, nil
	}

	conn := ctx.Server.ClientForUser(target.ID)
	if conn == nil {
		return []string{"Could not find " + colored + " online"}, false, nil
	}

	if err := SendMessage(conn, "From "+ColoredName(user)+": "+text); err != nil {
		return nil, false, err
	}
	return []string{"To " + ColoredName(target) + ": " + text}, true, nil
}
