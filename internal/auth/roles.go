// Package auth holds the role-authorization engine and the JWT layer that
// resolves the calling user.
package auth

import "github.com/Julfy0228/WebMessenger/internal/models"

// Action is a chat-scoped operation subject to role authorization.
type Action int

const (
	ActionAddParticipant Action = iota
	ActionKickParticipant
	ActionPromoteToAdmin
	ActionDemoteFromAdmin
	ActionTransferOwnership
	ActionDeleteChat
	ActionChangeChatAvatar
	ActionDeleteMessage
	ActionEditMessage
)

// CanPerform evaluates the decision table for a caller role acting on a
// target role. isSelf means the caller and the target are the same user; for
// the message actions it means the caller is the message sender. The
// function is pure: hard rules that need store state (duplicate add,
// private-chat immutability, absent target) are enforced by the services.
//
// Adding participants is restricted to Owner and Admin.
func CanPerform(action Action, caller, target models.Role, isSelf bool) bool {
	switch action {
	case ActionAddParticipant:
		return caller == models.RoleOwner || caller == models.RoleAdmin
	case ActionKickParticipant:
		switch caller {
		case models.RoleOwner:
			return !isSelf
		case models.RoleAdmin:
			return target == models.RoleMember && !isSelf
		}
		return false
	case ActionPromoteToAdmin:
		return caller == models.RoleOwner && target == models.RoleMember
	case ActionDemoteFromAdmin:
		return caller == models.RoleOwner && target == models.RoleAdmin
	case ActionTransferOwnership:
		return caller == models.RoleOwner && !isSelf
	case ActionDeleteChat:
		return caller == models.RoleOwner
	case ActionChangeChatAvatar:
		return caller == models.RoleOwner || caller == models.RoleAdmin
	case ActionDeleteMessage:
		// Own messages are always deletable; others' only by moderators.
		if isSelf {
			return true
		}
		return caller == models.RoleOwner || caller == models.RoleAdmin
	case ActionEditMessage:
		return isSelf
	}
	return false
}
