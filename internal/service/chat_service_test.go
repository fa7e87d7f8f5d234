package service

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Julfy0228/WebMessenger/internal/apperr"
	"github.com/Julfy0228/WebMessenger/internal/models"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

const (
	alice = uint(1)
	bob   = uint(2)
	carol = uint(3)
	dave  = uint(4)
)

func TestCreateChatValidation(t *testing.T) {
	fx := newFixture(t)

	_, err := fx.chats.CreateChat(alice, "", models.ChatGroup, nil)
	assert.True(t, apperr.IsBadRequest(err))

	_, err = fx.chats.CreateChat(alice, string(make([]byte, models.MaxChatNameLen+1)), models.ChatGroup, nil)
	assert.True(t, apperr.IsBadRequest(err))

	_, err = fx.chats.CreateChat(alice, "chat", "channel", nil)
	assert.True(t, apperr.IsBadRequest(err))
}

func TestCreateGroupChatMakesCallerOwner(t *testing.T) {
	fx := newFixture(t)

	chat, err := fx.chats.CreateChat(alice, "team", models.ChatGroup, []uint{bob, carol, bob})
	require.NoError(t, err)
	require.Len(t, chat.Participants, 3)

	roles := map[uint]models.Role{}
	for _, p := range chat.Participants {
		roles[p.UserID] = p.Role
	}
	assert.Equal(t, models.RoleOwner, roles[alice])
	assert.Equal(t, models.RoleMember, roles[bob])
	assert.Equal(t, models.RoleMember, roles[carol])

	n, err := fx.repo.CountOwners(chat.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestPrivateChatDeduplication(t *testing.T) {
	fx := newFixture(t)

	first, err := fx.chats.CreateChat(alice, "alice-bob", models.ChatPrivate, []uint{bob})
	require.NoError(t, err)

	// Same pair, either direction, always lands on the existing chat.
	again, err := fx.chats.CreateChat(alice, "different name", models.ChatPrivate, []uint{bob})
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	reversed, err := fx.chats.CreateChat(bob, "bob-alice", models.ChatPrivate, []uint{alice})
	require.NoError(t, err)
	assert.Equal(t, first.ID, reversed.ID)

	// A different pair gets its own chat.
	other, err := fx.chats.CreateChat(alice, "alice-carol", models.ChatPrivate, []uint{carol})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)
}

func TestPrivateChatRejectsSelfAndWrongCardinality(t *testing.T) {
	fx := newFixture(t)

	_, err := fx.chats.CreateChat(alice, "me", models.ChatPrivate, []uint{alice})
	assert.True(t, apperr.IsBadRequest(err))

	_, err = fx.chats.CreateChat(alice, "crowd", models.ChatPrivate, []uint{bob, carol})
	assert.True(t, apperr.IsBadRequest(err))

	_, err = fx.chats.CreateChat(alice, "nobody", models.ChatPrivate, nil)
	assert.True(t, apperr.IsBadRequest(err))
}

func TestPrivateChatMembershipIsImmutable(t *testing.T) {
	fx := newFixture(t)

	chat, err := fx.chats.CreateChat(alice, "pair", models.ChatPrivate, []uint{bob})
	require.NoError(t, err)

	err = fx.chats.AddParticipant(alice, chat.ID, carol, models.RoleMember)
	assert.True(t, apperr.IsBadRequest(err))

	err = fx.chats.KickParticipant(alice, chat.ID, bob)
	assert.True(t, apperr.IsBadRequest(err))
}

func TestAddParticipant(t *testing.T) {
	fx := newFixture(t)
	chat, err := fx.chats.CreateChat(alice, "team", models.ChatGroup, []uint{bob})
	require.NoError(t, err)

	t.Run("member cannot add", func(t *testing.T) {
		err := fx.chats.AddParticipant(bob, chat.ID, carol, models.RoleMember)
		assert.True(t, apperr.IsForbidden(err))
	})

	t.Run("non-participant cannot add", func(t *testing.T) {
		err := fx.chats.AddParticipant(dave, chat.ID, carol, models.RoleMember)
		assert.True(t, apperr.IsForbidden(err))
	})

	t.Run("owner adds member", func(t *testing.T) {
		require.NoError(t, fx.chats.AddParticipant(alice, chat.ID, carol, models.RoleMember))
		p, err := fx.repo.GetParticipant(chat.ID, carol)
		require.NoError(t, err)
		assert.Equal(t, models.RoleMember, p.Role)
	})

	t.Run("duplicate add conflicts", func(t *testing.T) {
		err := fx.chats.AddParticipant(alice, chat.ID, carol, models.RoleMember)
		assert.True(t, apperr.IsConflict(err))
	})

	t.Run("owner role is not assignable", func(t *testing.T) {
		err := fx.chats.AddParticipant(alice, chat.ID, dave, models.RoleOwner)
		assert.True(t, apperr.IsBadRequest(err))
	})

	t.Run("admin can add as admin", func(t *testing.T) {
		require.NoError(t, fx.chats.PromoteToAdmin(alice, chat.ID, carol))
		require.NoError(t, fx.chats.AddParticipant(carol, chat.ID, dave, models.RoleAdmin))
		p, err := fx.repo.GetParticipant(chat.ID, dave)
		require.NoError(t, err)
		assert.Equal(t, models.RoleAdmin, p.Role)
	})

	t.Run("missing chat is not found", func(t *testing.T) {
		err := fx.chats.AddParticipant(alice, 9999, carol, models.RoleMember)
		assert.True(t, apperr.IsNotFound(err))
	})
}

func TestKickParticipant(t *testing.T) {
	fx := newFixture(t)
	chat, err := fx.chats.CreateChat(alice, "team", models.ChatGroup, []uint{bob, carol, dave})
	require.NoError(t, err)
	require.NoError(t, fx.chats.PromoteToAdmin(alice, chat.ID, bob))

	t.Run("admin kicks member", func(t *testing.T) {
		require.NoError(t, fx.chats.KickParticipant(bob, chat.ID, carol))
		_, err := fx.repo.GetParticipant(chat.ID, carol)
		assert.True(t, apperr.IsNotFound(err))
	})

	t.Run("admin cannot kick owner", func(t *testing.T) {
		err := fx.chats.KickParticipant(bob, chat.ID, alice)
		assert.True(t, apperr.IsForbidden(err))
	})

	t.Run("nobody kicks themselves", func(t *testing.T) {
		err := fx.chats.KickParticipant(alice, chat.ID, alice)
		assert.True(t, apperr.IsForbidden(err))
	})

	t.Run("member cannot kick", func(t *testing.T) {
		err := fx.chats.KickParticipant(dave, chat.ID, bob)
		assert.True(t, apperr.IsForbidden(err))
	})

	t.Run("missing target is not found", func(t *testing.T) {
		err := fx.chats.KickParticipant(alice, chat.ID, 9999)
		assert.True(t, apperr.IsNotFound(err))
	})

	t.Run("owner kicks admin", func(t *testing.T) {
		require.NoError(t, fx.chats.KickParticipant(alice, chat.ID, bob))
		_, err := fx.repo.GetParticipant(chat.ID, bob)
		assert.True(t, apperr.IsNotFound(err))
	})
}

func TestPromoteAndDemote(t *testing.T) {
	fx := newFixture(t)
	chat, err := fx.chats.CreateChat(alice, "team", models.ChatGroup, []uint{bob, carol})
	require.NoError(t, err)

	t.Run("member cannot promote", func(t *testing.T) {
		err := fx.chats.PromoteToAdmin(bob, chat.ID, carol)
		assert.True(t, apperr.IsForbidden(err))
	})

	t.Run("owner promotes member", func(t *testing.T) {
		require.NoError(t, fx.chats.PromoteToAdmin(alice, chat.ID, bob))
		p, err := fx.repo.GetParticipant(chat.ID, bob)
		require.NoError(t, err)
		assert.Equal(t, models.RoleAdmin, p.Role)
	})

	t.Run("promoting an admin is rejected", func(t *testing.T) {
		err := fx.chats.PromoteToAdmin(alice, chat.ID, bob)
		assert.True(t, apperr.IsForbidden(err))
	})

	t.Run("admin cannot promote", func(t *testing.T) {
		err := fx.chats.PromoteToAdmin(bob, chat.ID, carol)
		assert.True(t, apperr.IsForbidden(err))
	})

	t.Run("demoting a member is rejected", func(t *testing.T) {
		err := fx.chats.DemoteFromAdmin(alice, chat.ID, carol)
		assert.True(t, apperr.IsForbidden(err))
	})

	t.Run("owner demotes admin", func(t *testing.T) {
		require.NoError(t, fx.chats.DemoteFromAdmin(alice, chat.ID, bob))
		p, err := fx.repo.GetParticipant(chat.ID, bob)
		require.NoError(t, err)
		assert.Equal(t, models.RoleMember, p.Role)
	})
}

func TestTransferOwnership(t *testing.T) {
	fx := newFixture(t)
	chat, err := fx.chats.CreateChat(alice, "team", models.ChatGroup, []uint{bob, carol})
	require.NoError(t, err)

	t.Run("non-owner cannot transfer", func(t *testing.T) {
		err := fx.chats.TransferOwnership(bob, chat.ID, carol)
		assert.True(t, apperr.IsForbidden(err))
	})

	t.Run("transfer to self is rejected", func(t *testing.T) {
		err := fx.chats.TransferOwnership(alice, chat.ID, alice)
		assert.True(t, apperr.IsBadRequest(err))
	})

	t.Run("transfer to outsider is not found", func(t *testing.T) {
		err := fx.chats.TransferOwnership(alice, chat.ID, dave)
		assert.True(t, apperr.IsNotFound(err))
	})

	t.Run("owner hands over to member", func(t *testing.T) {
		require.NoError(t, fx.chats.TransferOwnership(alice, chat.ID, bob))

		oldOwner, err := fx.repo.GetParticipant(chat.ID, alice)
		require.NoError(t, err)
		assert.Equal(t, models.RoleMember, oldOwner.Role)

		newOwner, err := fx.repo.GetParticipant(chat.ID, bob)
		require.NoError(t, err)
		assert.Equal(t, models.RoleOwner, newOwner.Role)

		n, err := fx.repo.CountOwners(chat.ID)
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)
	})

	t.Run("previous owner lost the privilege", func(t *testing.T) {
		err := fx.chats.TransferOwnership(alice, chat.ID, carol)
		assert.True(t, apperr.IsForbidden(err))
	})
}

// TestOneOwnerInvariant drives a random but valid sequence of role
// mutations and checks the chat never has more or less than one owner.
func TestOneOwnerInvariant(t *testing.T) {
	fx := newFixture(t)
	users := []uint{alice, bob, carol, dave}
	chat, err := fx.chats.CreateChat(alice, "team", models.ChatGroup, []uint{bob, carol, dave})
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(1))
	owner := alice
	for i := 0; i < 200; i++ {
		target := users[rng.Intn(len(users))]
		switch rng.Intn(3) {
		case 0:
			if target != owner {
				p, err := fx.repo.GetParticipant(chat.ID, target)
				require.NoError(t, err)
				if p.Role == models.RoleMember {
					require.NoError(t, fx.chats.PromoteToAdmin(owner, chat.ID, target))
				}
			}
		case 1:
			if target != owner {
				p, err := fx.repo.GetParticipant(chat.ID, target)
				require.NoError(t, err)
				if p.Role == models.RoleAdmin {
					require.NoError(t, fx.chats.DemoteFromAdmin(owner, chat.ID, target))
				}
			}
		case 2:
			if target != owner {
				require.NoError(t, fx.chats.TransferOwnership(owner, chat.ID, target))
				owner = target
			}
		}

		n, err := fx.repo.CountOwners(chat.ID)
		require.NoError(t, err)
		require.EqualValues(t, 1, n, "after %d operations", i+1)
	}
}

func TestDeleteChat(t *testing.T) {
	fx := newFixture(t)
	chat, err := fx.chats.CreateChat(alice, "team", models.ChatGroup, []uint{bob})
	require.NoError(t, err)

	_, err = fx.messages.Send(context.Background(), bob, chat.ID, "hello", nil)
	require.NoError(t, err)

	t.Run("member cannot delete", func(t *testing.T) {
		err := fx.chats.DeleteChat(bob, chat.ID)
		assert.True(t, apperr.IsForbidden(err))
	})

	t.Run("owner deletes with cascade", func(t *testing.T) {
		require.NoError(t, fx.chats.DeleteChat(alice, chat.ID))

		_, err := fx.chats.GetChat(chat.ID)
		assert.True(t, apperr.IsNotFound(err))

		msgs, err := fx.msgRepo.ListByChat(chat.ID)
		require.NoError(t, err)
		assert.Empty(t, msgs)
	})

	t.Run("deleting again is not found", func(t *testing.T) {
		err := fx.chats.DeleteChat(alice, chat.ID)
		assert.True(t, apperr.IsNotFound(err))
	})
}

func TestUpdateChatAvatar(t *testing.T) {
	fx := newFixture(t)
	chat, err := fx.chats.CreateChat(alice, "team", models.ChatGroup, []uint{bob})
	require.NoError(t, err)

	t.Run("member cannot change avatar", func(t *testing.T) {
		_, err := fx.chats.UpdateChatAvatar(context.Background(), bob, chat.ID, pngBytes(t, 64, 64), "a.png")
		assert.True(t, apperr.IsForbidden(err))
	})

	t.Run("owner uploads avatar", func(t *testing.T) {
		url, err := fx.chats.UpdateChatAvatar(context.Background(), alice, chat.ID, pngBytes(t, 64, 64), "a.png")
		require.NoError(t, err)
		assert.NotEmpty(t, url)

		got, err := fx.chats.GetChat(chat.ID)
		require.NoError(t, err)
		assert.Equal(t, url, got.AvatarURL)
	})

	t.Run("oversized avatar is downscaled", func(t *testing.T) {
		_, err := fx.chats.UpdateChatAvatar(context.Background(), alice, chat.ID, pngBytes(t, 1600, 900), "wide.png")
		require.NoError(t, err)

		stored := fx.blobs.stored[len(fx.blobs.stored)-1]
		img, err := png.Decode(bytes.NewReader(stored))
		require.NoError(t, err)
		assert.LessOrEqual(t, img.Bounds().Dx(), 512)
		assert.LessOrEqual(t, img.Bounds().Dy(), 512)
		// Aspect ratio survives the fit.
		assert.Equal(t, 512, img.Bounds().Dx())
		assert.Equal(t, 288, img.Bounds().Dy())
	})

	t.Run("small avatar is stored as is", func(t *testing.T) {
		_, err := fx.chats.UpdateChatAvatar(context.Background(), alice, chat.ID, pngBytes(t, 100, 100), "small.png")
		require.NoError(t, err)

		stored := fx.blobs.stored[len(fx.blobs.stored)-1]
		img, err := png.Decode(bytes.NewReader(stored))
		require.NoError(t, err)
		assert.Equal(t, 100, img.Bounds().Dx())
	})

	t.Run("non-image upload is rejected", func(t *testing.T) {
		_, err := fx.chats.UpdateChatAvatar(context.Background(), alice, chat.ID, []byte("not an image"), "a.png")
		assert.True(t, apperr.IsBadRequest(err))
	})

	t.Run("empty upload is rejected", func(t *testing.T) {
		_, err := fx.chats.UpdateChatAvatar(context.Background(), alice, chat.ID, nil, "a.png")
		assert.True(t, apperr.IsBadRequest(err))
	})
}

func TestListMyChats(t *testing.T) {
	fx := newFixture(t)
	team, err := fx.chats.CreateChat(alice, "team", models.ChatGroup, []uint{bob})
	require.NoError(t, err)
	_, err = fx.chats.CreateChat(bob, "others", models.ChatGroup, []uint{carol})
	require.NoError(t, err)

	_, err = fx.messages.Send(context.Background(), bob, team.ID, "latest", nil)
	require.NoError(t, err)

	summaries, err := fx.chats.ListMyChats(alice)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, team.ID, summaries[0].Chat.ID)
	require.NotNil(t, summaries[0].LastMessage)
	assert.Equal(t, "latest", summaries[0].LastMessage.Text)
	assert.Equal(t, bob, summaries[0].LastMessage.SenderID)
}

func TestGetChatIsPublic(t *testing.T) {
	fx := newFixture(t)
	chat, err := fx.chats.CreateChat(alice, "team", models.ChatGroup, nil)
	require.NoError(t, err)

	got, err := fx.chats.GetChat(chat.ID)
	require.NoError(t, err)
	assert.Equal(t, chat.ID, got.ID)

	_, err = fx.chats.GetChat(9999)
	assert.True(t, apperr.IsNotFound(err))
}

func TestIsParticipant(t *testing.T) {
	fx := newFixture(t)
	chat, err := fx.chats.CreateChat(alice, "team", models.ChatGroup, []uint{bob})
	require.NoError(t, err)

	assert.True(t, fx.chats.IsParticipant(chat.ID, alice))
	assert.True(t, fx.chats.IsParticipant(chat.ID, bob))
	assert.False(t, fx.chats.IsParticipant(chat.ID, carol))
}
