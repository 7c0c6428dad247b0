package channels

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"git.solsynth.dev/hypernet/syncup/pkg/internal/conversation"
	"git.solsynth.dev/hypernet/syncup/pkg/internal/models"
	"git.solsynth.dev/hypernet/syncup/pkg/internal/realtime"
	"git.solsynth.dev/hypernet/syncup/pkg/internal/receipts"
	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

var (
	ErrChannelNotFound = errors.New("channel not found")
	ErrNotMember       = errors.New("user is not a member of this channel")
	ErrAccessDenied    = errors.New("access denied")
	ErrInvalidName     = errors.New("channel name is required")
	ErrDirectToSelf    = errors.New("cannot start a direct chat with yourself")
	ErrPersonalChannel = errors.New("operation not allowed on a direct chat")
)

// UserLookup resolves user profiles.
type UserLookup interface {
	GetUser(ctx context.Context, userId string) (models.User, error)
	GetUsers(ctx context.Context, userIds []string) map[string]models.User
	Following(ctx context.Context, userId string) ([]string, error)
}

type Option func(*Service)

func WithClock(clk clock.Clock) Option {
	return func(v *Service) {
		v.clock = clk
	}
}

// Service runs channel and membership operations on behalf of one user.
type Service struct {
	tree  realtime.Tree
	users UserLookup
	clock clock.Clock
	me    string
}

func NewService(tree realtime.Tree, users UserLookup, me string, opts ...Option) *Service {
	v := &Service{
		tree:  tree,
		users: users,
		clock: clock.New(),
		me:    me,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

func (v *Service) Me() string {
	return v.me
}

func (v *Service) GetChannel(ctx context.Context, channelId string) (models.Channel, error) {
	snapshot, err := v.tree.Get(ctx, models.ChannelPath(channelId))
	if err != nil {
		return models.Channel{}, err
	} else if !snapshot.Exists {
		return models.Channel{}, fmt.Errorf("%w: %s", ErrChannelNotFound, channelId)
	}
	raw, err := snapshot.Raw()
	if err != nil {
		return models.Channel{}, err
	}
	return models.DecodeChannel(channelId, raw)
}

// Feed loads every channel and builds the home list with peer profiles.
func (v *Service) Feed(ctx context.Context) (Feed, error) {
	snapshot, err := v.tree.Get(ctx, models.ChannelsPath())
	if err != nil {
		return Feed{}, err
	}
	channels := DecodeChannels(snapshot)
	feed := BuildFeed(channels, v.me)
	if v.users != nil {
		feed = feed.Attach(v.users.GetUsers(ctx, feed.PeerIDs()))
	}
	v.countUnread(ctx, channels, &feed)
	return feed, nil
}

// countUnread fills the badge of every feed channel. History hidden by the
// user does not count.
func (v *Service) countUnread(ctx context.Context, channels []models.Channel, feed *Feed) {
	byId := lo.KeyBy(channels, func(item models.Channel) string {
		return item.ID
	})
	for _, channelId := range feed.ChannelIDs() {
		snapshot, err := v.tree.Get(ctx, models.MessagesPath(channelId))
		if err != nil {
			log.Warn().Err(err).Str("channel", channelId).Msg("An error occurred when counting unread messages...")
			continue
		}
		messages := conversation.Visible(conversation.DecodeMessages(snapshot), byId[channelId].HiddenAt(v.me))
		feed.Unread[channelId] = receipts.UnreadCount(messages, v.me)
	}
}

// CreateGroup creates a group owned by the current user. Extra members
// join as plain members.
func (v *Service) CreateGroup(ctx context.Context, name string, members ...string) (models.Channel, error) {
	name = strings.TrimSpace(name)
	if len(name) == 0 {
		return models.Channel{}, ErrInvalidName
	}

	id, err := v.tree.Push(models.ChannelsPath())
	if err != nil {
		return models.Channel{}, fmt.Errorf("unable to allocate channel id: %v", err)
	}

	roles := map[string]models.Role{v.me: models.RoleOwner}
	for _, member := range members {
		if member != v.me && len(member) > 0 {
			roles[member] = models.RoleMember
		}
	}
	channel := models.Channel{
		ID:         id,
		Name:       name,
		CreatedAt:  v.clock.Now().UnixMilli(),
		CreatedBy:  v.me,
		IsPersonal: false,
		Members:    roles,
	}
	node, err := models.EncodeNode(channel)
	if err != nil {
		return channel, err
	}
	if err := v.tree.Set(ctx, models.ChannelPath(id), node); err != nil {
		return channel, err
	}

	log.Info().Str("channel", id).Str("name", name).Msg("Created a new group channel...")
	return channel, nil
}

// StartDirect returns the direct chat with other, creating it when missing.
// Both sides derive the same id so no lookup is needed.
func (v *Service) StartDirect(ctx context.Context, other string) (models.Channel, error) {
	if other == v.me || len(other) == 0 {
		return models.Channel{}, ErrDirectToSelf
	}

	id := models.DirectChannelID(v.me, other)
	if channel, err := v.GetChannel(ctx, id); err == nil {
		return channel, nil
	} else if !errors.Is(err, ErrChannelNotFound) {
		return channel, err
	}

	channel := models.Channel{
		ID:         id,
		IsPersonal: true,
		Members: map[string]models.Role{
			v.me:  models.RoleMember,
			other: models.RoleMember,
		},
	}
	node, err := models.EncodeNode(channel)
	if err != nil {
		return channel, err
	}
	if err := v.tree.Set(ctx, models.ChannelPath(id), node); err != nil {
		return channel, err
	}
	return channel, nil
}

// SetMuted stores the mute flag of the current user. Unmuting removes it.
func (v *Service) SetMuted(ctx context.Context, channelId string, muted bool) error {
	path := models.ChannelFieldPath(channelId, "mutedBy", v.me)
	if muted {
		return v.tree.Set(ctx, path, true)
	}
	return v.tree.Remove(ctx, path)
}

// ToggleMute flips the mute flag and returns the new state.
func (v *Service) ToggleMute(ctx context.Context, channelId string) (bool, error) {
	current, err := v.tree.Get(ctx, models.ChannelFieldPath(channelId, "mutedBy", v.me))
	if err != nil {
		return false, err
	}
	muted := !(current.Exists && current.Value == true)
	if err := v.SetMuted(ctx, channelId, muted); err != nil {
		return !muted, err
	}
	return muted, nil
}

// Hide drops a chat from the list of the current user and hides its
// history up to now.
func (v *Service) Hide(ctx context.Context, channelId string) error {
	return v.tree.Set(ctx, models.ChannelFieldPath(channelId, "hiddenBy", v.me), v.clock.Now().UnixMilli())
}

// group loads a group channel and the role of the current user in it.
func (v *Service) group(ctx context.Context, channelId string) (models.Channel, models.Role, error) {
	channel, err := v.GetChannel(ctx, channelId)
	if err != nil {
		return channel, "", err
	}
	if channel.IsPersonal {
		return channel, "", ErrPersonalChannel
	}
	if !channel.IsMember(v.me) {
		return channel, "", ErrNotMember
	}
	return channel, channel.RoleOf(v.me), nil
}

// AddMembers adds users in one write. Owners and admins only.
func (v *Service) AddMembers(ctx context.Context, channelId string, userIds []string) error {
	userIds = lo.Uniq(lo.Compact(userIds))
	if len(userIds) == 0 {
		return nil
	}
	channel, role, err := v.group(ctx, channelId)
	if err != nil {
		return err
	}
	if role != models.RoleOwner && role != models.RoleAdmin {
		return ErrAccessDenied
	}

	updates := make(map[string]any)
	for _, id := range userIds {
		if channel.IsMember(id) {
			continue
		}
		updates[models.ChannelFieldPath(channelId, "members", id)] = models.RoleMember
	}
	if len(updates) == 0 {
		return nil
	}
	return v.tree.Update(ctx, updates)
}

// Kick removes a member. Owners kick anyone but owners, admins kick members.
func (v *Service) Kick(ctx context.Context, channelId, memberId string) error {
	channel, role, err := v.group(ctx, channelId)
	if err != nil {
		return err
	}
	if !channel.IsMember(memberId) {
		return ErrNotMember
	}
	target := channel.RoleOf(memberId)
	allowed := (role == models.RoleOwner && target != models.RoleOwner) ||
		(role == models.RoleAdmin && target == models.RoleMember)
	if !allowed {
		return ErrAccessDenied
	}
	return v.tree.Remove(ctx, models.ChannelFieldPath(channelId, "members", memberId))
}

func (v *Service) Promote(ctx context.Context, channelId, memberId string) error {
	return v.changeRole(ctx, channelId, memberId, models.RoleMember, models.RoleAdmin)
}

func (v *Service) Demote(ctx context.Context, channelId, memberId string) error {
	return v.changeRole(ctx, channelId, memberId, models.RoleAdmin, models.RoleMember)
}

// changeRole is reserved to the owner and only moves between from and to.
func (v *Service) changeRole(ctx context.Context, channelId, memberId string, from, to models.Role) error {
	channel, role, err := v.group(ctx, channelId)
	if err != nil {
		return err
	}
	if role != models.RoleOwner {
		return ErrAccessDenied
	}
	if !channel.IsMember(memberId) {
		return ErrNotMember
	}
	if channel.RoleOf(memberId) != from {
		return fmt.Errorf("%w: member is %s", ErrAccessDenied, channel.RoleOf(memberId))
	}
	return v.tree.Set(ctx, models.ChannelFieldPath(channelId, "members", memberId), to)
}

// Leave removes the current user. The owner cannot leave.
func (v *Service) Leave(ctx context.Context, channelId string) error {
	_, role, err := v.group(ctx, channelId)
	if err != nil {
		return err
	}
	if role == models.RoleOwner {
		return ErrAccessDenied
	}
	return v.tree.Remove(ctx, models.ChannelFieldPath(channelId, "members", v.me))
}

// Members resolves the member profiles, owners first then admins then
// members, by name within a role.
func (v *Service) Members(ctx context.Context, channelId string) ([]models.User, error) {
	channel, err := v.GetChannel(ctx, channelId)
	if err != nil {
		return nil, err
	}
	users := v.users.GetUsers(ctx, lo.Keys(channel.Members))
	out := make([]models.User, 0, len(users))
	for id, user := range users {
		user.Role = channel.RoleOf(id)
		out = append(out, user)
	}
	return SortMembers(out), nil
}

// SortMembers orders users by role rank, then name, then id.
func SortMembers(users []models.User) []models.User {
	sort.SliceStable(users, func(i, j int) bool {
		a, b := users[i], users[j]
		if ra, rb := models.RoleRank(a.Role), models.RoleRank(b.Role); ra != rb {
			return ra < rb
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.ID < b.ID
	})
	return users
}

// Candidates lists followed users who are not members yet.
func (v *Service) Candidates(ctx context.Context, channelId string) ([]models.User, error) {
	channel, err := v.GetChannel(ctx, channelId)
	if err != nil {
		return nil, err
	}
	following, err := v.users.Following(ctx, v.me)
	if err != nil {
		return nil, err
	}
	ids := lo.Filter(following, func(item string, _ int) bool {
		return !channel.IsMember(item)
	})
	users := v.users.GetUsers(ctx, ids)
	out := make([]models.User, 0, len(users))
	for _, id := range ids {
		if user, ok := users[id]; ok {
			out = append(out, user)
		}
	}
	return out, nil
}
