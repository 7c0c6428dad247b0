package notify

import (
	"context"
	"fmt"
	"sync"

	"git.solsynth.dev/hypernet/syncup/pkg/internal/metrics"
	"git.solsynth.dev/hypernet/syncup/pkg/internal/models"
	"git.solsynth.dev/hypernet/syncup/pkg/internal/realtime"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

type Outcome string

const (
	OutcomeShow          = Outcome("show")
	OutcomeSelf          = Outcome("self")
	OutcomeActiveChannel = Outcome("active_channel")
	OutcomeMuted         = Outcome("muted")
)

type Decision struct {
	Outcome Outcome
	Title   string
	Body    string
	// Target is what tapping the notification opens.
	TargetChannelID   string
	TargetChannelName string
}

func (v Decision) Show() bool {
	return v.Outcome == OutcomeShow
}

// Local is the device state the decision depends on, read at call time.
type Local struct {
	UserID          string
	ActiveChannelID string
}

// MuteLookup reports whether the user muted the channel.
type MuteLookup interface {
	IsMuted(ctx context.Context, channelId, userId string) (bool, error)
}

type MuteLookupFunc func(ctx context.Context, channelId, userId string) (bool, error)

func (v MuteLookupFunc) IsMuted(ctx context.Context, channelId, userId string) (bool, error) {
	return v(ctx, channelId, userId)
}

// TreeMuteLookup reads the mute flag from the channel node.
type TreeMuteLookup struct {
	Tree realtime.Tree
}

func (v TreeMuteLookup) IsMuted(ctx context.Context, channelId, userId string) (bool, error) {
	snapshot, err := v.Tree.Get(ctx, models.ChannelFieldPath(channelId, "mutedBy", userId))
	if err != nil {
		return false, err
	}
	muted, _ := snapshot.Value.(bool)
	return muted, nil
}

type Gate struct {
	mutes MuteLookup
}

func NewGate(mutes MuteLookup) *Gate {
	return &Gate{mutes: mutes}
}

// Decide applies the suppression rules in order: own echo, channel on
// screen, muted channel. A failed mute lookup still shows the notification.
func (v *Gate) Decide(ctx context.Context, payload Payload, local Local) Decision {
	decision := v.decide(ctx, payload, local)
	metrics.NotificationDecisions.WithLabelValues(string(decision.Outcome)).Inc()
	return decision
}

func (v *Gate) decide(ctx context.Context, payload Payload, local Local) Decision {
	if len(local.UserID) > 0 && payload.SenderID == local.UserID {
		return Decision{Outcome: OutcomeSelf}
	}
	if len(payload.ChannelID) > 0 && payload.ChannelID == local.ActiveChannelID {
		return Decision{Outcome: OutcomeActiveChannel}
	}
	if len(payload.ChannelID) > 0 && len(local.UserID) > 0 && v.mutes != nil {
		muted, err := v.mutes.IsMuted(ctx, payload.ChannelID, local.UserID)
		if err != nil {
			log.Warn().Err(err).Str("channel", payload.ChannelID).Msg("An error occurred when checking mute status, showing anyway...")
		} else if muted {
			return Decision{Outcome: OutcomeMuted}
		}
	}

	title, body := Format(payload)
	return Decision{
		Outcome:           OutcomeShow,
		Title:             title,
		Body:              body,
		TargetChannelID:   payload.ChannelID,
		TargetChannelName: lo.Ternary(payload.IsPersonal, payload.SenderName, payload.ChannelName),
	}
}

// Format builds the title and body of a shown notification.
func Format(payload Payload) (title, body string) {
	if payload.IsPersonal {
		return lo.Ternary(len(payload.SenderName) > 0, payload.SenderName, "New Message"), payload.Content
	}
	title = lo.Ternary(len(payload.ChannelName) > 0, payload.ChannelName, "New Message")
	return title, fmt.Sprintf("%s: %s", payload.SenderName, payload.Content)
}

// ActiveChannel marks the conversation currently on screen. Only the
// foreground chat screen writes it.
type ActiveChannel struct {
	mu sync.RWMutex
	id string
}

func (v *ActiveChannel) Enter(channelId string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.id = channelId
}

// Leave clears the marker if it still points at channelId, so a late
// leave from an old screen does not clear a newer one.
func (v *ActiveChannel) Leave(channelId string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.id == channelId {
		v.id = ""
	}
}

func (v *ActiveChannel) Current() string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.id
}

// Local snapshots the marker for one decision.
func (v *ActiveChannel) Local(userId string) Local {
	return Local{UserID: userId, ActiveChannelID: v.Current()}
}
