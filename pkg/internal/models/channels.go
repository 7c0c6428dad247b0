package models

import (
	"fmt"
	"sort"

	jsoniter "github.com/json-iterator/go"
	"github.com/samber/lo"
	"github.com/valyala/fastjson"
)

type Role = string

const (
	RoleOwner  = Role("owner")
	RoleAdmin  = Role("admin")
	RoleMember = Role("member")
)

// RoleRank orders roles for member lists, owner first.
func RoleRank(role Role) int {
	switch role {
	case RoleOwner:
		return 0
	case RoleAdmin:
		return 1
	default:
		return 2
	}
}

type Channel struct {
	ID                   string           `json:"id"`
	Name                 string           `json:"name"`
	CreatedAt            int64            `json:"createdAt"`
	CreatedBy            string           `json:"createdBy"`
	IsPersonal           bool             `json:"isPersonal"`
	Members              map[string]Role  `json:"members"`
	LastMessage          string           `json:"lastMessage"`
	LastMessageTimestamp int64            `json:"lastMessageTimestamp"`
	MutedBy              map[string]bool  `json:"mutedBy,omitempty"`
	HiddenBy             map[string]int64 `json:"hiddenBy,omitempty"`
}

func (v Channel) IsMember(userId string) bool {
	_, ok := v.Members[userId]
	return ok
}

func (v Channel) RoleOf(userId string) Role {
	if role, ok := v.Members[userId]; ok {
		return role
	}
	return RoleMember
}

func (v Channel) IsMutedBy(userId string) bool {
	return v.MutedBy[userId]
}

// HiddenAt returns when the user hid this channel, zero when never hidden.
func (v Channel) HiddenAt(userId string) int64 {
	return v.HiddenBy[userId]
}

// VisibleTo applies the hidden-DM rule: a hidden channel comes back
// once a message newer than the hide timestamp arrives.
func (v Channel) VisibleTo(userId string) bool {
	return v.LastMessageTimestamp > v.HiddenAt(userId)
}

// Peer returns the other member of a personal channel.
func (v Channel) Peer(userId string) (string, bool) {
	others := lo.Filter(lo.Keys(v.Members), func(item string, _ int) bool {
		return item != userId
	})
	if len(others) == 0 {
		return "", false
	}
	sort.Strings(others)
	return others[0], true
}

// DirectChannelID derives the personal channel key of two users so both
// sides resolve to the same channel without coordination.
func DirectChannelID(a, b string) string {
	if a > b {
		return a + "_" + b
	}
	return b + "_" + a
}

type ChannelShape uint8

const (
	// ChannelShapeLegacy is the early schema where a channel node was its bare name.
	ChannelShapeLegacy = ChannelShape(iota)
	ChannelShapeDocument
)

// ChannelRecord is a channel node as found in the store, tagged by shape.
type ChannelRecord struct {
	Shape    ChannelShape
	Name     string
	Document channelDocument
	Members  map[string]Role
}

type channelDocument struct {
	ID                   string           `json:"id"`
	Name                 string           `json:"name"`
	CreatedAt            int64            `json:"createdAt"`
	CreatedBy            string           `json:"createdBy"`
	IsPersonal           *bool            `json:"isPersonal"`
	Personal             *bool            `json:"personal"`
	LastMessage          string           `json:"lastMessage"`
	LastMessageTimestamp int64            `json:"lastMessageTimestamp"`
	MutedBy              map[string]bool  `json:"mutedBy"`
	HiddenBy             map[string]int64 `json:"hiddenBy"`
}

// ParseChannelRecord inspects the raw node and picks its shape.
func ParseChannelRecord(raw []byte) (ChannelRecord, error) {
	var record ChannelRecord

	val, err := fastjson.ParseBytes(raw)
	if err != nil {
		return record, fmt.Errorf("unable to parse channel: %v", err)
	}

	switch val.Type() {
	case fastjson.TypeString:
		record.Shape = ChannelShapeLegacy
		record.Name = string(val.GetStringBytes())
		return record, nil
	case fastjson.TypeObject:
		record.Shape = ChannelShapeDocument
	default:
		return record, fmt.Errorf("unexpected channel node type: %s", val.Type())
	}

	if err := jsoniter.Unmarshal(raw, &record.Document); err != nil {
		return record, fmt.Errorf("unable to decode channel: %v", err)
	}

	record.Members = make(map[string]Role)
	if members := val.GetObject("members"); members != nil {
		members.Visit(func(key []byte, item *fastjson.Value) {
			switch item.Type() {
			case fastjson.TypeString:
				record.Members[string(key)] = Role(item.GetStringBytes())
			case fastjson.TypeTrue:
				// Membership used to be a plain set.
				record.Members[string(key)] = RoleMember
			}
		})
	}

	return record, nil
}

// Normalize migrates any record shape into the current Channel model.
func (v ChannelRecord) Normalize(id string) Channel {
	if v.Shape == ChannelShapeLegacy {
		return Channel{
			ID:      id,
			Name:    v.Name,
			Members: make(map[string]Role),
		}
	}

	doc := v.Document
	channel := Channel{
		ID:                   id,
		Name:                 doc.Name,
		CreatedAt:            doc.CreatedAt,
		CreatedBy:            doc.CreatedBy,
		Members:              v.Members,
		LastMessage:          doc.LastMessage,
		LastMessageTimestamp: doc.LastMessageTimestamp,
		MutedBy:              lo.PickBy(doc.MutedBy, func(_ string, muted bool) bool { return muted }),
		HiddenBy:             doc.HiddenBy,
	}
	switch {
	case doc.IsPersonal != nil:
		channel.IsPersonal = *doc.IsPersonal
	case doc.Personal != nil:
		channel.IsPersonal = *doc.Personal
	}
	if channel.Members == nil {
		channel.Members = make(map[string]Role)
	}
	return channel
}

func DecodeChannel(id string, raw []byte) (Channel, error) {
	record, err := ParseChannelRecord(raw)
	if err != nil {
		return Channel{ID: id}, err
	}
	return record.Normalize(id), nil
}
