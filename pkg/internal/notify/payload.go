package notify

import (
	"fmt"
	"strconv"

	"github.com/valyala/fastjson"
)

// Payload is the data map carried by a chat push message.
type Payload struct {
	ChannelID   string `json:"channelId"`
	ChannelName string `json:"channelName"`
	SenderID    string `json:"senderId"`
	SenderName  string `json:"senderName"`
	Content     string `json:"messageContent"`
	IsPersonal  bool   `json:"isPersonal"`
}

// Data encodes the payload the way push data maps carry it, strings only.
func (v Payload) Data() map[string]string {
	return map[string]string{
		"channelId":      v.ChannelID,
		"channelName":    v.ChannelName,
		"senderId":       v.SenderID,
		"senderName":     v.SenderName,
		"messageContent": v.Content,
		"isPersonal":     strconv.FormatBool(v.IsPersonal),
	}
}

// ParsePayload reads a received data map. A malformed isPersonal flag
// counts as a group message.
func ParsePayload(data map[string]string) Payload {
	personal, _ := strconv.ParseBool(data["isPersonal"])
	return Payload{
		ChannelID:   data["channelId"],
		ChannelName: data["channelName"],
		SenderID:    data["senderId"],
		SenderName:  data["senderName"],
		Content:     data["messageContent"],
		IsPersonal:  personal,
	}
}

// ParsePayloadJSON reads the data object of a raw push body. Both a bare
// data object and the full {"message":{"data":{...}}} envelope are accepted.
func ParsePayloadJSON(raw []byte) (Payload, error) {
	val, err := fastjson.ParseBytes(raw)
	if err != nil {
		return Payload{}, fmt.Errorf("unable to parse push payload: %v", err)
	}
	if inner := val.Get("message", "data"); inner != nil {
		val = inner
	} else if inner := val.Get("data"); inner != nil {
		val = inner
	}
	obj, err := val.Object()
	if err != nil {
		return Payload{}, fmt.Errorf("push payload is not an object: %v", err)
	}

	data := make(map[string]string)
	obj.Visit(func(key []byte, item *fastjson.Value) {
		switch item.Type() {
		case fastjson.TypeString:
			data[string(key)] = string(item.GetStringBytes())
		case fastjson.TypeTrue:
			data[string(key)] = "true"
		case fastjson.TypeFalse:
			data[string(key)] = "false"
		default:
			data[string(key)] = item.String()
		}
	})
	return ParsePayload(data), nil
}
