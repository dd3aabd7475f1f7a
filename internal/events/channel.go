// Package events carries the Postgres LISTEN/NOTIFY contract between the
// intake service, the resolver and downstream consumers.
//
// Channel names and payload formats are a wire contract: "new_order" carries
// one decimal order id, "new_bom_entry" carries comma-joined decimal BOM entry
// ids with no spaces.
package events

// Channel is a notification topic.
type Channel int

const (
	ChannelUnknown Channel = iota
	ChannelNewOrder
	ChannelNewBOMEntry
)

const (
	newOrderName    = "new_order"
	newBOMEntryName = "new_bom_entry"
)

// Subscribed lists the channels the resolver listens on.
var Subscribed = []Channel{ChannelNewOrder, ChannelNewBOMEntry}

// ParseChannel maps a wire name onto a Channel. Unknown names yield ChannelUnknown.
func ParseChannel(name string) Channel {
	switch name {
	case newOrderName:
		return ChannelNewOrder
	case newBOMEntryName:
		return ChannelNewBOMEntry
	default:
		return ChannelUnknown
	}
}

// String returns the wire name of the channel.
func (c Channel) String() string {
	switch c {
	case ChannelNewOrder:
		return newOrderName
	case ChannelNewBOMEntry:
		return newBOMEntryName
	default:
		return "unknown"
	}
}

// Notification is one delivered event.
type Notification struct {
	// PID of the backend that sent the notification.
	PID     uint32
	Channel string
	Payload string
}

// Kind returns the parsed channel of the notification.
func (n Notification) Kind() Channel {
	return ParseChannel(n.Channel)
}
