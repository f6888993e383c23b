package pubsub

import "fmt"

// Channel naming conventions for chat room fan-out.
const (
	ChannelRoom = "chat:room:%s"
	PatternRoom = "chat:room:*"
)

// EventRoomMessage carries one frame addressed to every member of a room.
const EventRoomMessage = "room_message"

// RoomChannel returns the channel name for a room's frames.
func RoomChannel(roomID string) string {
	return fmt.Sprintf(ChannelRoom, roomID)
}
