package channel

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrNoRoom is returned when a socket URL does not name a room.
var ErrNoRoom = errors.New("socket url has no room id")

const joinSegment = "joinRoom"

// RoomIDFromURL extracts the room id from a socket URL such as
// ws://host/ws/joinRoom/{roomId}?userId=..: the segment after joinRoom,
// or the last path segment when there is none.
func RoomIDFromURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse socket url: %w", err)
	}
	segments := strings.FieldsFunc(u.Path, func(r rune) bool { return r == '/' })
	if len(segments) == 0 {
		return "", ErrNoRoom
	}
	for i, seg := range segments {
		if seg == joinSegment {
			if i+1 < len(segments) {
				return unescape(segments[i+1])
			}
			return "", ErrNoRoom
		}
	}
	return unescape(segments[len(segments)-1])
}

func unescape(seg string) (string, error) {
	s, err := url.PathUnescape(seg)
	if err != nil {
		return "", fmt.Errorf("room id: %w", err)
	}
	return s, nil
}

// JoinURL builds the socket URL for joining roomID on the server at
// base. An http(s) base is mapped to ws(s).
func JoinURL(base, roomID, userID, username string) (string, error) {
	if roomID == "" {
		return "", ErrNoRoom
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported server url scheme %q", u.Scheme)
	}
	if u.Path == "" {
		u.Path = "/"
	}
	u = u.JoinPath("ws", joinSegment, roomID)
	q := url.Values{}
	q.Set("userId", userID)
	q.Set("username", username)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
