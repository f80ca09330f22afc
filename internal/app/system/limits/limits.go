// internal/app/system/limits/limits.go
package limits

const (
	// MaxChatRunes is the longest chat message accepted, in runes, after
	// sanitizing.
	MaxChatRunes = 2000

	// MaxFormSize bounds form and JSON request bodies.
	MaxFormSize = 64 << 10 // 64 KB

	// MaxSocketFrame bounds frames read from browser websockets. Clients
	// only send control frames and small acks.
	MaxSocketFrame = 4 << 10
)
