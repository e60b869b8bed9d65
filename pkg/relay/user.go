package relay

import (
	"github.com/babelcall/babelcall/pkg/com"
	"github.com/babelcall/babelcall/pkg/logger"
)

// User is one connected signaling client.
type User struct {
	com.SocketClient
}

func NewUser(conn *com.Client, log *logger.Logger) *User {
	return &User{SocketClient: com.New(conn, "u", com.NewUid(), log)}
}
