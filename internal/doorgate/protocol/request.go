package protocol

import (
	"fmt"

	"go.uber.org/zap/zapcore"
)

// Commands understood by the daemon. The gateway forwards any command
// string unchanged; the daemon decides whether it is valid.
const (
	CommandLock   = "lock"
	CommandUnlock = "unlock"
)

// LockRequest is one outbound message to the lock daemon.
type LockRequest struct {
	User     string
	Password string
	Command  string
	Token    string
	IP       string
}

// NewLockRequest assembles a request from already extracted values. Empty
// strings are kept; credential checks belong to the daemon.
func NewLockRequest(command, user, password, token, ip string) LockRequest {
	return LockRequest{
		User:     user,
		Password: password,
		Command:  command,
		Token:    token,
		IP:       ip,
	}
}

// String omits the password.
func (r LockRequest) String() string {
	return fmt.Sprintf("command=%s user=%s token=%s ip=%s", r.Command, r.User, r.Token, r.IP)
}

// MarshalLogObject lets the request be logged with zap.Object without the
// password.
func (r LockRequest) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("command", r.Command)
	enc.AddString("user", r.User)
	enc.AddString("token", r.Token)
	enc.AddString("ip", r.IP)
	return nil
}
