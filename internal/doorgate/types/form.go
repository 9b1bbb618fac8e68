package types

// LockForm is the inbound lock request as submitted by the caller. Nil
// pointers mark absent fields; empty strings are present but empty.
type LockForm struct {
	User     *string `json:"user"`
	Password *string `json:"pass"`
	Token    *string `json:"token"`
	Command  *string `json:"command"`
	Action   *string `json:"action"` // legacy name for Command

	API      bool   `json:"-"`
	CallerIP string `json:"-"`
}

// EffectiveCommand prefers Command and falls back to the legacy Action key.
func (f LockForm) EffectiveCommand() *string {
	if f.Command != nil {
		return f.Command
	}
	return f.Action
}

// Missing lists the required keys absent from f.
func (f LockForm) Missing() []string {
	var out []string
	if f.User == nil {
		out = append(out, "user")
	}
	if f.Password == nil {
		out = append(out, "pass")
	}
	if f.Token == nil {
		out = append(out, "token")
	}
	if f.EffectiveCommand() == nil {
		out = append(out, "command")
	}
	return out
}
