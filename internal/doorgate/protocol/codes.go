package protocol

import "strconv"

// Code is the daemon's integer status. The values are the wire contract.
type Code int

const (
	CodeSuccess            Code = 0
	CodeFail               Code = 1
	CodeAlreadyUnlocked    Code = 2 // authenticated, door already unlocked
	CodeAlreadyLocked      Code = 3 // authenticated, door already locked
	CodeNotJSON            Code = 4 // daemon could not parse the request
	CodeJSONError          Code = 5 // request JSON lacks required fields
	CodeInvalidToken       Code = 6
	CodeInvalidCredentials Code = 7
	CodeInvalidIP          Code = 8
	CodeUnknownCommand     Code = 9
	CodeLDAPInit           Code = 10
)

// UnknownCodeText is the text of every code outside the table.
const UnknownCodeText = "Unknown error"

var codeText = map[Code]string{
	CodeSuccess:            "Success",
	CodeFail:               "Fail",
	CodeAlreadyUnlocked:    "Already Unlocked",
	CodeAlreadyLocked:      "Already Locked",
	CodeNotJSON:            "NotJson",
	CodeJSONError:          "Json Error",
	CodeInvalidToken:       "Invalid Token",
	CodeInvalidCredentials: "Invalid Credentials",
	CodeInvalidIP:          "Invalid IP",
	CodeUnknownCommand:     "Unknown Command",
	CodeLDAPInit:           "LDAP Init Error",
}

// String returns the human-readable meaning of c. It is defined for every
// integer.
func (c Code) String() string {
	if s, ok := codeText[c]; ok {
		return s
	}
	return UnknownCodeText
}

// Known reports whether c is one of the documented daemon codes.
func (c Code) Known() bool {
	_, ok := codeText[c]
	return ok
}

// OK reports whether c is the success code.
func (c Code) OK() bool { return c == CodeSuccess }

// Wire returns the decimal form used by the bare API response.
func (c Code) Wire() string { return strconv.Itoa(int(c)) }
