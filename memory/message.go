package memory

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// Role identifies who produced a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ParseRole matches s case-insensitively against the known roles.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleSystem, RoleUser, RoleAssistant, RoleTool:
		return r, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// Message is one persisted conversation turn.
//
// Extra carries any payload the provider layer attaches (raw content blocks,
// stop reasons). It is opaque here and written back verbatim.
type Message struct {
	Role    Role
	Content string
	Extra   map[string]json.RawMessage
}

// System returns a system-prompt message.
func System(text string) Message { return Message{Role: RoleSystem, Content: text} }

// User returns a user message with plain text content.
func User(text string) Message { return Message{Role: RoleUser, Content: text} }

// Assistant returns an assistant message with plain text content.
func Assistant(text string) Message { return Message{Role: RoleAssistant, Content: text} }

// Known keys. "text" is the content key of the older text-only format; it is
// only read as content when "content" is absent, and otherwise kept in Extra.
const (
	keyRole       = "role"
	keyContent    = "content"
	keyLegacyText = "text"
)

func reservedKey(k string) bool {
	return strings.EqualFold(k, keyRole) || strings.EqualFold(k, keyContent)
}

// MarshalJSON writes role and content alongside every Extra key. Extra keys
// that collide with the reserved names are dropped.
func (m Message) MarshalJSON() ([]byte, error) {
	obj := make(map[string]json.RawMessage, len(m.Extra)+2)
	for k, v := range m.Extra {
		if reservedKey(k) || len(v) == 0 {
			continue
		}
		obj[k] = v
	}
	role, err := json.Marshal(string(m.Role))
	if err != nil {
		return nil, err
	}
	content, err := json.Marshal(m.Content)
	if err != nil {
		return nil, err
	}
	obj[keyRole] = role
	obj[keyContent] = content
	return json.Marshal(obj)
}

// UnmarshalJSON is the single-message half of Decode.
func (m *Message) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("invalid JSON")
	}
	msg, err := decodeMessage(gjson.ParseBytes(data))
	if err != nil {
		return err
	}
	*m = msg
	return nil
}

func decodeMessage(v gjson.Result) (Message, error) {
	if !v.IsObject() {
		return Message{}, fmt.Errorf("message is %s, want object", v.Type)
	}
	var (
		msg        Message
		haveRole   bool
		haveBody   bool
		legacyText *gjson.Result
		legacyKey  string
		err        error
	)
	v.ForEach(func(key, value gjson.Result) bool {
		k := key.String()
		switch {
		case strings.EqualFold(k, keyRole):
			if value.Type != gjson.String {
				err = fmt.Errorf("role is %s, want string", value.Type)
				return false
			}
			msg.Role, err = ParseRole(value.Str)
			haveRole = err == nil
			return err == nil
		case strings.EqualFold(k, keyContent):
			msg.Content, err = textField(k, value)
			haveBody = err == nil
			return err == nil
		case strings.EqualFold(k, keyLegacyText):
			lt := value
			legacyText, legacyKey = &lt, k
		default:
			if msg.Extra == nil {
				msg.Extra = make(map[string]json.RawMessage)
			}
			msg.Extra[k] = json.RawMessage(value.Raw)
		}
		return true
	})
	if err != nil {
		return Message{}, err
	}
	if !haveRole {
		return Message{}, fmt.Errorf("missing role")
	}
	switch {
	case legacyText == nil:
	case haveBody:
		// Both present: content wins and text travels on untouched.
		if msg.Extra == nil {
			msg.Extra = make(map[string]json.RawMessage)
		}
		msg.Extra[legacyKey] = json.RawMessage(legacyText.Raw)
	default:
		if msg.Content, err = textField(legacyKey, *legacyText); err != nil {
			return Message{}, err
		}
	}
	return msg, nil
}

func textField(name string, v gjson.Result) (string, error) {
	switch v.Type {
	case gjson.String:
		return v.Str, nil
	case gjson.Null:
		return "", nil
	}
	return "", fmt.Errorf("%s is %s, want string", name, v.Type)
}
