package phone

import (
	"github.com/godbus/dbus/v5"
)

// ParseMessageVariant normalizes the a{sv} dictionary the daemon emits for
// conversationCreated/conversationUpdated signal bodies into a Message.
// Returns false when the dictionary lacks the identity fields.
func ParseMessageVariant(dict map[string]dbus.Variant) (*Message, bool) {
	threadID, ok := asInt64(dict["thread_id"])
	if !ok {
		return nil, false
	}
	uid, ok := asInt64(dict["_id"])
	if !ok {
		return nil, false
	}

	msg := &Message{
		UID:      uid,
		ThreadID: threadID,
	}
	if body, ok := asString(dict["body"]); ok {
		msg.Body = body
	}
	if date, ok := asInt64(dict["date"]); ok {
		msg.Timestamp = date
	}
	if typ, ok := asInt64(dict["type"]); ok {
		msg.Type = MessageType(typ)
	}
	if read, ok := asInt64(dict["read"]); ok {
		msg.Read = read != 0
	}
	if sub, ok := asInt64(dict["sub_id"]); ok {
		msg.SubID = sub
	}
	msg.Addresses = parseAddresses(dict["addresses"])
	msg.Attachments = parseAttachments(dict["attachments"])
	return msg, true
}

// parseAddresses unpacks the array of single-string structs the daemon
// uses for conversation addresses.
func parseAddresses(v dbus.Variant) []string {
	var out []string
	arr, ok := v.Value().([]any)
	if !ok {
		return nil
	}
	for _, el := range arr {
		switch a := el.(type) {
		case string:
			out = append(out, a)
		case []any:
			if len(a) > 0 {
				if s, ok := a[0].(string); ok {
					out = append(out, s)
				}
			}
		}
	}
	return out
}

func parseAttachments(v dbus.Variant) []Attachment {
	arr, ok := v.Value().([]any)
	if !ok {
		return nil
	}
	var out []Attachment
	for _, el := range arr {
		fields, ok := el.([]any)
		if !ok || len(fields) < 4 {
			continue
		}
		var att Attachment
		if id, ok := toInt64(fields[0]); ok {
			att.PartID = id
		}
		if s, ok := fields[1].(string); ok {
			att.MimeType = s
		}
		if s, ok := fields[2].(string); ok {
			att.Base64Thumbnail = s
		}
		if s, ok := fields[3].(string); ok {
			att.UniqueIdentifier = s
		}
		out = append(out, att)
	}
	return out
}

func asString(v dbus.Variant) (string, bool) {
	s, ok := v.Value().(string)
	return s, ok
}

// asInt64 accepts any integer width the daemon may pick for a numeric
// field; dictionaries are not stable about int32 vs int64.
func asInt64(v dbus.Variant) (int64, bool) {
	return toInt64(v.Value())
}

func toInt64(val any) (int64, bool) {
	switch n := val.(type) {
	case int64:
		return n, true
	case int32:
		return int64(n), true
	case uint64:
		return int64(n), true
	case uint32:
		return int64(n), true
	case int16:
		return int64(n), true
	case uint16:
		return int64(n), true
	case byte:
		return int64(n), true
	case int:
		return int64(n), true
	case dbus.Variant:
		return toInt64(n.Value())
	default:
		return 0, false
	}
}
