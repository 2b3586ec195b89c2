package phone

import (
	"testing"

	"github.com/godbus/dbus/v5"
)

func messageDict(threadID, uid int64) map[string]dbus.Variant {
	return map[string]dbus.Variant{
		"thread_id": dbus.MakeVariant(threadID),
		"_id":       dbus.MakeVariant(int32(uid)),
		"body":      dbus.MakeVariant("hello"),
		"date":      dbus.MakeVariant(int64(1700000000000)),
		"type":      dbus.MakeVariant(int32(1)),
		"read":      dbus.MakeVariant(int32(0)),
		"sub_id":    dbus.MakeVariant(int64(2)),
		"addresses": dbus.MakeVariant([]any{[]any{"+15551234"}}),
	}
}

func TestParseMessageVariant(t *testing.T) {
	msg, ok := ParseMessageVariant(messageDict(42, 7))
	if !ok {
		t.Fatal("ParseMessageVariant returned !ok")
	}
	if msg.ThreadID != 42 || msg.UID != 7 {
		t.Errorf("identity = (%d,%d), want (42,7)", msg.ThreadID, msg.UID)
	}
	if msg.Body != "hello" {
		t.Errorf("body = %q, want hello", msg.Body)
	}
	if !msg.Inbound() {
		t.Error("type=1 message should be inbound")
	}
	if msg.Read {
		t.Error("read flag should be false")
	}
	if msg.SubID != 2 {
		t.Errorf("sub id = %d, want 2", msg.SubID)
	}
	if msg.PrimaryAddress() != "+15551234" {
		t.Errorf("primary address = %q, want +15551234", msg.PrimaryAddress())
	}
}

func TestParseMessageVariantMissingIdentity(t *testing.T) {
	dict := messageDict(42, 7)
	delete(dict, "thread_id")
	if _, ok := ParseMessageVariant(dict); ok {
		t.Error("expected !ok without thread_id")
	}

	dict = messageDict(42, 7)
	delete(dict, "_id")
	if _, ok := ParseMessageVariant(dict); ok {
		t.Error("expected !ok without _id")
	}
}

func TestParseMessageVariantIntWidths(t *testing.T) {
	// The daemon is not consistent about integer widths across fields.
	dict := messageDict(9, 3)
	dict["thread_id"] = dbus.MakeVariant(int32(9))
	dict["date"] = dbus.MakeVariant(uint64(123))

	msg, ok := ParseMessageVariant(dict)
	if !ok {
		t.Fatal("ParseMessageVariant returned !ok")
	}
	if msg.ThreadID != 9 {
		t.Errorf("thread id = %d, want 9", msg.ThreadID)
	}
	if msg.Timestamp != 123 {
		t.Errorf("timestamp = %d, want 123", msg.Timestamp)
	}
}

func TestParseAttachments(t *testing.T) {
	dict := messageDict(1, 1)
	dict["attachments"] = dbus.MakeVariant([]any{
		[]any{int64(5), "image/jpeg", "dGh1bWI=", "part-5.jpg"},
	})

	msg, ok := ParseMessageVariant(dict)
	if !ok {
		t.Fatal("ParseMessageVariant returned !ok")
	}
	if len(msg.Attachments) != 1 {
		t.Fatalf("got %d attachments, want 1", len(msg.Attachments))
	}
	att := msg.Attachments[0]
	if att.PartID != 5 || att.MimeType != "image/jpeg" || att.UniqueIdentifier != "part-5.jpg" {
		t.Errorf("attachment = %+v", att)
	}
	if !msg.Summary().HasAttachments {
		t.Error("summary should report attachments")
	}
}

func TestSummaryUnreadInversion(t *testing.T) {
	dict := messageDict(3, 1)
	dict["read"] = dbus.MakeVariant(int32(1))
	msg, _ := ParseMessageVariant(dict)
	if msg.Summary().Unread {
		t.Error("read message must not produce an unread summary")
	}
}
