package phone

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/mvasconc/phonelink/internal/bus"
	"go.uber.org/zap"
)

const (
	daemonBusName = "org.kde.kdeconnect.daemon"
	basePath      = "/modules/kdeconnect"

	convIface  = "org.kde.kdeconnect.device.conversations"
	smsIface   = "org.kde.kdeconnect.device.sms"
	shareIface = "org.kde.kdeconnect.device.share"
	telIface   = "org.kde.kdeconnect.device.telephony"
)

// Adapter bridges the phone daemon's session-bus signals onto the
// in-process bus and implements Source against its method surface. It does
// not interpret sync semantics; the engines subscribe to the bus
// independently.
type Adapter struct {
	conn     *dbus.Conn
	bus      *bus.Bus
	logger   *zap.Logger
	pageSize int64
	signals  chan *dbus.Signal
	cancel   context.CancelFunc
}

// NewAdapter connects to the session bus and prepares signal routing.
func NewAdapter(b *bus.Bus, logger *zap.Logger, pageSize int) (*Adapter, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("connect session bus: %w", err)
	}
	return &Adapter{
		conn:     conn,
		bus:      b,
		logger:   logger,
		pageSize: int64(pageSize),
		signals:  make(chan *dbus.Signal, 256),
	}, nil
}

// Start registers signal matches and begins pumping daemon signals onto the
// bus. Matches are registered before any request path is exercised so no
// early signal is lost.
func (a *Adapter) Start(ctx context.Context) error {
	matches := []struct {
		iface  string
		member string
	}{
		{convIface, "conversationCreated"},
		{convIface, "conversationUpdated"},
		{convIface, "conversationLoaded"},
		{shareIface, "shareReceived"},
		{telIface, "callReceived"},
	}
	for _, m := range matches {
		if err := a.conn.AddMatchSignal(
			dbus.WithMatchInterface(m.iface),
			dbus.WithMatchMember(m.member),
		); err != nil {
			return fmt.Errorf("add match %s.%s: %w", m.iface, m.member, err)
		}
	}

	a.conn.Signal(a.signals)

	ctx, a.cancel = context.WithCancel(ctx)
	go a.pump(ctx)
	a.logger.Info("phone adapter watching daemon signals")
	return nil
}

// Stop tears down signal routing and the bus connection.
func (a *Adapter) Stop() {
	if a.cancel != nil {
		a.cancel()
	}
	a.conn.RemoveSignal(a.signals)
	_ = a.conn.Close()
}

func (a *Adapter) pump(ctx context.Context) {
	for {
		select {
		case sig, ok := <-a.signals:
			if !ok {
				a.logger.Warn("daemon signal stream closed")
				return
			}
			a.handleSignal(sig)
		case <-ctx.Done():
			return
		}
	}
}

func (a *Adapter) handleSignal(sig *dbus.Signal) {
	deviceID := deviceFromPath(string(sig.Path))
	if deviceID == "" {
		return
	}
	now := time.Now()

	switch sig.Name {
	case convIface + ".conversationCreated", convIface + ".conversationUpdated":
		dict, ok := extractDict(sig.Body)
		if !ok {
			return
		}
		msg, ok := ParseMessageVariant(dict)
		if !ok {
			return
		}
		kind := bus.KindConversationCreated
		if strings.HasSuffix(sig.Name, "conversationUpdated") {
			kind = bus.KindConversationUpdated
		}
		a.bus.Publish(bus.Signal{
			Kind:      kind,
			DeviceID:  deviceID,
			ThreadID:  msg.ThreadID,
			Timestamp: now,
			Payload:   msg.Summary(),
		})
		// The daemon has a single per-message signal serving both views:
		// re-publish as a message update so thread sessions see it too.
		a.bus.Publish(bus.Signal{
			Kind:      bus.KindMessageUpdated,
			DeviceID:  deviceID,
			ThreadID:  msg.ThreadID,
			Timestamp: now,
			Payload:   msg,
		})

	case convIface + ".conversationLoaded":
		if len(sig.Body) < 2 {
			return
		}
		threadID, ok1 := toInt64(sig.Body[0])
		count, ok2 := toInt64(sig.Body[1])
		if !ok1 || !ok2 {
			return
		}
		a.bus.Publish(bus.Signal{
			Kind:      bus.KindLoadComplete,
			DeviceID:  deviceID,
			ThreadID:  threadID,
			Timestamp: now,
			Payload:   bus.LoadComplete{LocalCount: count},
		})
		// The load-complete marker doubles as the list view's snapshot
		// completion; the daemon has no dedicated list-level signal.
		a.bus.Publish(bus.Signal{
			Kind:      bus.KindSnapshotComplete,
			DeviceID:  deviceID,
			Timestamp: now,
		})

	case shareIface + ".shareReceived":
		if len(sig.Body) < 1 {
			return
		}
		url, ok := sig.Body[0].(string)
		if !ok {
			return
		}
		a.bus.Publish(bus.Signal{
			Kind:      bus.KindFileReceived,
			DeviceID:  deviceID,
			Timestamp: now,
			Payload:   bus.FileReceived{URL: url, Name: fileNameFromURL(url)},
		})

	case telIface + ".callReceived":
		if len(sig.Body) < 3 {
			return
		}
		event, _ := sig.Body[0].(string)
		number, _ := sig.Body[1].(string)
		name, _ := sig.Body[2].(string)
		a.bus.Publish(bus.Signal{
			Kind:      bus.KindCallReceived,
			DeviceID:  deviceID,
			Timestamp: now,
			Payload:   bus.CallReceived{Event: event, PhoneNumber: number, ContactName: name},
		})
	}
}

// --- Source implementation ---

// SnapshotConversations reads the daemon's currently cached conversations.
func (a *Adapter) SnapshotConversations(ctx context.Context, deviceID string) ([]ConversationSummary, error) {
	obj := a.conn.Object(daemonBusName, devicePath(deviceID))
	var raw []map[string]dbus.Variant
	call := obj.CallWithContext(ctx, convIface+".activeConversations", 0)
	if call.Err != nil {
		return nil, fmt.Errorf("active conversations: %w", call.Err)
	}
	if err := call.Store(&raw); err != nil {
		return nil, fmt.Errorf("decode conversations: %w", err)
	}

	var out []ConversationSummary
	for _, dict := range raw {
		if msg, ok := ParseMessageVariant(dict); ok {
			out = append(out, msg.Summary())
		}
	}
	return out, nil
}

// RequestRefreshAll fires the two list-scope requests: the network request
// to the phone (which also primes the daemon's reply cache) and the local
// store read that produces the conversation signals.
func (a *Adapter) RequestRefreshAll(ctx context.Context, deviceID string) error {
	sms := a.conn.Object(daemonBusName, smsPath(deviceID))
	if call := sms.CallWithContext(ctx, smsIface+".requestAllConversations", dbus.FlagNoReplyExpected); call.Err != nil {
		// Non-fatal: the local-store path below can still produce signals.
		a.logger.Warn("requestAllConversations failed", zap.String("device", deviceID), zap.Error(call.Err))
	}
	dev := a.conn.Object(daemonBusName, devicePath(deviceID))
	if call := dev.CallWithContext(ctx, convIface+".requestAllConversationThreads", dbus.FlagNoReplyExpected); call.Err != nil {
		return fmt.Errorf("request conversation threads: %w", call.Err)
	}
	return nil
}

// RequestPriming fires the SMS-plugin history request for a thread. Its
// only observable effect is populating the daemon cache used by Reply.
func (a *Adapter) RequestPriming(ctx context.Context, deviceID string, threadID int64) error {
	obj := a.conn.Object(daemonBusName, smsPath(deviceID))
	call := obj.CallWithContext(ctx, smsIface+".requestConversation", dbus.FlagNoReplyExpected,
		threadID, int64(0), a.pageSize)
	if call.Err != nil {
		return fmt.Errorf("priming request: %w", call.Err)
	}
	return nil
}

// RequestRead asks the daemon to read a thread range from its local store.
func (a *Adapter) RequestRead(ctx context.Context, deviceID string, threadID int64, offset, count int64) error {
	obj := a.conn.Object(daemonBusName, devicePath(deviceID))
	call := obj.CallWithContext(ctx, convIface+".requestConversation", dbus.FlagNoReplyExpected,
		threadID, int32(offset), int32(count))
	if call.Err != nil {
		return fmt.Errorf("read request: %w", call.Err)
	}
	return nil
}

// Reply sends into an existing thread via the daemon's address lookup.
func (a *Adapter) Reply(ctx context.Context, deviceID string, threadID int64, body string) error {
	obj := a.conn.Object(daemonBusName, devicePath(deviceID))
	call := obj.CallWithContext(ctx, convIface+".replyToConversation", 0,
		threadID, body, []dbus.Variant{})
	if call.Err != nil {
		return fmt.Errorf("reply to conversation: %w", call.Err)
	}
	return nil
}

// SendNew sends to an explicit address without an existing conversation.
func (a *Adapter) SendNew(ctx context.Context, deviceID, address, body string) error {
	obj := a.conn.Object(daemonBusName, devicePath(deviceID))
	addresses := []dbus.Variant{dbus.MakeVariant([]any{address})}
	call := obj.CallWithContext(ctx, convIface+".sendWithoutConversation", 0,
		addresses, body, []dbus.Variant{})
	if call.Err != nil {
		return fmt.Errorf("send without conversation: %w", call.Err)
	}
	return nil
}

// Devices lists paired device ids known to the daemon. With onlyReachable
// set, devices currently out of range are excluded.
func (a *Adapter) Devices(ctx context.Context, onlyReachable bool) ([]string, error) {
	obj := a.conn.Object(daemonBusName, dbus.ObjectPath(basePath))
	var ids []string
	call := obj.CallWithContext(ctx, daemonBusName+".devices", 0, onlyReachable, true)
	if call.Err != nil {
		return nil, fmt.Errorf("list devices: %w", call.Err)
	}
	if err := call.Store(&ids); err != nil {
		return nil, fmt.Errorf("decode device list: %w", err)
	}
	return ids, nil
}

// DeviceName resolves a device's human-readable name, falling back to the
// id when the property read fails.
func (a *Adapter) DeviceName(deviceID string) string {
	obj := a.conn.Object(daemonBusName, devicePath(deviceID))
	v, err := obj.GetProperty("org.kde.kdeconnect.device.name")
	if err != nil {
		return deviceID
	}
	if name, ok := v.Value().(string); ok && name != "" {
		return name
	}
	return deviceID
}

func devicePath(deviceID string) dbus.ObjectPath {
	return dbus.ObjectPath(basePath + "/devices/" + deviceID)
}

func smsPath(deviceID string) dbus.ObjectPath {
	return dbus.ObjectPath(basePath + "/devices/" + deviceID + "/sms")
}

// deviceFromPath extracts the device id from an object path like
// /modules/kdeconnect/devices/<id>/sms.
func deviceFromPath(path string) string {
	rest, ok := strings.CutPrefix(path, basePath+"/devices/")
	if !ok {
		return ""
	}
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		rest = rest[:i]
	}
	return rest
}

// extractDict unwraps a signal body whose first argument is either a bare
// a{sv} dictionary or a variant containing one.
func extractDict(body []any) (map[string]dbus.Variant, bool) {
	if len(body) == 0 {
		return nil, false
	}
	switch v := body[0].(type) {
	case map[string]dbus.Variant:
		return v, true
	case dbus.Variant:
		if dict, ok := v.Value().(map[string]dbus.Variant); ok {
			return dict, true
		}
	}
	return nil, false
}

func fileNameFromURL(url string) string {
	name := strings.TrimPrefix(url, "file://")
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	if name == "" {
		return "file"
	}
	return name
}
