package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	intbus "github.com/mvasconc/phonelink/internal/bus"
	"github.com/mvasconc/phonelink/internal/cache"
	"github.com/mvasconc/phonelink/internal/config"
	"github.com/mvasconc/phonelink/internal/phone"
	"github.com/mvasconc/phonelink/internal/session"
	"github.com/mvasconc/phonelink/internal/store"
	intsync "github.com/mvasconc/phonelink/internal/sync"
	"go.uber.org/zap"
)

func main() {
	deviceFlag := flag.String("device", "", "device id (overrides config default)")
	jsonFlag := flag.Bool("json", false, "output in JSON format")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	if args[0] == "devices" {
		// The only command that works without a configured device.
		cmdDevices(*jsonFlag)
		return
	}

	deviceID := session.Resolve(*deviceFlag)
	if err := session.ValidateDeviceID(deviceID); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	switch args[0] {
	case "conversations":
		cmdConversations(deviceID, *jsonFlag)
	case "messages":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: phonelinkctl messages <thread-id>")
			os.Exit(1)
		}
		threadID, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: invalid thread id %q\n", args[1])
			os.Exit(1)
		}
		cmdMessages(deviceID, threadID, *jsonFlag)
	case "contacts":
		cmdContacts(deviceID, args[1:], *jsonFlag)
	case "send":
		if len(args) < 3 {
			fmt.Fprintln(os.Stderr, "usage: phonelinkctl send <thread-id|address> <body>")
			os.Exit(1)
		}
		cmdSend(deviceID, args[1], args[2])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: phonelinkctl [--device <id>] [--json] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  devices                       List paired devices")
	fmt.Fprintln(os.Stderr, "  conversations                 Sync and print the conversation list")
	fmt.Fprintln(os.Stderr, "  messages <thread-id>          Sync and print a conversation's messages")
	fmt.Fprintln(os.Stderr, "  contacts [add <address> <name>]  List or add archived contact names")
	fmt.Fprintln(os.Stderr, "  send <thread-id|address> <body>  Queue an outgoing message")
}

// setup builds the consumer-side stack: adapter, cache and sync manager
// over a private in-process bus.
func setup(deviceID string) (*phone.Adapter, *intsync.Manager, *cache.Store, error) {
	logger := zap.NewNop()
	timeouts := loadTimeouts()
	b := intbus.New()
	adapter, err := phone.NewAdapter(b, logger, timeouts.MessagesPerPage)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := adapter.Start(context.Background()); err != nil {
		adapter.Stop()
		return nil, nil, nil, err
	}
	c := cache.New()
	c.SwitchDevice(deviceID)
	return adapter, intsync.NewManager(adapter, b, c, timeouts, logger), c, nil
}

// openArchive opens the daemon's archive database when one exists. Returns
// nil rather than creating an empty file for a device the daemon never ran
// for.
func openArchive(deviceID string) *store.DB {
	path := session.ArchiveDBPath(deviceID)
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	db, err := store.Open(path)
	if err != nil {
		return nil
	}
	return db
}

func loadTimeouts() config.Timeouts {
	cfg, err := config.Load(session.ConfigPath())
	if err != nil {
		cfg = &config.Config{}
	}
	return cfg.SyncTimeouts()
}

func cmdDevices(jsonOut bool) {
	adapter, err := phone.NewAdapter(intbus.New(), zap.NewNop(), 30)
	if err != nil {
		fail(err)
	}
	defer adapter.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	ids, err := adapter.Devices(ctx, false)
	if err != nil {
		fail(err)
	}
	if jsonOut {
		type device struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		}
		out := make([]device, 0, len(ids))
		for _, id := range ids {
			out = append(out, device{ID: id, Name: adapter.DeviceName(id)})
		}
		outputJSON(out)
		return
	}
	for _, id := range ids {
		fmt.Printf("%s  %s\n", id, adapter.DeviceName(id))
	}
}

func cmdConversations(deviceID string, jsonOut bool) {
	adapter, manager, c, err := setup(deviceID)
	if err != nil {
		fail(err)
	}
	defer adapter.Stop()

	// Seed from the archive so the list opens warm and still prints
	// something useful when the phone stays quiet.
	if db := openArchive(deviceID); db != nil {
		if rows, err := db.ListConversations(200, 0); err == nil {
			for i := range rows {
				c.MergeConversation(rows[i].Summary())
			}
		}
		_ = db.Close()
	}

	s := manager.OpenList(context.Background(), deviceID)
	done := drain(s.Updates())

	convs := c.Conversations()
	if jsonOut {
		outputJSON(map[string]any{
			"conversations": convs,
			"timed_out":     done != nil && done.TimedOut,
		})
		return
	}
	for _, conv := range convs {
		marker := " "
		if conv.Unread {
			marker = "*"
		}
		fmt.Printf("%s %8d  %-20s  %s\n", marker, conv.ThreadID,
			firstAddress(conv.Addresses), conv.LastMessage)
	}
	if done != nil && done.TimedOut {
		fmt.Fprintln(os.Stderr, "warning: phone did not confirm the snapshot")
	}
}

func cmdMessages(deviceID string, threadID int64, jsonOut bool) {
	adapter, manager, c, err := setup(deviceID)
	if err != nil {
		fail(err)
	}
	defer adapter.Stop()

	var header *store.Conversation
	if db := openArchive(deviceID); db != nil {
		if rows, err := db.ListMessages(threadID, 0, loadTimeouts().MessagesPerPage); err == nil {
			for i := range rows {
				c.MergeMessage(rows[i].Phone())
			}
		}
		header, _ = db.GetConversation(threadID)
		_ = db.Close()
	}

	s := manager.OpenThread(context.Background(), deviceID, threadID)
	done := drain(s.Updates())

	msgs := c.Messages(threadID)
	if jsonOut {
		outputJSON(map[string]any{
			"messages":  msgs,
			"timed_out": done != nil && done.TimedOut,
		})
		return
	}
	if header != nil {
		fmt.Printf("thread %d  %s\n", threadID, header.Addresses)
	}
	for _, m := range msgs {
		dir := "<-"
		if !m.Inbound() {
			dir = "->"
		}
		ts := time.UnixMilli(m.Timestamp).Format("2006-01-02 15:04")
		fmt.Printf("%s %s  %s\n", ts, dir, m.Body)
	}
	if done != nil && done.TimedOut {
		fmt.Fprintln(os.Stderr, "warning: phone did not confirm the read")
	}
}

// cmdContacts prints the archived address book, or adds an entry with
// "contacts add <address> <name>". Names added here are picked up by the
// daemon's notification resolver.
func cmdContacts(deviceID string, args []string, jsonOut bool) {
	if len(args) > 0 && args[0] == "add" {
		if len(args) < 3 {
			fmt.Fprintln(os.Stderr, "usage: phonelinkctl contacts add <address> <name>")
			os.Exit(1)
		}
		db, err := store.Open(session.ArchiveDBPath(deviceID))
		if err != nil {
			fail(err)
		}
		defer func() { _ = db.Close() }()
		if _, err := db.Migrate(); err != nil {
			fail(err)
		}
		if err := db.UpsertContact(&store.Contact{Address: args[1], Name: args[2]}); err != nil {
			fail(err)
		}
		fmt.Println("added")
		return
	}

	db := openArchive(deviceID)
	if db == nil {
		fail(fmt.Errorf("no archive for device %s", deviceID))
	}
	defer func() { _ = db.Close() }()
	list, err := db.ListContacts()
	if err != nil {
		fail(err)
	}
	if jsonOut {
		outputJSON(list)
		return
	}
	for _, ct := range list {
		fmt.Printf("%-20s  %s\n", ct.Address, ct.Name)
	}
}

// cmdSend queues the message in the shared outbox; the daemon's sender
// drains it. Falls back to a direct send when no daemon archive exists.
func cmdSend(deviceID, target, body string) {
	threadID, err := strconv.ParseInt(target, 10, 64)
	address := ""
	if err != nil {
		threadID = 0
		address = target
	}

	db, dbErr := store.Open(session.ArchiveDBPath(deviceID))
	if dbErr == nil {
		defer func() { _ = db.Close() }()
		if _, err := db.Migrate(); err == nil {
			if err := db.QueueOutbox(uuid.NewString(), threadID, address, body); err != nil {
				fail(err)
			}
			fmt.Println("queued")
			return
		}
	}

	adapter, _, _, err := setup(deviceID)
	if err != nil {
		fail(err)
	}
	defer adapter.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if threadID != 0 {
		err = adapter.Reply(ctx, deviceID, threadID, body)
	} else {
		err = adapter.SendNew(ctx, deviceID, address, body)
	}
	if err != nil {
		fail(err)
	}
	fmt.Println("sent")
}

// drain consumes a session's update stream and returns its completion.
func drain(ch <-chan intsync.Update) *intsync.Completion {
	for u := range ch {
		if u.Kind == intsync.UpdateSyncComplete {
			return u.Complete
		}
	}
	return nil
}

func firstAddress(addresses []string) string {
	if len(addresses) == 0 {
		return "?"
	}
	return addresses[0]
}

func outputJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fail(err)
	}
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
