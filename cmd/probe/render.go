package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"
)

type printer struct {
	out     io.Writer
	colours bool
}

var styles = map[string]color.Style{
	"online_users":      color.New(color.FgCyan, color.OpBold),
	"user_online":       color.New(color.FgGreen),
	"user_offline":      color.New(color.FgGray),
	"new_message":       color.New(color.FgYellow, color.OpBold),
	"message_delivered": color.New(color.FgBlue),
	"message_read":      color.New(color.FgMagenta),
	"messages_read":     color.New(color.FgMagenta),
	"typing":            color.New(color.FgLightWhite),
}

// Frame prints one server frame on a single line, the snapshot also as a table.
func (p printer) Frame(frame map[string]any) {
	kind, _ := frame["type"].(string)
	label := fmt.Sprintf("%-18s", kind)
	if style, ok := styles[kind]; ok && p.colours {
		label = style.Render(label)
	}
	fmt.Fprintf(p.out, "%s %s\n", label, summary(kind, frame))

	if kind == "online_users" {
		users, _ := frame["users"].([]any)
		p.Snapshot(users)
	}
}

func (p printer) Snapshot(users []any) {
	names := make([]string, 0, len(users))
	for _, u := range users {
		names = append(names, fmt.Sprint(u))
	}
	sort.Strings(names)

	table := tablewriter.NewWriter(p.out)
	table.SetHeader([]string{"#", "Online user"})
	table.SetBorder(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	for i, name := range names {
		table.Append([]string{fmt.Sprint(i + 1), name})
	}
	table.Render()
}

func (p printer) Error(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if p.colours {
		msg = color.Red.Render(msg)
	}
	fmt.Fprintln(p.out, msg)
}

func summary(kind string, frame map[string]any) string {
	switch kind {
	case "online_users":
		users, _ := frame["users"].([]any)
		return fmt.Sprintf("%d peers", len(users))
	case "user_online", "user_offline":
		return fmt.Sprint(frame["userId"])
	case "new_message":
		message, _ := frame["message"].(map[string]any)
		sender, _ := message["sender"].(map[string]any)
		return fmt.Sprintf("%v from %v in %v: %v", message["_id"], sender["_id"], message["chat"], content(message))
	case "message_delivered":
		return fmt.Sprintf("%v at %v", frame["messageId"], frame["deliveredAt"])
	case "message_read":
		return fmt.Sprintf("%v at %v", frame["messageId"], frame["readAt"])
	case "messages_read":
		ids, _ := frame["messageIds"].([]any)
		return fmt.Sprintf("%d messages in %v at %v", len(ids), frame["chatId"], frame["readAt"])
	case "typing":
		verb := "stopped typing"
		if typing, _ := frame["isTyping"].(bool); typing {
			verb = "is typing"
		}
		return fmt.Sprintf("%v %s in %v", frame["userId"], verb, frame["chatId"])
	default:
		raw, _ := json.Marshal(frame)
		return string(raw)
	}
}

func content(message map[string]any) string {
	if message["type"] == "voice" {
		return "[voice]"
	}
	text, _ := message["content"].(string)
	return strings.TrimSpace(text)
}
