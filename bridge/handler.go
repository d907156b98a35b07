// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"encoding/base64"

	"github.com/bureau-foundation/xdebugbus/dbgp"
	"github.com/bureau-foundation/xdebugbus/debugvalue"
	"github.com/bureau-foundation/xdebugbus/lib/codec"
)

// Context ids of context_get.
const (
	contextGlobals = "1"
	contextClass   = "2"
)

// HandleMessage interprets one engine frame. It implements dbgp.Handler
// and runs on the connection's dispatch goroutine.
func (b *Bridge) HandleMessage(conn *dbgp.Conn, message *dbgp.Message) {
	b.Metrics.FramesDecoded.WithLabelValues(message.Kind).Inc()
	b.logMessage(conn, message)

	command := message.Command()
	switch status := message.Status(); {
	case message.Kind == dbgp.KindInit:
		b.registry.Register(conn.AppID(), conn)
		b.logger().Info("debugger registered",
			"app_id", conn.AppID(),
			"file_uri", message.Attr("fileuri"),
			"language", message.Attr("language"),
		)
	case status == "break":
		b.handleBreak(conn, message)
	case status == "stopping":
		b.handleStopping(conn, message)
	case command == "context_get":
		b.handleContext(conn, message)
	case command == "property_get" || command == "property_value":
		b.handleProperty(conn, message)
	}
}

// HandleClose removes the connection from the registry.
func (b *Bridge) HandleClose(conn *dbgp.Conn) {
	if appID := conn.AppID(); appID != "" {
		b.registry.Unregister(appID, conn)
	}
}

// HandleDecodeError counts frames the connection dropped.
func (b *Bridge) HandleDecodeError(*dbgp.Conn, error) {
	b.Metrics.FrameDecodeErrors.Inc()
}

// logMessage logs breaks and source listings in full and any other
// response by its attributes only.
func (b *Bridge) logMessage(conn *dbgp.Conn, message *dbgp.Message) {
	logger := b.logger().With("app_id", conn.AppID())
	if message.Kind != dbgp.KindResponse {
		logger.Info("dbgp "+message.Kind+" received", "frame", logJSON(nodeData(message.Root)))
		return
	}
	if message.Status() == "break" || message.Command() == "source" {
		logger.Info("dbgp response received", "frame", logJSON(nodeData(message.Root)))
		return
	}
	logger.Info("dbgp response received", "attributes", logJSON(frameAttributes(message)))
}

// handleBreak fetches the source around the break line, then publishes
// a break notice followed by the numbered source lines.
func (b *Bridge) handleBreak(conn *dbgp.Conn, message *dbgp.Message) {
	breakInfo := message.Root.Child("xdebug:message")
	if breakInfo == nil {
		b.logger().Warn("break response without location", "app_id", conn.AppID())
		return
	}
	fileURI := breakInfo.AttrOr("filename", "")
	line := lineNumber(breakInfo.AttrOr("lineno", ""))
	begin, end := BreakWindow(line)
	file := displayFile(fileURI)
	command := message.Command()
	status := message.Status()

	args := dbgp.Args{
		{Key: "f", Value: fileURI},
		{Key: "b", Value: dbgp.Int(begin)},
		{Key: "e", Value: dbgp.Int(end)},
	}
	_, err := conn.Send("source", args, nil, func(reply *dbgp.Message) {
		b.publish(conn, EventLog, []any{"break on", file, line}, codec.OrderedMap{
			{Key: "appId", Value: appIDValue(conn)},
			{Key: "command", Value: command},
			{Key: "status", Value: status},
			{Key: "detectFiles", Value: true},
			{Key: "file", Value: file},
			{Key: "line", Value: line},
		})

		if code, text, failed := reply.Error(); failed {
			b.logger().Warn("source unavailable for break",
				"app_id", conn.AppID(),
				"file", file,
				"code", code,
				"message", text,
			)
			return
		}
		source, err := base64.StdEncoding.DecodeString(reply.Root.Text)
		if err != nil {
			b.logger().Warn("source listing is not base64, using it as is",
				"app_id", conn.AppID(),
				"error", err,
			)
			source = []byte(reply.Root.Text)
		}
		lines := SourceLines(string(source), begin, end)
		b.logger().Debug("source lines fetched", "app_id", conn.AppID(), "begin", begin, "count", len(lines))
		b.publish(conn, EventLog, []any{}, codec.OrderedMap{
			{Key: "appId", Value: appIDValue(conn)},
			{Key: "context", Value: NumberedLines(lines, begin)},
			{Key: "line", Value: line},
		})
	})
	if err != nil {
		b.logger().Error("requesting source failed", "app_id", conn.AppID(), "error", err)
	}
}

// handleStopping publishes the final status and closes the connection.
func (b *Bridge) handleStopping(conn *dbgp.Conn, message *dbgp.Message) {
	b.logger().Info("dbgp stopping, closing connection", "app_id", conn.AppID())
	meta := frameAttributes(message)
	meta.Set("appId", appIDValue(conn))
	b.publish(conn, EventXdebug, []any{}, meta)
	conn.Close()
}

// handleContext publishes the variables of one context_get response.
func (b *Bridge) handleContext(conn *dbgp.Conn, message *dbgp.Message) {
	if code, text, failed := message.Error(); failed {
		b.logger().Warn("context_get failed", "app_id", conn.AppID(), "code", code, "message", text)
		return
	}

	values := &debugvalue.Array{}
	for _, property := range message.Properties() {
		values.Set(debugvalue.PropertyName(property), debugvalue.Convert(property))
	}

	label := "context"
	switch message.Attr("context") {
	case contextGlobals:
		label = "globals"
		ArrangeGlobals(values)
	case contextClass:
		label = "class context"
	}

	b.publish(conn, EventLog, []any{label, values}, codec.OrderedMap{
		{Key: "appId", Value: appIDValue(conn)},
		{Key: "command", Value: message.Command()},
		{Key: "status", Value: message.Status()},
	})
}

// handleProperty publishes the value of one property_get or
// property_value response, tagged with its full name so the console
// can place it.
func (b *Bridge) handleProperty(conn *dbgp.Conn, message *dbgp.Message) {
	if code, text, failed := message.Error(); failed {
		b.logger().Warn(message.Command()+" failed", "app_id", conn.AppID(), "code", code, "message", text)
		return
	}
	properties := message.Properties()
	if len(properties) == 0 {
		b.logger().Debug(message.Command()+" response without property", "app_id", conn.AppID())
		return
	}
	property := properties[0]
	fullname := debugvalue.Fullname(property)
	b.logger().Debug(message.Command()+" response", "app_id", conn.AppID(), "fullname", fullname)

	b.publish(conn, EventXdebug, []any{debugvalue.Convert(property)}, codec.OrderedMap{
		{Key: "appId", Value: appIDValue(conn)},
		{Key: "command", Value: message.Command()},
		{Key: "fullname", Value: fullname},
	})
}
