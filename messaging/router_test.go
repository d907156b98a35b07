// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/websocket"
)

// fakeRouter is a minimal WAMP broker: it joins one realm, records
// publications and lets tests push events to subscribers.
type fakeRouter struct {
	t      *testing.T
	server *httptest.Server
	realm  string

	// rejectTopic, when set, is refused with not_authorized for both
	// SUBSCRIBE and acknowledged PUBLISH.
	rejectTopic string

	published  chan []any
	subscribed chan string
	goodbyes   chan string

	mu       sync.Mutex
	nextID   uint64
	sessions []*routerSession
}

type routerSession struct {
	conn          *websocket.Conn
	serializer    serializer
	writeMu       sync.Mutex
	subscriptions map[string]uint64
}

func newFakeRouter(t *testing.T, realm string) *fakeRouter {
	t.Helper()
	router := &fakeRouter{
		t:          t,
		realm:      realm,
		published:  make(chan []any, 32),
		subscribed: make(chan string, 32),
		goodbyes:   make(chan string, 8),
	}
	upgrader := websocket.Upgrader{Subprotocols: []string{"wamp.2.json", "wamp.2.cbor"}}
	router.server = httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		conn, err := upgrader.Upgrade(writer, request, nil)
		if err != nil {
			return
		}
		router.serve(conn)
	}))
	t.Cleanup(router.server.Close)
	return router
}

func (r *fakeRouter) url() string {
	return "ws" + strings.TrimPrefix(r.server.URL, "http") + "/"
}

func (r *fakeRouter) id() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	return r.nextID
}

func (r *fakeRouter) serve(conn *websocket.Conn) {
	defer conn.Close()
	session := &routerSession{conn: conn, subscriptions: make(map[string]uint64)}
	if conn.Subprotocol() == "wamp.2.cbor" {
		session.serializer = cborSerializer{}
	} else {
		session.serializer = jsonSerializer{}
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		message, err := session.serializer.decode(data)
		if err != nil {
			r.t.Errorf("router: undecodable message: %v", err)
			return
		}
		code, _ := ID(message[0])
		switch code {
		case codeHello:
			if message[1] != r.realm {
				session.write([]any{codeAbort, map[string]any{}, ErrURINoSuchRealm})
				return
			}
			r.mu.Lock()
			r.sessions = append(r.sessions, session)
			r.mu.Unlock()
			session.write([]any{codeWelcome, r.id(), map[string]any{"roles": map[string]any{"broker": map[string]any{}}}})

		case codeSubscribe:
			requestID, _ := ID(message[1])
			topic := message[3].(string)
			if topic == r.rejectTopic {
				session.write([]any{codeError, codeSubscribe, requestID, map[string]any{}, ErrURINotAuthorized})
				continue
			}
			subscriptionID := r.id()
			r.mu.Lock()
			session.subscriptions[topic] = subscriptionID
			r.mu.Unlock()
			session.write([]any{codeSubscribed, requestID, subscriptionID})
			r.subscribed <- topic

		case codePublish:
			requestID, _ := ID(message[1])
			options := dict(message[2])
			topic := message[3].(string)
			acknowledge, _ := options["acknowledge"].(bool)
			if acknowledge && topic == r.rejectTopic {
				session.write([]any{codeError, codePublish, requestID, map[string]any{"message": "denied"}, ErrURINotAuthorized})
				continue
			}
			r.published <- message
			if acknowledge {
				session.write([]any{codePublished, requestID, r.id()})
			}

		case codeGoodbye:
			reason, _ := at(message, 2).(string)
			r.goodbyes <- reason
			session.write([]any{codeGoodbye, map[string]any{}, ErrURIGoodbyeAndOut})
			return
		}
	}
}

func (s *routerSession) write(message []any) {
	data, err := s.serializer.encode(message)
	if err != nil {
		panic(err)
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.conn.WriteMessage(s.serializer.frameType(), data)
}

// emit delivers an EVENT to every session subscribed to topic.
func (r *fakeRouter) emit(topic string, args []any) {
	r.mu.Lock()
	sessions := append([]*routerSession(nil), r.sessions...)
	r.mu.Unlock()
	publicationID := r.id()
	for _, session := range sessions {
		r.mu.Lock()
		subscriptionID, ok := session.subscriptions[topic]
		r.mu.Unlock()
		if ok {
			session.write([]any{codeEvent, subscriptionID, publicationID, map[string]any{}, args})
		}
	}
}

// dropAll closes every session's socket without a GOODBYE.
func (r *fakeRouter) dropAll() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = nil
	r.mu.Unlock()
	for _, session := range sessions {
		session.conn.Close()
	}
}
