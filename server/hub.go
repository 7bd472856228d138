// Copyright (C) 2008-2018 by Nicolas Piganeau and the TS2 TEAM
// (See AUTHORS file)
//
// This program is free software; you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation; either version 2 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program; if not, write to the
// Free Software Foundation, Inc.,
// 59 Temple Place - Suite 330, Boston, MA  02111-1307, USA.

package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Request is one inbound websocket command: act on Object with Action,
// carrying arbitrary JSON Params, tagged with an ID the response echoes
// back so the client can correlate it.
type Request struct {
	ID     string          `json:"id"`
	Object string          `json:"object"`
	Action string          `json:"action"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Response answers a Request (Status "ok"/"error"), or carries an
// unsolicited push (ID empty) such as a live detection-run broadcast.
type Response struct {
	ID      string          `json:"id"`
	Status  string          `json:"status"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// RawJSON adapts an already-marshaled []byte for use as Response.Data.
func RawJSON(b []byte) json.RawMessage { return json.RawMessage(b) }

// NewResponse wraps data as a successful response to req id.
func NewResponse(id string, data json.RawMessage) Response {
	return Response{ID: id, Status: "ok", Data: data}
}

// NewOkResponse returns a successful response carrying only a message.
func NewOkResponse(id, message string) Response {
	return Response{ID: id, Status: "ok", Message: message}
}

// NewErrorResponse returns a failed response carrying err's message.
func NewErrorResponse(id string, err error) Response {
	return Response{ID: id, Status: "error", Message: err.Error()}
}

// NewPush wraps data as an unsolicited broadcast (no request to answer).
func NewPush(data json.RawMessage) Response {
	return Response{Status: "push", Data: data}
}

// hubObject handles Requests addressed to one object name ("engine",
// "suggestions", ...), pushing its Response onto conn's pushChan.
type hubObject interface {
	dispatch(h *Hub, req Request, conn *connection)
}

// Hub owns the set of live websocket connections and the object registry
// Requests are dispatched against. One process-wide Hub is created by Run.
type Hub struct {
	objects     map[string]hubObject
	connections map[*connection]bool
	register    chan *connection
	unregister  chan *connection
	broadcast   chan Response

	mu sync.RWMutex
}

func newHub() *Hub {
	return &Hub{
		objects:     make(map[string]hubObject),
		connections: make(map[*connection]bool),
		register:    make(chan *connection),
		unregister:  make(chan *connection),
		broadcast:   make(chan Response, 256),
	}
}

// run is the Hub's single-goroutine event loop: connection bookkeeping and
// broadcast fan-out. hubUp is signaled once the loop is ready to accept
// connections, mirroring the teacher's MaxHubStartupTime boot guard.
func (h *Hub) run(hubUp chan bool) {
	hubUp <- true
	for {
		select {
		case conn := <-h.register:
			h.mu.Lock()
			h.connections[conn] = true
			h.mu.Unlock()
		case conn := <-h.unregister:
			h.mu.Lock()
			if h.connections[conn] {
				delete(h.connections, conn)
				close(conn.pushChan)
			}
			h.mu.Unlock()
		case resp := <-h.broadcast:
			h.mu.RLock()
			for conn := range h.connections {
				select {
				case conn.pushChan <- resp:
				default:
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Broadcast queues resp for delivery to every connected client.
func (h *Hub) Broadcast(resp Response) {
	select {
	case h.broadcast <- resp:
	default:
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// connection wraps one client's websocket, with its own outbound buffer so
// a slow client can't stall the Hub's broadcast loop.
type connection struct {
	ws       *websocket.Conn
	pushChan chan Response
	hub      *Hub
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

func (c *connection) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.ws.Close()
	}()
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		var req Request
		if err := json.Unmarshal(message, &req); err != nil {
			c.pushChan <- NewErrorResponse("", err)
			continue
		}
		recordHubCommand(req.Object, req.Action)
		obj, ok := c.hub.objects[req.Object]
		if !ok {
			c.pushChan <- NewErrorResponse(req.ID, errUnknownObject(req.Object))
			continue
		}
		obj.dispatch(c.hub, req, c)
	}
}

func (c *connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()
	for {
		select {
		case resp, ok := <-c.pushChan:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteJSON(resp); err != nil {
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// serveWs upgrades r to a websocket connection and registers it on hub.
func serveWs(h *Hub, w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	conn := &connection{ws: ws, pushChan: make(chan Response, 64), hub: h}
	h.register <- conn

	go conn.writePump()
	conn.readPump()
}

type unknownObjectError string

func (e unknownObjectError) Error() string { return "unknown object: " + string(e) }

func errUnknownObject(object string) error { return unknownObjectError(object) }
