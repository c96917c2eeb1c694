package http

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"live-test-service/internal/app"
	"live-test-service/internal/domain"
)

type WSHandler struct {
	service  *app.Service
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.Service) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	QuestionIndex int    `json:"questionIndex"`
	Option        string `json:"option"`
	TimeRemaining int    `json:"timeRemaining"`
}

type questionPayload struct {
	Index int `json:"index"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
	Kind    string `json:"kind"`
}

type joinedPayload struct {
	Participant domain.Participant  `json:"participant"`
	Session     app.SessionSnapshot `json:"session"`
}

// errorKind maps the rejection taxonomy onto wire labels so clients can
// tell "retry with fresh state" from "this request is just invalid".
func errorKind(err error) string {
	switch {
	case domain.IsValidation(err):
		return "validation"
	case domain.IsPrecondition(err):
		return "precondition"
	case domain.IsNotFound(err):
		return "not_found"
	case domain.IsSchedule(err):
		return "schedule"
	case domain.IsUnauthorized(err):
		return "unauthorized"
	default:
		return "fatal"
	}
}

// ServeWS upgrades the request and wires the connection into the session
// engine, as admin or participant depending on the role query parameter.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	role := r.URL.Query().Get("role")
	name := r.URL.Query().Get("name")
	if code == "" || (role != "admin" && role != "participant") || (role == "participant" && name == "") {
		http.Error(w, "missing or invalid code, role, or name", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	connRef := uuid.NewString()
	ctx := r.Context()

	if role == "admin" {
		h.serveAdmin(ctx, conn, code, connRef)
		return
	}
	h.serveParticipant(ctx, conn, code, name, connRef)
}

func (h *WSHandler) serveParticipant(ctx context.Context, conn *websocket.Conn, code, name, connRef string) {
	participant, session, err := h.service.Join(ctx, code, name, connRef)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error(), Kind: errorKind(err)}})
		return
	}

	snap, err := h.service.GetSnapshot(ctx, code)
	if err != nil {
		snap = app.SessionSnapshot{Code: session.Code}
	}

	events, cancel := h.service.Broker().Subscribe(code, false)
	defer cancel()
	defer func() {
		leaveCtx, leaveCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer leaveCancel()
		if err := h.service.Leave(leaveCtx, code, connRef); err != nil {
			log.Printf("leave after disconnect failed for %s: %v", code, err)
		}
	}()

	send, done := h.startPumps(conn, events)
	defer done()

	send <- outboundMessage[any]{Type: "joined", Payload: joinedPayload{Participant: participant, Session: snap}}

	identity := connRef
	if session.Mode == domain.ModeOffline {
		identity = participant.Name
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			return
		}
		switch inbound.Type {
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid answer payload", Kind: "validation"}}
				continue
			}
			result, err := h.service.SubmitAnswer(ctx, code, identity, payload.QuestionIndex, payload.Option, payload.TimeRemaining)
			if err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error(), Kind: errorKind(err)}}
				continue
			}
			send <- outboundMessage[any]{Type: "answerResult", Payload: result}
		case "finish":
			updated, err := h.service.FinishParticipant(ctx, code, participant.Name)
			if err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error(), Kind: errorKind(err)}}
				continue
			}
			send <- outboundMessage[any]{Type: "finished", Payload: updated.Standings}
		case "snapshot":
			snap, err := h.service.GetSnapshot(ctx, code)
			if err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error(), Kind: errorKind(err)}}
				continue
			}
			send <- outboundMessage[any]{Type: "snapshot", Payload: snap}
		default:
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type", Kind: "validation"}}
		}
	}
}

func (h *WSHandler) serveAdmin(ctx context.Context, conn *websocket.Conn, code, connRef string) {
	if _, err := h.service.RegisterAdmin(ctx, code, connRef); err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error(), Kind: errorKind(err)}})
		return
	}

	events, cancel := h.service.Broker().Subscribe(code, true)
	defer cancel()

	send, done := h.startPumps(conn, events)
	defer done()

	snap, _ := h.service.GetSnapshot(ctx, code)
	send <- outboundMessage[any]{Type: "registered", Payload: snap}

	reply := func(sess domain.Session, err error) {
		if err != nil {
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error(), Kind: errorKind(err)}}
			return
		}
		snap, serr := h.service.GetSnapshot(ctx, sess.Code)
		if serr != nil {
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: serr.Error(), Kind: errorKind(serr)}}
			return
		}
		send <- outboundMessage[any]{Type: "snapshot", Payload: snap}
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			return
		}
		switch inbound.Type {
		case "start_session":
			reply(h.service.StartSession(ctx, code, connRef))
		case "start_question":
			var payload questionPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid question payload", Kind: "validation"}}
				continue
			}
			reply(h.service.StartQuestion(ctx, code, payload.Index, connRef))
		case "end_question":
			reply(h.service.EndQuestion(ctx, code, connRef))
		case "complete_session":
			reply(h.service.CompleteSession(ctx, code, connRef))
		case "cancel_session":
			reply(h.service.CancelSession(ctx, code, connRef))
		case "get_tally":
			var payload questionPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid tally payload", Kind: "validation"}}
				continue
			}
			tally, err := h.service.QuestionTally(ctx, code, payload.Index)
			if err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error(), Kind: errorKind(err)}}
				continue
			}
			send <- outboundMessage[any]{Type: "tally", Payload: tally}
		default:
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type", Kind: "validation"}}
		}
	}
}

// startPumps runs a single writer goroutine plus an event pump, so only
// one goroutine ever writes to the connection. The returned done func
// must be called once the read loop exits.
func (h *WSHandler) startPumps(conn *websocket.Conn, events <-chan app.Event) (chan<- outboundMessage[any], func()) {
	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	eventsDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	go func() {
		defer close(eventsDone)
		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: string(ev.Type), Payload: ev.Payload}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	done := func() {
		close(closeSignals)
		<-eventsDone
		close(send)
		<-writerDone
	}
	return send, done
}
