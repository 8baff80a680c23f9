package http

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"utbk-exam-service/internal/app"
	"utbk-exam-service/internal/domain"
)

type WSHandler struct {
	service  *app.ExamService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.ExamService) *WSHandler {
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

type redeemPayload struct {
	Code string `json:"code"`
}

type answerPayload struct {
	Option string `json:"option"`
}

type flagPayload struct {
	Flagged bool `json:"flagged"`
}

type gotoPayload struct {
	Question int `json:"question"`
}

type signalPayload struct {
	Kind string `json:"kind"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// presentPayload asks the client to enter or leave exclusive full-screen
// presentation mode; both directions are best-effort.
type presentPayload struct {
	Action string `json:"action"` // "request" or "release"
}

// ServeWS upgrades HTTP requests to websockets and wires them into the exam
// session use cases. One connection serves one candidate attempt.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	send := make(chan outboundMessage[any], 16)
	writerDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				// Closing the connection fails the read loop; draining
				// keeps senders from blocking on a dead writer.
				conn.Close()
				for range send {
				}
				return
			}
		}
	}()

	var (
		code        string
		session     *app.Session
		cancelWatch func()
		watchStop   chan struct{}
		watchDone   chan struct{}
	)
	stopWatch := func() {
		if cancelWatch == nil {
			return
		}
		close(watchStop)
		cancelWatch()
		<-watchDone
		cancelWatch = nil
	}
	defer func() {
		stopWatch()
		if code != "" {
			h.service.Reset(code)
		}
		close(send)
		<-writerDone
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			return
		}

		switch inbound.Type {
		case "redeem":
			var payload redeemPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- errMsg("invalid redeem payload")
				continue
			}
			if session != nil {
				send <- errMsg("a session is already running")
				continue
			}
			redeemed, err := h.service.Redeem(r.Context(), payload.Code)
			if err != nil {
				if !app.IsCredentialError(err) {
					log.Printf("redeem %q failed: %v", app.NormalizeCode(payload.Code), err)
				}
				send <- errMsg(err.Error())
				continue
			}
			session = redeemed
			code = session.Code()
			send <- outboundMessage[any]{Type: "present", Payload: presentPayload{Action: "request"}}
			updates, cancel := session.Subscribe()
			cancelWatch = cancel
			watchStop = make(chan struct{})
			watchDone = make(chan struct{})
			go func(updates <-chan app.Snapshot, stop <-chan struct{}, done chan<- struct{}) {
				defer close(done)
				for {
					select {
					case snap, ok := <-updates:
						if !ok {
							return
						}
						select {
						case send <- outboundMessage[any]{Type: "state", Payload: snap}:
						case <-stop:
							return
						}
					case <-stop:
						return
					}
				}
			}(updates, watchStop, watchDone)

		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- errMsg("invalid answer payload")
				continue
			}
			h.apply(send, session, func(s *app.Session) error { return s.Answer(payload.Option) })

		case "flag":
			var payload flagPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- errMsg("invalid flag payload")
				continue
			}
			h.apply(send, session, func(s *app.Session) error { return s.Flag(payload.Flagged) })

		case "goto":
			var payload gotoPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- errMsg("invalid goto payload")
				continue
			}
			h.apply(send, session, func(s *app.Session) error { return s.Select(payload.Question) })

		case "next":
			h.apply(send, session, (*app.Session).Next)

		case "prev":
			h.apply(send, session, (*app.Session).Prev)

		case "finishStage":
			h.apply(send, session, (*app.Session).FinishStage)

		case "signal":
			var payload signalPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- errMsg("invalid signal payload")
				continue
			}
			if session == nil {
				continue
			}
			warning, err := session.ReportSignal(payload.Kind)
			if err != nil {
				send <- errMsg(err.Error())
				continue
			}
			if warning != "" {
				send <- outboundMessage[any]{Type: "warning", Payload: errorPayload{Message: warning}}
			}

		case "reset":
			if session == nil {
				continue
			}
			stopWatch()
			h.service.Reset(code)
			session = nil
			code = ""
			send <- outboundMessage[any]{Type: "present", Payload: presentPayload{Action: "release"}}

		default:
			send <- errMsg("unsupported message type")
		}
	}
}

func (h *WSHandler) apply(send chan<- outboundMessage[any], session *app.Session, fn func(*app.Session) error) {
	if session == nil {
		send <- errMsg(domain.ErrSessionNotFound.Error())
		return
	}
	if err := fn(session); err != nil {
		send <- errMsg(err.Error())
	}
}

func errMsg(message string) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: message}}
}
