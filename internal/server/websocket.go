package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/franckalain/foodrescue/internal/wizard"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // the donor app is served from a different origin in development
	},
}

// photos arrive base64 encoded inside a JSON envelope
const maxMessageBytes = 16 << 20

type inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type photoData struct {
	Image string `json:"image"`
}

type stateData struct {
	wizard.Snapshot
	MinimumQuality float64 `json:"minimum_quality"`
}

// session is one connection driving one wizard
type session struct {
	id      string
	conn    *websocket.Conn
	wizard  *wizard.Wizard
	ctx     context.Context
	writeMu sync.Mutex
	srv     *Server
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxMessageBytes)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sess := &session{
		id:   uuid.New().String(),
		conn: conn,
		ctx:  ctx,
		srv:  s,
		wizard: wizard.New(s.verifier, s.store,
			wizard.WithMetrics(s.metrics),
			wizard.WithLogger(s.logger)),
	}
	s.metrics.WizardOpened()
	defer s.metrics.WizardClosed()

	log := s.logger.With("session", sess.id)
	log.Debug("wizard session opened")
	sess.sendState()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("error reading message", "error", err)
			}
			break
		}

		var msg inbound
		if err := json.Unmarshal(raw, &msg); err != nil {
			sess.sendError("Invalid message format", nil)
			continue
		}
		sess.handle(msg)
	}
	log.Debug("wizard session closed")
}

func (ss *session) handle(msg inbound) {
	w := ss.wizard
	switch msg.Type {
	case "state":
		ss.sendState()
	case "details":
		var form wizard.DetailsForm
		if err := json.Unmarshal(msg.Data, &form); err != nil {
			ss.sendError("Invalid details format", nil)
			return
		}
		if err := w.SubmitDetails(form); err != nil {
			ss.sendWizardError(err)
			return
		}
		ss.sendState()
	case "photo":
		ss.handlePhoto(msg.Data)
	case "back":
		if err := w.Back(); err != nil {
			ss.sendWizardError(err)
			return
		}
		ss.sendState()
	case "retry":
		if err := w.Retry(); err != nil {
			ss.sendWizardError(err)
			return
		}
		ss.sendState()
	case "reset":
		w.Reset()
		ss.sendState()
	case "publish":
		listing, err := w.Publish(ss.ctx)
		if err != nil {
			ss.sendWizardError(err)
			return
		}
		ss.send("published", listing)
		ss.sendState()
	case "get_listings":
		listings, err := ss.srv.store.Recent(ss.ctx, 20)
		if err != nil {
			ss.srv.logger.Error("failed to load listings", "error", err)
			ss.sendError("Failed to retrieve listings", nil)
			return
		}
		ss.send("listings", listings)
	case "get_impact":
		totals, err := ss.srv.store.ImpactTotals(ss.ctx)
		if err != nil {
			ss.srv.logger.Error("failed to sum impact", "error", err)
			ss.sendError("Failed to retrieve impact", nil)
			return
		}
		ss.send("impact", totals)
	default:
		ss.sendError("Unknown message type", nil)
	}
}

// handlePhoto starts the analysis and reports the review asynchronously so
// the donor can still navigate while the model works.
func (ss *session) handlePhoto(data json.RawMessage) {
	var p photoData
	if err := json.Unmarshal(data, &p); err != nil {
		ss.sendError("Invalid image data", nil)
		return
	}
	image, err := base64.StdEncoding.DecodeString(p.Image)
	if err != nil {
		ss.sendError("Invalid image format", nil)
		return
	}

	ticket, err := ss.wizard.BeginAnalysis(image)
	if err != nil {
		ss.sendWizardError(err)
		return
	}
	ss.sendState()

	go func() {
		st, err := ss.wizard.Run(ss.ctx, ticket)
		if errors.Is(err, wizard.ErrStaleResult) {
			ss.srv.logger.Debug("dropped result for abandoned photo", "ticket", ticket.ID)
			return
		}
		if err != nil {
			ss.srv.logger.Error("analysis run failed", "ticket", ticket.ID, "error", err)
			return
		}
		ss.send("review", ss.state(st))
	}()
}

func (ss *session) state(st wizard.Stage) stateData {
	return stateData{Snapshot: wizard.Describe(st), MinimumQuality: ss.srv.verifier.MinimumQuality()}
}

func (ss *session) sendState() {
	ss.send("state", ss.state(ss.wizard.Stage()))
}

func (ss *session) sendWizardError(err error) {
	var verr *wizard.ValidationError
	switch {
	case errors.As(err, &verr):
		ss.sendError("Invalid submission", verr.Fields)
	case errors.Is(err, wizard.ErrNotPublishable):
		ss.sendError("Quality is below the publish threshold; retry with a different photo", nil)
	case errors.Is(err, wizard.ErrAnalysisInFlight):
		ss.sendError("Analysis already in progress", nil)
	case errors.Is(err, wizard.ErrNoImage):
		ss.sendError("Photo is required", nil)
	case errors.Is(err, wizard.ErrInvalidTransition):
		ss.sendError("Action not available at this step", nil)
	default:
		ss.srv.logger.Error("wizard action failed", "session", ss.id, "error", err)
		ss.sendError("Action failed", nil)
	}
}

func (ss *session) send(messageType string, data any) {
	msg := map[string]any{
		"type": messageType,
		"data": data,
	}

	ss.writeMu.Lock()
	defer ss.writeMu.Unlock()
	if err := ss.conn.WriteJSON(msg); err != nil {
		ss.srv.logger.Debug("error sending message", "type", messageType, "error", err)
	}
}

func (ss *session) sendError(message string, fields map[string]string) {
	msg := map[string]any{
		"type":    "error",
		"message": message,
	}
	if len(fields) > 0 {
		msg["fields"] = fields
	}

	ss.writeMu.Lock()
	defer ss.writeMu.Unlock()
	if err := ss.conn.WriteJSON(msg); err != nil {
		ss.srv.logger.Debug("error sending error message", "error", err)
	}
}
