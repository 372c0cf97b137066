package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/cleanbites/backend/internal/auth"
	"github.com/cleanbites/backend/internal/form"
	"github.com/cleanbites/backend/internal/models"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// wsMessage is the envelope of every websocket frame in both directions.
type wsMessage struct {
	Type    string          `json:"type"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
}

// foodMessage is the data of a save_food message. Image is base64.
type foodMessage struct {
	UserID        string `json:"userId"`
	ProductName   string `json:"productName"`
	Ingredients   string `json:"ingredients"`
	NutritionInfo string `json:"nutritionInfo"`
	Image         string `json:"image"`
	ImageType     string `json:"imageType"`
}

type userMessage struct {
	UserID string `json:"userId"`
	Limit  int    `json:"limit"`
}

// stateMessage reports the form state after every transition.
type stateMessage struct {
	State form.State `json:"state"`
	Error string     `json:"error,omitempty"`
}

// wsSession is one websocket client working through the form.
type wsSession struct {
	id      string
	conn    *websocket.Conn
	machine *form.Machine
	userID  string
	// bound is set when userID comes from a verified token.
	bound bool
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("WebSocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	sess := &wsSession{
		id:      uuid.New().String(),
		conn:    conn,
		machine: form.NewMachine(),
	}
	sess.userID, sess.bound = auth.UserIDFromContext(r.Context())

	s.clients.Store(sess.id, conn)
	defer s.clients.Delete(sess.id)
	s.log.Info("WebSocket client connected", "client_id", sess.id, "user_id", sess.userID)

	ctx := r.Context()
	s.sendState(sess)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warn("Error reading message", "client_id", sess.id, "error", err)
			}
			break
		}

		var msg wsMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.sendError(conn, "Invalid message format")
			continue
		}
		s.handleWebSocketMessage(ctx, sess, msg)
	}
	s.log.Info("WebSocket client disconnected", "client_id", sess.id)
}

func (s *Server) handleWebSocketMessage(ctx context.Context, sess *wsSession, msg wsMessage) {
	switch msg.Type {
	case "save_food":
		s.handleSaveFood(ctx, sess, msg.Data)
	case "analyze":
		s.handleAnalyzeMessage(ctx, sess, msg.Data)
	case "edit":
		s.fire(sess, form.Edit)
	case "dismiss":
		s.fire(sess, form.Dismiss)
	case "reset":
		s.fire(sess, form.Reset)
	case "get_history":
		s.handleGetHistory(ctx, sess, msg.Data)
	case "":
		s.sendError(sess.conn, "Invalid message format")
	default:
		s.sendError(sess.conn, "Unknown message type")
	}
}

// fire applies ev and reports the new state, or the rejection.
func (s *Server) fire(sess *wsSession, ev form.Event) bool {
	if _, err := sess.machine.Fire(ev); err != nil {
		s.sendError(sess.conn, err.Error())
		return false
	}
	s.sendState(sess)
	return true
}

func (s *Server) fail(sess *wsSession, message string) {
	if _, err := sess.machine.FailWith(message); err != nil {
		s.log.Error("Unexpected form state", "client_id", sess.id, "error", err)
	}
	s.sendState(sess)
	s.sendError(sess.conn, message)
}

// resolveUser picks the session user. A verified user cannot be replaced by
// one named in a message.
func (s *Server) resolveUser(sess *wsSession, claimed string) (string, bool) {
	claimed = strings.TrimSpace(claimed)
	switch {
	case sess.bound:
		if claimed != "" && claimed != sess.userID {
			s.sendError(sess.conn, "Forbidden: userId does not match the authenticated user")
			return "", false
		}
	case claimed != "":
		sess.userID = claimed
	}
	if sess.userID == "" {
		s.sendError(sess.conn, "User ID is missing")
		return "", false
	}
	return sess.userID, true
}

// beginEditing brings an idle or failed form to a state that accepts Submit.
func (s *Server) beginEditing(sess *wsSession) bool {
	if sess.machine.State() == form.Failed && !s.fire(sess, form.Dismiss) {
		return false
	}
	if sess.machine.State() == form.Idle && !s.fire(sess, form.Edit) {
		return false
	}
	return true
}

func (s *Server) handleSaveFood(ctx context.Context, sess *wsSession, data json.RawMessage) {
	var in foodMessage
	if err := json.Unmarshal(data, &in); err != nil {
		s.sendError(sess.conn, "Invalid food details")
		return
	}
	userID, ok := s.resolveUser(sess, in.UserID)
	if !ok {
		return
	}

	sub := &models.FoodSubmission{
		UserID:        userID,
		ProductName:   in.ProductName,
		Ingredients:   in.Ingredients,
		NutritionInfo: in.NutritionInfo,
	}
	if in.Image != "" {
		image, err := base64.StdEncoding.DecodeString(in.Image)
		if err != nil {
			s.sendError(sess.conn, "Invalid image format")
			return
		}
		sub.InfoImage = image
		sub.ImageType = in.ImageType
		if !strings.HasPrefix(sub.ImageType, "image/") {
			sub.ImageType = http.DetectContentType(image)
		}
	}

	if !s.beginEditing(sess) {
		return
	}
	// A rejected form keeps its state and never reaches the model.
	if err := form.ValidateFood(*sub); err != nil {
		var verrs form.ValidationErrors
		errors.As(err, &verrs)
		s.sendMessage(sess.conn, "validation_error", verrs)
		return
	}
	if !s.fire(sess, form.Submit) {
		return
	}

	if err := s.submitFood(ctx, sub); err != nil {
		s.log.Error("Failed to save food details", "client_id", sess.id, "error", err)
		s.fail(sess, "Failed to save food details")
		return
	}
	if s.fire(sess, form.Succeed) {
		s.sendMessage(sess.conn, "food_saved", sub)
	}
}

func (s *Server) handleAnalyzeMessage(ctx context.Context, sess *wsSession, data json.RawMessage) {
	var in userMessage
	if len(data) > 0 {
		if err := json.Unmarshal(data, &in); err != nil {
			s.sendError(sess.conn, "Invalid message format")
			return
		}
	}
	userID, ok := s.resolveUser(sess, in.UserID)
	if !ok {
		return
	}
	if !s.beginEditing(sess) || !s.fire(sess, form.Submit) {
		return
	}

	rec, err := s.runAnalysis(ctx, userID)
	if err != nil {
		_, message := analysisFailure(err, userID)
		s.log.Error("Analysis failed", "client_id", sess.id, "user_id", userID, "error", err)
		s.fail(sess, message)
		return
	}
	resp, err := newAnalysisResponse(rec)
	if err != nil {
		s.log.Error("Stored analysis unreadable", "id", rec.ID, "error", err)
		s.fail(sess, "Failed to process Gemini call")
		return
	}
	if s.fire(sess, form.Succeed) {
		s.sendMessage(sess.conn, "analysis", resp)
	}
}

func (s *Server) handleGetHistory(ctx context.Context, sess *wsSession, data json.RawMessage) {
	var in userMessage
	if len(data) > 0 {
		if err := json.Unmarshal(data, &in); err != nil {
			s.sendError(sess.conn, "Invalid message format")
			return
		}
	}
	userID, ok := s.resolveUser(sess, in.UserID)
	if !ok {
		return
	}

	resp, err := s.history(ctx, userID, ClampHistoryLimit(in.Limit))
	if err != nil {
		s.log.Error("Error retrieving history", "user_id", userID, "error", err)
		s.sendError(sess.conn, "Failed to retrieve history")
		return
	}
	s.sendMessage(sess.conn, "history", resp)
}

func (s *Server) sendState(sess *wsSession) {
	s.sendMessage(sess.conn, "state", stateMessage{
		State: sess.machine.State(),
		Error: sess.machine.Err(),
	})
}

func (s *Server) sendMessage(conn *websocket.Conn, messageType string, data any) {
	msg := map[string]any{
		"type": messageType,
		"data": data,
	}
	if err := conn.WriteJSON(msg); err != nil {
		s.log.Warn("Error sending message", "type", messageType, "error", err)
		return
	}
	s.log.Debug("Message sent", "type", messageType)
}

func (s *Server) sendError(conn *websocket.Conn, message string) {
	msg := wsMessage{Type: "error", Message: message}
	if err := conn.WriteJSON(msg); err != nil {
		s.log.Warn("Error sending error message", "error", err)
	}
}

// closeClients tells every connected client that the server is going away.
func (s *Server) closeClients() {
	deadline := time.Now().Add(time.Second)
	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	s.clients.Range(func(key, value any) bool {
		if conn, ok := value.(*websocket.Conn); ok {
			_ = conn.WriteControl(websocket.CloseMessage, msg, deadline)
			conn.Close()
		}
		s.clients.Delete(key)
		return true
	})
}
