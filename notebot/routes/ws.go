package routes

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"notebot/notebot/config"
	"notebot/notebot/controllers"
	"notebot/notebot/middlewares"
	"notebot/notebot/utils/logging"
)

// socketRequest is the first frame a websocket client sends.
type socketRequest struct {
	Token   string `json:"token"`
	Command string `json:"command"` // note, search or analyze
	Text    string `json:"text"`
}

// socketFrame is sent for every status line and once more with the outcome.
type socketFrame struct {
	Status  string               `json:"status,omitempty"`
	Result  string               `json:"result,omitempty"`
	Receipt *controllers.Receipt `json:"receipt,omitempty"`
	Error   string               `json:"error,omitempty"`
	Done    bool                 `json:"done"`
}

func writeFrame(ctx context.Context, conn *websocket.Conn, f socketFrame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}

func notesSocket(ctrl *controllers.NotesController, cfg config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusInternalError, "internal error")

		ctx := logging.WithTraceID(r.Context())
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		if typ != websocket.MessageText {
			conn.Close(websocket.StatusUnsupportedData, "unsupported data")
			return
		}
		var input socketRequest
		if err := json.Unmarshal(data, &input); err != nil {
			writeFrame(ctx, conn, socketFrame{Error: "invalid json", Done: true})
			conn.Close(websocket.StatusUnsupportedData, "invalid json")
			return
		}

		userID, err := middlewares.ParseToken(cfg.JWTSecret, input.Token)
		if err != nil {
			writeFrame(ctx, conn, socketFrame{Error: "invalid token", Done: true})
			conn.Close(websocket.StatusPolicyViolation, "invalid token")
			return
		}

		status := func(text string) {
			if err := writeFrame(ctx, conn, socketFrame{Status: text}); err != nil {
				logging.AppLogger.Warn("websocket status write failed", zap.Error(err))
			}
		}

		final := runCommand(ctx, ctrl, userID, input, status)
		if err := writeFrame(ctx, conn, final); err != nil {
			return
		}
		conn.Close(websocket.StatusNormalClosure, "")
	}
}

func runCommand(ctx context.Context, ctrl *controllers.NotesController, userID int64, input socketRequest, status controllers.StatusFunc) socketFrame {
	var (
		result string
		err    error
	)
	switch input.Command {
	case "note":
		var receipt controllers.Receipt
		receipt, err = ctrl.AddTextNote(ctx, userID, input.Text, status)
		if err == nil {
			return socketFrame{Result: receipt.Message(), Receipt: &receipt, Done: true}
		}
	case "search":
		result, err = ctrl.Search(ctx, userID, input.Text, status)
	case "analyze":
		result, err = ctrl.Analyze(ctx, userID, status)
	default:
		return socketFrame{Error: "unknown command " + input.Command, Done: true}
	}
	if errors.Is(err, controllers.ErrEmptyNote) {
		return socketFrame{Error: controllers.EmptyNoteMessage, Done: true}
	}
	if err != nil {
		logging.ErrorLogger.Error("websocket command failed", zap.String("command", input.Command), zap.Error(err))
		return socketFrame{Error: controllers.ErrorMessage, Done: true}
	}
	return socketFrame{Result: result, Done: true}
}
