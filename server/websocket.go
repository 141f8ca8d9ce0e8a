package server

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/s0up4200/cinescope/browse"
	"github.com/s0up4200/cinescope/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
	genresTimeout  = 5 * time.Second
)

// Client message types
const (
	MessageQuery = "query"
	MessageGenre = "genre"
	MessageMore  = "more"
	MessageRetry = "retry"
)

// Server message types
const (
	MessageState = "state"
	MessageError = "error"
)

// ClientMessage is sent by the browser to drive its browse session.
type ClientMessage struct {
	Type  string `json:"type"`
	Value string `json:"value,omitempty"`
}

// ServerMessage carries either a state snapshot or a rejected command.
type ServerMessage struct {
	Type  string        `json:"type"`
	State *browse.State `json:"state,omitempty"`
	Error string        `json:"error,omitempty"`
}

// session is one browser tab: a connection and the list controller it drives.
type session struct {
	conn       *websocket.Conn
	controller *browse.Controller
	logger     zerolog.Logger

	// latest holds the newest unsent state; older ones are overwritten.
	latest chan browse.State
	errs   chan string
}

func (s *Server) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if slices.Contains(s.opts.CORSOrigins, "*") || slices.Contains(s.opts.CORSOrigins, origin) {
		return true
	}
	u, err := url.Parse(origin)
	return err == nil && u.Host == r.Host
}

func (s *Server) browseSession(c *gin.Context) {
	up := s.upgrader()
	conn, err := up.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Debug().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	// the session outlives the upgrade request
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := s.logger.With().Str("request_id", c.GetString(ctxRequestID)).Logger()
	opts := []browse.Option{browse.WithDebounce(s.opts.Debounce)}
	genresCtx, genresCancel := context.WithTimeout(ctx, genresTimeout)
	if genres, err := s.catalog.GetGenres(genresCtx); err == nil {
		opts = append(opts, browse.WithGenres(genres))
	} else {
		logger.Warn().Err(err).Msg("Failed to load genres for browse session")
	}
	genresCancel()

	sess := &session{
		conn:       conn,
		controller: browse.NewController(s.catalog, logger, opts...),
		logger:     logger,
		latest:     make(chan browse.State, 1),
		errs:       make(chan string, 8),
	}

	metrics.WebSocketSessions.Inc()
	defer metrics.WebSocketSessions.Dec()
	logger.Debug().Msg("Browse session opened")

	unsubscribe := sess.controller.Subscribe(sess.push)
	defer unsubscribe()

	if err := sess.controller.Mount(ctx); err != nil {
		logger.Error().Err(err).Msg("Failed to mount browse session")
		_ = conn.Close()
		return
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		sess.writePump(ctx)
	}()

	sess.readPump()
	cancel()
	<-done
	sess.controller.Close()
	logger.Debug().Msg("Browse session closed")
}

// push replaces any unsent state with state.
func (s *session) push(state browse.State) {
	for {
		select {
		case s.latest <- state:
			return
		default:
		}
		select {
		case <-s.latest:
		default:
		}
	}
}

func (s *session) readPump() {
	defer func() {
		_ = s.conn.Close()
	}()

	s.conn.SetReadLimit(maxMessageSize)
	if err := s.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		s.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn().Err(err).Msg("Unexpected websocket close")
			}
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.reject("malformed message")
			continue
		}
		if err := s.apply(msg); err != nil {
			s.reject(err.Error())
		}
	}
}

// apply routes one client command to the controller. Picking a genre clears
// the query and typing a query clears the genre.
func (s *session) apply(msg ClientMessage) error {
	c := s.controller
	switch msg.Type {
	case MessageQuery:
		return c.Search(msg.Value)
	case MessageGenre:
		if c.Snapshot().Filter.Query != "" {
			if err := c.SetQuery(""); err != nil {
				return err
			}
		}
		return c.SetGenre(msg.Value)
	case MessageMore:
		return c.LoadMore()
	case MessageRetry:
		return c.Retry()
	default:
		return errors.New("unknown message type: " + msg.Type)
	}
}

func (s *session) reject(message string) {
	select {
	case s.errs <- message:
	default:
		s.logger.Debug().Str("error", message).Msg("Dropped websocket error message")
	}
}

func (s *session) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()

	for {
		var msg ServerMessage
		select {
		case <-ctx.Done():
			_ = s.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		case state := <-s.latest:
			msg = ServerMessage{Type: MessageState, State: &state}
		case message := <-s.errs:
			msg = ServerMessage{Type: MessageError, Error: message}
		case <-ticker.C:
			if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
			continue
		}

		if err := s.write(msg); err != nil {
			s.logger.Debug().Err(err).Msg("Failed to write websocket message")
			return
		}
	}
}

func (s *session) write(msg ServerMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, data)
}
