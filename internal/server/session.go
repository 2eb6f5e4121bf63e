package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"chartflow/internal/market"
	"chartflow/internal/models"
	"chartflow/logger"
)

// closeCodeUnknownInstrument is sent when a client opens a stream for an
// instrument outside the configured set.
const closeCodeUnknownInstrument = 4004

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// session is one websocket client bound to one instrument topic. Its
// lifecycle: validate, subscribe, replay the current snapshot, then stream
// until the client leaves, the write path fails or the server shuts down.
type session struct {
	id         string
	instrument string
	conn       *websocket.Conn
	sub        *hubSubscription
	store      *market.Store
	server     *Server
	log        *logger.Entry
}

// hubSubscription narrows the hub subscriber surface the session needs.
type hubSubscription struct {
	frames <-chan []byte
	cancel func()
}

func (s *Server) handleWebsocket(c *gin.Context) {
	instrument := strings.ToUpper(c.Param("instrument"))

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.WithComponent("session").WithError(err).Warn("websocket upgrade failed")
		return
	}

	store, ok := s.market.Lookup(instrument)
	if !ok {
		// Reject inside the websocket protocol so browser clients see the
		// close code. No data frame is ever sent.
		msg := websocket.FormatCloseMessage(closeCodeUnknownInstrument, "unknown instrument")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		_ = conn.Close()
		return
	}

	sub := s.hub.Subscribe(instrument)
	sess := &session{
		id:         uuid.NewString(),
		instrument: instrument,
		conn:       conn,
		sub: &hubSubscription{
			frames: sub.C,
			cancel: func() { s.hub.Unsubscribe(sub) },
		},
		store:  store,
		server: s,
	}
	sess.log = s.log.WithComponent("session").WithFields(logger.Fields{
		"session":    sess.id,
		"instrument": instrument,
	})
	sess.run()
}

func (s *session) run() {
	logger.IncrementSessionOpened()
	s.log.Info("session connected")

	defer func() {
		s.sub.cancel()
		_ = s.conn.Close()
		logger.IncrementSessionClosed()
		s.log.Info("session closed")
	}()

	// The client never sends data frames, but the read loop is required to
	// process close handshakes and surface disconnects.
	clientGone := make(chan struct{})
	go func() {
		defer close(clientGone)
		for {
			if _, _, err := s.conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := s.replay(); err != nil {
		s.log.WithError(err).Warn("replay write failed")
		return
	}

	s.stream(clientGone)
}

// replay sends the current store snapshot so a fresh client renders without
// waiting for live updates: book, funding, the most recent trades and the
// most recent liquidations, each oldest first.
func (s *session) replay() error {
	if err := s.writeFrame(models.FrameTypeBook, s.store.Book()); err != nil {
		return err
	}
	if err := s.writeFrame(models.FrameTypeFunding, s.store.Funding()); err != nil {
		return err
	}
	for _, trade := range s.store.RecentTrades(s.server.cfg.Session.ReplayTrades) {
		if err := s.writeFrame(models.FrameTypeTrade, trade); err != nil {
			return err
		}
	}
	for _, liq := range s.store.RecentLiquidations(s.server.cfg.Session.ReplayLiquidations) {
		if err := s.writeFrame(models.FrameTypeLiquidation, liq); err != nil {
			return err
		}
	}
	return nil
}

// stream forwards hub frames until the session ends. A keepalive ping goes
// out whenever no frame arrived for a full quiet interval.
func (s *session) stream(clientGone <-chan struct{}) {
	keepAlive := s.server.cfg.Session.KeepAlive
	timer := time.NewTimer(keepAlive)
	defer timer.Stop()

	for {
		select {
		case <-s.server.ctx.Done():
			return
		case <-clientGone:
			return
		case frame, ok := <-s.sub.frames:
			if !ok {
				// Evicted by the hub as a slow consumer.
				s.log.Warn("session evicted, closing")
				return
			}
			if err := s.writeRaw(frame); err != nil {
				s.log.WithError(err).Debug("stream write failed")
				return
			}
		case <-timer.C:
			if err := s.writeFrame(models.FrameTypePing, nil); err != nil {
				s.log.WithError(err).Debug("keepalive write failed")
				return
			}
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(keepAlive)
	}
}

func (s *session) writeFrame(frameType string, data interface{}) error {
	frame, err := json.Marshal(models.Envelope{Type: frameType, Data: data})
	if err != nil {
		return err
	}
	return s.writeRaw(frame)
}

func (s *session) writeRaw(frame []byte) error {
	deadline := time.Now().Add(s.server.cfg.Session.WriteTimeout)
	if err := s.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, frame)
}
