package graphqlws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/hanpama/gqlgate/internal/eventbus"
	"github.com/hanpama/gqlgate/internal/events"
	"github.com/hanpama/gqlgate/internal/executor"
	"github.com/hanpama/gqlgate/internal/language"
	"github.com/hanpama/gqlgate/internal/reqid"
	"github.com/hanpama/gqlgate/internal/server"
)

// session is one WebSocket connection. The operation table is owned by the
// dispatch loop in run; other goroutines reach it only through completed.
type session struct {
	h      *Handler
	id     string
	conn   *websocket.Conn
	header http.Header
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	writeMu sync.Mutex
	wg      sync.WaitGroup

	frames    chan []byte
	readErr   chan error
	completed chan *operation

	ops        map[string]*operation
	acked      bool
	terminated bool
}

// operation is a registered start message whose results are being streamed.
type operation struct {
	id      string
	name    string
	opType  string
	query   string
	started time.Time

	ctx    context.Context
	cancel context.CancelFunc
	stream *executor.ResultStream
	done   chan struct{}

	// errs is written by the observer goroutine and read after done.
	errs []error
}

func newSession(h *Handler, conn *websocket.Conn, r *http.Request) *session {
	ctx, cancel := context.WithCancel(r.Context())
	stop := context.AfterFunc(h.ctx, cancel)
	id := uuid.NewString()
	s := &session{
		h:         h,
		id:        id,
		conn:      conn,
		header:    r.Header.Clone(),
		logger:    h.opt.Logger.With(slog.String("conn_id", id)),
		ctx:       ctx,
		cancel:    func() { stop(); cancel() },
		frames:    make(chan []byte),
		readErr:   make(chan error, 1),
		completed: make(chan *operation),
		ops:       make(map[string]*operation),
	}
	eventbus.Publish(ctx, h.opt.Events, events.ConnectionOpen{ConnectionID: id, Request: r})
	return s
}

func (s *session) run() {
	start := time.Now()
	s.logger.Debug("connection opened")

	s.wg.Add(1)
	go s.readLoop()

	err := s.loop()
	s.teardown()

	if err != nil && !isClosed(err) {
		s.logger.Debug("connection ended", "error", err)
	} else {
		err = nil
	}
	eventbus.Publish(context.Background(), s.h.opt.Events, events.ConnectionClose{
		ConnectionID: s.id,
		Duration:     time.Since(start),
		Err:          err,
	})
}

// readLoop feeds inbound messages to the dispatch loop. Reads are not bound
// to the session context: cancelling a read closes the connection, and
// teardown has to pick the close status itself.
func (s *session) readLoop() {
	defer s.wg.Done()
	for {
		_, data, err := s.conn.Read(context.Background())
		if err != nil {
			s.readErr <- err
			return
		}
		select {
		case s.frames <- data:
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *session) loop() error {
	for {
		select {
		case <-s.ctx.Done():
			return s.ctx.Err()
		case err := <-s.readErr:
			return err
		case op := <-s.completed:
			if s.release(op, events.StopReasonComplete) {
				s.send(frame{ID: op.id, Type: MsgComplete})
			}
		case data := <-s.frames:
			if !s.dispatch(data) {
				return nil
			}
		}
	}
}

// dispatch handles one inbound frame and reports whether the session should
// keep reading.
func (s *session) dispatch(data []byte) bool {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		s.send(frame{Type: MsgConnectionError, Payload: errorPayload{Message: "Invalid message: " + err.Error()}})
		return true
	}

	switch msg.Type {
	case MsgConnectionInit:
		s.send(frame{Type: MsgConnectionAck})
		if !s.acked {
			s.acked = true
			if ka := s.h.opt.KeepAlive; ka > 0 {
				s.wg.Add(1)
				go s.keepAlive(ka)
			}
		}
	case MsgConnectionTerminate:
		s.terminated = true
		return false
	case MsgStart:
		s.start(&msg)
	case MsgStop:
		if op, ok := s.ops[msg.ID]; ok {
			s.release(op, events.StopReasonClient)
		}
	default:
		s.logger.Debug("ignoring message", "type", msg.Type)
	}
	return true
}

func (s *session) start(msg *Message) {
	if msg.ID == "" {
		s.sendError("", "start message must have an id")
		return
	}
	if _, ok := s.ops[msg.ID]; ok {
		s.sendError(msg.ID, fmt.Sprintf("operation %q is already active", msg.ID))
		return
	}
	if len(msg.Payload) == 0 {
		s.sendError(msg.ID, "start message must have a payload")
		return
	}
	req, err := server.DecodeRequest(msg.Payload)
	if err != nil {
		s.sendError(msg.ID, err.Error())
		return
	}
	if req.Query == "" {
		s.sendError(msg.ID, "Must provide query string.")
		return
	}

	exec := s.h.exec
	doc, errs := exec.Parse(req.Query)
	if len(errs) > 0 {
		s.send(frame{ID: msg.ID, Type: MsgError, Payload: errs[0]})
		return
	}
	opDef := executor.GetOperation(doc, req.OperationName)
	if opDef == nil {
		if req.OperationName != "" {
			s.sendError(msg.ID, fmt.Sprintf("Unknown operation named %q.", req.OperationName))
		} else {
			s.sendError(msg.ID, "Must provide operation name if query contains multiple operations.")
		}
		return
	}

	ctx, cancel := context.WithCancel(s.ctx)
	ctx, rid := reqid.NewContext(ctx)
	ctx = server.ForwardHeaders(ctx, s.header, s.h.opt.MetadataHeaders, rid)
	ctx = server.BuildContext(ctx, s.h.opt.ContextBuilder, msg)

	var root any
	if s.h.opt.RootValue != nil {
		root = s.h.opt.RootValue(ctx, doc, req.Variables)
	}

	var stream *executor.ResultStream
	if opDef.Operation == language.Subscription {
		var failed *executor.ExecutionResult
		stream, failed = exec.Subscribe(ctx, doc, req.OperationName, req.Variables, root)
		if failed != nil {
			cancel()
			payload := executor.GraphQLError{Message: "subscription could not be started"}
			if len(failed.Errors) > 0 {
				payload = failed.Errors[0]
			}
			s.send(frame{ID: msg.ID, Type: MsgError, Payload: payload})
			return
		}
	} else {
		stream = executor.NewResultStream(ctx, func(ctx context.Context, emit func(*executor.ExecutionResult) bool) {
			emit(exec.ExecuteRequest(ctx, doc, req.OperationName, req.Variables, root))
		})
	}

	op := &operation{
		id:      msg.ID,
		name:    req.OperationName,
		opType:  string(opDef.Operation),
		query:   req.Query,
		started: time.Now(),
		ctx:     ctx,
		cancel:  cancel,
		stream:  stream,
		done:    make(chan struct{}),
	}
	s.ops[op.id] = op

	eventbus.Publish(ctx, s.h.opt.Events, events.OperationStart{
		ConnectionID:  s.id,
		OperationID:   op.id,
		OperationName: op.name,
		OperationType: op.opType,
	})
	eventbus.Publish(ctx, s.h.opt.Events, events.GraphQLStart{
		Transport:     events.TransportWebSocket,
		Query:         op.query,
		OperationName: op.name,
		OperationType: op.opType,
	})

	s.wg.Add(1)
	go s.observe(op)
}

// observe forwards the results of op to the client. Once the stream ends on
// its own, op is handed back to the dispatch loop, which releases it and
// sends complete.
func (s *session) observe(op *operation) {
	defer s.wg.Done()
	defer close(op.done)

	for res := range op.stream.Results() {
		if op.ctx.Err() != nil {
			return
		}
		op.errs = append(op.errs, server.ErrorValues(res.Errors)...)
		if err := s.send(frame{ID: op.id, Type: MsgData, Payload: dataPayload{Data: res.Data, Errors: res.Errors}}); err != nil {
			return
		}
	}
	if op.ctx.Err() != nil {
		return
	}
	select {
	case s.completed <- op:
	case <-op.ctx.Done():
	}
}

// release removes op from the table, cancels its stream and waits for its
// observer to exit. It reports false if op was no longer registered.
func (s *session) release(op *operation, reason string) bool {
	if s.ops[op.id] != op {
		return false
	}
	delete(s.ops, op.id)
	op.cancel()
	op.stream.Close()
	<-op.done

	d := time.Since(op.started)
	eventbus.Publish(op.ctx, s.h.opt.Events, events.GraphQLFinish{
		Transport:     events.TransportWebSocket,
		Query:         op.query,
		OperationName: op.name,
		OperationType: op.opType,
		Errors:        op.errs,
		Duration:      d,
	})
	eventbus.Publish(op.ctx, s.h.opt.Events, events.OperationStop{
		ConnectionID:  s.id,
		OperationID:   op.id,
		OperationType: op.opType,
		Reason:        reason,
		Duration:      d,
	})
	s.logger.Debug("operation released", "id", op.id, "reason", reason)
	return true
}

func (s *session) teardown() {
	for _, op := range s.ops {
		s.release(op, events.StopReasonTeardown)
	}
	s.cancel()
	switch {
	case s.terminated:
		s.closeConn(websocket.StatusNormalClosure, "")
	case s.h.ctx.Err() != nil:
		s.closeConn(websocket.StatusGoingAway, "server shutting down")
	default:
		_ = s.conn.CloseNow()
	}
	s.wg.Wait()
	s.logger.Debug("connection closed")
}

// closeConn runs the close handshake, giving up after closeHandshakeTimeout
// when the peer does not answer.
func (s *session) closeConn(code websocket.StatusCode, reason string) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.conn.Close(code, reason)
	}()
	select {
	case <-done:
	case <-time.After(closeHandshakeTimeout):
		_ = s.conn.CloseNow()
		<-done
	}
}

func (s *session) keepAlive(interval time.Duration) {
	defer s.wg.Done()
	if s.send(frame{Type: MsgKeepAlive}) != nil {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-t.C:
			if s.send(frame{Type: MsgKeepAlive}) != nil {
				return
			}
		}
	}
}

func (s *session) sendError(id, message string) {
	s.send(frame{ID: id, Type: MsgError, Payload: errorPayload{Message: message}})
}

// send writes f as a single text message. A failed write ends the session.
func (s *session) send(f frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		s.logger.Error("encode frame", "type", f.Type, "error", err)
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	ctx := s.ctx
	if d := s.h.opt.WriteTimeout; d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}
	if err := s.conn.Write(ctx, websocket.MessageText, data); err != nil {
		if s.ctx.Err() == nil {
			s.logger.Debug("write failed", "type", f.Type, "error", err)
		}
		s.cancel()
		return err
	}
	eventbus.Publish(s.ctx, s.h.opt.Events, events.FrameSent{ConnectionID: s.id, Type: f.Type})
	return nil
}

func isClosed(err error) bool {
	if errors.Is(err, context.Canceled) {
		return true
	}
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway, websocket.StatusNoStatusRcvd:
		return true
	}
	return false
}
