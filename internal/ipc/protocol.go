// Package ipc serves the request/response bridge a desktop UI uses to drive
// transcriptor. Frames are newline-delimited JSON on stdin/stdout:
//
//	-> {"id":1,"channel":"pdf-page-count","params":{"filePath":"a.pdf"}}
//	<- {"id":1,"success":true,"pageCount":12}
//
// Every call resolves to a success, failure or cancel result; handler errors
// and panics never escape the bridge. Frames without an id are events pushed
// by the host.
package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Result is the JSON object returned for one call.
type Result map[string]any

func Success(payload map[string]any) Result {
	out := Result{"success": true}
	for k, v := range payload {
		out[k] = v
	}
	return out
}

func Failure(err error) Result {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return Result{"success": false, "error": msg}
}

// Canceled is returned when the user dismissed the file dialog that would have
// supplied a path.
func Canceled() Result {
	return Result{"canceled": true}
}

func (r Result) Succeeded() bool {
	ok, _ := r["success"].(bool)
	return ok
}

func (r Result) Canceled() bool {
	ok, _ := r["canceled"].(bool)
	return ok
}

type Request struct {
	ID      json.RawMessage `json:"id,omitempty"`
	Channel string          `json:"channel"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Handler serves one channel. params is the raw "params" member, possibly empty.
type Handler func(ctx context.Context, params json.RawMessage) Result

const maxFrameSize = 256 << 20

type Server struct {
	handlers map[string]Handler
	logger   *zap.Logger

	writeMu sync.Mutex
	out     *json.Encoder
}

func NewServer(logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{handlers: map[string]Handler{}, logger: logger.Named("ipc")}
}

func (s *Server) Handle(channel string, h Handler) {
	s.handlers[channel] = h
}

// Channels lists the registered channel names in order.
func (s *Server) Channels() []string {
	names := make([]string, 0, len(s.handlers))
	for name := range s.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Call dispatches one request in-process.
func (s *Server) Call(ctx context.Context, channel string, params json.RawMessage) (result Result) {
	h, ok := s.handlers[channel]
	if !ok {
		return Failure(fmt.Errorf("unknown channel %q", channel))
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("handler panicked", zap.String("channel", channel), zap.Any("panic", r), zap.Stack("stack"))
			result = Failure(fmt.Errorf("internal error in %s: %v", channel, r))
		}
	}()

	result = h(ctx, params)
	if result == nil {
		result = Failure(errors.New("handler returned no result"))
	}
	return result
}

// Serve reads requests from r until EOF or ctx is done and writes responses
// to w. Requests run concurrently; responses carry the request id.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	s.writeMu.Lock()
	s.out = json.NewEncoder(w)
	s.writeMu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	defer wg.Wait()

	lines := make(chan []byte)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 64<<10), maxFrameSize)
		for scanner.Scan() {
			line := append([]byte(nil), scanner.Bytes()...)
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-readErr:
					return err
				default:
					return nil
				}
			}
			if len(line) == 0 {
				continue
			}

			var req Request
			if err := json.Unmarshal(line, &req); err != nil {
				s.logger.Warn("malformed request", zap.Error(err))
				s.write(nil, Failure(fmt.Errorf("malformed request: %w", err)))
				continue
			}

			wg.Add(1)
			go func() {
				defer wg.Done()
				s.logger.Debug("request", zap.String("channel", req.Channel))
				s.write(req.ID, s.Call(ctx, req.Channel, req.Params))
			}()
		}
	}
}

// Notify pushes an event frame to the UI. It is a no-op before Serve starts.
func (s *Server) Notify(event string, payload map[string]any) {
	frame := Result{"event": event}
	for k, v := range payload {
		frame[k] = v
	}
	s.write(nil, frame)
}

func (s *Server) write(id json.RawMessage, result Result) {
	frame := make(map[string]any, len(result)+1)
	for k, v := range result {
		frame[k] = v
	}
	if len(id) > 0 {
		frame["id"] = id
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.out == nil {
		return
	}
	if err := s.out.Encode(frame); err != nil {
		s.logger.Warn("write response failed", zap.Error(err))
	}
}

// decode unmarshals params into v. Empty params leave v untouched.
func decode(params json.RawMessage, v any) error {
	if len(params) == 0 || string(params) == "null" {
		return nil
	}
	if err := json.Unmarshal(params, v); err != nil {
		return fmt.Errorf("invalid params: %w", err)
	}
	return nil
}
