package jsonrpc2

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"sync"
	"unicode"
)

// Server contains the method registry: the capability table an endpoint
// exposes to its peer. It is safe for concurrent use.
type Server struct {
	mu       sync.RWMutex
	registry map[string]Method
}

func (s *Server) add(name string, m Method) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.registry == nil {
		s.registry = map[string]Method{}
	}
	s.registry[name] = m
}

// Register adds valid methods from the receiver to the registry with the given
// prefix. Method names are lowercased.
func (s *Server) Register(prefix string, receiver interface{}) error {
	methods, err := Methods(receiver)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	for name, m := range methods {
		buf.WriteString(prefix)
		buf.WriteRune(unicode.ToLower(rune(name[0])))
		buf.WriteString(name[1:])
		s.add(buf.String(), m)
		buf.Reset()
	}
	return nil
}

// RegisterMethod adds a single method of receiver under the given name.
func (s *Server) RegisterMethod(name string, receiver interface{}, methodName string) error {
	m, err := MethodByName(receiver, methodName)
	if err != nil {
		return err
	}
	s.add(name, m)
	return nil
}

// RegisterFunc adds a func under the given name. The func may take a leading
// context.Context and return (), (T), (error) or (T, error).
func (s *Server) RegisterFunc(name string, fn interface{}) error {
	m, err := NewMethod(fn)
	if err != nil {
		return fmt.Errorf("func %s: %s", name, err)
	}
	s.add(name, m)
	return nil
}

// Lookup returns the method registered under name.
func (s *Server) Lookup(name string) (Method, bool) {
	if s == nil {
		return Method{}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.registry[name]
	return m, ok
}

// Names returns the sorted names of all registered methods.
func (s *Server) Names() []string {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.registry))
	for name := range s.registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Handle invokes the method named by req and returns its outcome. An unknown
// method is a ErrCodeMethodNotFound error. The response is returned even for
// notifications; it is up to the caller not to send it.
func (s *Server) Handle(ctx context.Context, req *Request) Response {
	m, ok := s.Lookup(req.Method)
	if !ok {
		return NewErrorResponse(req.ID, ErrCodeMethodNotFound, fmt.Sprintf("method not found: %s", req.Method), nil)
	}
	res, err := m.Call(ctx, req.Params)
	if err != nil {
		return &ErrorResponse{ID: req.ID, Error: asErrResponse(err)}
	}
	resp, err := NewResultResponse(req.ID, res)
	if err != nil {
		return NewErrorResponse(req.ID, ErrCodeServer, fmt.Sprintf("failed to encode response: %s", err), nil)
	}
	return resp
}
