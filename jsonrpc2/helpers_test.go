package jsonrpc2

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

type FruitService struct{}

func (f *FruitService) Apple() string {
	return "Apple"
}

func (f *FruitService) Banana() error {
	return nil
}

func (f *FruitService) Cherry() (string, error) {
	return "Cherry", nil
}

func (f *FruitService) Durian() error {
	return errors.New("durian failure")
}

type Pinger struct {
	PongService Service
}

func (f *Pinger) Ping() string {
	return "ping"
}

func (f *Pinger) PingPong() string {
	var pong string
	err := f.PongService.Call(context.Background(), &pong, "pong")
	if err != nil {
		return fmt.Sprintf("err: %s", err)
	}
	return "ping" + pong
}

type Ponger struct{}

func (b *Ponger) Pong() string {
	return "pong"
}

type Fib struct{}

func (f *Fib) Fibonacci(ctx context.Context, a int, b int, steps int) (int, error) {
	service, err := CtxService(ctx)
	if err != nil {
		return 0, err
	}
	a, b = b, a+b
	if steps <= 0 {
		return b, nil
	}
	if err := service.Call(ctx, &b, "fibonacci", a, b, steps-1); err != nil {
		return 0, err
	}
	return b, nil
}

type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type Calculator struct{}

func (Calculator) Add(a, b int) int {
	return a + b
}

func (Calculator) Sum(nums ...int) int {
	total := 0
	for _, n := range nums {
		total += n
	}
	return total
}

func (Calculator) Norm(p Point) int {
	return p.X*p.X + p.Y*p.Y
}

// Shift moves p right by dx.
func (Calculator) Shift(p Point, dx int) Point {
	return Point{X: p.X + dx, Y: p.Y}
}

func (Calculator) Year(t time.Time) int {
	return t.Year()
}

func (Calculator) Panic() string {
	panic("calculator on fire")
}

// recordingTransport is a Transport whose sent messages are recorded instead
// of delivered. Inbound messages are injected with deliver.
type recordingTransport struct {
	Listeners

	mu   sync.Mutex
	sent []*Message
	fail error
}

func (t *recordingTransport) Send(ctx context.Context, msg *Message) error {
	t.mu.Lock()
	if t.fail != nil {
		t.mu.Unlock()
		return t.fail
	}
	t.sent = append(t.sent, msg)
	t.mu.Unlock()
	return nil
}

func (t *recordingTransport) deliver(raw string) {
	var msg Message
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		panic(err)
	}
	t.Dispatch(&msg)
}

func (t *recordingTransport) Sent() []*Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*Message(nil), t.sent...)
}

// waitDone fails the test if f does not settle in time.
func waitDone(t *testing.T, f *Future) {
	t.Helper()
	select {
	case <-f.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("future %s did not settle", f.ID())
	}
}

func assertEqualJSON(t *testing.T, a, b interface{}, format string, args ...interface{}) {
	t.Helper()

	aa, err := json.Marshal(a)
	if err != nil {
		t.Fatal(err)
	}
	bb, err := json.Marshal(b)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(aa, bb) {
		prefix := fmt.Sprintf(format, args...)
		t.Errorf(prefix+"\n   got: %q\n  want: %q", aa, bb)
	}
}
