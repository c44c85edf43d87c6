package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/OpenPeeDeeP/xdg"
	"github.com/alexcesaro/log"
	"github.com/alexcesaro/log/golog"
	flags "github.com/jessevdk/go-flags"
	"github.com/vipnode/birpc/jsonrpc2"
	"github.com/vipnode/birpc/jsonrpc2/natsrpc"
	"github.com/vipnode/birpc/jsonrpc2/ws/gorilla"
)

// Version of the binary, assigned during build.
var Version string = "dev"

// Options contains the flag options
type Options struct {
	Verbose []bool `short:"v" long:"verbose" description:"Show verbose logging." no-ini:"true"`
	Version bool   `long:"version" description:"Print version and exit." no-ini:"true"`
	Config  string `long:"config" description:"INI file with default options. (default: $XDG_CONFIG_HOME/birpc/config.ini)" no-ini:"true"`

	Serve struct {
		Bind           string        `long:"bind" description:"Address and port to listen on." default:"127.0.0.1:8080"`
		WebSocket      string        `long:"websocket" description:"Websocket implementation." choice:"gorilla" choice:"gobwas" default:"gorilla"`
		NATS           string        `long:"nats" description:"NATS server URL to also serve on, such as nats://localhost:4222"`
		Subject        string        `long:"subject" description:"NATS subject prefix." default:"birpc"`
		MaxInflight    int64         `long:"max-inflight" description:"Inbound calls handled at once per connection, 0 is unlimited."`
		PendingLimit   int           `long:"pending-limit" description:"Outbound calls kept waiting per connection before the oldest are discarded." default:"50"`
		PendingDiscard int           `long:"pending-discard" description:"Oldest outbound calls discarded when the pending limit is reached." default:"10"`
		CallTimeout    time.Duration `long:"call-timeout" description:"How long a method waits for a callback to the peer." default:"30s"`
		DebugRPC       bool          `long:"debug-rpc" description:"Log every RPC message."`
	} `command:"serve" description:"Serve a demo capability set over HTTP, websockets and NATS."`

	Call struct {
		Endpoint
		Named bool `long:"named" description:"Send the single argument as named params."`
		Args  struct {
			Method string   `positional-arg-name:"method" required:"yes"`
			Params []string `positional-arg-name:"params" description:"JSON values, anything else is sent as a string."`
		} `positional-args:"yes"`
	} `command:"call" description:"Call a method and print its result."`

	Notify struct {
		Endpoint
		Args struct {
			Method string   `positional-arg-name:"method" required:"yes"`
			Params []string `positional-arg-name:"params" description:"JSON values, anything else is sent as a string."`
		} `positional-args:"yes"`
	} `command:"notify" description:"Send a notification. No result is ever returned."`
}

// Endpoint is the set of options shared by commands that dial a server.
type Endpoint struct {
	URL       string        `long:"url" description:"Server URL: ws://, wss://, http://, https:// or nats://" default:"ws://127.0.0.1:8080/ws"`
	WebSocket string        `long:"websocket" description:"Websocket implementation." choice:"gorilla" choice:"gobwas" default:"gorilla"`
	Subject   string        `long:"subject" description:"NATS subject prefix." default:"birpc"`
	Timeout   time.Duration `long:"timeout" description:"Give up after this long." default:"10s"`
}

const callUsage = `Examples:
* Add two numbers:
  $ birpc call add 2 3

* Named params, echoed back:
  $ birpc call --named echo '{"x": 3, "y": 4}'

* Let the server call back:
  $ birpc call ping

* Over NATS:
  $ birpc call --url nats://localhost:4222 echo hello
`

var logLevels = []log.Level{
	log.Warning,
	log.Info,
	log.Debug,
}

// findConfig returns the config path to load: the --config flag if set,
// otherwise the XDG config file if it exists.
func findConfig(args []string) string {
	var pre struct {
		Config string `long:"config"`
	}
	parser := flags.NewParser(&pre, flags.IgnoreUnknown)
	if _, err := parser.ParseArgs(args); err == nil && pre.Config != "" {
		return pre.Config
	}
	return xdg.New("vipnode", "birpc").QueryConfig("config.ini")
}

func subcommand(cmd string, options Options) error {
	switch cmd {
	case "serve":
		return runServe(options)
	case "call":
		return runCall(options)
	case "notify":
		return runNotify(options)
	}
	return fmt.Errorf("unknown command: %s", cmd)
}

func main() {
	options := Options{}
	parser := flags.NewParser(&options, flags.Default)

	if path := findConfig(os.Args[1:]); path != "" {
		if err := flags.NewIniParser(parser).ParseFile(path); err != nil {
			exit(1, "failed to load config %s: %s\n", path, err)
		}
	}

	p, err := parser.Parse()
	if err != nil {
		if p == nil {
			fmt.Println(err)
		}
		if flagErr, ok := err.(*flags.Error); ok && flagErr.Type == flags.ErrHelp && parser.Active != nil {
			// Print additional usage help when run with --help
			switch parser.Active.Name {
			case "call":
				exit(0, callUsage)
			}
		}
		return
	}

	if options.Version {
		fmt.Println(Version)
		os.Exit(0)
	}

	// Figure out the log level
	numVerbose := len(options.Verbose)
	if numVerbose >= len(logLevels) {
		numVerbose = len(logLevels) - 1
	}

	logLevel := logLevels[numVerbose]
	logWriter := os.Stderr

	SetLogger(golog.New(logWriter, logLevel))
	if logLevel == log.Debug {
		// Enable logging from subpackages
		jsonrpc2.SetLogger(logWriter)
		natsrpc.SetLogger(logWriter)
		gorilla.SetLogger(logWriter)
	}

	cmd := parser.Active.Name
	err = subcommand(cmd, options)
	if err == nil {
		return
	}

	if err == io.EOF {
		exit(3, "Connection closed.\n")
	}

	var netErr net.Error
	var rpcErr *jsonrpc2.ErrResponse
	var explained ErrExplain
	switch {
	case errors.As(err, &explained):
		// All good.
	case errors.Is(err, context.DeadlineExceeded):
		err = ErrExplain{err, `No response in time. The method may still be running on the server; try a longer --timeout.`}
	case errors.As(err, &rpcErr):
		err = explainRPCError(rpcErr)
	case errors.As(err, &netErr):
		err = ErrExplain{err, `Disconnected from server unexpectedly. Could be a connectivity issue or the server is down. Try again?`}
	default:
		err = ErrExplain{err, fmt.Sprintf(`Error type %T is missing an explanation. Please open an issue at https://github.com/vipnode/birpc`, err)}
	}

	exit(2, "%s failed: %s\n", cmd, err)
}

func explainRPCError(err *jsonrpc2.ErrResponse) error {
	switch err.Code {
	case jsonrpc2.ErrCodeMethodNotFound:
		return ErrExplain{err, `The server does not expose this method. List the methods it has with: birpc call rpc.methods`}
	case jsonrpc2.ErrCodeInvalidParams:
		return ErrExplain{err, `The method was called with the wrong arguments. Arguments are parsed as JSON when possible; quote strings that look like numbers, such as '"42"'.`}
	}
	explanation := jsonrpc2.ErrorCodeMeaning(err.Code)
	if explanation == "" {
		explanation = "The method failed on the server."
	}
	if len(err.Data) > 0 {
		explanation = fmt.Sprintf("%s Data: %s", explanation, err.Data)
	}
	return ErrExplain{err, explanation}
}

func exit(code int, format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format, args...)
	os.Exit(code)
}

// ErrExplain annotates an error with an explanation.
type ErrExplain struct {
	Cause       error
	Explanation string
}

func (err ErrExplain) Error() string {
	return fmt.Sprintf("%s\n -> %s", err.Cause, err.Explanation)
}

func (err ErrExplain) Unwrap() error {
	return err.Cause
}
