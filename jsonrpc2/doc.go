/*
	Package jsonrpc2 implements bidirectional JSONRPC 2.0. Both ends of a
	connection can call each other over the same message stream.

	Message is the wire envelope. IsRequest, IsResultResponse and
	IsErrorResponse classify a decoded message by its fields alone; a message
	that matches none or more than one of them is dropped as noise.

	Transport moves messages. It sends one message at a time and notifies
	listeners of every inbound message. CodecTransport adapts any Codec (IO
	stream, websocket) into a Transport, Pipe returns a connected in-process
	pair.

	Server is an RPC method registry. Given a receiver, it will expose
	callable methods under lowercased names.

	Remote is the correlation engine: it owns a Transport, a Server and a
	table of pending outbound calls. Go sends a request and returns a Future
	which resolves when the response with the same ID arrives. Call is the
	synchronous version. Inbound requests are dispatched to the Server and
	answered, unless they are notifications, which are never answered.

	Pending calls never time out on their own. Wait on a Future with a
	context, or use Remote.CallTimeout, to bound how long a caller waits.

	Forwarder turns method calls into outbound requests. Bind fills a struct
	of func fields with stubs, so a remote capability set can be used like a
	local one.

	When a Remote receives a call, it includes a context which contains a
	service value that can be acquired with CtxService(ctx). The service can be
	used to send calls back to the caller.
*/
package jsonrpc2
