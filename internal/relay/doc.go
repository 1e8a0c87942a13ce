// Package relay copies a byte stream from a Source to a Sink while keeping
// an exact account of every byte in a stats.Ledger.
//
// # Engine
//
// Engine runs a small state machine on the calling goroutine:
//
//	AwaitRead -> Writing -> AwaitRead ...
//	AwaitRead -> Draining -> Done     (end of input with data still buffered)
//	Writing   -> Done                 (output closed; the remainder is counted as lost)
//
// Every readiness wait is bounded by the poll timeout, half the report interval,
// so periodic reports keep their cadence while either end is idle. Partial writes
// advance an offset into the transfer buffer and are retried before any new input
// is read, which keeps output order identical to input order.
//
// A shutdown request stops new reads at the next iteration; bytes already read
// are still written before the engine finishes.
//
// # Endpoints
//
// FileEndpoint drives a descriptor with poll(2) and raw reads and writes.
// PumpSource hands data from a blocking producer (a TCP, websocket or HTTP
// response body) to the engine through a channel. ConnSink, WebSocketSink and
// HTTPSink write to network peers.
// OpenSource and OpenSink pick the endpoint from a target string:
//
//	"-"                    standard input or output
//	/path/to/file          a file
//	tcp://host:port        a TCP connection
//	ws://host/path         a websocket connection (wss:// for TLS)
//	http://host/path       GET as input, streaming POST as output (https:// for TLS)
//
// # Mock Implementation
//
// MockSource and MockSink script chunked reads, short writes and injected errors
// for deterministic tests of the engine.
//
// # Usage Example
//
//	src := relay.NewMockSource(data)
//	dst := relay.NewMockSink()
//	dst.SetMaxPerWrite(100)
//
//	engine, err := relay.NewEngine(&relay.Options{
//	    Source: src,
//	    Sink:   dst,
//	    Ledger: stats.New(time.Now(), false),
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result := engine.Run(context.Background())
//	// result.ExitCode == 0 and dst.GetWrittenData() equals data
package relay
