package subscriber

// Recorder is the instrumentation surface a Subscriber calls into. It has no
// dependency on any metrics library; internal/metrics.Metrics satisfies it
// structurally, and callers that don't care about observability just leave
// it nil, which every call site guards against.
type Recorder interface {
	FrameReceived(name, kind string)
	FrameSent(name, kind string)
	DeliveryDepth(name string, depth int)
	FreePoolDepth(name string, depth int)
	Disconnected(name string)
	FetchTimeout(name string)
}
