package realtime

// ChannelHandler receives channel transitions and inbound events. The
// channel guarantees at most one Connected per open cycle and no callbacks
// after Close returns.
type ChannelHandler interface {
	HandleConnected()
	HandleDisconnected(reason error)
	HandleErrored(reason error)
	HandleEvent(topic Topic, payload []byte)
}

// Channel is one duplex message connection to the realtime endpoint. The
// supervisor is its single owner; nothing else may call Open or Close.
type Channel interface {
	// Open begins an asynchronous connection attempt. Calling while already
	// open or opening is a no-op.
	Open(endpoint string, creds Credentials)

	// Close abandons any in-flight attempt and tears down the connection.
	// No handler callback is delivered after it returns.
	Close()

	// Send writes one named message. It is a silent no-op while the channel
	// is not connected; callers gate on supervisor status instead.
	Send(topic Topic, payload []byte)
}

// ChannelFactory builds the channel a supervisor will own.
type ChannelFactory func(handler ChannelHandler) Channel
