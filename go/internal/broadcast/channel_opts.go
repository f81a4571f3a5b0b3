package broadcast

import "time"

type ChannelOpt func(*Channel)

// WithStartTimeout sets how long to wait for the embedded server
func WithStartTimeout(d time.Duration) ChannelOpt {
	return func(c *Channel) {
		c.startupTimeout = d
	}
}

// WithServerName names the embedded server and its client connection
func WithServerName(name string) ChannelOpt {
	return func(c *Channel) {
		c.serverName = name
	}
}
