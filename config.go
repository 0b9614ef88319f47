package litepcie

import (
	"fmt"

	"github.com/mithro/litepcie-go/internal/protocol"
	"github.com/mithro/litepcie-go/internal/wire"
	"github.com/mithro/litepcie-go/logging"
)

// Config contains all configuration options of a Link.
// The zero value of every field means "use the default".
type Config struct {
	// SkipInterval is the minimum number of symbols between two skip
	// ordered sets. It defaults to 1180.
	SkipInterval int
	// SkipIntervalMax is the maximum number of symbols between two skip
	// ordered sets. It defaults to 1538. The actual interval is drawn
	// uniformly from [SkipInterval, SkipIntervalMax].
	SkipIntervalMax int
	// RetryBufferCapacity is the retry buffer capacity in raw packet
	// bytes. A full buffer stalls the sender; nothing is dropped.
	// It defaults to 4096.
	RetryBufferCapacity int
	// AckDelay is the number of ticks the receiver accumulates deliveries
	// before sending a cumulative ACK. It defaults to 16.
	AckDelay int
	// AckTimeout is the replay timer in ticks: how long the oldest
	// unacknowledged packet may wait before the sender replays the buffer.
	// It defaults to 1024.
	AckTimeout int
	// MaxRetryCount is the number of replays without forward progress
	// before the link is declared down. It defaults to 4.
	MaxRetryCount int
	// LinkNumber and LaneNumber are embedded in the transmitted training
	// sequences.
	LinkNumber uint8
	LaneNumber uint8
	// NFTS is the fast training sequence count advertised in training
	// sequences. It defaults to 0xff.
	NFTS uint8
	// RateID is the rate identifier advertised in training sequences and
	// driven on the PIPE rate select. It defaults to 0x02 (2.5 GT/s).
	RateID uint8
	// Tracer receives all link events.
	Tracer logging.LinkTracer
}

// Clone clones the Config.
func (c *Config) Clone() *Config {
	copied := *c
	return &copied
}

// Validate checks that all options are in their valid ranges. It doesn't
// apply defaults: a zero value is always valid.
func (c *Config) Validate() error {
	if c.SkipInterval < 0 || c.SkipIntervalMax < 0 {
		return fmt.Errorf("invalid skip interval: must not be negative")
	}
	if c.SkipIntervalMax > 0 && c.SkipInterval > c.SkipIntervalMax {
		return fmt.Errorf("invalid skip interval: minimum %d exceeds maximum %d", c.SkipInterval, c.SkipIntervalMax)
	}
	if c.RetryBufferCapacity < 0 {
		return fmt.Errorf("invalid retry buffer capacity: must not be negative")
	}
	if c.RetryBufferCapacity > 0 && c.RetryBufferCapacity < wire.PacketOverhead+1 {
		return fmt.Errorf("invalid retry buffer capacity: must hold at least one packet (%d bytes)", wire.PacketOverhead+1)
	}
	if c.AckDelay < 0 {
		return fmt.Errorf("invalid ACK delay: must not be negative")
	}
	if c.AckTimeout < 0 {
		return fmt.Errorf("invalid ACK timeout: must not be negative")
	}
	if c.MaxRetryCount < 0 {
		return fmt.Errorf("invalid maximum retry count: must not be negative")
	}
	if ackDelay, ackTimeout := c.AckDelay, c.AckTimeout; ackDelay > 0 && ackTimeout > 0 && ackDelay >= ackTimeout {
		return fmt.Errorf("invalid ACK delay: %d must be smaller than the ACK timeout %d", ackDelay, ackTimeout)
	}
	return nil
}

// populateConfig populates fields in the Config with config defaults, if the
// corresponding field is not set.
func populateConfig(config *Config) *Config {
	if config == nil {
		config = &Config{}
	} else {
		config = config.Clone()
	}
	if config.SkipInterval == 0 {
		config.SkipInterval = protocol.DefaultSkipIntervalMin
	}
	if config.SkipIntervalMax == 0 {
		config.SkipIntervalMax = protocol.DefaultSkipIntervalMax
	}
	if config.SkipIntervalMax < config.SkipInterval {
		// only possible when SkipInterval was set above the default maximum
		config.SkipIntervalMax = config.SkipInterval
	}
	if config.RetryBufferCapacity == 0 {
		config.RetryBufferCapacity = int(protocol.DefaultRetryBufferCapacity)
	}
	if config.AckDelay == 0 {
		config.AckDelay = protocol.DefaultAckDelayTicks
	}
	if config.AckTimeout == 0 {
		config.AckTimeout = protocol.DefaultAckTimeoutTicks
	}
	if config.MaxRetryCount == 0 {
		config.MaxRetryCount = protocol.DefaultMaxRetryCount
	}
	if config.NFTS == 0 {
		config.NFTS = 0xff
	}
	if config.RateID == 0 {
		config.RateID = 0x02
	}
	if config.Tracer == nil {
		config.Tracer = logging.NullTracer
	}
	return config
}
