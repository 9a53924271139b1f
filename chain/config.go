package chain

// Config is the configuration of the chain merger
type Config struct {
	// DBPath path of the sqlite file holding batch headers and canonical elements
	DBPath string `mapstructure:"DBPath"`
	// ForceInclusionPeriodSeconds is how long, in seconds, the sequencer may leave a queue element pending
	ForceInclusionPeriodSeconds uint64 `mapstructure:"ForceInclusionPeriodSeconds"`
	// ForceInclusionPeriodBlocks is how long, in blocks, the sequencer may leave a queue element pending
	ForceInclusionPeriodBlocks uint64 `mapstructure:"ForceInclusionPeriodBlocks"`
}
