package config

// This values doesnt have a default value because depend on the
// environment / deployment
const DefaultMandatoryVars = `
# L1URL is the L1 RPC provider used by the ambient clock when Clock.Mode = "l1"
L1URL = "http://localhost:8545"

# SequencerAddr is the only address allowed to append sequencer batches
SequencerAddr = "0x0000000000000000000000000000000000000000"
`

// This doesn't belong to config, but are the vars used
// to avoid repetition in config-files
const DefaultVars = `
PathRWData = "/tmp/ctc"
`

// DefaultValues is the default configuration
const DefaultValues = `
# This is the default configuration for the ctc node

# Log configuration
[Log]
  # Environment is the environment where the node is running
  Environment = "development" # "production" or "development"
  # Level is the log level
  Level = "info"
  # Outputs are the outputs where the logs will be written
  Outputs = ["stderr"]

[Registry]
  # Sequencer is the address resolved for the "OVM_Sequencer" name
  Sequencer = "{{SequencerAddr}}"
  # MinRollupTxGas is the minimum gas limit of an enqueued transaction
  MinRollupTxGas = 100000
  # MaxRollupTxSize is the maximum payload size, in bytes, of an enqueued transaction
  MaxRollupTxSize = 50000
  # L2GasDiscountDivisor: an enqueue must burn at least GasLimit / L2GasDiscountDivisor
  L2GasDiscountDivisor = 32

[Clock]
  # Mode is "l1" (latest L1 header) or "local" (wall clock plus derived block height)
  Mode = "l1"
  L1URL = "{{L1URL}}"
  # Finality of the L1 header used on "l1" mode: "latest", "safe" or "finalized"
  Finality = "latest"
  # GenesisTimestamp and BlockTime are only used on "local" mode
  GenesisTimestamp = 0
  BlockTime = "12s"

[Queue]
  DBPath = "{{PathRWData}}/queue.sqlite"

[Chain]
  DBPath = "{{PathRWData}}/chain.sqlite"
  # 30 days
  ForceInclusionPeriodSeconds = 2592000
  # 30 days of 15s blocks
  ForceInclusionPeriodBlocks = 172800

[RPC]
  # Host defines the network adapter that will be used to serve the HTTP requests
  Host = "0.0.0.0"
  # Port defines the port to serve the endpoints via HTTP
  Port = 5576
  # ReadTimeout is the HTTP server read timeout
  # check net/http.server.ReadTimeout and net/http.server.ReadHeaderTimeout
  ReadTimeout = "2s"
  # WriteTimeout is the HTTP server write timeout
  # check net/http.server.WriteTimeout
  WriteTimeout = "2s"
  # MaxRequestsPerIPAndSecond defines how much requests a single IP can
  # send within a single second
  MaxRequestsPerIPAndSecond = 10
`
