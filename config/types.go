// Package config holds the landgov node configuration, stored as JSON under
// <home>/config/landgov_config.json.
package config

// Config is the top-level landgov configuration
type Config struct {
	// Log Config
	LogLevel   int    `json:"log_level"`   // e.g., 0 = debug, 1 = info, etc.
	LogFormat  string `json:"log_format"`  // "json" or "console"
	LogSampler bool   `json:"log_sampler"` // if true, samples logs (e.g., 1 in 5)

	// Node Config
	NodeHome string `json:"node_home"` // Node home directory (default: ~/.landgov)

	// Query Server Config
	QueryServerPort int `json:"query_server_port"` // Port for HTTP query server (default: 8080)

	// Ledger (external Governor contract) configuration
	Ledger LedgerConfig `json:"ledger"`

	// Governance defaults applied to new proposals unless overridden
	Governance GovernanceConfig `json:"governance"`

	// Content publisher configuration
	ContentStore ContentStoreConfig `json:"content_store"`

	// Notification webhook (empty disables webhook delivery)
	NotifyWebhookURL string `json:"notify_webhook_url"`
}

// LedgerConfig describes the external ledger the engine mirrors
type LedgerConfig struct {
	RPCURL            string `json:"rpc_url"`             // EVM JSON-RPC endpoint
	ChainID           int64  `json:"chain_id"`            // Numeric EVM chain ID
	GovernorAddress   string `json:"governor_address"`    // Governor contract address
	VotesTokenAddress string `json:"votes_token_address"` // ERC20Votes token address (total supply snapshots)
	OperatorKeyHex    string `json:"operator_key_hex"`    // Hex private key used to sign submissions
	ConfirmTimeoutSeconds int `json:"confirm_timeout_seconds"` // Bound on confirmation waits (default: 120)
	ConfirmPollSeconds    int `json:"confirm_poll_seconds"`    // Receipt polling interval (default: 2)
}

// GovernanceConfig carries per-proposal defaults
type GovernanceConfig struct {
	VotingPeriodSeconds  int64   `json:"voting_period_seconds"`  // Voting window length (default: 604800, one week)
	TimelockDelaySeconds int64   `json:"timelock_delay_seconds"` // Queue-to-execute delay (default: 172800, two days)
	QuorumRequired       string  `json:"quorum_required"`        // Decimal string, arbitrary precision
	ThresholdPercent     float64 `json:"threshold_percent"`      // e.g. 50.0 meaning ">50%"
	SweepIntervalSeconds int     `json:"sweep_interval_seconds"` // Reconciliation sweep interval (default: 30)
	SweepBatchSize       int     `json:"sweep_batch_size"`       // Max proposals per sweep scan (default: 100)
}

// ContentStoreConfig configures the content-addressed body publisher
type ContentStoreConfig struct {
	APIURL         string `json:"api_url"`         // IPFS-compatible HTTP API, e.g. http://localhost:5001
	TimeoutSeconds int    `json:"timeout_seconds"` // Publish timeout (default: 30)
}
