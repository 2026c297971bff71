package cliutil

import "time"

// ShutdownTimeout bounds how long the lifecycle stop hooks may take. Stopping waits for
// in flight requests and for the simulator to flush its state to disk.
const ShutdownTimeout = 30 * time.Second

// ConfigFileName is the default config file name created by config init.
const ConfigFileName = "devchain-config.toml"

// DefaultRPCURL is where the chain listens with the default host and port.
const DefaultRPCURL = "http://127.0.0.1:7545"

// DefaultAdminAddr is where the management API commands look for a running chain.
const DefaultAdminAddr = "127.0.0.1:7546"
