package httpapi

const (
	AdminRoutePath = "/admin"
	LogRoutePath   = "/log"
	ChainRoutePath = "/chain"

	// LogPrefixParam filters the log list to loggers starting with its value.
	LogPrefixParam = "prefix"
)

// Logging
type (
	ListLogLevelsResponse struct {
		Loggers map[string]string `json:"loggers"`
	}
	SetLogLevelRequest struct {
		System string `json:"system"`
		Level  string `json:"level"`
	}

	SetLogLevelRegexRequest struct {
		Expression string `json:"expression"`
		Level      string `json:"level"`
	}

	// SetLogLevelResponse lists the loggers a request changed with their new level.
	SetLogLevelResponse struct {
		Loggers map[string]string `json:"loggers"`
	}
)

// Chain
type (
	StatusResponse struct {
		State     string `json:"state"`
		URL       string `json:"url,omitempty"`
		Port      int    `json:"port,omitempty"`
		DataDir   string `json:"data_dir,omitempty"`
		Ephemeral bool   `json:"ephemeral"`
		Backend   string `json:"backend"`
	}

	StopResponse struct {
		// Stopped is false when the chain had already been stopped.
		Stopped bool `json:"stopped"`
	}
)
