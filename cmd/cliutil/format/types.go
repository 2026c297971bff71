package format

// Account is a derived development account as printed by the accounts command.
type Account struct {
	Index      int    `json:"index"`
	Address    string `json:"address"`
	PrivateKey string `json:"privateKey,omitempty"`
	// Balance is set when the accounts are read from a running chain.
	Balance string `json:"balance,omitempty"`
}

type AccountList struct {
	Accounts []Account `json:"accounts"`
}

// Contract is a core contract resolved through the registry.
type Contract struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Error   string `json:"error,omitempty"`
}

type ContractList struct {
	Registry  string     `json:"registry"`
	Contracts []Contract `json:"contracts"`
}
