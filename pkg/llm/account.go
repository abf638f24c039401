package llm

const (
	defaultModelObject  = "model"
	defaultModelOwnedBy = "deepseek"
	defaultCurrency     = "CNY"
	zeroBalance         = "0.00"
)

// ModelInfo is one entry of the models listing.
type ModelInfo struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	OwnedBy string `json:"owned_by"`
}

// NewModelInfo fills the upstream defaults for missing fields.
func NewModelInfo(id, object, ownedBy string) ModelInfo {
	if object == "" {
		object = defaultModelObject
	}
	if ownedBy == "" {
		ownedBy = defaultModelOwnedBy
	}
	return ModelInfo{ID: id, Object: object, OwnedBy: ownedBy}
}

// ModelList is the models listing envelope.
type ModelList struct {
	Object string      `json:"object"`
	Data   []ModelInfo `json:"data"`
}

// Balance is the account balance envelope.
type Balance struct {
	IsAvailable  bool          `json:"is_available"`
	BalanceInfos []BalanceInfo `json:"balance_infos"`
}

// BalanceInfo is the balance held in one currency. Amounts are decimal
// strings exactly as upstream reports them.
type BalanceInfo struct {
	Currency        string `json:"currency"`
	TotalBalance    string `json:"total_balance"`
	GrantedBalance  string `json:"granted_balance"`
	ToppedUpBalance string `json:"topped_up_balance"`
}

// NewBalanceInfo fills the upstream defaults for missing fields.
func NewBalanceInfo(currency, total, granted, toppedUp string) BalanceInfo {
	return BalanceInfo{
		Currency:        orDefault(currency, defaultCurrency),
		TotalBalance:    orDefault(total, zeroBalance),
		GrantedBalance:  orDefault(granted, zeroBalance),
		ToppedUpBalance: orDefault(toppedUp, zeroBalance),
	}
}

// KeyStatus reports whether a credential is configured and accepted upstream.
type KeyStatus struct {
	IsSet   bool   `json:"is_set"`
	IsValid bool   `json:"is_valid"`
	Message string `json:"message"`
}

// SetKeyRequest is the body of POST /set_api_key.
type SetKeyRequest struct {
	APIKey string `json:"api_key"`
}

// SetKeyResult is the response of POST /set_api_key.
type SetKeyResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
