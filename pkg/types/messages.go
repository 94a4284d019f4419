package types

// Request bodies. Field names are the relay's wire contract.

type ProvideToAddressRequest struct {
	Provider  string `json:"provider"`
	Receiver  string `json:"receiver"`
	Amount    string `json:"amount"`
	Signature string `json:"signature"`
}

// ProvideToPhoneRequest carries the phone hash in Receiver, never the phone number.
type ProvideToPhoneRequest struct {
	Provider  string `json:"provider"`
	Receiver  string `json:"receiver"`
	Amount    string `json:"amount"`
	Signature string `json:"signature"`
}

type RegisterAssistantRequest struct {
	Provider  string `json:"provider"`
	Assistant string `json:"assistant"`
	Signature string `json:"signature"`
}

type TemporaryAccountRequest struct {
	Account   string `json:"account"`
	Signature string `json:"signature"`
}

type PaymentApprovalRequest struct {
	PaymentId string `json:"paymentId"`
	Approval  bool   `json:"approval"`
	Signature string `json:"signature"`
}

// Response payloads found in envelope data.

type NonceResponse struct {
	Account string      `json:"account,omitempty"`
	Nonce   Uint64Value `json:"nonce"`
}

type ChainIdResponse struct {
	ChainId Uint64Value `json:"chainId"`
}

type ProviderStatusResponse struct {
	Account string `json:"account,omitempty"`
	Enable  bool   `json:"enable"`
}

// AssistantResponse.Assistant is empty or the zero address when no delegate is registered.
type AssistantResponse struct {
	Provider  string `json:"provider,omitempty"`
	Assistant string `json:"assistant"`
}

type TxHashResponse struct {
	TxHash string `json:"txHash"`
}

type TemporaryAccountResponse struct {
	TemporaryAccount string `json:"temporaryAccount"`
}
