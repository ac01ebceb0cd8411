package paystack

// Requests and responses for the subset of the Paystack API this service
// uses. Amounts cross this boundary in major currency units; the client
// converts to minor units (x100) on the wire.

type InitializeRequest struct {
	Amount      float64
	Email       string
	Reference   string
	CallbackURL string
	Metadata    map[string]string
}

type InitializeResponse struct {
	AuthorizationURL string
	AccessCode       string
	Reference        string
}

type Transaction struct {
	Reference string
	Status    string
	Amount    float64
}

// Success reports whether the gateway settled the charge.
func (t Transaction) Success() bool {
	return t.Status == "success"
}

type RecipientRequest struct {
	Name          string
	AccountNumber string
	BankCode      string
}

type TransferRequest struct {
	Amount    float64
	Recipient string
	Reason    string
	Reference string
}

type RefundRequest struct {
	TransactionReference string
	Amount               float64
}

type Bank struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

type apiEnvelope struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
}

type initializeData struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

type transactionData struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
	Amount    int64  `json:"amount"`
}

type recipientData struct {
	RecipientCode string `json:"recipient_code"`
}

type transferData struct {
	Reference string `json:"reference"`
}

type refundData struct {
	Reference string `json:"reference"`
}
