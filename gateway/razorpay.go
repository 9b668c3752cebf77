package gateway

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"
)

// ErrGateway is returned for any upstream failure. Gateway internals are
// logged server-side and never surfaced to clients.
var ErrGateway = errors.New("payment gateway error")

// Order is the subset of the Razorpay order object the core consumes.
// Amount is in the minor currency unit (paise).
type Order struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

// Client talks to the Razorpay REST API. It is constructed once at startup
// and injected into the payment handler rather than imported as a global.
type Client struct {
	keyID      string
	keySecret  string
	baseURL    string
	httpClient *http.Client
}

func NewClient(keyID, keySecret string) *Client {
	return &Client{
		keyID:      keyID,
		keySecret:  keySecret,
		baseURL:    "https://api.razorpay.com/v1",
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// NewClientFromEnv builds a client from RAZORPAY_KEY_ID/RAZORPAY_KEY_SECRET.
// Without credentials the server still boots, but the client fails closed:
// order creation errors and no signature ever verifies.
func NewClientFromEnv() *Client {
	keyID := os.Getenv("RAZORPAY_KEY_ID")
	keySecret := os.Getenv("RAZORPAY_KEY_SECRET")
	if keyID == "" || keySecret == "" {
		log.Println("Razorpay credentials not set; payments are disabled")
	}
	return NewClient(keyID, keySecret)
}

func (c *Client) KeyID() string {
	return c.keyID
}

// CreateOrder registers an order with the gateway. amountMinor must already
// be converted to paise.
func (c *Client) CreateOrder(amountMinor int64, currency, receipt string) (*Order, error) {
	if c.keyID == "" || c.keySecret == "" {
		log.Println("Razorpay order creation attempted without credentials")
		return nil, ErrGateway
	}

	payload := map[string]interface{}{
		"amount":   amountMinor,
		"currency": currency,
		"receipt":  receipt,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequest("POST", c.baseURL+"/orders", bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.keyID, c.keySecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("Razorpay order creation failed: %v", err)
		return nil, ErrGateway
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		respBody, _ := io.ReadAll(resp.Body)
		log.Printf("Razorpay order creation returned %d: %s", resp.StatusCode, string(respBody))
		return nil, ErrGateway
	}

	var order Order
	if err := json.NewDecoder(resp.Body).Decode(&order); err != nil {
		log.Printf("Error decoding Razorpay order response: %v", err)
		return nil, ErrGateway
	}

	return &order, nil
}

// VerifySignature recomputes the HMAC-SHA256 of "orderID|paymentID" with the
// key secret and compares it to the supplied signature in constant time.
// Without a configured secret nothing verifies.
func (c *Client) VerifySignature(orderID, paymentID, signature string) bool {
	if c.keySecret == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(c.keySecret))
	fmt.Fprintf(mac, "%s|%s", orderID, paymentID)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
