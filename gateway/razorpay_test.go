package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sign(secret, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%s|%s", orderID, paymentID)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifySignature(t *testing.T) {
	client := NewClient("key_id", "key_secret")

	valid := sign("key_secret", "order_abc", "pay_xyz")
	assert.True(t, client.VerifySignature("order_abc", "pay_xyz", valid))
}

func TestVerifySignatureRejectsTampering(t *testing.T) {
	client := NewClient("key_id", "key_secret")
	valid := sign("key_secret", "order_abc", "pay_xyz")

	assert.False(t, client.VerifySignature("order_abc", "pay_other", valid))
	assert.False(t, client.VerifySignature("order_other", "pay_xyz", valid))
	assert.False(t, client.VerifySignature("order_abc", "pay_xyz", valid+"00"))
	assert.False(t, client.VerifySignature("order_abc", "pay_xyz", ""))
}

func TestVerifySignatureWrongSecret(t *testing.T) {
	client := NewClient("key_id", "key_secret")
	forged := sign("other_secret", "order_abc", "pay_xyz")
	assert.False(t, client.VerifySignature("order_abc", "pay_xyz", forged))
}

func TestMissingCredentialsFailClosed(t *testing.T) {
	client := NewClient("", "")

	// Even a signature computed over the empty secret must not verify.
	assert.False(t, client.VerifySignature("order_abc", "pay_xyz", sign("", "order_abc", "pay_xyz")))
	assert.False(t, client.VerifySignature("order_abc", "pay_xyz", ""))

	_, err := client.CreateOrder(100, "INR", "booking_1_abc")
	assert.ErrorIs(t, err, ErrGateway)
}

func TestCreateOrder(t *testing.T) {
	var gotAuthUser, gotAuthPass string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuthUser, gotAuthPass, _ = r.BasicAuth()
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/orders", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"order_test123","amount":6000000,"currency":"INR","receipt":"booking_1_abc","status":"created"}`)
	}))
	defer server.Close()

	client := NewClient("key_id", "key_secret")
	client.baseURL = server.URL

	order, err := client.CreateOrder(6000000, "INR", "booking_1_abc")
	require.NoError(t, err)

	assert.Equal(t, "order_test123", order.ID)
	assert.Equal(t, int64(6000000), order.Amount)
	assert.Equal(t, "INR", order.Currency)
	assert.Equal(t, "key_id", gotAuthUser)
	assert.Equal(t, "key_secret", gotAuthPass)
}

func TestCreateOrderUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"description":"Authentication failed"}}`)
	}))
	defer server.Close()

	client := NewClient("key_id", "wrong_secret")
	client.baseURL = server.URL

	_, err := client.CreateOrder(100, "INR", "booking_1_abc")
	assert.ErrorIs(t, err, ErrGateway)
}
