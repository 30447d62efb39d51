package nowpayments

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestSign_SortsKeys(t *testing.T) {
	a := []byte(`{"payment_status":"finished","payment_id":5077125051,"meta":{"z":1,"a":"x/y"}}`)
	b := []byte(`{"meta":{"a":"x/y","z":1},"payment_id":5077125051,"payment_status":"finished"}`)

	sa, err := Sign("secret", a)
	require.NoError(t, err)
	sb, err := Sign("secret", b)
	require.NoError(t, err)
	assert.Equal(t, sa, sb)

	// Signature is over the compact sorted form.
	mac := hmac.New(sha512.New, []byte("secret"))
	mac.Write([]byte(`{"meta":{"a":"x/y","z":1},"payment_id":5077125051,"payment_status":"finished"}`))
	assert.Equal(t, hex.EncodeToString(mac.Sum(nil)), sa)
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"payment_id":1,"payment_status":"finished","actually_paid":0.5,"pay_currency":"ltc"}`)
	sig, err := Sign("ipn-secret", body)
	require.NoError(t, err)

	assert.NoError(t, VerifySignature("ipn-secret", body, sig))
	assert.ErrorIs(t, VerifySignature("other", body, sig), ErrInvalidSignature)
	assert.ErrorIs(t, VerifySignature("ipn-secret", body, ""), ErrInvalidSignature)
	assert.ErrorIs(t, VerifySignature("", body, sig), ErrInvalidSignature)
	assert.ErrorIs(t, VerifySignature("ipn-secret", []byte(`not json`), sig), ErrInvalidSignature)

	tampered := []byte(`{"payment_id":1,"payment_status":"finished","actually_paid":5,"pay_currency":"ltc"}`)
	assert.ErrorIs(t, VerifySignature("ipn-secret", tampered, sig), ErrInvalidSignature)
}

func TestPaymentIPN_Paid(t *testing.T) {
	var ipn PaymentIPN
	require.NoError(t, json.Unmarshal([]byte(`{"payment_id":"9","pay_amount":1.5,"actually_paid":0}`), &ipn))
	assert.Equal(t, "1.5", ipn.Paid().String())

	require.NoError(t, json.Unmarshal([]byte(`{"payment_id":"9","pay_amount":1.5,"actually_paid":"1.25"}`), &ipn))
	assert.Equal(t, "1.25", ipn.Paid().String())
}

// Any field order of the same object yields the same signature.
func TestSignOrderIndependenceProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		keys := rapid.SliceOfNDistinct(rapid.StringMatching(`[a-z_]{1,10}`), 1, 8, rapid.ID[string]).Draw(t, "keys")
		vals := rapid.SliceOfN(rapid.IntRange(-1000, 1000), len(keys), len(keys)).Draw(t, "vals")

		forward := map[string]int{}
		for i, k := range keys {
			forward[k] = vals[i]
		}
		encode := func(order []int) []byte {
			buf := []byte{'{'}
			for j, i := range order {
				if j > 0 {
					buf = append(buf, ',')
				}
				kb, _ := json.Marshal(keys[i])
				buf = append(buf, kb...)
				buf = append(buf, ':')
				vb, _ := json.Marshal(forward[keys[i]])
				buf = append(buf, vb...)
			}
			return append(buf, '}')
		}

		order := make([]int, len(keys))
		reversed := make([]int, len(keys))
		for i := range keys {
			order[i] = i
			reversed[len(keys)-1-i] = i
		}
		s1, err := Sign("k", encode(order))
		if err != nil {
			t.Fatal(err)
		}
		s2, err := Sign("k", encode(reversed))
		if err != nil {
			t.Fatal(err)
		}
		if s1 != s2 {
			t.Fatalf("signature depends on key order")
		}
	})
}
