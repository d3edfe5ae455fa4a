// Package vnpay builds signed VNPay payment URLs and authenticates the
// parameters VNPay sends back on the return URL.
//
// Signing: parameters are sorted by key (byte order), encoded as a query
// string, and signed with HMAC-SHA512 over the shared hash secret. The hex
// digest is appended as vnp_SecureHash.
package vnpay

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	Version   = "2.1.0"
	Command   = "pay"
	Currency  = "VND"
	OrderType = "other"
	Locale    = "vn"

	// DefaultPaymentURL is the VNPay sandbox endpoint.
	DefaultPaymentURL = "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html"

	// DefaultClientIP is sent when the caller's address is unknown.
	DefaultClientIP = "127.0.0.1"

	createDateLayout = "20060102150405"

	ParamSecureHash     = "vnp_SecureHash"
	ParamSecureHashType = "vnp_SecureHashType"
	ParamTxnRef         = "vnp_TxnRef"
	ParamResponseCode   = "vnp_ResponseCode"
	ParamTransactionNo  = "vnp_TransactionNo"
	ParamAmount         = "vnp_Amount"

	// SuccessCode is the only response code that means the customer was charged.
	SuccessCode = "00"
)

// Config holds merchant credentials and endpoints.
type Config struct {
	TmnCode    string
	HashSecret string
	PaymentURL string
	ReturnURL  string
	// Location is the timezone vnp_CreateDate is rendered in. VNPay expects GMT+7.
	Location *time.Location
}

// Client is stateless apart from its configuration and is safe for concurrent use.
type Client struct {
	cfg Config
	now func() time.Time
}

// NewClient validates cfg and returns a Client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.TmnCode == "" {
		return nil, errors.New("vnpay: merchant code (TmnCode) is required")
	}
	if cfg.HashSecret == "" {
		return nil, errors.New("vnpay: hash secret is required")
	}
	if cfg.ReturnURL == "" {
		return nil, errors.New("vnpay: return URL is required")
	}
	if cfg.PaymentURL == "" {
		cfg.PaymentURL = DefaultPaymentURL
	}
	if cfg.Location == nil {
		cfg.Location = vietnamLocation()
	}
	return &Client{cfg: cfg, now: time.Now}, nil
}

func vietnamLocation() *time.Location {
	if loc, err := time.LoadLocation("Asia/Ho_Chi_Minh"); err == nil {
		return loc
	}
	return time.FixedZone("ICT", 7*60*60)
}

// CreatePaymentURL builds the signed redirect URL for a booking.
// amountCents is the amount in minor units, which is exactly what vnp_Amount
// carries (major amount x 100).
func (c *Client) CreatePaymentURL(bookingID string, amountCents int64, orderInfo, clientIP string) (string, error) {
	if bookingID == "" {
		return "", errors.New("vnpay: booking ID is required")
	}
	if amountCents <= 0 {
		return "", fmt.Errorf("vnpay: amount must be positive, got %d", amountCents)
	}
	if clientIP == "" {
		clientIP = DefaultClientIP
	}

	params := map[string]string{
		"vnp_Version":    Version,
		"vnp_Command":    Command,
		"vnp_TmnCode":    c.cfg.TmnCode,
		ParamAmount:      strconv.FormatInt(amountCents, 10),
		"vnp_CurrCode":   Currency,
		ParamTxnRef:      bookingID,
		"vnp_OrderInfo":  orderInfo,
		"vnp_OrderType":  OrderType,
		"vnp_Locale":     Locale,
		"vnp_ReturnUrl":  c.cfg.ReturnURL,
		"vnp_IpAddr":     clientIP,
		"vnp_CreateDate": c.now().In(c.cfg.Location).Format(createDateLayout),
	}

	signData, hash := Sign(params, c.cfg.HashSecret)
	return c.cfg.PaymentURL + "?" + signData + "&" + ParamSecureHash + "=" + hash, nil
}

// VerifyCallback recomputes the signature over every parameter except the
// hash fields and compares it with vnp_SecureHash in constant time.
func (c *Client) VerifyCallback(params map[string]string) bool {
	received := strings.ToLower(params[ParamSecureHash])
	if received == "" {
		return false
	}

	unsigned := make(map[string]string, len(params))
	for k, v := range params {
		if k == ParamSecureHash || k == ParamSecureHashType {
			continue
		}
		unsigned[k] = v
	}

	_, expected := Sign(unsigned, c.cfg.HashSecret)
	return hmac.Equal([]byte(expected), []byte(received))
}

// ResponseStatus is the interpretation of a vnp_ResponseCode.
type ResponseStatus struct {
	Success bool
	Message string
}

var responseMessages = map[string]string{
	"00": "Transaction successful",
	"07": "Amount debited. Transaction flagged as suspicious (possible fraud or unusual activity).",
	"09": "Transaction failed: the card/account is not registered for Internet Banking.",
	"10": "Transaction failed: card/account verification failed more than 3 times.",
	"11": "Transaction failed: the payment window expired. Please try again.",
	"12": "Transaction failed: the card/account is locked.",
	"13": "Transaction failed: incorrect one-time password (OTP).",
	"24": "Transaction failed: the customer cancelled the transaction.",
	"51": "Transaction failed: insufficient balance.",
	"65": "Transaction failed: the account exceeded its daily transaction limit.",
	"75": "The paying bank is under maintenance.",
	"79": "Transaction failed: payment password entered incorrectly too many times.",
	"99": "Other error (not in the listed error codes).",
}

const unknownResponseMessage = "Unknown error"

// ParseResponseCode maps a VNPay response code to an outcome. Only "00" is a success.
func (c *Client) ParseResponseCode(code string) ResponseStatus {
	return ParseResponseCode(code)
}

// ParseResponseCode maps a VNPay response code to an outcome. Only "00" is a success.
func ParseResponseCode(code string) ResponseStatus {
	msg, ok := responseMessages[code]
	if !ok {
		msg = unknownResponseMessage
	}
	return ResponseStatus{Success: code == SuccessCode, Message: msg}
}

// Callback is the typed view of a verified return-URL parameter set.
type Callback struct {
	TxnRef        string
	ResponseCode  string
	TransactionNo string
	// AmountCents is vnp_Amount, i.e. the major amount x 100.
	AmountCents int64
}

// ParseCallback extracts the fields the settlement logic needs. Call it only
// after VerifyCallback succeeded.
func ParseCallback(params map[string]string) (Callback, error) {
	cb := Callback{
		TxnRef:        params[ParamTxnRef],
		ResponseCode:  params[ParamResponseCode],
		TransactionNo: params[ParamTransactionNo],
	}
	if cb.TxnRef == "" {
		return Callback{}, errors.New("vnpay: callback is missing vnp_TxnRef")
	}
	if cb.ResponseCode == "" {
		return Callback{}, errors.New("vnpay: callback is missing vnp_ResponseCode")
	}
	if raw := params[ParamAmount]; raw != "" {
		amount, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Callback{}, fmt.Errorf("vnpay: invalid vnp_Amount %q: %w", raw, err)
		}
		cb.AmountCents = amount
	}
	return cb, nil
}

// Sign returns the canonical query string for params and its HMAC-SHA512 hex digest.
func Sign(params map[string]string, secret string) (signData string, hash string) {
	signData = EncodeSorted(params)
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write([]byte(signData))
	return signData, hex.EncodeToString(mac.Sum(nil))
}

// EncodeSorted renders params as key=value pairs joined by '&', keys in
// ascending byte order, both sides escaped with Escape.
func EncodeSorted(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(Escape(k))
		b.WriteByte('=')
		b.WriteString(Escape(params[k]))
	}
	return b.String()
}

// Escape percent-encodes s the way VNPay's reference integration does:
// A-Z a-z 0-9 and - . _ ~ ! ' ( ) * pass through, every other byte of the
// UTF-8 encoding becomes %XX with upper-case hex. Space is %20, never '+'.
// url.QueryEscape differs on space and on ! ' ( ) *, which would break the signature.
func Escape(s string) string {
	const hexDigits = "0123456789ABCDEF"
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if isUnreserved(ch) {
			b.WriteByte(ch)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hexDigits[ch>>4])
		b.WriteByte(hexDigits[ch&0x0F])
	}
	return b.String()
}

func isUnreserved(ch byte) bool {
	switch {
	case 'a' <= ch && ch <= 'z', 'A' <= ch && ch <= 'Z', '0' <= ch && ch <= '9':
		return true
	}
	switch ch {
	case '-', '.', '_', '~', '!', '\'', '(', ')', '*':
		return true
	}
	return false
}
