package provider

import (
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/tidwall/gjson"
)

// NewAnthropicClient returns a client using API key from the env unless opts
// override it.
func NewAnthropicClient(opts ...option.RequestOption) *anthropic.Client {
	c := anthropic.NewClient(opts...)
	return &c
}

// DefaultModel is the model used when configuration does not name one.
const DefaultModel = anthropic.ModelClaudeSonnet4_5

// IsQuotaExceeded reports whether err is an API error meaning the account can
// no longer be billed for requests: a billing_error, or a credit balance or
// quota complaint. Per-minute throttling (429, rate_limit_error) is not quota
// exhaustion and reports false.
func IsQuotaExceeded(err error) bool {
	var apiErr *anthropic.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	body := apiErr.RawJSON()
	typ := gjson.Get(body, "error.type").Str
	if typ == "billing_error" {
		return true
	}
	msg := strings.ToLower(gjson.Get(body, "error.message").Str)
	if strings.Contains(msg, "credit balance") {
		return true
	}
	return typ != "rate_limit_error" && strings.Contains(msg, "quota")
}
