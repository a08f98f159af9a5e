package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// MethodDetails is the per-method payer information attached to a payment.
// Each method has its own concrete type; there is no string-keyed bag.
type MethodDetails interface {
	Method() PaymentMethod
	Validate() error
}

type UPIIntentDetails struct {
	UPIID string `json:"upi_id"`
}

type BankTransferDetails struct {
	AccountHolderName string `json:"account_holder_name,omitempty"`
	IFSCCode          string `json:"ifsc_code,omitempty"`
}

type WalletDetails struct {
	UserID string `json:"user_id"`
}

type TokenizedDetails struct {
	UserID  string `json:"user_id"`
	TokenID string `json:"token_id"`
}

type CryptoDetails struct {
	Address string `json:"crypto_address"`
	Network string `json:"network,omitempty"`
}

var (
	upiIDRe = regexp.MustCompile(`^[a-zA-Z0-9.\-_]{2,256}@[a-zA-Z]{2,64}$`)
	ifscRe  = regexp.MustCompile(`^[A-Z]{4}0[A-Z0-9]{6}$`)
)

func (UPIIntentDetails) Method() PaymentMethod    { return PaymentMethodUPIIntent }
func (BankTransferDetails) Method() PaymentMethod { return PaymentMethodBankTransfer }
func (WalletDetails) Method() PaymentMethod       { return PaymentMethodWallet }
func (TokenizedDetails) Method() PaymentMethod    { return PaymentMethodTokenized }
func (CryptoDetails) Method() PaymentMethod       { return PaymentMethodCrypto }

func (d UPIIntentDetails) Validate() error {
	if !upiIDRe.MatchString(d.UPIID) {
		return errors.New("upi_id must look like name@bank")
	}
	return nil
}

func (d BankTransferDetails) Validate() error {
	if d.IFSCCode != "" && !ifscRe.MatchString(d.IFSCCode) {
		return errors.New("ifsc_code is malformed")
	}
	return nil
}

// Wallet, tokenized and crypto details are collected by the processor after
// creation, so every field is optional here. Supplied fields must be usable.

func (d WalletDetails) Validate() error {
	return notBlank("user_id", d.UserID)
}

func (d TokenizedDetails) Validate() error {
	if err := notBlank("user_id", d.UserID); err != nil {
		return err
	}
	if err := notBlank("token_id", d.TokenID); err != nil {
		return err
	}
	if d.TokenID != "" && d.UserID == "" {
		return errors.New("token_id needs the user_id it belongs to")
	}
	return nil
}

func (d CryptoDetails) Validate() error {
	if err := notBlank("crypto_address", d.Address); err != nil {
		return err
	}
	return notBlank("network", d.Network)
}

func notBlank(field, v string) error {
	if v != "" && strings.TrimSpace(v) == "" {
		return fmt.Errorf("%s must not be blank", field)
	}
	return nil
}

// ParseMethodDetails decodes raw into the concrete details type for method
// and validates it. Unknown fields are rejected. An empty raw is accepted
// for every method except upi_intent.
func ParseMethodDetails(method PaymentMethod, raw json.RawMessage) (MethodDetails, error) {
	var d MethodDetails
	switch method {
	case PaymentMethodUPIIntent:
		d = &UPIIntentDetails{}
	case PaymentMethodBankTransfer:
		d = &BankTransferDetails{}
	case PaymentMethodWallet:
		d = &WalletDetails{}
	case PaymentMethodTokenized:
		d = &TokenizedDetails{}
	case PaymentMethodCrypto:
		d = &CryptoDetails{}
	default:
		return nil, fmt.Errorf("unsupported payment method %q", method)
	}

	if len(bytes.TrimSpace(raw)) > 0 {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(d); err != nil {
			return nil, fmt.Errorf("invalid %s details: %w", method, err)
		}
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}
