/*
Copyright 2025 Tradielink Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package provider

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/tradielink/tradielink/config"
)

// Mode distinguishes how a provider collects the payment. Intent providers
// hand the client a secret to confirm in-page; redirect providers send the
// payer to a hosted page and report back asynchronously.
type Mode string

const (
	ModeIntent   Mode = "intent"
	ModeRedirect Mode = "redirect"
)

// CreateRequest describes the charge an adapter should set up.
type CreateRequest struct {
	PaymentID   string
	Amount      decimal.Decimal
	Currency    string
	Description string
	PayerEmail  string
}

// CreateResponse carries the provider's handle on the new charge. Exactly
// one of ClientSecret or RedirectURL is populated, matching the mode.
type CreateResponse struct {
	ProviderRef  string
	ClientSecret string
	RedirectURL  string
}

// PaymentState is the provider's own view of a charge, normalized across
// adapters.
type PaymentState string

const (
	StateSucceeded PaymentState = "succeeded"
	StatePending   PaymentState = "pending"
	StateFailed    PaymentState = "failed"
)

// StatusResponse reports a charge's state as the provider sees it, including
// the amount the provider actually captured.
type StatusResponse struct {
	ProviderRef string
	State       PaymentState
	Amount      decimal.Decimal
	Currency    string
}

// Event is a verified asynchronous notification from a redirect provider.
type Event struct {
	ProviderRef string
	State       PaymentState
	Amount      decimal.Decimal
	Currency    string
}

// Provider is a payment collector. Adapters differ in how funds are taken
// but every path converges on a StatusResponse or Event that the settlement
// layer treats identically.
type Provider interface {
	Name() string
	Mode() Mode
	CreatePayment(ctx context.Context, req CreateRequest) (*CreateResponse, error)
	GetPaymentStatus(ctx context.Context, providerRef string) (*StatusResponse, error)
	// VerifyEvent authenticates and parses an asynchronous notification.
	// Providers without an async channel return an error.
	VerifyEvent(payload []byte, signature string) (*Event, error)
}

// Registry holds the configured adapters keyed by name.
type Registry struct {
	providers   map[string]Provider
	defaultName string
}

func NewRegistry(conf config.ProvidersConfig) *Registry {
	r := &Registry{
		providers:   make(map[string]Provider),
		defaultName: conf.Default,
	}
	r.register(NewCardGate(conf.CardGate))
	r.register(NewBankLink(conf.BankLink))
	return r
}

func (r *Registry) register(p Provider) {
	r.providers[p.Name()] = p
}

func (r *Registry) Get(name string) (Provider, error) {
	if name == "" {
		name = r.defaultName
	}
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("unknown payment provider: %s", name)
	}
	return p, nil
}
