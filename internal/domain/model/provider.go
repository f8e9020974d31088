package model

import "encoding/json"

// Provider is a named configuration profile for one external AI service.
// SettingsConfig is the opaque settings document written verbatim into the
// service's live config file when the provider becomes current; its shape is
// service-specific and intentionally unschematized.
type Provider struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	SettingsConfig json.RawMessage `json:"settingsConfig"`
	WebsiteURL     *string         `json:"websiteUrl,omitempty"`
	Category       *string         `json:"category,omitempty"`
	CreatedAt      *int64          `json:"createdAt,omitempty"` // epoch millis
	SortIndex      *int64          `json:"sortIndex,omitempty"`
	Notes          *string         `json:"notes,omitempty"`
	Icon           *string         `json:"icon,omitempty"`
	IconColor      *string         `json:"iconColor,omitempty"`
	Meta           ProviderMeta    `json:"meta"`
	IsCurrent      bool            `json:"isCurrent"`
	IsProxyTarget  bool            `json:"isProxyTarget"`
}

// ProviderMeta is the structured sidecar stored alongside a provider.
// CustomEndpoints is keyed by URL and persisted in the provider_endpoints
// table rather than inside the meta JSON column.
type ProviderMeta struct {
	CustomEndpoints map[string]CustomEndpoint `json:"custom_endpoints,omitempty"`
	UsageScript     string                    `json:"usage_script,omitempty"`
	PartnerPromo    string                    `json:"partner_promo,omitempty"`
	BillingURL      string                    `json:"billing_url,omitempty"`
}

// CustomEndpoint is a user-added API endpoint belonging to one
// (provider, namespace) pair.
type CustomEndpoint struct {
	URL      string `json:"url"`
	AddedAt  int64  `json:"added_at"` // epoch millis
	LastUsed *int64 `json:"last_used,omitempty"`
}

// WithoutEndpoints returns a copy of the meta with CustomEndpoints cleared,
// for serializing into the meta column.
func (m ProviderMeta) WithoutEndpoints() ProviderMeta {
	m.CustomEndpoints = nil
	return m
}
