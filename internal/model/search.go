package model

// MemberSearchFilters compose conjunctively; zero values mean "no filter"
type MemberSearchFilters struct {
	Query        string   `json:"q,omitempty"`
	TenantIDs    []uint   `json:"tenant_ids,omitempty"`
	ServiceReach string   `json:"service_reach,omitempty"`
	Skills       []string `json:"skills,omitempty"`

	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	RadiusKm  *float64 `json:"radius_km,omitempty"`

	MessagingEnabled    *bool `json:"messaging_enabled,omitempty"`
	TransactionsEnabled *bool `json:"transactions_enabled,omitempty"`

	SortBy string `json:"sort_by,omitempty"` // name or newest
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

// ListingSearchFilters narrow federated listing queries
type ListingSearchFilters struct {
	Query     string `json:"q,omitempty"`
	TenantIDs []uint `json:"tenant_ids,omitempty"`
	Type      string `json:"type,omitempty"`
	Category  string `json:"category,omitempty"`
	Limit     int    `json:"limit,omitempty"`
	Offset    int    `json:"offset,omitempty"`
}
