package identity

// Role is the marketplace role of an authenticated principal.
type Role string

const (
	RoleCreative Role = "creative"
	RoleClient   Role = "client"
	RoleAdmin    Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleCreative, RoleClient, RoleAdmin:
		return true
	}
	return false
}

// Tier is a subscription plan label.
type Tier string

const (
	TierFree  Tier = "free"
	TierBasic Tier = "basic"
	TierPro   Tier = "pro"
)

// Normalize maps unknown or empty labels to the free tier.
func (t Tier) Normalize() Tier {
	switch t {
	case TierBasic, TierPro:
		return t
	default:
		return TierFree
	}
}

// Identity represents the authenticated user as reported by the marketplace API.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
	Tier  Tier   `json:"subscriptionTier"`
	Name  string `json:"name,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// Patch holds optional fields for a local profile update.
type Patch struct {
	Email *string `json:"email,omitempty"`
	Tier  *Tier   `json:"subscriptionTier,omitempty"`
	Name  *string `json:"name,omitempty"`
	Phone *string `json:"phone,omitempty"`
}

// Merge returns a copy of id with the non-nil fields of p applied. ID and
// Role are never patched locally.
func (id Identity) Merge(p Patch) Identity {
	if p.Email != nil {
		id.Email = *p.Email
	}
	if p.Tier != nil {
		id.Tier = *p.Tier
	}
	if p.Name != nil {
		id.Name = *p.Name
	}
	if p.Phone != nil {
		id.Phone = *p.Phone
	}
	return id
}

// Credentials is the login request body.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Registration is the account creation request body.
type Registration struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Phone    string `json:"phone,omitempty"`
	Role     Role   `json:"role"`
}
