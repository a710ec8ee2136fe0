package identity

import (
	"errors"
	"testing"
)

func TestRegistrationValidate(t *testing.T) {
	valid := Registration{Email: "wanjiku@example.com", Password: "longenough", Name: "Wanjiku", Role: RoleCreative}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid registration, got %v", err)
	}

	cases := map[string]Registration{
		"bad email":      {Email: "nope", Password: "longenough", Name: "x", Role: RoleClient},
		"short password": {Email: "a@b.co", Password: "short", Name: "x", Role: RoleClient},
		"missing name":   {Email: "a@b.co", Password: "longenough", Role: RoleClient},
		"admin role":     {Email: "a@b.co", Password: "longenough", Name: "x", Role: RoleAdmin},
		"bad phone":      {Email: "a@b.co", Password: "longenough", Name: "x", Role: RoleClient, Phone: "12345"},
	}
	for name, reg := range cases {
		if err := reg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}

func TestRegistrationNormalize(t *testing.T) {
	reg := Registration{Email: "  Otieno@Example.COM ", Name: " Otieno ", Role: "Client", Phone: "0712 345 678"}.Normalize()
	if reg.Email != "otieno@example.com" || reg.Name != "Otieno" || reg.Role != RoleClient {
		t.Fatalf("unexpected normalisation: %+v", reg)
	}
	if reg.Phone != "254712345678" {
		t.Fatalf("expected MSISDN phone, got %s", reg.Phone)
	}
}

func TestNormalizePhone(t *testing.T) {
	cases := map[string]string{
		"0712345678":     "254712345678",
		"+254712345678":  "254712345678",
		"254 712 345678": "254712345678",
		"712345678":      "254712345678",
		"0110123456":     "254110123456",
	}
	for in, want := range cases {
		got, err := NormalizePhone(in)
		if err != nil {
			t.Fatalf("%s: %v", in, err)
		}
		if got != want {
			t.Fatalf("%s: expected %s got %s", in, want, got)
		}
	}

	for _, in := range []string{"", "0812345678", "+1 555 0100", "07123abc78"} {
		if _, err := NormalizePhone(in); !errors.Is(err, ErrInvalidPhone) {
			t.Fatalf("%q: expected ErrInvalidPhone, got %v", in, err)
		}
	}
}

func TestIdentityMerge(t *testing.T) {
	base := Identity{ID: "u1", Email: "a@b.co", Role: RoleCreative, Tier: TierFree, Name: "Amani"}
	name := "Amani K."
	tier := TierPro
	merged := base.Merge(Patch{Name: &name, Tier: &tier})
	if merged.Name != name || merged.Tier != TierPro {
		t.Fatalf("patch not applied: %+v", merged)
	}
	if merged.ID != "u1" || merged.Email != "a@b.co" || merged.Role != RoleCreative {
		t.Fatalf("untouched fields changed: %+v", merged)
	}
	if base.Name != "Amani" {
		t.Fatalf("merge mutated the receiver")
	}
}

func TestTierNormalize(t *testing.T) {
	if Tier("").Normalize() != TierFree || Tier("gold").Normalize() != TierFree {
		t.Fatal("unknown tiers must normalise to free")
	}
	if TierPro.Normalize() != TierPro {
		t.Fatal("pro must stay pro")
	}
}
