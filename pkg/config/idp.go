package config

import (
	"fmt"
	"strings"
	"time"
)

// IdP configures sign-in token verification. When disabled, the user id is taken
// from the X-User-Id header set by the gateway.
type IdP struct {
	Enabled  bool   `koanf:"enabled"`
	JwksURL  string `koanf:"jwksurl"`
	Issuer   string `koanf:"issuer"`
	ClientID string `koanf:"clientid"`
	// Audience is checked only when set.
	Audience string `koanf:"audience"`
	// UserClaim names the claim holding the user id, "sub" when empty.
	UserClaim   string        `koanf:"userclaim"`
	MinInterval time.Duration `koanf:"mininterval"`
}

func (c *IdP) String() string {
	var b strings.Builder
	b.WriteString("\n--- IdP ---\n")
	b.WriteString(fmt.Sprintf("  enabled: %t\n", c.Enabled))
	if !c.Enabled {
		return b.String()
	}
	b.WriteString(fmt.Sprintf("  jwksurl: %s\n", c.JwksURL))
	b.WriteString(fmt.Sprintf("  issuer: %s\n", c.Issuer))
	b.WriteString(fmt.Sprintf("  clientid: %s\n", c.ClientID))
	b.WriteString(fmt.Sprintf("  audience: %s\n", c.Audience))
	b.WriteString(fmt.Sprintf("  userclaim: %s\n", c.UserClaim))
	b.WriteString(fmt.Sprintf("  mininterval: %s\n", c.MinInterval))
	return b.String()
}

func (c *IdP) Validate() error {
	if !c.Enabled {
		return nil
	}
	switch {
	case c.JwksURL == "":
		return fmt.Errorf("idp.jwksurl is required when idp is enabled")
	case c.Issuer == "":
		return fmt.Errorf("idp.issuer is required when idp is enabled")
	case c.ClientID == "":
		return fmt.Errorf("idp.clientid is required when idp is enabled")
	case c.MinInterval <= 0:
		return fmt.Errorf("idp.mininterval must be greater than 0")
	}
	return nil
}
