package config

// Capability names one pluggable infrastructure client. The set is closed;
// adding a capability means adding a client to the infra package.
type Capability string

const (
	CapabilityDB     Capability = "db"
	CapabilityCache  Capability = "cache"
	CapabilitySearch Capability = "search"
	CapabilityBroker Capability = "broker"
)

// AllCapabilities returns the closed capability set in stable order. The
// order is also the registry's initialization order.
func AllCapabilities() []Capability {
	return []Capability{CapabilityDB, CapabilityCache, CapabilitySearch, CapabilityBroker}
}

// KnownCapability reports whether name (case already normalized) is a member
// of the closed set.
func KnownCapability(name string) bool {
	for _, c := range AllCapabilities() {
		if string(c) == name {
			return true
		}
	}
	return false
}

// FeatureFlags is the semantic view over the Features section: which
// capabilities the configuration requests and which cross-cutting behaviors
// are on. Whether a requested capability actually starts also depends on the
// clients compiled into the binary; the infra package joins the two.
type FeatureFlags struct {
	capabilities map[Capability]bool

	OTel             bool
	CORS             bool
	RequestLog       bool
	Tracing          bool
	ResponseEnvelope bool
	StartupBanner    bool
}

// Flags derives the feature-flag view from the resolved configuration.
func (c *Config) Flags() FeatureFlags {
	return FeatureFlags{
		capabilities: map[Capability]bool{
			CapabilityDB:     c.Features.DB,
			CapabilityCache:  c.Features.Cache,
			CapabilitySearch: c.Features.Search,
			CapabilityBroker: c.Features.Broker,
		},
		OTel:             c.Features.OTel,
		CORS:             c.Features.CORS,
		RequestLog:       c.Features.RequestLog,
		Tracing:          c.Features.Tracing,
		ResponseEnvelope: c.Features.ResponseEnvelope,
		StartupBanner:    c.Features.StartupBanner,
	}
}

// CapabilityEnabled reports whether the configuration requests cap.
func (f FeatureFlags) CapabilityEnabled(cap Capability) bool {
	return f.capabilities[cap]
}

// EnabledCapabilities returns the requested capabilities in stable order.
func (f FeatureFlags) EnabledCapabilities() []Capability {
	var out []Capability
	for _, cap := range AllCapabilities() {
		if f.capabilities[cap] {
			out = append(out, cap)
		}
	}
	return out
}

// OptionalCapabilities returns the set configured as optional for readiness.
// Entries were validated against the closed capability set at load time.
func (c *Config) OptionalCapabilities() map[Capability]bool {
	out := make(map[Capability]bool, len(c.Readiness.Optional))
	for _, name := range c.Readiness.Optional {
		out[Capability(name)] = true
	}
	return out
}
