package auth

import (
	"time"

	"github.com/aws/smithy-go"
)

type (
	signingNameKey     struct{}
	signingRegionKey   struct{}
	unsignedPayloadKey struct{}
	signingTimeKey     struct{}
	apiKeyNameKey      struct{}
	apiKeyLocationKey  struct{}
	apiKeySchemeKey    struct{}
)

func GetSigningName(p *smithy.Properties) (string, bool) {
	v, ok := p.Get(signingNameKey{}).(string)
	return v, ok && v != ""
}

func SetSigningName(p *smithy.Properties, name string) { p.Set(signingNameKey{}, name) }

func GetSigningRegion(p *smithy.Properties) (string, bool) {
	v, ok := p.Get(signingRegionKey{}).(string)
	return v, ok && v != ""
}

func SetSigningRegion(p *smithy.Properties, region string) { p.Set(signingRegionKey{}, region) }

// GetUnsignedPayload reports whether SigV4 should skip hashing the body.
func GetUnsignedPayload(p *smithy.Properties) bool {
	v, _ := p.Get(unsignedPayloadKey{}).(bool)
	return v
}

func SetUnsignedPayload(p *smithy.Properties, unsigned bool) { p.Set(unsignedPayloadKey{}, unsigned) }

// GetSigningTime returns a fixed signing time, used by tests.
func GetSigningTime(p *smithy.Properties) (time.Time, bool) {
	v, ok := p.Get(signingTimeKey{}).(time.Time)
	return v, ok
}

func SetSigningTime(p *smithy.Properties, t time.Time) { p.Set(signingTimeKey{}, t) }

// APIKeyLocation says where an API key travels.
type APIKeyLocation int

const (
	APIKeyInHeader APIKeyLocation = iota
	APIKeyInQuery
)

func GetAPIKeyName(p *smithy.Properties) (string, bool) {
	v, ok := p.Get(apiKeyNameKey{}).(string)
	return v, ok && v != ""
}

func SetAPIKeyName(p *smithy.Properties, name string) { p.Set(apiKeyNameKey{}, name) }

func GetAPIKeyLocation(p *smithy.Properties) APIKeyLocation {
	v, _ := p.Get(apiKeyLocationKey{}).(APIKeyLocation)
	return v
}

func SetAPIKeyLocation(p *smithy.Properties, loc APIKeyLocation) { p.Set(apiKeyLocationKey{}, loc) }

// GetAPIKeyScheme returns the optional header value prefix, e.g. "ApiKey".
func GetAPIKeyScheme(p *smithy.Properties) string {
	v, _ := p.Get(apiKeySchemeKey{}).(string)
	return v
}

func SetAPIKeyScheme(p *smithy.Properties, scheme string) { p.Set(apiKeySchemeKey{}, scheme) }
