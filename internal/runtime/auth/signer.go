package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/smithy-go"

	"github.com/drblury/opflow/internal/runtime/httpapi"
)

// Signer applies an identity to an outgoing request.
type Signer interface {
	SignRequest(ctx context.Context, b *httpapi.RequestBuilder, identity Identity, props smithy.Properties) error
}

// SignerFunc adapts a function to Signer.
type SignerFunc func(ctx context.Context, b *httpapi.RequestBuilder, identity Identity, props smithy.Properties) error

func (f SignerFunc) SignRequest(ctx context.Context, b *httpapi.RequestBuilder, identity Identity, props smithy.Properties) error {
	return f(ctx, b, identity, props)
}

const (
	unsignedPayload  = "UNSIGNED-PAYLOAD"
	emptyPayloadHash = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
)

var (
	ErrUnexpectedIdentity  = errors.New("opflow: unexpected identity type for scheme")
	ErrMissingSigningName  = errors.New("opflow: signing name is not set")
	ErrMissingSignRegion   = errors.New("opflow: signing region is not set")
	ErrInsecureBearerToken = errors.New("opflow: bearer tokens are only sent over https")
)

// SigV4Signer wraps the SDK SigV4 HTTP signer.
type SigV4Signer struct {
	signer *v4.Signer
	now    func() time.Time
}

func NewSigV4Signer(optFns ...func(*v4.SignerOptions)) *SigV4Signer {
	return &SigV4Signer{signer: v4.NewSigner(optFns...), now: time.Now}
}

func (s *SigV4Signer) SignRequest(ctx context.Context, b *httpapi.RequestBuilder, identity Identity, props smithy.Properties) error {
	creds, ok := identity.(*AWSCredentialsIdentity)
	if !ok {
		return fmt.Errorf("%w: %T", ErrUnexpectedIdentity, identity)
	}
	name, ok := GetSigningName(&props)
	if !ok {
		return ErrMissingSigningName
	}
	region, ok := GetSigningRegion(&props)
	if !ok {
		return ErrMissingSignRegion
	}
	hash, err := payloadHash(b.Body(), GetUnsignedPayload(&props))
	if err != nil {
		return err
	}
	signingTime := s.now()
	if t, ok := GetSigningTime(&props); ok {
		signingTime = t
	}

	req, err := b.HTTPRequest(ctx)
	if err != nil {
		return err
	}
	if err := s.signer.SignHTTP(ctx, creds.Credentials, req, hash, name, region, signingTime); err != nil {
		return err
	}
	b.WithHeaders(req.Header)
	return nil
}

func payloadHash(body httpapi.Body, unsigned bool) (string, error) {
	switch {
	case unsigned:
		return unsignedPayload, nil
	case body.IsNone():
		return emptyPayloadHash, nil
	case body.Kind() == httpapi.BodyData:
		sum := sha256.Sum256(body.Data())
		return hex.EncodeToString(sum[:]), nil
	case body.Seekable():
		h := sha256.New()
		if _, err := io.Copy(h, body.Reader()); err != nil {
			return "", err
		}
		if err := body.Rewind(); err != nil {
			return "", err
		}
		return hex.EncodeToString(h.Sum(nil)), nil
	default:
		return unsignedPayload, nil
	}
}

type bearerSigner struct{}

func (bearerSigner) SignRequest(_ context.Context, b *httpapi.RequestBuilder, identity Identity, _ smithy.Properties) error {
	tok, ok := identity.(*BearerTokenIdentity)
	if !ok {
		return fmt.Errorf("%w: %T", ErrUnexpectedIdentity, identity)
	}
	if b.Scheme() != "https" {
		return ErrInsecureBearerToken
	}
	b.WithHeader("Authorization", "Bearer "+tok.Token.Value)
	return nil
}

type apiKeySigner struct{}

func (apiKeySigner) SignRequest(_ context.Context, b *httpapi.RequestBuilder, identity Identity, props smithy.Properties) error {
	key, ok := identity.(*APIKeyIdentity)
	if !ok {
		return fmt.Errorf("%w: %T", ErrUnexpectedIdentity, identity)
	}
	name, ok := GetAPIKeyName(&props)
	if !ok {
		name = "X-Api-Key"
	}
	if GetAPIKeyLocation(&props) == APIKeyInQuery {
		b.Query().Set(name, key.Key)
		return nil
	}
	value := key.Key
	if prefix := GetAPIKeyScheme(&props); prefix != "" {
		value = prefix + " " + value
	}
	b.WithHeader(name, value)
	return nil
}

type noopSigner struct{}

func (noopSigner) SignRequest(context.Context, *httpapi.RequestBuilder, Identity, smithy.Properties) error {
	return nil
}

type unsupportedSigner struct{ scheme string }

func (s unsupportedSigner) SignRequest(context.Context, *httpapi.RequestBuilder, Identity, smithy.Properties) error {
	return fmt.Errorf("opflow: no signer is available for %s", s.scheme)
}
