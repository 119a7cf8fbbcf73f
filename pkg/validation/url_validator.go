package validation

import (
	"net/url"
	"strings"

	apperrors "go-image-forensics/internal/errors"
)

const (
	// blobScheme is the Azure Blob Storage reference scheme (azblob://container/blob)
	blobScheme = "azblob"

	maxURLLength = 2048
)

// URLValidator decides which image references the service may fetch
type URLValidator struct {
	allowedSchemes []string
	allowedHosts   []string
}

// NewURLValidator accepts any http or https host
func NewURLValidator() *URLValidator {
	return NewURLValidatorWithOptions([]string{"http", "https"}, nil)
}

// NewURLValidatorWithOptions creates a URL validator with custom options.
// The host allowlist applies to network schemes only; for azblob references
// the host part names a container. An empty allowlist admits every host.
func NewURLValidatorWithOptions(schemes []string, hosts []string) *URLValidator {
	return &URLValidator{
		allowedSchemes: schemes,
		allowedHosts:   hosts,
	}
}

// AllowBlobReferences returns a copy that also accepts azblob:// references
func (v *URLValidator) AllowBlobReferences() *URLValidator {
	schemes := append(append([]string{}, v.allowedSchemes...), blobScheme)
	return NewURLValidatorWithOptions(schemes, v.allowedHosts)
}

// ValidateImageURL returns a validation AppError describing the first problem with ref
func (v *URLValidator) ValidateImageURL(ref string) error {
	ref = strings.TrimSpace(ref)
	switch {
	case ref == "":
		return apperrors.NewValidationError("URL cannot be empty", nil)
	case len(ref) > maxURLLength:
		return apperrors.NewValidationError("URL is too long", nil)
	}

	u, err := url.Parse(ref)
	if err != nil {
		return apperrors.NewValidationError("Invalid URL format", err)
	}

	scheme := strings.ToLower(u.Scheme)
	if !v.schemeAllowed(scheme) {
		return apperrors.NewValidationError("URL scheme not allowed", nil).WithDetails(scheme)
	}
	if u.Host == "" {
		return apperrors.NewValidationError("URL must have a valid host", nil)
	}
	if u.User != nil {
		return apperrors.NewValidationError("URL must not embed credentials", nil)
	}

	if scheme == blobScheme {
		if strings.Trim(u.Path, "/") == "" {
			return apperrors.NewValidationError("blob reference must name a blob", nil)
		}
		return nil
	}

	if !v.hostAllowed(u.Hostname()) {
		return apperrors.NewValidationError("URL host not allowed", nil).WithDetails(u.Hostname())
	}
	return nil
}

func (v *URLValidator) schemeAllowed(scheme string) bool {
	for _, allowed := range v.allowedSchemes {
		if strings.EqualFold(scheme, allowed) {
			return true
		}
	}
	return false
}

func (v *URLValidator) hostAllowed(host string) bool {
	if len(v.allowedHosts) == 0 {
		return true
	}
	for _, allowed := range v.allowedHosts {
		if strings.EqualFold(host, strings.TrimSpace(allowed)) {
			return true
		}
	}
	return false
}
