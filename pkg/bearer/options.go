package bearer

// DefaultScheme is the challenge token written into WWW-Authenticate and the
// token_type of sign-in payloads.
const DefaultScheme = "Bearer"

// Options tune the pipeline and the challenge responder. The zero value is
// not useful on its own; hosts normally fill it from app configuration.
type Options struct {
	// Scheme is the challenge token. Defaults to DefaultScheme when empty.
	Scheme string

	// IncludeErrorDetails controls whether classified error and
	// error_description fields are appended to the challenge header. Richer
	// diagnostics are safe here: these errors concern already-issued tokens,
	// not login attempts.
	IncludeErrorDetails bool

	// SaveToken attaches the raw token string to successful results so
	// downstream handlers can re-use it.
	SaveToken bool
}

func (o Options) scheme() string {
	if o.Scheme == "" {
		return DefaultScheme
	}
	return o.Scheme
}
