package protocol

import "context"

// requestMetaKey is the context key for request metadata.
type requestMetaKey struct{}

// RequestMeta holds transport-level metadata associated with a request,
// typically HTTP headers surfaced to middleware.
type RequestMeta map[string]string

// ContextWithRequestMeta returns a new context with the request metadata attached.
func ContextWithRequestMeta(ctx context.Context, meta RequestMeta) context.Context {
	return context.WithValue(ctx, requestMetaKey{}, meta)
}

// RequestMetaFromContext returns the request metadata from the context, or
// nil if none is present.
func RequestMetaFromContext(ctx context.Context) RequestMeta {
	if meta, ok := ctx.Value(requestMetaKey{}).(RequestMeta); ok {
		return meta
	}
	return nil
}

// GetRequestMeta returns a single metadata value from the context, or the
// empty string if the key is absent.
func GetRequestMeta(ctx context.Context, key string) string {
	meta := RequestMetaFromContext(ctx)
	if meta == nil {
		return ""
	}
	return meta[key]
}

// SetRequestMeta returns a context whose metadata includes the given pair.
// The existing map is copied, never mutated.
func SetRequestMeta(ctx context.Context, key, value string) context.Context {
	meta := RequestMetaFromContext(ctx)
	next := make(RequestMeta, len(meta)+1)
	for k, v := range meta {
		next[k] = v
	}
	next[key] = value
	return ContextWithRequestMeta(ctx, next)
}
