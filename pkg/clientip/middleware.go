package clientip

import "net/http"

// Middleware stores the client IP resolved by GetIP in the request context.
func Middleware(next http.Handler) http.Handler {
	return NewResolver().Middleware(next)
}

// Middleware stores the resolved client IP in the request context.
func (res *Resolver) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := SetIPToContext(r.Context(), res.Resolve(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
