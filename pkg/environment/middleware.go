package environment

import "net/http"

// Middleware attaches env to every request context, so environment based
// feature strategies can see it.
func Middleware(env Environment) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := WithContext(r.Context(), env.String())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
