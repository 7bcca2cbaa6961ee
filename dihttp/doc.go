/*
Package dihttp bridges an HTTP request pipeline to a [di.Provider] with full
lifetime semantics.

[RequestScopeMiddleware] opens one [di.Scope] per inbound request, attaches it
to the request context, and guarantees the scope is closed exactly once after
the response is produced, whatever the exit path. [Handle] resolves a
handler's declared dependencies from that scope before the handler body runs.

Example:

	package main

	import (
		"net/http"

		"github.com/jmreid/di-bridge"
		"github.com/jmreid/di-bridge/dihttp"
	)

	func main() {
		p, err := di.NewProvider(
			di.WithService(NewRepo, di.As[Repo](), di.Scoped),
		)
		if err != nil {
			panic(err)
		}

		type deps struct {
			Repo Repo
		}

		mux := http.NewServeMux()
		mux.Handle("GET /things", dihttp.Handle(func(w http.ResponseWriter, r *http.Request, d deps) {
			d.Repo.List(r.Context())
		}))

		scopes := dihttp.RequestScopeMiddleware(p)
		http.ListenAndServe(":8080", scopes(mux))
	}

Handlers that prefer to resolve imperatively can use
[github.com/jmreid/di-bridge/dicontext] against the request context instead of
[Handle]; the scope is the same.
*/
package dihttp
