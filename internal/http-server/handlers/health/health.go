// Package health serves the liveness endpoint.
package health

import (
	"net/http"

	"github.com/go-chi/render"
)

type Info struct {
	Service string `json:"service"`
	Version string `json:"version"`
	Status  string `json:"status"`
}

// New reports service identity and liveness.
func New(version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, Info{
			Service: "isp-portal",
			Version: version,
			Status:  "ok",
		})
	}
}
