package relay

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	farmgate "github.com/farmsight/farmgate"
	"github.com/farmsight/farmgate/credstore"
	"github.com/farmsight/farmgate/identity"
)

type tokenBody struct {
	Token string `json:"token"`
}

type validateResponse struct {
	User  *identity.Profile `json:"user"`
	Token string            `json:"token"`
}

type errorResponse struct {
	Message string `json:"message"`
}

// Handler builds the relay router. Mount it at the configured base path:
//
//	mux.Mount(engine.Relay().BasePath, relay.Handler(engine))
func Handler(engine *farmgate.Engine) http.Handler {
	r := chi.NewRouter()

	if origins := engine.Relay().AllowedOrigins; len(origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   origins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	h := &handlers{engine: engine}
	r.Post("/cookie", h.setCookie)
	r.Get("/token", h.getToken)
	r.Post("/validate", h.validate)

	return r
}

type handlers struct {
	engine *farmgate.Engine
}

// setCookie mirrors a token from the request body into the cookie medium.
// Setting the same token twice is a no-op by construction.
func (h *handlers) setCookie(w http.ResponseWriter, r *http.Request) {
	var body tokenBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Token == "" {
		h.engine.ObserveRelay(farmgate.RelayCookie, false)
		writeError(w, http.StatusBadRequest, "token is required")
		return
	}

	credstore.SetTokenCookie(w, body.Token, h.engine.CookieOptions())
	h.engine.ObserveRelay(farmgate.RelayCookie, true)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// getToken reads the token cookie back for clients that cannot reach it
// directly.
func (h *handlers) getToken(w http.ResponseWriter, r *http.Request) {
	token, ok := credstore.TokenFromRequest(r, h.engine.CookieOptions().Name)
	if !ok {
		h.engine.ObserveRelay(farmgate.RelayToken, false)
		writeError(w, http.StatusUnauthorized, "no token")
		return
	}

	h.engine.ObserveRelay(farmgate.RelayToken, true)
	writeJSON(w, http.StatusOK, tokenBody{Token: token})
}

// validate forwards a token to the identity service and answers with its
// verdict. The token comes from the body, falling back to the cookie.
func (h *handlers) validate(w http.ResponseWriter, r *http.Request) {
	var body tokenBody
	_ = json.NewDecoder(r.Body).Decode(&body)
	token := body.Token
	if token == "" {
		token, _ = credstore.TokenFromRequest(r, h.engine.CookieOptions().Name)
	}
	if token == "" {
		h.engine.ObserveRelay(farmgate.RelayValidate, false)
		writeError(w, http.StatusUnauthorized, "no token")
		return
	}

	profile, err := h.engine.Identity().Profile(r.Context(), token)
	if err != nil {
		h.engine.ObserveRelay(farmgate.RelayValidate, false)
		var apiErr *identity.APIError
		if errors.As(err, &apiErr) {
			writeError(w, apiErr.StatusCode, apiErr.Message)
			return
		}
		writeError(w, http.StatusBadGateway, "identity service unreachable")
		return
	}

	h.engine.ObserveRelay(farmgate.RelayValidate, true)
	writeJSON(w, http.StatusOK, validateResponse{User: profile, Token: token})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Message: message})
}
