package api

import (
	"log"
	"net/http"
	"strings"

	"github.com/example/storefront/internal/api/middleware"
	"github.com/example/storefront/internal/auth"
)

type RouterConfig struct {
	Handlers      *Handlers
	AuthHandlers  *AuthHandlers
	JWTService    *auth.JWTService
	CurrentUserID middleware.CurrentUserID
	WebDir        string
}

func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()
	handlers := cfg.Handlers
	authHandlers := cfg.AuthHandlers

	requireAuth := middleware.AuthMiddleware(cfg.JWTService, cfg.CurrentUserID)
	optionalAuth := middleware.OptionalAuthMiddleware(cfg.JWTService)

	// Static files (web UI)
	if cfg.WebDir != "" {
		fs := http.FileServer(http.Dir(cfg.WebDir))
		mux.Handle("/", fs)
	}

	// Auth
	mux.HandleFunc("/auth/login", methods(map[string]http.HandlerFunc{
		http.MethodPost: authHandlers.Login,
	}))
	mux.HandleFunc("/auth/signup", methods(map[string]http.HandlerFunc{
		http.MethodPost: authHandlers.Signup,
	}))
	mux.Handle("/auth/logout", optionalAuth(methods(map[string]http.HandlerFunc{
		http.MethodPost: authHandlers.Logout,
	})))
	mux.Handle("/auth/me", requireAuth(methods(map[string]http.HandlerFunc{
		http.MethodGet: authHandlers.Me,
	})))
	mux.Handle("/auth/profile", requireAuth(methods(map[string]http.HandlerFunc{
		http.MethodPatch: authHandlers.UpdateProfile,
	})))

	// Catalog
	mux.HandleFunc("/products", methods(map[string]http.HandlerFunc{
		http.MethodGet: handlers.GetProducts,
	}))
	mux.HandleFunc("/products/", methods(map[string]http.HandlerFunc{
		http.MethodGet: handlers.GetProduct,
	}))
	mux.HandleFunc("/categories", methods(map[string]http.HandlerFunc{
		http.MethodGet: handlers.GetCategories,
	}))

	// Cart
	mux.HandleFunc("/cart", methods(map[string]http.HandlerFunc{
		http.MethodGet:    handlers.GetCart,
		http.MethodDelete: handlers.ClearCart,
	}))
	mux.HandleFunc("/cart/items", methods(map[string]http.HandlerFunc{
		http.MethodPost: handlers.AddToCart,
	}))
	mux.HandleFunc("/cart/items/", methods(map[string]http.HandlerFunc{
		http.MethodPatch:  handlers.UpdateCartItem,
		http.MethodDelete: handlers.RemoveFromCart,
	}))

	// Orders
	mux.Handle("/orders", requireAuth(methods(map[string]http.HandlerFunc{
		http.MethodGet:  handlers.GetOrders,
		http.MethodPost: handlers.PlaceOrder,
	})))

	mux.Handle("/orders/", requireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/orders/"), "/")
		parts := strings.Split(rest, "/")
		switch {
		case rest == "live" && r.Method == http.MethodGet:
			handlers.GetLiveOrders(w, r)
		case rest == "refresh" && r.Method == http.MethodPost:
			handlers.RefreshOrders(w, r)
		case rest == "stream" && r.Method == http.MethodGet:
			handlers.StreamOrders(w, r)
		case rest == "stats" && r.Method == http.MethodGet:
			handlers.GetOrderStats(w, r)
		case len(parts) == 1 && parts[0] != "" && r.Method == http.MethodGet:
			handlers.GetOrder(w, r)
		case len(parts) == 2 && parts[1] == "status" && r.Method == http.MethodPatch:
			handlers.UpdateOrderStatus(w, r)
		case len(parts) == 2 && strings.HasPrefix(parts[1], "export.") && r.Method == http.MethodGet:
			handlers.ExportOrder(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})))

	return withLogging(mux)
}

// methods dispatches on the request method.
func methods(byMethod map[string]http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h, ok := byMethod[r.Method]; ok {
			h(w, r)
			return
		}
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Printf("[API] %s %s", r.Method, r.URL.Path)
		next.ServeHTTP(w, r)
	})
}
