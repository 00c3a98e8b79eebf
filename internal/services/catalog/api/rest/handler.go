package rest

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ppoulin/vitrine/internal/auth/session"
	apperrors "github.com/ppoulin/vitrine/internal/platform/errors"
	"github.com/ppoulin/vitrine/internal/services/catalog/storage"
	"github.com/ppoulin/vitrine/internal/services/catalog/storage/assets"
)

// AdminCredentials gate the login endpoint.
type AdminCredentials struct {
	Username string
	Password string
}

// Handler serves the catalog REST surface.
type Handler struct {
	products storage.ProductStore
	pdfs     storage.WeeklyPDFStore
	assets   *assets.Store
	session  session.Config
	admin    AdminCredentials
	tracer   trace.Tracer
}

// NewHandler builds the HTTP handler for the catalog API.
func NewHandler(products storage.ProductStore, pdfs storage.WeeklyPDFStore, blobStore *assets.Store, sessionCfg session.Config, admin AdminCredentials) http.Handler {
	h := &Handler{
		products: products,
		pdfs:     pdfs,
		assets:   blobStore,
		session:  sessionCfg,
		admin:    admin,
		tracer:   otel.Tracer("vitrine/catalog"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", h.handleHealth)

	mux.HandleFunc("POST /api/auth/login", h.handleLogin)
	mux.HandleFunc("GET /api/auth/session", h.handleSession)

	mux.HandleFunc("GET /api/products", h.handleListProducts)
	mux.HandleFunc("GET /api/products/last-modified", h.handleProductsLastModified)
	mux.HandleFunc("POST /api/products", h.requireAdmin(h.handleCreateProduct))
	mux.HandleFunc("PUT /api/products/{id}", h.requireAdmin(h.handleUpdateProduct))
	mux.HandleFunc("DELETE /api/products/{id}", h.requireAdmin(h.handleDeleteProduct))

	mux.HandleFunc("GET /api/pdfs", h.handleListPDFs)
	mux.HandleFunc("GET /api/pdfs/last-modified", h.handlePDFsLastModified)
	mux.HandleFunc("POST /api/pdfs", h.requireAdmin(h.handleCreatePDF))
	mux.HandleFunc("DELETE /api/pdfs/{id}", h.requireAdmin(h.handleDeletePDF))

	mux.HandleFunc("POST /api/assets/{kind}", h.requireAdmin(h.handleUploadAsset))
	mux.HandleFunc("GET /assets/{kind}/{name}", h.handleGetAsset)

	return h.traced(mux)
}

// traced wraps the mux with a per-request span.
func (h *Handler) traced(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := h.tracer.Start(r.Context(), r.Method+" "+r.URL.Path,
			trace.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.target", r.URL.Path),
			),
		)
		defer span.End()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, map[string]string{"status": "ok"})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expiresAt"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	userOK := subtle.ConstantTimeCompare([]byte(req.Username), []byte(h.admin.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(req.Password), []byte(h.admin.Password)) == 1
	if h.admin.Username == "" || !userOK || !passOK {
		writeError(w, apperrors.New(apperrors.CodeAuthInvalidCredentials, "invalid credentials"))
		return
	}

	token, err := session.Issue(h.session, req.Username)
	if err != nil {
		writeError(w, err)
		return
	}
	claims, err := session.Verify(h.session, token)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, loginResponse{
		Token:     token,
		ExpiresAt: claims.ExpiresAt.UnixMilli(),
	})
}

type sessionResponse struct {
	Subject   string `json:"subject"`
	ExpiresAt int64  `json:"expiresAt"`
}

func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request) {
	claims, err := h.verifyRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, sessionResponse{
		Subject:   claims.Subject,
		ExpiresAt: claims.ExpiresAt.UnixMilli(),
	})
}

// requireAdmin rejects requests without a valid session token.
func (h *Handler) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := h.verifyRequest(r); err != nil {
			writeError(w, err)
			return
		}
		next(w, r)
	}
}

func (h *Handler) verifyRequest(r *http.Request) (session.Claims, error) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return session.Claims{}, apperrors.New(apperrors.CodeAuthTokenInvalid, "missing bearer token")
	}
	return session.Verify(h.session, token)
}

// lastModifiedResponse reports the collection's newest change for cheap
// staleness probes. LastModified is null when the collection is empty.
type lastModifiedResponse struct {
	LastModified *int64 `json:"lastModified"`
}
