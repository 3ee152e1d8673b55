package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keyhaven/internal/document"
	"keyhaven/internal/escrow/seal"
	"keyhaven/internal/recovery/service"
	"keyhaven/internal/recovery/store"
	"keyhaven/pkg/platform/middleware/auth"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// vendorDoc is a minimal e-KYC export that passes structural validation.
const vendorDoc = `{
	"KycRes": {
		"UidData": {
			"@uid": "123456789012",
			"Poi": {"@name": "PRIYA SHARMA", "@dob": "15/08/1990", "@gender": "F"}
		}
	},
	"meta": {"issuer": "uidai", "generatedDate": "2024-05-14T10:00:00Z"}
}`

type fixture struct {
	router    *chi.Mux
	deliverer *captureDeliverer
}

type captureDeliverer struct {
	bodies []string
	fail   bool
}

func (d *captureDeliverer) Deliver(_ context.Context, _, _, body string) error {
	if d.fail {
		return assert.AnError
	}
	d.bodies = append(d.bodies, body)
	return nil
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	sealer, err := seal.New(bytes.Repeat([]byte{0x01}, seal.MasterKeySize))
	require.NoError(t, err)

	deliverer := &captureDeliverer{}
	svc, err := service.New(store.NewMemory(), sealer, deliverer)
	require.NoError(t, err)

	h := New(svc, document.New(document.DefaultPolicy()), testLogger())

	router := chi.NewRouter()
	router.Route("/v1", func(r chi.Router) {
		h.Register(r)
		// Stand-in for the JWT middleware: stamp a fixed account.
		r.Group(func(pr chi.Router) {
			pr.Use(func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
					ctx := auth.WithAccountEmail(req.Context(), "user@example.com")
					next.ServeHTTP(w, req.WithContext(ctx))
				})
			})
			h.RegisterProtected(pr)
		})
	})
	return &fixture{router: router, deliverer: deliverer}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) escrow(t *testing.T) {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/v1/escrow", map[string]any{
		"attributes": map[string]string{
			"full_name":       "PRIYA SHARMA",
			"identity_number": "123456789012",
			"birth_date":      "15/08/1990",
			"gender":          "Female",
		},
		"vault_key": "vk-secret-1",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error
}

func TestExtractEndpoint(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/v1/document/extract", map[string]any{
		"document": json.RawMessage(vendorDoc),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp ExtractResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "PRIYA SHARMA", resp.Attributes.FullName)
	assert.Equal(t, "123456789012", resp.Attributes.IdentityNumber)
	assert.Equal(t, "Female", resp.Attributes.Gender)
}

func TestExtractEndpointMultipart(t *testing.T) {
	f := newFixture(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("document", "kyc.json")
	require.NoError(t, err)
	_, err = part.Write([]byte(vendorDoc))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/document/extract", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp ExtractResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "123456789012", resp.Attributes.IdentityNumber)
}

func TestExtractEndpointRejectsShapelessDocument(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/v1/document/extract", map[string]any{
		"document": map[string]any{"padding": bytes.Repeat([]byte("x"), 120)},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "structural_rejection", decodeError(t, rec))
}

func TestEscrowCreateThenUpdate(t *testing.T) {
	f := newFixture(t)
	f.escrow(t)

	rec := f.do(t, http.MethodPost, "/v1/escrow", map[string]any{
		"attributes": map[string]string{
			"full_name":       "PRIYA SHARMA",
			"identity_number": "123456789012",
		},
		"vault_key": "vk-secret-2",
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp EscrowResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "updated", resp.Result)
}

func TestEscrowRejectsForeignEmail(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/v1/escrow", map[string]any{
		"email": "someoneelse@example.com",
		"attributes": map[string]string{
			"full_name":       "PRIYA SHARMA",
			"identity_number": "123456789012",
		},
		"vault_key": "vk",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestVerifyWithAttributes(t *testing.T) {
	f := newFixture(t)
	f.escrow(t)

	rec := f.do(t, http.MethodPost, "/v1/recovery/verify", map[string]any{
		"email": "user@example.com",
		"attributes": map[string]string{
			"full_name":       "Priya Sharma",
			"identity_number": "123456789012",
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp VerifyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "matched", resp.Outcome)
	assert.Equal(t, "sent", resp.Delivery)

	require.Len(t, f.deliverer.bodies, 1)
	assert.Contains(t, f.deliverer.bodies[0], "vk-secret-1")
	assert.NotContains(t, rec.Body.String(), "vk-secret-1", "vault key never appears in the response")
}

func TestVerifyWithDocument(t *testing.T) {
	f := newFixture(t)
	f.escrow(t)

	rec := f.do(t, http.MethodPost, "/v1/recovery/verify", map[string]any{
		"email":    "user@example.com",
		"document": json.RawMessage(vendorDoc),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestVerifyOutcomeStatuses(t *testing.T) {
	f := newFixture(t)
	f.escrow(t)

	// Unknown email.
	rec := f.do(t, http.MethodPost, "/v1/recovery/verify", map[string]any{
		"email": "nobody@example.com",
		"attributes": map[string]string{
			"full_name":       "PRIYA SHARMA",
			"identity_number": "123456789012",
		},
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decodeError(t, rec))

	// Wrong identity number.
	wrong := map[string]any{
		"email": "user@example.com",
		"attributes": map[string]string{
			"full_name":       "PRIYA SHARMA",
			"identity_number": "999999999999",
		},
	}
	rec = f.do(t, http.MethodPost, "/v1/recovery/verify", wrong)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "mismatch", decodeError(t, rec))

	// Exhaust the window.
	for range 4 {
		f.do(t, http.MethodPost, "/v1/recovery/verify", wrong)
	}
	rec = f.do(t, http.MethodPost, "/v1/recovery/verify", wrong)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "rate_limited", decodeError(t, rec))
}

func TestVerifyDeliveryFailure(t *testing.T) {
	f := newFixture(t)
	f.escrow(t)
	f.deliverer.fail = true

	rec := f.do(t, http.MethodPost, "/v1/recovery/verify", map[string]any{
		"email": "user@example.com",
		"attributes": map[string]string{
			"full_name":       "PRIYA SHARMA",
			"identity_number": "123456789012",
		},
	})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "delivery_failure", decodeError(t, rec))
}

func TestVerifyRequiresExactlyOneSource(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/v1/recovery/verify", map[string]any{
		"email": "user@example.com",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/v1/recovery/verify", map[string]any{
		"email":      "user@example.com",
		"attributes": map[string]string{"full_name": "A", "identity_number": "123456789012"},
		"document":   json.RawMessage(vendorDoc),
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
