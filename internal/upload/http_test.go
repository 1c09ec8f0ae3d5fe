package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/adilet/vaultdrive/internal/identity"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const httpTestSecret = "upload-http-test-secret"

type staticResolver struct {
	ownerID uuid.UUID
}

func (r *staticResolver) Resolve(ctx context.Context, subject string) (uuid.UUID, error) {
	return r.ownerID, nil
}

func newTestRouter(fx *coordinatorFixture) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	v1 := router.Group("/v1")
	v1.Use(identity.Middleware(httpTestSecret, "", &staticResolver{ownerID: fx.ownerID}))
	RegisterRoutes(v1, fx.service)
	return router
}

func signTestToken(t *testing.T) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "user-123",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte(httpTestSecret))
	require.NoError(t, err)
	return signed
}

func doJSON(t *testing.T, router *gin.Engine, token, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func putChunk(t *testing.T, router *gin.Engine, token, uploadID, storageKey string, partIndex, totalParts int, chunk []byte) *httptest.ResponseRecorder {
	t.Helper()
	path := fmt.Sprintf("/v1/uploads/%s/parts/%d?total_parts=%d&storage_key=%s", uploadID, partIndex, totalParts, storageKey)
	req := httptest.NewRequest(http.MethodPut, path, bytes.NewReader(chunk))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestUploadHTTPLifecycle(t *testing.T) {
	fx := newCoordinatorFixture(1 << 30)
	router := newTestRouter(fx)
	token := signTestToken(t)

	rec := doJSON(t, router, token, http.MethodPost, "/v1/uploads", gin.H{
		"file_name":     "album.zip",
		"relative_path": "backups/2024/album.zip",
		"declared_size": 9,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var initResp InitResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &initResp))
	require.NotEmpty(t, initResp.UploadID)
	require.NotEmpty(t, initResp.StorageKey)

	for i, chunk := range [][]byte{[]byte("aaa"), []byte("bbb"), []byte("ccc")} {
		rec := putChunk(t, router, token, initResp.UploadID, initResp.StorageKey, i, 3, chunk)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	rec = doJSON(t, router, token, http.MethodGet, "/v1/uploads/"+initResp.UploadID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var status struct {
		Status   string `json:"status"`
		Received int    `json:"received_parts"`
		Total    int    `json:"total_parts"`
		Progress int    `json:"progress"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "uploading", status.Status)
	assert.Equal(t, 3, status.Received)
	assert.Equal(t, 100, status.Progress)

	rec = doJSON(t, router, token, http.MethodPost, "/v1/uploads/"+initResp.UploadID+"/complete", gin.H{
		"storage_key": initResp.StorageKey,
		"total_parts": 3,
		"mime_type":   "application/zip",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var created struct {
		ID   uuid.UUID `json:"id"`
		Name string    `json:"name"`
		Kind string    `json:"kind"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "album.zip", created.Name)
	assert.Equal(t, "file", created.Kind)
	assert.Equal(t, "aaabbbccc", string(fx.store.objects[initResp.StorageKey]))
}

func TestUploadHTTPQuotaRejected(t *testing.T) {
	fx := newCoordinatorFixture(50)
	router := newTestRouter(fx)
	token := signTestToken(t)

	rec := doJSON(t, router, token, http.MethodPost, "/v1/uploads", gin.H{
		"file_name":     "too-big.bin",
		"declared_size": 51,
	})
	require.Equal(t, http.StatusInsufficientStorage, rec.Code)

	var resp struct {
		Required  int64 `json:"required_bytes"`
		Available int64 `json:"available_bytes"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(51), resp.Required)
	assert.Equal(t, int64(50), resp.Available)
}

func TestUploadHTTPIncompleteComplete(t *testing.T) {
	fx := newCoordinatorFixture(1 << 30)
	router := newTestRouter(fx)
	token := signTestToken(t)

	rec := doJSON(t, router, token, http.MethodPost, "/v1/uploads", gin.H{
		"file_name":     "gap.bin",
		"declared_size": 6,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var initResp InitResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &initResp))

	rec = putChunk(t, router, token, initResp.UploadID, initResp.StorageKey, 0, 2, []byte("aaa"))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, token, http.MethodPost, "/v1/uploads/"+initResp.UploadID+"/complete", gin.H{
		"storage_key": initResp.StorageKey,
		"total_parts": 2,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "received_parts")
}

func TestUploadHTTPAbortAndNotFound(t *testing.T) {
	fx := newCoordinatorFixture(1 << 30)
	router := newTestRouter(fx)
	token := signTestToken(t)

	rec := doJSON(t, router, token, http.MethodPost, "/v1/uploads", gin.H{
		"file_name":     "drop.bin",
		"declared_size": 4,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var initResp InitResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &initResp))

	rec = doJSON(t, router, token, http.MethodDelete, "/v1/uploads/"+initResp.UploadID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = putChunk(t, router, token, "mpu-does-not-exist", "nope", 0, 1, []byte("x"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUploadHTTPRequiresToken(t *testing.T) {
	fx := newCoordinatorFixture(1 << 30)
	router := newTestRouter(fx)

	req := httptest.NewRequest(http.MethodPost, "/v1/uploads", bytes.NewReader([]byte("{}")))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
