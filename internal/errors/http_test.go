package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/synceddb/syncstore/internal/model"
	"go.uber.org/zap"
)

func TestStoreError_WrappingAndCodes(t *testing.T) {
	cause := fmt.Errorf("disk on fire")
	err := StorageIO("write failed", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, ErrCodeStorageIO, GetCode(err))
	assert.Contains(t, err.Error(), "disk on fire")

	wrapped := fmt.Errorf("op: %w", NotFound("memos", "a"))
	assert.Equal(t, ErrCodeNotFound, GetCode(wrapped))

	assert.Equal(t, ErrCodeInternal, GetCode(fmt.Errorf("plain")))
}

func TestVersionConflict_CarriesCurrentRecord(t *testing.T) {
	cur := &model.Record{ID: "a", Version: 2}
	err := VersionConflict("memos", "a", 5, cur)

	se, ok := AsStoreError(err)
	require.True(t, ok)
	assert.Equal(t, ErrCodeVersionConflict, se.Code)
	assert.Same(t, cur, se.Current)
}

func TestHandler_HandleError(t *testing.T) {
	h := NewHandler(zap.NewNop())

	cases := []struct {
		err        error
		wantStatus int
		wantCode   HTTPCode
	}{
		{InvalidName("store", "a b"), http.StatusBadRequest, HTTPCodeInvalidName},
		{MalformedInput("bad body", nil), http.StatusBadRequest, HTTPCodeInvalidRequest},
		{AlreadyExists("memos", "a"), http.StatusConflict, HTTPCodeAlreadyExists},
		{NotFound("memos", "a"), http.StatusNotFound, HTTPCodeNotFound},
		{StorageIO("io", nil), http.StatusInternalServerError, HTTPCodeInternalError},
		{fmt.Errorf("surprise"), http.StatusInternalServerError, HTTPCodeInternalError},
	}

	for _, tc := range cases {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/memos/a", nil)
		r.Header.Set("X-Request-ID", "rid-1")

		h.HandleError(w, r, tc.err)

		assert.Equal(t, tc.wantStatus, w.Code, "error %v", tc.err)

		var resp ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "error", resp.Status)
		assert.Equal(t, tc.wantCode, resp.ErrorCode, "error %v", tc.err)
		assert.Equal(t, "rid-1", resp.RequestID)
	}
}

func TestHandler_InternalErrorHidesDetails(t *testing.T) {
	h := NewHandler(zap.NewNop())

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/memos/a", nil)
	h.HandleError(w, r, StorageIO("write failed", fmt.Errorf("/var/data/secret path")))

	assert.NotContains(t, w.Body.String(), "secret")
}
