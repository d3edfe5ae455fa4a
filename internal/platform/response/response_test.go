package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/motobiketours/service-booking/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func decode(t *testing.T, w *httptest.ResponseRecorder) Response {
	t.Helper()
	var r Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &r))
	return r
}

func TestError_MapsKinds(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{domain.NewNotFoundError("booking", "1"), http.StatusNotFound, "BOOKING_NOT_FOUND"},
		{domain.NewValidationError("bad"), http.StatusBadRequest, "VALIDATION_ERROR"},
		{domain.NewForbiddenError("NOT_BOOKING_OWNER", "no"), http.StatusForbidden, "NOT_BOOKING_OWNER"},
		{domain.NewInvalidStateError("BOOKING_ALREADY_CANCELLED", "no"), http.StatusConflict, "BOOKING_ALREADY_CANCELLED"},
		{domain.NewInvalidSignatureError("bad sig"), http.StatusBadRequest, "INVALID_SIGNATURE"},
		{domain.NewNotImplementedError("momo"), http.StatusNotImplemented, "NOT_IMPLEMENTED"},
		{domain.NewUpstreamUnavailableError("down", errors.New("x")), http.StatusServiceUnavailable, "UPSTREAM_UNAVAILABLE"},
		{domain.NewConflictError("race"), http.StatusConflict, "CONCURRENT_MODIFICATION"},
	}

	for _, tc := range cases {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		Error(c, tc.err)

		assert.Equal(t, tc.status, w.Code, tc.code)
		body := decode(t, w)
		assert.False(t, body.Success)
		require.NotNil(t, body.Error)
		assert.Equal(t, tc.code, body.Error.Code)
	}
}

func TestError_HidesUnknownErrors(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	Error(c, errors.New("pq: connection refused"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	body := decode(t, w)
	assert.Equal(t, "INTERNAL_ERROR", body.Error.Code)
	assert.NotContains(t, w.Body.String(), "pq:")
}

func TestPaginated(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	Paginated(c, []string{"a", "b"}, 21, 2, 10)

	body := decode(t, w)
	require.NotNil(t, body.Meta)
	assert.Equal(t, 3, body.Meta.TotalPages)
	assert.Equal(t, int64(21), body.Meta.Total)
}
