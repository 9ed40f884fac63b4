package uploads

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"saintplus-client/internal/ingestion"
)

func TestTransferPutsRawBytesWithoutCredential(t *testing.T) {
	var gotMethod, gotType, gotAuth string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotType = r.Header.Get("Content-Type")
		gotAuth = r.Header.Get("Authorization")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	err := NewTransfer(srv.Client()).Transfer(context.Background(), srv.URL+"/bucket/key?X-Amz-Signature=abc", ingestion.SourceFile{
		Name: "grades.pdf", ContentType: "application/pdf", Content: []byte("%PDF-1.7"),
	})
	require.NoError(t, err)
	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, "application/pdf", gotType)
	assert.Empty(t, gotAuth)
	assert.Equal(t, "%PDF-1.7", string(gotBody))
}

func TestTransferRejectedStatusIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("<Error><Code>SignatureDoesNotMatch</Code></Error>"))
	}))
	t.Cleanup(srv.Close)

	err := NewTransfer(nil).Transfer(context.Background(), srv.URL, ingestion.SourceFile{Name: "a.pdf", Content: []byte("x")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}
