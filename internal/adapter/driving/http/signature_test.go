package httphandler_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	httphandler "github.com/ericfisherdev/pagesdns/internal/adapter/driving/http"
)

func TestSignatureVerifier(t *testing.T) {
	body := []byte(`{"action":"edited"}`)
	valid := httphandler.SignatureHeader([]byte("s3cret"), body)

	tests := []struct {
		name       string
		secret     string
		production bool
		header     string
		wantErr    error
	}{
		{name: "valid", secret: "s3cret", header: valid},
		{name: "missing header", secret: "s3cret", wantErr: httphandler.ErrMissingSignature},
		{name: "tampered", secret: "s3cret", header: valid[:len(valid)-2] + "00", wantErr: httphandler.ErrInvalidSignature},
		{name: "uppercase prefix", secret: "s3cret", header: "SHA256=" + valid[7:], wantErr: httphandler.ErrInvalidSignature},
		{name: "no secret in development", secret: ""},
		{name: "no secret in production", secret: "", production: true, wantErr: httphandler.ErrSecretNotConfigured},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := httphandler.NewSignatureVerifier(tt.secret, tt.production)
			err := v.Verify(body, tt.header)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestSignatureVerifier_Enabled(t *testing.T) {
	assert.True(t, httphandler.NewSignatureVerifier("x", false).Enabled())
	assert.False(t, httphandler.NewSignatureVerifier("", false).Enabled())
}
