package api

import (
	"context"
	"testing"

	"eventplace/internal/config"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

func TestAuthInterceptor(t *testing.T) {
	cfg := config.APIConfig{
		Enabled: true,
		Auth: config.APIAuthConfig{
			Enabled:      true,
			HeaderAPIKey: "x-api-key",
			HeaderExtra:  "x-api-extra",
			APIKeys: []config.APIClientKey{
				{Key: "valid-key", Extra: "valid-extra", Permissions: []string{"read:workflows"}},
			},
		},
		RateLimit: config.APIRateLimitConfig{
			RPS:   100,
			Burst: 200,
		},
	}

	interceptor := authUnaryInterceptor(newAuthenticator(cfg))

	handler := func(_ context.Context, req any) (any, error) {
		return "ok", nil
	}

	info := &grpc.UnaryServerInfo{FullMethod: getWorkflowMethod}

	t.Run("Success", func(t *testing.T) {
		md := metadata.Pairs("x-api-key", "valid-key", "x-api-extra", "valid-extra")
		ctx := metadata.NewIncomingContext(context.Background(), md)
		resp, err := interceptor(ctx, "req", info, handler)
		assert.NoError(t, err)
		assert.Equal(t, "ok", resp)
	})

	t.Run("MissingMetadata", func(t *testing.T) {
		_, err := interceptor(context.Background(), "req", info, handler)
		assert.Error(t, err)
		assert.Equal(t, codes.Unauthenticated, status.Code(err))
	})

	t.Run("MissingHeaders", func(t *testing.T) {
		ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs())
		_, err := interceptor(ctx, "req", info, handler)
		assert.Error(t, err)
		assert.Equal(t, codes.Unauthenticated, status.Code(err))
	})

	t.Run("InvalidKey", func(t *testing.T) {
		md := metadata.Pairs("x-api-key", "invalid", "x-api-extra", "valid-extra")
		ctx := metadata.NewIncomingContext(context.Background(), md)
		_, err := interceptor(ctx, "req", info, handler)
		assert.Error(t, err)
		assert.Equal(t, codes.Unauthenticated, status.Code(err))
	})

	t.Run("InvalidExtra", func(t *testing.T) {
		md := metadata.Pairs("x-api-key", "valid-key", "x-api-extra", "invalid")
		ctx := metadata.NewIncomingContext(context.Background(), md)
		_, err := interceptor(ctx, "req", info, handler)
		assert.Error(t, err)
		assert.Equal(t, codes.Unauthenticated, status.Code(err))
	})

	t.Run("HealthSkipsAuth", func(t *testing.T) {
		healthInfo := &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}
		resp, err := interceptor(context.Background(), "req", healthInfo, handler)
		assert.NoError(t, err)
		assert.Equal(t, "ok", resp)
	})

	t.Run("PermissionDenied", func(t *testing.T) {
		md := metadata.Pairs("x-api-key", "valid-key", "x-api-extra", "valid-extra")
		ctx := metadata.NewIncomingContext(context.Background(), md)
		badInfo := &grpc.UnaryServerInfo{FullMethod: confirmMethod}
		_, err := interceptor(ctx, "req", badInfo, handler)
		assert.Error(t, err)
		assert.Equal(t, codes.PermissionDenied, status.Code(err))
	})
}

func TestAuthInterceptor_RateLimit(t *testing.T) {
	cfg := config.APIConfig{
		Enabled: true,
		Auth:    config.APIAuthConfig{Enabled: false},
		RateLimit: config.APIRateLimitConfig{
			RPS:   1,
			Burst: 1,
		},
	}

	interceptor := authUnaryInterceptor(newAuthenticator(cfg))
	info := &grpc.UnaryServerInfo{FullMethod: "test"}
	handler := func(_ context.Context, req any) (any, error) { return "ok", nil }

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("x-api-key", "key1"))

	_, err := interceptor(ctx, "req", info, handler)
	assert.NoError(t, err)

	_, err = interceptor(ctx, "req", info, handler)
	assert.Equal(t, codes.ResourceExhausted, status.Code(err))

	other := metadata.NewIncomingContext(context.Background(), metadata.Pairs("x-api-key", "key2"))
	_, err = interceptor(other, "req", info, handler)
	assert.NoError(t, err)
}

func TestLoggingUnaryInterceptor(t *testing.T) {
	interceptor := loggingUnaryInterceptor(nil)
	info := &grpc.UnaryServerInfo{FullMethod: "test"}

	resp, err := interceptor(context.Background(), "req", info, func(context.Context, any) (any, error) {
		return "ok", nil
	})
	assert.NoError(t, err)
	assert.Equal(t, "ok", resp)

	wantErr := status.Error(codes.NotFound, "missing")
	_, err = interceptor(context.Background(), "req", info, func(context.Context, any) (any, error) {
		return nil, wantErr
	})
	assert.Equal(t, wantErr, err)
}

func TestRecoveryUnaryInterceptor(t *testing.T) {
	logger := zerolog.Nop()
	interceptor := recoveryUnaryInterceptor(&logger)
	info := &grpc.UnaryServerInfo{FullMethod: confirmMethod}

	_, err := interceptor(context.Background(), "req", info, func(context.Context, any) (any, error) {
		panic("boom")
	})
	assert.Equal(t, codes.Internal, status.Code(err))
}

func TestAuthenticator(t *testing.T) {
	cfg := config.APIConfig{
		Enabled: true,
		Auth: config.APIAuthConfig{
			Enabled: true,
			APIKeys: []config.APIClientKey{{Key: "k1", Extra: "e1"}},
		},
		RateLimit: config.APIRateLimitConfig{RPS: 1, Burst: 1},
	}
	auth := newAuthenticator(cfg)

	assert.Equal(t, "x-api-key", auth.keyHeader)
	assert.Equal(t, "x-api-extra", auth.extraHeader)
	assert.ErrorIs(t, auth.authorize("", "", permReadWorkflows, "10.0.0.1"), errMissingCredentials)
	assert.ErrorIs(t, auth.authorize("nope", "e1", permReadWorkflows, "10.0.0.1"), errInvalidAPIKey)
	assert.ErrorIs(t, auth.authorize("k1", "bad", permReadWorkflows, "10.0.0.1"), errInvalidExtra)
	assert.NoError(t, auth.authorize(" k1 ", "e1", permWriteConfirmations, "10.0.0.1"))
	assert.ErrorIs(t, auth.authorize("k1", "e1", permWriteConfirmations, "10.0.0.2"), errRateLimited)

	t.Run("Disabled", func(t *testing.T) {
		off := newAuthenticator(config.APIConfig{Enabled: false, RateLimit: cfg.RateLimit})
		assert.NoError(t, off.authorize("", "", permWriteConfirmations, ""))
		assert.NoError(t, off.authorize("", "", permWriteConfirmations, ""))
	})

	t.Run("CustomHeaders", func(t *testing.T) {
		custom := newAuthenticator(config.APIConfig{Auth: config.APIAuthConfig{HeaderAPIKey: " X-Key ", HeaderExtra: "X-Sig"}})
		assert.Equal(t, "x-key", custom.keyHeader)
		assert.Equal(t, "x-sig", custom.extraHeader)
	})
}

func TestRateLimiter(t *testing.T) {
	assert.Nil(t, newRateLimiter(config.APIRateLimitConfig{}))

	var unlimited *rateLimiter
	assert.True(t, unlimited.allow("any"))

	l := newRateLimiter(config.APIRateLimitConfig{RPS: 0.001})
	for i := 0; i < defaultBurst; i++ {
		assert.True(t, l.allow("a"), "request %d within burst", i)
	}
	assert.False(t, l.allow("a"))
	assert.True(t, l.allow("b"))
}

func TestServerCredentials(t *testing.T) {
	_, err := serverCredentials(config.APITLSConfig{Enabled: true})
	assert.ErrorContains(t, err, "cert_file and key_file")

	_, err = serverCredentials(config.APITLSConfig{Enabled: true, CertFile: "missing.crt", KeyFile: "missing.key"})
	assert.ErrorContains(t, err, "load key pair")

	_, err = loadCertPool("")
	assert.ErrorContains(t, err, "client_ca_file")
}

func TestRequiredPermission(t *testing.T) {
	tests := []struct {
		method string
		want   string
	}{
		{"/eventplace.confirmation.v1.ConfirmationService/Confirm", "write:confirmations"},
		{"/eventplace.confirmation.v1.ConfirmationService/Retry", "write:confirmations"},
		{"/eventplace.confirmation.v1.ConfirmationService/GetWorkflow", "read:workflows"},
		{"other", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, requiredPermission(tt.method))
	}
}

func TestHasPermission(t *testing.T) {
	open := config.APIClientKey{Key: "k"}
	scoped := config.APIClientKey{Key: "k", Permissions: []string{" read:workflows "}}

	assert.True(t, hasPermission(open, permWriteConfirmations))
	assert.True(t, hasPermission(scoped, permReadWorkflows))
	assert.True(t, hasPermission(scoped, ""))
	assert.False(t, hasPermission(scoped, permWriteConfirmations))
}
