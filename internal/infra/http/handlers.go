package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"keyward/internal/domain"
	"keyward/internal/usecase"
	"keyward/pkg/hexcodec"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	methodSignDigest         = usecase.MethodSignDigest
	methodSignMessage        = usecase.MethodSignMessage
	methodGenerateAPIKey     = "generate_api_key"
	methodGeneratePrivateKey = "generate_private_key"
	methodGetPublicKey       = "get_public_key"
	methodSignExternal       = usecase.MethodSignExternal

	// metric label for anything outside the method table
	methodUnknown = "unknown"
)

type rpcRequest struct {
	ID     string   `json:"id"`
	Method string   `json:"method"`
	Params []string `json:"params"`
}

type rpcResponse struct {
	Code   int             `json:"code"`
	ID     string          `json:"id"`
	Result string          `json:"result"`
	Error  string          `json:"error,omitempty"`
	Bundle *bundleResponse `json:"bundle,omitempty"`
	Key    *keyResponse    `json:"key,omitempty"`
}

type bundleResponse struct {
	Digest    string `json:"digest"`
	PublicKey string `json:"public_key"`
	Signature string `json:"signature"`
	Algorithm string `json:"algorithm"`
	KeyID     string `json:"key_id,omitempty"`
	Address   string `json:"address,omitempty"`
}

type keyResponse struct {
	KeyID     string `json:"key_id,omitempty"`
	PublicKey string `json:"public_key"`
	Address   string `json:"address,omitempty"`
}

type errorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

type rpcHandler func(ctx context.Context, identity domain.Identity, params []string) (rpcResponse, error)

func (s *Server) methods() map[string]rpcHandler {
	return map[string]rpcHandler{
		methodSignDigest:         s.rpcSignDigest,
		methodSignMessage:        s.rpcSignMessage,
		methodGenerateAPIKey:     s.rpcGenerateAPIKey,
		methodGeneratePrivateKey: s.rpcGeneratePrivateKey,
		methodGetPublicKey:       s.rpcGetPublicKey,
		methodSignExternal:       s.rpcSignExternal,
	}
}

func (s *Server) handleRPC(c *gin.Context) {
	start := time.Now()
	var req rpcRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeRPCError(c, methodUnknown, "", fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err), start)
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	c.Set(rpcMethodKey, req.Method)

	handler, ok := s.methods()[req.Method]
	if !ok {
		s.writeRPCError(c, methodUnknown, req.ID, fmt.Errorf("%w: unknown method %q", domain.ErrInvalidRequest, req.Method), start)
		return
	}
	identity := domain.Identity(strings.TrimSpace(c.GetHeader(s.identityHeader)))
	if !s.enforceRateLimit(c, req.Method, req.ID, rateLimitSubject(identity, apiKeyParam(req.Method, req.Params))) {
		s.metrics.ObserveRPC(req.Method, c.Writer.Status(), time.Since(start))
		return
	}

	resp, err := handler(c.Request.Context(), identity, req.Params)
	if err != nil {
		s.writeRPCError(c, req.Method, req.ID, err, start)
		return
	}
	resp.Code = http.StatusOK
	resp.ID = req.ID
	s.metrics.ObserveRPC(req.Method, http.StatusOK, time.Since(start))
	c.JSON(http.StatusOK, resp)
}

func (s *Server) rpcSignDigest(ctx context.Context, identity domain.Identity, params []string) (rpcResponse, error) {
	if s.signDigest == nil {
		return rpcResponse{}, errors.New("sign_digest is not configured")
	}
	if len(params) < 2 {
		return rpcResponse{}, fmt.Errorf("%w: sign_digest expects [key, digest, apiKey?]", domain.ErrInvalidRequest)
	}
	out, err := s.signDigest.Execute(ctx, usecase.SignDigestRequest{
		Identity:  identity,
		KeyRef:    params[0],
		DigestHex: params[1],
		APIKey:    param(params, 2),
	})
	if err != nil {
		return rpcResponse{}, err
	}
	s.metrics.ObserveSignature(bundleSource(out.Bundle))
	return signatureResponse(out.Bundle), nil
}

func (s *Server) rpcSignMessage(ctx context.Context, identity domain.Identity, params []string) (rpcResponse, error) {
	if s.signMessage == nil {
		return rpcResponse{}, errors.New("sign_message is not configured")
	}
	if len(params) < 2 {
		return rpcResponse{}, fmt.Errorf("%w: sign_message expects [key, message, apiKey?, algorithm?]", domain.ErrInvalidRequest)
	}
	var alg domain.HashAlgorithm
	if raw := param(params, 3); raw != "" {
		parsed, err := domain.ParseHashAlgorithm(raw)
		if err != nil {
			return rpcResponse{}, err
		}
		alg = parsed
	}
	out, err := s.signMessage.Execute(ctx, usecase.SignMessageRequest{
		Identity:   identity,
		KeyRef:     params[0],
		MessageHex: params[1],
		APIKey:     param(params, 2),
		Algorithm:  alg,
	})
	if err != nil {
		return rpcResponse{}, err
	}
	s.metrics.ObserveSignature(bundleSource(out.Bundle))
	return signatureResponse(out.Bundle), nil
}

func (s *Server) rpcGenerateAPIKey(ctx context.Context, identity domain.Identity, _ []string) (rpcResponse, error) {
	if s.issuance == nil {
		return rpcResponse{}, errors.New("key issuance is not configured")
	}
	apiKey, err := s.issuance.GenerateAPIKey(ctx, identity)
	if err != nil {
		return rpcResponse{}, err
	}
	return rpcResponse{Result: apiKey}, nil
}

func (s *Server) rpcGeneratePrivateKey(ctx context.Context, identity domain.Identity, _ []string) (rpcResponse, error) {
	if s.issuance == nil {
		return rpcResponse{}, errors.New("key issuance is not configured")
	}
	key, err := s.issuance.GeneratePrivateKey(ctx, identity)
	if err != nil {
		return rpcResponse{}, err
	}
	return rpcResponse{Result: key.KeyID, Key: toKeyResponse(key)}, nil
}

func (s *Server) rpcGetPublicKey(ctx context.Context, identity domain.Identity, params []string) (rpcResponse, error) {
	if s.publicKeys == nil {
		return rpcResponse{}, errors.New("public key query is not configured")
	}
	if len(params) < 1 {
		return rpcResponse{}, fmt.Errorf("%w: get_public_key expects [keyId, apiKey?]", domain.ErrInvalidRequest)
	}
	key, err := s.publicKeys.Execute(ctx, usecase.PublicKeyQueryRequest{
		Identity: identity,
		KeyID:    params[0],
		APIKey:   param(params, 1),
	})
	if err != nil {
		return rpcResponse{}, err
	}
	return rpcResponse{Result: hexcodec.Encode(key.PublicKey), Key: toKeyResponse(key)}, nil
}

func (s *Server) rpcSignExternal(ctx context.Context, identity domain.Identity, params []string) (rpcResponse, error) {
	if s.external == nil {
		return rpcResponse{}, fmt.Errorf("%w: external signing is not configured", domain.ErrExternalService)
	}
	if len(params) < 1 {
		return rpcResponse{}, fmt.Errorf("%w: sign_via_external_service expects [digest]", domain.ErrInvalidRequest)
	}
	out, err := s.external.Execute(ctx, usecase.ExternalSigningRequest{
		Identity:  identity,
		DigestHex: params[0],
	})
	if err != nil {
		return rpcResponse{}, err
	}
	s.metrics.ObserveSignature(string(domain.KeySourceExternal))
	return signatureResponse(out.Bundle), nil
}

// apiKeyParam returns the optional API key position of methods that accept
// one.
func apiKeyParam(method string, params []string) string {
	switch method {
	case methodSignDigest, methodSignMessage:
		return param(params, 2)
	case methodGetPublicKey:
		return param(params, 1)
	}
	return ""
}

func param(params []string, i int) string {
	if i < len(params) {
		return strings.TrimSpace(params[i])
	}
	return ""
}

func bundleSource(bundle domain.SignatureBundle) string {
	if bundle.KeyID != "" {
		return string(domain.KeySourceStored)
	}
	return string(domain.KeySourceRaw)
}

func signatureResponse(bundle domain.SignatureBundle) rpcResponse {
	return rpcResponse{
		Result: hexcodec.Encode(bundle.Signature),
		Bundle: &bundleResponse{
			Digest:    hexcodec.Encode(bundle.Digest),
			PublicKey: hexcodec.Encode(bundle.PublicKey),
			Signature: hexcodec.Encode(bundle.Signature),
			Algorithm: string(bundle.Algorithm),
			KeyID:     bundle.KeyID,
			Address:   bundle.Address,
		},
	}
}

func toKeyResponse(key *domain.GeneratedKey) *keyResponse {
	return &keyResponse{
		KeyID:     key.KeyID,
		PublicKey: hexcodec.Encode(key.PublicKey),
		Address:   key.Address,
	}
}

func (s *Server) writeRPCError(c *gin.Context, method, id string, err error, start time.Time) {
	status, code := classifyError(err)
	message := err.Error()
	if status == http.StatusInternalServerError && code == "INTERNAL" {
		s.log.Error("rpc failed", zap.String("method", method), zap.String("id", id), zap.Error(err))
		message = "internal error"
	}
	s.metrics.ObserveRPC(method, status, time.Since(start))
	c.JSON(status, rpcResponse{
		Code:   status,
		ID:     id,
		Result: message,
		Error:  code,
	})
}

func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidKeyLength):
		return http.StatusBadRequest, "INVALID_KEY_LENGTH"
	case errors.Is(err, domain.ErrInvalidDigestLength):
		return http.StatusBadRequest, "INVALID_DIGEST_LENGTH"
	case errors.Is(err, domain.ErrHexDecode):
		return http.StatusBadRequest, "HEX_DECODE"
	case errors.Is(err, domain.ErrBase64Decode):
		return http.StatusBadRequest, "BASE64_DECODE"
	case errors.Is(err, domain.ErrMalformedInput):
		return http.StatusBadRequest, "MALFORMED_INPUT"
	case errors.Is(err, domain.ErrInvalidKeyMaterial):
		return http.StatusBadRequest, "INVALID_KEY_MATERIAL"
	case errors.Is(err, domain.ErrInvalidRequest):
		return http.StatusBadRequest, "INVALID_REQUEST"
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, "UNAUTHORIZED"
	case errors.Is(err, domain.ErrPolicyDenied):
		return http.StatusForbidden, "POLICY_DENIED"
	case errors.Is(err, domain.ErrKeyNotFound):
		return http.StatusNotFound, "KEY_NOT_FOUND"
	case errors.Is(err, domain.ErrDuplicateKey):
		return http.StatusConflict, "DUPLICATE_KEY"
	case errors.Is(err, domain.ErrExternalService):
		return http.StatusBadGateway, "EXTERNAL_SERVICE"
	case errors.Is(err, domain.ErrSignatureVerificationFailed):
		return http.StatusInternalServerError, "SIGNATURE_VERIFICATION_FAILED"
	}
	return http.StatusInternalServerError, "INTERNAL"
}

func writeErrorCode(c *gin.Context, status int, code, message string) {
	c.JSON(status, errorResponse{
		Code:    code,
		Message: message,
	})
}
