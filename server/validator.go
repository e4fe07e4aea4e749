package server

import (
	"fmt"
	"strings"
	"time"

	"github.com/jathurchan/davlock/logger"
	pb "github.com/jathurchan/davlock/proto"
	"github.com/jathurchan/davlock/types"
)

// RequestValidator defines the interface for validating incoming gRPC requests.
// Each method returns a *ValidationError if the request is invalid.
type RequestValidator interface {
	ValidateLockRequest(req *pb.LockRequest) error
	ValidateRefreshRequest(req *pb.RefreshRequest) error
	ValidateUnlockRequest(req *pb.UnlockRequest) error
	ValidateGetLockInfoRequest(req *pb.GetLockInfoRequest) error
	ValidateGetLocksRequest(req *pb.GetLocksRequest) error
	ValidateStatRequest(req *pb.StatRequest) error
	ValidateListRequest(req *pb.ListRequest) error
	ValidateCreateDocumentRequest(req *pb.CreateDocumentRequest, maxContent int) error
	ValidateCreateCollectionRequest(req *pb.CreateCollectionRequest) error
	ValidateDeleteRequest(req *pb.DeleteRequest) error
}

// requestValidator implements the RequestValidator interface.
type requestValidator struct {
	logger logger.Logger
}

// NewRequestValidator creates a new default request validator.
func NewRequestValidator(logger logger.Logger) RequestValidator {
	return &requestValidator{
		logger: logger,
	}
}

// ValidateLockRequest validates a lock request.
func (v *requestValidator) ValidateLockRequest(req *pb.LockRequest) error {
	if err := v.validatePath("path", req.Path); err != nil {
		return err
	}
	if len(req.Owner) > MaxOwnerLength {
		return NewValidationError("owner", len(req.Owner), ErrorTypeTooLong,
			fmt.Sprintf(ErrMsgOwnerTooLong, MaxOwnerLength))
	}
	if _, err := types.ParseAccessType(req.Access); err != nil {
		return NewValidationError("access", req.Access, ErrorTypeInvalidFormat, "access must be \"write\" or \"read\"")
	}
	if _, err := types.ParseShareMode(req.Share); err != nil {
		return NewValidationError("share", req.Share, ErrorTypeInvalidFormat, "share must be \"exclusive\" or \"shared\"")
	}
	if !req.Infinite && req.Timeout != nil {
		if err := v.validateTimeout(req.Timeout.AsDuration()); err != nil {
			return err
		}
	}
	return nil
}

// ValidateRefreshRequest validates a refresh request.
func (v *requestValidator) ValidateRefreshRequest(req *pb.RefreshRequest) error {
	if err := v.validateToken("token", req.Token); err != nil {
		return err
	}
	if !req.Infinite && req.Timeout != nil {
		if err := v.validateTimeout(req.Timeout.AsDuration()); err != nil {
			return err
		}
	}
	return nil
}

// ValidateUnlockRequest validates an unlock request.
func (v *requestValidator) ValidateUnlockRequest(req *pb.UnlockRequest) error {
	return v.validateToken("token", req.Token)
}

// ValidateGetLockInfoRequest validates a get lock info request.
func (v *requestValidator) ValidateGetLockInfoRequest(req *pb.GetLockInfoRequest) error {
	return v.validateToken("token", req.Token)
}

// ValidateGetLocksRequest validates a get locks request.
func (v *requestValidator) ValidateGetLocksRequest(req *pb.GetLocksRequest) error {
	if req.Limit < 0 {
		return NewValidationError("limit", req.Limit, ErrorTypeOutOfRange, "limit cannot be negative")
	}
	if req.Limit > MaxPageLimit {
		return NewValidationError("limit", req.Limit, ErrorTypeOutOfRange,
			fmt.Sprintf("limit cannot exceed %d", MaxPageLimit))
	}
	if req.Offset < 0 {
		return NewValidationError("offset", req.Offset, ErrorTypeOutOfRange, "offset cannot be negative")
	}
	if req.PathPrefix != "" {
		if err := v.validatePath("path_prefix", req.PathPrefix); err != nil {
			return err
		}
	}
	if len(req.Owner) > MaxOwnerLength {
		return NewValidationError("owner", len(req.Owner), ErrorTypeTooLong,
			fmt.Sprintf(ErrMsgOwnerTooLong, MaxOwnerLength))
	}
	if w := req.ExpiringWithin; w != nil {
		if err := w.CheckValid(); err != nil || w.AsDuration() <= 0 {
			return NewValidationError("expiring_within", w.AsDuration(), ErrorTypeOutOfRange,
				"expiring_within must be a positive duration")
		}
	}
	return nil
}

// ValidateStatRequest validates a stat request.
func (v *requestValidator) ValidateStatRequest(req *pb.StatRequest) error {
	return v.validatePath("path", req.Path)
}

// ValidateListRequest validates a list request.
func (v *requestValidator) ValidateListRequest(req *pb.ListRequest) error {
	return v.validatePath("path", req.Path)
}

// ValidateCreateDocumentRequest validates a create document request.
// maxContent bounds the document body; zero disables the check.
func (v *requestValidator) ValidateCreateDocumentRequest(req *pb.CreateDocumentRequest, maxContent int) error {
	if err := v.validatePath("path", req.Path); err != nil {
		return err
	}
	if maxContent > 0 && len(req.Content) > maxContent {
		return NewValidationError("content", len(req.Content), ErrorTypeTooLong,
			fmt.Sprintf("content cannot exceed %d bytes", maxContent))
	}
	if len(req.ContentType) > MaxContentTypeLength {
		return NewValidationError("content_type", len(req.ContentType), ErrorTypeTooLong,
			fmt.Sprintf(ErrMsgContentTypeTooLong, MaxContentTypeLength))
	}
	return v.validateTokens(req.Tokens)
}

// ValidateCreateCollectionRequest validates a create collection request.
func (v *requestValidator) ValidateCreateCollectionRequest(req *pb.CreateCollectionRequest) error {
	if err := v.validatePath("path", req.Path); err != nil {
		return err
	}
	return v.validateTokens(req.Tokens)
}

// ValidateDeleteRequest validates a delete request.
func (v *requestValidator) ValidateDeleteRequest(req *pb.DeleteRequest) error {
	if err := v.validatePath("path", req.Path); err != nil {
		return err
	}
	return v.validateTokens(req.Tokens)
}

// validatePath requires an absolute path without NUL bytes.
func (v *requestValidator) validatePath(field, path string) error {
	if path == "" {
		return NewValidationError(field, path, ErrorTypeMissingField,
			fmt.Sprintf(ErrMsgInvalidPath, MaxPathLength))
	}
	if len(path) > MaxPathLength {
		return NewValidationError(field, len(path), ErrorTypeTooLong,
			fmt.Sprintf(ErrMsgInvalidPath, MaxPathLength))
	}
	if !strings.HasPrefix(path, "/") || strings.ContainsRune(path, 0) {
		return NewValidationError(field, path, ErrorTypeInvalidFormat,
			fmt.Sprintf(ErrMsgInvalidPath, MaxPathLength))
	}
	return nil
}

func (v *requestValidator) validateToken(field, token string) error {
	if token == "" {
		return NewValidationError(field, token, ErrorTypeMissingField,
			fmt.Sprintf(ErrMsgInvalidToken, MaxTokenLength))
	}
	if len(token) > MaxTokenLength {
		return NewValidationError(field, len(token), ErrorTypeTooLong,
			fmt.Sprintf(ErrMsgInvalidToken, MaxTokenLength))
	}
	return nil
}

func (v *requestValidator) validateTokens(tokens []string) error {
	if len(tokens) > MaxTokensPerRequest {
		return NewValidationError("tokens", len(tokens), ErrorTypeOutOfRange,
			fmt.Sprintf(ErrMsgTooManyTokens, MaxTokensPerRequest))
	}
	for i, t := range tokens {
		if err := v.validateToken(fmt.Sprintf("tokens[%d]", i), t); err != nil {
			return err
		}
	}
	return nil
}

// validateTimeout bounds a finite requested timeout from below. The upper
// bound is enforced by the lock manager, which clamps instead of failing.
func (v *requestValidator) validateTimeout(d time.Duration) error {
	if d < MinLockTimeout {
		return NewValidationError("timeout", d, ErrorTypeOutOfRange,
			fmt.Sprintf(ErrMsgInvalidTimeout, MinLockTimeout))
	}
	return nil
}
