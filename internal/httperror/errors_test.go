package httperror

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/duolog/duolog-server/internal/llm"
)

func TestResponseQuotaExceeded(t *testing.T) {
	status, payload := Response(NewQuotaExceeded(3, 3), "req-1")
	if status != http.StatusPaymentRequired {
		t.Fatalf("expected 402, got %d", status)
	}
	if payload.Details["upgrade_required"] != true {
		t.Fatalf("expected upgrade_required in details")
	}
	if payload.Details["used"] != 3 || payload.Details["limit"] != 3 {
		t.Fatalf("expected used/limit in details, got %v", payload.Details)
	}
	if payload.RequestID == nil || *payload.RequestID != "req-1" {
		t.Fatalf("expected request id passthrough")
	}
}

func TestResponseRateLimit(t *testing.T) {
	status, payload := Response(NewRateLimitExceeded(0, 1700000000, nil), "")
	if status != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", status)
	}
	if payload.Details["remaining"] != 0 {
		t.Fatalf("expected remaining in details")
	}
	if payload.Details["reset_time"] != int64(1700000000) {
		t.Fatalf("expected reset_time in details, got %v", payload.Details["reset_time"])
	}
}

func TestFromErrorMapsSentinels(t *testing.T) {
	if apiErr := FromError(llm.ErrMissingAPIKey); apiErr.Code != ErrorCodeLLM {
		t.Fatalf("expected llm error code, got %s", apiErr.Code)
	}
	if apiErr := FromError(context.DeadlineExceeded); apiErr.Code != ErrorCodeLLMTimeout {
		t.Fatalf("expected timeout code, got %s", apiErr.Code)
	}
	if apiErr := FromError(errors.New("boom")); apiErr.Code != ErrorCodeInternal {
		t.Fatalf("expected internal code, got %s", apiErr.Code)
	}
}

func TestVerificationRequiredStatus(t *testing.T) {
	status, payload := Response(NewVerificationRequired(), "")
	if status != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", status)
	}
	if payload.Details["verification_required"] != true {
		t.Fatalf("expected verification_required flag")
	}
}
